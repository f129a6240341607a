package engine

import (
	"bytes"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// Marker attributes.
const (
	MarkerAttr      = "data-chataug"
	ActionAttr      = "data-chataug-action"
	PlaceholderMark = "data-chataug-placeholder"

	PanelID = "chataug-panel"
	StyleID = "chataug-style"
)

const panelCSS = `
@keyframes chataug-enter {
  from { opacity: 0; transform: translateY(6px); }
  to   { opacity: 1; transform: none; }
}
.chataug-panel {
  display: flex; flex-wrap: wrap; gap: 6px;
  margin: 0 auto 8px; max-width: 48rem;
  animation: chataug-enter 240ms ease-out both;
}
.chataug-panel button {
  display: inline-flex; align-items: center; gap: 4px;
  padding: 4px 10px; border-radius: 999px;
  border: 1px solid rgba(127,127,127,.35);
  background: transparent; color: inherit; font: inherit; font-size: .85rem;
  cursor: pointer;
}
.chataug-panel button:hover { background: rgba(127,127,127,.12); }
`

// PanelAugmentation renders the quick-action catalog before the composer.
func PanelAugmentation(catalog []QuickAction) Augmentation {
	return Augmentation{
		ID:       PanelID,
		Anchor:   RoleComposer,
		Position: host.BeforeBegin,
		Render:   func() (string, error) { return renderPanel(catalog) },
	}
}

// StyleAugmentation injects the panel style sheet and entrance animation.
func StyleAugmentation() Augmentation {
	return Augmentation{
		ID:       StyleID,
		Anchor:   RoleHead,
		Position: host.BeforeEnd,
		Render: func() (string, error) {
			n := element(atom.Style, "id", StyleID, MarkerAttr, "style")
			n.AppendChild(&html.Node{Type: html.TextNode, Data: panelCSS})
			return render(n)
		},
	}
}

func renderPanel(catalog []QuickAction) (string, error) {
	root := element(atom.Div,
		"id", PanelID,
		MarkerAttr, "panel",
		"class", "chataug-panel",
		"role", "toolbar",
		"aria-label", "Quick actions",
	)
	for i, qa := range catalog {
		btn := element(atom.Button,
			"type", "button",
			ActionAttr, strconv.Itoa(i),
			"title", qa.Query,
		)
		icon := element(atom.Span, "aria-hidden", "true")
		icon.AppendChild(&html.Node{Type: html.TextNode, Data: qa.Icon})
		btn.AppendChild(icon)
		btn.AppendChild(&html.Node{Type: html.TextNode, Data: qa.Label})
		root.AppendChild(btn)
	}
	return render(root)
}

func element(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
