package rodhost

import (
	"github.com/go-rod/rod"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// setValueJS writes through the native value setter so framework-managed
// inputs see the change on the following input event.
const setValueJS = `(v) => {
	if (this.isContentEditable) {
		this.textContent = v;
		return;
	}
	const proto = this instanceof HTMLTextAreaElement
		? HTMLTextAreaElement.prototype
		: HTMLInputElement.prototype;
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) {
		desc.set.call(this, v);
	} else {
		this.value = v;
	}
}`

const valueJS = `() => this.isContentEditable ? this.textContent : (this.value ?? '')`

const dispatchInputJS = `() => { this.dispatchEvent(new Event('input', { bubbles: true })); }`

const isActiveJS = `() => this === document.activeElement`

const disabledJS = `() => !!this.disabled || this.getAttribute('aria-disabled') === 'true'`

const clickJS = `() => { this.click(); }`

const setAttrJS = `(name, value) => { this.setAttribute(name, value); }`

const insertJS = `(pos, html) => { this.insertAdjacentHTML(pos, html); }`

// element is a host.Element over a rod element handle.
type element struct {
	el *rod.Element
}

func (e *element) Attr(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, wrap("attr", err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) SetAttr(name, value string) error {
	_, err := e.el.Eval(setAttrJS, name, value)
	return wrap("set attr", err)
}

func (e *element) Value() (string, error) {
	res, err := e.el.Eval(valueJS)
	if err != nil {
		return "", wrap("value", err)
	}
	return res.Value.Str(), nil
}

func (e *element) SetValue(v string) error {
	_, err := e.el.Eval(setValueJS, v)
	return wrap("set value", err)
}

func (e *element) DispatchInput() error {
	_, err := e.el.Eval(dispatchInputJS)
	return wrap("dispatch input", err)
}

func (e *element) Focus() error {
	return wrap("focus", e.el.Focus())
}

func (e *element) Blur() error {
	return wrap("blur", e.el.Blur())
}

func (e *element) SelectText() error {
	return wrap("select", e.el.SelectAllText())
}

func (e *element) IsActive() (bool, error) {
	res, err := e.el.Eval(isActiveJS)
	if err != nil {
		return false, wrap("active", err)
	}
	return res.Value.Bool(), nil
}

func (e *element) Disabled() (bool, error) {
	res, err := e.el.Eval(disabledJS)
	if err != nil {
		return false, wrap("disabled", err)
	}
	return res.Value.Bool(), nil
}

// Click uses the DOM click rather than synthesised mouse input, which would
// wait for the control to become visible and interactable.
func (e *element) Click() error {
	_, err := e.el.Eval(clickJS)
	return wrap("click", err)
}

func (e *element) InsertHTML(pos host.Position, fragment string) error {
	_, err := e.el.Eval(insertJS, string(pos), fragment)
	return wrap("insert", err)
}
