package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsafeScheme is returned when a URL uses a scheme the browser or the
// webhook client should not be pointed at.
var ErrUnsafeScheme = errors.New("config: unsupported URL scheme")

// checkURL parses rawURL and checks its scheme against allowed. Hosts are
// not restricted: chat UIs under development usually live on localhost.
func checkURL(rawURL string, allowed ...string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("config: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	ok := false
	for _, a := range allowed {
		if scheme == a {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("%w %q", ErrUnsafeScheme, u.Scheme)
	}
	if scheme != "file" && u.Hostname() == "" {
		return fmt.Errorf("config: URL %q has no host", rawURL)
	}
	return nil
}

// checkIdentifier rejects page ids that would be awkward in log fields and
// activity records. Allows alphanumeric, underscore, hyphen and dot.
func checkIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("config: identifier must not be empty")
	}
	if len(s) > 128 {
		return fmt.Errorf("config: identifier too long (max 128)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("config: invalid character %q in identifier %q", r, s)
		}
	}
	return nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
