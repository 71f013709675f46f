package interaction

import "strings"

// Separator delimits identifier tokens. Tokens cannot contain it.
const Separator = ":"

// Identifier is a decoded component custom id of the form
// namespace[:action[:param]*].
type Identifier struct {
	Raw       string
	Namespace string
	Action    string
	Params    []string
}

// ParseIdentifier splits raw on Separator. It never fails; an empty raw id
// yields an empty Namespace, which no handler can be registered under.
func ParseIdentifier(raw string) Identifier {
	parts := strings.Split(raw, Separator)
	id := Identifier{Raw: raw, Namespace: parts[0]}
	if len(parts) > 1 {
		id.Action = parts[1]
	}
	if len(parts) > 2 {
		id.Params = parts[2:]
	}
	return id
}

// Rest returns the tokens after the namespace.
func (id Identifier) Rest() []string {
	parts := strings.Split(id.Raw, Separator)
	return parts[1:]
}

// Param returns the i-th parameter or "" when absent.
func (id Identifier) Param(i int) string {
	if i < 0 || i >= len(id.Params) {
		return ""
	}
	return id.Params[i]
}

// NewIdentifier joins tokens into a raw custom id.
func NewIdentifier(namespace string, tokens ...string) string {
	return strings.Join(append([]string{namespace}, tokens...), Separator)
}
