package template

import (
	"strings"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
)

// Rendered is the outcome of substituting variables into a template.
type Rendered struct {
	Subject string
	HTML    string
	Text    *string
}

// Expand replaces every {key} occurrence in s with the mapped value.
// Placeholders without a mapping render as the empty string; mapping keys
// that never appear in s are ignored. This is literal replacement, not a
// templating language: no conditionals, no loops, and no escaping of values
// (escaping is the caller's responsibility).
func Expand(s string, vars map[string]string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for {
		open := strings.IndexByte(s, '{')
		if open == -1 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.IndexByte(s[open:], '}')
		if end == -1 {
			b.WriteString(s)
			return b.String()
		}
		end += open

		b.WriteString(s[:open])
		key := s[open+1 : end]
		if isPlaceholderKey(key) {
			b.WriteString(vars[key])
		} else {
			// Not a placeholder (e.g. CSS braces); keep it verbatim.
			b.WriteString(s[open : end+1])
		}
		s = s[end+1:]
	}
}

func isPlaceholderKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

// Render expands the template's subject and bodies against vars.
func Render(t *models.EmailTemplate, vars map[string]string) Rendered {
	r := Rendered{
		Subject: Expand(t.Subject, vars),
		HTML:    Expand(t.HTMLContent, vars),
	}
	if t.TextContent != nil {
		text := Expand(*t.TextContent, vars)
		r.Text = &text
	}
	return r
}
