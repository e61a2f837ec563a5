// Package htmlsanitize strips markup from owner-supplied text before it is stored.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every element; script and style contents are dropped with them.
var strict = bluemonday.StrictPolicy()

// PlainText returns s with all HTML removed and entities decoded, trimmed.
// Group names and descriptions are shown on public pages, so they are stored as text.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Name is PlainText with inner whitespace runs collapsed to single spaces.
func Name(s string) string {
	return strings.Join(strings.Fields(PlainText(s)), " ")
}
