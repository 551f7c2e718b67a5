// Package sanitize cleans user-entered chat text before it is stored.
// This is part of the platform layer and contains no business logic.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

var entities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML removes HTML tags, decodes common entities and strips again so
// encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entities.Replace(result)
	return htmlTagRegex.ReplaceAllString(result, "")
}

// Text strips HTML, drops control and zero-width characters and collapses
// whitespace runs to single spaces.
func Text(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
			return -1
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, StripHTML(s))
	return strings.Join(strings.Fields(cleaned), " ")
}
