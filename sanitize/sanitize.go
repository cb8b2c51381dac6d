// Package sanitize cleans free-text user input before it is stored.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// unwanted matches control and format runes other than newline and tab.
var unwanted = runes.Predicate(func(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
})

// String strips markup tags and control or format runes from s and returns
// it NFC-normalized. Whitespace is preserved. String is idempotent.
func String(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	out, _, err := transform.String(transform.Chain(runes.Remove(unwanted), norm.NFC), s)
	if err != nil {
		return ""
	}
	return out
}

// IsBlank reports whether s is empty once surrounding whitespace is removed.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
