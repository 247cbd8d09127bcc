package mediawiki

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle returns the stored form of a title: NFC, trimmed, runs of
// spaces and underscores collapsed to one underscore, first letter upper case.
func NormalizeTitle(title string) string {
	title = norm.NFC.String(title)
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})
	title = strings.Join(fields, "_")
	if title == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}

// DisplayTitle is the form with spaces, as the API reports it.
func DisplayTitle(title string) string {
	return strings.ReplaceAll(NormalizeTitle(title), "_", " ")
}

// ReplacePrefix swaps the namespace prefix "from" for "to". Both prefixes and
// the title are compared in normalized form. ok is false if title lacks from.
func ReplacePrefix(title, from, to string) (string, bool) {
	t := NormalizeTitle(title)
	f := NormalizeTitle(from)
	if f == "" || !strings.HasPrefix(t, f) {
		return t, false
	}
	return NormalizeTitle(to) + t[len(f):], true
}
