package writeback

import (
	"strings"
	"unicode"
)

// String renders s as a source string literal using the file's preferred
// quote character. Strings containing newlines are fenced as template
// literals so multiline descriptions survive the trip.
func String(s string, quote byte) string {
	if strings.ContainsRune(s, '\n') {
		return "`" + escapeTemplate(s) + "`"
	}
	return string(quote) + escapeQuoted(s, quote) + string(quote)
}

// Key renders an object key, quoting it only when it cannot stand as a
// bare identifier.
func Key(name string, quote byte) string {
	if IsIdentifier(name) {
		return name
	}
	return string(quote) + escapeQuoted(name, quote) + string(quote)
}

// IsIdentifier reports whether name is usable as an unquoted object key.
// Reserved words are fine there, so only the character shape matters.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '$' || r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func escapeQuoted(s string, quote byte) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeTemplate(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	s = strings.ReplaceAll(s, "${", "\\${")
	return s
}
