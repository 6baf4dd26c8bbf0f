package source

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// decodeStringExact decodes a quoted string literal, quotes included. exact
// reports that the body carries no escape sequences, so the decoded value
// reproduces the source spelling.
func decodeStringExact(raw string) (s string, exact bool) {
	if len(raw) < 2 {
		return "", false
	}
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, true
	}
	return decodeEscapes(body), false
}

// decodeEscapes resolves JavaScript escape sequences in a string body.
// Unknown escapes drop the backslash, matching runtime semantics.
func decodeEscapes(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'x':
			if i+2 < len(body) {
				if v, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		case 'u':
			if r, width, ok := decodeUnicodeEscape(body[i:]); ok {
				b.WriteRune(r)
				i += width - 1
				continue
			}
			b.WriteByte('u')
		case '\n':
			// Line continuation emits nothing.
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// decodeUnicodeEscape reads "u{XXXXXX}" or "uXXXX" at the start of s and
// returns the rune plus the number of bytes consumed.
func decodeUnicodeEscape(s string) (r rune, width int, ok bool) {
	if len(s) >= 2 && s[1] == '{' {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(s[2:end], 16, 32)
		if err != nil {
			return 0, 0, false
		}
		return rune(v), end + 1, true
	}
	if len(s) < 5 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(s[1:5], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	r = rune(v)
	if utf16.IsSurrogate(r) && len(s) >= 11 && s[5] == '\\' && s[6] == 'u' {
		if lo, err := strconv.ParseUint(s[7:11], 16, 32); err == nil {
			if combined := utf16.DecodeRune(r, rune(lo)); combined != 0xFFFD {
				return combined, 11, true
			}
		}
	}
	return r, 5, true
}

// parseNumber reads JavaScript numeric literal forms: decimal and float
// notation, numeric separators, bigint suffixes and 0x/0o/0b bases.
func parseNumber(text string) (float64, bool) {
	t := strings.ReplaceAll(text, "_", "")
	t = strings.TrimSuffix(t, "n")
	if v, err := strconv.ParseFloat(t, 64); err == nil {
		return v, true
	}
	if v, err := strconv.ParseInt(t, 0, 64); err == nil {
		return float64(v), true
	}
	if v, err := strconv.ParseUint(t, 0, 64); err == nil {
		return float64(v), true
	}
	return 0, false
}

func isPlainInteger(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
