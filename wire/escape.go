package wire

import "strings"

const upperhex = "0123456789ABCDEF"

func unreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// Escape percent-encodes every byte outside the RFC 3986 unreserved set.
// With keepSlash, '/' is left as is.
func Escape(s string, keepSlash bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) || keepSlash && c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// EscapeLabel escapes a URI label value. Greedy labels keep path separators.
func EscapeLabel(s string, greedy bool) string {
	return Escape(s, greedy)
}

// EscapeQuery escapes a query key or value.
func EscapeQuery(s string) string {
	return Escape(s, false)
}
