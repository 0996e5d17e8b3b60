package shapegen

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

var commonInitialisms = []string{
	"ACL", "API", "ARN", "CPU", "CSS", "DNS", "EOF", "HTML", "HTTP", "HTTPS",
	"ID", "IP", "JSON", "JWT", "MD5", "OK", "SHA", "SQL", "SSH", "TCP", "TLS",
	"TTL", "UDP", "UI", "URI", "URL", "UTF8", "UUID", "XML",
}

// namer turns model names into Go identifiers.
type namer struct {
	initialisms map[string]bool
}

func newNamer(extra []string) *namer {
	words := lo.Uniq(append(append([]string{}, commonInitialisms...), extra...))
	return &namer{initialisms: lo.SliceToMap(words, func(w string) (string, bool) {
		return w, true
	})}
}

// exported returns the exported Go identifier for name: words are split at
// case changes and separators, capitalized, and initialisms upper-cased.
// "resourceId" becomes "ResourceID", "RED" becomes "Red".
func (n *namer) exported(name string) string {
	var b strings.Builder
	for _, w := range splitWords(name) {
		upper := strings.ToUpper(w)
		if n.initialisms[upper] {
			b.WriteString(upper)
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	id := b.String()
	if id == "" {
		return "X"
	}
	if unicode.IsDigit(rune(id[0])) {
		return "X" + id
	}
	return id
}

// splitWords splits an identifier into words. A run of capitals followed by
// a lower-case letter ends before the last capital, so "HTTPServer" gives
// "HTTP" and "Server".
func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// docComment renders documentation as a Go doc comment for name. The text
// is rephrased to start with name when it begins with a capitalized word.
func docComment(name, doc string) string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return ""
	}
	if !strings.HasPrefix(doc, name+" ") {
		r := []rune(doc)
		if len(r) > 1 && unicode.IsUpper(r[0]) && unicode.IsLower(r[1]) {
			r[0] = unicode.ToLower(r[0])
		}
		doc = name + " " + string(r)
	}
	var b strings.Builder
	for _, line := range strings.Split(doc, "\n") {
		b.WriteString(strings.TrimRight("// "+strings.TrimSpace(line), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
