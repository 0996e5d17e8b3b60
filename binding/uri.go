package binding

import (
	"fmt"
	"strings"
)

// Segment is one path segment of a URI pattern.
type Segment struct {
	// Literal is the segment text when the segment is not a label.
	Literal string

	// Label is the bound member name, empty for literal segments.
	Label string

	// Greedy labels ({name+}) may expand to multiple segments.
	Greedy bool
}

// IsLabel reports whether the segment is a label placeholder.
func (s Segment) IsLabel() bool {
	return s.Label != ""
}

// QueryLiteral is a constant query parameter declared in the URI pattern.
type QueryLiteral struct {
	Key   string
	Value string
}

// URIPattern is a parsed http trait URI such as "/widgets/{id}?list=true".
type URIPattern struct {
	Raw      string
	Segments []Segment
	Query    []QueryLiteral
}

// ParseURIPattern parses an http trait URI pattern.
func ParseURIPattern(uri string) (*URIPattern, error) {
	if !strings.HasPrefix(uri, "/") {
		return nil, fmt.Errorf("uri pattern %q must start with '/'", uri)
	}
	p := &URIPattern{Raw: uri}

	path, query, _ := strings.Cut(uri, "?")
	seen := make(map[string]bool)
	for i, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if part == "" {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("uri pattern %q contains an empty segment", uri)
		}
		if !strings.HasPrefix(part, "{") {
			if strings.ContainsAny(part, "{}") {
				return nil, fmt.Errorf("uri pattern %q: labels must span a whole segment", uri)
			}
			p.Segments = append(p.Segments, Segment{Literal: part})
			continue
		}
		if !strings.HasSuffix(part, "}") {
			return nil, fmt.Errorf("uri pattern %q: unterminated label %q", uri, part)
		}
		name := part[1 : len(part)-1]
		seg := Segment{Label: name}
		if strings.HasSuffix(name, "+") {
			seg.Label = strings.TrimSuffix(name, "+")
			seg.Greedy = true
		}
		if seg.Label == "" {
			return nil, fmt.Errorf("uri pattern %q: empty label", uri)
		}
		if seen[seg.Label] {
			return nil, fmt.Errorf("uri pattern %q: duplicate label %q", uri, seg.Label)
		}
		seen[seg.Label] = true
		p.Segments = append(p.Segments, seg)
	}

	if query != "" {
		for _, kv := range strings.Split(query, "&") {
			if kv == "" {
				continue
			}
			k, v, _ := strings.Cut(kv, "=")
			p.Query = append(p.Query, QueryLiteral{Key: k, Value: v})
		}
	}
	return p, nil
}

// Label returns the segment bound to the named label.
func (p *URIPattern) Label(name string) (Segment, bool) {
	for _, s := range p.Segments {
		if s.Label == name {
			return s, true
		}
	}
	return Segment{}, false
}

// Labels returns the label names in path order.
func (p *URIPattern) Labels() []string {
	var out []string
	for _, s := range p.Segments {
		if s.IsLabel() {
			out = append(out, s.Label)
		}
	}
	return out
}
