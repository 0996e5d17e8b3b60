package wire

import (
	"fmt"
	"strings"

	"github.com/broady/shapeclient/shapegen/model"
)

// JoinHeaderList joins list items into a single header value. Items
// containing a comma or double quote are quoted.
func JoinHeaderList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		if strings.ContainsAny(s, `,"`) {
			s = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
		}
		quoted[i] = s
	}
	return strings.Join(quoted, ", ")
}

// SplitHeaderList splits a comma-separated header value, honouring quoted
// items.
func SplitHeaderList(v string) ([]string, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	var (
		items []string
		cur   strings.Builder
	)
	i := 0
	for i <= len(v) {
		// Skip leading whitespace of an item.
		for i < len(v) && (v[i] == ' ' || v[i] == '\t') {
			i++
		}
		if i < len(v) && v[i] == '"' {
			i++
			closed := false
			for i < len(v) {
				ch := v[i]
				if ch == '\\' && i+1 < len(v) {
					cur.WriteByte(v[i+1])
					i += 2
					continue
				}
				if ch == '"' {
					closed = true
					i++
					break
				}
				cur.WriteByte(ch)
				i++
			}
			if !closed {
				return nil, &ParseError{Value: v, Type: "header list", Err: fmt.Errorf("unterminated quoted item")}
			}
			for i < len(v) && (v[i] == ' ' || v[i] == '\t') {
				i++
			}
			if i < len(v) && v[i] != ',' {
				return nil, &ParseError{Value: v, Type: "header list", Err: fmt.Errorf("unexpected %q after quoted item", v[i])}
			}
		} else {
			j := strings.IndexByte(v[i:], ',')
			if j < 0 {
				j = len(v) - i
			}
			cur.WriteString(strings.TrimRight(v[i:i+j], " \t"))
			i += j
		}
		items = append(items, cur.String())
		cur.Reset()
		i++ // comma
	}
	return items, nil
}

// SplitHTTPDateList splits a list of http-date timestamps. Each date itself
// contains one comma, so the raw pieces are rejoined pairwise.
func SplitHTTPDateList(v string) ([]string, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	if len(parts)%2 != 0 {
		return nil, &ParseError{Value: v, Type: "http-date list"}
	}
	out := make([]string, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		out = append(out, strings.TrimSpace(parts[i])+","+strings.TrimRight(parts[i+1], " \t"))
	}
	return out, nil
}

// FormatList renders the items of a list whose members target elem as one
// header value.
func (c Text) FormatList(elem *model.Shape, traits model.Traits, items []any) (string, error) {
	strs := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		s, err := c.Format(elem, traits, it)
		if err != nil {
			return "", err
		}
		strs = append(strs, s)
	}
	if elem.Kind == model.KindTimestamp && c.format() == HTTPDate {
		return strings.Join(strs, ", "), nil
	}
	return JoinHeaderList(strs), nil
}

// ParseList is the inverse of FormatList.
func (c Text) ParseList(elem *model.Shape, traits model.Traits, v string) ([]any, error) {
	var (
		strs []string
		err  error
	)
	if elem.Kind == model.KindTimestamp && c.format() == HTTPDate {
		strs, err = SplitHTTPDateList(v)
	} else {
		strs, err = SplitHeaderList(v)
	}
	if err != nil {
		return nil, err
	}
	out := make([]any, len(strs))
	for i, s := range strs {
		if out[i], err = c.Parse(elem, traits, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
