package document

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/wire"
)

type plan interface {
	encode(v any) (any, error)
	decode(doc any) (any, error)
}

type stringPlan struct{ id model.ShapeID }

func (p stringPlan) encode(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, mismatch(p.id, "string", v)
}

func (p stringPlan) decode(doc any) (any, error) {
	if s, ok := doc.(string); ok {
		return s, nil
	}
	return nil, mismatch(p.id, "string", doc)
}

type boolPlan struct{ id model.ShapeID }

func (p boolPlan) encode(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, mismatch(p.id, "boolean", v)
}

func (p boolPlan) decode(doc any) (any, error) {
	return p.encode(doc)
}

type intPlan struct {
	id   model.ShapeID
	kind model.ShapeKind
}

func (p intPlan) encode(v any) (any, error) {
	n, ok := wire.ToInt64(v)
	if !ok {
		return nil, mismatch(p.id, p.kind.String(), v)
	}
	if err := wire.CheckIntRange(p.kind, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (p intPlan) decode(doc any) (any, error) {
	if f, ok := doc.(float64); ok {
		if f != math.Trunc(f) {
			return nil, mismatch(p.id, p.kind.String(), doc)
		}
		doc = int64(f)
	}
	return p.encode(doc)
}

type floatPlan struct{ id model.ShapeID }

func (p floatPlan) encode(v any) (any, error) {
	f, ok := wire.ToFloat64(v)
	if !ok {
		return nil, mismatch(p.id, "float", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return wire.FormatFloat(f, 64), nil
	}
	return f, nil
}

func (p floatPlan) decode(doc any) (any, error) {
	switch d := doc.(type) {
	case string:
		switch d {
		case wire.NaN, wire.Infinity, wire.NegInfinity:
			return wire.ParseFloat(d, 64)
		}
		return nil, mismatch(p.id, "float", doc)
	case json.Number:
		return wire.ParseFloat(string(d), 64)
	}
	return p.encode(doc)
}

type bigIntPlan struct{ id model.ShapeID }

func (p bigIntPlan) encode(v any) (any, error) {
	n, ok := wire.ToBigInt(v)
	if !ok {
		return nil, mismatch(p.id, "bigInteger", v)
	}
	return json.Number(n.String()), nil
}

func (p bigIntPlan) decode(doc any) (any, error) {
	switch d := doc.(type) {
	case json.Number:
		return wire.ParseBigInteger(string(d))
	case float64:
		if d != math.Trunc(d) || math.IsInf(d, 0) {
			return nil, mismatch(p.id, "bigInteger", doc)
		}
		n, _ := big.NewFloat(d).Int(nil)
		return n, nil
	}
	return nil, mismatch(p.id, "bigInteger", doc)
}

type bigDecimalPlan struct{ id model.ShapeID }

func (p bigDecimalPlan) encode(v any) (any, error) {
	f, ok := wire.ToBigFloat(v)
	if !ok {
		return nil, mismatch(p.id, "bigDecimal", v)
	}
	return json.Number(wire.FormatBigDecimal(f)), nil
}

func (p bigDecimalPlan) decode(doc any) (any, error) {
	switch d := doc.(type) {
	case json.Number:
		return wire.ParseBigDecimal(string(d))
	case float64:
		f, ok := wire.ToBigFloat(d)
		if !ok {
			return nil, mismatch(p.id, "bigDecimal", doc)
		}
		return f, nil
	}
	return nil, mismatch(p.id, "bigDecimal", doc)
}

type timestampPlan struct {
	id     model.ShapeID
	format wire.TimestampFormat
}

func (p timestampPlan) encode(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, mismatch(p.id, "timestamp", v)
	}
	s := wire.FormatTimestamp(t, p.format)
	if p.format == wire.EpochSeconds {
		return json.Number(s), nil
	}
	return s, nil
}

func (p timestampPlan) decode(doc any) (any, error) {
	switch d := doc.(type) {
	case string:
		return wire.ParseTimestamp(d, p.format)
	case json.Number:
		if p.format == wire.EpochSeconds {
			return wire.ParseTimestamp(string(d), wire.EpochSeconds)
		}
	case float64:
		if p.format == wire.EpochSeconds && !math.IsNaN(d) && !math.IsInf(d, 0) {
			return wire.EpochSecondsTime(d), nil
		}
	}
	return nil, mismatch(p.id, "timestamp ("+string(p.format)+")", doc)
}

type blobPlan struct{ id model.ShapeID }

func (p blobPlan) encode(v any) (any, error) {
	switch b := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(b), nil
	case string:
		return base64.StdEncoding.EncodeToString([]byte(b)), nil
	}
	return nil, mismatch(p.id, "blob", v)
}

func (p blobPlan) decode(doc any) (any, error) {
	s, ok := doc.(string)
	if !ok {
		return nil, mismatch(p.id, "base64 string", doc)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &wire.ParseError{Value: s, Type: "blob", Err: err}
	}
	return b, nil
}

// documentPlan passes untyped documents through unchanged.
type documentPlan struct{}

func (documentPlan) encode(v any) (any, error)   { return v, nil }
func (documentPlan) decode(doc any) (any, error) { return doc, nil }

// listPlan handles lists and sets. Nulls survive only in sparse lists.
type listPlan struct {
	id     model.ShapeID
	elem   plan
	sparse bool
}

func (p *listPlan) encode(v any) (any, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, mismatch(p.id, "list", v)
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		if it == nil {
			if p.sparse {
				out = append(out, nil)
			}
			continue
		}
		e, err := p.elem.encode(it)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *listPlan) decode(doc any) (any, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, mismatch(p.id, "array", doc)
	}
	out := make([]any, 0, len(items))
	for i, it := range items {
		if it == nil {
			if p.sparse {
				out = append(out, nil)
			}
			continue
		}
		e, err := p.elem.decode(it)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// mapPlan handles string-keyed maps. Null values survive only in sparse maps.
type mapPlan struct {
	id     model.ShapeID
	value  plan
	sparse bool
}

func (p *mapPlan) encode(v any) (any, error) {
	entries, ok := asMap(v)
	if !ok {
		return nil, mismatch(p.id, "map", v)
	}
	return p.convert(entries, p.value.encode)
}

func (p *mapPlan) decode(doc any) (any, error) {
	entries, ok := doc.(map[string]any)
	if !ok {
		return nil, mismatch(p.id, "object", doc)
	}
	return p.convert(entries, p.value.decode)
}

func (p *mapPlan) convert(entries map[string]any, fn func(any) (any, error)) (any, error) {
	out := make(map[string]any, len(entries))
	for k, it := range entries {
		if it == nil {
			if p.sparse {
				out[k] = nil
			}
			continue
		}
		e, err := fn(it)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		out[k] = e
	}
	return out, nil
}

type field struct {
	name         string
	wire         string
	required     bool
	plan         plan
	defaultValue json.RawMessage
}

type structPlan struct {
	id     model.ShapeID
	fields []*field
	byName map[string]*field
}

func newStructPlan(id model.ShapeID, fields []*field) *structPlan {
	p := &structPlan{id: id, fields: fields, byName: make(map[string]*field, len(fields))}
	for _, f := range fields {
		p.byName[f.name] = f
	}
	return p
}

func (p *structPlan) encode(v any) (any, error) {
	return p.encodeFields(v, nil)
}

func (p *structPlan) decode(doc any) (any, error) {
	return p.decodeFields(doc, nil)
}

// selected returns the fields to process: all of them, or only names.
func (p *structPlan) selected(names []string) []*field {
	if names == nil {
		return p.fields
	}
	out := make([]*field, 0, len(names))
	for _, n := range names {
		if f, ok := p.byName[n]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *structPlan) encodeFields(v any, names []string) (map[string]any, error) {
	values, ok := asMap(v)
	if !ok {
		return nil, mismatch(p.id, "structure", v)
	}
	out := make(map[string]any)
	for _, f := range p.selected(names) {
		val := values[f.name]
		if val == nil {
			if f.required {
				return nil, &MissingRequiredFieldError{Shape: p.id, Member: f.name}
			}
			continue
		}
		e, err := f.plan.encode(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		out[f.wire] = e
	}
	return out, nil
}

func (p *structPlan) decodeFields(doc any, names []string) (map[string]any, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, mismatch(p.id, "object", doc)
	}
	out := make(map[string]any)
	for _, f := range p.selected(names) {
		raw := obj[f.wire]
		if raw == nil {
			if f.defaultValue != nil {
				if dv, ok := decodeDefault(f.defaultValue); ok {
					if val, err := f.plan.decode(dv); err == nil {
						out[f.name] = val
					}
				}
				continue
			}
			if f.required {
				return nil, &MissingRequiredFieldError{Shape: p.id, Member: f.name}
			}
			continue
		}
		val, err := f.plan.decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		out[f.name] = val
	}
	return out, nil
}

type unionPlan struct {
	id     model.ShapeID
	byName map[string]*field
	byWire map[string]*field
}

func newUnionPlan(id model.ShapeID, fields []*field) *unionPlan {
	p := &unionPlan{id: id, byName: make(map[string]*field), byWire: make(map[string]*field)}
	for _, f := range fields {
		p.byName[f.name] = f
		p.byWire[f.wire] = f
	}
	return p
}

func (p *unionPlan) encode(v any) (any, error) {
	var u Union
	switch x := v.(type) {
	case Union:
		u = x
	case *Union:
		u = *x
	case UnknownVariant:
		return nil, &MalformedUnionError{Shape: p.id, Reason: fmt.Sprintf("unknown variant %q cannot be serialized", x.Tag)}
	case map[string]any:
		set := 0
		for k, val := range x {
			if val != nil {
				u = Union{Tag: k, Value: val}
				set++
			}
		}
		if set != 1 {
			return nil, &MalformedUnionError{Shape: p.id, Reason: fmt.Sprintf("%d variants set", set)}
		}
	default:
		return nil, mismatch(p.id, "union", v)
	}
	f, ok := p.byName[u.Tag]
	if !ok {
		return nil, &MalformedUnionError{Shape: p.id, Reason: fmt.Sprintf("no variant named %q", u.Tag)}
	}
	if u.Value == nil {
		return nil, &MalformedUnionError{Shape: p.id, Reason: fmt.Sprintf("variant %q has no value", u.Tag)}
	}
	e, err := f.plan.encode(u.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.Tag, err)
	}
	return map[string]any{f.wire: e}, nil
}

func (p *unionPlan) decode(doc any) (any, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, mismatch(p.id, "object", doc)
	}
	var (
		tag string
		raw any
		set int
	)
	for k, v := range obj {
		if v == nil || k == "__type" {
			continue
		}
		tag, raw = k, v
		set++
	}
	if set != 1 {
		return nil, &MalformedUnionError{Shape: p.id, Reason: fmt.Sprintf("expected exactly one variant, found %d", set)}
	}
	f, ok := p.byWire[tag]
	if !ok {
		return UnknownVariant{Tag: tag}, nil
	}
	val, err := f.plan.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	return Union{Tag: f.name, Value: val}, nil
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
