package document

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"time"
)

// TagName is the struct tag that names the member a Go field carries.
const TagName = "shape"

// UnknownTagField is the field generated unions use to report an unknown
// variant.
const UnknownTagField = "UnknownTag"

var (
	timeType    = reflect.TypeOf(time.Time{})
	bigIntType  = reflect.TypeOf((*big.Int)(nil))
	bigFlType   = reflect.TypeOf((*big.Float)(nil))
	numberType  = reflect.TypeOf(json.Number(""))
	readerType  = reflect.TypeOf((*io.Reader)(nil)).Elem()
	goUnionType = reflect.TypeOf((*GoUnion)(nil)).Elem()
)

type goField struct {
	index  int
	member string
}

var fieldCache sync.Map // reflect.Type -> []goField

func goFields(t reflect.Type) []goField {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]goField)
	}
	var fields []goField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get(TagName), ",")
		if name == "-" || name == "" {
			continue
		}
		fields = append(fields, goField{index: i, member: name})
	}
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]goField)
}

// FromGo converts a generated Go value into a runtime value. Structs are
// read through their shape tags; nil pointers, slices and maps are absent.
func FromGo(v any) any {
	if v == nil {
		return nil
	}
	return fromValue(reflect.ValueOf(v))
}

func fromValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if t := rv.Type(); t == bigIntType || t == bigFlType || t.Implements(readerType) {
			return rv.Interface()
		}
		return fromValue(rv.Elem())
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return fromValue(rv.Elem())
	}

	t := rv.Type()
	switch {
	case t == timeType, t == numberType:
		return rv.Interface()
	case t.Implements(goUnionType) || reflect.PointerTo(t).Implements(goUnionType):
		return fromUnion(rv)
	case t.Implements(readerType):
		return rv.Interface()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = fromValue(rv.Index(i))
		}
		return out
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = fromValue(rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = fromValue(iter.Value())
		}
		return out
	case reflect.Struct:
		out := make(map[string]any)
		for _, f := range goFields(t) {
			if v := fromValue(rv.Field(f.index)); v != nil {
				out[f.member] = v
			}
		}
		return out
	}
	return rv.Interface()
}

func fromUnion(rv reflect.Value) any {
	for _, f := range goFields(rv.Type()) {
		fv := rv.Field(f.index)
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if v := fromValue(fv); v != nil {
			return Union{Tag: f.member, Value: v}
		}
	}
	if uf := rv.FieldByName(UnknownTagField); uf.IsValid() && uf.Kind() == reflect.String && uf.String() != "" {
		return UnknownVariant{Tag: uf.String()}
	}
	return nil
}

// ToGo stores a runtime value into the Go value out points to.
func ToGo(v any, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("document: ToGo needs a non-nil pointer, got %T", out)
	}
	return toValue(v, rv.Elem())
}

func toValue(v any, dst reflect.Value) error {
	if v == nil {
		return nil
	}
	src := reflect.ValueOf(v)
	t := dst.Type()
	if src.Type().AssignableTo(t) {
		dst.Set(src)
		return nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := reflect.New(t.Elem())
		if err := toValue(v, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if t.Implements(goUnionType) || reflect.PointerTo(t).Implements(goUnionType) {
		return toUnion(v, dst)
	}

	switch t.Kind() {
	case reflect.String:
		s, ok := v.(string)
		if !ok {
			break
		}
		dst.SetString(s)
		return nil
	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			break
		}
		dst.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(int64)
		if !ok {
			break
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("document: %d overflows %s", n, t)
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := v.(int64)
		if !ok || n < 0 || dst.OverflowUint(uint64(n)) {
			break
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		switch n := v.(type) {
		case float64:
			dst.SetFloat(n)
			return nil
		case int64:
			dst.SetFloat(float64(n))
			return nil
		}
	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			break
		}
		s := reflect.MakeSlice(t, len(items), len(items))
		for i, it := range items {
			if err := toValue(it, s.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(s)
		return nil
	case reflect.Map:
		entries, ok := v.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			break
		}
		m := reflect.MakeMapWithSize(t, len(entries))
		for k, it := range entries {
			ev := reflect.New(t.Elem()).Elem()
			if err := toValue(it, ev); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
		dst.Set(m)
		return nil
	case reflect.Struct:
		entries, ok := v.(map[string]any)
		if !ok {
			break
		}
		for _, f := range goFields(t) {
			if err := toValue(entries[f.member], dst.Field(f.index)); err != nil {
				return fmt.Errorf("%s: %w", f.member, err)
			}
		}
		return nil
	}
	return fmt.Errorf("document: cannot store %T in %s", v, t)
}

func toUnion(v any, dst reflect.Value) error {
	switch u := v.(type) {
	case Union:
		for _, f := range goFields(dst.Type()) {
			if f.member == u.Tag {
				return toValue(u.Value, dst.Field(f.index))
			}
		}
		return fmt.Errorf("document: %s has no variant %q", dst.Type(), u.Tag)
	case UnknownVariant:
		if uf := dst.FieldByName(UnknownTagField); uf.IsValid() && uf.Kind() == reflect.String {
			uf.SetString(u.Tag)
		}
		return nil
	}
	return fmt.Errorf("document: cannot store %T in union %s", v, dst.Type())
}
