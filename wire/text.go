package wire

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/broady/shapeclient/shapegen/model"
)

// Text encodes scalar values as the strings carried in headers, query
// parameters and URI labels.
type Text struct {
	// Timestamp is the resolved format for timestamp values.
	Timestamp TimestampFormat

	// Base64MediaType base64-encodes strings that carry a mediaType trait.
	// Set for headers.
	Base64MediaType bool
}

// Format renders v, a runtime value of shape s with effective traits.
func (c Text) Format(s *model.Shape, traits model.Traits, v any) (string, error) {
	switch s.Kind {
	case model.KindString, model.KindEnum:
		str, ok := v.(string)
		if !ok {
			if st, isStringer := v.(fmt.Stringer); isStringer {
				str = st.String()
			} else {
				return "", &TypeError{Kind: s.Kind.String(), Value: v}
			}
		}
		if c.Base64MediaType && traits.Has(model.TraitMediaType) {
			return base64.StdEncoding.EncodeToString([]byte(str)), nil
		}
		return str, nil
	case model.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		return strconv.FormatBool(b), nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindIntEnum, model.KindLong:
		n, ok := ToInt64(v)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		if err := CheckIntRange(s.Kind, n); err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case model.KindFloat, model.KindDouble:
		f, ok := ToFloat64(v)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		bits := 64
		if s.Kind == model.KindFloat {
			bits = 32
		}
		return FormatFloat(f, bits), nil
	case model.KindBigInteger:
		n, ok := ToBigInt(v)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		return n.String(), nil
	case model.KindBigDecimal:
		f, ok := ToBigFloat(v)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		return FormatBigDecimal(f), nil
	case model.KindTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		return FormatTimestamp(t, c.format()), nil
	case model.KindBlob:
		b, ok := v.([]byte)
		if !ok {
			return "", &TypeError{Kind: s.Kind.String(), Value: v}
		}
		return base64.StdEncoding.EncodeToString(b), nil
	}
	return "", fmt.Errorf("wire: %s values cannot be carried as text", s.Kind)
}

// Parse decodes text into a runtime value of shape s.
func (c Text) Parse(s *model.Shape, traits model.Traits, text string) (any, error) {
	switch s.Kind {
	case model.KindString, model.KindEnum:
		if c.Base64MediaType && traits.Has(model.TraitMediaType) {
			b, err := base64.StdEncoding.DecodeString(text)
			if err != nil {
				return nil, &ParseError{Value: text, Type: "base64 " + s.Kind.String(), Err: err}
			}
			return string(b), nil
		}
		return text, nil
	case model.KindBoolean:
		switch text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, &ParseError{Value: text, Type: s.Kind.String()}
	case model.KindByte, model.KindShort, model.KindInteger, model.KindIntEnum, model.KindLong:
		n, err := strconv.ParseInt(text, 10, IntBits(s.Kind))
		if err != nil {
			return nil, &ParseError{Value: text, Type: s.Kind.String(), Err: err}
		}
		return n, nil
	case model.KindFloat, model.KindDouble:
		bits := 64
		if s.Kind == model.KindFloat {
			bits = 32
		}
		f, err := ParseFloat(text, bits)
		if err != nil {
			return nil, err
		}
		return f, nil
	case model.KindBigInteger:
		return ParseBigInteger(text)
	case model.KindBigDecimal:
		return ParseBigDecimal(text)
	case model.KindTimestamp:
		return ParseTimestamp(text, c.format())
	case model.KindBlob:
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, &ParseError{Value: text, Type: s.Kind.String(), Err: err}
		}
		return b, nil
	}
	return nil, fmt.Errorf("wire: %s values cannot be carried as text", s.Kind)
}

func (c Text) format() TimestampFormat {
	if c.Timestamp.Valid() {
		return c.Timestamp
	}
	return DefaultTimestampFormat
}
