package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/broady/shapeclient/shapegen/model"
)

// BigDecimalPrecision is the mantissa precision used for bigDecimal values.
const BigDecimalPrecision = 256

// Special float spellings.
const (
	NaN         = "NaN"
	Infinity    = "Infinity"
	NegInfinity = "-Infinity"
)

// ToInt64 converts any Go integer to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// ToFloat64 converts any Go number to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := ParseFloat(string(n), 64)
		return f, err == nil
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// IntBits returns the bit size of an integer kind.
func IntBits(k model.ShapeKind) int {
	switch k {
	case model.KindByte:
		return 8
	case model.KindShort:
		return 16
	case model.KindInteger, model.KindIntEnum:
		return 32
	default:
		return 64
	}
}

// CheckIntRange returns an error when n overflows the integer kind.
func CheckIntRange(k model.ShapeKind, n int64) error {
	bits := IntBits(k)
	if bits == 64 {
		return nil
	}
	limit := int64(1) << (bits - 1)
	if n < -limit || n >= limit {
		return fmt.Errorf("wire: %d overflows %s", n, k)
	}
	return nil
}

// FormatFloat renders f using the shortest text that round-trips, with the
// NaN and Infinity spellings for non-finite values.
func FormatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return NaN
	case math.IsInf(f, 1):
		return Infinity
	case math.IsInf(f, -1):
		return NegInfinity
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// ParseFloat is the inverse of FormatFloat.
func ParseFloat(s string, bits int) (float64, error) {
	switch s {
	case NaN:
		return math.NaN(), nil
	case Infinity:
		return math.Inf(1), nil
	case NegInfinity:
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil {
		return 0, &ParseError{Value: s, Type: "float", Err: err}
	}
	return f, nil
}

// ParseBigInteger parses a base-10 integer of any size.
func ParseBigInteger(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &ParseError{Value: s, Type: model.KindBigInteger.String()}
	}
	return n, nil
}

// ParseBigDecimal parses a decimal number of any size.
func ParseBigDecimal(s string) (*big.Float, error) {
	f, ok := new(big.Float).SetPrec(BigDecimalPrecision).SetString(s)
	if !ok {
		return nil, &ParseError{Value: s, Type: model.KindBigDecimal.String()}
	}
	return f, nil
}

// FormatBigDecimal renders f as exact decimal text.
func FormatBigDecimal(f *big.Float) string {
	return f.Text('g', -1)
}

// ToBigInt converts integers and *big.Int values.
func ToBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, n != nil
	case json.Number:
		b, err := ParseBigInteger(string(n))
		return b, err == nil
	}
	if i, ok := ToInt64(v); ok {
		return big.NewInt(i), true
	}
	return nil, false
}

// ToBigFloat converts numbers and *big.Float values.
func ToBigFloat(v any) (*big.Float, bool) {
	switch n := v.(type) {
	case *big.Float:
		return n, n != nil
	case json.Number:
		f, err := ParseBigDecimal(string(n))
		return f, err == nil
	case *big.Int:
		return new(big.Float).SetPrec(BigDecimalPrecision).SetInt(n), true
	}
	if i, ok := ToInt64(v); ok {
		return new(big.Float).SetPrec(BigDecimalPrecision).SetInt64(i), true
	}
	if f, ok := ToFloat64(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return new(big.Float).SetPrec(BigDecimalPrecision).SetFloat64(f), true
	}
	return nil, false
}
