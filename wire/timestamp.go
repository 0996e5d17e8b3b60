// Package wire encodes scalar member values for the places they travel in an
// HTTP message: headers, query strings, URI labels, and JSON documents.
package wire

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/broady/shapeclient/shapegen/model"
)

// TimestampFormat names a wire representation of a timestamp.
type TimestampFormat string

const (
	DateTime     TimestampFormat = "date-time"
	HTTPDate     TimestampFormat = "http-date"
	EpochSeconds TimestampFormat = "epoch-seconds"
)

// DefaultTimestampFormat applies when neither the member nor the protocol
// specify a format.
const DefaultTimestampFormat = DateTime

const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Valid reports whether f is a known format.
func (f TimestampFormat) Valid() bool {
	switch f {
	case DateTime, HTTPDate, EpochSeconds:
		return true
	}
	return false
}

// ResolveTimestampFormat picks the format for a member: the member's
// timestampFormat trait, then the protocol default for the member's location,
// then DefaultTimestampFormat.
func ResolveTimestampFormat(traits model.Traits, locationDefault TimestampFormat) TimestampFormat {
	if f := TimestampFormat(traits.String(model.TraitTimestampFormat)); f.Valid() {
		return f
	}
	if locationDefault.Valid() {
		return locationDefault
	}
	return DefaultTimestampFormat
}

// FormatTimestamp renders t in the given format. Times are always rendered
// in UTC.
func FormatTimestamp(t time.Time, f TimestampFormat) string {
	t = t.UTC()
	switch f {
	case HTTPDate:
		return t.Format(httpDateLayout)
	case EpochSeconds:
		return FormatEpochSeconds(t)
	default:
		return t.Format(time.RFC3339Nano)
	}
}

// FormatEpochSeconds renders t as decimal seconds with at most millisecond
// precision.
func FormatEpochSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', -1, 64)
}

// ParseTimestamp parses s in the given format. The http-date parser also
// accepts the obsolete RFC 850 and asctime forms.
func ParseTimestamp(s string, f TimestampFormat) (time.Time, error) {
	switch f {
	case HTTPDate:
		t, err := http.ParseTime(strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, &ParseError{Value: s, Type: string(f), Err: err}
		}
		return t.UTC(), nil
	case EpochSeconds:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, &ParseError{Value: s, Type: string(f), Err: err}
		}
		return EpochSecondsTime(v), nil
	default:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, &ParseError{Value: s, Type: string(DateTime), Err: err}
		}
		return t.UTC(), nil
	}
}

// EpochSecondsTime converts fractional epoch seconds to a UTC time, rounded
// to the millisecond.
func EpochSecondsTime(v float64) time.Time {
	return time.UnixMilli(int64(math.Round(v * 1000))).UTC()
}
