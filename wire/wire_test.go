package wire

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/shapeclient/shapegen/model"
)

func shape(k model.ShapeKind) *model.Shape {
	return &model.Shape{ID: "test#S", Kind: k}
}

func TestTimestampFormats(t *testing.T) {
	ts := time.Date(2019, 12, 16, 23, 48, 18, 0, time.UTC)
	frac := time.Date(2019, 12, 16, 23, 48, 18, 520_000_000, time.UTC)

	tests := []struct {
		name   string
		t      time.Time
		format TimestampFormat
		want   string
	}{
		{"http-date", ts, HTTPDate, "Mon, 16 Dec 2019 23:48:18 GMT"},
		{"date-time", ts, DateTime, "2019-12-16T23:48:18Z"},
		{"date-time fraction", frac, DateTime, "2019-12-16T23:48:18.52Z"},
		{"epoch", ts, EpochSeconds, "1576540098"},
		{"epoch fraction", frac, EpochSeconds, "1576540098.52"},
		{"epoch before 1970", time.UnixMilli(-1500).UTC(), EpochSeconds, "-1.5"},
		{"non-utc input", ts.In(time.FixedZone("X", 3600)), DateTime, "2019-12-16T23:48:18Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatTimestamp(tt.t, tt.format)
			if got != tt.want {
				t.Errorf("FormatTimestamp() = %q, want %q", got, tt.want)
			}
			back, err := ParseTimestamp(got, tt.format)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", got, err)
			}
			if !back.Equal(tt.t) {
				t.Errorf("round trip = %v, want %v", back, tt.t)
			}
		})
	}
}

func TestParseTimestamp_ObsoleteHTTPDates(t *testing.T) {
	want := time.Date(1994, 11, 6, 8, 49, 37, 0, time.UTC)
	for _, s := range []string{
		"Sun, 06 Nov 1994 08:49:37 GMT",
		"Sunday, 06-Nov-94 08:49:37 GMT",
		"Sun Nov  6 08:49:37 1994",
	} {
		got, err := ParseTimestamp(s, HTTPDate)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v", s, got)
		}
	}
}

func TestParseTimestamp_Malformed(t *testing.T) {
	for _, f := range []TimestampFormat{HTTPDate, DateTime, EpochSeconds} {
		_, err := ParseTimestamp("not a time", f)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%s: error = %v, want *ParseError", f, err)
		}
	}
}

func TestResolveTimestampFormat(t *testing.T) {
	withTrait := model.Traits{model.TraitTimestampFormat: []byte(`"epoch-seconds"`)}
	if got := ResolveTimestampFormat(withTrait, HTTPDate); got != EpochSeconds {
		t.Errorf("member trait: got %s", got)
	}
	if got := ResolveTimestampFormat(nil, HTTPDate); got != HTTPDate {
		t.Errorf("location default: got %s", got)
	}
	if got := ResolveTimestampFormat(nil, ""); got != DateTime {
		t.Errorf("global default: got %s", got)
	}
}

func TestText_RoundTrip(t *testing.T) {
	mediaType := model.Traits{model.TraitMediaType: []byte(`"application/json"`)}
	tests := []struct {
		name   string
		codec  Text
		kind   model.ShapeKind
		traits model.Traits
		value  any
		text   string
	}{
		{"bool", Text{}, model.KindBoolean, nil, true, "true"},
		{"int", Text{}, model.KindInteger, nil, int64(-42), "-42"},
		{"long", Text{}, model.KindLong, nil, int64(math.MaxInt64), "9223372036854775807"},
		{"double", Text{}, model.KindDouble, nil, 1.5, "1.5"},
		{"nan", Text{}, model.KindDouble, nil, math.Inf(-1), "-Infinity"},
		{"string", Text{}, model.KindString, nil, "a b", "a b"},
		{"media type header", Text{Base64MediaType: true}, model.KindString, mediaType, `{"a":1}`, "eyJhIjoxfQ=="},
		{"media type query", Text{}, model.KindString, mediaType, `{"a":1}`, `{"a":1}`},
		{"blob", Text{}, model.KindBlob, nil, []byte("hi"), "aGk="},
		{"timestamp", Text{Timestamp: HTTPDate}, model.KindTimestamp, nil, time.Unix(0, 0).UTC(), "Thu, 01 Jan 1970 00:00:00 GMT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shape(tt.kind)
			got, err := tt.codec.Format(s, tt.traits, tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.text {
				t.Errorf("Format() = %q, want %q", got, tt.text)
			}
			back, err := tt.codec.Parse(s, tt.traits, got)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.value, back); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestText_BigNumbers(t *testing.T) {
	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got, err := Text{}.Format(shape(model.KindBigInteger), nil, n)
	if err != nil || got != "123456789012345678901234567890" {
		t.Errorf("Format(bigInteger) = %q, %v", got, err)
	}
	v, err := Text{}.Parse(shape(model.KindBigDecimal), nil, "0.1")
	if err != nil {
		t.Fatal(err)
	}
	if s := FormatBigDecimal(v.(*big.Float)); s != "0.1" {
		t.Errorf("bigDecimal round trip = %q", s)
	}
}

func TestText_Errors(t *testing.T) {
	if _, err := (Text{}).Format(shape(model.KindByte), nil, int64(300)); err == nil {
		t.Error("byte overflow should fail")
	}
	if _, err := (Text{}).Format(shape(model.KindBoolean), nil, "yes"); err == nil {
		t.Error("string for boolean should fail")
	}
	if _, err := (Text{}).Parse(shape(model.KindBoolean), nil, "1"); err == nil {
		t.Error("boolean parse of 1 should fail")
	}
	if _, err := (Text{}).Parse(shape(model.KindInteger), nil, "3000000000"); err == nil {
		t.Error("integer overflow should fail")
	}
	if _, err := (Text{}).Format(shape(model.KindStructure), nil, map[string]any{}); err == nil {
		t.Error("structure as text should fail")
	}
}

func TestHeaderList(t *testing.T) {
	items := []string{"plain", "with, comma", `with "quote"`, ""}
	joined := JoinHeaderList(items)
	if want := `plain, "with, comma", "with \"quote\"", `; joined != want {
		t.Errorf("JoinHeaderList() = %q, want %q", joined, want)
	}
	got, err := SplitHeaderList(joined)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(items, got); diff != "" {
		t.Errorf("split (-want +got):\n%s", diff)
	}

	if _, err := SplitHeaderList(`"open`); err == nil {
		t.Error("unterminated quote should fail")
	}
	if got, _ := SplitHeaderList("  "); got != nil {
		t.Errorf("empty header = %q", got)
	}
}

func TestHTTPDateList(t *testing.T) {
	c := Text{Timestamp: HTTPDate}
	elem := shape(model.KindTimestamp)
	a := time.Date(2019, 12, 16, 23, 48, 18, 0, time.UTC)
	b := a.Add(24 * time.Hour)

	v, err := c.FormatList(elem, nil, []any{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if want := "Mon, 16 Dec 2019 23:48:18 GMT, Tue, 17 Dec 2019 23:48:18 GMT"; v != want {
		t.Errorf("FormatList() = %q", v)
	}
	back, err := c.ParseList(elem, nil, v)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 || !back[0].(time.Time).Equal(a) || !back[1].(time.Time).Equal(b) {
		t.Errorf("ParseList() = %v", back)
	}
	if _, err := SplitHTTPDateList("Mon, 16 Dec 2019 23:48:18 GMT, Tue"); err == nil {
		t.Error("odd number of pieces should fail")
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in     string
		greedy bool
		want   string
	}{
		{"abc", false, "abc"},
		{"a b/c", false, "a%20b%2Fc"},
		{"a b/c", true, "a%20b/c"},
		{"€:@+", false, "%E2%82%AC%3A%40%2B"},
		{"-._~", false, "-._~"},
	}
	for _, tt := range tests {
		if got := EscapeLabel(tt.in, tt.greedy); got != tt.want {
			t.Errorf("EscapeLabel(%q, %v) = %q, want %q", tt.in, tt.greedy, got, tt.want)
		}
	}
}
