package document

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/shapeclient/internal/testmodel"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/wire"
)

var bigCmp = cmp.Options{
	cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 }),
	cmp.Comparer(func(a, b *big.Float) bool { return a.Cmp(b) == 0 }),
}

func newCodec() *Codec {
	return NewCodec(testmodel.Widgets(), Settings{})
}

func fullWidget() map[string]any {
	serial, _ := new(big.Int).SetString("98765432109876543210", 10)
	price, _ := wire.ParseBigDecimal("19.99")
	return map[string]any{
		"id":         "w-1",
		"name":       "Sprocket",
		"tags":       []any{"a", "b"},
		"notes":      []any{"first", nil, "third"},
		"attributes": map[string]any{"k": "v"},
		"ratings":    map[string]any{"good": int64(5), "unrated": nil},
		"createdAt":  time.Date(2024, 3, 1, 12, 0, 0, 250_000_000, time.UTC),
		"expiresAt":  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		"enabled":    true,
		"count":      int64(7),
		"level":      int64(-3),
		"weight":     2.5,
		"size":       int64(math.MaxInt64),
		"shape":      Union{Tag: "circle", Value: map[string]any{"radius": 1.5}},
		"color":      "green",
		"priority":   int64(2),
		"parts":      []any{map[string]any{"name": "bolt", "quantity": int64(4)}},
		"thumbnail":  []byte{0xff, 0x00, 0x10},
		"extra":      map[string]any{"free": []any{"form", json.Number("1")}},
		"serial":     serial,
		"price":      price,
		"revision":   int64(3),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newCodec()
	id := testmodel.ID("WidgetData")
	in := fullWidget()

	data, err := c.Marshal(id, in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Unmarshal(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out, bigCmp); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestCodec_WireForm(t *testing.T) {
	c := newCodec()
	doc, err := c.Serialize(testmodel.ID("WidgetData"), fullWidget())
	if err != nil {
		t.Fatal(err)
	}
	obj := doc.(map[string]any)

	if _, ok := obj["name"]; ok {
		t.Error("jsonName member serialized under member name")
	}
	if obj["displayName"] != "Sprocket" {
		t.Errorf("displayName = %v", obj["displayName"])
	}
	if got := obj["createdAt"]; got != json.Number("1709294400.25") {
		t.Errorf("createdAt = %#v, want epoch seconds", got)
	}
	if got := obj["expiresAt"]; got != "2025-03-01T12:00:00Z" {
		t.Errorf("expiresAt = %#v, want date-time", got)
	}
	if got := obj["thumbnail"]; got != "/wAQ" {
		t.Errorf("thumbnail = %#v", got)
	}
	if got := obj["serial"]; got != json.Number("98765432109876543210") {
		t.Errorf("serial = %#v", got)
	}
	if diff := cmp.Diff(map[string]any{"circle": map[string]any{"radius": 1.5}}, obj["shape"]); diff != "" {
		t.Errorf("shape (-want +got):\n%s", diff)
	}
}

func TestCodec_IgnoreJSONName(t *testing.T) {
	c := NewCodec(testmodel.Widgets(), Settings{IgnoreJSONName: true, TimestampFormat: wire.DateTime})
	doc, err := c.Serialize(testmodel.ID("WidgetData"), map[string]any{
		"id":        "x",
		"name":      "n",
		"createdAt": time.Unix(0, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"id": "x", "name": "n", "createdAt": "1970-01-01T00:00:00Z"}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCodec_Nulls(t *testing.T) {
	c := newCodec()
	id := testmodel.ID("WidgetData")

	doc, err := c.Serialize(id, map[string]any{
		"id":         "x",
		"tags":       []any{"a", nil, "b"},
		"notes":      []any{"a", nil},
		"attributes": map[string]any{"k": nil, "j": "v"},
		"ratings":    map[string]any{"k": nil},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"id":         "x",
		"tags":       []any{"a", "b"},
		"notes":      []any{"a", nil},
		"attributes": map[string]any{"j": "v"},
		"ratings":    map[string]any{"k": nil},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("serialize (-want +got):\n%s", diff)
	}

	got, err := c.Unmarshal(id, []byte(`{"id":"x","tags":[null,"a"],"notes":[null],"attributes":{"k":null},"ratings":{"k":null}}`))
	if err != nil {
		t.Fatal(err)
	}
	want = map[string]any{
		"id":         "x",
		"tags":       []any{"a"},
		"notes":      []any{nil},
		"attributes": map[string]any{},
		"ratings":    map[string]any{"k": nil},
		"revision":   int64(0),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("deserialize (-want +got):\n%s", diff)
	}
}

func TestCodec_Required(t *testing.T) {
	c := newCodec()
	id := testmodel.ID("WidgetData")

	_, err := c.Unmarshal(id, []byte(`{"displayName":"no id"}`))
	var missing *MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingRequiredFieldError", err)
	}
	if missing.Member != "id" || missing.Shape != id {
		t.Errorf("missing = %+v", missing)
	}

	_, err = c.Serialize(id, map[string]any{"name": "no id"})
	if !errors.As(err, &missing) {
		t.Errorf("serialize error = %v, want MissingRequiredFieldError", err)
	}

	// Nested required members are checked too.
	_, err = c.Unmarshal(id, []byte(`{"id":"x","parts":[{"quantity":1}]}`))
	if !errors.As(err, &missing) || missing.Member != "name" {
		t.Errorf("nested error = %v", err)
	}
}

func TestCodec_DefaultMembers(t *testing.T) {
	out, err := newCodec().Unmarshal(testmodel.ID("WidgetData"), []byte(`{"id":"x","unknown":true}`))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"id": "x", "revision": int64(0)}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCodec_Unions(t *testing.T) {
	c := newCodec()
	id := testmodel.ID("WidgetShape")

	tests := []struct {
		name    string
		json    string
		want    any
		wantErr bool
	}{
		{"known", `{"label":"hi"}`, Union{Tag: "label", Value: "hi"}, false},
		{"unknown tag", `{"hexagon":{"sides":6}}`, UnknownVariant{Tag: "hexagon"}, false},
		{"type marker ignored", `{"__type":"x","label":"hi"}`, Union{Tag: "label", Value: "hi"}, false},
		{"empty", `{}`, nil, true},
		{"two tags", `{"label":"a","circle":{"radius":1}}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Unmarshal(id, []byte(tt.json))
			if tt.wantErr {
				var mu *MalformedUnionError
				if !errors.As(err, &mu) {
					t.Fatalf("error = %v, want MalformedUnionError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	for _, bad := range []any{
		UnknownVariant{Tag: "hexagon"},
		Union{Tag: "triangle", Value: "x"},
		Union{Tag: "label"},
		map[string]any{"label": "a", "square": map[string]any{"side": 2.0}},
	} {
		var mu *MalformedUnionError
		if _, err := c.Serialize(id, bad); !errors.As(err, &mu) {
			t.Errorf("Serialize(%v) error = %v, want MalformedUnionError", bad, err)
		}
	}
}

func TestCodec_TypeMismatch(t *testing.T) {
	c := newCodec()
	tests := []struct {
		id  model.ShapeID
		doc any
	}{
		{testmodel.ID("WidgetData"), []any{}},
		{testmodel.ID("TagList"), "not a list"},
		{testmodel.ID("AttributeMap"), []any{"x"}},
		{"smithy.api#Integer", "1"},
		{"smithy.api#Integer", 1.5},
		{"smithy.api#Boolean", "true"},
		{"smithy.api#Timestamp", true},
	}
	for _, tt := range tests {
		var tm *TypeMismatchError
		if _, err := c.Deserialize(tt.id, tt.doc); !errors.As(err, &tm) {
			t.Errorf("Deserialize(%s, %#v) error = %v, want TypeMismatchError", tt.id, tt.doc, err)
		}
	}
}

func TestCodec_Floats(t *testing.T) {
	c := newCodec()
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0.1} {
		doc, err := c.Serialize("smithy.api#Double", f)
		if err != nil {
			t.Fatal(err)
		}
		back, err := c.Deserialize("smithy.api#Double", doc)
		if err != nil {
			t.Fatal(err)
		}
		g := back.(float64)
		if math.IsNaN(f) != math.IsNaN(g) || (!math.IsNaN(f) && f != g) {
			t.Errorf("round trip of %v = %v (wire %#v)", f, g, doc)
		}
	}
	if doc, _ := c.Serialize("smithy.api#Double", math.Inf(1)); doc != "Infinity" {
		t.Errorf("Infinity serialized as %#v", doc)
	}
}

func TestCodec_IntegerRange(t *testing.T) {
	c := newCodec()
	if _, err := c.Deserialize("smithy.api#Byte", json.Number("128")); err == nil {
		t.Error("128 should overflow a byte")
	}
	if _, err := c.Serialize("smithy.api#Short", int64(40000)); err == nil {
		t.Error("40000 should overflow a short")
	}
	v, err := c.Deserialize("smithy.api#Long", json.Number("9223372036854775807"))
	if err != nil || v != int64(math.MaxInt64) {
		t.Errorf("long = %v, %v", v, err)
	}
}

func TestCodec_MembersSubset(t *testing.T) {
	c := newCodec()
	op := testmodel.Operation(c.Model(), "PutWidget")
	in := map[string]any{
		"id":     "abc",
		"name":   "n",
		"dryRun": true,
		"color":  "red",
	}
	doc, err := c.SerializeMembers(op.Input.ID, in, []string{"name", "color"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"displayName": "n", "color": "red"}, doc); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	back, err := c.DeserializeMembers(op.Input.ID, map[string]any{"displayName": "n", "id": "ignored"}, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"name": "n"}, back); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDecode_Empty(t *testing.T) {
	v, err := Decode([]byte("  \n"))
	if err != nil || v != nil {
		t.Errorf("Decode(empty) = %v, %v", v, err)
	}
}
