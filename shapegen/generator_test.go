package shapegen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/shapeclient/internal/testmodel"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/shapegen/sink"
)

func generate(t *testing.T, cfg *Config) (*Result, *sink.MemorySink) {
	t.Helper()
	mem := sink.NewMemorySink()
	cfg.Sink = mem
	res, err := Generate(context.Background(), testmodel.Widgets(), cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res, mem
}

func parse(t *testing.T, mem *sink.MemorySink, name string) *ast.File {
	t.Helper()
	src := mem.Get(name)
	if src == nil {
		t.Fatalf("%s not generated", name)
	}
	f, err := parser.ParseFile(token.NewFileSet(), name, src, parser.ParseComments)
	if err != nil {
		t.Fatalf("%s does not parse: %v\n%s", name, err, src)
	}
	return f
}

type field struct {
	Type string
	Tag  string
}

// structFields returns the fields of a struct type declared in f, keyed by
// name. Embedded fields are keyed by their type.
func structFields(t *testing.T, f *ast.File, name string) map[string]field {
	t.Helper()
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			if ts.Name.Name != name {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				t.Fatalf("%s is not a struct", name)
			}
			out := map[string]field{}
			for _, fl := range st.Fields.List {
				typ := types.ExprString(fl.Type)
				var tag string
				if fl.Tag != nil {
					tag = reflect.StructTag(strings.Trim(fl.Tag.Value, "`")).Get("shape")
				}
				if len(fl.Names) == 0 {
					out[typ] = field{Type: typ}
				}
				for _, n := range fl.Names {
					out[n.Name] = field{Type: typ, Tag: tag}
				}
			}
			return out
		}
	}
	t.Fatalf("type %s not declared", name)
	return nil
}

func funcNames(f *ast.File) []string {
	var out []string
	for _, decl := range f.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			out = append(out, fd.Name.Name)
		}
	}
	return out
}

func constNames(f *ast.File) []string {
	var out []string
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			for _, n := range spec.(*ast.ValueSpec).Names {
				out = append(out, n.Name)
			}
		}
	}
	return out
}

func TestGenerate_Files(t *testing.T) {
	res, mem := generate(t, &Config{Package: "widgets"})

	want := []string{"client.go", "errors.go", "model.json", "types.go"}
	if diff := cmp.Diff(want, res.Files); diff != "" {
		t.Errorf("Files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, mem.Paths()); diff != "" {
		t.Errorf("written (-want +got):\n%s", diff)
	}
	for _, name := range []string{"client.go", "errors.go", "types.go"} {
		f := parse(t, mem, name)
		if f.Name.Name != "widgets" {
			t.Errorf("%s: package %s", name, f.Name.Name)
		}
		if !strings.HasPrefix(string(mem.Get(name)), "// Code generated by shapegen. DO NOT EDIT.") {
			t.Errorf("%s: missing generated notice", name)
		}
	}
}

func TestGenerate_Structures(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets"})
	f := parse(t, mem, "types.go")

	got := structFields(t, f, "WidgetData")
	want := map[string]field{
		"ID":         {"string", "id"},
		"Name":       {"*string", "name"},
		"Tags":       {"[]string", "tags"},
		"Notes":      {"[]*string", "notes"},
		"Attributes": {"map[string]string", "attributes"},
		"Ratings":    {"map[string]*int32", "ratings"},
		"CreatedAt":  {"*time.Time", "createdAt"},
		"ExpiresAt":  {"*time.Time", "expiresAt"},
		"Enabled":    {"*bool", "enabled"},
		"Count":      {"*int32", "count"},
		"Level":      {"*int8", "level"},
		"Weight":     {"*float64", "weight"},
		"Size":       {"*int64", "size"},
		"Shape":      {"*WidgetShape", "shape"},
		"Color":      {"*Color", "color"},
		"Priority":   {"*Priority", "priority"},
		"Parts":      {"[]Part", "parts"},
		"Thumbnail":  {"[]byte", "thumbnail"},
		"Extra":      {"any", "extra"},
		"Serial":     {"*big.Int", "serial"},
		"Price":      {"*big.Float", "price"},
		"Revision":   {"*int32", "revision"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WidgetData (-want +got):\n%s", diff)
	}

	blob := structFields(t, f, "GetBlobOutput")
	if blob["Body"].Type != "io.Reader" {
		t.Errorf("streaming payload type = %s", blob["Body"].Type)
	}
	in := structFields(t, f, "GetWidgetInput")
	if in["IfModifiedSince"].Tag != "ifModifiedSince" {
		t.Errorf("GetWidgetInput fields = %v", in)
	}
}

func TestGenerate_UnionsAndEnums(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets"})
	f := parse(t, mem, "types.go")

	got := structFields(t, f, "WidgetShape")
	want := map[string]field{
		"Circle":     {"*Circle", "circle"},
		"Square":     {"*Square", "square"},
		"Label":      {"*string", "label"},
		"UnknownTag": {"string", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WidgetShape (-want +got):\n%s", diff)
	}

	consts := constNames(f)
	for _, c := range []string{"ColorRed", "ColorGreen", "ColorBlue", "PriorityLow", "PriorityHigh"} {
		if !containsString(consts, c) {
			t.Errorf("missing const %s in %v", c, consts)
		}
	}
	funcs := funcNames(f)
	for _, fn := range []string{"ShapeUnion", "Values"} {
		if !containsString(funcs, fn) {
			t.Errorf("missing method %s", fn)
		}
	}
	src := string(mem.Get("types.go"))
	if !strings.Contains(src, `"red"`) || !strings.Contains(src, "= 2") {
		t.Error("enum values not emitted")
	}
}

func TestGenerate_Errors(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets"})
	f := parse(t, mem, "errors.go")

	got := structFields(t, f, "NotFoundError")
	want := map[string]field{
		"apierror.Meta": {Type: "apierror.Meta"},
		"ResourceID":    {"*string", "resourceId"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NotFoundError (-want +got):\n%s", diff)
	}
	src := string(mem.Get("errors.go"))
	if n := strings.Count(src, "p.RegisterError("); n != 4 {
		t.Errorf("RegisterError calls = %d, want 4", n)
	}
	if !strings.Contains(src, `"example.widgets#ThrottlingError"`) {
		t.Error("errors are registered by absolute shape ID")
	}
	if strings.Contains(src, "_ = document.ToGo") {
		t.Error("member decode errors are discarded")
	}
	if n := strings.Count(src, "return &apierror.ModeledError{Meta: meta"); n != 4 {
		t.Errorf("ModeledError fallbacks = %d, want 4", n)
	}
	if !strings.Contains(src, `Shape: "example.widgets#NotFoundError", Fields: fields}`) {
		t.Error("fallback does not carry the error shape ID")
	}
	if diff := cmp.Diff(map[string]field{"apierror.Meta": {Type: "apierror.Meta"}}, structFields(t, f, "ThrottlingError")); diff != "" {
		t.Errorf("ThrottlingError (-want +got):\n%s", diff)
	}
	if strings.Contains(string(mem.Get("types.go")), "NotFoundError struct") {
		t.Error("error shapes belong in errors.go only")
	}
}

func TestGenerate_Client(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets"})
	f := parse(t, mem, "client.go")

	want := []string{"Model", "New", "Dynamic", "DeleteWidget", "GetBlob", "GetWidget", "ListWidgets", "Ping", "PutWidget", "UploadBlob"}
	if diff := cmp.Diff(want, funcNames(f)); diff != "" {
		t.Errorf("funcs (-want +got):\n%s", diff)
	}

	signatures := map[string]string{}
	for _, decl := range f.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			signatures[fd.Name.Name] = types.ExprString(fd.Type)
		}
	}
	for name, want := range map[string]string{
		"GetWidget":    "func(ctx context.Context, in *GetWidgetInput, plugins ...shapeclient.Plugin) (*GetWidgetOutput, error)",
		"Ping":         "func(ctx context.Context, plugins ...shapeclient.Plugin) (*PingOutput, error)",
		"DeleteWidget": "func(ctx context.Context, in *DeleteWidgetInput, plugins ...shapeclient.Plugin) error",
	} {
		if got := signatures[name]; got != want {
			t.Errorf("%s:\n got %s\nwant %s", name, got, want)
		}
	}

	src := string(mem.Get("client.go"))
	for _, s := range []string{
		`//go:embed model.json`,
		`const ServiceID model.ShapeID = "example.widgets#WidgetService"`,
		`shapeclient.Invoke[struct{}, PingOutput](ctx, c.c, "Ping", nil, plugins...)`,
		`shapeclient.Invoke[DeleteWidgetInput, struct{}](ctx, c.c, "DeleteWidget", in, plugins...)`,
		"// GetWidget fetches a widget by id.",
		"// Manages widgets.",
	} {
		if !strings.Contains(src, s) {
			t.Errorf("client.go missing %q", s)
		}
	}
}

func TestGenerate_ModelRoundTrip(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets", ModelFile: "widgets.json"})
	if !strings.Contains(string(mem.Get("client.go")), "//go:embed widgets.json") {
		t.Error("embed directive does not use ModelFile")
	}
	m, err := model.LoadBytes(mem.Get("widgets.json"))
	if err != nil {
		t.Fatal(err)
	}
	svc, err := m.Service(testmodel.Service)
	if err != nil {
		t.Fatal(err)
	}
	if len(svc.Operations) != 7 {
		t.Errorf("operations = %d", len(svc.Operations))
	}
}

func TestGenerate_Operations(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets", Operations: []string{"Ping"}})

	f := parse(t, mem, "types.go")
	var typeNames []string
	for _, decl := range f.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			typeNames = append(typeNames, gd.Specs[0].(*ast.TypeSpec).Name.Name)
		}
	}
	if diff := cmp.Diff([]string{"PingOutput"}, typeNames); diff != "" {
		t.Errorf("types (-want +got):\n%s", diff)
	}
	// Service errors apply to every operation.
	if n := strings.Count(string(mem.Get("errors.go")), "p.RegisterError("); n != 1 {
		t.Errorf("RegisterError calls = %d, want 1", n)
	}
}

func TestGenerate_Header(t *testing.T) {
	_, mem := generate(t, &Config{Package: "widgets", Header: "Copyright Example\nAll rights reserved."})
	src := string(mem.Get("types.go"))
	if !strings.HasPrefix(src, "// Copyright Example\n// All rights reserved.\n\n// Code generated") {
		t.Errorf("header not emitted:\n%s", src[:80])
	}
}

func TestGenerate_Errs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config is required"},
		{"no output", &Config{Package: "widgets"}, "Out or Sink is required"},
		{"bad package", &Config{Package: "Bad-Name", Sink: sink.NewMemorySink()}, "package"},
		{"unknown service", &Config{Package: "widgets", Service: "a#B", Sink: sink.NewMemorySink()}, "unknown service"},
		{"unknown operation", &Config{Package: "widgets", Operations: []string{"Nope"}, Sink: sink.NewMemorySink()}, `no operation "Nope"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(context.Background(), testmodel.Widgets(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGenerate_Filesystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "widgets")
	if _, err := Generate(context.Background(), testmodel.Widgets(), &Config{Package: "widgets", Out: dir}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"client.go", "errors.go", "model.json", "types.go"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}

	d := sink.NewDiffSink(dir)
	if _, err := Generate(context.Background(), testmodel.Widgets(), &Config{Package: "widgets", Sink: d}); err != nil {
		t.Fatal(err)
	}
	if stale := d.Stale(); len(stale) != 0 {
		t.Errorf("regenerating produced different output: %v", stale)
	}
}

func TestGenerate_ReservedNames(t *testing.T) {
	doc := `{"smithy":"2.0","shapes":{
		"a#Svc":{"type":"service","operations":[{"target":"a#Op"}]},
		"a#Op":{"type":"operation","input":{"target":"a#Client"}},
		"a#Client":{"type":"structure","members":{"error":{"target":"smithy.api#String"}}}
	}}`
	m, err := model.LoadBytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	mem := sink.NewMemorySink()
	res, err := Generate(context.Background(), m, &Config{Package: "a", Sink: mem})
	if err != nil {
		t.Fatal(err)
	}
	got := structFields(t, parse(t, mem, "types.go"), "ClientShape")
	if _, ok := got["Error"]; !ok {
		t.Errorf("fields = %v", got)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "ClientShape") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
