package shapegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/broady/shapeclient/shapegen/model"
)

const generatedNotice = "// Code generated by shapegen. DO NOT EDIT.\n"

// Imports every generated file may use. Unused ones are removed when the
// file is formatted.
var runtimeImports = []string{
	"context",
	"io",
	"math/big",
	"sync",
	"time",
	"github.com/broady/shapeclient",
	"github.com/broady/shapeclient/apierror",
	"github.com/broady/shapeclient/document",
	"github.com/broady/shapeclient/httpbinding",
	"github.com/broady/shapeclient/shapegen/model",
}

// Names a field must not take in error and union types: a field would hide
// the promoted or declared method of the same name.
var (
	errorReserved = []string{"Meta", "Error", "ErrorCode", "ErrorMessage", "ErrorFault", "HTTPStatusCode", "RetryInfo", "SetMeta"}
	unionReserved = []string{"ShapeUnion", "UnknownTag"}
)

func (g *generator) header(buf *bytes.Buffer, extraImports ...string) {
	if g.cfg.Header != "" {
		for _, line := range strings.Split(strings.TrimRight(g.cfg.Header, "\n"), "\n") {
			fmt.Fprintf(buf, "// %s\n", line)
		}
		buf.WriteString("\n")
	}
	buf.WriteString(generatedNotice)
	fmt.Fprintf(buf, "\npackage %s\n\nimport (\n", g.cfg.Package)
	for _, imp := range extraImports {
		fmt.Fprintf(buf, "\t%s\n", imp)
	}
	for _, imp := range runtimeImports {
		fmt.Fprintf(buf, "\t%q\n", imp)
	}
	buf.WriteString(")\n\n")
}

func (g *generator) typesFile() ([]byte, error) {
	var buf bytes.Buffer
	g.header(&buf)
	for _, s := range g.shapes {
		var err error
		switch {
		case s.IsError():
			continue
		case s.Kind == model.KindStructure:
			err = g.emitStruct(&buf, s)
		case s.Kind == model.KindUnion:
			err = g.emitUnion(&buf, s)
		case s.Kind == model.KindEnum:
			g.emitEnum(&buf, s)
		case s.Kind == model.KindIntEnum:
			err = g.emitIntEnum(&buf, s)
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (g *generator) emitStruct(buf *bytes.Buffer, s *model.Shape) error {
	name := g.typeName[s.ID]
	buf.WriteString(docComment(name, s.Documentation()))
	fmt.Fprintf(buf, "type %s struct {\n", name)
	if err := g.emitFields(buf, s, false); err != nil {
		return err
	}
	buf.WriteString("}\n\n")
	return nil
}

func (g *generator) emitUnion(buf *bytes.Buffer, s *model.Shape) error {
	name := g.typeName[s.ID]
	if doc := docComment(name, s.Documentation()); doc != "" {
		buf.WriteString(doc)
		buf.WriteString("//\n")
	}
	fmt.Fprintf(buf, "// %s is a union: set exactly one field.\n", name)
	fmt.Fprintf(buf, "type %s struct {\n", name)
	if err := g.emitFields(buf, s, true); err != nil {
		return err
	}
	buf.WriteString("\n\t// UnknownTag names a variant this client does not know. It is set\n")
	buf.WriteString("\t// only on received values.\n")
	buf.WriteString("\tUnknownTag string\n}\n\n")
	fmt.Fprintf(buf, "func (%s) ShapeUnion() {}\n\n", name)
	return nil
}

// emitFields writes one tagged field per member. Union variants and
// optional members are nilable so that absence is distinguishable.
func (g *generator) emitFields(buf *bytes.Buffer, s *model.Shape, union bool) error {
	used := make(map[string]bool)
	reserved := lo.Ternary(union, unionReserved, nil)
	if s.IsError() {
		reserved = errorReserved
	}
	for _, mem := range s.Members {
		if s.IsError() && strings.EqualFold(mem.Name, "message") {
			continue
		}
		target, err := g.model.Target(mem)
		if err != nil {
			return err
		}
		field := g.names.exported(mem.Name)
		for used[field] || lo.Contains(reserved, field) {
			g.warnf("member %s renamed to Go field %s_", mem.ID(), field)
			field += "_"
		}
		used[field] = true

		typ, err := g.goType(target)
		if err != nil {
			return fmt.Errorf("member %s: %w", mem.ID(), err)
		}
		if (union || !mem.IsRequired()) && pointable(target) {
			typ = "*" + typ
		}
		buf.WriteString(indent(docComment(field, mem.Traits.String(model.TraitDocumentation))))
		fmt.Fprintf(buf, "\t%s %s `shape:%q`\n", field, typ, mem.Name)
	}
	return nil
}

func (g *generator) emitEnum(buf *bytes.Buffer, s *model.Shape) {
	name := g.typeName[s.ID]
	buf.WriteString(docComment(name, s.Documentation()))
	fmt.Fprintf(buf, "type %s string\n\n", name)
	fmt.Fprintf(buf, "// Known values of %s. Servers may send others.\nconst (\n", name)
	consts := make([]string, 0, len(s.Members))
	for _, mem := range s.Members {
		c := name + g.names.exported(mem.Name)
		consts = append(consts, c)
		fmt.Fprintf(buf, "\t%s %s = %q\n", c, name, mem.EnumValue())
	}
	buf.WriteString(")\n\n")
	g.emitValues(buf, name, consts)
}

func (g *generator) emitIntEnum(buf *bytes.Buffer, s *model.Shape) error {
	name := g.typeName[s.ID]
	buf.WriteString(docComment(name, s.Documentation()))
	fmt.Fprintf(buf, "type %s int32\n\n", name)
	fmt.Fprintf(buf, "// Known values of %s. Servers may send others.\nconst (\n", name)
	consts := make([]string, 0, len(s.Members))
	for _, mem := range s.Members {
		v, ok := mem.IntEnumValue()
		if !ok {
			return fmt.Errorf("member %s has no integer enum value", mem.ID())
		}
		c := name + g.names.exported(mem.Name)
		consts = append(consts, c)
		fmt.Fprintf(buf, "\t%s %s = %d\n", c, name, v)
	}
	buf.WriteString(")\n\n")
	g.emitValues(buf, name, consts)
	return nil
}

func (g *generator) emitValues(buf *bytes.Buffer, name string, consts []string) {
	fmt.Fprintf(buf, "// Values returns the known values of %s.\n", name)
	fmt.Fprintf(buf, "func (%s) Values() []%s {\n\treturn []%s{%s}\n}\n\n", name, name, name, strings.Join(consts, ", "))
}

func (g *generator) errorsFile() ([]byte, error) {
	var buf bytes.Buffer
	g.header(&buf)

	var errs []*model.Shape
	for _, s := range g.shapes {
		if s.IsError() {
			errs = append(errs, s)
		}
	}
	for _, s := range errs {
		name := g.typeName[s.ID]
		if doc := docComment(name, s.Documentation()); doc != "" {
			buf.WriteString(doc)
		} else {
			fmt.Fprintf(&buf, "// %s is returned for the %s error.\n", name, s.ID.Name())
		}
		var fields bytes.Buffer
		if err := g.emitFields(&fields, s, false); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "type %s struct {\n\tapierror.Meta\n", name)
		if fields.Len() > 0 {
			buf.WriteString("\n")
			buf.Write(fields.Bytes())
		}
		buf.WriteString("}\n\n")
		fmt.Fprintf(&buf, "var _ apierror.APIError = (*%s)(nil)\n\n", name)
	}

	buf.WriteString("// registerErrors installs constructors for the typed errors on p. An error\n// whose members do not fit its Go type is returned as *apierror.ModeledError.\n")
	buf.WriteString("func registerErrors(p *httpbinding.Protocol) {\n")
	for _, s := range errs {
		fmt.Fprintf(&buf, "\tp.RegisterError(%q, func(meta apierror.Meta, fields map[string]any) error {\n", s.ID)
		fmt.Fprintf(&buf, "\t\te := &%s{Meta: meta}\n", g.typeName[s.ID])
		buf.WriteString("\t\tif err := document.ToGo(fields, e); err != nil {\n")
		fmt.Fprintf(&buf, "\t\t\treturn &apierror.ModeledError{Meta: meta, Shape: %q, Fields: fields}\n", s.ID)
		buf.WriteString("\t\t}\n\t\treturn e\n\t})\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func (g *generator) clientFile() ([]byte, error) {
	var buf bytes.Buffer
	g.header(&buf, `_ "embed"`)

	svcName := g.service.Name()
	fmt.Fprintf(&buf, "//go:embed %s\nvar modelJSON []byte\n\n", g.cfg.ModelFile)
	buf.WriteString("var loadModel = sync.OnceValue(func() *model.Model {\n\treturn model.MustLoad(modelJSON)\n})\n\n")
	buf.WriteString("// Model returns the service model the client was generated from.\n")
	buf.WriteString("func Model() *model.Model {\n\treturn loadModel()\n}\n\n")

	fmt.Fprintf(&buf, "// ServiceID is the shape ID of the %s service.\n", svcName)
	fmt.Fprintf(&buf, "const ServiceID model.ShapeID = %q\n\n", g.service.ID)

	fmt.Fprintf(&buf, "// Client calls the %s service.\n", svcName)
	if doc := strings.TrimSpace(g.service.Shape.Documentation()); doc != "" {
		buf.WriteString("//\n")
		for _, line := range strings.Split(doc, "\n") {
			fmt.Fprintf(&buf, "// %s\n", strings.TrimSpace(line))
		}
	}
	buf.WriteString("type Client struct {\n\tc *shapeclient.Client\n}\n\n")

	buf.WriteString("// New creates a client. Plugins set the endpoint, credentials and\n// retry behavior.\n")
	buf.WriteString("func New(plugins ...shapeclient.Plugin) (*Client, error) {\n")
	buf.WriteString("\tc, err := shapeclient.New(Model(), ServiceID, plugins...)\n")
	buf.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	buf.WriteString("\tregisterErrors(c.Protocol())\n\treturn &Client{c: c}, nil\n}\n\n")

	buf.WriteString("// Dynamic returns the underlying client, which calls operations with\n// runtime values.\n")
	buf.WriteString("func (c *Client) Dynamic() *shapeclient.Client {\n\treturn c.c\n}\n\n")

	for _, op := range g.ops {
		g.emitMethod(&buf, op)
	}
	return buf.Bytes(), nil
}

func (g *generator) emitMethod(buf *bytes.Buffer, op *model.Operation) {
	method := g.names.exported(op.Name)
	if doc := docComment(method, op.Shape.Documentation()); doc != "" {
		buf.WriteString(doc)
	} else {
		fmt.Fprintf(buf, "// %s calls the %s operation.\n", method, op.Name)
	}

	in, inArg, inVal := "struct{}", "", "nil"
	if op.Input.ID != model.Unit {
		in = g.typeName[op.Input.ID]
		inArg, inVal = ", in *"+in, "in"
	}
	call := fmt.Sprintf("shapeclient.Invoke[%%s, %%s](ctx, c.c, %q, %s, plugins...)", op.Name, inVal)

	if op.Output.ID == model.Unit {
		fmt.Fprintf(buf, "func (c *Client) %s(ctx context.Context%s, plugins ...shapeclient.Plugin) error {\n", method, inArg)
		fmt.Fprintf(buf, "\t_, err := "+call+"\n\treturn err\n}\n\n", in, "struct{}")
		return
	}
	out := g.typeName[op.Output.ID]
	fmt.Fprintf(buf, "func (c *Client) %s(ctx context.Context%s, plugins ...shapeclient.Plugin) (*%s, error) {\n", method, inArg, out)
	fmt.Fprintf(buf, "\treturn "+call+"\n}\n\n", in, out)
}

// goType returns the Go type expression for values of s.
func (g *generator) goType(s *model.Shape) (string, error) {
	switch s.Kind {
	case model.KindString:
		return "string", nil
	case model.KindEnum, model.KindIntEnum, model.KindUnion:
		return g.typeName[s.ID], nil
	case model.KindStructure:
		if s.ID == model.Unit {
			return "struct{}", nil
		}
		return g.typeName[s.ID], nil
	case model.KindBlob:
		if s.Traits.Has(model.TraitStreaming) {
			return "io.Reader", nil
		}
		return "[]byte", nil
	case model.KindBoolean:
		return "bool", nil
	case model.KindByte:
		return "int8", nil
	case model.KindShort:
		return "int16", nil
	case model.KindInteger:
		return "int32", nil
	case model.KindLong:
		return "int64", nil
	case model.KindFloat:
		return "float32", nil
	case model.KindDouble:
		return "float64", nil
	case model.KindBigInteger:
		return "*big.Int", nil
	case model.KindBigDecimal:
		return "*big.Float", nil
	case model.KindTimestamp:
		return "time.Time", nil
	case model.KindDocument:
		return "any", nil
	case model.KindList, model.KindSet:
		return g.elemType(s, s.ListMember(), "[]")
	case model.KindMap:
		return g.elemType(s, s.MapValue(), "map[string]")
	}
	return "", fmt.Errorf("unsupported shape %s (%s)", s.ID, s.Kind)
}

func (g *generator) elemType(s *model.Shape, mem *model.Member, prefix string) (string, error) {
	if mem == nil {
		return "", fmt.Errorf("%s has no element member", s.ID)
	}
	target, err := g.model.Target(mem)
	if err != nil {
		return "", err
	}
	elem, err := g.goType(target)
	if err != nil {
		return "", err
	}
	if s.IsSparse() && pointable(target) {
		elem = "*" + elem
	}
	return prefix + elem, nil
}

// pointable reports whether a Go value of s needs a pointer to be nilable.
func pointable(s *model.Shape) bool {
	switch s.Kind {
	case model.KindList, model.KindSet, model.KindMap, model.KindDocument,
		model.KindBigInteger, model.KindBigDecimal:
		return false
	case model.KindBlob:
		return false
	}
	return true
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.SplitAfter(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "\t" + l
		}
	}
	return strings.Join(lines, "")
}
