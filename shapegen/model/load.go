package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// astDocument mirrors the Smithy JSON AST.
type astDocument struct {
	Smithy   string                `json:"smithy"`
	Metadata map[string]any        `json:"metadata,omitempty"`
	Shapes   map[ShapeID]*astShape `json:"shapes"`
}

type astRef struct {
	Target ShapeID `json:"target"`
}

type astMember struct {
	Target ShapeID `json:"target"`
	Traits Traits  `json:"traits,omitempty"`
}

type namedMember struct {
	Name string
	astMember
}

// astMembers preserves member declaration order, which a plain map would lose.
type astMembers []namedMember

func (ms *astMembers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("members must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var m astMember
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		*ms = append(*ms, namedMember{Name: name, astMember: m})
	}
	_, err = dec.Token()
	return err
}

func (ms astMembers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range ms {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(m.astMember)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type astShape struct {
	Type    string     `json:"type"`
	Traits  Traits     `json:"traits,omitempty"`
	Member  *astMember `json:"member,omitempty"`
	Key     *astMember `json:"key,omitempty"`
	Value   *astMember `json:"value,omitempty"`
	Members astMembers `json:"members,omitempty"`

	Input  *astRef  `json:"input,omitempty"`
	Output *astRef  `json:"output,omitempty"`
	Errors []astRef `json:"errors,omitempty"`

	Version    string   `json:"version,omitempty"`
	Operations []astRef `json:"operations,omitempty"`
	Resources  []astRef `json:"resources,omitempty"`

	Create               *astRef  `json:"create,omitempty"`
	Put                  *astRef  `json:"put,omitempty"`
	Read                 *astRef  `json:"read,omitempty"`
	Update               *astRef  `json:"update,omitempty"`
	Delete               *astRef  `json:"delete,omitempty"`
	List                 *astRef  `json:"list,omitempty"`
	CollectionOperations []astRef `json:"collectionOperations,omitempty"`
}

// LoadFile reads a model from a JSON AST file. Files ending in .yaml or .yml
// are converted to JSON first.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	m, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Load reads a JSON AST model from r.
func Load(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data)
}

// LoadBytes parses a JSON AST model.
func LoadBytes(data []byte) (*Model, error) {
	var doc astDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if doc.Smithy == "" {
		return nil, fmt.Errorf("parse model: missing \"smithy\" version")
	}

	m := New()
	m.Version = doc.Smithy
	m.Metadata = doc.Metadata

	var applies []ShapeID
	for id, as := range doc.Shapes {
		if as.Type == "apply" {
			applies = append(applies, id)
			continue
		}
		s, err := as.toShape(id)
		if err != nil {
			return nil, err
		}
		m.AddShape(s)
	}

	for _, id := range applies {
		if err := m.applyTraits(id, doc.Shapes[id].Traits); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustLoad is like LoadBytes but panics on error. It is intended for
// generated code that embeds a model known to be valid.
func MustLoad(data []byte) *Model {
	m, err := LoadBytes(data)
	if err != nil {
		panic(err)
	}
	return m
}

func (as *astShape) toShape(id ShapeID) (*Shape, error) {
	kind := ParseShapeKind(as.Type)
	if kind == KindUnknown {
		return nil, fmt.Errorf("shape %s: unknown type %q", id, as.Type)
	}
	s := &Shape{
		ID:      id,
		Kind:    kind,
		Traits:  as.Traits,
		Version: as.Version,
	}

	addMember := func(name string, am *astMember) {
		if am != nil {
			s.Members = append(s.Members, &Member{Name: name, Container: id, Target: am.Target, Traits: am.Traits})
		}
	}
	switch kind {
	case KindList, KindSet:
		if as.Member == nil {
			return nil, fmt.Errorf("shape %s: %s requires a member", id, kind)
		}
		addMember("member", as.Member)
	case KindMap:
		if as.Key == nil || as.Value == nil {
			return nil, fmt.Errorf("shape %s: map requires key and value", id)
		}
		addMember("key", as.Key)
		addMember("value", as.Value)
	default:
		for i := range as.Members {
			addMember(as.Members[i].Name, &as.Members[i].astMember)
		}
	}

	if as.Input != nil {
		s.Input = as.Input.Target
	}
	if as.Output != nil {
		s.Output = as.Output.Target
	}
	for _, r := range as.Errors {
		s.Errors = append(s.Errors, r.Target)
	}
	for _, r := range as.Resources {
		s.Resources = append(s.Resources, r.Target)
	}
	for _, r := range []*astRef{as.Create, as.Put, as.Read, as.Update, as.Delete, as.List} {
		if r != nil {
			s.Operations = append(s.Operations, r.Target)
		}
	}
	for _, r := range as.Operations {
		s.Operations = append(s.Operations, r.Target)
	}
	for _, r := range as.CollectionOperations {
		s.Operations = append(s.Operations, r.Target)
	}
	return s, nil
}

// applyTraits merges traits from an "apply" statement. Applied traits
// override existing values.
func (m *Model) applyTraits(id ShapeID, traits Traits) error {
	base := ShapeID(strings.SplitN(string(id), "$", 2)[0])
	s, ok := m.shapes[base]
	if !ok {
		return fmt.Errorf("apply targets unknown shape %s", id)
	}
	target := &s.Traits
	if name := id.Member(); name != "" {
		mem, ok := s.Member(name)
		if !ok {
			return fmt.Errorf("apply targets unknown member %s", id)
		}
		target = &mem.Traits
	}
	if *target == nil {
		*target = make(Traits, len(traits))
	}
	for k, v := range traits {
		(*target)[k] = v
	}
	return nil
}

// MarshalJSON encodes the model as a JSON AST, omitting prelude shapes.
func (m *Model) MarshalJSON() ([]byte, error) {
	doc := astDocument{
		Smithy:   m.Version,
		Metadata: m.Metadata,
		Shapes:   make(map[ShapeID]*astShape),
	}
	for id, s := range m.shapes {
		if id.Namespace() == preludeNamespace {
			continue
		}
		doc.Shapes[id] = fromShape(s)
	}
	return json.Marshal(doc)
}

func fromShape(s *Shape) *astShape {
	as := &astShape{
		Type:    s.Kind.String(),
		Traits:  s.Traits,
		Version: s.Version,
	}
	ref := func(id ShapeID) *astRef {
		if id.IsZero() {
			return nil
		}
		return &astRef{Target: id}
	}
	refs := func(ids []ShapeID) []astRef {
		var out []astRef
		for _, id := range ids {
			out = append(out, astRef{Target: id})
		}
		return out
	}
	switch s.Kind {
	case KindList, KindSet:
		m := s.ListMember()
		as.Member = &astMember{Target: m.Target, Traits: m.Traits}
	case KindMap:
		k, v := s.MapKey(), s.MapValue()
		as.Key = &astMember{Target: k.Target, Traits: k.Traits}
		as.Value = &astMember{Target: v.Target, Traits: v.Traits}
	default:
		for _, mem := range s.Members {
			as.Members = append(as.Members, namedMember{Name: mem.Name, astMember: astMember{Target: mem.Target, Traits: mem.Traits}})
		}
	}
	as.Input = ref(s.Input)
	as.Output = ref(s.Output)
	as.Errors = refs(s.Errors)
	as.Operations = refs(s.Operations)
	as.Resources = refs(s.Resources)
	return as
}
