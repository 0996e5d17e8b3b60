package model

import (
	"fmt"
	"sort"
)

// Model is a loaded, read-only shape graph.
type Model struct {
	Version  string
	Metadata map[string]any

	shapes map[ShapeID]*Shape
}

// New creates an empty model containing only the prelude shapes.
func New() *Model {
	m := &Model{
		Version: "2.0",
		shapes:  make(map[ShapeID]*Shape),
	}
	addPrelude(m)
	return m
}

// AddShape adds or replaces a shape.
func (m *Model) AddShape(s *Shape) {
	for _, mem := range s.Members {
		mem.Container = s.ID
	}
	m.shapes[s.ID] = s
}

// Shape looks up a shape by identifier.
func (m *Model) Shape(id ShapeID) (*Shape, bool) {
	s, ok := m.shapes[id]
	return s, ok
}

// Target returns the shape a member points to.
func (m *Model) Target(mem *Member) (*Shape, error) {
	s, ok := m.shapes[mem.Target]
	if !ok {
		return nil, fmt.Errorf("member %s targets unknown shape %s", mem.ID(), mem.Target)
	}
	return s, nil
}

// Shapes returns all shapes sorted by identifier.
func (m *Model) Shapes() []*Shape {
	ids := make([]ShapeID, 0, len(m.shapes))
	for id := range m.shapes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Shape, len(ids))
	for i, id := range ids {
		out[i] = m.shapes[id]
	}
	return out
}

// ShapesOfKind returns all shapes of kind k sorted by identifier, excluding
// prelude shapes.
func (m *Model) ShapesOfKind(k ShapeKind) []*Shape {
	var out []*Shape
	for _, s := range m.Shapes() {
		if s.Kind == k && s.ID.Namespace() != preludeNamespace {
			out = append(out, s)
		}
	}
	return out
}

// MemberTraits returns the traits that apply to a member: its own traits,
// then any not overridden from the target shape.
func (m *Model) MemberTraits(mem *Member) Traits {
	t := make(Traits, len(mem.Traits))
	for k, v := range mem.Traits {
		t[k] = v
	}
	if target, ok := m.shapes[mem.Target]; ok {
		t = t.merge(target.Traits)
	}
	return t
}

const preludeNamespace = "smithy.api"

func addPrelude(m *Model) {
	simple := map[string]ShapeKind{
		"String":     KindString,
		"Blob":       KindBlob,
		"Boolean":    KindBoolean,
		"Byte":       KindByte,
		"Short":      KindShort,
		"Integer":    KindInteger,
		"Long":       KindLong,
		"Float":      KindFloat,
		"Double":     KindDouble,
		"BigInteger": KindBigInteger,
		"BigDecimal": KindBigDecimal,
		"Timestamp":  KindTimestamp,
		"Document":   KindDocument,

		"PrimitiveBoolean": KindBoolean,
		"PrimitiveByte":    KindByte,
		"PrimitiveShort":   KindShort,
		"PrimitiveInteger": KindInteger,
		"PrimitiveLong":    KindLong,
		"PrimitiveFloat":   KindFloat,
		"PrimitiveDouble":  KindDouble,
	}
	for name, kind := range simple {
		id := ShapeID(preludeNamespace + "#" + name)
		m.shapes[id] = &Shape{ID: id, Kind: kind}
	}
	m.shapes[Unit] = &Shape{
		ID:     Unit,
		Kind:   KindStructure,
		Traits: Traits{TraitUnitType: []byte("{}")},
	}
}
