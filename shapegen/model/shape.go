package model

// Shape is a node in the model graph.
type Shape struct {
	ID     ShapeID
	Kind   ShapeKind
	Traits Traits

	// Members holds structure, union, enum and intEnum members in declaration
	// order. Lists and sets have a single member named "member"; maps have
	// "key" and "value".
	Members []*Member

	// Operation
	Input  ShapeID
	Output ShapeID
	Errors []ShapeID

	// Service and resource
	Version    string
	Operations []ShapeID
	Resources  []ShapeID
}

// Member is a named edge from an aggregate shape to its target.
type Member struct {
	Name      string
	Container ShapeID
	Target    ShapeID
	Traits    Traits
}

// ID returns the member's absolute identifier.
func (m *Member) ID() ShapeID {
	return m.Container.WithMember(m.Name)
}

// Member looks up a member by name.
func (s *Shape) Member(name string) (*Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// ListMember returns the element member of a list or set shape.
func (s *Shape) ListMember() *Member {
	m, _ := s.Member("member")
	return m
}

// MapKey returns the key member of a map shape.
func (s *Shape) MapKey() *Member {
	m, _ := s.Member("key")
	return m
}

// MapValue returns the value member of a map shape.
func (s *Shape) MapValue() *Member {
	m, _ := s.Member("value")
	return m
}

// IsSparse reports whether a collection shape preserves null entries.
func (s *Shape) IsSparse() bool {
	return s.Traits.Has(TraitSparse)
}

// IsError reports whether the shape is a modeled error structure.
func (s *Shape) IsError() bool {
	return s.Kind == KindStructure && s.Traits.Has(TraitError)
}

// Fault returns the value of the error trait ("client" or "server").
func (s *Shape) Fault() string {
	return s.Traits.String(TraitError)
}

// Documentation returns the documentation trait value.
func (s *Shape) Documentation() string {
	return s.Traits.String(TraitDocumentation)
}

// IsRequired reports whether the member is required and has no default.
func (m *Member) IsRequired() bool {
	return m.Traits.Has(TraitRequired) && !m.Traits.Has(TraitDefault)
}

// EnumValue returns the wire value of an enum member.
func (m *Member) EnumValue() string {
	if v := m.Traits.String(TraitEnumValue); v != "" {
		return v
	}
	return m.Name
}

// IntEnumValue returns the wire value of an intEnum member.
func (m *Member) IntEnumValue() (int64, bool) {
	var v int64
	if err := m.Traits.Decode(TraitEnumValue, &v); err != nil {
		return 0, false
	}
	return v, true
}
