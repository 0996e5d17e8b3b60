// Package model defines the shape graph consumed by the client runtime and the
// code generator. A Model is loaded once from a Smithy JSON AST document and is
// read-only afterwards.
package model

import "strings"

// ShapeID is an absolute shape identifier of the form "namespace#Name".
// Member identifiers append "$member".
type ShapeID string

// Namespace returns the portion of the identifier before '#'.
func (id ShapeID) Namespace() string {
	s := string(id)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the shape name without namespace or member.
func (id ShapeID) Name() string {
	s := string(id)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '$'); i >= 0 {
		s = s[:i]
	}
	return s
}

// Member returns the member name of a member identifier, or "".
func (id ShapeID) Member() string {
	s := string(id)
	if i := strings.IndexByte(s, '$'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// WithMember returns the member identifier for name on this shape.
func (id ShapeID) WithMember(name string) ShapeID {
	return ShapeID(string(id) + "$" + name)
}

// IsZero returns true if the identifier is empty.
func (id ShapeID) IsZero() bool {
	return id == ""
}

func (id ShapeID) String() string {
	return string(id)
}

// Unit is the prelude shape used for operations without input or output.
const Unit ShapeID = "smithy.api#Unit"
