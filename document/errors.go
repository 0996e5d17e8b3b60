package document

import (
	"fmt"

	"github.com/broady/shapeclient/shapegen/model"
)

// MissingRequiredFieldError reports an absent required member.
type MissingRequiredFieldError struct {
	Shape  model.ShapeID
	Member string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("document: %s is missing required member %q", e.Shape, e.Member)
}

// MalformedUnionError reports a union value without exactly one variant.
type MalformedUnionError struct {
	Shape  model.ShapeID
	Reason string
}

func (e *MalformedUnionError) Error() string {
	return fmt.Sprintf("document: malformed union %s: %s", e.Shape, e.Reason)
}

// TypeMismatchError reports a value whose type does not fit the shape.
type TypeMismatchError struct {
	Shape model.ShapeID
	Want  string
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("document: %s expects %s, got %T", e.Shape, e.Want, e.Value)
}

func mismatch(id model.ShapeID, want string, v any) error {
	return &TypeMismatchError{Shape: id, Want: want, Value: v}
}
