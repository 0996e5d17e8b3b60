package wire

import "fmt"

// ParseError reports a wire value that could not be decoded.
type ParseError struct {
	Value string
	// Type is the shape kind or timestamp format that was expected.
	Type string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: cannot parse %q as %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("wire: cannot parse %q as %s", e.Value, e.Type)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TypeError reports a runtime value whose Go type does not fit the shape.
type TypeError struct {
	Kind  string
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("wire: %T is not a valid %s value", e.Value, e.Kind)
}
