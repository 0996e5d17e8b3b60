package document

// Union is the runtime value of a union shape: exactly one variant, named by
// its member name.
type Union struct {
	Tag   string
	Value any
}

// UnknownVariant is produced when a union arrives with a tag the model does
// not define. It cannot be serialized.
type UnknownVariant struct {
	Tag string
}

// GoUnion is implemented by generated union structs.
type GoUnion interface {
	ShapeUnion()
}
