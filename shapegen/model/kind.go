package model

// ShapeKind identifies the category of a shape.
type ShapeKind int

const (
	KindUnknown ShapeKind = iota

	// Simple shapes
	KindBlob
	KindBoolean
	KindString
	KindEnum
	KindTimestamp
	KindByte
	KindShort
	KindInteger
	KindIntEnum
	KindLong
	KindFloat
	KindDouble
	KindBigInteger
	KindBigDecimal
	KindDocument

	// Aggregate shapes
	KindList
	KindSet
	KindMap
	KindStructure
	KindUnion

	// Service shapes
	KindService
	KindOperation
	KindResource
)

var kindNames = map[ShapeKind]string{
	KindBlob:       "blob",
	KindBoolean:    "boolean",
	KindString:     "string",
	KindEnum:       "enum",
	KindTimestamp:  "timestamp",
	KindByte:       "byte",
	KindShort:      "short",
	KindInteger:    "integer",
	KindIntEnum:    "intEnum",
	KindLong:       "long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindBigInteger: "bigInteger",
	KindBigDecimal: "bigDecimal",
	KindDocument:   "document",
	KindList:       "list",
	KindSet:        "set",
	KindMap:        "map",
	KindStructure:  "structure",
	KindUnion:      "union",
	KindService:    "service",
	KindOperation:  "operation",
	KindResource:   "resource",
}

// String returns the Smithy type name of the kind.
func (k ShapeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseShapeKind maps a Smithy AST "type" value to a ShapeKind.
func ParseShapeKind(s string) ShapeKind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// IsAggregate reports whether shapes of this kind have members.
func (k ShapeKind) IsAggregate() bool {
	switch k {
	case KindList, KindSet, KindMap, KindStructure, KindUnion:
		return true
	}
	return false
}

// IsInteger reports whether the kind is an integral number with a bounded range.
func (k ShapeKind) IsInteger() bool {
	switch k {
	case KindByte, KindShort, KindInteger, KindIntEnum, KindLong:
		return true
	}
	return false
}

// IsNumber reports whether the kind is any numeric kind.
func (k ShapeKind) IsNumber() bool {
	switch k {
	case KindFloat, KindDouble, KindBigInteger, KindBigDecimal:
		return true
	}
	return k.IsInteger()
}

// IsList reports whether the kind is list or set.
func (k ShapeKind) IsList() bool {
	return k == KindList || k == KindSet
}
