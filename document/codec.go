// Package document converts runtime values to and from JSON document trees
// according to a shape model.
//
// A runtime value is built from plain Go types: structures and maps are
// map[string]any, lists are []any, unions are Union, integers are int64,
// floats are float64, big numbers are *big.Int and *big.Float, timestamps are
// time.Time and blobs are []byte. A serialized tree is what encoding/json
// produces when decoding with UseNumber.
package document

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/wire"
)

// Settings controls protocol-specific codec behaviour.
type Settings struct {
	// TimestampFormat is used for timestamp members without a
	// timestampFormat trait. Defaults to epoch-seconds.
	TimestampFormat wire.TimestampFormat

	// IgnoreJSONName keys structure members by member name even when a
	// jsonName trait is present.
	IgnoreJSONName bool
}

// Codec serializes values of a model's shapes. Plans are compiled once per
// shape on first use. A Codec is safe for concurrent use.
type Codec struct {
	model    *model.Model
	settings Settings
	plans    sync.Map // model.ShapeID -> plan
}

// NewCodec returns a codec for m.
func NewCodec(m *model.Model, s Settings) *Codec {
	if !s.TimestampFormat.Valid() {
		s.TimestampFormat = wire.EpochSeconds
	}
	return &Codec{model: m, settings: s}
}

// Model returns the codec's model.
func (c *Codec) Model() *model.Model {
	return c.model
}

// Serialize converts a runtime value of shape id to a document tree.
func (c *Codec) Serialize(id model.ShapeID, v any) (any, error) {
	p, err := c.plan(id)
	if err != nil {
		return nil, err
	}
	return p.encode(v)
}

// Deserialize converts a document tree to a runtime value of shape id.
func (c *Codec) Deserialize(id model.ShapeID, doc any) (any, error) {
	p, err := c.plan(id)
	if err != nil {
		return nil, err
	}
	return p.decode(doc)
}

// Marshal serializes v and encodes it as JSON.
func (c *Codec) Marshal(id model.ShapeID, v any) ([]byte, error) {
	doc, err := c.Serialize(id, v)
	if err != nil {
		return nil, err
	}
	return Encode(doc)
}

// Unmarshal decodes JSON and deserializes it as shape id.
func (c *Codec) Unmarshal(id model.ShapeID, data []byte) (any, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return c.Deserialize(id, doc)
}

// SerializeMembers serializes only the named members of structure id.
func (c *Codec) SerializeMembers(id model.ShapeID, v map[string]any, names []string) (map[string]any, error) {
	sp, err := c.structPlan(id)
	if err != nil {
		return nil, err
	}
	return sp.encodeFields(v, names)
}

// DeserializeMembers deserializes only the named members of structure id.
func (c *Codec) DeserializeMembers(id model.ShapeID, doc any, names []string) (map[string]any, error) {
	sp, err := c.structPlan(id)
	if err != nil {
		return nil, err
	}
	return sp.decodeFields(doc, names)
}

func (c *Codec) structPlan(id model.ShapeID) (*structPlan, error) {
	p, err := c.plan(id)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(*structPlan)
	if !ok {
		return nil, fmt.Errorf("document: %s is not a structure", id)
	}
	return sp, nil
}

func (c *Codec) plan(id model.ShapeID) (plan, error) {
	if p, ok := c.plans.Load(id); ok {
		return p.(plan), nil
	}
	s, ok := c.model.Shape(id)
	if !ok {
		return nil, fmt.Errorf("document: unknown shape %s", id)
	}
	p, err := c.compile(s)
	if err != nil {
		return nil, err
	}
	actual, _ := c.plans.LoadOrStore(id, p)
	return actual.(plan), nil
}

// compile builds the plan for one shape. Aggregate plans refer to their
// targets by ID and resolve them lazily, so recursive shapes compile.
func (c *Codec) compile(s *model.Shape) (plan, error) {
	switch s.Kind {
	case model.KindString, model.KindEnum:
		return stringPlan{id: s.ID}, nil
	case model.KindBoolean:
		return boolPlan{id: s.ID}, nil
	case model.KindByte, model.KindShort, model.KindInteger, model.KindIntEnum, model.KindLong:
		return intPlan{id: s.ID, kind: s.Kind}, nil
	case model.KindFloat, model.KindDouble:
		return floatPlan{id: s.ID}, nil
	case model.KindBigInteger:
		return bigIntPlan{id: s.ID}, nil
	case model.KindBigDecimal:
		return bigDecimalPlan{id: s.ID}, nil
	case model.KindTimestamp:
		return timestampPlan{id: s.ID, format: wire.ResolveTimestampFormat(s.Traits, c.settings.TimestampFormat)}, nil
	case model.KindBlob:
		if s.Traits.Has(model.TraitStreaming) {
			return nil, fmt.Errorf("document: streaming blob %s cannot be part of a document", s.ID)
		}
		return blobPlan{id: s.ID}, nil
	case model.KindDocument:
		return documentPlan{}, nil
	case model.KindList, model.KindSet:
		mem := s.ListMember()
		if mem == nil {
			return nil, fmt.Errorf("document: list %s has no member", s.ID)
		}
		elem, err := c.memberPlan(mem)
		if err != nil {
			return nil, err
		}
		return &listPlan{id: s.ID, elem: elem, sparse: s.IsSparse()}, nil
	case model.KindMap:
		mem := s.MapValue()
		if mem == nil {
			return nil, fmt.Errorf("document: map %s has no value", s.ID)
		}
		val, err := c.memberPlan(mem)
		if err != nil {
			return nil, err
		}
		return &mapPlan{id: s.ID, value: val, sparse: s.IsSparse()}, nil
	case model.KindStructure:
		fields, err := c.fields(s)
		if err != nil {
			return nil, err
		}
		return newStructPlan(s.ID, fields), nil
	case model.KindUnion:
		fields, err := c.fields(s)
		if err != nil {
			return nil, err
		}
		return newUnionPlan(s.ID, fields), nil
	}
	return nil, fmt.Errorf("document: %s shapes (%s) cannot be serialized", s.Kind, s.ID)
}

func (c *Codec) fields(s *model.Shape) ([]*field, error) {
	fields := make([]*field, 0, len(s.Members))
	for _, mem := range s.Members {
		p, err := c.memberPlan(mem)
		if err != nil {
			return nil, err
		}
		f := &field{
			name:     mem.Name,
			wire:     mem.Name,
			required: mem.IsRequired(),
			plan:     p,
		}
		if !c.settings.IgnoreJSONName {
			if n := mem.Traits.String(model.TraitJSONName); n != "" {
				f.wire = n
			}
		}
		if raw, ok := mem.Traits[model.TraitDefault]; ok {
			f.defaultValue = raw
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// memberPlan returns the plan for a member's target. Member traits that
// change the encoding (timestampFormat) produce a dedicated plan; everything
// else resolves through the shared cache.
func (c *Codec) memberPlan(mem *model.Member) (plan, error) {
	target, ok := c.model.Shape(mem.Target)
	if !ok {
		return nil, fmt.Errorf("document: member %s targets unknown shape %s", mem.ID(), mem.Target)
	}
	if target.Kind == model.KindTimestamp {
		traits := c.model.MemberTraits(mem)
		return timestampPlan{id: target.ID, format: wire.ResolveTimestampFormat(traits, c.settings.TimestampFormat)}, nil
	}
	return &lazyPlan{codec: c, id: mem.Target}, nil
}

// lazyPlan defers plan lookup until first use.
type lazyPlan struct {
	codec *Codec
	id    model.ShapeID
	once  sync.Once
	p     plan
	err   error
}

func (l *lazyPlan) resolve() (plan, error) {
	l.once.Do(func() {
		l.p, l.err = l.codec.plan(l.id)
	})
	return l.p, l.err
}

func (l *lazyPlan) encode(v any) (any, error) {
	p, err := l.resolve()
	if err != nil {
		return nil, err
	}
	return p.encode(v)
}

func (l *lazyPlan) decode(doc any) (any, error) {
	p, err := l.resolve()
	if err != nil {
		return nil, err
	}
	return p.decode(doc)
}

func decodeDefault(raw json.RawMessage) (any, bool) {
	v, err := Decode(raw)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}
