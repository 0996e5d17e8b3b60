// Package httpbinding serializes operation inputs into HTTP requests and
// deserializes HTTP responses into outputs or errors, following the model's
// HTTP binding traits with a JSON document body.
package httpbinding

import (
	"errors"
	"fmt"
	"sync"

	"github.com/broady/shapeclient/apierror"
	"github.com/broady/shapeclient/binding"
	"github.com/broady/shapeclient/document"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/wire"
)

// JSONContentType is the media type of document bodies.
const JSONContentType = "application/json"

// ErrorTypeHeader carries the error code on error responses.
const ErrorTypeHeader = "X-Error-Type"

// ErrUnsupportedPayload is returned for payload members this protocol cannot
// carry, such as unions and event streams.
var ErrUnsupportedPayload = errors.New("httpbinding: unsupported payload type")

// LabelError reports a URI label without a value. It is raised while
// building the request, before anything is sent.
type LabelError struct {
	Operation string
	Label     string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("httpbinding: %s: label {%s} has no value", e.Operation, e.Label)
}

// ErrorFactory builds a typed error from the decoded members of an error
// shape. Generated clients register one per error shape.
type ErrorFactory func(meta apierror.Meta, fields map[string]any) error

// Protocol is the HTTP binding protocol with JSON documents.
type Protocol struct {
	timestamps     map[binding.Location]wire.TimestampFormat
	ignoreJSONName bool

	mu        sync.RWMutex
	factories map[model.ShapeID]ErrorFactory

	docs sync.Map // *model.Model -> *document.Codec
	ops  sync.Map // opKey -> *OperationCodec
}

type opKey struct {
	model   *model.Model
	service model.ShapeID
	op      model.ShapeID
}

// NewJSON returns the protocol with its default timestamp formats: http-date
// in headers, date-time in labels and query strings, epoch-seconds in
// documents.
func NewJSON() *Protocol {
	return &Protocol{
		timestamps: map[binding.Location]wire.TimestampFormat{
			binding.Header:   wire.HTTPDate,
			binding.Label:    wire.DateTime,
			binding.Query:    wire.DateTime,
			binding.Document: wire.EpochSeconds,
		},
		factories: make(map[model.ShapeID]ErrorFactory),
	}
}

// WithTimestampFormat returns a copy of the protocol using f as the default
// timestamp format for loc. Registered error factories are shared.
func (p *Protocol) WithTimestampFormat(loc binding.Location, f wire.TimestampFormat) *Protocol {
	return p.clone(func(c *Protocol) {
		if loc == binding.Payload {
			loc = binding.Document
		}
		c.timestamps[loc] = f
	})
}

// WithIgnoreJSONName returns a copy of the protocol that keys document
// members by member name.
func (p *Protocol) WithIgnoreJSONName(ignore bool) *Protocol {
	return p.clone(func(c *Protocol) { c.ignoreJSONName = ignore })
}

func (p *Protocol) clone(fn func(*Protocol)) *Protocol {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := &Protocol{
		timestamps:     make(map[binding.Location]wire.TimestampFormat, len(p.timestamps)),
		ignoreJSONName: p.ignoreJSONName,
		factories:      make(map[model.ShapeID]ErrorFactory, len(p.factories)),
	}
	for k, v := range p.timestamps {
		c.timestamps[k] = v
	}
	for k, v := range p.factories {
		c.factories[k] = v
	}
	fn(c)
	return c
}

// RegisterError installs a typed constructor for an error shape.
func (p *Protocol) RegisterError(id model.ShapeID, f ErrorFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[id] = f
}

func (p *Protocol) factory(id model.ShapeID) (ErrorFactory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.factories[id]
	return f, ok
}

// TimestampFormat returns the default format for a location.
func (p *Protocol) TimestampFormat(loc binding.Location) wire.TimestampFormat {
	if f, ok := p.timestamps[loc]; ok {
		return f
	}
	return wire.DefaultTimestampFormat
}

// Documents returns the document codec the protocol uses for m.
func (p *Protocol) Documents(m *model.Model) *document.Codec {
	if c, ok := p.docs.Load(m); ok {
		return c.(*document.Codec)
	}
	c := document.NewCodec(m, document.Settings{
		TimestampFormat: p.TimestampFormat(binding.Document),
		IgnoreJSONName:  p.ignoreJSONName,
	})
	actual, _ := p.docs.LoadOrStore(m, c)
	return actual.(*document.Codec)
}

// Operation resolves the bindings of op once and returns its codec.
func (p *Protocol) Operation(m *model.Model, op *model.Operation) (*OperationCodec, error) {
	key := opKey{model: m, service: op.Service, op: op.ID}
	if c, ok := p.ops.Load(key); ok {
		return c.(*OperationCodec), nil
	}
	c, err := p.newOperationCodec(m, op)
	if err != nil {
		return nil, err
	}
	actual, _ := p.ops.LoadOrStore(key, c)
	return actual.(*OperationCodec), nil
}
