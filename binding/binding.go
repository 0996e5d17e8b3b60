// Package binding resolves where each member of an operation's input, output,
// or error structure is carried in an HTTP message.
package binding

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/broady/shapeclient/shapegen/model"
)

// Location identifies where a member is carried on the wire.
type Location int

const (
	// Document is the fallback: the member is part of the structured body.
	Document Location = iota
	Label
	Header
	PrefixHeaders
	Query
	QueryParams
	Payload
	ResponseCode
)

// String returns the name of the location.
func (l Location) String() string {
	switch l {
	case Document:
		return "document"
	case Label:
		return "label"
	case Header:
		return "header"
	case PrefixHeaders:
		return "prefix-headers"
	case Query:
		return "query"
	case QueryParams:
		return "query-params"
	case Payload:
		return "payload"
	case ResponseCode:
		return "response-code"
	default:
		return "unknown"
	}
}

// Direction selects request or response binding rules.
type Direction int

const (
	Request Direction = iota
	Response
)

// Binding is the resolved wire location of one member.
type Binding struct {
	Member *model.Member
	Target *model.Shape

	// Traits are the member's effective traits, including those inherited
	// from the target shape.
	Traits model.Traits

	Location Location

	// WireName is the header name, query key, label name, header prefix, or
	// document key, depending on Location. Empty for payload, query-params,
	// and response-code bindings.
	WireName string

	// Greedy is set for labels declared as {name+}.
	Greedy bool
}

// Name returns the member name.
func (b *Binding) Name() string {
	return b.Member.Name
}

// Bindings holds the resolved bindings of one structure in one direction.
type Bindings struct {
	Shape     *model.Shape
	Direction Direction

	// All lists bindings in member declaration order.
	All []*Binding
}

// In returns the bindings at the given location, in member order.
func (b *Bindings) In(loc Location) []*Binding {
	return lo.Filter(b.All, func(x *Binding, _ int) bool {
		return x.Location == loc
	})
}

// Payload returns the payload binding, or nil.
func (b *Bindings) Payload() *Binding {
	p, _ := lo.Find(b.All, func(x *Binding) bool {
		return x.Location == Payload
	})
	return p
}

// HasBody reports whether any member is carried in the body.
func (b *Bindings) HasBody() bool {
	return lo.ContainsBy(b.All, func(x *Binding) bool {
		return x.Location == Document || x.Location == Payload
	})
}

// Member returns the binding of the named member.
func (b *Bindings) Member(name string) (*Binding, bool) {
	return lo.Find(b.All, func(x *Binding) bool {
		return x.Member.Name == name
	})
}

// Resolver computes bindings.
type Resolver struct {
	// IgnoreJSONName makes document bindings use the member name even when a
	// jsonName trait is present.
	IgnoreJSONName bool
}

// Resolve computes the request bindings of an operation's input or the
// response bindings of its output.
func (r Resolver) Resolve(m *model.Model, op *model.Operation, dir Direction) (*Bindings, error) {
	shape := op.Input
	if dir == Response {
		shape = op.Output
	}
	b, err := r.ResolveShape(m, shape, dir)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", op.Name, err)
	}
	if dir == Request {
		if err := checkLabels(op, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ResolveShape computes bindings for any structure, such as an error shape.
func (r Resolver) ResolveShape(m *model.Model, s *model.Shape, dir Direction) (*Bindings, error) {
	if s.Kind != model.KindStructure {
		return nil, fmt.Errorf("%s: cannot bind a %s", s.ID, s.Kind)
	}
	out := &Bindings{Shape: s, Direction: dir}
	var payload *Binding
	for _, mem := range s.Members {
		target, err := m.Target(mem)
		if err != nil {
			return nil, err
		}
		b := r.bind(m, mem, target, dir)
		if b.Location == Payload {
			if payload != nil {
				return nil, fmt.Errorf("%s: members %s and %s are both bound to the payload", s.ID, payload.Name(), b.Name())
			}
			payload = b
		}
		out.All = append(out.All, b)
	}
	return out, nil
}

// bind applies the trait precedence rules for a single member. Explicit
// binding traits win over the document fallback.
func (r Resolver) bind(m *model.Model, mem *model.Member, target *model.Shape, dir Direction) *Binding {
	b := &Binding{
		Member:   mem,
		Target:   target,
		Traits:   m.MemberTraits(mem),
		Location: Document,
		WireName: mem.Name,
	}
	t := mem.Traits
	switch {
	case t.Has(model.TraitHTTPHeader):
		b.Location = Header
		b.WireName = t.String(model.TraitHTTPHeader)
	case t.Has(model.TraitHTTPPrefixHeaders):
		b.Location = PrefixHeaders
		b.WireName = t.String(model.TraitHTTPPrefixHeaders)
	case t.Has(model.TraitHTTPPayload):
		b.Location = Payload
		b.WireName = ""
	case dir == Request && t.Has(model.TraitHTTPLabel):
		b.Location = Label
	case dir == Request && t.Has(model.TraitHTTPQuery):
		b.Location = Query
		b.WireName = t.String(model.TraitHTTPQuery)
	case dir == Request && t.Has(model.TraitHTTPQueryParams):
		b.Location = QueryParams
		b.WireName = ""
	case dir == Response && t.Has(model.TraitHTTPResponseCode):
		b.Location = ResponseCode
		b.WireName = ""
	default:
		if !r.IgnoreJSONName {
			if name := t.String(model.TraitJSONName); name != "" {
				b.WireName = name
			}
		}
	}
	return b
}

// checkLabels ensures every label member appears in the URI and every URI
// label is bound.
func checkLabels(op *model.Operation, b *Bindings) error {
	p, err := ParseURIPattern(op.HTTP.URI)
	if err != nil {
		return fmt.Errorf("operation %s: %w", op.Name, err)
	}
	for _, lb := range b.In(Label) {
		seg, ok := p.Label(lb.WireName)
		if !ok {
			return fmt.Errorf("operation %s: member %s is bound to label {%s} which is not in %q", op.Name, lb.Name(), lb.WireName, op.HTTP.URI)
		}
		lb.Greedy = seg.Greedy
	}
	for _, name := range p.Labels() {
		if _, ok := lo.Find(b.In(Label), func(x *Binding) bool { return x.WireName == name }); !ok {
			return fmt.Errorf("operation %s: uri label {%s} has no bound member", op.Name, name)
		}
	}
	return nil
}

// Validate resolves every operation of a service and reports binding errors.
func Validate(m *model.Model, svc *model.Service) []error {
	var errs []error
	for _, op := range svc.Operations {
		for _, dir := range []Direction{Request, Response} {
			if _, err := (Resolver{}).Resolve(m, op, dir); err != nil {
				errs = append(errs, err)
			}
		}
		for _, es := range op.Errors {
			if _, err := (Resolver{}).ResolveShape(m, es, Response); err != nil {
				errs = append(errs, err)
			}
		}
		if err := checkPayloadTarget(m, op); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkPayloadTarget(m *model.Model, op *model.Operation) error {
	for _, s := range []*model.Shape{op.Input, op.Output} {
		for _, mem := range s.Members {
			if !mem.Traits.Has(model.TraitHTTPPayload) {
				continue
			}
			target, err := m.Target(mem)
			if err != nil {
				return err
			}
			if target.Kind == model.KindUnion || target.Traits.Has(model.TraitEventStream) {
				return fmt.Errorf("operation %s: %s payloads are not supported (member %s)", op.Name, target.Kind, mem.Name)
			}
		}
	}
	return nil
}
