package model

import (
	"fmt"
	"sort"
	"strings"
)

// Operation is a resolved view of an operation shape bound to a service.
type Operation struct {
	ID      ShapeID
	Name    string
	Shape   *Shape
	Service ShapeID

	Input  *Shape
	Output *Shape

	// Errors lists the operation's errors followed by the service's errors.
	Errors []*Shape

	// HTTP is the operation's http trait with defaults applied.
	HTTP HTTPTrait

	// AuthSchemes lists the effective auth scheme IDs in priority order.
	AuthSchemes []string
}

// Service is a resolved view of a service shape.
type Service struct {
	ID      ShapeID
	Shape   *Shape
	Version string

	// Operations contains every operation reachable from the service,
	// including resource operations, sorted by name.
	Operations []*Operation

	// AuthSchemes lists the auth schemes the service supports, in priority order.
	AuthSchemes []string
}

// Operation looks up an operation by shape name.
func (s *Service) Operation(name string) (*Operation, bool) {
	for _, op := range s.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return nil, false
}

// Name returns the service shape name.
func (s *Service) Name() string {
	return s.ID.Name()
}

// Services returns the IDs of all service shapes.
func (m *Model) Services() []ShapeID {
	var ids []ShapeID
	for _, s := range m.ShapesOfKind(KindService) {
		ids = append(ids, s.ID)
	}
	return ids
}

// DefaultService resolves the only service in the model.
func (m *Model) DefaultService() (*Service, error) {
	ids := m.Services()
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("model contains no service shape")
	case 1:
		return m.Service(ids[0])
	default:
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = string(id)
		}
		return nil, fmt.Errorf("model contains multiple services (%s); select one", strings.Join(names, ", "))
	}
}

// Service resolves a service shape and all of its operations.
func (m *Model) Service(id ShapeID) (*Service, error) {
	shape, ok := m.shapes[id]
	if !ok {
		return nil, fmt.Errorf("unknown service %s", id)
	}
	if shape.Kind != KindService {
		return nil, fmt.Errorf("%s is a %s, not a service", id, shape.Kind)
	}

	svc := &Service{
		ID:          id,
		Shape:       shape,
		Version:     shape.Version,
		AuthSchemes: m.serviceAuthSchemes(shape),
	}

	opIDs := m.collectOperations(shape, make(map[ShapeID]bool))
	for _, opID := range opIDs {
		op, err := m.resolveOperation(svc, opID)
		if err != nil {
			return nil, err
		}
		svc.Operations = append(svc.Operations, op)
	}
	sort.Slice(svc.Operations, func(i, j int) bool {
		return svc.Operations[i].Name < svc.Operations[j].Name
	})
	return svc, nil
}

// collectOperations walks operations and nested resources depth first.
func (m *Model) collectOperations(s *Shape, seen map[ShapeID]bool) []ShapeID {
	var out []ShapeID
	for _, id := range s.Operations {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, rid := range s.Resources {
		if r, ok := m.shapes[rid]; ok && !seen[rid] {
			seen[rid] = true
			out = append(out, m.collectOperations(r, seen)...)
		}
	}
	return out
}

func (m *Model) resolveOperation(svc *Service, id ShapeID) (*Operation, error) {
	shape, ok := m.shapes[id]
	if !ok {
		return nil, fmt.Errorf("service %s references unknown operation %s", svc.ID, id)
	}
	if shape.Kind != KindOperation {
		return nil, fmt.Errorf("%s is a %s, not an operation", id, shape.Kind)
	}

	op := &Operation{
		ID:      id,
		Name:    id.Name(),
		Shape:   shape,
		Service: svc.ID,
		HTTP:    HTTPTrait{Method: "POST", URI: "/", Code: 200},
	}

	in, out := shape.Input, shape.Output
	if in.IsZero() {
		in = Unit
	}
	if out.IsZero() {
		out = Unit
	}
	if op.Input, ok = m.shapes[in]; !ok {
		return nil, fmt.Errorf("operation %s: unknown input %s", id, in)
	}
	if op.Output, ok = m.shapes[out]; !ok {
		return nil, fmt.Errorf("operation %s: unknown output %s", id, out)
	}

	seen := make(map[ShapeID]bool)
	for _, eid := range append(append([]ShapeID{}, shape.Errors...), svc.Shape.Errors...) {
		if seen[eid] {
			continue
		}
		seen[eid] = true
		es, ok := m.shapes[eid]
		if !ok {
			return nil, fmt.Errorf("operation %s: unknown error %s", id, eid)
		}
		op.Errors = append(op.Errors, es)
	}

	if shape.Traits.Has(TraitHTTP) {
		var h HTTPTrait
		if err := shape.Traits.Decode(TraitHTTP, &h); err != nil {
			return nil, fmt.Errorf("operation %s: %w", id, err)
		}
		if h.Code == 0 {
			h.Code = 200
		}
		op.HTTP = h
	}

	op.AuthSchemes = m.operationAuthSchemes(svc, shape)
	return op, nil
}

// serviceAuthSchemes returns the auth traits applied to the service. Without
// an explicit auth trait they are ordered alphabetically by trait ID.
func (m *Model) serviceAuthSchemes(svc *Shape) []string {
	var schemes []string
	for id := range svc.Traits {
		if m.isAuthDefinition(id) {
			schemes = append(schemes, id)
		}
	}
	sort.Strings(schemes)
	return schemes
}

func (m *Model) isAuthDefinition(traitID string) bool {
	switch traitID {
	case TraitHTTPBearerAuth, TraitHTTPAPIKeyAuth, TraitHTTPBasicAuth, TraitHTTPDigestAuth:
		return true
	}
	if s, ok := m.shapes[ShapeID(traitID)]; ok {
		return s.Traits.Has("smithy.api#authDefinition")
	}
	return false
}

func (m *Model) operationAuthSchemes(svc *Service, op *Shape) []string {
	schemes := svc.AuthSchemes
	for _, s := range []*Shape{svc.Shape, op} {
		if !s.Traits.Has(TraitAuth) {
			continue
		}
		var ordered []string
		if err := s.Traits.Decode(TraitAuth, &ordered); err == nil {
			schemes = intersectOrdered(ordered, svc.AuthSchemes)
		}
	}
	out := append([]string{}, schemes...)
	if len(out) == 0 || op.Traits.Has(TraitOptionalAuth) {
		out = append(out, NoAuth)
	}
	return out
}

func intersectOrdered(ordered, allowed []string) []string {
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	var out []string
	for _, s := range ordered {
		if ok[s] {
			out = append(out, s)
		}
	}
	return out
}
