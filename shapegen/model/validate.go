package model

// ValidationError represents a model validation error.
type ValidationError struct {
	Code    string
	Shape   ShapeID
	Message string
}

func (e *ValidationError) Error() string {
	if e.Shape.IsZero() {
		return e.Message
	}
	return string(e.Shape) + ": " + e.Message
}

// Validate checks the model for structural issues the runtime depends on.
// Returns all validation errors found (not just the first).
func (m *Model) Validate() []error {
	var errs []*ValidationError

	for _, s := range m.Shapes() {
		// Check member targets resolve
		for _, mem := range s.Members {
			if _, ok := m.shapes[mem.Target]; !ok {
				errs = append(errs, &ValidationError{
					Code:    "missing_target",
					Shape:   mem.ID(),
					Message: "targets unknown shape " + string(mem.Target),
				})
			}
		}

		switch s.Kind {
		case KindStructure:
			errs = append(errs, m.validatePayload(s)...)
		case KindUnion:
			if len(s.Members) == 0 {
				errs = append(errs, &ValidationError{
					Code:    "empty_union",
					Shape:   s.ID,
					Message: "union must have at least one member",
				})
			}
		case KindMap:
			if k := s.MapKey(); k != nil {
				if target, ok := m.shapes[k.Target]; ok && target.Kind != KindString && target.Kind != KindEnum {
					errs = append(errs, &ValidationError{
						Code:    "invalid_map_key",
						Shape:   s.ID,
						Message: "map keys must target a string or enum shape, got " + target.Kind.String(),
					})
				}
			}
		case KindOperation:
			for _, ref := range append([]ShapeID{s.Input, s.Output}, s.Errors...) {
				if ref.IsZero() {
					continue
				}
				if _, ok := m.shapes[ref]; !ok {
					errs = append(errs, &ValidationError{
						Code:    "missing_target",
						Shape:   s.ID,
						Message: "references unknown shape " + string(ref),
					})
				}
			}
			for _, ref := range s.Errors {
				if es, ok := m.shapes[ref]; ok && !es.IsError() {
					errs = append(errs, &ValidationError{
						Code:    "invalid_error",
						Shape:   s.ID,
						Message: string(ref) + " is bound as an error but lacks the error trait",
					})
				}
			}
		}
	}

	var result []error
	for _, e := range errs {
		result = append(result, e)
	}
	return result
}

// validatePayload checks that at most one member is bound to the payload and
// that a payload member is not mixed with document members.
func (m *Model) validatePayload(s *Shape) []*ValidationError {
	var errs []*ValidationError
	var payload *Member
	documentMembers := 0
	for _, mem := range s.Members {
		switch {
		case mem.Traits.Has(TraitHTTPPayload):
			if payload != nil {
				errs = append(errs, &ValidationError{
					Code:    "multiple_payload",
					Shape:   s.ID,
					Message: "members " + payload.Name + " and " + mem.Name + " are both bound to the payload",
				})
			}
			payload = mem
		case isBoundOutsideDocument(mem.Traits):
		default:
			documentMembers++
		}
	}
	if payload != nil && documentMembers > 0 {
		errs = append(errs, &ValidationError{
			Code:    "payload_conflict",
			Shape:   s.ID,
			Message: "payload member " + payload.Name + " cannot be combined with document members",
		})
	}
	return errs
}

func isBoundOutsideDocument(t Traits) bool {
	for _, id := range []string{
		TraitHTTPHeader, TraitHTTPLabel, TraitHTTPQuery, TraitHTTPQueryParams,
		TraitHTTPPrefixHeaders, TraitHTTPResponseCode,
	} {
		if t.Has(id) {
			return true
		}
	}
	return false
}
