package httpbinding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/broady/shapeclient/binding"
	"github.com/broady/shapeclient/document"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
	"github.com/broady/shapeclient/wire"
)

// OperationCodec converts one operation's values to and from HTTP messages.
// It is safe for concurrent use.
type OperationCodec struct {
	proto *Protocol
	model *model.Model
	op    *model.Operation
	docs  *document.Codec
	uri   *binding.URIPattern

	input  *binding.Bindings
	output *binding.Bindings

	inputDoc  []string
	outputDoc []string

	errors []*errorShape
}

type errorShape struct {
	shape    *model.Shape
	bindings *binding.Bindings
	docNames []string
	status   int
}

func (p *Protocol) newOperationCodec(m *model.Model, op *model.Operation) (*OperationCodec, error) {
	r := binding.Resolver{IgnoreJSONName: p.ignoreJSONName}
	in, err := r.Resolve(m, op, binding.Request)
	if err != nil {
		return nil, err
	}
	out, err := r.Resolve(m, op, binding.Response)
	if err != nil {
		return nil, err
	}
	uri, err := binding.ParseURIPattern(op.HTTP.URI)
	if err != nil {
		return nil, err
	}
	for _, b := range []*binding.Binding{in.Payload(), out.Payload()} {
		if b != nil && !payloadSupported(b.Target) {
			return nil, fmt.Errorf("%w: %s member %s targets %s", ErrUnsupportedPayload, op.Name, b.Name(), b.Target.ID)
		}
	}
	c := &OperationCodec{
		proto:     p,
		model:     m,
		op:        op,
		docs:      p.Documents(m),
		uri:       uri,
		input:     in,
		output:    out,
		inputDoc:  names(in.In(binding.Document)),
		outputDoc: names(out.In(binding.Document)),
	}
	for _, es := range op.Errors {
		eb, err := r.ResolveShape(m, es, binding.Response)
		if err != nil {
			return nil, err
		}
		status := 0
		_ = es.Traits.Decode(model.TraitHTTPError, &status)
		c.errors = append(c.errors, &errorShape{
			shape:    es,
			bindings: eb,
			docNames: names(eb.In(binding.Document)),
			status:   status,
		})
	}
	return c, nil
}

func names(bs []*binding.Binding) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name()
	}
	return out
}

func payloadSupported(s *model.Shape) bool {
	if s.Traits.Has(model.TraitEventStream) {
		return false
	}
	switch s.Kind {
	case model.KindBlob, model.KindString, model.KindEnum, model.KindStructure, model.KindDocument:
		return true
	}
	return false
}

// Operation returns the operation the codec serves.
func (c *OperationCodec) Operation() *model.Operation { return c.op }

// Input returns the request bindings.
func (c *OperationCodec) Input() *binding.Bindings { return c.input }

// Output returns the response bindings.
func (c *OperationCodec) Output() *binding.Bindings { return c.output }

func (c *OperationCodec) text(b *binding.Binding, loc binding.Location) wire.Text {
	return wire.Text{
		Timestamp:       wire.ResolveTimestampFormat(b.Traits, c.proto.TimestampFormat(loc)),
		Base64MediaType: loc == binding.Header,
	}
}

// SerializeRequest builds the request for input, a runtime structure value.
// The URL holds only the operation path and query; the endpoint is applied
// later.
func (c *OperationCodec) SerializeRequest(ctx context.Context, input map[string]any) (*transport.Request, error) {
	input = c.fillIdempotencyTokens(input)
	req := transport.NewRequest(c.op.HTTP.Method)

	if err := c.serializeBody(req, input); err != nil {
		return nil, err
	}
	if err := c.serializeHeaders(req, input); err != nil {
		return nil, err
	}
	path, err := c.serializePath(input)
	if err != nil {
		return nil, err
	}
	query, err := c.serializeQuery(input)
	if err != nil {
		return nil, err
	}
	req.URL.RawPath = path
	if req.URL.Path, err = url.PathUnescape(path); err != nil {
		return nil, err
	}
	req.URL.RawQuery = query
	return req, nil
}

func (c *OperationCodec) fillIdempotencyTokens(input map[string]any) map[string]any {
	var out map[string]any
	for _, b := range c.input.All {
		if !b.Traits.Has(model.TraitIdempotencyToken) || input[b.Name()] != nil {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(input)+1)
			for k, v := range input {
				out[k] = v
			}
		}
		out[b.Name()] = uuid.NewString()
	}
	if out == nil {
		return input
	}
	return out
}

func (c *OperationCodec) serializeBody(req *transport.Request, input map[string]any) error {
	if p := c.input.Payload(); p != nil {
		return c.serializePayload(req, p, input[p.Name()])
	}
	if len(c.inputDoc) == 0 {
		return nil
	}
	doc, err := c.docs.SerializeMembers(c.input.Shape.ID, input, c.inputDoc)
	if err != nil {
		return err
	}
	data, err := document.Encode(doc)
	if err != nil {
		return err
	}
	req.SetBytes(data)
	req.Header.Set("Content-Type", JSONContentType)
	return nil
}

func (c *OperationCodec) serializePayload(req *transport.Request, b *binding.Binding, v any) error {
	if v == nil {
		return nil
	}
	contentType := b.Traits.String(model.TraitMediaType)
	switch b.Target.Kind {
	case model.KindBlob:
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		switch body := v.(type) {
		case []byte:
			req.SetBytes(body)
		case string:
			req.SetBytes([]byte(body))
		case io.Reader:
			if err := setStream(req, body, b.Traits.Has(model.TraitRequiresLength)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("httpbinding: payload %s: %T is not a blob", b.Name(), v)
		}
	case model.KindString, model.KindEnum:
		if contentType == "" {
			contentType = "text/plain"
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("httpbinding: payload %s: %T is not a string", b.Name(), v)
		}
		req.SetBytes([]byte(s))
	case model.KindStructure, model.KindDocument:
		if contentType == "" {
			contentType = JSONContentType
		}
		data, err := c.docs.Marshal(b.Target.ID, v)
		if err != nil {
			return err
		}
		req.SetBytes(data)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPayload, b.Target.Kind)
	}
	req.Header.Set("Content-Type", contentType)
	return nil
}

// setStream attaches a streaming body. When the length is required but not
// known, a seekable stream is measured and anything else is buffered.
func setStream(req *transport.Request, r io.Reader, requiresLength bool) error {
	length := int64(-1)
	if l, ok := r.(interface{ Len() int }); ok {
		length = int64(l.Len())
	}
	if length < 0 && requiresLength {
		if s, ok := r.(io.Seeker); ok {
			cur, err := s.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			end, err := s.Seek(0, io.SeekEnd)
			if err != nil {
				return err
			}
			if _, err := s.Seek(cur, io.SeekStart); err != nil {
				return err
			}
			length = end - cur
		} else {
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("httpbinding: buffer stream: %w", err)
			}
			req.SetBytes(data)
			return nil
		}
	}
	return req.SetBody(r, length)
}

func (c *OperationCodec) serializeHeaders(req *transport.Request, input map[string]any) error {
	for _, b := range c.input.In(binding.Header) {
		v := input[b.Name()]
		if v == nil {
			continue
		}
		s, err := c.formatHeader(b, v)
		if err != nil {
			return fmt.Errorf("httpbinding: header %s: %w", b.WireName, err)
		}
		req.Header.Set(b.WireName, s)
	}
	for _, b := range c.input.In(binding.PrefixHeaders) {
		v := input[b.Name()]
		if v == nil {
			continue
		}
		entries, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("httpbinding: prefix headers %s: %w", b.WireName, &wire.TypeError{Kind: "map", Value: v})
		}
		for k, ev := range entries {
			if ev == nil {
				continue
			}
			s, ok := ev.(string)
			if !ok {
				return fmt.Errorf("httpbinding: header %s%s: %w", b.WireName, k, &wire.TypeError{Kind: "string", Value: ev})
			}
			req.Header.Set(b.WireName+k, s)
		}
	}
	return nil
}

func (c *OperationCodec) formatHeader(b *binding.Binding, v any) (string, error) {
	text := c.text(b, binding.Header)
	if b.Target.Kind.IsList() {
		elem, err := c.model.Target(b.Target.ListMember())
		if err != nil {
			return "", err
		}
		items, ok := v.([]any)
		if !ok {
			return "", &wire.TypeError{Kind: "list", Value: v}
		}
		return text.FormatList(elem, c.model.MemberTraits(b.Target.ListMember()), items)
	}
	return text.Format(b.Target, b.Traits, v)
}

func (c *OperationCodec) serializePath(input map[string]any) (string, error) {
	if len(c.uri.Segments) == 0 {
		return "/", nil
	}
	var sb strings.Builder
	for _, seg := range c.uri.Segments {
		sb.WriteByte('/')
		if !seg.IsLabel() {
			sb.WriteString(seg.Literal)
			continue
		}
		b, ok := c.input.Member(c.labelMember(seg.Label))
		if !ok {
			return "", &LabelError{Operation: c.op.Name, Label: seg.Label}
		}
		v := input[b.Name()]
		if v == nil {
			return "", &LabelError{Operation: c.op.Name, Label: seg.Label}
		}
		s, err := c.text(b, binding.Label).Format(b.Target, b.Traits, v)
		if err != nil {
			return "", fmt.Errorf("httpbinding: label {%s}: %w", seg.Label, err)
		}
		if s == "" {
			return "", &LabelError{Operation: c.op.Name, Label: seg.Label}
		}
		sb.WriteString(wire.EscapeLabel(s, seg.Greedy))
	}
	return sb.String(), nil
}

func (c *OperationCodec) labelMember(label string) string {
	for _, b := range c.input.In(binding.Label) {
		if b.WireName == label {
			return b.Name()
		}
	}
	return ""
}

type queryParam struct{ key, value string }

func (c *OperationCodec) serializeQuery(input map[string]any) (string, error) {
	var params []queryParam
	for _, lit := range c.uri.Query {
		params = append(params, queryParam{lit.Key, lit.Value})
	}
	bound := make(map[string]bool)
	for _, b := range c.input.In(binding.Query) {
		v := input[b.Name()]
		if v == nil {
			continue
		}
		bound[b.WireName] = true
		text := c.text(b, binding.Query)
		target, traits := b.Target, b.Traits
		items := []any{v}
		if b.Target.Kind.IsList() {
			var ok bool
			if items, ok = v.([]any); !ok {
				return "", fmt.Errorf("httpbinding: query %s: %T is not a list", b.WireName, v)
			}
			mem := b.Target.ListMember()
			elem, err := c.model.Target(mem)
			if err != nil {
				return "", err
			}
			target, traits = elem, c.model.MemberTraits(mem)
		}
		for _, it := range items {
			if it == nil {
				continue
			}
			s, err := text.Format(target, traits, it)
			if err != nil {
				return "", fmt.Errorf("httpbinding: query %s: %w", b.WireName, err)
			}
			params = append(params, queryParam{b.WireName, s})
		}
	}
	for _, b := range c.input.In(binding.QueryParams) {
		raw := input[b.Name()]
		if raw == nil {
			continue
		}
		entries, ok := raw.(map[string]any)
		if !ok {
			return "", fmt.Errorf("httpbinding: query params %s: %w", b.Name(), &wire.TypeError{Kind: "map", Value: raw})
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if bound[k] {
				continue
			}
			switch v := entries[k].(type) {
			case nil:
			case string:
				params = append(params, queryParam{k, v})
			case []any:
				for _, it := range v {
					if it == nil {
						continue
					}
					s, ok := it.(string)
					if !ok {
						return "", fmt.Errorf("httpbinding: query %s: %w", k, &wire.TypeError{Kind: "string", Value: it})
					}
					params = append(params, queryParam{k, s})
				}
			default:
				return "", fmt.Errorf("httpbinding: query %s: %w", k, &wire.TypeError{Kind: "string", Value: v})
			}
		}
	}

	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(wire.EscapeQuery(p.key))
		if p.value != "" || !c.isBareLiteral(p) {
			sb.WriteByte('=')
			sb.WriteString(wire.EscapeQuery(p.value))
		}
	}
	return sb.String(), nil
}

// isBareLiteral reports whether p is a static query literal written
// without a value, such as "?flag".
func (c *OperationCodec) isBareLiteral(p queryParam) bool {
	for _, lit := range c.uri.Query {
		if lit.Key == p.key && lit.Value == "" {
			return true
		}
	}
	return false
}

// DeserializeResponse decodes a successful response into a runtime
// structure value. A status other than the operation's declared code is
// passed to DispatchError. Streaming payloads are returned unread; every
// other body is consumed and closed.
func (c *OperationCodec) DeserializeResponse(ctx context.Context, resp *transport.Response) (map[string]any, error) {
	if resp.StatusCode != c.op.HTTP.Code {
		return nil, c.DispatchError(ctx, resp)
	}
	out := make(map[string]any)

	streaming, err := c.deserializeBody(resp, out)
	if !streaming {
		resp.Close()
	}
	if err != nil {
		return nil, err
	}
	if err := c.deserializeHeaders(c.output, resp.Header, out); err != nil {
		if streaming {
			resp.Close()
		}
		return nil, err
	}
	for _, b := range c.output.In(binding.ResponseCode) {
		out[b.Name()] = int64(resp.StatusCode)
	}
	return out, nil
}

func (c *OperationCodec) deserializeBody(resp *transport.Response, out map[string]any) (streaming bool, err error) {
	if p := c.output.Payload(); p != nil {
		return c.deserializePayload(resp, p, out)
	}
	if len(c.outputDoc) == 0 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	data, err := resp.BufferBody()
	if err != nil {
		return false, err
	}
	doc, err := document.Decode(data)
	if err != nil {
		return false, fmt.Errorf("httpbinding: decode %s response: %w", c.op.Name, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	vals, err := c.docs.DeserializeMembers(c.output.Shape.ID, doc, c.outputDoc)
	if err != nil {
		return false, err
	}
	for k, v := range vals {
		out[k] = v
	}
	return false, nil
}

func (c *OperationCodec) deserializePayload(resp *transport.Response, b *binding.Binding, out map[string]any) (bool, error) {
	if b.Target.Kind == model.KindBlob && b.Target.Traits.Has(model.TraitStreaming) {
		out[b.Name()] = resp.Body
		return true, nil
	}
	data, err := resp.BufferBody()
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	switch b.Target.Kind {
	case model.KindBlob:
		out[b.Name()] = data
	case model.KindString, model.KindEnum:
		out[b.Name()] = string(data)
	case model.KindStructure, model.KindDocument:
		v, err := c.docs.Unmarshal(b.Target.ID, data)
		if err != nil {
			return false, err
		}
		out[b.Name()] = v
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedPayload, b.Target.Kind)
	}
	return false, nil
}

func (c *OperationCodec) deserializeHeaders(bs *binding.Bindings, h http.Header, out map[string]any) error {
	for _, b := range bs.In(binding.Header) {
		values := h.Values(b.WireName)
		if len(values) == 0 {
			continue
		}
		text := c.text(b, binding.Header)
		if b.Target.Kind.IsList() {
			mem := b.Target.ListMember()
			elem, err := c.model.Target(mem)
			if err != nil {
				return err
			}
			items, err := text.ParseList(elem, c.model.MemberTraits(mem), strings.Join(values, ", "))
			if err != nil {
				return fmt.Errorf("httpbinding: header %s: %w", b.WireName, err)
			}
			out[b.Name()] = items
			continue
		}
		v, err := text.Parse(b.Target, b.Traits, strings.TrimSpace(values[0]))
		if err != nil {
			return fmt.Errorf("httpbinding: header %s: %w", b.WireName, err)
		}
		out[b.Name()] = v
	}
	for _, b := range bs.In(binding.PrefixHeaders) {
		prefix := strings.ToLower(b.WireName)
		entries := make(map[string]any)
		for k, vs := range h {
			lk := strings.ToLower(k)
			if !strings.HasPrefix(lk, prefix) || len(vs) == 0 {
				continue
			}
			entries[lk[len(prefix):]] = vs[0]
		}
		if len(entries) > 0 {
			out[b.Name()] = entries
		}
	}
	return nil
}
