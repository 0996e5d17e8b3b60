package httpbinding

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/broady/shapeclient/apierror"
	"github.com/broady/shapeclient/document"
	"github.com/broady/shapeclient/transport"
	"github.com/broady/shapeclient/wire"
)

var (
	codeFields    = []string{"__type", "code", "type"}
	messageFields = []string{"message", "Message", "errorMessage"}
)

// DispatchError converts an error response into an error value. It never
// returns nil. Modeled errors of the operation and its service are matched
// by code, case-insensitively; anything else becomes an
// *apierror.UnknownError. The body is buffered, so dispatching the same
// response twice yields equal errors.
func (c *OperationCodec) DispatchError(ctx context.Context, resp *transport.Response) error {
	data, err := resp.BufferBody()
	if err != nil {
		data = nil
	}
	var obj map[string]any
	if doc, err := document.Decode(data); err == nil {
		obj, _ = doc.(map[string]any)
	}

	code := SanitizeErrorCode(errorCode(resp.Header, obj))
	message := stringField(obj, messageFields)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	es := c.matchError(code, resp.StatusCode)
	if es == nil {
		return &apierror.UnknownError{
			Code:       code,
			Message:    message,
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
		}
	}

	fields := make(map[string]any)
	if obj != nil {
		if vals, err := c.docs.DeserializeMembers(es.shape.ID, obj, es.docNames); err == nil {
			fields = vals
		}
	}
	_ = c.deserializeHeaders(es.bindings, resp.Header, fields)

	meta := apierror.NewMeta(es.shape, message, resp.StatusCode)
	meta.RetryAfter = retryAfter
	if f, ok := c.proto.factory(es.shape.ID); ok {
		return f(meta, fields)
	}
	return &apierror.ModeledError{Meta: meta, Shape: es.shape.ID, Fields: fields}
}

func errorCode(h http.Header, obj map[string]any) string {
	if v := h.Get(ErrorTypeHeader); v != "" {
		return v
	}
	return stringField(obj, codeFields)
}

func stringField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// SanitizeErrorCode strips a namespace prefix ("ns#Name") and anything after
// a colon ("Name:http://...") from an error code.
func SanitizeErrorCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, ':'); i >= 0 {
		code = code[:i]
	}
	if i := strings.LastIndexByte(code, '#'); i >= 0 {
		code = code[i+1:]
	}
	return code
}

// matchError finds the error shape named code, with or without its Error or
// Exception suffix. Without a code, an error shape is chosen only if it is
// the single one declaring the status.
func (c *OperationCodec) matchError(code string, status int) *errorShape {
	if code != "" {
		for _, es := range c.errors {
			if strings.EqualFold(es.shape.ID.Name(), code) {
				return es
			}
		}
		for _, es := range c.errors {
			if strings.EqualFold(trimErrorSuffix(es.shape.ID.Name()), code) {
				return es
			}
		}
		return nil
	}
	var match *errorShape
	for _, es := range c.errors {
		if es.status == status {
			if match != nil {
				return nil
			}
			match = es
		}
	}
	return match
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := wire.ParseTimestamp(v, wire.HTTPDate); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func trimErrorSuffix(name string) string {
	for _, suffix := range []string{"Error", "Exception"} {
		if trimmed := strings.TrimSuffix(name, suffix); trimmed != "" && trimmed != name {
			return trimmed
		}
	}
	return name
}
