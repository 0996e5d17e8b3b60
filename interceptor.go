package shapeclient

import (
	"context"
	"reflect"

	"github.com/broady/shapeclient/transport"
)

// Interceptor observes and modifies a call as it moves through the
// execution pipeline. Read hooks may only fail; their errors move the call
// to its error path. Modify hooks return a replacement value.
//
// Hooks run in the order below. Those between ReadBeforeAttempt and
// ReadAfterAttempt run once per attempt.
//
//	ReadBeforeExecution
//	ModifyBeforeSerialization, ReadBeforeSerialization
//	ReadAfterSerialization
//	ModifyBeforeRetryLoop
//	  ReadBeforeAttempt
//	  ModifyBeforeSigning, ReadBeforeSigning, ReadAfterSigning
//	  ModifyBeforeTransmit, ReadBeforeTransmit, ReadAfterTransmit
//	  ModifyBeforeDeserialization, ReadBeforeDeserialization
//	  ReadAfterDeserialization
//	  ModifyBeforeAttemptCompletion, ReadAfterAttempt
//	ModifyBeforeCompletion
//	ReadAfterExecution
//
// Embed NopInterceptor to implement only the hooks you need.
type Interceptor interface {
	ReadBeforeExecution(ctx context.Context, in *InputContext) error
	ModifyBeforeSerialization(ctx context.Context, in *InputContext) (map[string]any, error)
	ReadBeforeSerialization(ctx context.Context, in *InputContext) error
	ReadAfterSerialization(ctx context.Context, req *RequestContext) error
	ModifyBeforeRetryLoop(ctx context.Context, req *RequestContext) (*transport.Request, error)

	ReadBeforeAttempt(ctx context.Context, req *RequestContext) error
	ModifyBeforeSigning(ctx context.Context, req *RequestContext) (*transport.Request, error)
	ReadBeforeSigning(ctx context.Context, req *RequestContext) error
	ReadAfterSigning(ctx context.Context, req *RequestContext) error
	ModifyBeforeTransmit(ctx context.Context, req *RequestContext) (*transport.Request, error)
	ReadBeforeTransmit(ctx context.Context, req *RequestContext) error
	ReadAfterTransmit(ctx context.Context, resp *ResponseContext) error
	ModifyBeforeDeserialization(ctx context.Context, resp *ResponseContext) (*transport.Response, error)
	ReadBeforeDeserialization(ctx context.Context, resp *ResponseContext) error
	ReadAfterDeserialization(ctx context.Context, out *OutputContext) error

	// ModifyBeforeAttemptCompletion and ModifyBeforeCompletion return the
	// output and error that replace out.Output and out.Err.
	ModifyBeforeAttemptCompletion(ctx context.Context, out *OutputContext) (map[string]any, error)
	ReadAfterAttempt(ctx context.Context, out *OutputContext) error
	ModifyBeforeCompletion(ctx context.Context, out *OutputContext) (map[string]any, error)
	ReadAfterExecution(ctx context.Context, out *OutputContext) error
}

// NopInterceptor implements every hook as a no-op.
type NopInterceptor struct{}

func (NopInterceptor) ReadBeforeExecution(context.Context, *InputContext) error { return nil }

func (NopInterceptor) ModifyBeforeSerialization(_ context.Context, in *InputContext) (map[string]any, error) {
	return in.Input, nil
}

func (NopInterceptor) ReadBeforeSerialization(context.Context, *InputContext) error  { return nil }
func (NopInterceptor) ReadAfterSerialization(context.Context, *RequestContext) error { return nil }

func (NopInterceptor) ModifyBeforeRetryLoop(_ context.Context, req *RequestContext) (*transport.Request, error) {
	return req.Request, nil
}

func (NopInterceptor) ReadBeforeAttempt(context.Context, *RequestContext) error { return nil }

func (NopInterceptor) ModifyBeforeSigning(_ context.Context, req *RequestContext) (*transport.Request, error) {
	return req.Request, nil
}

func (NopInterceptor) ReadBeforeSigning(context.Context, *RequestContext) error { return nil }
func (NopInterceptor) ReadAfterSigning(context.Context, *RequestContext) error  { return nil }

func (NopInterceptor) ModifyBeforeTransmit(_ context.Context, req *RequestContext) (*transport.Request, error) {
	return req.Request, nil
}

func (NopInterceptor) ReadBeforeTransmit(context.Context, *RequestContext) error { return nil }
func (NopInterceptor) ReadAfterTransmit(context.Context, *ResponseContext) error { return nil }

func (NopInterceptor) ModifyBeforeDeserialization(_ context.Context, resp *ResponseContext) (*transport.Response, error) {
	return resp.Response, nil
}

func (NopInterceptor) ReadBeforeDeserialization(context.Context, *ResponseContext) error { return nil }
func (NopInterceptor) ReadAfterDeserialization(context.Context, *OutputContext) error    { return nil }

func (NopInterceptor) ModifyBeforeAttemptCompletion(_ context.Context, out *OutputContext) (map[string]any, error) {
	return out.Output, out.Err
}

func (NopInterceptor) ReadAfterAttempt(context.Context, *OutputContext) error { return nil }

func (NopInterceptor) ModifyBeforeCompletion(_ context.Context, out *OutputContext) (map[string]any, error) {
	return out.Output, out.Err
}

func (NopInterceptor) ReadAfterExecution(context.Context, *OutputContext) error { return nil }

// containsInterceptor reports whether list holds i. Interceptors of
// comparable dynamic type are compared by value; others never match, so
// callers must not rely on it to find an interceptor they already hold by
// position.
func containsInterceptor(list []Interceptor, i Interceptor) bool {
	if !reflect.TypeOf(i).Comparable() {
		return false
	}
	for _, x := range list {
		if reflect.TypeOf(x) == reflect.TypeOf(i) && x == i {
			return true
		}
	}
	return false
}
