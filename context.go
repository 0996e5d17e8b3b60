package shapeclient

import (
	"context"

	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
)

type contextKey struct {
	name string
}

var (
	operationKey = &contextKey{"operation"}
	attemptKey   = &contextKey{"attempt"}
)

// OperationFromContext returns the service and operation name of the
// current call.
func OperationFromContext(ctx context.Context) (service, operation string, ok bool) {
	if op, ok := ctx.Value(operationKey).(*model.Operation); ok {
		return op.Service.Name(), op.Name, true
	}
	return "", "", false
}

// AttemptFromContext returns the 1-based attempt number inside the retry
// loop, or 0 outside it.
func AttemptFromContext(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey).(int)
	return n
}

func withOperation(ctx context.Context, op *model.Operation) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey, n)
}

// InputContext is passed to hooks that run before serialization. Input is a
// runtime structure value.
type InputContext struct {
	Service   *model.Service
	Operation *model.Operation
	Input     map[string]any

	// Config is the configuration in effect for the call. Hooks must not
	// modify it.
	Config *Config
}

// RequestContext adds the transport request. It is passed to hooks between
// serialization and transmission.
type RequestContext struct {
	*InputContext
	Request *transport.Request

	// Attempt is 1-based inside the retry loop and 0 before it.
	Attempt int
}

// ResponseContext adds the transport response. It is passed to hooks
// between transmission and deserialization.
type ResponseContext struct {
	*RequestContext
	Response *transport.Response
}

// OutputContext is passed to hooks that run after deserialization and at
// completion. Exactly one of Output and Err is set. Request and Response
// are nil when the call failed before producing them.
type OutputContext struct {
	*InputContext
	Request  *transport.Request
	Response *transport.Response
	Attempt  int

	Output map[string]any
	Err    error
}
