package shapeclient

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/broady/shapeclient/apierror"
	"github.com/broady/shapeclient/httpbinding"
	"github.com/broady/shapeclient/transport"
)

// execution walks one call through the pipeline.
type execution struct {
	cfg   *Config
	log   *slog.Logger
	in    *InputContext
	codec *httpbinding.OperationCodec

	// Last request and response seen, for the completion hooks.
	req     *transport.Request
	resp    *transport.Response
	attempt int
}

// readHook runs a read hook on every interceptor. Every interceptor runs
// even after a failure; the last error wins and earlier ones are logged.
func (x *execution) readHook(hook string, fn func(Interceptor) error) error {
	var last error
	for _, i := range x.cfg.Interceptors {
		if err := fn(i); err != nil {
			if last != nil {
				x.log.Debug("interceptor error replaced", "hook", hook, "error", last)
			}
			last = err
		}
	}
	return last
}

// guard runs fn and turns a panic into a CodeInternal error.
func (x *execution) guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = x.recovered(rec)
		}
	}()
	return fn()
}

// recovered logs a recovered panic with its stack and returns it as an
// *Error.
func (x *execution) recovered(rec any) error {
	x.log.Error("PANIC recovered",
		slog.String("operation", x.in.Operation.Name),
		slog.Any("panic", rec),
		slog.String("stack", string(debug.Stack())))
	e := NewError(CodeInternal, fmt.Sprintf("panic: %v", rec))
	if cause, ok := rec.(error); ok {
		e.Err = cause
	}
	return e
}

// run executes everything between serialization and the end of the retry
// loop.
func (x *execution) run(ctx context.Context) (map[string]any, error) {
	in := x.in
	for _, i := range x.cfg.Interceptors {
		v, err := i.ModifyBeforeSerialization(ctx, in)
		if err != nil {
			return nil, err
		}
		in.Input = v
	}
	if err := x.readHook("ReadBeforeSerialization", func(i Interceptor) error {
		return i.ReadBeforeSerialization(ctx, in)
	}); err != nil {
		return nil, err
	}

	codec, err := x.cfg.Protocol.Operation(x.cfg.Model, in.Operation)
	if err != nil {
		return nil, atStage(CodeSerialization, err)
	}
	x.codec = codec
	req, err := codec.SerializeRequest(ctx, in.Input)
	if err != nil {
		return nil, atStage(CodeSerialization, err)
	}
	x.req = req

	rc := &RequestContext{InputContext: in, Request: req}
	if err := x.readHook("ReadAfterSerialization", func(i Interceptor) error {
		return i.ReadAfterSerialization(ctx, rc)
	}); err != nil {
		return nil, err
	}
	for _, i := range x.cfg.Interceptors {
		r, err := i.ModifyBeforeRetryLoop(ctx, rc)
		if err != nil {
			return nil, err
		}
		rc.Request = r
	}
	x.req = rc.Request
	return x.retryLoop(ctx, rc.Request)
}

// retryLoop sends copies of base until an attempt succeeds or the retry
// strategy gives up.
func (x *execution) retryLoop(ctx context.Context, base *transport.Request) (map[string]any, error) {
	op := x.in.Operation
	strategy := x.cfg.RetryStrategy
	token, err := strategy.AcquireInitialRetryToken(ctx, op.ID.String())
	if err != nil {
		return nil, err
	}
	auth, err := selectAuth(ctx, x.cfg, x.in)
	if err != nil {
		return nil, atStage(CodeUnauthenticated, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := base
		if base.Rewindable() {
			if req, err = base.Clone(); err != nil {
				return nil, err
			}
		}
		x.attempt = token.Attempt()
		x.log.Debug("attempt", "operation", op.Name, "attempt", x.attempt)

		output, err := x.runAttempt(withAttempt(ctx, x.attempt), auth, req)
		if err == nil {
			strategy.RecordSuccess(token)
			return output, nil
		}
		if !base.Rewindable() {
			return nil, err
		}
		next, refusal := strategy.RefreshRetryToken(token, err)
		if refusal != nil {
			x.log.Debug("not retrying", "operation", op.Name, "attempt", x.attempt, "reason", refusal)
			return nil, err
		}
		token = next
		delay := token.RetryDelay()
		x.log.Warn("retrying",
			"operation", op.Name,
			"attempt", token.Attempt(),
			"delay", delay,
			"error", err)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runAttempt runs one attempt and its completion hooks.
func (x *execution) runAttempt(ctx context.Context, auth *selectedAuth, req *transport.Request) (map[string]any, error) {
	rc := &RequestContext{InputContext: x.in, Request: req, Attempt: x.attempt}
	x.resp = nil
	output, err := x.transmit(ctx, auth, rc)
	x.req = rc.Request
	if err != nil && x.resp != nil {
		x.resp.Close()
	}

	out := &OutputContext{
		InputContext: x.in,
		Request:      rc.Request,
		Response:     x.resp,
		Attempt:      x.attempt,
		Output:       output,
		Err:          err,
	}
	for _, i := range x.cfg.Interceptors {
		out.Output, out.Err = i.ModifyBeforeAttemptCompletion(ctx, out)
	}
	if err := x.readHook("ReadAfterAttempt", func(i Interceptor) error {
		return i.ReadAfterAttempt(ctx, out)
	}); err != nil {
		out.Output, out.Err = nil, err
	}
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Output, nil
}

// transmit signs, sends and deserializes one attempt.
func (x *execution) transmit(ctx context.Context, auth *selectedAuth, rc *RequestContext) (map[string]any, error) {
	cfg := x.cfg
	if err := x.readHook("ReadBeforeAttempt", func(i Interceptor) error {
		return i.ReadBeforeAttempt(ctx, rc)
	}); err != nil {
		return nil, err
	}

	identity, err := auth.resolveIdentity(ctx)
	if err != nil {
		return nil, atStage(CodeUnauthenticated, err)
	}

	if cfg.EndpointResolver == nil {
		return nil, atStage(CodeEndpoint, ErrNoEndpoint)
	}
	ep, err := cfg.EndpointResolver.ResolveEndpoint(ctx, EndpointParams{
		Operation: x.in.Operation,
		Input:     x.in.Input,
	})
	if err != nil {
		return nil, atStage(CodeEndpoint, err)
	}
	if err := applyEndpoint(rc.Request, ep); err != nil {
		return nil, atStage(CodeEndpoint, err)
	}

	for _, i := range cfg.Interceptors {
		r, err := i.ModifyBeforeSigning(ctx, rc)
		if err != nil {
			return nil, err
		}
		rc.Request = r
	}
	if err := x.readHook("ReadBeforeSigning", func(i Interceptor) error {
		return i.ReadBeforeSigning(ctx, rc)
	}); err != nil {
		return nil, err
	}
	if err := auth.sign(ctx, rc.Request, identity); err != nil {
		return nil, atStage(CodeUnauthenticated, fmt.Errorf("sign: %w", err))
	}
	if err := x.readHook("ReadAfterSigning", func(i Interceptor) error {
		return i.ReadAfterSigning(ctx, rc)
	}); err != nil {
		return nil, err
	}

	for _, i := range cfg.Interceptors {
		r, err := i.ModifyBeforeTransmit(ctx, rc)
		if err != nil {
			return nil, err
		}
		rc.Request = r
	}
	if err := x.readHook("ReadBeforeTransmit", func(i Interceptor) error {
		return i.ReadBeforeTransmit(ctx, rc)
	}); err != nil {
		return nil, err
	}

	resp, err := cfg.HTTPClient.Send(ctx, rc.Request)
	if err != nil {
		return nil, err
	}
	x.resp = resp

	respCtx := &ResponseContext{RequestContext: rc, Response: resp}
	if err := x.readHook("ReadAfterTransmit", func(i Interceptor) error {
		return i.ReadAfterTransmit(ctx, respCtx)
	}); err != nil {
		return nil, err
	}
	for _, i := range cfg.Interceptors {
		r, err := i.ModifyBeforeDeserialization(ctx, respCtx)
		if err != nil {
			return nil, err
		}
		respCtx.Response = r
		x.resp = r
	}
	if err := x.readHook("ReadBeforeDeserialization", func(i Interceptor) error {
		return i.ReadBeforeDeserialization(ctx, respCtx)
	}); err != nil {
		return nil, err
	}

	output, err := x.codec.DeserializeResponse(ctx, respCtx.Response)
	if err != nil {
		if _, ok := apierror.As(err); !ok {
			err = atStage(CodeDeserialization, err)
		}
	}
	out := &OutputContext{
		InputContext: x.in,
		Request:      rc.Request,
		Response:     respCtx.Response,
		Attempt:      x.attempt,
		Output:       output,
		Err:          err,
	}
	if rerr := x.readHook("ReadAfterDeserialization", func(i Interceptor) error {
		return i.ReadAfterDeserialization(ctx, out)
	}); rerr != nil {
		return nil, rerr
	}
	return output, err
}
