// Package shapeclient executes operations of a service model over HTTP.
//
// A Client interprets a loaded model directly: each call serializes a
// runtime input value into a request, runs it through the configured
// interceptors, auth, endpoint and retry strategy, and deserializes the
// response into an output value or an API error.
//
//	m := model.MustLoad(data)
//	c, err := shapeclient.New(m, "", shapeclient.WithEndpoint("https://api.example.com"))
//	out, err := c.Invoke(ctx, "GetWidget", map[string]any{"id": "abc"})
//
// Generated clients wrap a Client with typed methods that call Invoke.
package shapeclient

import (
	"context"
	"fmt"

	"github.com/broady/shapeclient/httpbinding"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
)

// Client calls the operations of one service.
// It is safe for concurrent use.
type Client struct {
	cfg *Config
}

// New creates a client for the service svc of m. An empty svc selects the
// model's only service. Plugins apply in order, then client-wide
// integrations, then defaults for anything still unset.
func New(m *model.Model, svc model.ShapeID, plugins ...Plugin) (*Client, error) {
	var (
		service *model.Service
		err     error
	)
	if svc == "" {
		service, err = m.DefaultService()
	} else {
		service, err = m.Service(svc)
	}
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%v", err)
	}

	cfg := &Config{
		Model:       m,
		Service:     service,
		AuthSchemes: []AuthScheme{NoAuthScheme()},
	}
	for _, p := range plugins {
		p(cfg)
	}
	for _, in := range cfg.Integrations {
		if in.Predicate == nil {
			in.apply(cfg)
		}
	}

	if cfg.Protocol == nil {
		cfg.Protocol = httpbinding.NewJSON()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = transport.NewHTTPClient(nil)
	}
	if cfg.RetryStrategy == nil {
		cfg.RetryStrategy = NewStandardRetryStrategy()
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.logger()
	}
	if _, ok := cfg.AuthScheme(model.NoAuth); !ok {
		cfg.AuthSchemes = append(cfg.AuthSchemes, NoAuthScheme())
	}
	return &Client{cfg: cfg}, nil
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() *Config {
	return c.cfg.Copy()
}

// Service returns the service the client calls.
func (c *Client) Service() *model.Service {
	return c.cfg.Service
}

// Protocol returns the protocol. Generated clients register their error
// types on it.
func (c *Client) Protocol() *httpbinding.Protocol {
	return c.cfg.Protocol
}

// Invoke calls the named operation with a runtime structure value and
// returns the output value. Plugins apply to this call only.
//
// Every error returned is an *Error. API errors are reachable with
// errors.As.
func (c *Client) Invoke(ctx context.Context, operation string, input map[string]any, plugins ...Plugin) (map[string]any, error) {
	op, ok := c.cfg.Service.Operation(operation)
	if !ok {
		return nil, &Error{
			Code:      CodeNotFound,
			Operation: operation,
			Message:   fmt.Sprintf("service %s has no operation %q", c.cfg.Service.Name(), operation),
		}
	}
	return c.invoke(ctx, op, input, plugins)
}

func (c *Client) invoke(ctx context.Context, op *model.Operation, input map[string]any, plugins []Plugin) (output map[string]any, err error) {
	if input == nil {
		input = map[string]any{}
	}
	ctx = withOperation(ctx, op)
	base := c.cfg
	x := &execution{
		cfg: base,
		log: base.logger(),
		in: &InputContext{
			Service:   base.Service,
			Operation: op,
			Input:     input,
			Config:    base,
		},
	}

	err = x.guard(func() error { return x.begin(ctx, plugins) })
	if err == nil {
		err = x.guard(func() (rerr error) {
			output, rerr = x.run(ctx)
			return rerr
		})
	}
	defer func() {
		if rec := recover(); rec != nil {
			output, err = nil, wrapError(op.Name, x.attempt, x.recovered(rec))
		}
	}()
	return x.complete(ctx, output, err)
}

// begin runs ReadBeforeExecution on the client interceptors, then builds the
// per-call config. Interceptors added by integrations or operation plugins
// see ReadBeforeExecution late, once.
func (x *execution) begin(ctx context.Context, plugins []Plugin) error {
	base := x.cfg
	err := x.readHook("ReadBeforeExecution", func(i Interceptor) error {
		return i.ReadBeforeExecution(ctx, x.in)
	})

	cfg := base.Copy()
	for _, in := range cfg.Integrations {
		if in.Predicate != nil && in.Predicate(cfg.Service, x.in.Operation) {
			in.apply(cfg)
		}
	}
	for _, p := range plugins {
		p(cfg)
	}
	x.cfg, x.log, x.in.Config = cfg, cfg.logger(), cfg

	added := cfg.Interceptors[min(len(base.Interceptors), len(cfg.Interceptors)):]
	for _, i := range added {
		if containsInterceptor(base.Interceptors, i) {
			continue
		}
		if rerr := i.ReadBeforeExecution(ctx, x.in); rerr != nil {
			err = rerr
		}
	}
	return err
}

// complete runs the completion hooks. They always run; their errors replace
// the call's error.
func (x *execution) complete(ctx context.Context, output map[string]any, err error) (map[string]any, error) {
	out := &OutputContext{
		InputContext: x.in,
		Request:      x.req,
		Response:     x.resp,
		Attempt:      x.attempt,
		Output:       output,
		Err:          err,
	}
	for _, i := range x.cfg.Interceptors {
		o, e := i.ModifyBeforeCompletion(ctx, out)
		out.Output, out.Err = o, e
	}
	if rerr := x.readHook("ReadAfterExecution", func(i Interceptor) error {
		return i.ReadAfterExecution(ctx, out)
	}); rerr != nil {
		out.Output, out.Err = nil, rerr
	}
	if out.Err != nil {
		return nil, wrapError(x.in.Operation.Name, x.attempt, out.Err)
	}
	return out.Output, nil
}
