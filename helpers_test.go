package shapeclient

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/broady/shapeclient/internal/testmodel"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
)

type tokenIdentity struct {
	token string
	exp   time.Time
}

func (t tokenIdentity) Expiration() time.Time { return t.exp }

// bearerScheme signs with a fixed token and counts identity resolutions.
type bearerScheme struct {
	token    string
	exp      time.Time
	resolved *int
}

func (bearerScheme) SchemeID() string { return model.TraitHTTPBearerAuth }

func (b bearerScheme) IdentityResolver(*Config) IdentityResolver {
	return IdentityResolverFunc(func(context.Context, Properties) (Identity, error) {
		if b.resolved != nil {
			*b.resolved++
		}
		return tokenIdentity{token: b.token, exp: b.exp}, nil
	})
}

func (bearerScheme) Signer() Signer {
	return SignerFunc(func(_ context.Context, req *transport.Request, id Identity, _ Properties) error {
		req.Header.Set("Authorization", "Bearer "+id.(tokenIdentity).token)
		return nil
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newClient returns a Widgets client pointed at url with bearer auth and
// three attempts without delay.
func newClient(t *testing.T, url string, plugins ...Plugin) *Client {
	t.Helper()
	all := []Plugin{
		WithEndpoint(url),
		WithAuthScheme(bearerScheme{token: "t0k"}),
		WithRetryStrategy(&SimpleRetryStrategy{MaxAttempts: 3}),
		WithLogger(quietLogger()),
	}
	c, err := New(testmodel.Widgets(), testmodel.Service, append(all, plugins...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// hookRecorder records every hook it sees as "name:Hook".
type hookRecorder struct {
	name string

	mu   sync.Mutex
	seen *[]string
}

func newHookRecorder(name string, seen *[]string) *hookRecorder {
	return &hookRecorder{name: name, seen: seen}
}

func (r *hookRecorder) add(hook string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.seen = append(*r.seen, r.name+":"+hook)
}

func (r *hookRecorder) ReadBeforeExecution(context.Context, *InputContext) error {
	r.add("ReadBeforeExecution")
	return nil
}

func (r *hookRecorder) ModifyBeforeSerialization(_ context.Context, in *InputContext) (map[string]any, error) {
	r.add("ModifyBeforeSerialization")
	return in.Input, nil
}

func (r *hookRecorder) ReadBeforeSerialization(context.Context, *InputContext) error {
	r.add("ReadBeforeSerialization")
	return nil
}

func (r *hookRecorder) ReadAfterSerialization(context.Context, *RequestContext) error {
	r.add("ReadAfterSerialization")
	return nil
}

func (r *hookRecorder) ModifyBeforeRetryLoop(_ context.Context, req *RequestContext) (*transport.Request, error) {
	r.add("ModifyBeforeRetryLoop")
	return req.Request, nil
}

func (r *hookRecorder) ReadBeforeAttempt(context.Context, *RequestContext) error {
	r.add("ReadBeforeAttempt")
	return nil
}

func (r *hookRecorder) ModifyBeforeSigning(_ context.Context, req *RequestContext) (*transport.Request, error) {
	r.add("ModifyBeforeSigning")
	return req.Request, nil
}

func (r *hookRecorder) ReadBeforeSigning(context.Context, *RequestContext) error {
	r.add("ReadBeforeSigning")
	return nil
}

func (r *hookRecorder) ReadAfterSigning(context.Context, *RequestContext) error {
	r.add("ReadAfterSigning")
	return nil
}

func (r *hookRecorder) ModifyBeforeTransmit(_ context.Context, req *RequestContext) (*transport.Request, error) {
	r.add("ModifyBeforeTransmit")
	return req.Request, nil
}

func (r *hookRecorder) ReadBeforeTransmit(context.Context, *RequestContext) error {
	r.add("ReadBeforeTransmit")
	return nil
}

func (r *hookRecorder) ReadAfterTransmit(context.Context, *ResponseContext) error {
	r.add("ReadAfterTransmit")
	return nil
}

func (r *hookRecorder) ModifyBeforeDeserialization(_ context.Context, resp *ResponseContext) (*transport.Response, error) {
	r.add("ModifyBeforeDeserialization")
	return resp.Response, nil
}

func (r *hookRecorder) ReadBeforeDeserialization(context.Context, *ResponseContext) error {
	r.add("ReadBeforeDeserialization")
	return nil
}

func (r *hookRecorder) ReadAfterDeserialization(context.Context, *OutputContext) error {
	r.add("ReadAfterDeserialization")
	return nil
}

func (r *hookRecorder) ModifyBeforeAttemptCompletion(_ context.Context, out *OutputContext) (map[string]any, error) {
	r.add("ModifyBeforeAttemptCompletion")
	return out.Output, out.Err
}

func (r *hookRecorder) ReadAfterAttempt(context.Context, *OutputContext) error {
	r.add("ReadAfterAttempt")
	return nil
}

func (r *hookRecorder) ModifyBeforeCompletion(_ context.Context, out *OutputContext) (map[string]any, error) {
	r.add("ModifyBeforeCompletion")
	return out.Output, out.Err
}

func (r *hookRecorder) ReadAfterExecution(context.Context, *OutputContext) error {
	r.add("ReadAfterExecution")
	return nil
}
