package shapeclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/shapeclient/apierror"
	"github.com/broady/shapeclient/httpbinding"
	"github.com/broady/shapeclient/internal/testmodel"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/testutil"
	"github.com/broady/shapeclient/transport"
)

func unavailable() *testutil.ResponseBuilder {
	return testutil.NewResponse(http.StatusServiceUnavailable).
		WithJSON(map[string]string{"type": "ServiceUnavailableError", "message": "busy"})
}

func TestInvoke_GetWidget(t *testing.T) {
	s := testutil.NewServer(t, testutil.NewResponse(http.StatusOK).
		WithHeader("ETag", "v1").
		WithJSON(map[string]any{"widget": map[string]any{"id": "abc", "displayName": "Gizmo"}}))
	c := newClient(t, s.URL)

	out, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": "abc", "verbose": true})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	req := s.Last(t)
	if req.Method != http.MethodGet || req.Path != "/widgets/abc" {
		t.Errorf("request = %s %s, want GET /widgets/abc", req.Method, req.Path)
	}
	if got := req.Query().Get("verbose"); got != "true" {
		t.Errorf("verbose = %q", got)
	}
	testutil.AssertHeader(t, req, "Authorization", "Bearer t0k")

	if out["etag"] != "v1" {
		t.Errorf("etag = %v", out["etag"])
	}
	widget, _ := out["widget"].(map[string]any)
	if widget["id"] != "abc" || widget["name"] != "Gizmo" {
		t.Errorf("widget = %v", widget)
	}
}

func TestInvoke_EndpointPathPrefix(t *testing.T) {
	s := testutil.NewServer(t, testutil.NewResponse(http.StatusNoContent))
	c := newClient(t, s.URL+"/v1/")

	if _, err := c.Invoke(context.Background(), "DeleteWidget", map[string]any{"id": "a b"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	req := s.Last(t)
	if req.Path != "/v1/widgets/a b" || req.EscapedPath() != "/v1/widgets/a%20b" {
		t.Errorf("path = %q (%q)", req.Path, req.EscapedPath())
	}
}

func TestInvoke_RetryLaw(t *testing.T) {
	tests := []struct {
		failures int
	}{
		{0}, {1}, {2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d failures", tt.failures), func(t *testing.T) {
			var responses []*testutil.ResponseBuilder
			for range tt.failures {
				responses = append(responses, unavailable())
			}
			responses = append(responses, testutil.NewResponse(http.StatusOK).
				WithJSON(map[string]string{"message": "pong"}))
			s := testutil.NewServer(t, responses...)
			c := newClient(t, s.URL)

			out, err := c.Invoke(context.Background(), "Ping", nil)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			testutil.AssertCount(t, s, tt.failures+1)
			if out["message"] != "pong" {
				t.Errorf("output = %v", out)
			}
		})
	}
}

func TestInvoke_RetriesExhausted(t *testing.T) {
	s := testutil.NewServer(t, unavailable())
	c := newClient(t, s.URL)

	_, err := c.Invoke(context.Background(), "Ping", nil)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Code != CodeAPI || e.Attempts != 3 || e.Operation != "Ping" {
		t.Errorf("error = %+v", e)
	}
	var modeled *apierror.ModeledError
	if !errors.As(err, &modeled) || modeled.Shape != testmodel.ID("ServiceUnavailableError") {
		t.Errorf("cause = %v", e.Err)
	}
	testutil.AssertCount(t, s, 3)
}

func TestInvoke_ModeledAndUnknownErrors(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		s := testutil.NewServer(t, testutil.NewResponse(http.StatusNotFound).
			WithHeader("X-Resource-Id", "abc").
			WithJSON(map[string]string{"type": "NotFound", "message": "no such widget"}))
		c := newClient(t, s.URL)

		_, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": "abc"})
		var modeled *apierror.ModeledError
		if !errors.As(err, &modeled) {
			t.Fatalf("expected ModeledError, got %v", err)
		}
		if modeled.Shape != testmodel.ID("NotFoundError") || modeled.ErrorMessage() != "no such widget" {
			t.Errorf("modeled = %+v", modeled)
		}
		if modeled.Fields["resourceId"] != "abc" {
			t.Errorf("fields = %v", modeled.Fields)
		}
		testutil.AssertCount(t, s, 1)
	})

	t.Run("Weird", func(t *testing.T) {
		s := testutil.NewServer(t, testutil.NewResponse(http.StatusBadRequest).
			WithJSON(map[string]string{"type": "Weird", "message": "x"}))
		c := newClient(t, s.URL)

		_, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": "abc"})
		var unknown *apierror.UnknownError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownError, got %v", err)
		}
		if unknown.Code != "Weird" || unknown.Message != "x" {
			t.Errorf("unknown = %+v", unknown)
		}
	})
}

func TestInvoke_RegisteredErrorType(t *testing.T) {
	type notFound struct {
		apierror.Meta
		ResourceID string
	}
	s := testutil.NewServer(t, testutil.NewResponse(http.StatusNotFound).
		WithJSON(map[string]string{"type": "NotFoundError", "message": "gone"}))
	c := newClient(t, s.URL)
	c.Protocol().RegisterError(testmodel.ID("NotFoundError"), func(meta apierror.Meta, fields map[string]any) error {
		id, _ := fields["resourceId"].(string)
		return &notFound{Meta: meta, ResourceID: id}
	})

	_, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": "abc"})
	var nf *notFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected *notFound, got %v", err)
	}
	if nf.ErrorMessage() != "gone" {
		t.Errorf("message = %q", nf.ErrorMessage())
	}
}

func TestInvoke_EmptyLabelFailsBeforeIO(t *testing.T) {
	s := testutil.NewServer(t)
	c := newClient(t, s.URL)

	_, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": ""})
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
	var labelErr *httpbinding.LabelError
	if !errors.As(err, &labelErr) || labelErr.Label != "id" {
		t.Errorf("cause = %v", e.Err)
	}
	if e.Attempts != 0 {
		t.Errorf("attempts = %d", e.Attempts)
	}
	testutil.AssertCount(t, s, 0)
}

func TestInvoke_UnknownOperation(t *testing.T) {
	c := newClient(t, "http://localhost")
	_, err := c.Invoke(context.Background(), "Nope", nil)
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestInvoke_HookOrder(t *testing.T) {
	var seen []string
	a := newHookRecorder("a", &seen)
	b := newHookRecorder("b", &seen)
	s := testutil.NewServer(t, unavailable(), testutil.NewResponse(http.StatusOK).WithBody(`{}`))
	c := newClient(t, s.URL, WithInterceptor(a))

	if _, err := c.Invoke(context.Background(), "Ping", nil, WithInterceptor(b)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	both := func(hooks ...string) []string {
		var out []string
		for _, h := range hooks {
			out = append(out, "a:"+h, "b:"+h)
		}
		return out
	}
	attempt := both(
		"ReadBeforeAttempt",
		"ModifyBeforeSigning", "ReadBeforeSigning", "ReadAfterSigning",
		"ModifyBeforeTransmit", "ReadBeforeTransmit", "ReadAfterTransmit",
		"ModifyBeforeDeserialization", "ReadBeforeDeserialization", "ReadAfterDeserialization",
		"ModifyBeforeAttemptCompletion", "ReadAfterAttempt",
	)
	var want []string
	want = append(want, both(
		"ReadBeforeExecution",
		"ModifyBeforeSerialization", "ReadBeforeSerialization",
		"ReadAfterSerialization", "ModifyBeforeRetryLoop",
	)...)
	want = append(want, attempt...)
	want = append(want, attempt...)
	want = append(want, both("ModifyBeforeCompletion", "ReadAfterExecution")...)

	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
}

func TestInvoke_ReadBeforeExecutionNotRepeated(t *testing.T) {
	var seen []string
	a := newHookRecorder("a", &seen)
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithInterceptor(a))

	if _, err := c.Invoke(context.Background(), "Ping", nil, WithInterceptor(a)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	n := 0
	for _, h := range seen {
		if h == "a:ReadBeforeExecution" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("ReadBeforeExecution ran %d times, want 1", n)
	}
}

// taggedCounter is not comparable, so it cannot be found by value.
type taggedCounter struct {
	NopInterceptor
	tags []string
	n    *int
}

func (c taggedCounter) ReadBeforeExecution(context.Context, *InputContext) error {
	*c.n++
	return nil
}

func TestInvoke_ReadBeforeExecutionOnceForUncomparable(t *testing.T) {
	var clientRuns, callRuns int
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithInterceptor(taggedCounter{tags: []string{"x"}, n: &clientRuns}))

	if _, err := c.Invoke(context.Background(), "Ping", nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if clientRuns != 1 {
		t.Errorf("client interceptor ReadBeforeExecution ran %d times, want 1", clientRuns)
	}

	clientRuns = 0
	if _, err := c.Invoke(context.Background(), "Ping", nil,
		WithInterceptor(taggedCounter{tags: []string{"y"}, n: &callRuns})); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if clientRuns != 1 || callRuns != 1 {
		t.Errorf("ReadBeforeExecution ran %d (client) and %d (call) times, want 1 and 1", clientRuns, callRuns)
	}
}

func TestInvoke_PluginsDoNotLeak(t *testing.T) {
	s := testutil.NewServer(t)
	c := newClient(t, s.URL)
	var seen []string
	if _, err := c.Invoke(context.Background(), "Ping", nil, WithInterceptor(newHookRecorder("x", &seen))); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if n := len(c.Config().Interceptors); n != 0 {
		t.Errorf("client has %d interceptors after call", n)
	}
}

type failingHook struct {
	NopInterceptor
	hook string
	err  error
}

func (f *failingHook) ReadBeforeTransmit(context.Context, *RequestContext) error {
	if f.hook == "ReadBeforeTransmit" {
		return f.err
	}
	return nil
}

func (f *failingHook) ReadAfterExecution(context.Context, *OutputContext) error {
	if f.hook == "ReadAfterExecution" {
		return f.err
	}
	return nil
}

func TestInvoke_ReadHookErrors(t *testing.T) {
	boom := errors.New("boom")
	var seen []string
	rec := newHookRecorder("r", &seen)
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithInterceptor(&failingHook{hook: "ReadBeforeTransmit", err: boom}, rec))

	_, err := c.Invoke(context.Background(), "Ping", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeInternal {
		t.Errorf("error = %v", err)
	}
	testutil.AssertCount(t, s, 0)
	for _, h := range []string{"r:ReadBeforeTransmit", "r:ModifyBeforeCompletion", "r:ReadAfterExecution"} {
		found := false
		for _, got := range seen {
			found = found || got == h
		}
		if !found {
			t.Errorf("hook %s did not run", h)
		}
	}
	for _, got := range seen {
		if got == "r:ReadAfterTransmit" {
			t.Error("ReadAfterTransmit ran after a failed ReadBeforeTransmit")
		}
	}
}

func TestInvoke_ReadAfterExecutionErrorReplacesOutput(t *testing.T) {
	boom := errors.New("late")
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithInterceptor(&failingHook{hook: "ReadAfterExecution", err: boom}))

	out, err := c.Invoke(context.Background(), "Ping", nil)
	if !errors.Is(err, boom) || out != nil {
		t.Fatalf("got (%v, %v), want late error", out, err)
	}
	testutil.AssertCount(t, s, 1)
}

func TestInvoke_ReadAfterExecutionRunsEveryHook(t *testing.T) {
	boom := errors.New("late")
	var seen []string
	rec := newHookRecorder("r", &seen)
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithInterceptor(&failingHook{hook: "ReadAfterExecution", err: boom}, rec))

	_, err := c.Invoke(context.Background(), "Ping", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want late error", err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != "r:ReadAfterExecution" {
		t.Errorf("ReadAfterExecution did not reach the second interceptor: %v", seen)
	}
}

type panicHook struct {
	NopInterceptor
	hook string
}

func (p panicHook) ReadBeforeExecution(context.Context, *InputContext) error {
	if p.hook == "ReadBeforeExecution" {
		panic("hook blew up")
	}
	return nil
}

func (p panicHook) ReadBeforeTransmit(context.Context, *RequestContext) error {
	if p.hook == "ReadBeforeTransmit" {
		panic("hook blew up")
	}
	return nil
}

func (p panicHook) ReadAfterExecution(context.Context, *OutputContext) error {
	if p.hook == "ReadAfterExecution" {
		panic("hook blew up")
	}
	return nil
}

func TestInvoke_PanicsBecomeErrors(t *testing.T) {
	errSend := errors.New("transport blew up")
	tests := []struct {
		name      string
		plugin    Plugin
		wantCause error
		wantSent  int
	}{
		{"ReadBeforeExecution", WithInterceptor(panicHook{hook: "ReadBeforeExecution"}), nil, 0},
		{"ReadBeforeTransmit", WithInterceptor(panicHook{hook: "ReadBeforeTransmit"}), nil, 0},
		{"ReadAfterExecution", WithInterceptor(panicHook{hook: "ReadAfterExecution"}), nil, 1},
		{"transport", WithHTTPClient(transport.ClientFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
			panic(errSend)
		})), errSend, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []string
			s := testutil.NewServer(t)
			c := newClient(t, s.URL, tt.plugin, WithInterceptor(newHookRecorder("r", &seen)))

			var (
				out map[string]any
				err error
			)
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						t.Fatalf("panic escaped Invoke: %v", rec)
					}
				}()
				out, err = c.Invoke(context.Background(), "Ping", nil)
			}()
			var e *Error
			if !errors.As(err, &e) || e.Code != CodeInternal || out != nil {
				t.Fatalf("got (%v, %v), want an internal *Error", out, err)
			}
			if e.Operation != "Ping" || !strings.Contains(e.Message, "blew up") {
				t.Errorf("error = %+v", e)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("error %v does not wrap %v", err, tt.wantCause)
			}
			if tt.name != "ReadAfterExecution" {
				found := false
				for _, h := range seen {
					found = found || h == "r:ReadAfterExecution"
				}
				if !found {
					t.Error("completion hooks did not run after the panic")
				}
			}
			testutil.AssertCount(t, s, tt.wantSent)
		})
	}
}

type recoverHook struct{ NopInterceptor }

func (recoverHook) ModifyBeforeCompletion(_ context.Context, out *OutputContext) (map[string]any, error) {
	if out.Err != nil {
		return map[string]any{"message": "fallback"}, nil
	}
	return out.Output, nil
}

func TestInvoke_ModifyBeforeCompletionRecovers(t *testing.T) {
	s := testutil.NewServer(t, unavailable())
	c := newClient(t, s.URL, WithInterceptor(recoverHook{}))

	out, err := c.Invoke(context.Background(), "Ping", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out["message"] != "fallback" {
		t.Errorf("output = %v", out)
	}
}

func TestInvoke_IdempotencyTokenStableAcrossRetries(t *testing.T) {
	s := testutil.NewServer(t, unavailable(), testutil.NewResponse(http.StatusOK).WithBody(`{}`))
	c := newClient(t, s.URL)

	if _, err := c.Invoke(context.Background(), "PutWidget", map[string]any{"id": "w1", "name": "Gizmo"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	reqs := s.Requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests", len(reqs))
	}
	first := reqs[0].Header.Get("X-Client-Token")
	if len(first) != 36 {
		t.Errorf("token = %q, want a UUID", first)
	}
	if second := reqs[1].Header.Get("X-Client-Token"); second != first {
		t.Errorf("token changed across retries: %q then %q", first, second)
	}
	for _, r := range reqs {
		testutil.AssertJSONBody(t, r, map[string]any{"displayName": "Gizmo"})
	}
}

func TestInvoke_ResolvesIdentityPerAttempt(t *testing.T) {
	resolved := 0
	s := testutil.NewServer(t, unavailable(), testutil.NewResponse(http.StatusOK).WithBody(`{}`))
	c := newClient(t, s.URL, WithAuthScheme(bearerScheme{token: "t1", resolved: &resolved}))

	if _, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": "abc"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resolved != 2 {
		t.Errorf("identity resolved %d times, want 2", resolved)
	}
	for _, r := range s.Requests() {
		testutil.AssertHeader(t, r, "Authorization", "Bearer t1")
	}
}

func TestInvoke_ExpiredIdentity(t *testing.T) {
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithAuthScheme(bearerScheme{token: "old", exp: time.Now().Add(-time.Minute)}))

	_, err := c.Invoke(context.Background(), "GetWidget", map[string]any{"id": "abc"})
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if !errors.Is(err, ErrIdentityExpired) {
		t.Errorf("cause = %v", e.Err)
	}
	testutil.AssertCount(t, s, 0)
}

func TestInvoke_NoEndpoint(t *testing.T) {
	c, err := New(testmodel.Widgets(), testmodel.Service, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Invoke(context.Background(), "Ping", nil)
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeEndpoint || !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected endpoint error, got %v", err)
	}
}

type unseekableBody struct{ NopInterceptor }

func (unseekableBody) ModifyBeforeRetryLoop(_ context.Context, rc *RequestContext) (*transport.Request, error) {
	req := rc.Request
	err := req.SetBody(io.MultiReader(strings.NewReader(`{"displayName":"x"}`)), -1)
	return req, err
}

func TestInvoke_NonRewindableBodyIsNotRetried(t *testing.T) {
	s := testutil.NewServer(t, unavailable(), testutil.NewResponse(http.StatusOK).WithBody(`{}`))
	c := newClient(t, s.URL, WithInterceptor(unseekableBody{}))

	_, err := c.Invoke(context.Background(), "PutWidget", map[string]any{"id": "w1"})
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeAPI {
		t.Fatalf("expected the 503 error, got %v", err)
	}
	testutil.AssertCount(t, s, 1)
}

func TestInvoke_Cancellation(t *testing.T) {
	t.Run("before first attempt", func(t *testing.T) {
		s := testutil.NewServer(t)
		c := newClient(t, s.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Invoke(ctx, "Ping", nil)
		var e *Error
		if !errors.As(err, &e) || e.Code != CodeCanceled {
			t.Fatalf("expected canceled, got %v", err)
		}
		testutil.AssertCount(t, s, 0)
	})

	t.Run("during backoff", func(t *testing.T) {
		s := testutil.NewServer(t, unavailable())
		c := newClient(t, s.URL, WithRetryStrategy(&SimpleRetryStrategy{
			MaxAttempts: 3,
			Backoff:     func(int) time.Duration { return time.Hour },
		}))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := c.Invoke(ctx, "Ping", nil)
		var e *Error
		if !errors.As(err, &e) || e.Code != CodeDeadlineExceeded {
			t.Fatalf("expected deadline_exceeded, got %v", err)
		}
		if time.Since(start) > 10*time.Second {
			t.Error("backoff did not observe cancellation")
		}
		testutil.AssertCount(t, s, 1)
	})
}

func TestInvoke_TransportErrorsAreRetried(t *testing.T) {
	calls := 0
	hc := transport.ClientFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		calls++
		if calls < 3 {
			return nil, &transport.SendError{Method: req.Method, URL: req.URL.String(), Err: errors.New("connection reset")}
		}
		return &transport.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{},
			Body:          io.NopCloser(strings.NewReader(`{"message":"ok"}`)),
			ContentLength: -1,
		}, nil
	})
	c := newClient(t, "https://widgets.example.com", WithHTTPClient(hc))

	out, err := c.Invoke(context.Background(), "Ping", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if calls != 3 || out["message"] != "ok" {
		t.Errorf("calls = %d, output = %v", calls, out)
	}
}

func TestInvoke_OperationIntegration(t *testing.T) {
	var seen []string
	rec := newHookRecorder("i", &seen)
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithIntegration(Integration{
		Name:         "ping-only",
		Interceptors: []Interceptor{rec},
		ConfigFields: []ConfigField{{Name: "region", Default: func(*Config) any { return "local" }}},
		Predicate: func(_ *model.Service, op *model.Operation) bool {
			return op.Name == "Ping"
		},
	}))

	// DeleteWidget expects 204, so this call fails; only the hooks matter.
	_, _ = c.Invoke(context.Background(), "DeleteWidget", map[string]any{"id": "x"})
	if len(seen) != 0 {
		t.Fatalf("integration applied to DeleteWidget: %v", seen)
	}
	if _, err := c.Invoke(context.Background(), "Ping", nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(seen) == 0 {
		t.Error("integration not applied to Ping")
	}
	if _, ok := c.Config().Field("region"); ok {
		t.Error("operation integration leaked into client config")
	}
}

func TestOperationFromContext(t *testing.T) {
	var gotSvc, gotOp string
	var gotAttempt int
	hook := &contextHook{fn: func(ctx context.Context) {
		gotSvc, gotOp, _ = OperationFromContext(ctx)
		gotAttempt = AttemptFromContext(ctx)
	}}
	s := testutil.NewServer(t)
	c := newClient(t, s.URL, WithInterceptor(hook))
	if _, err := c.Invoke(context.Background(), "Ping", nil); err != nil {
		t.Fatal(err)
	}
	if gotSvc != "WidgetService" || gotOp != "Ping" || gotAttempt != 1 {
		t.Errorf("context = %s.%s attempt %d", gotSvc, gotOp, gotAttempt)
	}
	if _, _, ok := OperationFromContext(context.Background()); ok {
		t.Error("expected no operation in a bare context")
	}
}

type contextHook struct {
	NopInterceptor
	fn func(context.Context)
}

func (h *contextHook) ReadBeforeTransmit(ctx context.Context, _ *RequestContext) error {
	h.fn(ctx)
	return nil
}
