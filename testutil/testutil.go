// Package testutil provides a recording HTTP server for testing clients.
// The server answers with canned responses and keeps every request it
// receives.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/schema"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// Recorded is a request received by a Server.
type Recorded struct {
	Method   string
	Path     string
	RawPath  string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Query returns the parsed query string.
func (r Recorded) Query() url.Values {
	q, _ := url.ParseQuery(r.RawQuery)
	return q
}

// DecodeQuery decodes the query string into dst, a pointer to a struct
// with `schema` field tags.
func (r Recorded) DecodeQuery(dst any) error {
	return queryDecoder.Decode(dst, r.Query())
}

// EscapedPath returns the path as sent on the wire.
func (r Recorded) EscapedPath() string {
	u := url.URL{Path: r.Path, RawPath: r.RawPath}
	return u.EscapedPath()
}

// ResponseBuilder describes a canned response with a fluent API.
type ResponseBuilder struct {
	status  int
	headers http.Header
	body    []byte
}

// NewResponse starts a response with the given status.
func NewResponse(status int) *ResponseBuilder {
	return &ResponseBuilder{status: status, headers: make(http.Header)}
}

// WithJSON sets the body to the JSON encoding of v.
func (b *ResponseBuilder) WithJSON(v any) *ResponseBuilder {
	data, _ := json.Marshal(v)
	b.body = data
	b.headers.Set("Content-Type", "application/json")
	return b
}

// WithBody sets the raw body.
func (b *ResponseBuilder) WithBody(body string) *ResponseBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader adds a header.
func (b *ResponseBuilder) WithHeader(key, value string) *ResponseBuilder {
	b.headers.Add(key, value)
	return b
}

func (b *ResponseBuilder) write(w http.ResponseWriter) {
	for k, vs := range b.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body)
}

// Server is an httptest.Server that replies with queued responses in
// order. Once the queue is down to one response, that response repeats.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Recorded
	responses []*ResponseBuilder
}

// NewServer starts a server replying with responses and closes it when the
// test ends. With no responses it replies 200 with an empty JSON object.
func NewServer(t testing.TB, responses ...*ResponseBuilder) *Server {
	t.Helper()
	s := &Server{responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	})
	resp := NewResponse(http.StatusOK).WithBody("{}")
	if len(s.responses) > 0 {
		resp = s.responses[0]
		if len(s.responses) > 1 {
			s.responses = s.responses[1:]
		}
	}
	s.mu.Unlock()
	resp.write(w)
}

// Enqueue appends responses to the queue.
func (s *Server) Enqueue(responses ...*ResponseBuilder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// Count returns how many requests were received.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Last returns the most recent request. It fails the test if there is none.
func (s *Server) Last(t testing.TB) Recorded {
	t.Helper()
	reqs := s.Requests()
	if len(reqs) == 0 {
		t.Fatal("no requests received")
	}
	return reqs[len(reqs)-1]
}

// AssertCount checks how many requests were received.
func AssertCount(t testing.TB, s *Server, want int) {
	t.Helper()
	if got := s.Count(); got != want {
		t.Errorf("expected %d requests, got %d", want, got)
	}
}

// AssertHeader checks that a recorded request header has the expected value.
func AssertHeader(t testing.TB, r Recorded, key, expectedValue string) {
	t.Helper()
	if actual := r.Header.Get(key); actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// AssertJSONBody compares the recorded body with expected as JSON, ignoring
// formatting.
func AssertJSONBody(t testing.TB, r Recorded, expected any) {
	t.Helper()
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", ct)
	}
	expectedJSON, _ := json.Marshal(expected)

	var expectedData, actualData any
	_ = json.Unmarshal(expectedJSON, &expectedData)
	if err := json.Unmarshal(r.Body, &actualData); err != nil {
		t.Fatalf("failed to decode request body: %v\nBody: %s", err, r.Body)
	}
	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")
	if string(expectedStr) != string(actualStr) {
		t.Errorf("body mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}
