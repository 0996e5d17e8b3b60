// Package transport defines the protocol-neutral request and response values
// exchanged with a service, and an HTTP client that sends them.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrNotRewindable is returned when a request body cannot be replayed.
var ErrNotRewindable = errors.New("transport: request body cannot be rewound")

// Request is an outgoing HTTP request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header

	// Body is nil when the request has no body.
	Body io.Reader

	// ContentLength is the body length, or -1 when unknown.
	ContentLength int64

	bodyStart int64
	seekable  bool
}

// NewRequest returns an empty request for method.
func NewRequest(method string) *Request {
	return &Request{
		Method: method,
		URL:    &url.URL{Path: "/"},
		Header: make(http.Header),
	}
}

// SetBody sets the body and its length (-1 if unknown). A body that
// implements io.Seeker can be rewound for retries.
func (r *Request) SetBody(body io.Reader, length int64) error {
	r.Body = body
	r.ContentLength = length
	r.seekable = false
	if s, ok := body.(io.Seeker); ok {
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("transport: body position: %w", err)
		}
		r.bodyStart = pos
		r.seekable = true
	}
	return nil
}

// SetBytes sets a fully buffered body.
func (r *Request) SetBytes(b []byte) {
	_ = r.SetBody(bytes.NewReader(b), int64(len(b)))
}

// Rewindable reports whether the body can be replayed.
func (r *Request) Rewindable() bool {
	return r.Body == nil || r.seekable
}

// Rewind moves the body back to where it started.
func (r *Request) Rewind() error {
	if r.Body == nil {
		return nil
	}
	if !r.seekable {
		return ErrNotRewindable
	}
	_, err := r.Body.(io.Seeker).Seek(r.bodyStart, io.SeekStart)
	return err
}

// Clone returns a copy with its own URL and headers. The body is shared and
// rewound to its start.
func (r *Request) Clone() (*Request, error) {
	if err := r.Rewind(); err != nil {
		return nil, err
	}
	c := *r
	u := *r.URL
	if r.URL.User != nil {
		user := *r.URL.User
		u.User = &user
	}
	c.URL = &u
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c, nil
}

// HTTP converts the request to a net/http request bound to ctx.
func (r *Request) HTTP(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = io.NopCloser(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if r.Body != nil {
		req.ContentLength = r.ContentLength
		if r.ContentLength == 0 {
			req.Body = http.NoBody
		}
	}
	if h := r.Header.Get("Host"); h != "" {
		req.Host = h
	}
	return req, nil
}

// Response is a received HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser

	// ContentLength is the body length, or -1 when unknown.
	ContentLength int64

	buffered []byte
	isBuf    bool
}

// FromHTTP wraps a net/http response.
func FromHTTP(resp *http.Response) *Response {
	body := resp.Body
	if body == nil {
		body = http.NoBody
	}
	return &Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        resp.Header,
		Body:          body,
		ContentLength: resp.ContentLength,
	}
}

// BufferBody reads the whole body and closes it. The body is replaced with
// a reader over the buffered bytes, so repeated calls, and later reads of
// Body, see the same content.
func (r *Response) BufferBody() ([]byte, error) {
	if !r.isBuf {
		var data []byte
		if r.Body != nil {
			var err error
			data, err = io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("transport: read response body: %w", err)
			}
		}
		r.buffered = data
		r.isBuf = true
		r.ContentLength = int64(len(data))
	}
	r.Body = io.NopCloser(bytes.NewReader(r.buffered))
	return r.buffered, nil
}

// Close releases the body.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Client sends requests.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f ClientFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// SendError reports a failure to complete the HTTP exchange.
type SendError struct {
	Method string
	URL    string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying error was a timeout.
func (e *SendError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}
