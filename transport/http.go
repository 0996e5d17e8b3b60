package transport

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient sends requests with a net/http client.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient wraps c. A nil c uses a client whose transport records
// OpenTelemetry spans and metrics.
func NewHTTPClient(c *http.Client) *HTTPClient {
	if c == nil {
		c = &http.Client{Transport: DefaultTransport()}
	}
	return &HTTPClient{client: c}
}

// DefaultTransport returns http.DefaultTransport instrumented with
// OpenTelemetry.
func DefaultTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport)
}

// Send performs one HTTP exchange. Non-2xx statuses are not errors.
func (c *HTTPClient) Send(ctx context.Context, req *Request) (*Response, error) {
	hreq, err := req.HTTP(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(hreq)
	if err != nil {
		return nil, &SendError{Method: req.Method, URL: hreq.URL.Redacted(), Err: err}
	}
	return FromHTTP(resp), nil
}
