package shapeclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
)

// ErrNoEndpoint is returned when a call has no endpoint resolver.
var ErrNoEndpoint = errors.New("no endpoint configured")

// Endpoint is where a request is sent. The path of URI is prefixed to the
// operation path and Headers are added to the request.
type Endpoint struct {
	URI     *url.URL
	Headers http.Header
}

// EndpointParams is the input to endpoint resolution.
type EndpointParams struct {
	Operation *model.Operation
	Input     map[string]any
}

// EndpointResolver resolves the endpoint for each attempt.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, params EndpointParams) (Endpoint, error)
}

// EndpointResolverFunc adapts a function to EndpointResolver.
type EndpointResolverFunc func(ctx context.Context, params EndpointParams) (Endpoint, error)

func (f EndpointResolverFunc) ResolveEndpoint(ctx context.Context, params EndpointParams) (Endpoint, error) {
	return f(ctx, params)
}

// StaticEndpoint returns a resolver that always returns rawURL.
func StaticEndpoint(rawURL string) (EndpointResolver, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint: %q must be an absolute URL", rawURL)
	}
	return EndpointResolverFunc(func(context.Context, EndpointParams) (Endpoint, error) {
		cp := *u
		return Endpoint{URI: &cp}, nil
	}), nil
}

// MustStaticEndpoint is like StaticEndpoint but panics on error.
func MustStaticEndpoint(rawURL string) EndpointResolver {
	r, err := StaticEndpoint(rawURL)
	if err != nil {
		panic(err)
	}
	return r
}

// applyEndpoint points req at ep.
func applyEndpoint(req *transport.Request, ep Endpoint) error {
	if ep.URI == nil {
		return errors.New("endpoint: resolver returned no URI")
	}
	u := req.URL
	u.Scheme = ep.URI.Scheme
	u.Host = ep.URI.Host
	u.User = ep.URI.User

	prefix := strings.TrimSuffix(ep.URI.Path, "/")
	rawPrefix := strings.TrimSuffix(ep.URI.EscapedPath(), "/")
	if prefix != "" {
		path := u.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		raw := u.RawPath
		if raw == "" {
			raw = u.EscapedPath()
		}
		u.Path = prefix + path
		u.RawPath = rawPrefix + raw
	}
	if ep.URI.RawQuery != "" {
		if u.RawQuery == "" {
			u.RawQuery = ep.URI.RawQuery
		} else {
			u.RawQuery = ep.URI.RawQuery + "&" + u.RawQuery
		}
	}
	for k, vs := range ep.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return nil
}
