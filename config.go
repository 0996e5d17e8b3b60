package shapeclient

import (
	"log/slog"
	"maps"
	"reflect"
	"slices"

	"github.com/mohae/deepcopy"

	"github.com/broady/shapeclient/httpbinding"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
)

// Config holds everything a call needs. A Client keeps a base Config that
// is never modified after New; each call works on a Copy.
type Config struct {
	Model    *model.Model
	Service  *model.Service
	Protocol *httpbinding.Protocol

	HTTPClient       transport.Client
	EndpointResolver EndpointResolver
	RetryStrategy    RetryStrategy

	AuthSchemes        []AuthScheme
	AuthSchemeResolver AuthSchemeResolver

	// IdentityResolvers overrides the identity resolver of a scheme, keyed
	// by scheme ID.
	IdentityResolvers map[string]IdentityResolver

	Interceptors []Interceptor
	Logger       *slog.Logger

	// Fields holds values contributed by integrations and plugins. Map,
	// slice and array values are deep-copied per call; pointers, funcs and
	// interfaces such as clients are shared.
	Fields map[string]any

	Integrations []Integration
}

// Copy returns a copy of c whose slices and maps may be modified without
// affecting c. Shared components such as the HTTP client are not copied.
func (c *Config) Copy() *Config {
	cp := *c
	cp.AuthSchemes = slices.Clone(c.AuthSchemes)
	cp.Interceptors = slices.Clone(c.Interceptors)
	cp.Integrations = slices.Clone(c.Integrations)
	cp.IdentityResolvers = maps.Clone(c.IdentityResolvers)
	cp.Fields = copyFields(c.Fields)
	return &cp
}

func copyFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		switch reflect.ValueOf(v).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
			v = deepcopy.Copy(v)
		}
		cp[k] = v
	}
	return cp
}

// AuthScheme returns the configured scheme with the given ID.
func (c *Config) AuthScheme(id string) (AuthScheme, bool) {
	for _, s := range c.AuthSchemes {
		if s.SchemeID() == id {
			return s, true
		}
	}
	return nil, false
}

// Field returns a value from Fields.
func (c *Config) Field(name string) (any, bool) {
	v, ok := c.Fields[name]
	return v, ok
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Plugin modifies a Config. Plugins passed to New apply to every call;
// plugins passed to Invoke apply to that call only.
type Plugin func(*Config)

// ConfigField declares a Fields entry an integration contributes. Default
// is evaluated when the field is unset.
type ConfigField struct {
	Name    string
	Default func(*Config) any
}

// Integration bundles plugins, fields and interceptors. An integration with
// a nil Predicate applies to the whole client; otherwise it applies to the
// operations the predicate selects.
type Integration struct {
	Name         string
	Plugins      []Plugin
	ConfigFields []ConfigField
	Interceptors []Interceptor
	Predicate    func(svc *model.Service, op *model.Operation) bool
}

func (in Integration) apply(c *Config) {
	for _, f := range in.ConfigFields {
		if _, ok := c.Fields[f.Name]; ok || f.Default == nil {
			continue
		}
		if c.Fields == nil {
			c.Fields = make(map[string]any)
		}
		c.Fields[f.Name] = f.Default(c)
	}
	for _, p := range in.Plugins {
		p(c)
	}
	c.Interceptors = append(c.Interceptors, in.Interceptors...)
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func WithLogger(l *slog.Logger) Plugin {
	return func(c *Config) { c.Logger = l }
}

// WithHTTPClient sets the transport client.
func WithHTTPClient(hc transport.Client) Plugin {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithEndpoint sets a static endpoint. It panics if rawURL does not parse.
func WithEndpoint(rawURL string) Plugin {
	r := MustStaticEndpoint(rawURL)
	return func(c *Config) { c.EndpointResolver = r }
}

// WithEndpointResolver sets the endpoint resolver.
func WithEndpointResolver(r EndpointResolver) Plugin {
	return func(c *Config) { c.EndpointResolver = r }
}

// WithRetryStrategy sets the retry strategy.
func WithRetryStrategy(s RetryStrategy) Plugin {
	return func(c *Config) { c.RetryStrategy = s }
}

// WithInterceptor appends interceptors. Interceptors run in the order added.
func WithInterceptor(is ...Interceptor) Plugin {
	return func(c *Config) { c.Interceptors = append(c.Interceptors, is...) }
}

// WithAuthScheme adds a scheme, replacing any configured scheme with the
// same ID.
func WithAuthScheme(s AuthScheme) Plugin {
	return func(c *Config) {
		c.AuthSchemes = slices.DeleteFunc(c.AuthSchemes, func(x AuthScheme) bool {
			return x.SchemeID() == s.SchemeID()
		})
		c.AuthSchemes = append(c.AuthSchemes, s)
	}
}

// WithIdentityResolver sets the identity resolver for a scheme ID.
func WithIdentityResolver(schemeID string, r IdentityResolver) Plugin {
	return func(c *Config) {
		if c.IdentityResolvers == nil {
			c.IdentityResolvers = make(map[string]IdentityResolver)
		}
		c.IdentityResolvers[schemeID] = r
	}
}

// WithIntegration adds an integration.
func WithIntegration(in Integration) Plugin {
	return func(c *Config) { c.Integrations = append(c.Integrations, in) }
}

// WithField sets a Fields entry.
func WithField(name string, v any) Plugin {
	return func(c *Config) {
		if c.Fields == nil {
			c.Fields = make(map[string]any)
		}
		c.Fields[name] = v
	}
}
