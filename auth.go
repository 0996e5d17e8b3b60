package shapeclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
)

// ErrIdentityExpired is returned when a resolved identity is already
// expired.
var ErrIdentityExpired = errors.New("identity expired")

// ErrNoAuthScheme is returned when none of the candidate schemes is
// configured with an identity resolver.
var ErrNoAuthScheme = errors.New("no usable auth scheme")

// Properties are scheme-specific settings such as the header an API key is
// sent in.
type Properties map[string]string

// Identity is a credential produced by an IdentityResolver.
type Identity interface {
	// Expiration returns when the identity stops being valid, or the zero
	// time if it never expires.
	Expiration() time.Time
}

// IdentityResolver produces identities for a scheme.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, props Properties) (Identity, error)
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(ctx context.Context, props Properties) (Identity, error)

func (f IdentityResolverFunc) ResolveIdentity(ctx context.Context, props Properties) (Identity, error) {
	return f(ctx, props)
}

// Signer applies an identity to a request.
type Signer interface {
	Sign(ctx context.Context, req *transport.Request, id Identity, props Properties) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, req *transport.Request, id Identity, props Properties) error

func (f SignerFunc) Sign(ctx context.Context, req *transport.Request, id Identity, props Properties) error {
	return f(ctx, req, id, props)
}

// AuthScheme pairs an identity resolver with a signer under a scheme ID
// such as "smithy.api#httpBearerAuth".
type AuthScheme interface {
	SchemeID() string

	// IdentityResolver returns the scheme's default resolver, or nil if the
	// scheme needs one configured through Config.IdentityResolvers.
	IdentityResolver(cfg *Config) IdentityResolver
	Signer() Signer
}

// AuthOption is a candidate scheme for an operation.
type AuthOption struct {
	SchemeID           string
	IdentityProperties Properties
	SignerProperties   Properties
}

// AuthParams is the input to scheme resolution.
type AuthParams struct {
	Service   *model.Service
	Operation *model.Operation
	Input     map[string]any
}

// AuthSchemeResolver lists candidate schemes in priority order.
type AuthSchemeResolver interface {
	ResolveAuthSchemes(ctx context.Context, params AuthParams) ([]AuthOption, error)
}

// AuthSchemeResolverFunc adapts a function to AuthSchemeResolver.
type AuthSchemeResolverFunc func(ctx context.Context, params AuthParams) ([]AuthOption, error)

func (f AuthSchemeResolverFunc) ResolveAuthSchemes(ctx context.Context, params AuthParams) ([]AuthOption, error) {
	return f(ctx, params)
}

// ModelAuthSchemeResolver resolves options from the operation's effective
// auth traits. API key options carry the trait's name, in and scheme as
// signer properties.
type ModelAuthSchemeResolver struct{}

func (ModelAuthSchemeResolver) ResolveAuthSchemes(_ context.Context, p AuthParams) ([]AuthOption, error) {
	opts := make([]AuthOption, 0, len(p.Operation.AuthSchemes))
	for _, id := range p.Operation.AuthSchemes {
		opt := AuthOption{SchemeID: id}
		if id == model.TraitHTTPAPIKeyAuth && p.Service != nil {
			var t model.APIKeyAuthTrait
			if err := p.Service.Shape.Traits.Decode(id, &t); err != nil {
				return nil, fmt.Errorf("auth: %w", err)
			}
			opt.SignerProperties = Properties{"name": t.Name, "in": t.In}
			if t.Scheme != "" {
				opt.SignerProperties["scheme"] = t.Scheme
			}
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// Anonymous is the identity of unauthenticated requests.
type Anonymous struct{}

func (Anonymous) Expiration() time.Time { return time.Time{} }

type noAuthScheme struct{}

// NoAuthScheme returns the scheme for smithy.api#noAuth. It sends requests
// unsigned.
func NoAuthScheme() AuthScheme { return noAuthScheme{} }

func (noAuthScheme) SchemeID() string { return model.NoAuth }

func (noAuthScheme) IdentityResolver(*Config) IdentityResolver {
	return IdentityResolverFunc(func(context.Context, Properties) (Identity, error) {
		return Anonymous{}, nil
	})
}

func (noAuthScheme) Signer() Signer {
	return SignerFunc(func(context.Context, *transport.Request, Identity, Properties) error { return nil })
}

// selectedAuth is the scheme chosen for a call.
type selectedAuth struct {
	option   AuthOption
	scheme   AuthScheme
	resolver IdentityResolver
}

// selectAuth picks the first option that has a configured scheme and an
// identity resolver.
func selectAuth(ctx context.Context, cfg *Config, in *InputContext) (*selectedAuth, error) {
	resolver := cfg.AuthSchemeResolver
	if resolver == nil {
		resolver = ModelAuthSchemeResolver{}
	}
	opts, err := resolver.ResolveAuthSchemes(ctx, AuthParams{
		Service:   in.Service,
		Operation: in.Operation,
		Input:     in.Input,
	})
	if err != nil {
		return nil, err
	}
	var tried []string
	for _, opt := range opts {
		scheme, ok := cfg.AuthScheme(opt.SchemeID)
		if !ok {
			tried = append(tried, opt.SchemeID+" (not configured)")
			continue
		}
		ir := cfg.IdentityResolvers[opt.SchemeID]
		if ir == nil {
			ir = scheme.IdentityResolver(cfg)
		}
		if ir == nil {
			tried = append(tried, opt.SchemeID+" (no identity resolver)")
			continue
		}
		return &selectedAuth{option: opt, scheme: scheme, resolver: ir}, nil
	}
	return nil, fmt.Errorf("%w: tried %v", ErrNoAuthScheme, tried)
}

// resolveIdentity resolves an identity and rejects expired ones.
func (a *selectedAuth) resolveIdentity(ctx context.Context) (Identity, error) {
	id, err := a.resolver.ResolveIdentity(ctx, a.option.IdentityProperties)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%s: resolver returned no identity", a.option.SchemeID)
	}
	if exp := id.Expiration(); !exp.IsZero() && !time.Now().Before(exp) {
		return nil, fmt.Errorf("%s: %w at %s", a.option.SchemeID, ErrIdentityExpired, exp.Format(time.RFC3339))
	}
	return id, nil
}

func (a *selectedAuth) sign(ctx context.Context, req *transport.Request, id Identity) error {
	return a.scheme.Signer().Sign(ctx, req, id, a.option.SignerProperties)
}
