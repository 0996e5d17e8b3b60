// Package auth implements the HTTP auth schemes a service model can
// declare: bearer tokens, API keys and basic credentials.
//
//	c, err := shapeclient.New(m, "",
//		shapeclient.WithAuthScheme(auth.Bearer(auth.StaticToken(tok))),
//	)
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/broady/shapeclient"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/transport"
	"github.com/broady/shapeclient/wire"
)

// ErrWrongIdentity is returned by a signer given an identity of another
// scheme.
var ErrWrongIdentity = errors.New("auth: identity does not match scheme")

// Token is a bearer token.
type Token struct {
	Value   string
	Expires time.Time
}

func (t Token) Expiration() time.Time { return t.Expires }

// APIKey is an API key.
type APIKey struct {
	Value string
}

func (APIKey) Expiration() time.Time { return time.Time{} }

// Credentials is a username and password for basic auth.
type Credentials struct {
	Username string
	Password string
}

func (Credentials) Expiration() time.Time { return time.Time{} }

type scheme struct {
	id       string
	resolver shapeclient.IdentityResolver
	signer   shapeclient.Signer
}

func (s *scheme) SchemeID() string { return s.id }

func (s *scheme) IdentityResolver(*shapeclient.Config) shapeclient.IdentityResolver {
	return s.resolver
}

func (s *scheme) Signer() shapeclient.Signer { return s.signer }

// Bearer returns the httpBearerAuth scheme. It sends
// "Authorization: Bearer <token>". r may be nil when the resolver is
// configured with shapeclient.WithIdentityResolver.
func Bearer(r shapeclient.IdentityResolver) shapeclient.AuthScheme {
	return &scheme{
		id:       model.TraitHTTPBearerAuth,
		resolver: r,
		signer: shapeclient.SignerFunc(func(_ context.Context, req *transport.Request, id shapeclient.Identity, _ shapeclient.Properties) error {
			tok, ok := id.(Token)
			if !ok {
				return fmt.Errorf("%w: bearer got %T", ErrWrongIdentity, id)
			}
			req.Header.Set("Authorization", "Bearer "+tok.Value)
			return nil
		}),
	}
}

// APIKeyScheme returns the httpApiKeyAuth scheme. The signer properties
// "name", "in" ("header" or "query") and "scheme" come from the service's
// httpApiKeyAuth trait.
func APIKeyScheme(r shapeclient.IdentityResolver) shapeclient.AuthScheme {
	return &scheme{
		id:       model.TraitHTTPAPIKeyAuth,
		resolver: r,
		signer:   shapeclient.SignerFunc(signAPIKey),
	}
}

func signAPIKey(_ context.Context, req *transport.Request, id shapeclient.Identity, p shapeclient.Properties) error {
	key, ok := id.(APIKey)
	if !ok {
		return fmt.Errorf("%w: api key got %T", ErrWrongIdentity, id)
	}
	name := p["name"]
	if name == "" {
		return errors.New("auth: api key has no name")
	}
	switch p["in"] {
	case "header", "":
		v := key.Value
		if s := p["scheme"]; s != "" {
			v = s + " " + v
		}
		req.Header.Set(name, v)
	case "query":
		pair := wire.EscapeQuery(name) + "=" + wire.EscapeQuery(key.Value)
		if req.URL.RawQuery == "" {
			req.URL.RawQuery = pair
		} else {
			req.URL.RawQuery += "&" + pair
		}
	default:
		return fmt.Errorf("auth: api key location %q", p["in"])
	}
	return nil
}

// Basic returns the httpBasicAuth scheme.
func Basic(r shapeclient.IdentityResolver) shapeclient.AuthScheme {
	return &scheme{
		id:       model.TraitHTTPBasicAuth,
		resolver: r,
		signer: shapeclient.SignerFunc(func(_ context.Context, req *transport.Request, id shapeclient.Identity, _ shapeclient.Properties) error {
			c, ok := id.(Credentials)
			if !ok {
				return fmt.Errorf("%w: basic got %T", ErrWrongIdentity, id)
			}
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password)))
			return nil
		}),
	}
}

// StaticToken resolves to a fixed bearer token. If the token is a JWT, its
// exp claim becomes the identity's expiration. The signature is not
// verified.
func StaticToken(token string) shapeclient.IdentityResolver {
	t := Token{Value: token}
	if exp, ok := JWTExpiration(token); ok {
		t.Expires = exp
	}
	return shapeclient.IdentityResolverFunc(func(context.Context, shapeclient.Properties) (shapeclient.Identity, error) {
		return t, nil
	})
}

// JWTExpiration returns the exp claim of a JWT.
func JWTExpiration(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenSource resolves bearer tokens from an OAuth2 token source. Tokens
// are cached until they expire.
func TokenSource(ts oauth2.TokenSource) shapeclient.IdentityResolver {
	ts = oauth2.ReuseTokenSource(nil, ts)
	return shapeclient.IdentityResolverFunc(func(context.Context, shapeclient.Properties) (shapeclient.Identity, error) {
		tok, err := ts.Token()
		if err != nil {
			return nil, fmt.Errorf("auth: oauth2 token: %w", err)
		}
		return Token{Value: tok.AccessToken, Expires: tok.Expiry}, nil
	})
}

// StaticAPIKey resolves to a fixed API key.
func StaticAPIKey(key string) shapeclient.IdentityResolver {
	return shapeclient.IdentityResolverFunc(func(context.Context, shapeclient.Properties) (shapeclient.Identity, error) {
		return APIKey{Value: key}, nil
	})
}

// StaticCredentials resolves to fixed basic credentials.
func StaticCredentials(username, password string) shapeclient.IdentityResolver {
	return shapeclient.IdentityResolverFunc(func(context.Context, shapeclient.Properties) (shapeclient.Identity, error) {
		return Credentials{Username: username, Password: password}, nil
	})
}

// EnvPlugin configures bearer and API key schemes from the credentials in
// env. Schemes without a credential are left alone.
func EnvPlugin(env *shapeclient.EnvConfig) shapeclient.Plugin {
	return func(c *shapeclient.Config) {
		if env.BearerToken != "" {
			shapeclient.WithAuthScheme(Bearer(StaticToken(env.BearerToken)))(c)
		}
		if env.APIKey != "" {
			shapeclient.WithAuthScheme(APIKeyScheme(StaticAPIKey(env.APIKey)))(c)
		}
	}
}
