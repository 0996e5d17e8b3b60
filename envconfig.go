package shapeclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"

	"github.com/broady/shapeclient/transport"
)

// EnvConfig is client configuration read from the environment.
type EnvConfig struct {
	Endpoint    string        `env:"SHAPECLIENT_ENDPOINT" validate:"omitempty,url"`
	MaxAttempts int           `env:"SHAPECLIENT_MAX_ATTEMPTS,default=3" validate:"min=1,max=20"`
	RetryMode   string        `env:"SHAPECLIENT_RETRY_MODE,default=standard" validate:"oneof=standard simple off"`
	Timeout     time.Duration `env:"SHAPECLIENT_TIMEOUT,default=30s" validate:"min=0"`

	// Credentials are applied by the auth package.
	BearerToken string `env:"SHAPECLIENT_BEARER_TOKEN"`
	APIKey      string `env:"SHAPECLIENT_API_KEY"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadEnvConfig reads and validates EnvConfig.
func LoadEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, &Error{Code: CodeInvalidArgument, Message: "environment: " + err.Error(), Err: err}
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Message: "environment: " + ValidationMessage(err), Err: err}
	}
	return &cfg, nil
}

// Plugins returns the plugins that apply the endpoint, retry and timeout
// settings.
func (e *EnvConfig) Plugins() ([]Plugin, error) {
	var plugins []Plugin
	if e.Endpoint != "" {
		r, err := StaticEndpoint(e.Endpoint)
		if err != nil {
			return nil, &Error{Code: CodeInvalidArgument, Message: err.Error(), Err: err}
		}
		plugins = append(plugins, WithEndpointResolver(r))
	}
	rs, err := NewRetryStrategy(e.RetryMode, e.MaxAttempts)
	if err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Message: err.Error(), Err: err}
	}
	plugins = append(plugins, WithRetryStrategy(rs))
	if e.Timeout > 0 {
		plugins = append(plugins, WithHTTPClient(transport.NewHTTPClient(&http.Client{
			Transport: transport.DefaultTransport(),
			Timeout:   e.Timeout,
		})))
	}
	return plugins, nil
}
