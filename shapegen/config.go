package shapegen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/broady/shapeclient"
	"github.com/broady/shapeclient/shapegen/sink"
)

// DefaultConfigFile is the config file name the CLI looks for.
const DefaultConfigFile = "shapegen.yaml"

// Config holds the configuration for client generation. It can be loaded
// from a YAML file with LoadConfig.
type Config struct {
	// Package is the Go package name of the generated code.
	Package string `yaml:"package" validate:"required,lowercase,alphanum"`

	// Service is the absolute shape ID of the service to generate. Empty
	// selects the model's only service.
	Service string `yaml:"service" validate:"omitempty,contains=#"`

	// Model is the path of the model file, used by the CLI.
	Model string `yaml:"model"`

	// Out is the output directory. Ignored when Sink is set.
	Out string `yaml:"out"`

	// Operations restricts generation to the named operations. Empty means
	// every operation of the service.
	Operations []string `yaml:"operations" validate:"dive,required"`

	// Initialisms are extra words kept upper case in Go identifiers, in
	// addition to the usual ones such as ID and URL.
	Initialisms []string `yaml:"initialisms" validate:"dive,required,uppercase"`

	// Header is a comment placed at the top of every generated Go file.
	Header string `yaml:"header"`

	// ModelFile is the name of the embedded model document.
	// Default: "model.json"
	ModelFile string `yaml:"modelFile" validate:"omitempty,endswith=.json,excludesall=/\\"`

	// Sink receives the generated files. When nil, files are written
	// under Out.
	Sink sink.OutputSink `yaml:"-" validate:"-"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// LoadConfig reads a YAML config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML config document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %s", shapeclient.ValidationMessage(err))
	}
	return nil
}

// applyConfigDefaults returns a copy of cfg with defaults filled in.
func applyConfigDefaults(cfg *Config) *Config {
	result := *cfg
	if result.ModelFile == "" {
		result.ModelFile = "model.json"
	}
	return &result
}
