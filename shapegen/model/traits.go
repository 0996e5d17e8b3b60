package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Prelude trait identifiers used by the runtime and generator.
const (
	TraitRequired          = "smithy.api#required"
	TraitDefault           = "smithy.api#default"
	TraitDocumentation     = "smithy.api#documentation"
	TraitError             = "smithy.api#error"
	TraitRetryable         = "smithy.api#retryable"
	TraitSparse            = "smithy.api#sparse"
	TraitStreaming         = "smithy.api#streaming"
	TraitRequiresLength    = "smithy.api#requiresLength"
	TraitMediaType         = "smithy.api#mediaType"
	TraitJSONName          = "smithy.api#jsonName"
	TraitTimestampFormat   = "smithy.api#timestampFormat"
	TraitEnumValue         = "smithy.api#enumValue"
	TraitHTTP              = "smithy.api#http"
	TraitHTTPError         = "smithy.api#httpError"
	TraitHTTPHeader        = "smithy.api#httpHeader"
	TraitHTTPLabel         = "smithy.api#httpLabel"
	TraitHTTPQuery         = "smithy.api#httpQuery"
	TraitHTTPQueryParams   = "smithy.api#httpQueryParams"
	TraitHTTPPrefixHeaders = "smithy.api#httpPrefixHeaders"
	TraitHTTPPayload       = "smithy.api#httpPayload"
	TraitHTTPResponseCode  = "smithy.api#httpResponseCode"
	TraitAuth              = "smithy.api#auth"
	TraitOptionalAuth      = "smithy.api#optionalAuth"
	TraitHTTPBearerAuth    = "smithy.api#httpBearerAuth"
	TraitHTTPAPIKeyAuth    = "smithy.api#httpApiKeyAuth"
	TraitHTTPBasicAuth     = "smithy.api#httpBasicAuth"
	TraitHTTPDigestAuth    = "smithy.api#httpDigestAuth"
	TraitIdempotencyToken  = "smithy.api#idempotencyToken"
	TraitInput             = "smithy.api#input"
	TraitOutput            = "smithy.api#output"
	TraitUnitType          = "smithy.api#unitType"
	TraitEventStream       = "smithy.api#eventStream"
)

// NoAuth is the scheme identifier for anonymous requests.
const NoAuth = "smithy.api#noAuth"

// Traits holds the raw trait values applied to a shape or member, keyed by
// absolute trait shape ID.
type Traits map[string]json.RawMessage

// Has reports whether the trait is present.
func (t Traits) Has(id string) bool {
	_, ok := t[id]
	return ok
}

// Decode unmarshals the trait value into v.
func (t Traits) Decode(id string, v any) error {
	raw, ok := t[id]
	if !ok {
		return fmt.Errorf("trait %s not present", id)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("trait %s: %w", id, err)
	}
	return nil
}

// String returns the trait value when it is a JSON string, or "".
func (t Traits) String(id string) string {
	var s string
	if raw, ok := t[id]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// merge copies traits from other that are not already set.
func (t Traits) merge(other Traits) Traits {
	if len(other) == 0 {
		return t
	}
	if t == nil {
		t = make(Traits, len(other))
	}
	for k, v := range other {
		if _, ok := t[k]; !ok {
			t[k] = v
		}
	}
	return t
}

// HTTPTrait is the value of smithy.api#http.
type HTTPTrait struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
	Code   int    `json:"code,omitempty"`
}

// RetryableTrait is the value of smithy.api#retryable.
type RetryableTrait struct {
	Throttling bool `json:"throttling,omitempty"`
}

// APIKeyAuthTrait is the value of smithy.api#httpApiKeyAuth.
type APIKeyAuthTrait struct {
	Name   string `json:"name"`
	In     string `json:"in"`
	Scheme string `json:"scheme,omitempty"`
}
