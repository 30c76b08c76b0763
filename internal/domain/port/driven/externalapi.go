package driven

import (
	"context"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
)

// CallOptions carries the optional parts of an external API call. Zero values
// fall back to the adapter's configured defaults.
type CallOptions struct {
	// BaseURL overrides the adapter's default base URL when non-empty.
	BaseURL string
	// TimeoutSeconds overrides the per-attempt timeout when positive.
	TimeoutSeconds int
	// Params are appended to the request URL as query parameters.
	Params map[string]string
	// Headers are sent verbatim; credential-derived headers are added
	// alongside them, not instead of them.
	Headers map[string]string
	// Credentials may carry an "api_key" (sent as a bearer token) and/or an
	// "api_token" (sent as X-API-Token).
	Credentials map[string]any
}

// ExternalAPIError is returned by ExternalAPI.Call after retries are
// exhausted, or immediately for failures that retrying cannot fix.
type ExternalAPIError struct {
	Message string
}

func (e *ExternalAPIError) Error() string {
	return e.Message
}

// ExternalAPI defines the driven port for relaying HTTP calls to the
// configured external service.
type ExternalAPI interface {
	// Call issues one logical request and returns the normalized response.
	// It retries transient failures internally; a returned error is always
	// an *ExternalAPIError.
	Call(ctx context.Context, endpoint, method string, opts CallOptions) (*model.Envelope, error)
}
