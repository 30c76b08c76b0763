// Package externalapi implements the ExternalAPI port over plain HTTP with
// bounded retries and response normalization.
package externalapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
	"github.com/ericfisherdev/integrationhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ExternalAPI = (*Client)(nil)

// maxErrorBodyBytes caps how much of an error response body is captured into
// the failure message.
const maxErrorBodyBytes = 4 << 10

// Client implements the driven.ExternalAPI port. One Call issues up to
// maxRetries HTTP attempts with capped exponential backoff between them.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates an external API client with an in-memory caching
// transport (conditional requests on repeated GETs).
func NewClient(baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()

	return &Client{
		httpClient: &http.Client{Transport: cacheTransport},
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server's client and URL.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// transientError marks a single-attempt failure worth retrying: non-2xx
// status, request timeout, or connection-level error.
type transientError struct {
	msg string
}

func (e *transientError) Error() string {
	return e.msg
}

// Call issues one logical request against the external API and returns the
// normalized response. Transient failures are retried up to the configured
// attempt count; any other failure aborts immediately. The returned error is
// always a *driven.ExternalAPIError carrying the last observed failure detail.
func (c *Client) Call(ctx context.Context, endpoint, method string, opts driven.CallOptions) (*model.Envelope, error) {
	baseURL := c.baseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	timeout := c.timeout
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}

	method = strings.ToUpper(method)
	fullURL := joinURL(baseURL, endpoint)
	headers := buildHeaders(opts.Headers, opts.Credentials)

	c.logger.Info("calling external api",
		"url", fullURL,
		"method", method,
		"has_params", len(opts.Params) > 0,
		"has_credentials", opts.Credentials != nil,
	)

	var envelope *model.Envelope
	attempt := 0

	operation := func() error {
		attempt++

		env, err := c.attempt(ctx, method, fullURL, opts.Params, headers, timeout)
		if err != nil {
			var transient *transientError
			if errors.As(err, &transient) {
				c.logger.Warn("external api attempt failed",
					"url", fullURL,
					"method", method,
					"attempt", attempt,
					"max_retries", c.maxRetries,
					"error", err,
				)
				return err
			}
			// Unexpected failures are fatal for the whole call.
			return backoff.Permanent(fmt.Errorf("unexpected error during API call: %w", err))
		}

		envelope = env
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries-1)),
		ctx,
	)

	if err := backoff.Retry(operation, bo); err != nil {
		c.logger.Error("external api call failed",
			"url", fullURL,
			"method", method,
			"attempts", attempt,
			"error", err,
		)
		return nil, &driven.ExternalAPIError{Message: err.Error()}
	}

	c.logger.Info("external api call succeeded",
		"url", fullURL,
		"method", method,
		"attempts", attempt,
	)

	return envelope, nil
}

// attempt performs a single HTTP request. It returns a *transientError for
// retryable failures and any other error for fatal ones.
func (c *Client) attempt(ctx context.Context, method, fullURL string, params map[string]string, headers http.Header, timeout time.Duration) (*model.Envelope, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if len(params) > 0 {
		q := req.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &transientError{msg: fmt.Sprintf("API call timed out after %s", timeout)}
		}
		return nil, &transientError{msg: fmt.Sprintf("API request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &transientError{
			msg: fmt.Sprintf("API call failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		// A non-JSON success body is an unexpected failure, not retryable.
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	return normalize(data, fullURL, method), nil
}

// normalize wraps a parsed response body in the stable envelope with
// provenance metadata.
func normalize(data any, sourceURL, method string) *model.Envelope {
	var dataType string
	recordCount := 1

	switch v := data.(type) {
	case []any:
		dataType = "list"
		recordCount = len(v)
	case map[string]any:
		dataType = "object"
		recordCount = len(v)
	case nil:
		dataType = "null"
	default:
		dataType = fmt.Sprintf("%T", data)
	}

	return &model.Envelope{
		Data: data,
		Metadata: model.EnvelopeMetadata{
			SourceURL:   sourceURL,
			Method:      method,
			FetchedAt:   time.Now().UTC().Format(time.RFC3339),
			RecordCount: recordCount,
			DataType:    dataType,
		},
	}
}

// joinURL joins the base URL and endpoint path with a single slash,
// regardless of trailing/leading slashes on the inputs.
func joinURL(baseURL, endpoint string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// buildHeaders merges caller-supplied headers with credential-derived ones.
// An api_key credential becomes a bearer token; an api_token credential is
// sent as X-API-Token. Both may be present at once.
func buildHeaders(extra map[string]string, credentials map[string]any) http.Header {
	headers := make(http.Header, len(extra)+2)
	for k, v := range extra {
		headers.Set(k, v)
	}

	if credentials != nil {
		if apiKey, ok := credentials["api_key"]; ok {
			headers.Set("Authorization", fmt.Sprintf("Bearer %v", apiKey))
		}
		if apiToken, ok := credentials["api_token"]; ok {
			headers.Set("X-API-Token", fmt.Sprintf("%v", apiToken))
		}
	}

	return headers
}
