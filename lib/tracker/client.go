// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pipeline-foundation/breakdown/lib/clock"
	"github.com/pipeline-foundation/breakdown/lib/netutil"
)

// Config holds what it takes to build a Client.
type Config struct {
	// BaseURL is the tracking site root, e.g. "https://studio.example.com".
	// HTTPS is required except for loopback addresses, which the test
	// double uses.
	BaseURL string

	// ScriptName and ScriptKey are the script credentials registered
	// with the site. Both are required.
	ScriptName string
	ScriptKey  string

	// HTTPClient is used for all requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides time operations. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client is the typed tracking-service client. Construct with
// NewClient; the zero value is not usable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *sessionAuth
	rateLimit  *rateLimitTracker
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient validates config and returns a ready client. No network
// traffic happens until the first operation; credentials are exchanged
// lazily.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("tracker: BaseURL is required")
	}
	if err := checkScheme(baseURL); err != nil {
		return nil, err
	}
	if config.ScriptName == "" {
		return nil, fmt.Errorf("tracker: ScriptName is required")
	}
	if config.ScriptKey == "" {
		return nil, fmt.Errorf("tracker: ScriptKey is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auth := newSessionAuth(config.ScriptName, config.ScriptKey, clk)
	auth.httpClient = httpClient
	auth.baseURL = baseURL

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		auth:       auth,
		rateLimit:  newRateLimitTracker(clk),
		clock:      clk,
		logger:     logger,
	}, nil
}

// BaseURL returns the site root the client talks to.
func (client *Client) BaseURL() string { return client.baseURL }

// checkScheme enforces HTTPS for anything that is not loopback. Script
// keys over plain HTTP to a real host would leak credentials.
func checkScheme(baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("tracker: parsing BaseURL: %w", err)
	}
	if parsed.Scheme == "https" {
		return nil
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
	}
	return fmt.Errorf("tracker: BaseURL must use HTTPS (got %q)", baseURL)
}

// do executes an authenticated request against a path relative to the
// base URL. Non-2xx responses come back as *APIError. The body is
// JSON-encoded when non-nil.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	return client.doWithRetry(ctx, method, path, requestBody, false)
}

// doWithRetry is do with a retry guard: a 429 backs off once on the
// injected clock, a 401 drops the cached session and re-exchanges
// once. Persistent failures surface to the caller.
func (client *Client) doWithRetry(ctx context.Context, method, path string, requestBody any, isRetry bool) ([]byte, error) {
	response, err := client.doRaw(ctx, method, client.baseURL+path, requestBody)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("tracker: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	if !isRetry {
		switch response.StatusCode {
		case http.StatusTooManyRequests:
			if backoff := client.rateLimit.retryAfter(response.Header); backoff > 0 {
				client.logger.Info("tracker rate limited, backing off",
					"duration", backoff, "method", method, "path", path)
				select {
				case <-client.clock.After(backoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return client.doWithRetry(ctx, method, path, requestBody, true)
			}
		case http.StatusUnauthorized:
			client.logger.Debug("tracker session rejected, re-exchanging credentials",
				"method", method, "path", path)
			client.auth.invalidate()
			return client.doWithRetry(ctx, method, path, requestBody, true)
		}
	}

	return nil, parseAPIErrorFromBody(response.StatusCode, body)
}

// doRaw sends one HTTP request with authentication and preemptive
// rate-limit waiting. The caller owns the response body.
func (client *Client) doRaw(ctx context.Context, method, fullURL string, requestBody any) (*http.Response, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("tracker: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("tracker: creating request: %w", err)
	}

	authHeader, err := client.auth.header(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: authentication: %w", err)
	}
	request.Header.Set("Authorization", authHeader)
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("tracker: %s %s: %w", method, fullURL, err)
	}
	client.rateLimit.update(response.Header)
	return response, nil
}

// get decodes a GET response into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, result)
}

// post decodes a POST response into result when result is non-nil.
func (client *Client) post(ctx context.Context, path string, requestBody, result any) error {
	body, err := client.do(ctx, http.MethodPost, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

// parseAPIErrorFromBody builds an *APIError from a status code and
// response body, tolerating non-JSON bodies.
func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message string       `json:"message"`
		Errors  []FieldError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = string(body)
	}
	return apiError
}
