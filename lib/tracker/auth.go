// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/clock"
	"github.com/pipeline-foundation/breakdown/lib/netutil"
)

// sessionRotationMargin is how far before expiry the session token is
// exchanged again. Rotating early avoids a token expiring mid-request.
const sessionRotationMargin = 2 * time.Minute

// sessionAuth exchanges script credentials for a short-lived session
// token and rotates it near expiry. The service invalidates sessions
// server-side at will, so the client also re-exchanges once on a 401
// (see doWithRetry).
type sessionAuth struct {
	scriptName string
	scriptKey  string
	clock      clock.Clock

	// httpClient and baseURL are set by the Client after construction:
	// the client needs the authenticator for headers, the authenticator
	// needs the client's transport for the exchange request.
	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newSessionAuth(scriptName, scriptKey string, clk clock.Clock) *sessionAuth {
	return &sessionAuth{scriptName: scriptName, scriptKey: scriptKey, clock: clk}
}

// header returns a valid Authorization header value, exchanging
// credentials for a fresh session when the cached one is missing or
// near expiry.
func (auth *sessionAuth) header(ctx context.Context) (string, error) {
	auth.mu.Lock()
	defer auth.mu.Unlock()

	if auth.token != "" && auth.clock.Now().Before(auth.expiresAt.Add(-sessionRotationMargin)) {
		return "Bearer " + auth.token, nil
	}

	token, expiresAt, err := auth.exchange(ctx)
	if err != nil {
		return "", err
	}
	auth.token = token
	auth.expiresAt = expiresAt
	return "Bearer " + token, nil
}

// invalidate drops the cached session so the next request exchanges
// fresh credentials. Called when the service rejects a token early.
func (auth *sessionAuth) invalidate() {
	auth.mu.Lock()
	defer auth.mu.Unlock()
	auth.token = ""
	auth.expiresAt = time.Time{}
}

// exchange trades script credentials for a session token. Must be
// called with auth.mu held.
func (auth *sessionAuth) exchange(ctx context.Context) (string, time.Time, error) {
	credentials, err := json.Marshal(map[string]string{
		"script_name": auth.scriptName,
		"script_key":  auth.scriptKey,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("tracker: encoding credentials: %w", err)
	}

	url := auth.baseURL + "/api/v1/auth/session"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(credentials))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("tracker: creating session request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := auth.httpClient.Do(request)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("tracker: session exchange: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		body, _ := netutil.ReadResponse(response.Body)
		return "", time.Time{}, parseAPIErrorFromBody(response.StatusCode, body)
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := netutil.DecodeResponse(response.Body, &result); err != nil {
		return "", time.Time{}, fmt.Errorf("tracker: decoding session response: %w", err)
	}
	if result.Token == "" {
		return "", time.Time{}, fmt.Errorf("tracker: session exchange returned empty token")
	}
	return result.Token, result.ExpiresAt, nil
}
