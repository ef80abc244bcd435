// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/clock"
)

// rateLimitTracker remembers the service's rate-limit state from
// response headers and blocks new requests while the window is
// exhausted. The breakdown poller can hammer the search endpoint on
// short intervals; this keeps a misconfigured interval from turning
// into a 429 storm.
type rateLimitTracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool
	clock     clock.Clock
}

func newRateLimitTracker(clk clock.Clock) *rateLimitTracker {
	return &rateLimitTracker{clock: clk}
}

// update records rate-limit state from response headers. Called after
// every request.
func (tracker *rateLimitTracker) update(header http.Header) {
	remainingText := header.Get("X-RateLimit-Remaining")
	resetText := header.Get("X-RateLimit-Reset")
	if remainingText == "" || resetText == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingText)
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(resetText, 10, 64)
	if err != nil {
		return
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.remaining = remaining
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// wait blocks until the window resets when the tracker knows the limit
// is exhausted. Returns immediately otherwise. Errors only on context
// cancellation.
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}
	sleep := tracker.reset.Sub(tracker.clock.Now())
	tracker.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	select {
	case <-tracker.clock.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter computes the backoff for a 429 response: Retry-After in
// seconds when present, otherwise the distance to X-RateLimit-Reset.
// Zero means no backoff information.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if retryText := header.Get("Retry-After"); retryText != "" {
		if seconds, err := strconv.Atoi(retryText); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if resetText := header.Get("X-RateLimit-Reset"); resetText != "" {
		if resetUnix, err := strconv.ParseInt(resetText, 10, 64); err == nil {
			if d := time.Unix(resetUnix, 0).Sub(tracker.clock.Now()); d > 0 {
				return d
			}
		}
	}
	return 0
}
