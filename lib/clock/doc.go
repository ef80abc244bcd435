// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for code that schedules work: the
// published-file poller, the scene watcher's debounce, and the tracker
// client's rate-limit backoff all take a Clock instead of calling the
// time package.
//
// Production wiring uses Real(). Tests use Fake(initial), which stands
// still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	p := refresh.New(refresh.Config{Clock: c, ...})
//	// ... start the poller ...
//	c.WaitForTimers(1)          // poller's ticker is registered
//	c.Advance(30 * time.Second) // fire one poll deterministically
//
// WaitForTimers is the synchronization point between a goroutine
// registering a timer and the test advancing time; without it the
// Advance can race ahead of the registration.
package clock
