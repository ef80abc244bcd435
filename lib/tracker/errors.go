// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get and FindOne when no record matches.
var ErrNotFound = errors.New("tracker: record not found")

// APIError is a non-2xx response from the tracking service. The
// service returns a structured JSON error body with a message and
// optional field-level details.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Message is the service's top-level error description.
	Message string

	// Errors carries field-level validation failures, present on 422
	// responses.
	Errors []FieldError
}

// FieldError describes one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (err *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tracker: HTTP %d: %s", err.StatusCode, err.Message)
	for _, fieldError := range err.Errors {
		if fieldError.Message != "" {
			fmt.Fprintf(&b, "; %s: %s", fieldError.Field, fieldError.Message)
		} else {
			fmt.Fprintf(&b, "; %s: %s", fieldError.Field, fieldError.Code)
		}
	}
	return b.String()
}

// IsNotFound reports whether err is ErrNotFound or a 404 response.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 404
}

// IsRateLimited reports whether err is a rate-limit response.
func IsRateLimited(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 429
}

// IsAuthFailure reports whether err is an authentication rejection.
func IsAuthFailure(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == 401
}
