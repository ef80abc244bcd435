// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the breakdown binary: a
// small command tree over pflag with structured help, typo
// suggestions, JSON output, and exit-code plumbing.
package cli
