// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed stores tracking-service script credentials encrypted
// at rest.
//
// A credential [Bundle] (site URL, script name, script key) is sealed
// with age to one or more x25519 recipients and written to the user's
// config directory by 'breakdown auth login'. At startup, [Resolve]
// prefers a complete set of BREAKDOWN_SITE / BREAKDOWN_SCRIPT_NAME /
// BREAKDOWN_SCRIPT_KEY environment variables (the CI path) and
// otherwise decrypts the sealed bundle with the identity file named by
// BREAKDOWN_IDENTITY.
//
// The ciphertext is base64-encoded in the bundle file, so it survives
// copy-paste and line-based tooling.
package sealed
