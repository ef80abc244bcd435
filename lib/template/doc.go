// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package template implements the display-token language the UI
// configuration hooks speak. A template is literal text with embedded
// tokens:
//
//	{code}                              a record field
//	{entity.Shot.code}                  a deep link through entity fields
//	{artist|created_by}                 fallback chain, first non-empty wins
//	{sg_sequence::showtype}             directive: prefix the entity type
//	{created_by::nolink}                directive: no hyperlink wrapping
//	{[Version ]version_number[ of 10]}  pre/post-roll, dropped when empty
//	{<NODE_NAME>}                       scene-item token, not a record field
//
// A token's pieces compose as
//
//	{[preroll]field|fallback...::directive...[postroll]}
//
// and the pre/post-roll wrap whatever the fallback chain resolves to:
// when every alternative is empty the token renders as "" with no
// roll text at all.
//
// Parse compiles a template once and reports malformed tokens and
// unknown directives as errors with byte offsets; Render never fails,
// it renders absent values as empty.
package template
