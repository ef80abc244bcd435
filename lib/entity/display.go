// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"strconv"
	"strings"
	"time"
)

// Display renders a decoded value the way the panel and templates show
// it: strings verbatim, integral numbers without a decimal point,
// entity references by display name, lists comma-joined, timestamps in
// a short local form. Nil renders as "".
func Display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if ts, ok := parseWireTime(t); ok {
			return formatTime(ts)
		}
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return formatTime(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Display(item))
		}
		return strings.Join(parts, ", ")
	case Ref:
		return t.Name
	case Record:
		return t.Name()
	case map[string]any:
		return Record(t).Name()
	default:
		return ""
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// parseWireTime recognizes the service's timestamp strings. The check
// is shape-first so ordinary field values never pay for a failed
// time.Parse.
func parseWireTime(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02T15:04:05Z") {
		return time.Time{}, false
	}
	if s[4] != '-' || s[7] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
