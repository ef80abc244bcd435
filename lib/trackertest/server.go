// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

// Package trackertest is an in-process stand-in for the tracking
// service, backed by record fixtures and the same filter evaluation
// the real service applies. Client, manager, and command tests all
// drive it; nothing outside _test files should import it in
// production builds, but it lives as a normal package so every test
// in the tree shares one implementation.
package trackertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pipeline-foundation/breakdown/lib/entity"
	"github.com/pipeline-foundation/breakdown/lib/filter"
)

// DefaultScriptName and DefaultScriptKey are the credentials New
// registers.
const (
	DefaultScriptName = "breakdown-test"
	DefaultScriptKey  = "secret-0000"
)

// Server is the fake tracking service. Create with New, seed with Add,
// point a tracker.Client at URL().
type Server struct {
	httpServer *httptest.Server

	mu            sync.Mutex
	records       map[string][]entity.Record
	sessions      map[string]bool
	sessionSerial int
	requestLog    []string
	failNext      *failure
	sessionTTL    time.Duration
}

type failure struct {
	status     int
	message    string
	retryAfter int
}

// New starts a fake service and tears it down with the test.
func New(t interface {
	Helper()
	Cleanup(func())
}) *Server {
	t.Helper()
	server := &Server{
		records:    make(map[string][]entity.Record),
		sessions:   make(map[string]bool),
		sessionTTL: time.Hour,
	}
	server.httpServer = httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(server.httpServer.Close)
	return server
}

// URL returns the server's base URL (plain HTTP on loopback).
func (s *Server) URL() string { return s.httpServer.URL }

// Add seeds fixture records for an entity type. Records should carry
// "type" and "id" fields like real wire records.
func (s *Server) Add(entityType string, records ...entity.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entityType] = append(s.records[entityType], records...)
}

// FailNext makes the next non-session request fail with the given
// status. A 429 carries Retry-After: 1.
func (s *Server) FailNext(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &failure{status: status, message: message}
	if status == http.StatusTooManyRequests {
		f.retryAfter = 1
	}
	s.failNext = f
}

// ExpireSessions invalidates every issued session token, forcing the
// next authenticated request into the 401 re-exchange path.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.sessions {
		s.sessions[token] = false
	}
}

// Requests returns the "METHOD /path" log of everything served so
// far, session exchanges included.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestLog...)
}

// SearchCount returns how many search requests the server has served.
func (s *Server) SearchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, line := range s.requestLog {
		if strings.Contains(line, "/_search") {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requestLog = append(s.requestLog, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	if r.URL.Path == "/api/v1/auth/session" {
		s.handleSession(w, r)
		return
	}

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid or expired session token")
		return
	}

	s.mu.Lock()
	forced := s.failNext
	s.failNext = nil
	s.mu.Unlock()
	if forced != nil {
		if forced.retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(forced.retryAfter))
		}
		writeError(w, forced.status, forced.message)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/published_files/_resolve":
		s.handleResolve(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/_search"):
		s.handleSearch(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/entity/"):
		s.handleGet(w, r)
	default:
		writeError(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		ScriptName string `json:"script_name"`
		ScriptKey  string `json:"script_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		writeError(w, http.StatusBadRequest, "malformed credentials")
		return
	}
	if credentials.ScriptName != DefaultScriptName || credentials.ScriptKey != DefaultScriptKey {
		writeError(w, http.StatusUnauthorized, "unknown script credentials")
		return
	}

	s.mu.Lock()
	s.sessionSerial++
	token := fmt.Sprintf("session-%d", s.sessionSerial)
	s.sessions[token] = true
	ttl := s.sessionTTL
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token]
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	entityType := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/entity/"), "/_search")

	var request struct {
		Filters  filter.List `json:"filters"`
		Fields   []string    `json:"fields"`
		Sort     []sortKey   `json:"sort"`
		PageSize int         `json:"page_size"`
		Page     int         `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed search request: "+err.Error())
		return
	}

	s.mu.Lock()
	fixtures := append([]entity.Record(nil), s.records[entityType]...)
	s.mu.Unlock()

	var matched []entity.Record
	for _, record := range fixtures {
		if request.Filters.Match(record) {
			matched = append(matched, record)
		}
	}
	sortRecords(matched, request.Sort)

	page, pageSize := request.Page, request.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	nextPage := 0
	if end < len(matched) {
		nextPage = page + 1
	}

	projected := make([]entity.Record, 0, end-start)
	for _, record := range matched[start:end] {
		projected = append(projected, project(record, request.Fields))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records":   projected,
		"next_page": nextPage,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/entity/"), "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
		return
	}
	entityType := parts[0]
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records[entityType] {
		if record.ID() == id {
			writeJSON(w, http.StatusOK, project(record, r.URL.Query()["fields"]))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", entityType, id))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Paths  []string `json:"paths"`
		Fields []string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed resolve request")
		return
	}

	s.mu.Lock()
	fixtures := append([]entity.Record(nil), s.records["PublishedFile"]...)
	s.mu.Unlock()

	files := make(map[string]entity.Record)
	for _, path := range request.Paths {
		for _, record := range fixtures {
			if entity.LocalPath(record["path"]) == path {
				files[path] = project(record, request.Fields)
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

type sortKey struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

func sortRecords(records []entity.Record, keys []sortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range keys {
			left, _ := records[i].Deep(key.Field)
			right, _ := records[j].Deep(key.Field)
			order := compareValues(left, right)
			if order == 0 {
				continue
			}
			if key.Descending {
				return order > 0
			}
			return order < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	if an, ok := entity.Int(a); ok {
		if bn, ok := entity.Int(b); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(entity.Display(a), entity.Display(b))
}

// project copies the requested fields out of a fixture. Identity
// fields always come along; deep-link paths project flat under the
// dotted key, the way the real service answers them.
func project(record entity.Record, fields []string) entity.Record {
	if len(fields) == 0 {
		return record
	}
	out := entity.Record{}
	for _, field := range []string{"id", "type"} {
		if v, ok := record[field]; ok {
			out[field] = v
		}
	}
	for _, field := range fields {
		if v, ok := record[field]; ok {
			out[field] = v
			continue
		}
		if strings.Contains(field, ".") {
			if v, ok := record.Deep(field); ok {
				out[field] = v
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}
