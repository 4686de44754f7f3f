// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remotetest provides an in-memory fake of the remote cache
// service for tests. One Server plays both roles: the discovery/auth
// server and the cache endpoint.
package remotetest

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Pair is a refresh response.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Request is a recorded request.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   []byte
}

// Server is a fake cache service.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	blobs     map[string][]byte
	values    map[string]map[string]string
	endpoints []string
	warnings  []string
	token     string
	statuses  map[string]int
	refresh   func(refreshToken string) (int, Pair)
	requests  []Request
}

// NewServer starts a Server that is closed when t completes. By
// default it advertises itself as the only cache endpoint and accepts
// any bearer token.
func NewServer(t *testing.T) *Server {
	t.Helper()
	server := &Server{
		blobs:    make(map[string][]byte),
		values:   make(map[string]map[string]string),
		statuses: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cache/endpoints", server.handleEndpoints)
	mux.HandleFunc("POST /api/auth/refresh_token", server.handleRefresh)
	mux.HandleFunc("GET /api/cache/cas/{id}", server.handleLoad)
	mux.HandleFunc("HEAD /api/cache/cas/{id}", server.handleExists)
	mux.HandleFunc("POST /api/cache/cas/{id}", server.handleSave)
	mux.HandleFunc("PUT /api/cache/keyvalue", server.handlePutValue)
	mux.HandleFunc("GET /api/cache/keyvalue/{id}", server.handleGetValue)
	mux.HandleFunc("GET /up", server.handleUp)

	server.Server = httptest.NewServer(server.record(mux))
	t.Cleanup(server.Close)
	return server
}

// Route names accepted by FailRoute.
const (
	RouteEndpoints = "endpoints"
	RouteRefresh   = "refresh"
	RouteLoad      = "load"
	RouteExists    = "exists"
	RouteSave      = "save"
	RoutePutValue  = "put_value"
	RouteGetValue  = "get_value"
	RouteUp        = "up"
)

// FailRoute makes route respond with status until cleared with 0.
func (s *Server) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.statuses, route)
		return
	}
	s.statuses[route] = status
}

// SetEndpoints overrides the advertised cache endpoints.
func (s *Server) SetEndpoints(endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = endpoints
}

// SetWarnings makes every response carry warnings in the
// x-casproxy-warnings header.
func (s *Server) SetWarnings(warnings []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = warnings
}

// RequireToken makes cache and discovery routes reject requests whose
// bearer token is not token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// OnRefresh installs the refresh handler. Without one, refresh
// returns 401.
func (s *Server) OnRefresh(handler func(refreshToken string) (int, Pair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = handler
}

// Blob returns the stored payload for id.
func (s *Server) Blob(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[id]
	return blob, ok
}

// PutBlob seeds a payload.
func (s *Server) PutBlob(id string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = payload
}

// Value returns the stored entries for a key id.
func (s *Server) Value(id string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.values[id]
	return entries, ok
}

// Requests returns the recorded requests, optionally filtered by path
// prefix.
func (s *Server) Requests(pathPrefix string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Request
	for _, request := range s.requests {
		if strings.HasPrefix(request.Path, pathPrefix) {
			matched = append(matched, request)
		}
	}
	return matched
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		request.Body = io.NopCloser(strings.NewReader(string(body)))

		query := make(map[string]string)
		for key, values := range request.URL.Query() {
			query[key] = values[0]
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: request.Method,
			Path:   request.URL.Path,
			Query:  query,
			Header: request.Header.Clone(),
			Body:   body,
		})
		warnings := s.warnings
		s.mu.Unlock()

		if len(warnings) > 0 {
			encoded, _ := json.Marshal(warnings)
			writer.Header().Set("x-casproxy-warnings", base64.StdEncoding.EncodeToString(encoded))
		}
		next.ServeHTTP(writer, request)
	})
}

// reject writes a forced or authorization failure for route and
// reports whether it did.
func (s *Server) reject(writer http.ResponseWriter, request *http.Request, route string, checkToken bool) bool {
	s.mu.Lock()
	status := s.statuses[route]
	token := s.token
	s.mu.Unlock()

	if status != 0 {
		writeMessage(writer, status, "forced failure")
		return true
	}
	if checkToken && token != "" && request.Header.Get("Authorization") != "Bearer "+token {
		writeMessage(writer, http.StatusUnauthorized, "invalid token")
		return true
	}
	return false
}

func writeMessage(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, map[string]string{"message": message})
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(value)
}

func (s *Server) handleEndpoints(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteEndpoints, true) {
		return
	}
	s.mu.Lock()
	endpoints := s.endpoints
	s.mu.Unlock()
	if endpoints == nil {
		endpoints = []string{s.URL}
	}
	writeJSON(writer, http.StatusOK, map[string][]string{"endpoints": endpoints})
}

func (s *Server) handleRefresh(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteRefresh, false) {
		return
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		writeMessage(writer, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	handler := s.refresh
	s.mu.Unlock()
	if handler == nil {
		writeMessage(writer, http.StatusUnauthorized, "refresh token rejected")
		return
	}
	status, pair := handler(body.RefreshToken)
	if status != http.StatusOK {
		writeMessage(writer, status, "refresh token rejected")
		return
	}
	writeJSON(writer, http.StatusOK, pair)
}

func (s *Server) handleLoad(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteLoad, true) {
		return
	}
	blob, ok := s.Blob(request.PathValue("id"))
	if !ok {
		writeMessage(writer, http.StatusNotFound, "artifact not found")
		return
	}
	writer.Header().Set("Content-Type", "application/octet-stream")
	writer.Write(blob)
}

func (s *Server) handleExists(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteExists, true) {
		return
	}
	if _, ok := s.Blob(request.PathValue("id")); !ok {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

func (s *Server) handleSave(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteSave, true) {
		return
	}
	payload, err := io.ReadAll(request.Body)
	if err != nil {
		writeMessage(writer, http.StatusBadRequest, err.Error())
		return
	}
	s.PutBlob(request.PathValue("id"), payload)
	writer.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutValue(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RoutePutValue, true) {
		return
	}
	var body struct {
		CASID   string            `json:"cas_id"`
		Entries map[string]string `json:"entries"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		writeMessage(writer, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.values[body.CASID] = body.Entries
	s.mu.Unlock()
	writer.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetValue(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteGetValue, true) {
		return
	}
	entries, ok := s.Value(request.PathValue("id"))
	if !ok {
		writeMessage(writer, http.StatusNotFound, "key not found")
		return
	}
	writeJSON(writer, http.StatusOK, map[string]map[string]string{"entries": entries})
}

func (s *Server) handleUp(writer http.ResponseWriter, request *http.Request) {
	if s.reject(writer, request, RouteUp, false) {
		return
	}
	writer.WriteHeader(http.StatusOK)
}
