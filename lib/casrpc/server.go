// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package casrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/cas"
	"github.com/bureau-foundation/casproxy/lib/codec"
	"github.com/bureau-foundation/casproxy/lib/netutil"
	"github.com/bureau-foundation/casproxy/lib/version"
)

// ActionFunc processes a request for one action. raw is the full CBOR
// request, including the "action" field.
//
// A nil result yields {ok: true}. A non-nil result is marshaled into
// the response's data field. Errors classified by lib/cacheerr carry
// their kind into the response.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Server serves the bridge protocol on a Unix socket. Each connection
// handles exactly one request-response cycle.
type Server struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight handlers. Serve waits for
	// them before returning.
	activeConnections sync.WaitGroup
}

// NewServer returns a Server on socketPath with the bridge actions
// registered against service.
func NewServer(socketPath string, service *cas.Service, logger *slog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
	}
	s.Handle(ActionLoad, loadAction(service))
	s.Handle(ActionSave, saveAction(service))
	s.Handle(ActionPutValue, putValueAction(service))
	s.Handle(ActionGetValue, getValueAction(service))
	s.Handle(ActionStatus, statusAction(service))
	return s
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Handle registers a handler for action. Panics on duplicates.
func (s *Server) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("casrpc.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve accepts connections until ctx is cancelled, then waits for
// active handlers to complete.
//
// The socket directory is created if missing and any stale socket file
// is removed before listening. The socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || netutil.IsExpectedCloseError(err) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long the client has to send its request. Saves
// can carry large artifacts, but over a local socket even the largest
// request arrives well inside this.
const readTimeout = 30 * time.Second

const writeTimeout = 10 * time.Second

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting, so no framing is needed.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, MaxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err), "")
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err), "")
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action", "")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action), "")
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		s.writeResponse(conn, Response{
			OK:    false,
			Error: cacheerr.Describe(err),
			Kind:  string(cacheerr.KindOf(err)),
		}, result)
		return
	}

	s.writeResponse(conn, Response{OK: true}, result)
}

func (s *Server) writeError(conn net.Conn, message, kind string) {
	s.writeResponse(conn, Response{OK: false, Error: message, Kind: kind}, nil)
}

// writeResponse marshals result into response.Data (when non-nil) and
// writes the envelope. Write failures are logged at debug: the
// connection is closing regardless.
func (s *Server) writeResponse(conn net.Conn, response Response, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			response = Response{OK: false, Error: fmt.Sprintf("internal: marshaling response: %v", err)}
		} else {
			response.Data = data
		}
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// decode unmarshals raw into a request struct, classifying failures
// as protocol errors.
func decode(raw []byte, request any) error {
	if err := codec.Unmarshal(raw, request); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func loadAction(service *cas.Service) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var request loadRequest
		if err := decode(raw, &request); err != nil {
			return nil, err
		}
		if request.ID == "" {
			return nil, errors.New("missing required field: id")
		}
		result := service.Load(ctx, request.ID)
		switch {
		case result.Err != nil:
			return LoadResponse{Outcome: OutcomeError}, result.Err
		case result.NotFound:
			return LoadResponse{Outcome: OutcomeNotFound}, nil
		}
		return LoadResponse{Outcome: OutcomeSuccess, Data: result.Data}, nil
	}
}

func saveAction(service *cas.Service) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var request saveRequest
		if err := decode(raw, &request); err != nil {
			return nil, err
		}
		result := service.Save(ctx, request.Data)
		if result.Err != nil {
			return SaveResponse{Outcome: OutcomeError}, result.Err
		}
		return SaveResponse{Outcome: OutcomeSuccess, ID: result.ID}, nil
	}
}

func putValueAction(service *cas.Service) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var request putValueRequest
		if err := decode(raw, &request); err != nil {
			return nil, err
		}
		if len(request.Key) == 0 {
			return nil, errors.New("missing required field: key")
		}
		result := service.PutValue(ctx, request.Key, request.Entries)
		if result.Err != nil {
			return PutValueResponse{Outcome: OutcomeError}, result.Err
		}
		return PutValueResponse{Outcome: OutcomeSuccess}, nil
	}
}

func getValueAction(service *cas.Service) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var request getValueRequest
		if err := decode(raw, &request); err != nil {
			return nil, err
		}
		if len(request.Key) == 0 {
			return nil, errors.New("missing required field: key")
		}
		result := service.GetValue(ctx, request.Key)
		switch {
		case result.Err != nil:
			return GetValueResponse{Outcome: OutcomeError}, result.Err
		case result.KeyNotFound:
			return GetValueResponse{Outcome: OutcomeKeyNotFound}, nil
		}
		return GetValueResponse{Outcome: OutcomeSuccess, Entries: result.Entries}, nil
	}
}

func statusAction(service *cas.Service) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		status := service.Status(ctx)
		return StatusResponse{
			Version:       version.Short(),
			ServerURL:     status.ServerURL,
			FullHandle:    status.FullHandle,
			Endpoint:      status.Endpoint,
			EndpointError: status.EndpointError,
			TokenKind:     status.TokenKind,
			TokenExpiry:   status.TokenExpiry,
		}, nil
	}
}
