// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/bureau-foundation/casproxy/lib/auth"
	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/clock"
	"github.com/bureau-foundation/casproxy/lib/compress"
	"github.com/bureau-foundation/casproxy/lib/metadata"
	"github.com/bureau-foundation/casproxy/lib/remote"
)

// Endpoints resolves the cache endpoint. Implemented by
// *endpoint.Store.
type Endpoints interface {
	CacheURL(ctx context.Context, serverURL, accountHandle string) (*url.URL, error)
}

// Tokens resolves the bearer token. Implemented by *auth.Controller.
type Tokens interface {
	Token(ctx context.Context, serverURL string) (*auth.Token, error)
}

// Remote is the subset of *remote.Client the bridge uses.
type Remote interface {
	LoadCAS(ctx context.Context, target remote.Target, id string) ([]byte, error)
	CASExists(ctx context.Context, target remote.Target, id string) (bool, error)
	SaveCAS(ctx context.Context, target remote.Target, id string, payload []byte) error
	PutValue(ctx context.Context, target remote.Target, casID string, entries remote.KeyValueEntries) error
	GetValue(ctx context.Context, target remote.Target, casID string) (remote.KeyValueEntries, error)
}

// Config holds the Service's collaborators. All fields except Metadata,
// Clock, and Logger are required.
type Config struct {
	ServerURL  string
	Handle     remote.FullHandle
	Endpoints  Endpoints
	Tokens     Tokens
	Remote     Remote
	Compressor compress.Compressor

	// Metadata receives per-transfer bookkeeping. Nil disables it.
	Metadata *metadata.Store

	Clock  clock.Clock
	Logger *slog.Logger
}

// Service implements Load, Save, PutValue, and GetValue. Safe for
// concurrent use.
type Service struct {
	serverURL  string
	handle     remote.FullHandle
	endpoints  Endpoints
	tokens     Tokens
	remote     Remote
	compressor compress.Compressor
	metadata   *metadata.Store
	clock      clock.Clock
	logger     *slog.Logger
}

// NewService validates config and returns a Service.
func NewService(config Config) (*Service, error) {
	switch {
	case config.ServerURL == "":
		return nil, errors.New("cas: ServerURL is required")
	case config.Handle.Account == "" || config.Handle.Project == "":
		return nil, errors.New("cas: Handle is required")
	case config.Endpoints == nil:
		return nil, errors.New("cas: Endpoints is required")
	case config.Tokens == nil:
		return nil, errors.New("cas: Tokens is required")
	case config.Remote == nil:
		return nil, errors.New("cas: Remote is required")
	case config.Compressor == nil:
		return nil, errors.New("cas: Compressor is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		serverURL:  config.ServerURL,
		handle:     config.Handle,
		endpoints:  config.Endpoints,
		tokens:     config.Tokens,
		remote:     config.Remote,
		compressor: config.Compressor,
		metadata:   config.Metadata,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// Handle returns the full handle the Service is scoped to.
func (s *Service) Handle() remote.FullHandle { return s.handle }

// LoadResult is the outcome of Load. Exactly one of Data (possibly
// empty), NotFound, or Err is meaningful.
type LoadResult struct {
	Data     []byte
	NotFound bool
	Err      error
}

// SaveResult is the outcome of Save.
type SaveResult struct {
	ID  string
	Err error
}

// PutResult is the outcome of PutValue.
type PutResult struct {
	Err error
}

// GetResult is the outcome of GetValue.
type GetResult struct {
	Entries     map[string][]byte
	KeyNotFound bool
	Err         error
}

// target resolves the endpoint and token for one call.
func (s *Service) target(ctx context.Context) (remote.Target, error) {
	endpoint, err := s.endpoints.CacheURL(ctx, s.serverURL, s.handle.Account)
	if err != nil {
		return remote.Target{}, err
	}
	token, err := s.tokens.Token(ctx, s.serverURL)
	if err != nil {
		return remote.Target{}, err
	}
	target := remote.Target{Endpoint: endpoint, Handle: s.handle}
	if token != nil {
		target.Token = token.Value()
	}
	return target, nil
}

// Load fetches and decompresses the blob stored under id.
func (s *Service) Load(ctx context.Context, id string) LoadResult {
	target, err := s.target(ctx)
	if err != nil {
		return LoadResult{Err: s.failure("load", id, err)}
	}

	start := s.clock.Now()
	payload, err := s.remote.LoadCAS(ctx, target, id)
	if errors.Is(err, cacheerr.ErrNotFound) {
		s.logger.Debug("cache miss", "content_id", id)
		return LoadResult{NotFound: true}
	}
	if err != nil {
		return LoadResult{Err: s.failure("load", id, err)}
	}
	elapsed := s.clock.Since(start)

	data, err := s.compressor.Decompress(payload)
	if err != nil {
		return LoadResult{Err: s.failure("load", id, cacheerr.Wrap(cacheerr.KindUnknown, fmt.Errorf("decompressing: %w", err)))}
	}

	s.recordCAS(id, metadata.Entry{
		Size:           int64(len(data)),
		Duration:       metadata.Milliseconds(elapsed),
		CompressedSize: int64(len(payload)),
	})
	return LoadResult{Data: data}
}

// Save compresses and uploads data under its content id. A blob the
// endpoint already holds is not uploaded again.
func (s *Service) Save(ctx context.Context, data []byte) SaveResult {
	id := ContentID(data)

	payload, err := s.compressor.Compress(data)
	if err != nil {
		return SaveResult{Err: s.failure("save", id, cacheerr.Wrap(cacheerr.KindUnknown, fmt.Errorf("compressing: %w", err)))}
	}

	target, err := s.target(ctx)
	if err != nil {
		return SaveResult{Err: s.failure("save", id, err)}
	}

	start := s.clock.Now()
	exists, err := s.remote.CASExists(ctx, target, id)
	if err != nil {
		s.logger.Debug("existence check failed, uploading", "content_id", id, "error", err)
	}
	if exists {
		s.logger.Debug("blob already cached, skipping upload", "content_id", id)
	} else if err := s.remote.SaveCAS(ctx, target, id, payload); err != nil {
		return SaveResult{Err: s.failure("save", id, err)}
	}

	s.recordCAS(id, metadata.Entry{
		Size:           int64(len(data)),
		Duration:       metadata.Milliseconds(s.clock.Since(start)),
		CompressedSize: int64(len(payload)),
	})
	return SaveResult{ID: id}
}

// PutValue stores entries under the id derived from key.
func (s *Service) PutValue(ctx context.Context, key []byte, entries map[string][]byte) PutResult {
	id := KeyID(key)

	encoded := make(remote.KeyValueEntries, len(entries))
	var size int64
	for name, value := range entries {
		encoded[name] = base64.StdEncoding.EncodeToString(value)
		size += int64(len(value))
	}

	target, err := s.target(ctx)
	if err != nil {
		return PutResult{Err: s.failure("put_value", id, err)}
	}

	start := s.clock.Now()
	if err := s.remote.PutValue(ctx, target, id, encoded); err != nil {
		return PutResult{Err: s.failure("put_value", id, err)}
	}

	s.recordKeyValue(id, metadata.Write, metadata.Entry{
		Size:     size,
		Duration: metadata.Milliseconds(s.clock.Since(start)),
	})
	return PutResult{}
}

// GetValue fetches the entries stored under the id derived from key.
func (s *Service) GetValue(ctx context.Context, key []byte) GetResult {
	id := KeyID(key)

	target, err := s.target(ctx)
	if err != nil {
		return GetResult{Err: s.failure("get_value", id, err)}
	}

	start := s.clock.Now()
	encoded, err := s.remote.GetValue(ctx, target, id)
	if errors.Is(err, cacheerr.ErrNotFound) {
		s.logger.Debug("key miss", "key_id", id)
		return GetResult{KeyNotFound: true}
	}
	if err != nil {
		return GetResult{Err: s.failure("get_value", id, err)}
	}
	elapsed := s.clock.Since(start)

	entries := make(map[string][]byte, len(encoded))
	var size int64
	for name, value := range encoded {
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return GetResult{Err: s.failure("get_value", id,
				cacheerr.Wrap(cacheerr.KindUnknown, fmt.Errorf("entry %q is not base64: %w", name, err)))}
		}
		entries[name] = decoded
		size += int64(len(decoded))
	}

	s.recordKeyValue(id, metadata.Read, metadata.Entry{
		Size:     size,
		Duration: metadata.Milliseconds(elapsed),
	})
	return GetResult{Entries: entries}
}

// failure logs a failed operation and returns err classified.
func (s *Service) failure(operation, id string, err error) error {
	var classified *cacheerr.Error
	if !errors.As(err, &classified) && cacheerr.KindOf(err) == cacheerr.KindUnknown {
		err = cacheerr.Wrap(cacheerr.KindUnknown, err)
	}
	s.logger.Warn("cache operation failed",
		"operation", operation,
		"id", id,
		"kind", cacheerr.KindOf(err),
		"error", err,
	)
	return err
}

func (s *Service) recordCAS(id string, entry metadata.Entry) {
	if s.metadata == nil {
		return
	}
	if err := s.metadata.StoreCAS(entry, id); err != nil {
		s.logger.Warn("recording cas metadata", "content_id", id, "error", err)
	}
}

func (s *Service) recordKeyValue(id string, operation metadata.Operation, entry metadata.Entry) {
	if s.metadata == nil {
		return
	}
	if err := s.metadata.StoreKeyValue(entry, id, operation); err != nil {
		s.logger.Warn("recording key/value metadata", "key_id", id, "operation", operation, "error", err)
	}
}

// Status describes the Service's resolved configuration.
type Status struct {
	ServerURL     string
	FullHandle    string
	Endpoint      string
	EndpointError string
	TokenKind     string
	TokenExpiry   string
}

// Status resolves the endpoint and token and reports what was found.
// Failures are reported in the result, not returned.
func (s *Service) Status(ctx context.Context) Status {
	status := Status{ServerURL: s.serverURL, FullHandle: s.handle.String()}
	if endpoint, err := s.endpoints.CacheURL(ctx, s.serverURL, s.handle.Account); err != nil {
		status.EndpointError = cacheerr.Describe(err)
	} else {
		status.Endpoint = endpoint.String()
	}
	if token, err := s.tokens.Token(ctx, s.serverURL); err == nil && token != nil {
		status.TokenKind = string(token.Kind)
		if expiry := token.ExpiresAt(); !expiry.IsZero() {
			status.TokenExpiry = expiry.UTC().Format(time.RFC3339)
		}
	}
	return status
}
