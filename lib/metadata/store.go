// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/casproxy/lib/atomicfile"
	"github.com/bureau-foundation/casproxy/lib/filename"
)

// Entry is the metadata for one transfer.
type Entry struct {
	// Size is the uncompressed payload size in bytes.
	Size int64 `json:"size"`

	// Duration is the wall time of the remote call in milliseconds.
	Duration float64 `json:"duration"`

	// CompressedSize is the size on the wire. Zero for key/value
	// records, which are not compressed.
	CompressedSize int64 `json:"compressed_size,omitempty"`
}

// Milliseconds converts d to the unit stored in Entry.Duration.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Operation distinguishes key/value reads from writes.
type Operation string

const (
	Read  Operation = "read"
	Write Operation = "write"
)

// Store reads and writes metadata records under a state directory.
type Store struct {
	stateDir string
	logger   *slog.Logger
}

// NewStore returns a Store rooted at stateDir. Subdirectories are
// created on first write.
func NewStore(stateDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{stateDir: stateDir, logger: logger}
}

// FileName returns the record file name for id.
func FileName(id string) string {
	return filename.Sanitize(id) + ".json"
}

// CASPath returns the record path for a content id.
func (s *Store) CASPath(id string) string {
	return filepath.Join(s.stateDir, "cas", FileName(id))
}

// KeyValuePath returns the record path for a key/value operation.
func (s *Store) KeyValuePath(keyID string, operation Operation) string {
	return filepath.Join(s.stateDir, "keyvalue", string(operation)+"-"+FileName(keyID))
}

// StoreCAS records entry for content id.
func (s *Store) StoreCAS(entry Entry, id string) error {
	return s.write(s.CASPath(id), entry)
}

// CAS returns the record for content id, or nil if none is stored.
func (s *Store) CAS(id string) (*Entry, error) {
	return s.read(s.CASPath(id))
}

// StoreKeyValue records entry for a key/value operation.
func (s *Store) StoreKeyValue(entry Entry, keyID string, operation Operation) error {
	if err := operation.validate(); err != nil {
		return err
	}
	return s.write(s.KeyValuePath(keyID, operation), entry)
}

// KeyValue returns the record for a key/value operation, or nil.
func (s *Store) KeyValue(keyID string, operation Operation) (*Entry, error) {
	if err := operation.validate(); err != nil {
		return nil, err
	}
	return s.read(s.KeyValuePath(keyID, operation))
}

func (operation Operation) validate() error {
	switch operation {
	case Read, Write:
		return nil
	default:
		return fmt.Errorf("unknown key/value operation %q", string(operation))
	}
}

func (s *Store) write(path string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storing metadata: %w", err)
	}
	return nil
}

func (s *Store) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata %s: %w", path, err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("ignoring undecodable metadata file", "path", path, "error", err)
		return nil, nil
	}
	return &entry, nil
}
