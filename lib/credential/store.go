// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/casproxy/lib/atomicfile"
	"github.com/bureau-foundation/casproxy/lib/filename"
)

// Credentials is the stored authentication material for one host.
// Any field may be empty.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	LegacyToken  string `json:"legacy_token,omitempty"`
}

// Empty reports whether no token is present.
func (c *Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.LegacyToken == ""
}

// Store reads and writes credential records under a directory.
type Store struct {
	directory string
	logger    *slog.Logger
}

// NewStore returns a Store rooted at <configDir>/credentials. The
// directory is created on first Save.
func NewStore(configDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		directory: filepath.Join(configDir, "credentials"),
		logger:    logger,
	}
}

// Path returns the record path for serverURL.
func (s *Store) Path(serverURL string) (string, error) {
	host, err := hostKey(serverURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.directory, host+".json"), nil
}

// Save replaces the record for serverURL.
func (s *Store) Save(serverURL string, credentials Credentials) error {
	path, err := s.Path(serverURL)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("saving credentials for %s: %w", serverURL, err)
	}
	return nil
}

// Read returns the record for serverURL, or nil if none exists or the
// stored file cannot be decoded.
func (s *Store) Read(serverURL string) (*Credentials, error) {
	path, err := s.Path(serverURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials for %s: %w", serverURL, err)
	}

	var credentials Credentials
	if err := json.Unmarshal(data, &credentials); err != nil {
		s.logger.Warn("ignoring undecodable credentials file",
			"path", path,
			"error", err,
		)
		return nil, nil
	}
	if credentials.Empty() {
		return nil, nil
	}
	return &credentials, nil
}

// Delete removes the record for serverURL. Deleting a missing record
// succeeds.
func (s *Store) Delete(serverURL string) error {
	path, err := s.Path(serverURL)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting credentials for %s: %w", serverURL, err)
	}
	return nil
}

// hostKey reduces a server URL to the file name component shared by
// every URL on the same host and port.
func hostKey(serverURL string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parsing server URL %q: %w", serverURL, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", serverURL)
	}
	return filename.Sanitize(parsed.Host), nil
}
