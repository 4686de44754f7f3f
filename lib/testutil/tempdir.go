// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SocketDir creates a temporary directory suitable for Unix domain
// sockets and removes it when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "casproxy-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// HomeDirs sets XDG_CONFIG_HOME and XDG_STATE_HOME to fresh
// directories for the duration of the test and returns them.
func HomeDirs(t *testing.T) (configDir, stateDir string) {
	t.Helper()
	root := t.TempDir()
	configDir = filepath.Join(root, "config")
	stateDir = filepath.Join(root, "state")
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("XDG_STATE_HOME", stateDir)
	return configDir, stateDir
}
