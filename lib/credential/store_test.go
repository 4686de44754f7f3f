// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"os"
	"path/filepath"
	"testing"
)

const serverURL = "https://cache.example.com"

func TestSaveReadDelete(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	want := Credentials{AccessToken: "access", RefreshToken: "refresh"}
	if err := store.Save(serverURL, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Read(serverURL)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("Read = %+v, want %+v", got, want)
	}

	if err := store.Delete(serverURL); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = store.Read(serverURL)
	if err != nil {
		t.Fatalf("Read after Delete: %v", err)
	}
	if got != nil {
		t.Errorf("Read after Delete = %+v, want nil", got)
	}
}

func TestRecordsAreKeyedByHost(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	if err := store.Save("https://cache.example.com/api", Credentials{LegacyToken: "legacy"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Read("https://cache.example.com/other/path")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil || got.LegacyToken != "legacy" {
		t.Errorf("Read with same host = %+v, want legacy token", got)
	}

	other, err := store.Read("https://cache.example.org")
	if err != nil {
		t.Fatalf("Read other host: %v", err)
	}
	if other != nil {
		t.Errorf("Read other host = %+v, want nil", other)
	}
}

func TestSaveWritesPrivateFile(t *testing.T) {
	configDir := t.TempDir()
	store := NewStore(configDir, nil)
	if err := store.Save("http://localhost:8080", Credentials{AccessToken: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(configDir, "credentials", "localhost_8080.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%s): %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}
}

func TestReadUndecodableIsAbsent(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	path, err := store.Path(serverURL)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(serverURL)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != nil {
		t.Errorf("Read = %+v, want nil", got)
	}
}

func TestDeleteMissingSucceeds(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if err := store.Delete(serverURL); err != nil {
		t.Errorf("Delete of missing record: %v", err)
	}
}

func TestInvalidServerURL(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	if _, err := store.Read("not a url"); err == nil {
		t.Error("Read with hostless URL should fail")
	}
}
