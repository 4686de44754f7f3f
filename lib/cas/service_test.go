// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cas

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/bureau-foundation/casproxy/lib/auth"
	"github.com/bureau-foundation/casproxy/lib/cacheerr"
	"github.com/bureau-foundation/casproxy/lib/compress"
	"github.com/bureau-foundation/casproxy/lib/metadata"
	"github.com/bureau-foundation/casproxy/lib/remote"
	"github.com/bureau-foundation/casproxy/lib/remote/remotetest"
)

type fixedEndpoints struct {
	endpoint *url.URL
	err      error
}

func (f fixedEndpoints) CacheURL(context.Context, string, string) (*url.URL, error) {
	return f.endpoint, f.err
}

type fixedTokens struct {
	token *auth.Token
	err   error
}

func (f fixedTokens) Token(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

type fixture struct {
	service  *Service
	server   *remotetest.Server
	metadata *metadata.Store
}

func newFixture(t *testing.T, modify func(*Config)) *fixture {
	t.Helper()
	server := remotetest.NewServer(t)
	endpoint, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	codec, err := compress.New(compress.Zstd)
	if err != nil {
		t.Fatal(err)
	}
	store := metadata.NewStore(t.TempDir(), nil)

	config := Config{
		ServerURL:  server.URL,
		Handle:     remote.FullHandle{Account: "acme", Project: "ios-app"},
		Endpoints:  fixedEndpoints{endpoint: endpoint},
		Tokens:     fixedTokens{token: &auth.Token{Kind: auth.KindProject, Secret: "secret"}},
		Remote:     remote.NewClient(remote.Config{}),
		Compressor: codec,
		Metadata:   store,
	}
	if modify != nil {
		modify(&config)
	}
	service, err := NewService(config)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{service: service, server: server, metadata: store}
}

func TestSaveIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	data := []byte(strings.Repeat("object file contents ", 500))

	first := f.service.Save(context.Background(), data)
	second := f.service.Save(context.Background(), data)
	if first.Err != nil || second.Err != nil {
		t.Fatalf("Save errors: %v, %v", first.Err, second.Err)
	}
	if first.ID != second.ID {
		t.Errorf("Save ids differ: %s vs %s", first.ID, second.ID)
	}
	if first.ID != ContentID(data) {
		t.Errorf("Save id = %s, want ContentID(data)", first.ID)
	}
}

func TestSaveSkipsUploadOfCachedBlob(t *testing.T) {
	f := newFixture(t, nil)
	data := []byte(strings.Repeat("linked binary ", 200))

	for range 2 {
		if result := f.service.Save(context.Background(), data); result.Err != nil {
			t.Fatalf("Save: %v", result.Err)
		}
	}

	var uploads, checks int
	for _, request := range f.server.Requests("/api/cache/cas/") {
		switch request.Method {
		case http.MethodPost:
			uploads++
		case http.MethodHead:
			checks++
		}
	}
	if uploads != 1 || checks != 2 {
		t.Errorf("uploads = %d, existence checks = %d; want 1 and 2", uploads, checks)
	}
	if entry, err := f.metadata.CAS(ContentID(data)); err != nil || entry == nil || entry.Size != int64(len(data)) {
		t.Errorf("metadata after skipped upload = %+v, %v", entry, err)
	}
}

func TestSaveUploadsWhenExistenceCheckFails(t *testing.T) {
	f := newFixture(t, nil)
	f.server.FailRoute(remotetest.RouteExists, http.StatusInternalServerError)
	data := []byte("object")

	result := f.service.Save(context.Background(), data)
	if result.Err != nil {
		t.Fatalf("Save: %v", result.Err)
	}
	if _, ok := f.server.Blob(result.ID); !ok {
		t.Error("blob was not uploaded after a failed existence check")
	}
}

func TestSaveThenLoad(t *testing.T) {
	f := newFixture(t, nil)
	data := []byte(strings.Repeat("swiftmodule ", 1000))

	saved := f.service.Save(context.Background(), data)
	if saved.Err != nil {
		t.Fatalf("Save: %v", saved.Err)
	}

	stored, ok := f.server.Blob(saved.ID)
	if !ok {
		t.Fatal("blob was not uploaded")
	}
	if len(stored) >= len(data) {
		t.Errorf("uploaded %d bytes for %d bytes of repetitive input; expected compression", len(stored), len(data))
	}

	loaded := f.service.Load(context.Background(), saved.ID)
	if loaded.Err != nil || loaded.NotFound {
		t.Fatalf("Load = %+v", loaded)
	}
	if !bytes.Equal(loaded.Data, data) {
		t.Error("Load returned different bytes")
	}
}

func TestSaveEmptyPayload(t *testing.T) {
	f := newFixture(t, nil)
	saved := f.service.Save(context.Background(), nil)
	if saved.Err != nil {
		t.Fatalf("Save: %v", saved.Err)
	}
	loaded := f.service.Load(context.Background(), saved.ID)
	if loaded.Err != nil || loaded.NotFound || len(loaded.Data) != 0 {
		t.Errorf("Load(empty) = %+v", loaded)
	}
}

func TestSaveTagsRequestWithHandleAndToken(t *testing.T) {
	f := newFixture(t, nil)
	f.server.RequireToken("secret")

	if result := f.service.Save(context.Background(), []byte("x")); result.Err != nil {
		t.Fatalf("Save: %v", result.Err)
	}
	request := f.server.Requests("/api/cache/cas/")[0]
	if request.Query["account_handle"] != "acme" || request.Query["project_handle"] != "ios-app" {
		t.Errorf("query = %v", request.Query)
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	result := f.service.Load(context.Background(), ContentID([]byte("never saved")))
	if !result.NotFound || result.Err != nil {
		t.Errorf("Load = %+v, want NotFound", result)
	}
}

func TestAuthorizationFailuresAreDistinguishable(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, cacheerr.ErrUnauthorized},
		{http.StatusForbidden, cacheerr.ErrForbidden},
		{http.StatusPaymentRequired, cacheerr.ErrPaymentRequired},
	}
	for _, test := range tests {
		t.Run(http.StatusText(test.status), func(t *testing.T) {
			f := newFixture(t, nil)
			f.server.FailRoute(remotetest.RouteLoad, test.status)
			f.server.FailRoute(remotetest.RouteGetValue, test.status)

			load := f.service.Load(context.Background(), "ABC")
			if load.NotFound || !errors.Is(load.Err, test.want) {
				t.Errorf("Load = %+v, want %v", load, test.want)
			}
			get := f.service.GetValue(context.Background(), []byte("key"))
			if get.KeyNotFound || !errors.Is(get.Err, test.want) {
				t.Errorf("GetValue = %+v, want %v", get, test.want)
			}
		})
	}
}

func TestPutThenGetValue(t *testing.T) {
	f := newFixture(t, nil)
	key := []byte{0x00, 0x01, 'c', 'a', 'c', 'h', 'e', 0xff}
	entries := map[string][]byte{
		"value":  []byte("compile job output"),
		"binary": {0x00, 0xfe, 0xff},
	}

	if result := f.service.PutValue(context.Background(), key, entries); result.Err != nil {
		t.Fatalf("PutValue: %v", result.Err)
	}

	stored, ok := f.server.Value(KeyID(key))
	if !ok {
		t.Fatal("entries were not stored under KeyID(key)")
	}
	if stored["value"] != base64.StdEncoding.EncodeToString(entries["value"]) {
		t.Errorf("stored value = %q, want base64", stored["value"])
	}

	got := f.service.GetValue(context.Background(), key)
	if got.Err != nil || got.KeyNotFound {
		t.Fatalf("GetValue = %+v", got)
	}
	for name, want := range entries {
		if !bytes.Equal(got.Entries[name], want) {
			t.Errorf("entry %q = %v, want %v", name, got.Entries[name], want)
		}
	}
}

func TestGetValueMissingIsKeyNotFound(t *testing.T) {
	f := newFixture(t, nil)
	result := f.service.GetValue(context.Background(), []byte("unknown"))
	if !result.KeyNotFound || result.Err != nil {
		t.Errorf("GetValue = %+v, want KeyNotFound", result)
	}
}

func TestMetadataIsRecorded(t *testing.T) {
	f := newFixture(t, nil)
	data := []byte(strings.Repeat("a", 4096))

	saved := f.service.Save(context.Background(), data)
	if saved.Err != nil {
		t.Fatalf("Save: %v", saved.Err)
	}
	entry, err := f.metadata.CAS(saved.ID)
	if err != nil || entry == nil {
		t.Fatalf("metadata.CAS = %+v, %v", entry, err)
	}
	if entry.Size != 4096 || entry.CompressedSize == 0 || entry.CompressedSize >= 4096 {
		t.Errorf("metadata = %+v, want size 4096 and smaller compressed size", entry)
	}

	key := []byte("key")
	if result := f.service.PutValue(context.Background(), key, map[string][]byte{"v": []byte("12345")}); result.Err != nil {
		t.Fatalf("PutValue: %v", result.Err)
	}
	if result := f.service.GetValue(context.Background(), key); result.Err != nil {
		t.Fatalf("GetValue: %v", result.Err)
	}
	for _, operation := range []metadata.Operation{metadata.Write, metadata.Read} {
		entry, err := f.metadata.KeyValue(KeyID(key), operation)
		if err != nil || entry == nil || entry.Size != 5 {
			t.Errorf("metadata.KeyValue(%s) = %+v, %v; want size 5", operation, entry, err)
		}
	}
}

func TestEndpointFailureSurfaces(t *testing.T) {
	f := newFixture(t, func(config *Config) {
		config.Endpoints = fixedEndpoints{err: cacheerr.New(cacheerr.KindNoEndpointsAvailable, "none")}
	})
	result := f.service.Save(context.Background(), []byte("x"))
	if !errors.Is(result.Err, cacheerr.ErrNoEndpointsAvailable) {
		t.Errorf("Save error = %v, want ErrNoEndpointsAvailable", result.Err)
	}
	if len(f.server.Requests("/api/cache/cas/")) != 0 {
		t.Error("Save reached the server without an endpoint")
	}
}

func TestTokenFailureSurfaces(t *testing.T) {
	f := newFixture(t, func(config *Config) {
		config.Tokens = fixedTokens{err: cacheerr.New(cacheerr.KindUnauthorized, "refresh failed")}
	})
	result := f.service.Load(context.Background(), "ABC")
	if !errors.Is(result.Err, cacheerr.ErrUnauthorized) {
		t.Errorf("Load error = %v, want ErrUnauthorized", result.Err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	status := f.service.Status(context.Background())
	if status.FullHandle != "acme/ios-app" || status.Endpoint != f.server.URL || status.TokenKind != "project" {
		t.Errorf("Status = %+v", status)
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Error("NewService with empty config should fail")
	}
}
