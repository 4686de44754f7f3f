// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/casproxy/cmd/casproxy/cli"
	"github.com/bureau-foundation/casproxy/lib/cas"
	"github.com/bureau-foundation/casproxy/lib/casrpc"
	"github.com/bureau-foundation/casproxy/lib/config"
	"github.com/bureau-foundation/casproxy/lib/remote"
	"github.com/bureau-foundation/casproxy/lib/remote/remotetest"
	"github.com/bureau-foundation/casproxy/lib/testutil"
)

// isolate points every directory and environment variable the
// commands read at test-owned values. Returns the state dir.
func isolate(t *testing.T) string {
	t.Helper()
	_, stateDir := testutil.HomeDirs(t)
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvCI, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvDeprecatedToken, "")
	return filepath.Join(stateDir, "casproxy")
}

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the command tree in-process with stdin as input.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	inputPath := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(inputPath, []byte(stdin), 0o600); err != nil {
		t.Fatal(err)
	}
	input, err := os.Open(inputPath)
	if err != nil {
		t.Fatal(err)
	}
	defer input.Close()

	var stdout, stderr bytes.Buffer
	err = Root(IO{In: input, Out: &stdout, Err: &stderr}).Execute(context.Background(), args)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func testJWT(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".signature"
}

func userToken(subject string, expires time.Time) string {
	return testJWT(fmt.Sprintf(`{"exp":%d,"sub":%q,"type":"user"}`, expires.Unix(), subject))
}

func exitCode(err error) int {
	var exit *cli.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return -1
}

func TestVersion(t *testing.T) {
	got := execute(t, "", "version")
	if got.err != nil {
		t.Fatalf("version: %v", got.err)
	}
	if !strings.HasPrefix(got.stdout, "casproxy ") {
		t.Errorf("version output = %q", got.stdout)
	}
}

func TestSocketPath(t *testing.T) {
	stateDir := isolate(t)
	got := execute(t, "", "socket-path", "--server-url", "https://cache.example.com", "--full-handle", "acme/ios-app")
	if got.err != nil {
		t.Fatalf("socket-path: %v", got.err)
	}
	want := filepath.Join(stateDir, "sockets", "acme_ios-app.sock") + "\n"
	if got.stdout != want {
		t.Errorf("socket-path = %q, want %q", got.stdout, want)
	}
}

func TestSocketPathRequiresHandle(t *testing.T) {
	isolate(t)
	got := execute(t, "", "socket-path", "--server-url", "https://cache.example.com")
	var toolErr *cli.ToolError
	if !errors.As(got.err, &toolErr) || toolErr.Category != cli.CategoryValidation {
		t.Errorf("socket-path without handle = %v, want a validation error", got.err)
	}
}

func TestMissingServerURLHasHint(t *testing.T) {
	isolate(t)
	got := execute(t, "", "auth", "whoami")
	var toolErr *cli.ToolError
	if !errors.As(got.err, &toolErr) || toolErr.Hint == "" {
		t.Errorf("whoami without server = %v, want a validation error with a hint", got.err)
	}
}

func TestConfigFile(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "custom-state")
	isolate(t)
	path := filepath.Join(t.TempDir(), "casproxy.yaml")
	content := fmt.Sprintf("server_url: https://cache.example.com\nfull_handle: acme/web\npaths:\n  state_dir: %s\n", stateDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got := execute(t, "", "socket-path", "--config", path)
	if got.err != nil {
		t.Fatalf("socket-path: %v", got.err)
	}
	if want := filepath.Join(stateDir, "sockets", "acme_web.sock") + "\n"; got.stdout != want {
		t.Errorf("socket-path = %q, want %q", got.stdout, want)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	isolate(t)
	server := "https://cache.example.com"
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	access := userToken("ada", expires)
	refresh := userToken("ada", expires.Add(24*time.Hour))

	login := execute(t, access+"\n"+refresh+"\n", "auth", "login", "--server-url", server)
	if login.err != nil {
		t.Fatalf("login: %v", login.err)
	}
	if !strings.Contains(login.stdout, "Logged in to "+server) {
		t.Errorf("login output = %q", login.stdout)
	}

	who := execute(t, "", "auth", "whoami", "--server-url", server)
	if who.err != nil {
		t.Fatalf("whoami: %v", who.err)
	}
	var identity whoami
	if err := json.Unmarshal([]byte(who.stdout), &identity); err != nil {
		t.Fatalf("decoding whoami output %q: %v", who.stdout, err)
	}
	if identity.Kind != "user" || identity.Subject != "ada" {
		t.Errorf("whoami = %+v, want user ada", identity)
	}
	if identity.ExpiresAt != expires.Format(time.RFC3339) {
		t.Errorf("ExpiresAt = %q, want %q", identity.ExpiresAt, expires.Format(time.RFC3339))
	}

	if logout := execute(t, "", "auth", "logout", "--server-url", server); logout.err != nil {
		t.Fatalf("logout: %v", logout.err)
	}
	after := execute(t, "", "auth", "whoami", "--server-url", server)
	if code := exitCode(after.err); code != 1 {
		t.Errorf("whoami after logout exit code = %d (%v), want 1", code, after.err)
	}
	if !strings.Contains(after.stderr, "Not logged in") {
		t.Errorf("whoami after logout stderr = %q", after.stderr)
	}
}

func TestLoginRejectsMalformedTokens(t *testing.T) {
	isolate(t)
	got := execute(t, "not-a-jwt\nalso-not\n", "auth", "login", "--server-url", "https://cache.example.com")
	var toolErr *cli.ToolError
	if !errors.As(got.err, &toolErr) || toolErr.Category != cli.CategoryForbidden {
		t.Errorf("login with malformed tokens = %v, want a forbidden error", got.err)
	}
}

func TestRefreshToken(t *testing.T) {
	stateDir := isolate(t)
	fake := remotetest.NewServer(t)
	expires := time.Now().Add(time.Hour)
	fresh := remotetest.Pair{
		AccessToken:  userToken("ada", expires.Add(time.Hour)),
		RefreshToken: userToken("ada", expires.Add(48*time.Hour)),
	}
	var refreshed []string
	var mu sync.Mutex
	fake.OnRefresh(func(refreshToken string) (int, remotetest.Pair) {
		mu.Lock()
		defer mu.Unlock()
		refreshed = append(refreshed, refreshToken)
		return http.StatusOK, fresh
	})

	oldRefresh := userToken("ada", expires.Add(24*time.Hour))
	if login := execute(t, userToken("ada", expires)+"\n"+oldRefresh+"\n", "auth", "login", "--server-url", fake.URL); login.err != nil {
		t.Fatalf("login: %v", login.err)
	}

	got := execute(t, "", "auth", "refresh-token", "--server-url", fake.URL)
	if got.err != nil {
		t.Fatalf("refresh-token: %v", got.err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(refreshed) != 1 || refreshed[0] != oldRefresh {
		t.Errorf("refresh calls = %v, want one with the stored refresh token", refreshed)
	}

	locks, err := os.ReadDir(filepath.Join(stateDir, "auth-locks"))
	if err != nil || len(locks) != 1 {
		t.Errorf("auth-locks entries = %v, %v; want one lock file", locks, err)
	}
}

func TestMetadataShowMissing(t *testing.T) {
	isolate(t)
	got := execute(t, "", "metadata", "show", cas.ContentID([]byte("never")))
	var toolErr *cli.ToolError
	if !errors.As(got.err, &toolErr) || toolErr.Category != cli.CategoryNotFound {
		t.Errorf("metadata show = %v, want not found", got.err)
	}
}

func TestMetadataShowArguments(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{
		{"metadata", "show"},
		{"metadata", "show", "id", "--key", "k"},
		{"metadata", "show", "--key", "k", "--operation", "delete"},
	} {
		var toolErr *cli.ToolError
		if got := execute(t, "", args...); !errors.As(got.err, &toolErr) || toolErr.Category != cli.CategoryValidation {
			t.Errorf("%v = %v, want a validation error", args, got.err)
		}
	}
}

// startServe runs "casproxy serve" under CI against a fake remote and
// returns the socket path once it is listening.
func startServe(t *testing.T, fake *remotetest.Server) string {
	t.Helper()
	t.Setenv(config.EnvCI, "1")
	t.Setenv(config.EnvToken, "project-secret")
	fake.RequireToken("project-secret")

	socketPath := casrpc.SocketPath(filepath.Join(testutil.SocketDir(t), "state"), remote.FullHandle{Account: "acme", Project: "ios-app"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		root := Root(IO{In: os.Stdin, Out: io.Discard, Err: io.Discard})
		done <- root.Execute(ctx, []string{
			"serve",
			"--server-url", fake.URL,
			"--full-handle", "acme/ios-app",
			"--socket", socketPath,
		})
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 10*time.Second, "serve did not stop"); err != nil {
			t.Errorf("serve: %v", err)
		}
	})

	for {
		if _, err := os.Stat(socketPath); err == nil {
			return socketPath
		}
		select {
		case err := <-done:
			t.Fatalf("serve exited early: %v", err)
		default:
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear", socketPath)
		}
		runtime.Gosched()
	}
}

func TestServeEndToEnd(t *testing.T) {
	isolate(t)
	fake := remotetest.NewServer(t)
	socketPath := startServe(t, fake)
	artifact := strings.Repeat("compiled module ", 256)

	saved := execute(t, artifact, "cas", "save", "-", "--socket", socketPath)
	if saved.err != nil {
		t.Fatalf("cas save: %v", saved.err)
	}
	id := strings.TrimSpace(saved.stdout)
	if id != cas.ContentID([]byte(artifact)) {
		t.Errorf("cas save id = %s, want ContentID of the input", id)
	}
	if _, ok := fake.Blob(id); !ok {
		t.Error("artifact was not uploaded")
	}

	output := filepath.Join(t.TempDir(), "artifact.o")
	if loaded := execute(t, "", "cas", "load", id, "--socket", socketPath, "-o", output); loaded.err != nil {
		t.Fatalf("cas load: %v", loaded.err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != artifact {
		t.Errorf("cas load wrote %d bytes, want %d", len(data), len(artifact))
	}

	status := execute(t, "", "cas", "status", "--socket", socketPath)
	if status.err != nil {
		t.Fatalf("cas status: %v", status.err)
	}
	var described casrpc.StatusResponse
	if err := json.Unmarshal([]byte(status.stdout), &described); err != nil {
		t.Fatalf("decoding status %q: %v", status.stdout, err)
	}
	if described.FullHandle != "acme/ios-app" || described.TokenKind != "project" {
		t.Errorf("status = %+v", described)
	}
	if described.Endpoint != fake.URL {
		t.Errorf("status endpoint = %q, want %q", described.Endpoint, fake.URL)
	}

	shown := execute(t, "", "metadata", "show", id)
	if shown.err != nil {
		t.Fatalf("metadata show: %v", shown.err)
	}
	var entry struct {
		Size int64 `json:"size"`
	}
	if err := json.Unmarshal([]byte(shown.stdout), &entry); err != nil {
		t.Fatalf("decoding metadata %q: %v", shown.stdout, err)
	}
	if entry.Size != int64(len(artifact)) {
		t.Errorf("metadata size = %d, want %d", entry.Size, len(artifact))
	}
}

func TestCasLoadMissingExitsOne(t *testing.T) {
	isolate(t)
	fake := remotetest.NewServer(t)
	socketPath := startServe(t, fake)

	got := execute(t, "", "cas", "load", cas.ContentID([]byte("absent")), "--socket", socketPath)
	if code := exitCode(got.err); code != 1 {
		t.Errorf("cas load exit code = %d (%v), want 1", code, got.err)
	}
	if !strings.Contains(got.stderr, "not in the cache") {
		t.Errorf("cas load stderr = %q", got.stderr)
	}
}

func TestCasRejectedTokenIsForbidden(t *testing.T) {
	isolate(t)
	fake := remotetest.NewServer(t)
	socketPath := startServe(t, fake)
	fake.FailRoute(remotetest.RouteSave, http.StatusForbidden)

	got := execute(t, "artifact", "cas", "save", "-", "--socket", socketPath)
	var toolErr *cli.ToolError
	if !errors.As(got.err, &toolErr) || toolErr.Category != cli.CategoryForbidden {
		t.Errorf("cas save = %v, want a forbidden error", got.err)
	}
}
