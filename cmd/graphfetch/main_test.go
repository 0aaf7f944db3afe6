package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunUnknownCommand(t *testing.T) {
	if err := run([]string{"frobnicate"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := run(nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
}

func TestHelpTopics(t *testing.T) {
	require.NoError(t, run([]string{"help"}))
	require.NoError(t, run([]string{"help", "query"}))
	require.NoError(t, run([]string{"help", "mutate"}))
	if err := run([]string{"help", "frobnicate"}); err == nil {
		t.Fatalf("expected unknown topic error")
	}
}

func TestQueryRequiresDocument(t *testing.T) {
	err := run([]string{"query", "-endpoint.url", "http://api.test/graphql"})
	if err == nil || !strings.Contains(err.Error(), "no query document") {
		t.Fatalf("expected document error, got %v", err)
	}
}

func TestQueryRequiresURL(t *testing.T) {
	err := run([]string{"query", "-query", "{ x }"})
	if err == nil || !strings.Contains(err.Error(), "no endpoint URL") {
		t.Fatalf("expected URL error, got %v", err)
	}
}

func TestQueryAgainstServer(t *testing.T) {
	var calls atomic.Int64
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"x":1}}`))
	}))
	t.Cleanup(srv.Close)

	err := run([]string{
		"query",
		"-endpoint.url", srv.URL,
		"-endpoint.header", "Authorization: Bearer abc",
		"-query", "query A { x }",
	})
	require.NoError(t, err)
	if calls.Load() != 1 {
		t.Fatalf("calls %d", calls.Load())
	}
	if gotAuth.Load() != "Bearer abc" {
		t.Fatalf("auth header: %v", gotAuth.Load())
	}
}

func TestQueryWithConfigFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"x":1}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := filepath.Join(t.TempDir(), "graphfetch.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("url = \""+srv.URL+"\"\n"), 0644))

	require.NoError(t, run([]string{"query", "-config", cfg, "-query", "query A { x }"}))
}

func TestQueryConfigTimeoutApplied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(`{"data":{"x":1}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := filepath.Join(t.TempDir(), "graphfetch.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("url = \""+srv.URL+"\"\ntimeout = \"50ms\"\n"), 0644))

	// The config timeout expires before the server answers, so the run must
	// fail with a network error instead of waiting out the flag default.
	err := run([]string{"query", "-config", cfg, "-query", "query A { x }"})
	if err == nil || !strings.Contains(err.Error(), "returned errors") {
		t.Fatalf("config timeout ignored, got %v", err)
	}

	// An explicit flag still wins over the config value.
	require.NoError(t, run([]string{
		"query", "-config", cfg,
		"-endpoint.timeout", "5s",
		"-query", "query A { x }",
	}))
}

func TestQueryProtocolErrorsExitNonZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"boom"}]}`))
	}))
	t.Cleanup(srv.Close)

	err := run([]string{"query", "-endpoint.url", srv.URL, "-query", "query A { x }"})
	if err == nil || !strings.Contains(err.Error(), "returned errors") {
		t.Fatalf("expected failure for protocol errors, got %v", err)
	}
}

func TestMutateSingleDocumentOnly(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "a.graphql")
	require.NoError(t, os.WriteFile(f1, []byte("mutation { a }"), 0644))

	err := run([]string{
		"mutate",
		"-endpoint.url", "http://api.test/graphql",
		"-query", "mutation { b }",
		"-file", f1,
	})
	if err == nil || !strings.Contains(err.Error(), "single document") {
		t.Fatalf("expected single document error, got %v", err)
	}
}

func TestQueryInvalidVariables(t *testing.T) {
	err := run([]string{
		"query",
		"-endpoint.url", "http://api.test/graphql",
		"-query", "{ x }",
		"-variables", "not json",
	})
	if err == nil || !strings.Contains(err.Error(), "invalid -variables") {
		t.Fatalf("expected variables error, got %v", err)
	}
}
