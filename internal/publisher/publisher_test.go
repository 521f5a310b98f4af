package publisher

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConsolePublish(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConsole(&buf, 500)

	if err := c.Publish(context.Background(), "mastodon", "hello world"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if buf.String() != "hello world\n" {
		t.Fatalf("expected undecorated post, got %q", buf.String())
	}
	if c.Name() != "console" || c.SoftCharLimit() != 500 {
		t.Fatalf("unexpected Name/SoftCharLimit")
	}
}

func TestFilePublishTruncateThenAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.txt")
	f := NewFile(path, false, 4000)

	if err := f.Publish(context.Background(), "telegram", "first"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.Publish(context.Background(), "telegram", "second"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("expected undecorated posts, got %q", string(data))
	}
}

func TestMastodonPublish(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("status") != "hello" {
			t.Errorf("unexpected status field %q", r.PostForm.Get("status"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMastodon(srv.URL, "tok", "unlisted", "en", "", false, 500, 5*time.Second)
	if err := m.Publish(context.Background(), "mastodon", "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestTelegramPublish(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bot12345/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "12345", 99, 4096, 5*time.Second)
	if err := tg.Publish(context.Background(), "telegram", "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestMastodonPublishErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	m := NewMastodon(srv.URL, "bad", "unlisted", "en", "", false, 500, 5*time.Second)
	if err := m.Publish(context.Background(), "mastodon", "hello"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResolveMastodonTokenPrefersConfigured(t *testing.T) {
	t.Parallel()

	tok, err := ResolveMastodonToken("configured-token", filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("ResolveMastodonToken: %v", err)
	}
	if tok != "configured-token" {
		t.Fatalf("expected configured token, got %q", tok)
	}
}

func TestResolveMastodonTokenFallsBackToSecretsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mastodon.yaml")
	if err := os.WriteFile(path, []byte("access_token: from-secrets\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tok, err := ResolveMastodonToken("", path)
	if err != nil {
		t.Fatalf("ResolveMastodonToken: %v", err)
	}
	if tok != "from-secrets" {
		t.Fatalf("expected secrets-file token, got %q", tok)
	}
}
