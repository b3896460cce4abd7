package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/news"
	"github.com/TobiSchelling/itnewsbot/internal/pipeline"
)

func openTestStores(t *testing.T) *pipeline.Stores {
	t.Helper()
	cfg := &config.Config{
		Pipeline: config.Pipeline{Retention: 72 * time.Hour},
		Storage:  config.Storage{Backend: "sqlite", DataDir: t.TempDir()},
	}
	stores, err := pipeline.OpenStores(cfg)
	if err != nil {
		t.Fatalf("failed to open stores: %v", err)
	}
	t.Cleanup(func() { stores.Close() })
	return stores
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	stores := openTestStores(t)
	ctx := context.Background()
	stores.Approved.Append(ctx, news.ApprovedRecord{
		Title:      "Вышел Go 1.26",
		Summary:    "Новая версия **языка**",
		Link:       "https://go.dev/blog/go1.26",
		Source:     "Go Blog",
		Tags:       []string{"#Go"},
		ApprovedAt: time.Now().Add(-time.Hour),
	})
	stores.Watermarks.Set(ctx, "go-blog", time.Now())

	srv, err := New(stores)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Вышел Go 1.26", "<strong>языка</strong>", "#Go", "go-blog", "1h ago"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestIndexEmpty(t *testing.T) {
	srv, err := New(openTestStores(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	rec := get(t, srv, "/")
	if !strings.Contains(rec.Body.String(), "Nothing approved") {
		t.Error("expected empty state")
	}
}

func TestQueueRoute(t *testing.T) {
	stores := openTestStores(t)
	stores.Publication.Push(context.Background(), news.Publication{Title: "Queued post", Summary: "S", Link: "https://e.com/1"})

	srv, err := New(stores)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	rec := get(t, srv, "/queue")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Queued post") {
		t.Errorf("expected queued post, got %d", rec.Code)
	}
}

func TestStatusAPI(t *testing.T) {
	stores := openTestStores(t)
	ctx := context.Background()
	stores.Processing.Push(ctx, news.Article{Title: "A", Link: "https://e.com/a"}, news.Article{Title: "B", Link: "https://e.com/b"})

	srv, err := New(stores)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	rec := get(t, srv, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["status"] != "ok" || got["processing_queue"] != float64(2) || got["publication_queue"] != float64(0) {
		t.Errorf("unexpected status %v", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, err := New(openTestStores(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	srv, err := New(openTestStores(t))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
