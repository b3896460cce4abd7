package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/news"
)

var articlePage = `<html><head>
<title>Big news</title>
<meta property="og:image" content="/images/cover.png">
</head><body>
<nav>Menu Home About</nav>
<article>
<h1>Big news</h1>
<p>` + strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20) + `</p>
<p>` + strings.Repeat("Another paragraph with enough words to count. ", 20) + `</p>
</article>
</body></html>`

func TestEnrichFillsContentAndImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	f := NewContentFetcher(5*time.Second, "", 200)
	a := &news.Article{Title: "Big news", Link: srv.URL + "/post/1", Content: "short"}

	if err := f.Enrich(context.Background(), a); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !strings.Contains(a.Content, "quick brown fox") {
		t.Errorf("expected readability text, got %q", a.Content)
	}
	if a.ImageURL == nil || *a.ImageURL != srv.URL+"/images/cover.png" {
		t.Errorf("expected resolved og:image, got %v", a.ImageURL)
	}
}

func TestEnrichSkipsCompleteArticles(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	img := "https://img"
	f := NewContentFetcher(5*time.Second, "", 10)
	a := &news.Article{Link: srv.URL, Content: "long enough content", ImageURL: &img}
	if err := f.Enrich(context.Background(), a); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if called {
		t.Error("complete article should not be fetched")
	}
}

func TestEnrichHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewContentFetcher(5*time.Second, "", 200)
	a := &news.Article{Link: srv.URL}
	err := f.Enrich(context.Background(), a)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
	if a.Content != "" || a.ImageURL != nil {
		t.Error("article must be unchanged on error")
	}
}
