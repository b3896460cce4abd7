package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/itnewsbot/internal/news"
)

const maxPageBytes = 5 << 20

// ContentFetcher fills in article text and cover images from the article page.
type ContentFetcher struct {
	client    *http.Client
	userAgent string
	minLength int
}

// NewContentFetcher creates a new content fetcher. Articles whose content
// is at least minLength characters and that already have an image are
// left untouched.
func NewContentFetcher(timeout time.Duration, userAgent string, minLength int) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = "itnewsbot/1.0 (news aggregator)"
	}
	return &ContentFetcher{
		userAgent: userAgent,
		minLength: minLength,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// NeedsEnrichment reports whether a is missing text or an image.
func (f *ContentFetcher) NeedsEnrichment(a *news.Article) bool {
	return len([]rune(a.Content)) < f.minLength || a.ImageURL == nil
}

// Enrich downloads the article page and fills in Content when the page
// yields more text, and ImageURL when it is missing.
func (f *ContentFetcher) Enrich(ctx context.Context, a *news.Article) error {
	if !f.NeedsEnrichment(a) {
		return nil
	}

	page, err := f.download(ctx, a.Link)
	if err != nil {
		return err
	}
	pageURL, _ := url.Parse(a.Link)

	if len([]rune(a.Content)) < f.minLength {
		if text := extractText(page, pageURL); len(text) > len(a.Content) {
			a.Content = text
		}
	}

	if a.ImageURL == nil {
		if img := extractImage(page, pageURL); img != "" {
			a.ImageURL = &img
		}
	}
	return nil
}

func (f *ContentFetcher) download(ctx context.Context, articleURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", articleURL, err)
	}
	return body, nil
}

func extractText(page []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text
	}
	return ""
}

// extractImage prefers og:image and falls back to the first image inside
// the article body.
func extractImage(page []byte, pageURL *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	var src string
	for _, sel := range []string{`meta[property="og:image"]`, `meta[name="twitter:image"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			src = strings.TrimSpace(v)
			break
		}
	}
	if src == "" {
		if v, ok := doc.Find("article img").First().Attr("src"); ok {
			src = strings.TrimSpace(v)
		}
	}
	if src == "" || pageURL == nil {
		return src
	}

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return pageURL.ResolveReference(ref).String()
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, http.StatusText(e.code))
}
