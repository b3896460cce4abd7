package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/news"
)

// Adapter fetches candidate articles from a single source.
// Fetch returns only articles newer than since when the source carries
// publication dates; undated listings return everything they show.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]news.Article, error)
}

const defaultUserAgent = "Mozilla/5.0 (compatible; itnewsbot/1.0)"

// NewAdapters builds one adapter per configured source, in config order:
// feeds, listing pages, Telegram channels, then NewsAPI.
func NewAdapters(cfg config.Sources) []Adapter {
	client := newHTTPClient(cfg.Timeout)
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	var adapters []Adapter
	for _, f := range cfg.Feeds {
		adapters = append(adapters, NewRSSAdapter(f, client, ua))
	}
	for _, p := range cfg.Pages {
		adapters = append(adapters, NewHTMLAdapter(p, client, ua))
	}
	for _, c := range cfg.Channels {
		adapters = append(adapters, NewChannelAdapter(c, client, ua))
	}
	if cfg.NewsAPI.Enabled {
		adapters = append(adapters, NewNewsAPIAdapter(cfg.NewsAPI, client))
	}
	return adapters
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL, userAgent string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// resolveURL makes href absolute against base.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return feedURL
	}

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
