package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/news"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIAdapter searches NewsAPI for articles published after the watermark.
type NewsAPIAdapter struct {
	apiKey   string
	query    string
	language string
	baseURL  string
	client   *http.Client
}

// NewNewsAPIAdapter creates a NewsAPI adapter.
func NewNewsAPIAdapter(cfg config.NewsAPI, client *http.Client) *NewsAPIAdapter {
	return &NewsAPIAdapter{
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		query:    cfg.Query,
		language: cfg.Language,
		baseURL:  newsAPIBaseURL,
		client:   client,
	}
}

func (c *NewsAPIAdapter) Name() string { return "NewsAPI" }

// IsConfigured returns whether the API key is available.
func (c *NewsAPIAdapter) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *NewsAPIAdapter) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("NewsAPI key not configured")
	}

	params := url.Values{
		"q":        {c.query},
		"from":     {since.UTC().Format(time.RFC3339)},
		"pageSize": {"100"},
		"sortBy":   {"publishedAt"},
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NewsAPI HTTP error: %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			URL         string `json:"url"`
			URLToImage  string `json:"urlToImage"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("NewsAPI decode error: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI status: %s", result.Status)
	}

	var articles []news.Article
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published *time.Time
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			if !t.After(since) {
				continue
			}
			published = &t
		}

		content := a.Content
		if content == "" {
			content = a.Description
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		articles = append(articles, news.Article{
			Title:     strings.TrimSpace(a.Title),
			Content:   strings.TrimSpace(content),
			Link:      a.URL,
			Source:    source,
			ImageURL:  news.StringPtr(a.URLToImage),
			Published: published,
		})
	}
	return articles, nil
}
