package collect

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/news"
)

// HTMLAdapter scrapes an article listing page with CSS selectors.
// Listings carry no reliable dates, so every item is stamped with the
// fetch time and returned regardless of the watermark.
type HTMLAdapter struct {
	page      config.Page
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// NewHTMLAdapter creates an adapter for one listing page.
func NewHTMLAdapter(page config.Page, client *http.Client, userAgent string) *HTMLAdapter {
	if page.Name == "" {
		page.Name = extractSourceName(page.URL)
	}
	if page.BaseURL == "" {
		page.BaseURL = page.URL
	}
	return &HTMLAdapter{page: page, client: client, userAgent: userAgent, now: time.Now}
}

func (a *HTMLAdapter) Name() string { return a.page.Name }

func (a *HTMLAdapter) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	doc, err := fetchDocument(ctx, a.client, a.page.URL, a.userAgent)
	if err != nil {
		return nil, err
	}

	now := a.now()
	seen := make(map[string]bool)
	var articles []news.Article

	selectAll(doc.Selection, a.page.Item).Each(func(_ int, item *goquery.Selection) {
		titleSel := firstMatch(item, a.page.Title)
		if titleSel == nil {
			return
		}
		title := strings.Join(strings.Fields(titleSel.Text()), " ")
		if title == "" {
			return
		}

		link := resolveURL(a.page.BaseURL, a.linkOf(item, titleSel))
		if link == "" || seen[link] {
			return
		}
		seen[link] = true

		var image string
		if img := firstMatch(item, a.page.Image); img != nil {
			image = firstAttr(img, "src", "data-src")
			if image != "" {
				image = resolveURL(a.page.BaseURL, image)
			}
		}

		var summary string
		if s := firstMatch(item, a.page.Summary); s != nil {
			summary = strings.TrimSpace(s.Text())
		}

		published := now
		articles = append(articles, news.Article{
			Title:     title,
			Content:   summary,
			Link:      link,
			Source:    a.page.Name,
			ImageURL:  news.StringPtr(image),
			Published: &published,
		})
	})

	return articles, nil
}

func (a *HTMLAdapter) linkOf(item, titleSel *goquery.Selection) string {
	if l := firstMatch(item, a.page.Link); l != nil {
		if href, ok := l.Attr("href"); ok {
			return href
		}
	}
	if href, ok := titleSel.Attr("href"); ok {
		return href
	}
	if href, ok := titleSel.Find("a").First().Attr("href"); ok {
		return href
	}
	href, _ := titleSel.Closest("a").Attr("href")
	return href
}

// selectAll returns the matches of the first selector that matches anything.
func selectAll(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return s.Find("itnewsbot-no-match")
}

// firstMatch returns the first element matched by any selector, or nil.
func firstMatch(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
