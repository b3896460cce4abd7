package collect

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/news"
)

const maxPerFeed = 20

// RSSAdapter reads an RSS or Atom feed.
type RSSAdapter struct {
	name      string
	url       string
	parser    *gofeed.Parser
	converter *md.Converter
}

// NewRSSAdapter creates an adapter for one feed.
func NewRSSAdapter(feed config.Feed, client *http.Client, userAgent string) *RSSAdapter {
	name := feed.Name
	if name == "" {
		name = extractSourceName(feed.URL)
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &RSSAdapter{
		name:      name,
		url:       feed.URL,
		parser:    parser,
		converter: md.NewConverter("", true, nil),
	}
}

func (a *RSSAdapter) Name() string { return a.name }

func (a *RSSAdapter) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	feed, err := a.parser.ParseURLWithContext(a.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", a.url, err)
	}

	var articles []news.Article
	for _, item := range feed.Items {
		if len(articles) >= maxPerFeed {
			break
		}

		article := a.parseItem(item)
		if article == nil {
			continue
		}
		if article.Published != nil && !article.Published.After(since) {
			continue
		}
		articles = append(articles, *article)
	}
	return articles, nil
}

func (a *RSSAdapter) parseItem(item *gofeed.Item) *news.Article {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}

	return &news.Article{
		Title:     title,
		Content:   a.toText(body),
		Link:      itemURL,
		Source:    a.name,
		ImageURL:  news.StringPtr(itemImage(item)),
		Published: published,
	}
}

// toText converts feed HTML into markdown-flavoured plain text.
func (a *RSSAdapter) toText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	text, err := a.converter.ConvertString(html)
	if err != nil {
		log.Printf("Converting %s item body: %v", a.name, err)
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(text)
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	return ""
}
