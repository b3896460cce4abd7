package collect

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/news"
)

const (
	telegramPreviewURL = "https://t.me/s/"
	channelTitleRunes  = 100
)

var backgroundImage = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

// ChannelAdapter reads the public web preview of a Telegram channel.
type ChannelAdapter struct {
	name      string
	url       string
	client    *http.Client
	userAgent string
}

// NewChannelAdapter creates an adapter for one public channel.
func NewChannelAdapter(ch config.Channel, client *http.Client, userAgent string) *ChannelAdapter {
	name := ch.Name
	if name == "" {
		name = ch.Username
	}
	return &ChannelAdapter{
		name:      name,
		url:       telegramPreviewURL + strings.TrimPrefix(ch.Username, "@"),
		client:    client,
		userAgent: userAgent,
	}
}

func (a *ChannelAdapter) Name() string { return a.name }

func (a *ChannelAdapter) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	doc, err := fetchDocument(ctx, a.client, a.url, a.userAgent)
	if err != nil {
		return nil, err
	}

	var articles []news.Article
	doc.Find("div.tgme_widget_message").Each(func(_ int, msg *goquery.Selection) {
		text := strings.TrimSpace(msg.Find(".tgme_widget_message_text").First().Text())
		if text == "" {
			return
		}

		link, _ := msg.Find("a.tgme_widget_message_date").First().Attr("href")
		if link == "" {
			return
		}

		published := time.Now()
		if raw, ok := msg.Find("time.time").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				published = t
			}
		}
		if !published.After(since) {
			return
		}

		var image string
		if style, ok := msg.Find("a.tgme_widget_message_photo_wrap").First().Attr("style"); ok {
			if m := backgroundImage.FindStringSubmatch(style); m != nil {
				image = m[1]
			}
		}

		articles = append(articles, news.Article{
			Title:     channelTitle(text),
			Content:   text,
			Link:      link,
			Source:    a.name,
			ImageURL:  news.StringPtr(image),
			Published: &published,
		})
	})

	return articles, nil
}

// channelTitle derives a title from the first line of a post.
func channelTitle(text string) string {
	line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	runes := []rune(line)
	if len(runes) <= channelTitleRunes {
		return line
	}
	return strings.TrimSpace(string(runes[:channelTitleRunes])) + "..."
}
