package telegram

import (
	"html"
	"strings"

	"github.com/TobiSchelling/itnewsbot/internal/news"
)

const (
	// CaptionLimit is the longest photo caption Telegram accepts.
	CaptionLimit = 1024
	// MessageLimit is the longest text message Telegram accepts.
	MessageLimit = 4096
)

// FormatPost renders a publication as an HTML post: bold title, summary,
// a link to the original and the hashtags. The summary is shortened when
// the post would exceed limit characters.
func FormatPost(p news.Publication, limit int) string {
	head := "<b>" + html.EscapeString(strings.TrimSpace(p.Title)) + "</b>\n\n"

	var tail strings.Builder
	if p.Link != "" {
		tail.WriteString("\n\n<a href='" + html.EscapeString(p.Link) + "'>Читать полностью</a>")
	}
	if tags := FormatTags(p.Tags); tags != "" {
		tail.WriteString("\n\n" + tags)
	}

	summary := html.EscapeString(strings.TrimSpace(p.Summary))
	if limit > 0 {
		summary = shorten(summary, limit-runeLen(head)-runeLen(tail.String()))
	}
	return head + summary + tail.String()
}

// FormatTags joins tags with spaces, prefixing any that lack a '#'.
func FormatTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// shorten cuts escaped HTML text to at most n runes, ending with an
// ellipsis and never splitting an entity.
func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return ""
	}
	cut := string(runes[:n-1])
	if i := strings.LastIndex(cut, "&"); i >= 0 && !strings.Contains(cut[i:], ";") {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

func runeLen(s string) int { return len([]rune(s)) }
