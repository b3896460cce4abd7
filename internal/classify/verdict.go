package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/TobiSchelling/itnewsbot/internal/llm"
	"github.com/TobiSchelling/itnewsbot/internal/news"
)

// ParseErrorText marks processed records whose oracle response could not be read.
const ParseErrorText = "JSON parsing error"

// Verdict is the outcome of classifying one article. It is one of
// Approved, Rejected, Unparseable or Failed.
type Verdict interface {
	Decision() news.Decision
}

// Approved carries the oracle's rewrite of a publishable article.
type Approved struct {
	Title     string
	Summary   string
	Reason    string
	Tags      []string
	Recovered bool
}

type Rejected struct {
	Reason string
	Tags   []string
}

// Unparseable is an oracle response that neither parsed nor could be repaired.
type Unparseable struct {
	Raw string
}

// Failed is a transport failure talking to the oracle.
type Failed struct {
	Err error
}

func (v Approved) Decision() news.Decision {
	title, summary := v.Title, v.Summary
	return news.Decision{
		Approved: true,
		Reason:   v.Reason,
		Title:    &title,
		Summary:  &summary,
		Tags:     nonNil(v.Tags),
	}
}

func (v Rejected) Decision() news.Decision {
	return news.Decision{Reason: v.Reason, Tags: nonNil(v.Tags)}
}

func (v Unparseable) Decision() news.Decision {
	return news.Decision{
		Reason:      "could not parse oracle response",
		Tags:        []string{},
		Error:       ParseErrorText,
		RawResponse: v.Raw,
	}
}

func (v Failed) Decision() news.Decision {
	msg := "oracle request failed"
	if v.Err != nil {
		msg = v.Err.Error()
	}
	return news.Decision{Reason: "oracle request failed", Tags: []string{}, Error: msg}
}

// ParseVerdict interprets a raw oracle response. A structured parse is
// tried first; otherwise the fields are recovered from the raw text.
func ParseVerdict(raw string) Verdict {
	if parsed := llm.ParseJSONResponse(raw); parsed != nil {
		if v, ok := fromMap(parsed); ok {
			return v
		}
	}
	return recoverVerdict(raw)
}

func fromMap(m map[string]any) (Verdict, bool) {
	approved, _ := m["approved"].(bool)
	reason := getString(m, "reason", "")
	tags := NormalizeTags(m["tags"])

	if !approved {
		return Rejected{Reason: reason, Tags: tags}, true
	}

	title := strings.TrimSpace(getString(m, "title", ""))
	summary := strings.TrimSpace(getString(m, "summary", ""))
	if title == "" || summary == "" {
		return nil, false
	}
	return Approved{Title: title, Summary: summary, Reason: reason, Tags: tags}, true
}

var (
	approvedField = regexp.MustCompile(`"approved"\s*:\s*(true|false)`)
	// stringEnd finds the closing quote of a value: a quote followed by the
	// next key or the end of the object. Quotes inside the value are kept.
	stringEnd    = regexp.MustCompile(`"\s*(?:,\s*"[A-Za-z_]+"\s*:|\})`)
	tagsArray    = regexp.MustCompile(`"tags"\s*:\s*\[([^\]]*)\]`)
	tagsScalar   = regexp.MustCompile(`"tags"\s*:\s*"([^"]*)"`)
	quotedString = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// recoverVerdict extracts fields from a malformed response with pattern
// matching. Only an approval with both title and summary is trusted.
func recoverVerdict(raw string) Verdict {
	m := approvedField.FindStringSubmatch(raw)
	if m == nil || m[1] != "true" {
		return Unparseable{Raw: raw}
	}

	title, okTitle := recoverString(raw, "title")
	summary, okSummary := recoverString(raw, "summary")
	if !okTitle || !okSummary || strings.TrimSpace(title) == "" || strings.TrimSpace(summary) == "" {
		return Unparseable{Raw: raw}
	}
	reason, _ := recoverString(raw, "reason")

	return Approved{
		Title:     strings.TrimSpace(title),
		Summary:   strings.TrimSpace(summary),
		Reason:    reason,
		Tags:      recoverTags(raw),
		Recovered: true,
	}
}

func recoverString(raw, key string) (string, bool) {
	start := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"`).FindStringIndex(raw)
	if start == nil {
		return "", false
	}
	rest := raw[start[1]:]
	end := stringEnd.FindStringIndex(rest)
	if end == nil {
		return "", false
	}
	return unescape(rest[:end[0]]), true
}

func recoverTags(raw string) []string {
	if m := tagsArray.FindStringSubmatch(raw); m != nil {
		var tags []any
		for _, q := range quotedString.FindAllStringSubmatch(m[1], -1) {
			tags = append(tags, unescape(q[1]))
		}
		return NormalizeTags(tags)
	}
	if m := tagsScalar.FindStringSubmatch(raw); m != nil {
		return NormalizeTags(m[1])
	}
	return []string{}
}

func unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\\`, `\`).Replace(s)
}

// NormalizeTags turns the oracle's tags value into a list: a bare string
// becomes a one-element list and anything missing or malformed becomes empty.
func NormalizeTags(v any) []string {
	tags := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			tags = append(tags, s)
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
	}
	return tags
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
