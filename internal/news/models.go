package news

import "time"

// Article is a normalized candidate article produced by a fetch adapter.
type Article struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Link      string     `json:"link"`
	Source    string     `json:"source"`
	ImageURL  *string    `json:"image_url"`
	Published *time.Time `json:"published,omitempty"`
}

// Key returns the dedup key of the article.
func (a Article) Key() string { return a.Link }

// Decision is the persisted form of a classification verdict.
// Summary and Title are set only for approved verdicts.
type Decision struct {
	Approved    bool     `json:"approved"`
	Reason      string   `json:"reason,omitempty"`
	Summary     *string  `json:"summary,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Tags        []string `json:"tags"`
	Error       string   `json:"error,omitempty"`
	RawResponse string   `json:"raw_response,omitempty"`
}

// ProcessedRecord is the at-most-once classification record for a link.
type ProcessedRecord struct {
	Article
	Decision    Decision  `json:"ai_decision"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DecidedAt is the timestamp the retention filter ages the record by.
func (r ProcessedRecord) DecidedAt() time.Time { return r.ProcessedAt }

// ApprovedRecord is kept for duplicate screening of later articles.
type ApprovedRecord struct {
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Link       string    `json:"link"`
	Source     string    `json:"source"`
	ImageURL   *string   `json:"image_url"`
	Tags       []string  `json:"tags"`
	ApprovedAt time.Time `json:"approved_at"`
}

func (r ApprovedRecord) Key() string { return r.Link }

func (r ApprovedRecord) DecidedAt() time.Time { return r.ApprovedAt }

// Publication is an entry of the publication queue.
type Publication struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Link     string   `json:"link"`
	ImageURL *string  `json:"image_url"`
	Tags     []string `json:"tags"`
}

func (p Publication) Key() string { return p.Link }

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p, or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
