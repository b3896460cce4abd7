package classify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/llm"
	"github.com/TobiSchelling/itnewsbot/internal/news"
	"github.com/TobiSchelling/itnewsbot/internal/store"
)

// ErrNoProvider is returned when no oracle is configured.
var ErrNoProvider = errors.New("no LLM provider available")

// Outcome is what a single classification step did.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeAlreadyProcessed
	OutcomeApproved
	OutcomeRejected
	OutcomeUnparseable
	OutcomeFailed
	// OutcomeDeferred leaves the head queued for a later step.
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnparseable:
		return "unparseable"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "failed"
	}
}

// Enricher fills in missing article text and images before classification.
type Enricher interface {
	Enrich(ctx context.Context, a *news.Article) error
}

// Reporter forwards operational errors to a human. Delivery is best effort.
type Reporter interface {
	Report(ctx context.Context, message string, data map[string]any)
}

// Deps are the collaborators of a Classifier. Enricher and Reporter are optional.
type Deps struct {
	Provider    llm.Provider
	Processing  store.Queue[news.Article]
	Processed   store.Log[news.ProcessedRecord]
	Approved    store.Log[news.ApprovedRecord]
	Publication store.Queue[news.Publication]
	Enricher    Enricher
	Reporter    Reporter
	Clock       store.Clock
}

// Options tune prompt and publication entries. Timeout bounds a single
// oracle call. An approval younger than ApprovalHorizon that is missing
// from the approved log is completed on the next step.
type Options struct {
	MaxTokens       int
	Timeout         time.Duration
	ApprovalHorizon time.Duration
	DefaultTag      string
	LinkPlaceholder string
	Debug           bool
}

// Result holds the counters of a classification run.
type Result struct {
	Processed        int
	Approved         int
	Rejected         int
	Unparseable      int
	Failed           int
	AlreadyProcessed int
	Deferred         int
}

func (r *Result) add(o Outcome) {
	switch o {
	case OutcomeAlreadyProcessed:
		r.AlreadyProcessed++
		return
	case OutcomeDeferred:
		r.Deferred++
		return
	case OutcomeApproved:
		r.Approved++
	case OutcomeRejected:
		r.Rejected++
	case OutcomeUnparseable:
		r.Unparseable++
	case OutcomeFailed:
		r.Failed++
	default:
		return
	}
	r.Processed++
}

// Classifier moves articles from the processing queue through the oracle
// into the decision logs and, when approved, the publication queue.
type Classifier struct {
	deps Deps
	opts Options
	now  store.Clock
}

// New creates a Classifier.
func New(deps Deps, opts Options) *Classifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.ApprovalHorizon <= 0 {
		opts.ApprovalHorizon = store.DefaultHorizon
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Classifier{deps: deps, opts: opts, now: now}
}

// Step classifies the head of the processing queue. The decision record is
// written before the head is removed, so a crash in between leads to a
// no-op on restart instead of a second oracle call. Once the oracle has
// been asked, the step runs to completion even if ctx is cancelled.
func (c *Classifier) Step(ctx context.Context) (Outcome, error) {
	article, ok, err := c.deps.Processing.Peek(ctx)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("reading processing queue: %w", err)
	}
	if !ok {
		return OutcomeEmpty, nil
	}

	persist := context.WithoutCancel(ctx)

	prev, done, err := c.lookup(ctx, article.Link)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("reading processed log: %w", err)
	}
	if done {
		if err := c.completeApproval(persist, prev); err != nil {
			return OutcomeDeferred, err
		}
		if _, err := c.deps.Processing.Ack(persist, article.Link); err != nil {
			return OutcomeDeferred, fmt.Errorf("removing %s: %w", article.Link, err)
		}
		if c.opts.Debug {
			log.Printf("Already processed: %s", article.Link)
		}
		return OutcomeAlreadyProcessed, nil
	}

	if c.deps.Provider == nil {
		return OutcomeDeferred, ErrNoProvider
	}

	if c.deps.Enricher != nil {
		if err := c.deps.Enricher.Enrich(ctx, &article); err != nil {
			log.Printf("Could not enrich %s: %v", article.Link, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return OutcomeDeferred, err
	}

	verdict := c.classify(ctx, article)
	if _, failed := verdict.(Failed); failed && ctx.Err() != nil {
		log.Printf("Shutting down, %s stays queued", article.Link)
		return OutcomeDeferred, ctx.Err()
	}
	decidedAt := c.now()

	rec := news.ProcessedRecord{Article: article, Decision: verdict.Decision(), ProcessedAt: decidedAt}
	if _, err := c.deps.Processed.Append(persist, rec); err != nil {
		return OutcomeDeferred, fmt.Errorf("recording decision for %s: %w", article.Link, err)
	}

	var (
		outcome Outcome
		stepErr error
	)
	switch v := verdict.(type) {
	case Approved:
		if err := c.enqueue(persist, article, v, decidedAt); err != nil {
			c.report(persist, "Не удалось поставить статью в очередь публикации", article, err.Error())
			return OutcomeDeferred, err
		}
		outcome = OutcomeApproved
		log.Printf("Approved: %s", v.Title)
	case Rejected:
		outcome = OutcomeRejected
		log.Printf("Rejected: %s (%s)", article.Title, v.Reason)
	case Unparseable:
		outcome = OutcomeUnparseable
		log.Printf("Unparseable oracle response for: %s", article.Title)
		c.report(persist, "Не удалось разобрать ответ нейросети", article, v.Raw)
	case Failed:
		outcome = OutcomeFailed
		stepErr = fmt.Errorf("classifying %s: %w", article.Link, v.Err)
		c.report(persist, "Ошибка запроса к нейросети", article, v.Err.Error())
	}

	if _, err := c.deps.Processing.Ack(persist, article.Link); err != nil {
		return outcome, fmt.Errorf("removing %s: %w", article.Link, err)
	}
	return outcome, stepErr
}

// Drain runs Step until the queue is empty, ctx is done, a step is
// deferred, or limit articles were classified (limit <= 0 means no limit).
func (c *Classifier) Drain(ctx context.Context, limit int) *Result {
	r := &Result{}
	for ctx.Err() == nil {
		if limit > 0 && r.Processed >= limit {
			break
		}
		outcome, err := c.Step(ctx)
		if err != nil {
			log.Printf("Classification error: %v", err)
		}
		if outcome == OutcomeEmpty {
			break
		}
		r.add(outcome)
		if outcome == OutcomeDeferred {
			break
		}
	}

	log.Printf("Classification complete: %d processed (%d approved, %d rejected, %d unparseable, %d failed), %d already processed",
		r.Processed, r.Approved, r.Rejected, r.Unparseable, r.Failed, r.AlreadyProcessed)
	return r
}

// lookup returns the processed record for link, if any.
func (c *Classifier) lookup(ctx context.Context, link string) (news.ProcessedRecord, bool, error) {
	records, err := c.deps.Processed.List(ctx)
	if err != nil {
		return news.ProcessedRecord{}, false, err
	}
	for _, rec := range records {
		if rec.Link == link {
			return rec, true, nil
		}
	}
	return news.ProcessedRecord{}, false, nil
}

// completeApproval finishes an approval whose step stopped before the
// approved record was written. Approvals past the approval horizon have
// aged out of the approved log and are left alone.
func (c *Classifier) completeApproval(ctx context.Context, rec news.ProcessedRecord) error {
	d := rec.Decision
	if !d.Approved || d.Title == nil || d.Summary == nil {
		return nil
	}
	if !(store.Retention{Horizon: c.opts.ApprovalHorizon, Now: c.now}).Keep(rec.ProcessedAt) {
		return nil
	}

	approved, err := c.deps.Approved.Contains(ctx, rec.Link)
	if err != nil {
		return fmt.Errorf("reading approved log: %w", err)
	}
	if approved {
		return nil
	}

	log.Printf("Completing approval: %s", *d.Title)
	v := Approved{Title: *d.Title, Summary: *d.Summary, Reason: d.Reason, Tags: d.Tags}
	return c.enqueue(ctx, rec.Article, v, rec.ProcessedAt)
}

// classify asks the oracle about a. The call is detached from ctx and
// bounded by the request timeout only.
func (c *Classifier) classify(ctx context.Context, a news.Article) Verdict {
	ctx = context.WithoutCancel(ctx)
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	recent, err := c.deps.Approved.List(ctx)
	if err != nil {
		log.Printf("Reading approved log: %v", err)
		recent = nil
	}

	prompt := buildPrompt(a, recent, c.opts.LinkPlaceholder)
	raw, err := c.deps.Provider.Generate(ctx, prompt, c.opts.MaxTokens)
	if err != nil {
		return Failed{Err: err}
	}
	return ParseVerdict(raw)
}

// enqueue schedules the publication of an approval and records it. The
// approved record marks the approval complete, so it is written last.
func (c *Classifier) enqueue(ctx context.Context, a news.Article, v Approved, at time.Time) error {
	tags := nonNil(v.Tags)

	pubTags := tags
	if len(pubTags) == 0 && c.opts.DefaultTag != "" {
		pubTags = []string{c.opts.DefaultTag}
	}

	if _, err := c.deps.Publication.Push(ctx, news.Publication{
		Title:    v.Title,
		Summary:  c.stripPlaceholder(v.Summary),
		Link:     a.Link,
		ImageURL: a.ImageURL,
		Tags:     pubTags,
	}); err != nil {
		return fmt.Errorf("queueing %s for publication: %w", a.Link, err)
	}

	if _, err := c.deps.Approved.Append(ctx, news.ApprovedRecord{
		Title:      v.Title,
		Summary:    v.Summary,
		Link:       a.Link,
		Source:     a.Source,
		ImageURL:   a.ImageURL,
		Tags:       tags,
		ApprovedAt: at,
	}); err != nil {
		return fmt.Errorf("recording approval for %s: %w", a.Link, err)
	}
	return nil
}

func (c *Classifier) stripPlaceholder(summary string) string {
	if c.opts.LinkPlaceholder == "" {
		return summary
	}
	return strings.ReplaceAll(summary, c.opts.LinkPlaceholder, "")
}

func (c *Classifier) report(ctx context.Context, message string, a news.Article, detail string) {
	if c.deps.Reporter == nil {
		return
	}
	c.deps.Reporter.Report(ctx, message, map[string]any{
		"title":  a.Title,
		"link":   a.Link,
		"source": a.Source,
		"detail": truncate(detail, 500),
	})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
