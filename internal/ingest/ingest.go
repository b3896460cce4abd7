package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gosimple/slug"
	"github.com/hashicorp/go-multierror"

	"github.com/TobiSchelling/itnewsbot/internal/collect"
	"github.com/TobiSchelling/itnewsbot/internal/news"
	"github.com/TobiSchelling/itnewsbot/internal/store"
)

// Options control one ingestion cycle.
type Options struct {
	// InitialLookback is how far back a source is read the first time.
	InitialLookback time.Duration
	// SourcePause is the wait between two sources.
	SourcePause time.Duration
	Debug       bool
}

// SourceResult holds the counters of one source poll.
type SourceResult struct {
	Source string
	Since  time.Time
	Found  int
	Err    error

	// checked is the poll start, zero when the poll was interrupted.
	checked time.Time
}

// Result holds the counters of an ingestion cycle.
type Result struct {
	Found      int
	Added      int
	Duplicates int
	PerSource  []SourceResult
}

// Ingester polls every adapter and appends new articles to the processing queue.
type Ingester struct {
	adapters []collect.Adapter
	queue    store.Queue[news.Article]
	marks    store.Watermarks
	opts     Options
	now      store.Clock
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates an Ingester.
func New(adapters []collect.Adapter, queue store.Queue[news.Article], marks store.Watermarks, opts Options) *Ingester {
	if opts.InitialLookback <= 0 {
		opts.InitialLookback = 24 * time.Hour
	}
	return &Ingester{
		adapters: adapters,
		queue:    queue,
		marks:    marks,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// WatermarkKey is the key a source's watermark is stored under.
func WatermarkKey(source string) string {
	return slug.Make(source)
}

// RunCycle polls all sources once. A failing source does not stop the
// cycle: its error is collected and returned with the result, and its
// watermark is advanced all the same. Watermarks move only after the
// batch is queued, and the queue write runs to completion on shutdown.
func (i *Ingester) RunCycle(ctx context.Context) (*Result, error) {
	result := &Result{}
	var errs *multierror.Error
	var batch []news.Article

	for n, a := range i.adapters {
		if ctx.Err() != nil {
			break
		}
		if n > 0 {
			if err := i.sleep(ctx, i.opts.SourcePause); err != nil {
				break
			}
		}

		articles, sr := i.poll(ctx, a)
		result.PerSource = append(result.PerSource, sr)
		if sr.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sr.Source, sr.Err))
			continue
		}
		result.Found += sr.Found
		batch = append(batch, articles...)
	}

	persist := context.WithoutCancel(ctx)
	if len(batch) > 0 {
		added, err := i.queue.Push(persist, batch...)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("queueing articles: %w", err))
			log.Printf("Ingestion failed, watermarks kept: %v", err)
			return result, errs.ErrorOrNil()
		}
		result.Added = added
		result.Duplicates = len(batch) - added
	}

	for _, sr := range result.PerSource {
		if sr.checked.IsZero() {
			continue
		}
		if err := i.marks.Set(persist, WatermarkKey(sr.Source), sr.checked); err != nil {
			log.Printf("Saving watermark for %s: %v", sr.Source, err)
		}
	}

	log.Printf("Ingestion complete: %d found, %d new, %d duplicates, %d sources failed",
		result.Found, result.Added, result.Duplicates, countFailed(result.PerSource))
	return result, errs.ErrorOrNil()
}

// poll fetches one source. Unless ctx ended during the fetch, the poll
// start becomes the source's next watermark whether or not the fetch
// succeeded.
func (i *Ingester) poll(ctx context.Context, a collect.Adapter) ([]news.Article, SourceResult) {
	name := a.Name()
	key := WatermarkKey(name)
	started := i.now()

	sr := SourceResult{Source: name, Since: started.Add(-i.opts.InitialLookback)}
	since, ok, err := i.marks.Get(ctx, key)
	if err != nil {
		log.Printf("Reading watermark for %s: %v", name, err)
	} else if ok {
		sr.Since = since
	}

	articles, err := a.Fetch(ctx, sr.Since)
	if err != nil {
		sr.Err = err
		log.Printf("Source %s failed: %v", name, err)
	} else {
		sr.Found = len(articles)
		if i.opts.Debug {
			log.Printf("Source %s: %d articles since %s", name, len(articles), sr.Since.Format(time.RFC3339))
		}
	}

	if ctx.Err() == nil {
		sr.checked = started
	}
	return articles, sr
}

func countFailed(results []SourceResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
