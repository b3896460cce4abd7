package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/classify"
	"github.com/TobiSchelling/itnewsbot/internal/collect"
	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/fetch"
	"github.com/TobiSchelling/itnewsbot/internal/ingest"
	"github.com/TobiSchelling/itnewsbot/internal/llm"
	"github.com/TobiSchelling/itnewsbot/internal/publish"
	"github.com/TobiSchelling/itnewsbot/internal/telegram"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Pipeline wires the ingestion, classification and publication stages.
// The stages share nothing but the stores.
type Pipeline struct {
	cfg        *config.Config
	stores     *Stores
	ingester   *ingest.Ingester
	classifier *classify.Classifier
	publisher  *publish.Publisher
	reporter   *telegram.Reporter
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a pipeline. provider may be nil, in which case every
// classification fails with classify.ErrNoProvider.
func New(cfg *config.Config, stores *Stores, provider llm.Provider) *Pipeline {
	pc := cfg.Pipeline
	tg := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.Token(), cfg.Telegram.Timeout)

	ingester := ingest.New(collect.NewAdapters(cfg.Sources), stores.Processing, stores.Watermarks, ingest.Options{
		InitialLookback: pc.InitialLookback,
		SourcePause:     pc.SourcePause,
		Debug:           cfg.DebugEnabled(),
	})

	reporter := telegram.NewReporter(tg, cfg.Telegram.ErrorChatID())
	deps := classify.Deps{
		Processing:  stores.Processing,
		Processed:   stores.Processed,
		Approved:    stores.Approved,
		Publication: stores.Publication,
		Enricher:    fetch.NewContentFetcher(cfg.Sources.Timeout, cfg.Sources.UserAgent, pc.MinContentLength),
		Reporter:    reporter,
	}
	if provider != nil {
		deps.Provider = provider
	}
	classifier := classify.New(deps, classify.Options{
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
		ApprovalHorizon: pc.Retention,
		DefaultTag:      pc.DefaultTag,
		LinkPlaceholder: pc.LinkPlaceholder,
		Debug:           cfg.DebugEnabled(),
	})

	publisher := publish.New(stores.Publication, telegram.NewSink(tg, cfg.Telegram.ChannelID()), publish.Options{
		MaxAttempts: pc.MaxRetries,
		RetryDelay:  pc.RetryDelay,
		Requeue:     pc.RequeueFailed,
		Retryable:   telegram.IsRetryable,
	})

	return &Pipeline{
		cfg:        cfg,
		stores:     stores,
		ingester:   ingester,
		classifier: classifier,
		publisher:  publisher,
		reporter:   reporter,
		sleep:      sleepCtx,
	}
}

// Classifier exposes the classification stage, e.g. for recovery.
func (p *Pipeline) Classifier() *classify.Classifier { return p.classifier }

// Ingest runs one ingestion cycle.
func (p *Pipeline) Ingest(ctx context.Context) StepResult {
	log.Println("Ingesting articles...")
	result, err := p.ingester.RunCycle(ctx)
	return StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("Found %d articles, %d new, %d duplicates", result.Found, result.Added, result.Duplicates),
		Err:     err,
	}
}

// Classify classifies up to limit queued articles (all when limit <= 0).
func (p *Pipeline) Classify(ctx context.Context, limit int) StepResult {
	log.Println("Classifying articles...")
	result := p.classifier.Drain(ctx, limit)
	p.reporter.Wait()
	return StepResult{
		Name: "Classify",
		Summary: fmt.Sprintf("Classified %d articles: %d approved, %d rejected, %d failed",
			result.Processed, result.Approved, result.Rejected, result.Unparseable+result.Failed),
	}
}

// Publish delivers the head of the publication queue.
func (p *Pipeline) Publish(ctx context.Context) StepResult {
	log.Println("Publishing...")
	outcome, err := p.publisher.Step(ctx)
	return StepResult{Name: "Publish", Summary: "Publication " + outcome.String(), Err: err}
}

// Run drives the three stages concurrently until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, loop := range []func(context.Context){p.ingestLoop, p.classifyLoop, p.publishLoop} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(loop)
	}
	wg.Wait()
	p.reporter.Wait()
	log.Println("Pipeline stopped")
}

func (p *Pipeline) ingestLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := p.ingester.RunCycle(ctx); err != nil {
			log.Printf("Ingestion errors: %v", err)
		}
		if p.sleep(ctx, p.cfg.Pipeline.CheckInterval) != nil {
			return
		}
	}
}

func (p *Pipeline) classifyLoop(ctx context.Context) {
	pc := p.cfg.Pipeline
	for ctx.Err() == nil {
		outcome, err := p.classifier.Step(ctx)
		if err != nil {
			log.Printf("Classification error: %v", err)
		}

		var wait time.Duration
		switch outcome {
		case classify.OutcomeEmpty:
			wait = pc.ClassifyIdle
		case classify.OutcomeAlreadyProcessed:
			continue
		default:
			wait = pc.ClassifyDelay
		}
		if p.sleep(ctx, wait) != nil {
			return
		}
	}
}

func (p *Pipeline) publishLoop(ctx context.Context) {
	pc := p.cfg.Pipeline
	failures := 0
	for ctx.Err() == nil {
		outcome, err := p.publisher.Step(ctx)

		wait := pc.PublishDelay
		switch outcome {
		case publish.OutcomeEmpty:
			wait = pc.PublishIdle
		case publish.OutcomeDelivered:
			failures = 0
		case publish.OutcomeFailed:
			failures++
			log.Printf("Publication failed (%d in a row): %v", failures, err)
			if failures >= pc.FailureThreshold {
				log.Printf("Too many failures, cooling down for %v", pc.FailureCooldown)
				wait = pc.FailureCooldown
				failures = 0
			}
		}
		if p.sleep(ctx, wait) != nil {
			return
		}
	}
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
