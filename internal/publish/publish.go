package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/news"
	"github.com/TobiSchelling/itnewsbot/internal/store"
)

// Sink delivers one publication to the channel.
type Sink interface {
	Deliver(ctx context.Context, p news.Publication) error
}

// Outcome is what a single publication step did.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeDelivered
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeDelivered:
		return "delivered"
	default:
		return "failed"
	}
}

// Options control retries of a single delivery.
type Options struct {
	// MaxAttempts is the total number of delivery attempts, first one included.
	MaxAttempts int
	RetryDelay  time.Duration
	// Requeue puts an entry back at the tail of the queue when delivery fails.
	Requeue bool
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// Publisher takes entries off the publication queue and delivers them.
type Publisher struct {
	queue store.Queue[news.Publication]
	sink  Sink
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Publisher.
func New(queue store.Queue[news.Publication], sink Sink, opts Options) *Publisher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Retryable == nil {
		opts.Retryable = func(error) bool { return false }
	}
	return &Publisher{queue: queue, sink: sink, opts: opts, sleep: sleepCtx}
}

// Step pops the head of the queue and delivers it. The entry is gone from
// the queue once popped; a failed delivery drops it unless Requeue is set.
// An entry whose retries are cut short by ctx goes back to the queue.
func (p *Publisher) Step(ctx context.Context) (Outcome, error) {
	pub, ok, err := p.queue.Pop(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("reading publication queue: %w", err)
	}
	if !ok {
		return OutcomeEmpty, nil
	}

	if err := p.deliver(ctx, pub); err != nil {
		if p.opts.Requeue || ctx.Err() != nil {
			if _, qerr := p.queue.Push(context.WithoutCancel(ctx), pub); qerr != nil {
				log.Printf("Could not requeue %s: %v", pub.Link, qerr)
			}
		}
		return OutcomeFailed, fmt.Errorf("publishing %s: %w", pub.Link, err)
	}
	return OutcomeDelivered, nil
}

// deliver calls the sink detached from ctx, so an attempt in flight is
// bounded by the sink's request timeout only. ctx ends the retry waits.
func (p *Publisher) deliver(ctx context.Context, pub news.Publication) error {
	call := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			log.Printf("Delivery timed out, retry %d/%d in %v: %s", attempt-1, p.opts.MaxAttempts-1, p.opts.RetryDelay, pub.Title)
			if err := p.sleep(ctx, p.opts.RetryDelay); err != nil {
				return err
			}
		}

		err := p.sink.Deliver(call, pub)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.opts.Retryable(err) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.opts.MaxAttempts, lastErr)
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
