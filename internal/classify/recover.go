package classify

import (
	"context"
	"fmt"
	"log"
)

// RecoverResult summarizes a recovery scan of the processed log.
type RecoverResult struct {
	Scanned         int
	Recovered       int
	AlreadyApproved int
	Unrecoverable   int
}

// Recover rescans processed records whose oracle response failed to parse
// and queues those that the repair step can now read as approvals.
// Records whose link is already approved are skipped.
func (c *Classifier) Recover(ctx context.Context) (*RecoverResult, error) {
	records, err := c.deps.Processed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading processed log: %w", err)
	}

	r := &RecoverResult{}
	for _, rec := range records {
		if rec.Decision.Error != ParseErrorText || rec.Decision.RawResponse == "" {
			continue
		}
		r.Scanned++

		v, ok := ParseVerdict(rec.Decision.RawResponse).(Approved)
		if !ok {
			r.Unrecoverable++
			continue
		}

		approved, err := c.deps.Approved.Contains(ctx, rec.Link)
		if err != nil {
			return r, fmt.Errorf("reading approved log: %w", err)
		}
		if approved {
			r.AlreadyApproved++
			continue
		}

		if err := c.enqueue(ctx, rec.Article, v, c.now()); err != nil {
			return r, err
		}
		r.Recovered++
		log.Printf("Recovered: %s", v.Title)
	}

	log.Printf("Recovery complete: %d scanned, %d recovered, %d already approved, %d unrecoverable",
		r.Scanned, r.Recovered, r.AlreadyApproved, r.Unrecoverable)
	return r, nil
}
