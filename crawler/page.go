package crawler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/cenkalti/backoff/v4"
)

// errChallenge aborts a page attempt so the loop can pause instead of retrying.
var errChallenge = models.NewCrawlError(models.ErrKindChallenge, "challenge shown instead of results", nil)

// processPage renders lazy content, waits out the jitter window, and extracts
// the current page. A page without a single valid listing is a transient
// failure.
func (o *Orchestrator) processPage(ctx context.Context) ([]models.ExtractionOutcome, error) {
	if err := o.browser.LoadListings(ctx); err != nil {
		slog.Debug("crawler: lazy-load scroll failed", "error", err)
	}
	if err := sleep(ctx, o.jitter()); err != nil {
		return nil, err
	}

	html, err := o.browser.HTML(ctx)
	if err != nil {
		return nil, err
	}
	outcomes, err := o.extractor.Extract(html)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrKindExtraction, "parse page", err)
	}

	valid := 0
	for _, oc := range outcomes {
		if oc.OK() {
			valid++
		}
	}
	if valid > 0 {
		return outcomes, nil
	}
	if o.browser.DetectChallenge(ctx) {
		return nil, errChallenge
	}
	return nil, models.NewCrawlError(models.ErrKindExtraction, "no extractable listings on page", nil)
}

// accept appends the page's valid records until the target is reached,
// skipping URLs already collected in this run or, with resume, in earlier runs.
func (o *Orchestrator) accept(ctx context.Context, st *state, outcomes []models.ExtractionOutcome) {
	added, dups, failed := 0, 0, 0
	for _, oc := range outcomes {
		if !oc.OK() {
			failed++
			slog.Debug("crawler: listing skipped",
				"page", st.page,
				"index", oc.Index,
				"reason", oc.Failure.Reason,
				"field", oc.Failure.Field,
			)
			continue
		}
		if len(st.records) >= st.target {
			break
		}
		rec := *oc.Record
		if o.collected(ctx, st, rec.URL) {
			dups++
			continue
		}
		st.seen[rec.URL] = struct{}{}
		st.records = append(st.records, rec)
		added++
	}

	st.pages++
	st.failures = 0
	st.failed += failed
	st.duplicates += dups
	o.publish(st)

	if len(outcomes) < o.cfg.PerPage {
		slog.Debug("crawler: page shorter than expected", "page", st.page, "listings", len(outcomes), "per_page", o.cfg.PerPage)
	}
	slog.Info("crawler: page done",
		"page", st.page,
		"listings", len(outcomes),
		"added", added,
		"duplicates", dups,
		"failed", failed,
		"collected", len(st.records),
		"target", st.target,
	)
}

func (o *Orchestrator) collected(ctx context.Context, st *state, url string) bool {
	if _, ok := st.seen[url]; ok {
		return true
	}
	if o.seen == nil {
		return false
	}
	ok, err := o.seen.Seen(ctx, url)
	if err != nil {
		slog.Debug("crawler: seen store lookup failed", "url", url, "error", err)
		return false
	}
	return ok
}

// flush writes the buffer to the sink. It runs after cancellation too, so it
// uses its own deadline.
func (o *Orchestrator) flush(ctx context.Context, st *state) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	if err := o.sink.Write(ctx, st.records); err != nil {
		slog.Error("crawler: flush failed", "sink", o.sink.Name(), "records", len(st.records), "error", err)
		return err
	}
	if o.seen != nil && len(st.records) > 0 {
		urls := make([]string, len(st.records))
		for i, r := range st.records {
			urls[i] = r.URL
		}
		if err := o.seen.Add(ctx, urls...); err != nil {
			slog.Warn("crawler: seen store update failed", "error", err)
		}
	}

	stats := fieldStats(st.records)
	attrs := []any{"sink", o.sink.Name(), "records", len(st.records)}
	for _, f := range models.Fields {
		attrs = append(attrs, f, stats[f])
	}
	slog.Info("crawler: flushed", attrs...)
	return nil
}

// retry runs op with exponential backoff for at most cfg.PageRetries extra
// attempts. Errors that are not retryable end the loop at once.
func (o *Orchestrator) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.BackoffInitial
	b.MaxInterval = o.cfg.BackoffMax
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.cfg.PageRetries)), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var ce *models.CrawlError
		if errors.As(err, &ce) && !ce.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, d time.Duration) {
		slog.Warn("crawler: retrying", "op", op, "in", d.Round(time.Millisecond), "error", err)
	})
}

// jitter picks a delay uniformly from the configured window.
func (o *Orchestrator) jitter() time.Duration {
	lo, hi := o.cfg.DelayMin, o.cfg.DelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
