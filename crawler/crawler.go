// Package crawler runs the crawl state machine: load the result list, extract
// every page, paginate until the goal or the end of the site, and flush the
// collected records exactly once.
package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/config"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/storage"
	"golang.org/x/time/rate"
)

// Browser is the session the orchestrator owns for the whole run.
type Browser interface {
	Start(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	DetectChallenge(ctx context.Context) bool
	AwaitManualResolution(ctx context.Context) error
	LoadListings(ctx context.Context) error
	Stop() error
}

// Pager moves between result pages.
type Pager interface {
	DismissConsentOverlay(ctx context.Context) bool
	HasNextPage(ctx context.Context, page int) (bool, error)
	Advance(ctx context.Context, page int) error
	EndReason() models.StopReason
}

// Extractor turns a rendered result page into one outcome per listing element.
type Extractor interface {
	Extract(html string) ([]models.ExtractionOutcome, error)
}

// flushTimeout bounds the final write, which runs even after cancellation.
const flushTimeout = 30 * time.Second

// Orchestrator drives one crawl. Run may be called once.
type Orchestrator struct {
	cfg       config.CrawlConfig
	browser   Browser
	pager     Pager
	extractor Extractor
	sink      storage.Sink
	seen      storage.SeenStore
	limiter   *rate.Limiter

	// OnStateChange, when set, receives a copy of the state after every transition.
	OnStateChange func(models.CrawlSnapshot)

	mu     sync.Mutex
	snap   models.CrawlSnapshot
	cancel context.CancelFunc
	stop   bool
}

// New builds an orchestrator. seen may be nil; it is consulted only when
// cfg.Resume is set.
func New(cfg config.CrawlConfig, b Browser, p Pager, e Extractor, sink storage.Sink, seen storage.SeenStore) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		browser:   b,
		pager:     p,
		extractor: e,
		sink:      sink,
		snap:      models.CrawlSnapshot{Phase: models.PhaseIdle, Target: cfg.TargetCount},
	}
	if cfg.Resume {
		o.seen = seen
	}
	if cfg.MinPageInterval > 0 {
		o.limiter = rate.NewLimiter(rate.Every(cfg.MinPageInterval), 1)
	}
	return o
}

// Snapshot returns the latest published state.
func (o *Orchestrator) Snapshot() models.CrawlSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Stop asks a running crawl to flush and abort at the top of its next page
// iteration. It reports whether a crawl was running.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stop = true
	if o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// step is the next unit of work in the page loop.
type step int

const (
	stepLoad step = iota
	stepExtract
	stepAdvance
)

// Run executes the crawl and always returns a report.
func (o *Orchestrator) Run(ctx context.Context) *models.Report {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	if o.stop {
		cancel()
	}
	o.mu.Unlock()

	st := newState(o.cfg.TargetCount)
	started := time.Now()
	report := func(outcome models.Outcome, reason models.StopReason, err error) *models.Report {
		r := st.report(outcome, reason, o.sink.Name(), time.Since(started))
		if err != nil {
			r.Error = detail(err)
		}
		slog.Info("crawler: finished",
			"outcome", r.Outcome,
			"reason", r.StopReason,
			"pages", r.Pages,
			"collected", r.Collected,
			"target", r.Target,
			"duration", r.Duration.Round(time.Millisecond),
		)
		return r
	}

	if st.target == 0 {
		o.transition(st, models.PhaseCompleted)
		if err := o.flush(ctx, st); err != nil {
			return report(models.OutcomeFailed, models.StopGoalMet, err)
		}
		return report(models.OutcomeCompleted, models.StopGoalMet, nil)
	}

	if ctx.Err() != nil {
		slog.Warn("crawler: stop requested before start")
		o.transition(st, models.PhaseAborted)
		if err := o.flush(ctx, st); err != nil {
			return report(models.OutcomeFailed, models.StopCancelled, err)
		}
		return report(models.OutcomePartial, models.StopCancelled, nil)
	}

	if err := o.browser.Start(ctx); err != nil {
		slog.Error("crawler: browser could not start", "error", err)
		o.transition(st, models.PhaseAborted)
		return report(models.OutcomeFailed, models.StopLaunchFailed, err)
	}
	defer func() {
		if err := o.browser.Stop(); err != nil {
			slog.Warn("crawler: browser stop failed", "error", err)
		}
	}()

	reason, lastErr := o.loop(ctx, st)

	phase, outcome := models.PhaseCompleted, models.OutcomeCompleted
	if reason == models.StopFailureThreshold || reason == models.StopCancelled {
		phase, outcome = models.PhaseAborted, models.OutcomePartial
	}
	o.transition(st, phase)

	if err := o.flush(ctx, st); err != nil {
		return report(models.OutcomeFailed, reason, err)
	}
	if outcome == models.OutcomePartial {
		return report(outcome, reason, lastErr)
	}
	return report(outcome, reason, nil)
}

// loop runs page iterations until a terminal condition and returns it
// together with the last page-level error.
func (o *Orchestrator) loop(ctx context.Context, st *state) (models.StopReason, error) {
	next := stepLoad
	var lastErr error
	for {
		if ctx.Err() != nil {
			slog.Warn("crawler: stop requested", "page", st.page, "collected", len(st.records))
			return models.StopCancelled, lastErr
		}

		var err error
		switch next {
		case stepLoad:
			err = o.retry(ctx, "navigate", func() error {
				if err := o.wait(ctx); err != nil {
					return err
				}
				return o.browser.Navigate(ctx, o.cfg.StartURL)
			})
			if err == nil {
				if st.phase == models.PhaseIdle {
					o.transition(st, models.PhaseRunning)
				}
				o.pager.DismissConsentOverlay(ctx)
				next = stepExtract
			}

		case stepExtract:
			if o.browser.DetectChallenge(ctx) {
				_ = o.pause(ctx, st)
				continue
			}
			var outcomes []models.ExtractionOutcome
			err = o.retry(ctx, "extract", func() error {
				var perr error
				outcomes, perr = o.processPage(ctx)
				return perr
			})
			if errors.Is(err, errChallenge) {
				_ = o.pause(ctx, st)
				continue
			}
			if err == nil {
				o.accept(ctx, st, outcomes)
				if len(st.records) >= st.target {
					return models.StopGoalMet, nil
				}
				next = stepAdvance
			}

		case stepAdvance:
			var more bool
			more, err = o.pager.HasNextPage(ctx, st.page)
			if err == nil && !more {
				return o.pager.EndReason(), nil
			}
			if err == nil {
				err = o.retry(ctx, "advance", func() error {
					if err := o.wait(ctx); err != nil {
						return err
					}
					return o.pager.Advance(ctx, st.page)
				})
			}
			if errors.Is(err, models.ErrNavigationExhausted) {
				return o.pager.EndReason(), nil
			}
			if err == nil {
				st.page++
				o.publish(st)
				next = stepExtract
			}
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		lastErr = err
		st.failures++
		o.publish(st)
		slog.Warn("crawler: page failed",
			"page", st.page,
			"consecutive_failures", st.failures,
			"max", o.cfg.MaxConsecutiveFailures,
			"error", err,
		)
		if st.failures >= o.cfg.MaxConsecutiveFailures {
			slog.Error("crawler: failure threshold reached, aborting", "page", st.page, "collected", len(st.records))
			return models.StopFailureThreshold, lastErr
		}
	}
}

// pause suspends the loop until the operator resolves a challenge.
func (o *Orchestrator) pause(ctx context.Context, st *state) error {
	st.paused = true
	o.transition(st, models.PhasePaused)
	err := o.browser.AwaitManualResolution(ctx)
	st.paused = false
	if err != nil {
		return err
	}
	o.transition(st, models.PhaseRunning)
	slog.Info("crawler: resuming after challenge", "page", st.page)
	return nil
}

// wait applies the optional minimum interval between page requests.
func (o *Orchestrator) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}

func (o *Orchestrator) transition(st *state, phase models.Phase) {
	if st.phase != phase {
		slog.Debug("crawler: state change", "from", st.phase, "to", phase)
	}
	st.phase = phase
	o.publish(st)
}

func (o *Orchestrator) publish(st *state) {
	snap := st.snapshot()
	o.mu.Lock()
	o.snap = snap
	o.mu.Unlock()
	if o.OnStateChange != nil {
		o.OnStateChange(snap)
	}
}

func detail(err error) *models.ErrorDetail {
	var ce *models.CrawlError
	if errors.As(err, &ce) {
		d := ce.ToDetail()
		d.Message = ce.Error()
		return d
	}
	return &models.ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error()}
}
