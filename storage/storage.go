// Package storage persists listing records and remembers which listing URLs
// have already been collected.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
)

// Sink receives the accumulated records of a crawl.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []models.ListingRecord) error
	Close() error
}

// SeenStore answers whether a listing URL was collected by an earlier run.
type SeenStore interface {
	Seen(ctx context.Context, url string) (bool, error)
	Add(ctx context.Context, urls ...string) error
}

// MultiSink fans a write out to a primary sink and optional secondaries.
// Only a primary failure fails the write; secondary failures are logged.
type MultiSink struct {
	primary     Sink
	secondaries []Sink
}

// NewMultiSink returns a sink writing to primary first, then to each secondary.
func NewMultiSink(primary Sink, secondaries ...Sink) *MultiSink {
	return &MultiSink{primary: primary, secondaries: secondaries}
}

// Name joins the sink names, primary first, e.g. "csv+redis".
func (m *MultiSink) Name() string {
	names := []string{m.primary.Name()}
	for _, s := range m.secondaries {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiSink) Write(ctx context.Context, records []models.ListingRecord) error {
	if err := m.primary.Write(ctx, records); err != nil {
		return models.NewCrawlError(models.ErrKindStorage, m.primary.Name(), err)
	}
	for _, s := range m.secondaries {
		if err := s.Write(ctx, records); err != nil {
			slog.Warn("storage: secondary sink failed", "sink", s.Name(), "records", len(records), "error", err)
			continue
		}
		slog.Debug("storage: secondary sink written", "sink", s.Name(), "records", len(records))
	}
	return nil
}

func (m *MultiSink) Close() error {
	errs := []error{m.primary.Close()}
	for _, s := range m.secondaries {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// MultiSeen reports a URL as seen when any store has it, and records new URLs in all of them.
type MultiSeen []SeenStore

func (ms MultiSeen) Seen(ctx context.Context, url string) (bool, error) {
	var errs []error
	for _, s := range ms {
		ok, err := s.Seen(ctx, url)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

func (ms MultiSeen) Add(ctx context.Context, urls ...string) error {
	var errs []error
	for _, s := range ms {
		if err := s.Add(ctx, urls...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
