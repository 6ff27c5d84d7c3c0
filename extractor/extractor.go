// Package extractor turns a rendered result page into listing records by
// running every field through a fixed cascade of lookup strategies.
package extractor

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
)

// Extractor is safe for sequential reuse across pages. It holds no per-page state.
type Extractor struct {
	strategies []Strategy
	base       *url.URL
}

// New creates an Extractor. Listing links are resolved against baseURL.
// With no strategies given, DefaultStrategies is used.
func New(baseURL string, strategies ...Strategy) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{strategies: strategies, base: base}, nil
}

// Extract returns exactly one outcome per listing element found in rawHTML.
func (e *Extractor) Extract(rawHTML string) ([]models.ExtractionOutcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	listings := e.Listings(doc)
	outcomes := make([]models.ExtractionOutcome, 0, len(listings))
	for _, l := range listings {
		outcomes = append(outcomes, e.safeExtract(l))
	}
	return outcomes, nil
}

// Listings locates the listing elements of doc and attaches their structured data.
func (e *Extractor) Listings(doc *goquery.Document) []*Listing {
	sel := locate(doc)
	items := pageItems(doc)

	listings := make([]*Listing, 0, sel.Length())
	for i := range sel.Length() {
		listings = append(listings, &Listing{Index: i, Sel: sel.Eq(i)})
	}

	if len(listings) == 0 && len(items) > 0 {
		slog.Debug("extractor: no listing elements, using structured data entries", "entries", len(items))
		for i, it := range items {
			listings = append(listings, &Listing{Index: i, Structured: it, HasStructured: true})
		}
		return listings
	}

	attach(listings, items, e.base)
	return listings
}

func (e *Extractor) safeExtract(l *Listing) (out models.ExtractionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extractor: listing extraction panicked", "index", l.Index, "panic", r)
			out = models.Failed(l.Index, models.FailureStrategiesExhausted, "", fmt.Sprintf("panic: %v", r))
		}
	}()
	return e.ExtractListing(l)
}

// ExtractListing resolves every field of one listing independently.
// A missing price or URL invalidates the record; other fields become Missing.
func (e *Extractor) ExtractListing(l *Listing) models.ExtractionOutcome {
	if l.empty() {
		return models.Failed(l.Index, models.FailureElementNotFound, "", "listing element has no content")
	}

	rec := &models.ListingRecord{}
	sources := make(map[string]string, len(models.Fields))
	for _, field := range models.Fields {
		val, source, err := e.resolve(l, field)
		if val == "" {
			if field == models.FieldPrice || field == models.FieldURL {
				if err != nil {
					return models.Failed(l.Index, models.FailureMalformedField, field, err.Error())
				}
				return models.Failed(l.Index, models.FailureStrategiesExhausted, field, "no strategy located the field")
			}
			continue
		}
		assign(rec, field, val)
		sources[field] = source
	}

	for _, s := range []*string{&rec.Model, &rec.PowerMode, &rec.ProductionDate, &rec.Transmission} {
		if *s == "" {
			*s = models.Missing
		}
	}
	return models.ExtractionOutcome{Index: l.Index, Record: rec, Sources: sources}
}

// resolve runs the cascade for one field. It stops at the first strategy
// whose value normalises; a malformed value falls through to the next one.
func (e *Extractor) resolve(l *Listing, field string) (string, string, error) {
	norm := normalizers[field]
	var lastErr error
	for _, s := range e.strategies {
		raw, ok := s.Lookup(l, field)
		if !ok {
			continue
		}
		v, err := norm(raw, e.base)
		if err != nil {
			slog.Debug("extractor: malformed value, falling through",
				"index", l.Index, "field", field, "strategy", s.Name(), "raw", raw, "error", err)
			lastErr = fmt.Errorf("%s strategy: %w", s.Name(), err)
			continue
		}
		return v, s.Name(), nil
	}
	return "", "", lastErr
}

// assign stores a canonical value. Canonical numeric strings always parse.
func assign(rec *models.ListingRecord, field, v string) {
	switch field {
	case models.FieldModel:
		rec.Model = v
	case models.FieldPrice:
		rec.Price, _ = strconv.ParseFloat(v, 64)
	case models.FieldMileage:
		i, _ := strconv.Atoi(v)
		rec.Mileage = &i
	case models.FieldPower:
		i, _ := strconv.Atoi(v)
		rec.PowerHP = &i
	case models.FieldPowerMode:
		rec.PowerMode = v
	case models.FieldProductionDate:
		rec.ProductionDate = v
	case models.FieldConsumption:
		f, _ := strconv.ParseFloat(v, 64)
		rec.Consumption = &f
	case models.FieldTransmission:
		rec.Transmission = v
	case models.FieldURL:
		rec.URL = v
	}
}

// Records keeps the successful outcomes, in page order.
func Records(outcomes []models.ExtractionOutcome) []models.ListingRecord {
	recs := make([]models.ListingRecord, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			recs = append(recs, *o.Record)
		}
	}
	return recs
}
