package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
)

// CSVSink appends records to a CSV file with the fixed models.Columns header.
// Appending to a file whose header differs is refused, since downstream
// parsing relies on the column contract.
type CSVSink struct {
	path string
}

// NewCSVSink creates a sink for path. The file is created on first write.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

// Path returns the output file path.
func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Write(_ context.Context, records []models.ListingRecord) error {
	needHeader, err := s.checkHeader()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(models.Columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write(r.Row()); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Sync()
}

func (s *CSVSink) Close() error { return nil }

// checkHeader reports whether the file is new or empty and needs a header.
func (s *CSVSink) checkHeader() (bool, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("open output csv: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read csv header: %w", err)
	}
	if !slices.Equal(header, models.Columns) {
		return false, fmt.Errorf("%s has header %v, want %v", s.path, header, models.Columns)
	}
	return false, nil
}

// ReadCSV loads every record from a file written by CSVSink.
// A missing file yields no records and no error.
func ReadCSV(path string) ([]models.ListingRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(models.Columns)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if !slices.Equal(header, models.Columns) {
		return nil, fmt.Errorf("unexpected csv header %v", header)
	}

	var records []models.ListingRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec, err := models.ParseRow(row)
		if err != nil {
			return records, fmt.Errorf("csv line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SeenFromCSV builds a MemorySeen holding every listing URL in path.
func SeenFromCSV(path string) (*MemorySeen, error) {
	records, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	seen := NewMemorySeen()
	for _, r := range records {
		seen.urls[r.URL] = struct{}{}
	}
	return seen, nil
}
