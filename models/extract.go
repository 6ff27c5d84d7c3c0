package models

import "fmt"

// FailureReason classifies why a listing element produced no record.
type FailureReason string

const (
	FailureElementNotFound     FailureReason = "element_not_found"
	FailureStrategiesExhausted FailureReason = "all_strategies_exhausted"
	FailureMalformedField      FailureReason = "malformed_field"
)

// ExtractionFailure is the typed failure half of an ExtractionOutcome.
type ExtractionFailure struct {
	Reason FailureReason `json:"reason"`
	Field  string        `json:"field,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

func (f *ExtractionFailure) Error() string {
	if f.Field == "" {
		return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", f.Reason, f.Field, f.Detail)
}

// ExtractionOutcome is the result for exactly one attempted listing element.
// Exactly one of Record and Failure is set.
type ExtractionOutcome struct {
	Index   int                `json:"index"`
	Record  *ListingRecord     `json:"record,omitempty"`
	Failure *ExtractionFailure `json:"failure,omitempty"`

	// Sources maps each resolved field to the strategy that produced it.
	Sources map[string]string `json:"sources,omitempty"`
}

// OK reports whether the outcome carries a record.
func (o ExtractionOutcome) OK() bool {
	return o.Record != nil && o.Failure == nil
}

// Failed builds a failure outcome.
func Failed(index int, reason FailureReason, field, detail string) ExtractionOutcome {
	return ExtractionOutcome{
		Index:   index,
		Failure: &ExtractionFailure{Reason: reason, Field: field, Detail: detail},
	}
}
