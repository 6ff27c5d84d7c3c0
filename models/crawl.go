package models

import "time"

// Phase is the orchestrator state machine position.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
	PhaseAborted   Phase = "aborted"
)

// StopReason explains why a crawl left the Running phase.
type StopReason string

const (
	StopGoalMet          StopReason = "goal_met"
	StopSiteExhausted    StopReason = "site_exhausted"
	StopPageCap          StopReason = "page_cap_reached"
	StopFailureThreshold StopReason = "failure_threshold"
	StopCancelled        StopReason = "cancelled"
	StopLaunchFailed     StopReason = "launch_failed"
)

// Outcome is the terminal result reported to the caller and the process exit code.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// ExitCode maps an outcome to a process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeCompleted:
		return 0
	case OutcomePartial:
		return 2
	default:
		return 1
	}
}

// CrawlSnapshot is a point-in-time copy of the orchestrator state.
type CrawlSnapshot struct {
	Phase               Phase     `json:"phase"`
	Page                int       `json:"page"`
	Collected           int       `json:"collected"`
	Target              int       `json:"target"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Paused              bool      `json:"paused"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// FieldStats counts how many records resolved each field.
type FieldStats map[string]int

// Report summarises a finished crawl.
type Report struct {
	Outcome    Outcome       `json:"outcome"`
	StopReason StopReason    `json:"stop_reason"`
	Pages      int           `json:"pages"`
	Collected  int           `json:"collected"`
	Target     int           `json:"target"`
	Failures   int           `json:"failed_elements"`
	Duplicates int           `json:"duplicates"`
	Output     string        `json:"output"`
	Duration   time.Duration `json:"duration"`
	FieldStats FieldStats    `json:"field_stats"`
	Error      *ErrorDetail  `json:"error,omitempty"`
}
