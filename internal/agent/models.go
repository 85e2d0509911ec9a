// internal/agent/models.go
package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/glimpse/internal/decision"
)

// Status is how a run ended.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusMaxIterations Status = "max_iterations_reached"
	StatusAborted       Status = "aborted"
	StatusError         Status = "error"
)

// IterationRecord describes one iteration whose decision was obtained. Records are never
// modified after they are appended to a run's history.
type IterationRecord struct {
	Index int
	// ScreenshotRef is the persisted file path, or an in-memory description when the
	// screenshot was not saved.
	ScreenshotRef     string
	ScreenshotWidth   int
	ScreenshotHeight  int
	Decision          decision.Decision
	Outcome           string
	Timestamp         time.Time
	ReasoningAttempts int
	// Latency is the time spent reasoning, retries included.
	Latency time.Duration
}

// RunResult is produced once, when a run terminates.
type RunResult struct {
	RunID          uuid.UUID
	Task           string
	Status         Status
	IterationCount int
	ElapsedTime    time.Duration
	FinalMessage   string
	LastDecision   *decision.Decision
	LastError      error
	History        []IterationRecord
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Succeeded reports whether the model declared the task complete.
func (r RunResult) Succeeded() bool { return r.Status == StatusSuccess }

// ErrorString returns LastError as text, or "" when the run ended without one.
func (r RunResult) ErrorString() string {
	if r.LastError == nil {
		return ""
	}
	return r.LastError.Error()
}
