// internal/agent/interfaces.go
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/glimpse/internal/capture"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/executor"
	"github.com/xkilldash9x/glimpse/internal/reasoning"
)

// Capturer takes a screenshot of the display.
type Capturer interface {
	Capture(ctx context.Context) (*capture.Screenshot, error)
}

// Reasoner picks the next action from a screenshot and the run's history.
type Reasoner interface {
	Decide(ctx context.Context, req reasoning.Request) (decision.Decision, reasoning.Context, error)
}

// ActionExecutor carries out device actions. A non-nil error is fatal to the run.
type ActionExecutor interface {
	Execute(ctx context.Context, action decision.Action) (executor.Outcome, error)
}

// ScreenshotSink persists screenshots for audit. Save returns the stored reference, or ""
// when the screenshot was dropped. It must not block.
type ScreenshotSink interface {
	Save(iteration int, shot *capture.Screenshot) string
}

// Journal receives run events as they happen. Implementations must not block the loop.
type Journal interface {
	RunStarted(runID uuid.UUID, task string, at time.Time)
	IterationCompleted(runID uuid.UUID, rec IterationRecord)
	RunFinished(result RunResult)
}

var (
	_ Capturer       = (capture.Provider)(nil)
	_ Reasoner       = (reasoning.Client)(nil)
	_ ActionExecutor = (*executor.Executor)(nil)
	_ ScreenshotSink = (*capture.Persister)(nil)
)
