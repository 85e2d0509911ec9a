// internal/agent/mocks_test.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/capture"
	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/executor"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
	"github.com/xkilldash9x/glimpse/internal/reasoning"
)

// -- Capture --

type fakeCapturer struct {
	mu    sync.Mutex
	calls int
	// failOn makes the given 1-based call fail with err.
	failOn int
	err    error
}

func (f *fakeCapturer) Capture(ctx context.Context) (*capture.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn == f.calls {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &capture.Screenshot{
		PNG:        []byte{0x89, 'P', 'N', 'G'},
		Width:      1920,
		Height:     1080,
		Scale:      1,
		CapturedAt: time.Date(2026, 3, 1, 12, 0, f.calls, 0, time.UTC),
	}, nil
}

func (f *fakeCapturer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// -- Reasoning --

type reasonStep struct {
	decision decision.Decision
	err      error
	// block waits for the context to end and returns its error.
	block bool
}

// scriptedReasoner answers with steps in order and repeats the last one once they run out.
type scriptedReasoner struct {
	mu       sync.Mutex
	steps    []reasonStep
	requests []reasoning.Request
}

func (s *scriptedReasoner) Decide(ctx context.Context, req reasoning.Request) (decision.Decision, reasoning.Context, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	step := s.steps[idx]
	s.mu.Unlock()

	if step.block {
		<-ctx.Done()
		return decision.Decision{}, req.Context, ctx.Err()
	}
	if step.err != nil {
		return decision.Decision{}, req.Context, step.err
	}
	next := req.Context.Append(reasoning.Entry{
		Iteration:   req.Iteration,
		Observation: req.Screenshot.Summary(),
		Decision:    step.decision,
	})
	return step.decision, next, nil
}

func (s *scriptedReasoner) Requests() []reasoning.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reasoning.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// blockingReasoner calls started and then blocks until the context ends.
type blockingReasoner struct {
	started func()
}

func (b *blockingReasoner) Decide(ctx context.Context, req reasoning.Request) (decision.Decision, reasoning.Context, error) {
	b.started()
	<-ctx.Done()
	return decision.Decision{}, req.Context, ctx.Err()
}

func decide(a decision.Action) reasonStep {
	return reasonStep{decision: decision.Decision{Action: a, Rationale: fmt.Sprintf("next: %s", a)}}
}

func clickAt(x, y float64) reasonStep {
	return decide(decision.Click{At: decision.Point{X: x, Y: y}, Button: decision.ButtonLeft, Mode: decision.ModeSingle})
}

func done(message string) reasonStep {
	return decide(decision.Terminate{Status: decision.StatusSuccess, Message: message})
}

// -- Execution --

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, action decision.Action) (executor.Outcome, error) {
	args := m.Called(ctx, action)
	return args.Get(0).(executor.Outcome), args.Error(1)
}

type clickRecord struct {
	Target humanoid.Vector2D
	Button schemas.MouseButton
	Count  int
}

// recordingController records what reaches the device. onClick, when set, runs before a
// click is recorded and may fail it.
type recordingController struct {
	mu      sync.Mutex
	clicks  []clickRecord
	typed   []string
	onClick func(n int) error
}

var _ humanoid.Controller = (*recordingController)(nil)

func (c *recordingController) MoveTo(context.Context, humanoid.Vector2D) error { return nil }

func (c *recordingController) Click(_ context.Context, target humanoid.Vector2D, button schemas.MouseButton, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onClick != nil {
		if err := c.onClick(len(c.clicks) + 1); err != nil {
			return err
		}
	}
	c.clicks = append(c.clicks, clickRecord{Target: target, Button: button, Count: count})
	return nil
}

func (c *recordingController) Drag(context.Context, humanoid.Vector2D, humanoid.Vector2D) error {
	return nil
}

func (c *recordingController) Type(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typed = append(c.typed, text)
	return nil
}

func (c *recordingController) Shortcut(context.Context, schemas.KeyEventData) error { return nil }
func (c *recordingController) Scroll(context.Context, float64, float64) error       { return nil }
func (c *recordingController) Position() humanoid.Vector2D                          { return humanoid.Vector2D{} }

func (c *recordingController) Clicks() []clickRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]clickRecord, len(c.clicks))
	copy(out, c.clicks)
	return out
}

type fixedResolution schemas.Resolution

func (f fixedResolution) Resolution(context.Context) (schemas.Resolution, error) {
	return schemas.Resolution(f), nil
}

var fullHD = fixedResolution{Width: 1920, Height: 1080, Scale: 1}

func newDeviceExecutor(t *testing.T, ctrl humanoid.Controller) *executor.Executor {
	t.Helper()
	return executor.New(ctrl, fullHD, executor.Options{}, zaptest.NewLogger(t))
}

// -- Sinks --

type fakeSink struct {
	mu    sync.Mutex
	saved []int
}

func (f *fakeSink) Save(iteration int, _ *capture.Screenshot) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, iteration)
	return capture.FileName(iteration, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

type fakeJournal struct {
	mu         sync.Mutex
	started    []uuid.UUID
	iterations []IterationRecord
	finished   []RunResult
}

func (j *fakeJournal) RunStarted(runID uuid.UUID, _ string, _ time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, runID)
}

func (j *fakeJournal) IterationCompleted(_ uuid.UUID, rec IterationRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.iterations = append(j.iterations, rec)
}

func (j *fakeJournal) RunFinished(result RunResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, result)
}

// -- Loop setup --

// sleepRecorder replaces real pauses. It returns immediately but still honours cancellation.
type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	if d > 0 {
		s.slept = append(s.slept, d)
	}
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.slept))
	copy(out, s.slept)
	return out
}

func testConfigs() (config.AgentConfig, config.ReasoningConfig) {
	cfg := config.NewDefaultConfig()
	agentCfg := cfg.Agent()
	agentCfg.IterationDelay = 0
	agentCfg.PostActionDelay = 0
	agentCfg.MaxTaskDuration = 0
	return agentCfg, cfg.Reasoning()
}

func newTestLoop(t *testing.T, deps Deps, logger *zap.Logger, tune func(*config.AgentConfig, *config.ReasoningConfig)) (*Loop, *sleepRecorder) {
	t.Helper()
	agentCfg, reasonCfg := testConfigs()
	if tune != nil {
		tune(&agentCfg, &reasonCfg)
	}
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	loop, err := New(deps, agentCfg, reasonCfg, logger)
	require.NoError(t, err)

	rec := &sleepRecorder{}
	loop.sleep = rec.sleep
	return loop, rec
}

var errScreenGone = errors.New("compositor went away")
