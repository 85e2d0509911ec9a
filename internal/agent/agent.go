// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/capture"
	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/executor"
	"github.com/xkilldash9x/glimpse/internal/metrics"
	"github.com/xkilldash9x/glimpse/internal/reasoning"
)

// Deps are the collaborators a Loop drives. Screenshots, Journal and Abort are optional.
type Deps struct {
	Capturer    Capturer
	Reasoner    Reasoner
	Executor    ActionExecutor
	Screenshots ScreenshotSink
	Journal     Journal
	// Abort is polled for the whole run, so it also interrupts waits and reasoning calls.
	Abort executor.AbortSignal
}

// Loop runs tasks through the capture, reason, act cycle. A Loop holds no per-run state and
// may serve several runs; device access is serialized by the collaborators.
type Loop struct {
	deps      Deps
	cfg       config.AgentConfig
	reasonCfg config.ReasoningConfig
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Loop. Capturer, Reasoner and Executor are required.
func New(deps Deps, cfg config.AgentConfig, reasonCfg config.ReasoningConfig, logger *zap.Logger) (*Loop, error) {
	switch {
	case deps.Capturer == nil:
		return nil, errors.New("agent requires a capturer")
	case deps.Reasoner == nil:
		return nil, errors.New("agent requires a reasoner")
	case deps.Executor == nil:
		return nil, errors.New("agent requires an action executor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		deps:      deps,
		cfg:       cfg,
		reasonCfg: reasonCfg,
		logger:    logger.Named("agent"),
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

// Run drives task to completion and reports how it ended. Cancelling ctx aborts the run.
// A maxIterations of zero or less falls back to agent.max_iterations.
func (l *Loop) Run(ctx context.Context, task string, maxIterations int, saveScreenshots bool) RunResult {
	if maxIterations <= 0 {
		maxIterations = l.cfg.MaxIterations
	}

	r := &run{
		loop:      l,
		id:        uuid.New(),
		task:      task,
		max:       maxIterations,
		save:      saveScreenshots && l.deps.Screenshots != nil,
		state:     StateIdle,
		iteration: 1,
		convo:     reasoning.NewContext(l.reasonCfg.ContextWindow),
		started:   l.now(),
	}
	r.logger = l.logger.With(zap.String("run_id", r.id.String()))
	if saveScreenshots && l.deps.Screenshots == nil {
		r.logger.Warn("Screenshot saving requested but no screenshot sink is configured")
	}

	metrics.RunsStarted.Inc()
	r.logger.Info("Run starting", zap.String("task", task), zap.Int("max_iterations", maxIterations))
	if l.deps.Journal != nil {
		l.deps.Journal.RunStarted(r.id, task, r.started)
	}

	if strings.TrimSpace(task) == "" {
		r.fail(ErrCodeInvalidTask, errors.New("task is empty"))
		r.transition(StateTerminated)
		return r.result()
	}
	if maxIterations <= 0 {
		r.fail(ErrCodeInvalidTask, fmt.Errorf("max iterations must be positive, got %d", maxIterations))
		r.transition(StateTerminated)
		return r.result()
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.cfg.MaxTaskDuration > 0 {
		runCtx, cancel = context.WithTimeoutCause(ctx, l.cfg.MaxTaskDuration, ErrTaskDurationExceeded)
	}
	defer cancel()
	runCtx, abort := context.WithCancelCause(runCtx)
	defer abort(nil)

	stopWatch := l.watchAbort(runCtx, abort, r.logger)
	r.transition(StateCapturing)
	for r.state != StateTerminated {
		r.transition(r.step(runCtx))
	}
	stopWatch()
	return r.result()
}

// watchAbort polls the abort signal until the returned stop function is called and
// cancels ctx with ErrAborted when it fires. Without a signal it does nothing.
func (l *Loop) watchAbort(ctx context.Context, abort context.CancelCauseFunc, logger *zap.Logger) (stop func()) {
	if l.deps.Abort == nil {
		return func() {}
	}
	interval := l.cfg.AbortPollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	watchCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
			}
			fired, reason := l.deps.Abort.Aborted(watchCtx)
			if watchCtx.Err() != nil {
				return
			}
			if fired {
				logger.Info("Abort signal fired", zap.String("reason", reason))
				abort(fmt.Errorf("%w: %s", ErrAborted, reason))
				return
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// run is the state of one task execution. It is owned by a single goroutine.
type run struct {
	loop   *Loop
	logger *zap.Logger

	id    uuid.UUID
	task  string
	max   int
	save  bool
	state State

	iteration int
	// count is the number of iterations whose decision was obtained.
	count int

	shot     *capture.Screenshot
	shotRef  string
	convo    reasoning.Context
	pending  decision.Decision
	attempts int
	latency  time.Duration
	history  []IterationRecord

	last    *decision.Decision
	status  Status
	message string
	err     error
	started time.Time
}

// step performs the work of the current state and returns the next one.
func (r *run) step(ctx context.Context) State {
	if ctx.Err() != nil {
		return r.halt(ctx)
	}
	switch r.state {
	case StateCapturing:
		return r.capture(ctx)
	case StateReasoning:
		return r.reason(ctx)
	case StateActing:
		return r.act(ctx)
	case StateChecking:
		return r.check(ctx)
	default:
		r.fail(ErrCodeExecutionFailed, fmt.Errorf("no work defined for state %s", r.state))
		return StateTerminated
	}
}

func (r *run) transition(next State) {
	if next == r.state {
		return
	}
	if !r.state.CanTransitionTo(next) {
		r.logger.Error("Illegal state transition",
			zap.Stringer("from", r.state),
			zap.Stringer("to", next),
		)
		r.fail(ErrCodeExecutionFailed, fmt.Errorf("illegal transition %s -> %s", r.state, next))
		next = StateTerminated
	}
	r.logger.Debug("State transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", next),
		zap.Int("iteration", r.iteration),
	)
	metrics.StateTransitions.WithLabelValues(r.state.String(), next.String()).Inc()
	r.state = next
}

// -- States --

func (r *run) capture(ctx context.Context) State {
	start := time.Now()
	shot, err := r.loop.deps.Capturer.Capture(ctx)
	metrics.CaptureDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return r.halt(ctx)
		}
		r.logger.Error("Screen capture failed", zap.Int("iteration", r.iteration), zap.Error(err))
		r.fail(ErrCodeCaptureFailed, err)
		return StateTerminated
	}
	if shot == nil {
		r.fail(ErrCodeCaptureFailed, capture.NewCaptureError(capture.ErrCodeEmptyCapture, errors.New("provider returned no screenshot")))
		return StateTerminated
	}

	r.shot = shot
	r.shotRef = shot.Summary()
	if r.save {
		if ref := r.loop.deps.Screenshots.Save(r.iteration, shot); ref != "" {
			r.shotRef = ref
		}
	}
	return StateReasoning
}

func (r *run) reason(ctx context.Context) State {
	cfg := r.loop.reasonCfg
	req := reasoning.Request{
		Task:       r.task,
		Screenshot: r.shot,
		Context:    r.convo,
		Iteration:  r.iteration,
	}
	log := r.logger.With(zap.Int("iteration", r.iteration))

	var timeouts, rejections int
	start := time.Now()
	for attempt := 1; ; attempt++ {
		d, convo, err := r.loop.deps.Reasoner.Decide(ctx, req)
		r.attempts = attempt
		if err == nil {
			r.latency = time.Since(start)
			metrics.ReasoningDuration.WithLabelValues("ok").Observe(r.latency.Seconds())
			r.pending = d
			r.convo = convo
			r.last = &d
			r.count++
			break
		}
		if ctx.Err() != nil {
			metrics.ReasoningDuration.WithLabelValues("aborted").Observe(time.Since(start).Seconds())
			return r.halt(ctx)
		}

		var timeoutErr *reasoning.TimeoutError
		var parseErr *decision.ParseError
		switch {
		case errors.As(err, &timeoutErr) && timeouts < cfg.TimeoutRetries:
			timeouts++
			metrics.ReasoningRetries.WithLabelValues("timeout").Inc()
			log.Warn("Reasoning call timed out, retrying", zap.Int("attempt", attempt), zap.Error(err))
		case errors.As(err, &parseErr) && rejections < cfg.ParseRetries:
			rejections++
			metrics.ReasoningRetries.WithLabelValues("parse").Inc()
			req.Note = reasoning.RetryNote(err)
			log.Warn("Model answer rejected, asking again", zap.Int("attempt", attempt), zap.Error(err))
		default:
			metrics.ReasoningDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			log.Error("Reasoning failed", zap.Int("attempts", attempt), zap.Error(err))
			r.fail(ErrCodeReasoningFailed, err)
			return StateTerminated
		}
	}

	log.Info("Decision received",
		zap.Stringer("action", r.pending),
		zap.String("rationale", r.pending.Rationale),
		zap.Duration("latency", r.latency),
	)

	term, ok := r.pending.Action.(decision.Terminate)
	if !ok {
		return StateActing
	}
	r.record("terminated")
	r.message = term.Message
	if term.Status == decision.StatusSuccess {
		r.status = StatusSuccess
	} else {
		r.fail(ErrCodeModelGaveUp, fmt.Errorf("%w: %s", ErrModelGaveUp, term.Message))
		r.message = term.Message
	}
	return StateTerminated
}

func (r *run) act(ctx context.Context) State {
	action := r.pending.Action

	var out executor.Outcome
	var err error
	if w, ok := action.(decision.Wait); ok {
		out = r.wait(ctx, w.Duration)
	} else {
		out, err = r.loop.deps.Executor.Execute(ctx, action)
	}

	r.convo = r.convo.WithOutcome(r.iteration, out.String())
	r.record(out.String())

	if err != nil {
		var unavailable *executor.DeviceUnavailableError
		if errors.As(err, &unavailable) {
			r.fail(ErrCodeDeviceUnavailable, err)
		} else {
			r.fail(ErrCodeExecutionFailed, err)
		}
		return StateTerminated
	}
	if out.Aborted() {
		return r.halt(ctx)
	}
	if !out.OK {
		r.logger.Warn("Action did not complete, continuing",
			zap.Int("iteration", r.iteration),
			zap.Stringer("action", r.pending),
			zap.String("reason", out.Reason),
		)
		return StateChecking
	}

	if decision.TouchesDevice(action) {
		if err := r.loop.sleep(ctx, r.loop.cfg.PostActionDelay); err != nil {
			return r.halt(ctx)
		}
	}
	return StateChecking
}

func (r *run) check(ctx context.Context) State {
	r.iteration++
	if r.iteration > r.max {
		r.status = StatusMaxIterations
		r.message = fmt.Sprintf("stopped after %d iterations without the task being reported complete", r.max)
		return StateTerminated
	}
	if err := r.loop.sleep(ctx, r.loop.cfg.IterationDelay); err != nil {
		return r.halt(ctx)
	}
	return StateCapturing
}

// wait carries out a wait decision, capped at agent.max_wait.
func (r *run) wait(ctx context.Context, d time.Duration) executor.Outcome {
	if limit := r.loop.cfg.MaxWait; limit > 0 && d > limit {
		r.logger.Debug("Capping wait", zap.Duration("requested", d), zap.Duration("max", limit))
		d = limit
	}
	if err := r.loop.sleep(ctx, d); err != nil {
		return executor.Outcome{OK: false, Reason: executor.ReasonAborted}
	}
	return executor.Outcome{OK: true, Reason: executor.ReasonOK}
}

// -- Termination --

// halt ends the run because the context is done or an abort signal fired.
func (r *run) halt(ctx context.Context) State {
	cause := context.Cause(ctx)
	switch {
	case ctx.Err() != nil && errors.Is(cause, ErrTaskDurationExceeded):
		r.fail(ErrCodeTaskDuration, fmt.Errorf("%w after %s", ErrTaskDurationExceeded, r.loop.cfg.MaxTaskDuration))
	case ctx.Err() != nil && errors.Is(cause, ErrAborted):
		r.status = StatusAborted
		r.message = fmt.Sprintf("%v during %s", cause, r.state)
	case ctx.Err() != nil:
		r.status = StatusAborted
		r.message = fmt.Sprintf("aborted during %s: %v", r.state, cause)
	default:
		r.status = StatusAborted
		r.message = fmt.Sprintf("aborted by operator during %s", r.state)
	}
	return StateTerminated
}

func (r *run) fail(code ErrorCode, err error) {
	r.status = StatusError
	r.err = &RunError{Code: code, State: r.state, Iteration: r.iteration, Err: err}
	r.message = err.Error()
}

// record appends the current iteration to the history.
func (r *run) record(outcome string) {
	rec := IterationRecord{
		Index:             r.iteration,
		ScreenshotRef:     r.shotRef,
		Decision:          r.pending,
		Outcome:           outcome,
		Timestamp:         r.loop.now(),
		ReasoningAttempts: r.attempts,
		Latency:           r.latency,
	}
	if r.shot != nil {
		rec.ScreenshotWidth, rec.ScreenshotHeight = r.shot.Width, r.shot.Height
	}
	r.history = append(r.history, rec)
	if r.loop.deps.Journal != nil {
		r.loop.deps.Journal.IterationCompleted(r.id, rec)
	}
}

func (r *run) result() RunResult {
	finished := r.loop.now()
	history := make([]IterationRecord, len(r.history))
	copy(history, r.history)

	res := RunResult{
		RunID:          r.id,
		Task:           r.task,
		Status:         r.status,
		IterationCount: r.count,
		ElapsedTime:    finished.Sub(r.started),
		FinalMessage:   r.message,
		LastDecision:   r.last,
		LastError:      r.err,
		History:        history,
		StartedAt:      r.started,
		FinishedAt:     finished,
	}

	metrics.RunsCompleted.WithLabelValues(string(res.Status)).Inc()
	metrics.RunDuration.Observe(res.ElapsedTime.Seconds())
	metrics.RunIterations.Observe(float64(res.IterationCount))

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int("iterations", res.IterationCount),
		zap.Duration("elapsed", res.ElapsedTime),
		zap.String("message", res.FinalMessage),
	}
	if res.LastError != nil {
		r.logger.Error("Run finished", append(fields, zap.Error(res.LastError))...)
	} else {
		r.logger.Info("Run finished", fields...)
	}

	if r.loop.deps.Journal != nil {
		r.loop.deps.Journal.RunFinished(res)
	}
	return res
}

// sleepContext pauses for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
