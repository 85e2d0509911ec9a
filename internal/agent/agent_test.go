// internal/agent/agent_test.go
package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/capture"
	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/executor"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
	"github.com/xkilldash9x/glimpse/internal/reasoning"
)

func TestNewRequiresCollaborators(t *testing.T) {
	agentCfg, reasonCfg := testConfigs()
	full := Deps{Capturer: &fakeCapturer{}, Reasoner: &scriptedReasoner{}, Executor: &mockExecutor{}}

	for name, deps := range map[string]Deps{
		"capturer": {Reasoner: full.Reasoner, Executor: full.Executor},
		"reasoner": {Capturer: full.Capturer, Executor: full.Executor},
		"executor": {Capturer: full.Capturer, Reasoner: full.Reasoner},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(deps, agentCfg, reasonCfg, nil)
			assert.ErrorContains(t, err, name)
		})
	}

	loop, err := New(full, agentCfg, reasonCfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, loop)
}

func TestRunTerminateOnFirstIteration(t *testing.T) {
	capt := &fakeCapturer{}
	brain := &scriptedReasoner{steps: []reasonStep{done("Notepad is open")}}
	exec := &mockExecutor{}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: brain, Executor: exec}, nil, nil)

	res := loop.Run(context.Background(), "open notepad", 10, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 1, res.IterationCount)
	assert.Equal(t, "Notepad is open", res.FinalMessage)
	assert.NoError(t, res.LastError)
	require.NotNil(t, res.LastDecision)
	assert.True(t, res.LastDecision.IsTerminal())
	require.Len(t, res.History, 1)
	assert.Equal(t, 1, res.History[0].Index)
	assert.Equal(t, "terminated", res.History[0].Outcome)
	assert.Equal(t, 1, capt.Calls())
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRunCaptureErrorOnFirstIteration(t *testing.T) {
	capt := &fakeCapturer{failOn: 1, err: capture.NewCaptureError(capture.ErrCodeNoSurface, errScreenGone)}
	brain := &scriptedReasoner{steps: []reasonStep{done("unused")}}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: brain, Executor: &mockExecutor{}}, nil, nil)

	res := loop.Run(context.Background(), "open notepad", 10, false)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 0, res.IterationCount)
	assert.Empty(t, res.History)
	assert.Nil(t, res.LastDecision)
	assert.Empty(t, brain.Requests())

	var capErr *capture.CaptureError
	require.True(t, errors.As(res.LastError, &capErr))
	assert.Equal(t, capture.ErrCodeNoSurface, capErr.Code)
	var runErr *RunError
	require.True(t, errors.As(res.LastError, &runErr))
	assert.Equal(t, ErrCodeCaptureFailed, runErr.Code)
	assert.Equal(t, StateCapturing, runErr.State)
	assert.ErrorIs(t, res.LastError, errScreenGone)
}

func TestRunThreeClicksThenTerminate(t *testing.T) {
	ctrl := &recordingController{}
	brain := &scriptedReasoner{steps: []reasonStep{
		clickAt(500, 500), clickAt(500, 500), clickAt(500, 500), done("clicked three times"),
	}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: newDeviceExecutor(t, ctrl)}, nil, nil)

	res := loop.Run(context.Background(), "click the middle three times", 10, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 4, res.IterationCount)

	want := clickRecord{Target: humanoid.Vector2D{X: 960, Y: 540}, Button: schemas.ButtonLeft, Count: 1}
	if diff := cmp.Diff([]clickRecord{want, want, want}, ctrl.Clicks()); diff != "" {
		t.Errorf("device clicks mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.History, 4)
	for i, rec := range res.History {
		assert.Equal(t, i+1, rec.Index, "indices are contiguous from 1")
	}
	assert.Equal(t, "ok", res.History[2].Outcome)
}

func TestRunMaxIterationsBound(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		exec := &mockExecutor{}
		exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: true, Reason: executor.ReasonOK}, nil)
		capt := &fakeCapturer{}
		brain := &scriptedReasoner{steps: []reasonStep{clickAt(100, 100)}}
		loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: brain, Executor: exec}, nil, nil)

		res := loop.Run(context.Background(), "never finishes", n, false)

		assert.Equal(t, StatusMaxIterations, res.Status)
		assert.Equal(t, n, res.IterationCount)
		exec.AssertNumberOfCalls(t, "Execute", n)
		assert.Equal(t, n, capt.Calls())
		assert.NoError(t, res.LastError)
	}
}

func TestRunFallsBackToConfiguredMaxIterations(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: true, Reason: executor.ReasonOK}, nil)
	brain := &scriptedReasoner{steps: []reasonStep{clickAt(1, 1)}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) { a.MaxIterations = 2 })

	res := loop.Run(context.Background(), "never finishes", 0, false)

	assert.Equal(t, StatusMaxIterations, res.Status)
	assert.Equal(t, 2, res.IterationCount)
}

func TestRunAbortDuringActing(t *testing.T) {
	const k = 3
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := &recordingController{onClick: func(n int) error {
		if n == k {
			cancel()
			return context.Canceled
		}
		return nil
	}}
	capt := &fakeCapturer{}
	brain := &scriptedReasoner{steps: []reasonStep{clickAt(250, 750)}}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: brain, Executor: newDeviceExecutor(t, ctrl)}, nil, nil)

	res := loop.Run(ctx, "keep clicking", 10, false)

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, k, res.IterationCount)
	assert.Equal(t, k, capt.Calls(), "no capture after the abort")
	assert.Len(t, ctrl.Clicks(), k-1)
	require.Len(t, res.History, k)
	assert.Equal(t, "failed: aborted", res.History[k-1].Outcome)
	assert.NoError(t, res.LastError)
}

func TestRunAbortSignalWithoutCancellation(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: false, Reason: executor.ReasonAborted}, nil)
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: &scriptedReasoner{steps: []reasonStep{clickAt(1, 1)}}, Executor: exec}, nil, nil)

	res := loop.Run(context.Background(), "task", 10, false)

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 1, res.IterationCount)
	assert.Contains(t, res.FinalMessage, "operator")
}

func TestRunAbortSignalDuringWait(t *testing.T) {
	waiting := make(chan struct{})
	var once sync.Once
	parked := executor.AbortFunc(func(context.Context) (bool, string) {
		select {
		case <-waiting:
			return true, "pointer parked in top-left corner"
		default:
			return false, ""
		}
	})

	capt := &fakeCapturer{}
	brain := &scriptedReasoner{steps: []reasonStep{
		decide(decision.Wait{Duration: time.Minute}),
		done("all good"),
	}}
	exec := &mockExecutor{}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: brain, Executor: exec, Abort: parked}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) {
			a.MaxWait = time.Minute
			a.AbortPollInterval = 5 * time.Millisecond
		})
	loop.sleep = func(ctx context.Context, d time.Duration) error {
		if d > 0 {
			once.Do(func() { close(waiting) })
		}
		return sleepContext(ctx, d)
	}

	start := time.Now()
	res := loop.Run(context.Background(), "wait for the page", 5, false)

	assert.Less(t, time.Since(start), 10*time.Second, "the wait must be cut short")
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 1, res.IterationCount)
	assert.Contains(t, res.FinalMessage, "pointer parked in top-left corner")
	assert.NoError(t, res.LastError)
	assert.Len(t, brain.Requests(), 1, "the model is not asked again after the abort")
	assert.Equal(t, 1, capt.Calls())
	require.Len(t, res.History, 1)
	assert.Equal(t, "failed: aborted", res.History[0].Outcome)
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRunAbortSignalDuringReasoning(t *testing.T) {
	thinking := make(chan struct{})
	var once sync.Once
	brain := &blockingReasoner{started: func() { once.Do(func() { close(thinking) }) }}
	parked := executor.AbortFunc(func(context.Context) (bool, string) {
		select {
		case <-thinking:
			return true, "pointer parked in top-left corner"
		default:
			return false, ""
		}
	})
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: &mockExecutor{}, Abort: parked}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) { a.AbortPollInterval = 5 * time.Millisecond })

	res := loop.Run(context.Background(), "think forever", 5, false)

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 0, res.IterationCount)
	assert.Contains(t, res.FinalMessage, "during reasoning")
	assert.Empty(t, res.History)
}

func TestRunQuietAbortSignalDoesNotInterfere(t *testing.T) {
	quiet := executor.AbortFunc(func(context.Context) (bool, string) { return false, "" })
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: &scriptedReasoner{steps: []reasonStep{done("ok")}}, Executor: &mockExecutor{}, Abort: quiet}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) { a.AbortPollInterval = time.Millisecond })

	res := loop.Run(context.Background(), "task", 5, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.IterationCount)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	capt := &fakeCapturer{}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: &scriptedReasoner{steps: []reasonStep{done("x")}}, Executor: &mockExecutor{}}, nil, nil)

	res := loop.Run(ctx, "task", 10, false)

	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 0, res.IterationCount)
	assert.Equal(t, 0, capt.Calls())
}

func TestRunParseErrorThenValidRetry(t *testing.T) {
	ctrl := &recordingController{}
	brain := &scriptedReasoner{steps: []reasonStep{
		{err: &decision.ParseError{Code: decision.ErrCodeMissingField, Field: "x", Reason: "required field is missing"}},
		decide(decision.TypeText{Text: "hello"}),
		done("typed"),
	}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: newDeviceExecutor(t, ctrl)}, nil, nil)

	res := loop.Run(context.Background(), "type hello", 10, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.IterationCount)
	assert.Equal(t, []string{"hello"}, ctrl.typed, "the rejected answer caused no device effect")

	reqs := brain.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Note)
	assert.Contains(t, reqs[1].Note, "required field is missing")
	assert.Equal(t, reqs[0].Iteration, reqs[1].Iteration, "retry stays on the same iteration")
	assert.Empty(t, reqs[2].Note)
	assert.Equal(t, 2, res.History[0].ReasoningAttempts)
}

func TestRunParseRetriesExhausted(t *testing.T) {
	parseErr := &decision.ParseError{Code: decision.ErrCodeInvalidField, Field: "action", Reason: "unknown action"}
	brain := &scriptedReasoner{steps: []reasonStep{{err: parseErr}}}
	exec := &mockExecutor{}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec}, nil,
		func(_ *config.AgentConfig, r *config.ReasoningConfig) { r.ParseRetries = 2 })

	res := loop.Run(context.Background(), "task", 10, false)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 0, res.IterationCount)
	assert.Len(t, brain.Requests(), 3)
	var got *decision.ParseError
	require.True(t, errors.As(res.LastError, &got))
	assert.Equal(t, "action", got.Field)
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRunReasoningTimeout(t *testing.T) {
	timeout := &reasoning.TimeoutError{Timeout: 45 * time.Second, Err: context.DeadlineExceeded}

	t.Run("retried once", func(t *testing.T) {
		brain := &scriptedReasoner{steps: []reasonStep{{err: timeout}, done("ok")}}
		loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: &mockExecutor{}}, nil, nil)

		res := loop.Run(context.Background(), "task", 5, false)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, 2, res.History[0].ReasoningAttempts)
	})

	t.Run("exhausted", func(t *testing.T) {
		brain := &scriptedReasoner{steps: []reasonStep{{err: timeout}}}
		loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: &mockExecutor{}}, nil, nil)

		res := loop.Run(context.Background(), "task", 5, false)
		assert.Equal(t, StatusError, res.Status)
		assert.Len(t, brain.Requests(), 2)
		var got *reasoning.TimeoutError
		assert.True(t, errors.As(res.LastError, &got))
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		brain := &scriptedReasoner{steps: []reasonStep{{err: &reasoning.EndpointError{StatusCode: 500, Body: "boom"}}}}
		loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: &mockExecutor{}}, nil, nil)

		res := loop.Run(context.Background(), "task", 5, false)
		assert.Equal(t, StatusError, res.Status)
		assert.Len(t, brain.Requests(), 1)
	})
}

func TestRunTerminateFailure(t *testing.T) {
	brain := &scriptedReasoner{steps: []reasonStep{
		decide(decision.Terminate{Status: decision.StatusFailure, Message: "the app is not installed"}),
	}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: &mockExecutor{}}, nil, nil)

	res := loop.Run(context.Background(), "open the app", 5, false)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, res.IterationCount)
	assert.Equal(t, "the app is not installed", res.FinalMessage)
	assert.ErrorIs(t, res.LastError, ErrModelGaveUp)
}

func TestRunWaitIsCappedAndTouchesNoDevice(t *testing.T) {
	exec := &mockExecutor{}
	brain := &scriptedReasoner{steps: []reasonStep{
		decide(decision.Wait{Duration: time.Minute}),
		done("loaded"),
	}}
	loop, sleeps := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) {
			a.MaxWait = 2 * time.Second
			a.PostActionDelay = time.Second
		})

	res := loop.Run(context.Background(), "wait for load", 5, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.IterationCount)
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps.Slept(), "no settle delay after a wait")
}

func TestRunDelays(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: true, Reason: executor.ReasonOK}, nil)
	brain := &scriptedReasoner{steps: []reasonStep{clickAt(10, 10), done("done")}}
	loop, sleeps := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) {
			a.PostActionDelay = time.Second
			a.IterationDelay = 500 * time.Millisecond
		})

	res := loop.Run(context.Background(), "task", 5, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, sleeps.Slept())
}

func TestRunDeviceUnavailable(t *testing.T) {
	exec := &mockExecutor{}
	fatal := &executor.DeviceUnavailableError{Kind: decision.KindClick, Err: schemas.ErrDeviceUnavailable}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: false, Reason: "gone"}, fatal).Once()
	capt := &fakeCapturer{}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: &scriptedReasoner{steps: []reasonStep{clickAt(1, 1)}}, Executor: exec}, nil, nil)

	res := loop.Run(context.Background(), "task", 5, false)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, res.IterationCount)
	assert.Equal(t, 1, capt.Calls())
	var runErr *RunError
	require.True(t, errors.As(res.LastError, &runErr))
	assert.Equal(t, ErrCodeDeviceUnavailable, runErr.Code)
	assert.ErrorIs(t, res.LastError, schemas.ErrDeviceUnavailable)
}

func TestRunRecoverableFailureContinues(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: false, Reason: "blocked"}, nil).Once()
	brain := &scriptedReasoner{steps: []reasonStep{decide(decision.KeyPress{Key: "F4", Modifiers: []decision.Modifier{decision.ModAlt}}), done("gave up on that")}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec}, nil, nil)

	res := loop.Run(context.Background(), "task", 5, false)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "failed: blocked", res.History[0].Outcome)

	reqs := brain.Requests()
	require.Len(t, reqs, 2)
	entries := reqs[1].Context.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed: blocked", entries[0].Outcome, "the model sees how its action went")
}

func TestRunTaskDurationExceeded(t *testing.T) {
	brain := &scriptedReasoner{steps: []reasonStep{{block: true}}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: &mockExecutor{}}, nil,
		func(a *config.AgentConfig, _ *config.ReasoningConfig) { a.MaxTaskDuration = 20 * time.Millisecond })

	res := loop.Run(context.Background(), "slow task", 5, false)

	assert.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.LastError, ErrTaskDurationExceeded)
	var runErr *RunError
	require.True(t, errors.As(res.LastError, &runErr))
	assert.Equal(t, ErrCodeTaskDuration, runErr.Code)
}

func TestRunInvalidInput(t *testing.T) {
	capt := &fakeCapturer{}
	loop, _ := newTestLoop(t, Deps{Capturer: capt, Reasoner: &scriptedReasoner{steps: []reasonStep{done("x")}}, Executor: &mockExecutor{}}, nil, nil)

	res := loop.Run(context.Background(), "   ", 5, false)
	assert.Equal(t, StatusError, res.Status)
	var runErr *RunError
	require.True(t, errors.As(res.LastError, &runErr))
	assert.Equal(t, ErrCodeInvalidTask, runErr.Code)
	assert.Equal(t, 0, capt.Calls())
}

func TestRunScreenshotsAndJournal(t *testing.T) {
	sink := &fakeSink{}
	journal := &fakeJournal{}
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: true, Reason: executor.ReasonOK}, nil)
	brain := &scriptedReasoner{steps: []reasonStep{clickAt(1, 1), done("done")}}
	deps := Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec, Screenshots: sink, Journal: journal}

	t.Run("saved when requested", func(t *testing.T) {
		loop, _ := newTestLoop(t, deps, nil, nil)
		res := loop.Run(context.Background(), "task", 5, true)

		assert.Equal(t, []int{1, 2}, sink.saved)
		assert.Equal(t, "screenshot_001_20260301_120000.png", res.History[0].ScreenshotRef)
		assert.Equal(t, 1920, res.History[0].ScreenshotWidth)

		require.Len(t, journal.started, 1)
		assert.Equal(t, res.RunID, journal.started[0])
		assert.Len(t, journal.iterations, 2)
		require.Len(t, journal.finished, 1)
		assert.Equal(t, res.RunID, journal.finished[0].RunID)
	})

	t.Run("kept in memory otherwise", func(t *testing.T) {
		sink.saved = nil
		brain.requests = nil
		loop, _ := newTestLoop(t, deps, nil, nil)
		res := loop.Run(context.Background(), "task", 5, false)

		assert.Empty(t, sink.saved)
		assert.Contains(t, res.History[0].ScreenshotRef, "screenshot 1920x1080")
	})
}

func TestRunTransitionsAreLegal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executor.Outcome{OK: true, Reason: executor.ReasonOK}, nil)
	brain := &scriptedReasoner{steps: []reasonStep{clickAt(1, 1), clickAt(2, 2), done("done")}}
	loop, _ := newTestLoop(t, Deps{Capturer: &fakeCapturer{}, Reasoner: brain, Executor: exec}, zap.New(core), nil)

	res := loop.Run(context.Background(), "task", 5, false)
	require.Equal(t, StatusSuccess, res.Status)

	names := make(map[string]State)
	for s, n := range stateNames {
		names[n] = s
	}

	var path []string
	for _, entry := range logs.FilterMessage("State transition").All() {
		fields := entry.ContextMap()
		from, to := names[fields["from"].(string)], names[fields["to"].(string)]
		assert.True(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		path = append(path, to.String())
	}
	assert.Equal(t, []string{
		"capturing", "reasoning", "acting", "checking",
		"capturing", "reasoning", "acting", "checking",
		"capturing", "reasoning", "terminated",
	}, path)
}

func TestStateCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateCapturing, true},
		{StateIdle, StateActing, false},
		{StateCapturing, StateReasoning, true},
		{StateReasoning, StateActing, true},
		{StateReasoning, StateCapturing, false},
		{StateActing, StateChecking, true},
		{StateChecking, StateCapturing, true},
		{StateChecking, StateReasoning, false},
		{StateActing, StateTerminated, true},
		{StateTerminated, StateCapturing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.Equal(t, "unknown", State(42).String())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
