// internal/runlog/runlog_test.go
package runlog

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/glimpse/internal/agent"
	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/decision"
)

func TestMain(m *testing.M) {
	// lumberjack keeps a mill goroutine per logger for backup cleanup.
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) lines(t *testing.T) []map[string]interface{} {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), sc.Text())
		out = append(out, line)
	}
	return out
}

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(runID uuid.UUID) (agent.IterationRecord, agent.RunResult) {
	click := decision.Decision{
		Action:    decision.Click{At: decision.Point{X: 500, Y: 250}, Button: decision.ButtonLeft, Mode: decision.ModeSingle},
		Rationale: "the start button",
	}
	rec := agent.IterationRecord{
		Index:             1,
		ScreenshotRef:     "screenshots/screenshot_001_20260301_120000.png",
		Decision:          click,
		Outcome:           "ok",
		Timestamp:         at,
		ReasoningAttempts: 2,
		Latency:           1500 * time.Millisecond,
	}
	res := agent.RunResult{
		RunID:          runID,
		Task:           "open the start menu",
		Status:         agent.StatusError,
		IterationCount: 1,
		ElapsedTime:    3 * time.Second,
		FinalMessage:   "device gone",
		LastError:      errors.New("device gone"),
		StartedAt:      at,
		FinishedAt:     at.Add(3 * time.Second),
	}
	return rec, res
}

func TestWriterEvents(t *testing.T) {
	sink := &syncBuffer{}
	w := NewWriter(sink, 8, zaptest.NewLogger(t))

	runID := uuid.New()
	rec, res := sampleRun(runID)
	w.RunStarted(runID, res.Task, at)
	w.IterationCompleted(runID, rec)
	w.RunFinished(res)
	require.NoError(t, w.Close())

	lines := sink.lines(t)
	require.Len(t, lines, 3)

	assert.Equal(t, EventRunStarted, lines[0]["event"])
	assert.Equal(t, runID.String(), lines[0]["run_id"])
	assert.Equal(t, "open the start menu", lines[0]["task"])
	assert.Equal(t, "2026-03-01T12:00:00Z", lines[0]["ts"])
	assert.NotContains(t, lines[0], "level")

	iter := lines[1]
	assert.Equal(t, EventIteration, iter["event"])
	assert.Equal(t, float64(1), iter["index"])
	assert.Equal(t, "click", iter["action"])
	assert.Equal(t, float64(1500), iter["latency"])
	assert.Equal(t, float64(2), iter["reasoning_attempts"])
	dec, ok := iter["decision"].(map[string]interface{})
	require.True(t, ok, "decision is a nested object")
	assert.Equal(t, "click", dec["action"])
	assert.Equal(t, []interface{}{float64(500), float64(250)}, dec["coordinate"])

	assert.Equal(t, EventRunFinished, lines[2]["event"])
	assert.Equal(t, "error", lines[2]["status"])
	assert.Equal(t, "device gone", lines[2]["error"])
}

// blockingSink holds every write until released.
type blockingSink struct {
	syncBuffer
	release chan struct{}
}

func (b *blockingSink) Write(p []byte) (int, error) {
	<-b.release
	return b.syncBuffer.Write(p)
}

func TestWriterDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &blockingSink{release: make(chan struct{})}
	w := NewWriter(sink, 1, zap.New(core))

	const sent = 4
	for i := 0; i < sent; i++ {
		w.RunStarted(uuid.New(), "task", at)
	}
	dropped := logs.FilterMessage("Run log queue full; dropping event").Len()
	assert.GreaterOrEqual(t, dropped, sent-2, "at most one queued and one in flight")

	close(sink.release)
	require.NoError(t, w.Close())
	assert.Len(t, sink.lines(t), sent-dropped)
}

func TestWriterAfterClose(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &syncBuffer{}
	w := NewWriter(sink, 4, zap.New(core))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	w.RunStarted(uuid.New(), "late", at)
	assert.Equal(t, 1, logs.FilterMessage("Run log is closed; dropping event").Len())
	assert.Empty(t, sink.lines(t))
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runs.jsonl")
	w, err := New(config.RunLogConfig{Path: path, MaxSize: 1, MaxBackups: 1, Buffer: 4}, zaptest.NewLogger(t))
	require.NoError(t, err)

	w.RunStarted(uuid.New(), "task", at)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"run_started"`)

	_, err = New(config.RunLogConfig{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
