// internal/runlog/runlog.go
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/glimpse/internal/agent"
	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/metrics"
)

// Event names written in the "event" key of every line.
const (
	EventRunStarted  = "run_started"
	EventIteration   = "iteration"
	EventRunFinished = "run_finished"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type entry struct {
	event  string
	at     time.Time
	fields []zap.Field
}

// Writer appends run events to a JSON lines file. Events are encoded on a background
// goroutine; when its queue is full they are dropped and counted rather than blocking the
// control loop.
type Writer struct {
	out     *zap.Logger
	sink    zapcore.WriteSyncer
	closer  io.Closer
	entries chan entry
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ agent.Journal = (*Writer)(nil)

// New opens the rotating run log described by cfg.
func New(cfg config.RunLogConfig, logger *zap.Logger) (*Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("run log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory for '%s': %w", cfg.Path, err)
	}
	rotating := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
	}
	w := NewWriter(zapcore.AddSync(rotating), cfg.Buffer, logger)
	w.closer = rotating
	return w, nil
}

// NewWriter starts a Writer on an arbitrary sink.
func NewWriter(sink zapcore.WriteSyncer, buffer int, logger *zap.Logger) *Writer {
	if buffer <= 0 {
		buffer = 1
	}
	w := &Writer{
		out:     zap.New(zapcore.NewCore(newEncoder(), sink, zapcore.DebugLevel)),
		sink:    sink,
		entries: make(chan entry, buffer),
		logger:  logger.Named("runlog"),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// newEncoder writes one flat JSON object per event: no level, caller or stack, and reflected
// values go through jsoniter.
func newEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "event",
		TimeKey:        "ts",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
		NewReflectedEncoder: func(w io.Writer) zapcore.ReflectedEncoder {
			return json.NewEncoder(w)
		},
	})
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for e := range w.entries {
		if ce := w.out.Check(zapcore.InfoLevel, e.event); ce != nil {
			ce.Time = e.at
			ce.Write(e.fields...)
		}
	}
}

func (w *Writer) enqueue(e entry) {
	if e.at.IsZero() {
		e.at = time.Now()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("Run log is closed; dropping event", zap.String("event", e.event))
		metrics.RunLogDropped.Inc()
		return
	}
	select {
	case w.entries <- e:
	default:
		w.logger.Warn("Run log queue full; dropping event", zap.String("event", e.event))
		metrics.RunLogDropped.Inc()
	}
}

// -- agent.Journal --

func (w *Writer) RunStarted(runID uuid.UUID, task string, at time.Time) {
	w.enqueue(entry{
		event: EventRunStarted,
		at:    at,
		fields: []zap.Field{
			zap.String("run_id", runID.String()),
			zap.String("task", task),
		},
	})
}

func (w *Writer) IterationCompleted(runID uuid.UUID, rec agent.IterationRecord) {
	w.enqueue(entry{
		event: EventIteration,
		at:    rec.Timestamp,
		fields: []zap.Field{
			zap.String("run_id", runID.String()),
			zap.Int("index", rec.Index),
			zap.String("screenshot", rec.ScreenshotRef),
			zap.String("action", string(rec.Decision.Kind())),
			zap.Reflect("decision", rec.Decision),
			zap.String("outcome", rec.Outcome),
			zap.Int("reasoning_attempts", rec.ReasoningAttempts),
			zap.Duration("latency", rec.Latency),
		},
	})
}

func (w *Writer) RunFinished(result agent.RunResult) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID.String()),
		zap.String("status", string(result.Status)),
		zap.Int("iterations", result.IterationCount),
		zap.Duration("elapsed", result.ElapsedTime),
		zap.String("message", result.FinalMessage),
	}
	if result.LastError != nil {
		fields = append(fields, zap.String("error", result.LastError.Error()))
	}
	w.enqueue(entry{event: EventRunFinished, at: result.FinishedAt, fields: fields})
}

// Close drains queued events, flushes the sink and closes the file. It is safe to call more
// than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.entries)
	w.mu.Unlock()

	w.wg.Wait()
	_ = w.sink.Sync()
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
