// internal/capture/persister.go
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xkilldash9x/glimpse/internal/metrics"
	"go.uber.org/zap"
)

// FileName returns the audit file name for the screenshot of an iteration.
func FileName(iteration int, t time.Time) string {
	return fmt.Sprintf("screenshot_%03d_%s.png", iteration, t.Format("20060102_150405"))
}

type persistJob struct {
	path string
	png  []byte
}

// Persister writes screenshots to disk off the caller's goroutine. When its queue is full the
// screenshot is dropped with a warning instead of blocking.
type Persister struct {
	dir    string
	jobs   chan persistJob
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPersister creates dir if needed and starts the writer goroutine.
func NewPersister(dir string, buffer int, logger *zap.Logger) (*Persister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory '%s': %w", dir, err)
	}
	if buffer <= 0 {
		buffer = 1
	}
	p := &Persister{
		dir:    dir,
		jobs:   make(chan persistJob, buffer),
		logger: logger.Named("persister"),
	}
	p.wg.Add(1)
	go p.loop()
	return p, nil
}

func (p *Persister) loop() {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := os.WriteFile(job.path, job.png, 0o644); err != nil {
			p.logger.Warn("Failed to persist screenshot", zap.String("path", job.path), zap.Error(err))
		}
	}
}

// Save queues shot for writing and returns the path it will be written to. It returns "" when
// the screenshot was dropped.
func (p *Persister) Save(iteration int, shot *Screenshot) string {
	if shot == nil || len(shot.PNG) == 0 {
		return ""
	}
	ts := shot.CapturedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(p.dir, FileName(iteration, ts))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Warn("Screenshot persister is closed; dropping screenshot", zap.Int("iteration", iteration))
		return ""
	}
	select {
	case p.jobs <- persistJob{path: path, png: shot.PNG}:
		return path
	default:
		p.logger.Warn("Screenshot queue full; dropping screenshot", zap.Int("iteration", iteration))
		metrics.ScreenshotsDropped.Inc()
		return ""
	}
}

// Close flushes queued screenshots and stops the writer. It is safe to call more than once.
func (p *Persister) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
