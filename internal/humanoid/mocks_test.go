// internal/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/glimpse/api/schemas"
)

// recordingExecutor records every call. Sleep returns immediately unless the
// context is already done.
type recordingExecutor struct {
	mu     sync.Mutex
	mouse  []schemas.MouseEventData
	text   []string
	keys   []schemas.KeyEventData
	sleeps []time.Duration
	// typed interleaves text and key presses in dispatch order.
	typed strings.Builder

	// failMouseAfter makes DispatchMouseEvent fail once this many events were recorded (0 disables).
	failMouseAfter int
	mouseErr       error
}

func (r *recordingExecutor) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mouse = append(r.mouse, data)
	if r.failMouseAfter > 0 && len(r.mouse) >= r.failMouseAfter && data.Type == schemas.MouseMove {
		return r.mouseErr
	}
	return nil
}

func (r *recordingExecutor) SendKeys(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = append(r.text, text)
	r.typed.WriteString(text)
	return nil
}

func (r *recordingExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, data)
	r.typed.WriteString("<" + data.Key + ">")
	return nil
}

func (r *recordingExecutor) ofType(t schemas.MouseEventType) []schemas.MouseEventData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schemas.MouseEventData
	for _, e := range r.mouse {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingExecutor) totalSleep() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.sleeps {
		total += d
	}
	return total
}

// newDirectHumanoid returns a Humanoid with humanization disabled.
func newDirectHumanoid(exec Executor) *Humanoid {
	cfg := DefaultConfig()
	cfg.Enabled = false
	return newHumanoid(cfg, nil, exec, 1)
}
