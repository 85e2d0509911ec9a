// internal/display/input.go
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
	"go.uber.org/zap"
)

var _ humanoid.Executor = (*Session)(nil)

const (
	mouseEventTimeout = 10 * time.Second
	keyEventTimeout   = 5 * time.Second
)

// Sleep pauses for d, returning early when ctx or the session ends.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("%w: browser session closed", schemas.ErrDeviceUnavailable)
	}
}

// DispatchMouseEvent sends one pointer event. Coordinates are CSS pixels.
func (s *Session) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))
	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}

	opCtx, cancel := context.WithTimeout(ctx, mouseEventTimeout)
	defer cancel()
	if err := s.run(opCtx, p); err != nil {
		if ctx.Err() == nil && opCtx.Err() == context.DeadlineExceeded {
			s.logger.Debug("Mouse event timed out", zap.Duration("timeout", mouseEventTimeout))
			return fmt.Errorf("mouse event timed out after %v: %w", mouseEventTimeout, opCtx.Err())
		}
		return err
	}
	s.pointer.dispatched(data.X, data.Y)
	return nil
}

// SendKeys inserts text at the focused element as if typed.
func (s *Session) SendKeys(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, keyEventTimeout)
	defer cancel()
	if err := s.run(opCtx, input.InsertText(text)); err != nil {
		return fmt.Errorf("failed to insert text: %w", err)
	}
	return nil
}

// DispatchStructuredKey presses a named key with modifiers held.
func (s *Session) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	seq := keySequence(data)
	actions := make([]chromedp.Action, len(seq))
	for i, ev := range seq {
		actions[i] = ev
	}

	opCtx, cancel := context.WithTimeout(ctx, keyEventTimeout)
	defer cancel()
	if err := s.run(opCtx, actions...); err != nil {
		return fmt.Errorf("failed to dispatch key %q: %w", data.Key, err)
	}
	return nil
}
