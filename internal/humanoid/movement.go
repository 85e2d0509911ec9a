// internal/humanoid/movement.go
package humanoid

import (
	"context"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"go.uber.org/zap"
)

// MoveTo moves the pointer to target.
func (h *Humanoid) MoveTo(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveTo(ctx, target, nil)
}

// moveTo assumes the caller holds h.mu.
func (h *Humanoid) moveTo(ctx context.Context, target Vector2D, field *PotentialField) error {
	h.updateFatigue(h.currentPos.Dist(target) / 1000.0)
	return h.simulateTrajectory(ctx, target, field)
}

// Click moves to target and presses button count times. Successive presses carry an
// increasing click count so the surface recognizes double and triple clicks.
func (h *Humanoid) Click(ctx context.Context, target Vector2D, button schemas.MouseButton, count int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if count < 1 {
		count = 1
	}
	if button == "" || button == schemas.ButtonNone {
		button = schemas.ButtonLeft
	}

	if err := h.moveTo(ctx, target, nil); err != nil {
		return err
	}
	if err := h.pause(ctx, 60, 20); err != nil {
		return err
	}

	for i := 1; i <= count; i++ {
		if err := h.press(ctx, button, i); err != nil {
			return err
		}
		if h.cfg.Enabled {
			if err := h.executor.Sleep(ctx, h.holdDuration()); err != nil {
				h.release(context.Background(), button, i)
				return err
			}
		}
		if err := h.release(ctx, button, i); err != nil {
			return err
		}
		if i < count && h.cfg.Enabled {
			if err := h.executor.Sleep(ctx, h.cfg.InterClickPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// press assumes the caller holds h.mu.
func (h *Humanoid) press(ctx context.Context, button schemas.MouseButton, clickCount int) error {
	err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          h.currentPos.X,
		Y:          h.currentPos.Y,
		Button:     button,
		ClickCount: clickCount,
		Buttons:    buttonsBitfield(button),
	})
	if err != nil {
		return err
	}
	h.buttonState = button
	return nil
}

// release assumes the caller holds h.mu. The button state is cleared even when the
// dispatch fails so a broken channel cannot leave the Humanoid stuck mid-drag.
func (h *Humanoid) release(ctx context.Context, button schemas.MouseButton, clickCount int) error {
	if h.buttonState == schemas.ButtonNone {
		return nil
	}
	err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          h.currentPos.X,
		Y:          h.currentPos.Y,
		Button:     button,
		ClickCount: clickCount,
	})
	if err != nil {
		h.logger.Warn("Failed to dispatch mouse release; clearing button state anyway", zap.Error(err))
	}
	h.buttonState = schemas.ButtonNone
	return err
}
