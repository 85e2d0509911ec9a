// internal/humanoid/drag.go
package humanoid

import (
	"context"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"go.uber.org/zap"
)

// Drag presses the left button at from, moves to to with the button held and releases.
func (h *Humanoid) Drag(ctx context.Context, from, to Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.updateFatigue(1.5)

	if err := h.moveTo(ctx, from, nil); err != nil {
		return err
	}
	if err := h.pause(ctx, 80, 30); err != nil {
		return err
	}

	// -- Grab --
	if err := h.press(ctx, schemas.ButtonLeft, 1); err != nil {
		return err
	}
	if err := h.pause(ctx, 100, 40); err != nil {
		h.release(context.Background(), schemas.ButtonLeft, 1)
		return err
	}

	// -- Carry --
	field := NewPotentialField()
	strength := h.dynamic.FittsA
	if strength <= 0 {
		strength = 100.0
	}
	field.AddSource(to, strength/1000.0, 150.0)
	field.AddSource(from, -strength/5000.0, 100.0)

	if err := h.simulateTrajectory(ctx, to, field); err != nil {
		h.logger.Warn("Drag movement failed; releasing the button", zap.Error(err))
		h.release(context.Background(), schemas.ButtonLeft, 1)
		return err
	}
	if err := h.pause(ctx, 70, 30); err != nil {
		h.release(context.Background(), schemas.ButtonLeft, 1)
		return err
	}

	// -- Drop --
	return h.release(ctx, schemas.ButtonLeft, 1)
}
