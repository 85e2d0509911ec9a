// internal/humanoid/scrolling.go
package humanoid

import (
	"context"
	"math"

	"github.com/xkilldash9x/glimpse/api/schemas"
)

// Scroll turns the wheel at the current pointer position by dx, dy pixels.
// Positive dy scrolls down, positive dx scrolls right. With humanization on the
// distance is split into wheel notches separated by short pauses.
func (h *Humanoid) Scroll(ctx context.Context, dx, dy float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if dx == 0 && dy == 0 {
		return nil
	}
	if !h.cfg.Enabled {
		return h.wheel(ctx, dx, dy)
	}

	notch := h.cfg.ScrollNotch
	if notch <= 0 {
		notch = 100
	}
	notches := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy)) / notch))
	if notches < 1 {
		notches = 1
	}
	stepX, stepY := dx/float64(notches), dy/float64(notches)

	for i := 0; i < notches; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := h.pause(ctx, 40, 15); err != nil {
				return err
			}
		}
		if err := h.wheel(ctx, stepX, stepY); err != nil {
			return err
		}
	}
	return nil
}

func (h *Humanoid) wheel(ctx context.Context, dx, dy float64) error {
	return h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:    schemas.MouseWheel,
		X:       h.currentPos.X,
		Y:       h.currentPos.Y,
		Button:  schemas.ButtonNone,
		Buttons: buttonsBitfield(h.buttonState),
		DeltaX:  dx,
		DeltaY:  dy,
	})
}
