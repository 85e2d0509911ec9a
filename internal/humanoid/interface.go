// internal/humanoid/interface.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/glimpse/api/schemas"
)

// Executor is the low-level input channel the Humanoid drives. Coordinates are in the
// display's input space (CSS pixels for a browser surface).
type Executor interface {
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	// SendKeys inserts literal text at the focused element.
	SendKeys(ctx context.Context, text string) error
	// DispatchStructuredKey presses and releases a named key with modifiers held.
	DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error
}

// Controller is the pointer and keyboard surface used to carry out decisions.
type Controller interface {
	MoveTo(ctx context.Context, target Vector2D) error
	Click(ctx context.Context, target Vector2D, button schemas.MouseButton, count int) error
	Drag(ctx context.Context, from, to Vector2D) error
	Type(ctx context.Context, text string) error
	Shortcut(ctx context.Context, key schemas.KeyEventData) error
	Scroll(ctx context.Context, dx, dy float64) error
	Position() Vector2D
}

var _ Controller = (*Humanoid)(nil)
