// internal/executor/abort.go
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/glimpse/internal/humanoid"
	"go.uber.org/zap"
)

// AbortSignal is consulted before every device-effecting action, and polled by the agent
// loop between actions.
type AbortSignal interface {
	// Aborted reports whether the run must stop now, and why.
	Aborted(ctx context.Context) (bool, string)
}

// AbortFunc adapts a function to AbortSignal.
type AbortFunc func(ctx context.Context) (bool, string)

func (f AbortFunc) Aborted(ctx context.Context) (bool, string) { return f(ctx) }

// ContextAbort fires once the run's context is cancelled (interrupt or shutdown).
type ContextAbort struct{}

func (ContextAbort) Aborted(ctx context.Context) (bool, string) {
	if err := context.Cause(ctx); err != nil {
		return true, "interrupted: " + err.Error()
	}
	return false, ""
}

// PointerSource reports pointer positions in the display's input space.
type PointerSource interface {
	// OperatorPointer is the last position the surface observed. ok is false when unknown.
	OperatorPointer(ctx context.Context) (pos humanoid.Vector2D, ok bool, err error)
	// LastDispatched is where synthetic input last put the pointer.
	LastDispatched() (pos humanoid.Vector2D, ok bool)
	Viewport(ctx context.Context) (width, height float64, err error)
}

// CornerAbort fires when the operator parks the pointer in a reserved corner. Positions
// produced by our own input are ignored, so a decision that clicks the corner does not
// abort the run.
type CornerAbort struct {
	src    PointerSource
	corner string
	radius float64
	logger *zap.Logger
}

func NewCornerAbort(src PointerSource, corner string, radius float64, logger *zap.Logger) *CornerAbort {
	return &CornerAbort{
		src:    src,
		corner: corner,
		radius: radius,
		logger: logger.Named("abort"),
	}
}

func (c *CornerAbort) Aborted(ctx context.Context) (bool, string) {
	pos, ok, err := c.src.OperatorPointer(ctx)
	if err != nil {
		c.logger.Debug("Could not read operator pointer", zap.Error(err))
		return false, ""
	}
	if !ok {
		return false, ""
	}
	if last, ok := c.src.LastDispatched(); ok && last.Dist(pos) < 0.5 {
		return false, ""
	}

	width, height, err := c.src.Viewport(ctx)
	if err != nil {
		c.logger.Debug("Could not read viewport", zap.Error(err))
		return false, ""
	}
	target := cornerPoint(c.corner, width, height)
	if pos.Dist(target) <= c.radius {
		return true, fmt.Sprintf("pointer parked in %s corner at %s", c.corner, pos)
	}
	return false, ""
}

func cornerPoint(corner string, width, height float64) humanoid.Vector2D {
	var p humanoid.Vector2D
	if strings.HasSuffix(corner, "right") {
		p.X = width - 1
	}
	if strings.HasPrefix(corner, "bottom") {
		p.Y = height - 1
	}
	return p
}

// AnyAbort fires when any of its signals fires; the first reason wins.
type AnyAbort []AbortSignal

func (a AnyAbort) Aborted(ctx context.Context) (bool, string) {
	for _, s := range a {
		if s == nil {
			continue
		}
		if ok, reason := s.Aborted(ctx); ok {
			return true, reason
		}
	}
	return false, ""
}
