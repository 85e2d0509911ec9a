// internal/executor/mapping.go
package executor

import (
	"math"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/humanoid"
)

// Map converts a point on the 1000x1000 decision canvas into the display's input
// coordinate space. The canvas spans the physical resolution; dividing by Scale gives
// input units (CSS pixels on a browser surface). Results are always kept inside the visible
// area; clamped reports whether p itself was off the canvas. The canvas edge (1000) lands on
// the last pixel and is not reported as clamped.
func Map(p decision.Point, res schemas.Resolution) (humanoid.Vector2D, bool) {
	scale := res.Scale
	if scale <= 0 {
		scale = 1
	}
	x := p.X / decision.CanvasSize * float64(res.Width) / scale
	y := p.Y / decision.CanvasSize * float64(res.Height) / scale

	maxX := math.Max(0, float64(res.Width)/scale-1)
	maxY := math.Max(0, float64(res.Height)/scale-1)

	return humanoid.Vector2D{X: clamp(x, 0, maxX), Y: clamp(y, 0, maxY)}, !onCanvas(p.X) || !onCanvas(p.Y)
}

func onCanvas(v float64) bool {
	return v >= 0 && v <= decision.CanvasSize
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
