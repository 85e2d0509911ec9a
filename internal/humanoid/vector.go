// internal/humanoid/vector.go
package humanoid

import (
	"fmt"
	"math"
)

// Vector2D is a point or displacement in the input coordinate space.
type Vector2D struct {
	X, Y float64
}

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vector2D) Mul(s float64) Vector2D  { return Vector2D{X: v.X * s, Y: v.Y * s} }
func (v Vector2D) Mag() float64            { return math.Hypot(v.X, v.Y) }
func (v Vector2D) Dist(o Vector2D) float64 { return v.Sub(o).Mag() }

// Normalize returns the unit vector in the direction of v, or the zero vector.
func (v Vector2D) Normalize() Vector2D {
	m := v.Mag()
	if m < 1e-9 {
		return Vector2D{}
	}
	return v.Mul(1 / m)
}

// Lerp interpolates linearly between v and o.
func (v Vector2D) Lerp(o Vector2D, t float64) Vector2D {
	return v.Add(o.Sub(v).Mul(t))
}

func (v Vector2D) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", v.X, v.Y)
}
