// internal/humanoid/trajectory.go
package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/xkilldash9x/glimpse/api/schemas"
	"go.uber.org/zap"
)

// easeInOutCubic gives the accelerate-then-decelerate profile of an aimed movement.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration estimates movement time for a distance, with +/- 15% jitter.
func (h *Humanoid) fittsDuration(distance float64) time.Duration {
	w := h.cfg.FittsWidth
	if w <= 0 {
		w = 30
	}
	id := math.Log2(1.0 + distance/w)
	mt := h.dynamic.FittsA + h.dynamic.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	if mt < 0 {
		mt = 0
	}
	return time.Duration(mt * float64(time.Millisecond))
}

// curve is a cubic Bezier segment.
type curve struct {
	p0, p1, p2, p3 Vector2D
}

func (c curve) at(t float64) Vector2D {
	omt := 1.0 - t
	return c.p0.Mul(omt * omt * omt).
		Add(c.p1.Mul(3 * omt * omt * t)).
		Add(c.p2.Mul(3 * omt * t * t)).
		Add(c.p3.Mul(t * t * t))
}

// idealCurve places the control points a third and two thirds of the way along the
// straight line, displaced by the field force and a small random bow.
func (h *Humanoid) idealCurve(start, end Vector2D, field *PotentialField) curve {
	main := end.Sub(start)
	dist := main.Mag()
	dir := main.Normalize()
	normal := Vector2D{X: -dir.Y, Y: dir.X}

	s1 := start.Add(dir.Mul(dist / 3.0))
	s2 := start.Add(dir.Mul(dist * 2.0 / 3.0))

	bow := h.rng.NormFloat64() * dist * 0.05
	p1 := s1.Add(field.NetForce(s1).Mul(dist * 0.1)).Add(normal.Mul(bow))
	p2 := s2.Add(field.NetForce(s2).Mul(dist * 0.1)).Add(normal.Mul(bow * 0.5))

	return curve{p0: start, p1: p1, p2: p2, p3: end}
}

// simulateTrajectory moves the pointer from its current position to end, holding
// whatever button is currently pressed. The final event is dispatched exactly at end.
func (h *Humanoid) simulateTrajectory(ctx context.Context, end Vector2D, field *PotentialField) error {
	start := h.currentPos
	buttons := buttonsBitfield(h.buttonState)
	dist := start.Dist(end)

	if !h.cfg.Enabled || dist < 1.0 {
		return h.dispatchMove(ctx, end, buttons)
	}

	duration := h.fittsDuration(dist)
	steps := int(duration.Seconds() * h.cfg.StepsPerSecond)
	if steps < 2 {
		steps = 2
	}
	path := h.idealCurve(start, end, field)

	var elapsed time.Duration
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		eased := easeInOutCubic(float64(i) / float64(steps))

		scheduled := time.Duration(eased * float64(duration))
		if wait := scheduled - elapsed; wait > 0 {
			if err := h.executor.Sleep(ctx, wait); err != nil {
				return err
			}
			elapsed = scheduled
		}

		point := end
		if i < steps {
			point = h.perturb(path.at(eased), elapsed)
		}
		if err := h.dispatchMove(ctx, point, buttons); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("Failed to dispatch pointer move", zap.Error(err))
			}
			return err
		}
	}
	h.noiseTime += duration.Seconds()
	return nil
}

// perturb adds low-frequency Perlin drift and Gaussian tremor.
func (h *Humanoid) perturb(p Vector2D, elapsed time.Duration) Vector2D {
	x := (h.noiseTime + elapsed.Seconds()) * h.cfg.PerlinFrequency
	amp := h.dynamic.PerlinAmplitude
	drift := Vector2D{X: h.noiseX.Noise1D(x) * amp, Y: h.noiseY.Noise1D(x) * amp}
	return h.tremor(p.Add(drift))
}

func (h *Humanoid) dispatchMove(ctx context.Context, p Vector2D, buttons int64) error {
	err := h.executor.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:    schemas.MouseMove,
		X:       p.X,
		Y:       p.Y,
		Button:  schemas.ButtonNone,
		Buttons: buttons,
	})
	if err != nil {
		return err
	}
	h.currentPos = p
	return nil
}
