// internal/humanoid/potentialfield.go
package humanoid

import "math"

// ForceSource is a point that attracts (positive strength) or repels (negative
// strength) the cursor path.
type ForceSource struct {
	Position Vector2D
	Strength float64
	// Falloff is the distance over which the force decays by a factor of e.
	Falloff float64
}

// PotentialField bends generated paths. Drags use it to pull toward the drop
// point and push off the grab point.
type PotentialField struct {
	sources []ForceSource
}

func NewPotentialField() *PotentialField {
	return &PotentialField{}
}

func (pf *PotentialField) AddSource(pos Vector2D, strength, falloff float64) {
	pf.sources = append(pf.sources, ForceSource{Position: pos, Strength: strength, Falloff: falloff})
}

// NetForce sums the exponentially decaying force of every source at p.
func (pf *PotentialField) NetForce(p Vector2D) Vector2D {
	var net Vector2D
	if pf == nil {
		return net
	}
	for _, s := range pf.sources {
		toSource := s.Position.Sub(p)
		dist := toSource.Mag()
		if dist < 1e-9 || s.Falloff <= 0 {
			continue
		}
		magnitude := s.Strength * math.Exp(-dist/s.Falloff)
		net = net.Add(toSource.Mul(magnitude / dist))
	}
	return net
}
