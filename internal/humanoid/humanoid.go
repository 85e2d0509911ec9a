// internal/humanoid/humanoid.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"github.com/xkilldash9x/glimpse/api/schemas"
	"go.uber.org/zap"
)

// Humanoid turns pointer and keyboard intents into event sequences that resemble a
// person operating the device. It tracks where it last left the pointer and which
// button is held. All public methods hold the mutex for the full action, so
// concurrent callers are serialized.
type Humanoid struct {
	mu sync.Mutex

	cfg      Config
	base     persona
	dynamic  persona
	logger   *zap.Logger
	executor Executor

	currentPos   Vector2D
	buttonState  schemas.MouseButton
	fatigueLevel float64
	rng          *rand.Rand
	noiseX       *perlin.Perlin
	noiseY       *perlin.Perlin
	// noiseTime advances across moves so drift does not repeat.
	noiseTime float64
}

// New creates a Humanoid with a freshly sampled persona.
func New(cfg Config, logger *zap.Logger, executor Executor) *Humanoid {
	return newHumanoid(cfg, logger, executor, time.Now().UnixNano())
}

// NewTestHumanoid creates a deterministic Humanoid for tests.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	return newHumanoid(DefaultConfig(), zap.NewNop(), executor, seed)
}

func newHumanoid(cfg Config, logger *zap.Logger, executor Executor, seed int64) *Humanoid {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := rand.New(rand.NewSource(seed))
	p := cfg.samplePersona(rng)

	// alpha, beta, octaves
	const alpha, beta, n = 2.0, 2.0, int32(3)
	return &Humanoid{
		cfg:         cfg,
		base:        p,
		dynamic:     p,
		logger:      logger.Named("humanoid"),
		executor:    executor,
		buttonState: schemas.ButtonNone,
		rng:         rng,
		noiseX:      perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:      perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// Position returns where the pointer was last placed.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// SetPosition records a pointer position observed outside the Humanoid, so the next
// path starts from where the pointer really is.
func (h *Humanoid) SetPosition(p Vector2D) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentPos = p
}

// -- Internal helpers (caller holds h.mu) --

// pause sleeps for a Gaussian duration when humanization is on.
func (h *Humanoid) pause(ctx context.Context, meanMs, stdDevMs float64) error {
	if !h.cfg.Enabled {
		return nil
	}
	fatigueFactor := 1.0 + h.fatigueLevel
	ms := fatigueFactor * (meanMs + h.rng.NormFloat64()*stdDevMs)
	if ms <= 0 {
		return nil
	}
	d := time.Duration(ms * float64(time.Millisecond))
	h.recoverFatigue(d)
	return h.executor.Sleep(ctx, d)
}

// holdDuration is uniform in [ClickHoldMin, ClickHoldMax].
func (h *Humanoid) holdDuration() time.Duration {
	lo, hi := h.cfg.ClickHoldMin, h.cfg.ClickHoldMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(h.rng.Int63n(int64(hi-lo)))
}

func (h *Humanoid) tremor(p Vector2D) Vector2D {
	strength := h.dynamic.GaussianStrength * (0.5 + h.rng.Float64())
	return Vector2D{
		X: p.X + h.rng.NormFloat64()*strength,
		Y: p.Y + h.rng.NormFloat64()*strength,
	}
}

func (h *Humanoid) applyFatigue() {
	f := 1.0 + h.fatigueLevel
	h.dynamic.GaussianStrength = h.base.GaussianStrength * f
	h.dynamic.PerlinAmplitude = h.base.PerlinAmplitude * f
	h.dynamic.FittsA = h.base.FittsA * f
}

func (h *Humanoid) updateFatigue(intensity float64) {
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+h.cfg.FatigueIncreaseRate*intensity)
	h.applyFatigue()
}

func (h *Humanoid) recoverFatigue(d time.Duration) {
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-h.cfg.FatigueRecoveryRate*d.Seconds())
	h.applyFatigue()
}

// buttonsBitfield converts a held button into the DOM buttons bitfield.
func buttonsBitfield(b schemas.MouseButton) int64 {
	switch b {
	case schemas.ButtonLeft:
		return 1
	case schemas.ButtonRight:
		return 2
	case schemas.ButtonMiddle:
		return 4
	}
	return 0
}
