// internal/humanoid/config.go
package humanoid

import (
	"math"
	"math/rand"
	"time"

	"github.com/xkilldash9x/glimpse/internal/config"
)

// Config holds the parameters of the input simulation.
//
// The *Mean/*StdDev pairs describe a population; a Humanoid samples its own
// persona from them once at construction so movements stay consistent within a run.
type Config struct {
	// Enabled turns on curved paths, pauses and tremor. When off every
	// operation dispatches the minimal event sequence without sleeping.
	Enabled bool

	// Fitts's law (milliseconds): MT = A + B*log2(1 + D/W).
	FittsAMean, FittsAStdDev float64
	FittsBMean, FittsBStdDev float64
	FittsWidth               float64

	GaussianStrengthMean, GaussianStrengthStdDev float64
	PerlinAmplitudeMean, PerlinAmplitudeStdDev   float64
	PerlinFrequency                              float64

	// StepsPerSecond sets the trajectory sampling rate.
	StepsPerSecond float64

	ClickHoldMin, ClickHoldMax time.Duration
	InterClickPause            time.Duration

	KeyPauseMean, KeyPauseStdDev, KeyPauseMin float64

	// ScrollNotch is the wheel delta of a single notch, in pixels.
	ScrollNotch float64

	FatigueIncreaseRate float64
	FatigueRecoveryRate float64
}

// persona holds the values sampled for one Humanoid.
type persona struct {
	FittsA, FittsB   float64
	GaussianStrength float64
	PerlinAmplitude  float64
}

// DefaultConfig returns a configuration representing an average user.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		FittsAMean: 100.0, FittsAStdDev: 15.0,
		FittsBMean: 120.0, FittsBStdDev: 20.0,
		FittsWidth:           30.0,
		GaussianStrengthMean: 0.5, GaussianStrengthStdDev: 0.1,
		PerlinAmplitudeMean: 2.5, PerlinAmplitudeStdDev: 0.5,
		PerlinFrequency:     0.8,
		StepsPerSecond:      100,
		ClickHoldMin:        50 * time.Millisecond,
		ClickHoldMax:        120 * time.Millisecond,
		InterClickPause:     90 * time.Millisecond,
		KeyPauseMean:        70.0,
		KeyPauseStdDev:      28.0,
		KeyPauseMin:         35.0,
		ScrollNotch:         100,
		FatigueIncreaseRate: 0.005,
		FatigueRecoveryRate: 0.01,
	}
}

// NewConfig derives a simulation config from the input section of the application config.
func NewConfig(in config.InputConfig) Config {
	c := DefaultConfig()
	c.Enabled = in.Humanize
	if in.ScrollNotchPx > 0 {
		c.ScrollNotch = in.ScrollNotchPx
	}
	if in.ClickHoldMinMs > 0 {
		c.ClickHoldMin = time.Duration(in.ClickHoldMinMs) * time.Millisecond
	}
	if in.ClickHoldMaxMs > 0 {
		c.ClickHoldMax = time.Duration(in.ClickHoldMaxMs) * time.Millisecond
	}
	if in.KeyPauseMeanMs > 0 {
		c.KeyPauseMean = in.KeyPauseMeanMs
		c.KeyPauseStdDev = in.KeyPauseMeanMs * 0.4
		c.KeyPauseMin = math.Min(c.KeyPauseMin, in.KeyPauseMeanMs/2)
	}
	return c
}

// samplePersona draws the fixed per-instance parameters.
func (c Config) samplePersona(rng *rand.Rand) persona {
	p := persona{
		FittsA:           sampleGaussian(rng, c.FittsAMean, c.FittsAStdDev),
		FittsB:           sampleGaussian(rng, c.FittsBMean, c.FittsBStdDev),
		GaussianStrength: sampleGaussian(rng, c.GaussianStrengthMean, c.GaussianStrengthStdDev),
		PerlinAmplitude:  sampleGaussian(rng, c.PerlinAmplitudeMean, c.PerlinAmplitudeStdDev),
	}
	p.FittsA = math.Max(10, p.FittsA)
	p.FittsB = math.Max(10, p.FittsB)
	p.GaussianStrength = math.Max(0, p.GaussianStrength)
	p.PerlinAmplitude = math.Max(0, p.PerlinAmplitude)
	return p
}

func sampleGaussian(rng *rand.Rand, mean, stdDev float64) float64 {
	if rng == nil {
		return mean
	}
	return mean + rng.NormFloat64()*stdDev
}
