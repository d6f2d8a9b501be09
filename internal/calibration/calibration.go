// Package calibration locks a personal standing scale so hip depth can be
// expressed as a dimensionless fraction of the subject's own leg length.
package calibration

import (
	"math"
	"sort"

	"github.com/ayusman/sitstand/internal/filter"
)

// Config bounds the standing sample window.
type Config struct {
	MinSamples int     `json:"min_samples"`
	MaxSamples int     `json:"max_samples"`
	Alpha      float64 `json:"alpha"`
}

// DefaultConfig returns the default calibration window.
func DefaultConfig() Config {
	return Config{
		MinSamples: 5,
		MaxSamples: 40,
		Alpha:      0.3,
	}
}

// Depth collects standing hip-ankle distances and locks their median once
// MinSamples have been seen. The lock is permanent until Reset.
type Depth struct {
	cfg     Config
	samples []float64
	scale   float64
	locked  bool
	vel     *filter.Velocity
}

// NewDepth creates an unlocked calibration.
func NewDepth(cfg Config) *Depth {
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 1
	}
	if cfg.MaxSamples < cfg.MinSamples {
		cfg.MaxSamples = cfg.MinSamples
	}
	return &Depth{
		cfg:     cfg,
		samples: make([]float64, 0, cfg.MaxSamples),
		vel:     filter.NewVelocity(cfg.Alpha),
	}
}

// Observe feeds a standing hip and ankle image height. It is a no-op once locked
// or when the distance is not positive.
func (d *Depth) Observe(hipY, ankleY float64) {
	if d.locked {
		return
	}
	dist := math.Abs(hipY - ankleY)
	if !(dist > 0) {
		return
	}

	d.samples = append(d.samples, dist)
	if len(d.samples) > d.cfg.MaxSamples {
		d.samples = d.samples[1:]
	}

	if len(d.samples) >= d.cfg.MinSamples {
		sorted := append([]float64(nil), d.samples...)
		sort.Float64s(sorted)
		d.scale = sorted[len(sorted)/2]
		d.locked = true
	}
}

// Scale returns the locked scale and whether calibration has completed.
func (d *Depth) Scale() (float64, bool) {
	return d.scale, d.locked
}

// Samples returns how many standing samples are buffered.
func (d *Depth) Samples() int {
	return len(d.samples)
}

// Fraction converts a hip-ankle distance to depth relative to the locked
// standing scale (about 1.0 when standing) and updates the depth velocity.
// ok is false until calibration has locked.
func (d *Depth) Fraction(nowMs int64, hipY, ankleY float64) (frac, vel float64, ok bool) {
	if !d.locked {
		return 0, 0, false
	}
	frac = math.Abs(hipY-ankleY) / d.scale
	return frac, d.vel.Update(nowMs, frac), true
}

// Reset discards samples, the lock and the depth velocity.
func (d *Depth) Reset() {
	d.samples = d.samples[:0]
	d.scale = 0
	d.locked = false
	d.vel.Reset()
}
