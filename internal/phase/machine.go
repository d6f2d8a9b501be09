package phase

import (
	"math"

	"github.com/ayusman/sitstand/internal/calibration"
	"github.com/ayusman/sitstand/internal/filter"
)

// Input is the per-frame geometry the machine consumes. Heights are normalized
// image coordinates (y grows downward).
type Input struct {
	TimestampMs int64
	HipY        float64
	KneeY       float64
	AnkleY      float64
	Knee        float64
	KneeOK      bool
}

// Output is the machine state after one step.
type Output struct {
	Phase   Phase   `json:"phase"`
	Edge    Edge    `json:"edge"`
	Frac    float64 `json:"frac"`
	FracVel float64 `json:"frac_vel"`
	KneeVel float64 `json:"knee_vel"`

	// Depth is the hip-ankle distance relative to the calibrated standing scale.
	Depth    float64 `json:"depth"`
	DepthVel float64 `json:"depth_vel"`
	DepthOK  bool    `json:"depth_ok"`
}

// Machine tracks the current phase along with the filters and hold timers
// feeding the transition rules.
type Machine struct {
	cfg     Config
	phase   Phase
	fracVel *filter.Velocity
	kneeVel *filter.Velocity
	top     filter.Hold
	bottom  filter.Hold
	calib   *calibration.Depth
}

// NewMachine creates a machine in the standing phase.
func NewMachine(cfg Config, calib calibration.Config) *Machine {
	return &Machine{
		cfg:     cfg,
		phase:   Standing,
		fracVel: filter.NewVelocity(cfg.FracAlpha),
		kneeVel: filter.NewVelocity(cfg.KneeAlpha),
		calib:   calibration.NewDepth(calib),
	}
}

// Fraction returns the clamped hip height fraction between knee and ankle level.
func Fraction(hipY, kneeY, ankleY, minSpan float64) float64 {
	span := math.Max(minSpan, math.Abs(kneeY-ankleY))
	f := (kneeY - hipY) / span
	return math.Max(0, math.Min(1, f))
}

// Step advances the machine by one frame.
func (m *Machine) Step(in Input) Output {
	now := in.TimestampMs
	f := Fraction(in.HipY, in.KneeY, in.AnkleY, m.cfg.MinSpan)
	vel := m.fracVel.Update(now, f)

	// A missing knee angle neither updates nor reports knee velocity.
	var kVel float64
	if in.KneeOK {
		kVel = m.kneeVel.Update(now, in.Knee)
	}

	if m.phase == Standing && f >= m.cfg.TopBand {
		m.calib.Observe(in.HipY, in.AnkleY)
	}
	depth, depthVel, depthOK := m.calib.Fraction(now, in.HipY, in.AnkleY)

	still := math.Abs(vel) < m.cfg.VelStill
	topMs := m.top.Update(now, f >= m.cfg.TopBand && still)
	bottomMs := m.bottom.Update(now, f <= m.cfg.BottomBand && still)

	sig := Signals{
		Frac:       f,
		FracVel:    vel,
		Knee:       in.Knee,
		KneeOK:     in.KneeOK,
		KneeVel:    kVel,
		TopHeld:    m.top.Active() && topMs >= m.cfg.HoldMs,
		BottomHeld: m.bottom.Active() && bottomMs >= m.cfg.HoldMs,
	}

	prev := m.phase
	m.phase = Next(prev, sig, m.cfg)

	return Output{
		Phase:    m.phase,
		Edge:     Edge{From: prev, To: m.phase, AtMs: now},
		Frac:     f,
		FracVel:  vel,
		KneeVel:  kVel,
		Depth:    depth,
		DepthVel: depthVel,
		DepthOK:  depthOK,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Calibration returns the depth calibration owned by the machine.
func (m *Machine) Calibration() *calibration.Depth {
	return m.calib
}

// Reset returns to standing and clears every filter, timer and the calibration lock.
func (m *Machine) Reset() {
	m.phase = Standing
	m.fracVel.Reset()
	m.kneeVel.Reset()
	m.top.Reset()
	m.bottom.Reset()
	m.calib.Reset()
}
