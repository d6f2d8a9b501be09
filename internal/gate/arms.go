package gate

import (
	"github.com/ayusman/sitstand/internal/detector"
	"github.com/ayusman/sitstand/internal/filter"
)

// ArmsConfig holds the elbow angle thresholds for the arms-crossed posture.
type ArmsConfig struct {
	MinVisibility float64 `json:"min_visibility"`
	CrossedDeg    float64 `json:"crossed_deg"`
	ExtendedDeg   float64 `json:"extended_deg"`
	Alpha         float64 `json:"alpha"`
	HoldMs        int64   `json:"hold_ms"`
}

// DefaultArmsConfig returns the default elbow thresholds.
func DefaultArmsConfig() ArmsConfig {
	return ArmsConfig{
		MinVisibility: 0.10,
		CrossedDeg:    135,
		ExtendedDeg:   155,
		Alpha:         0.35,
		HoldMs:        3,
	}
}

// Arms reports whether the arms are bent across the chest. Angles at or below
// CrossedDeg want the gate open, at or above ExtendedDeg force it closed, and
// anything in between keeps the previous decision.
type Arms struct {
	cfg   ArmsConfig
	angle *filter.Smoother
	hyst  *filter.Hysteresis
	hold  filter.Hold
}

// NewArms creates a closed arms gate.
func NewArms(cfg ArmsConfig) *Arms {
	return &Arms{
		cfg:   cfg,
		angle: filter.NewSmoother(cfg.Alpha),
		hyst: filter.NewHysteresis(filter.Threshold{
			Open:     cfg.CrossedDeg,
			Close:    cfg.ExtendedDeg,
			Inverted: true,
		}),
	}
}

// Update evaluates the shoulder, elbow and wrist on side s of frame f.
// Metric is the smoothed elbow angle in degrees.
func (g *Arms) Update(f *detector.PoseFrame, s detector.Side) State {
	lm := detector.LandmarksFor(s)
	if f == nil || !f.AllVisible(g.cfg.MinVisibility, lm.Shoulder, lm.Elbow, lm.Wrist) {
		g.Reset()
		return closed(ReasonLowVisibilitySide)
	}

	raw, ok := detector.ElbowAngle2D(f, s)
	if !ok {
		g.Reset()
		return closed(ReasonBadAngle)
	}

	now := f.TimestampMs
	angle := g.angle.Update(raw)
	crossed := g.hyst.Update(now, angle)
	held := g.hold.Update(now, crossed)

	st := State{
		Open:   crossed && held >= g.cfg.HoldMs,
		HeldMs: held,
		Metric: metric(angle),
		Reason: ReasonOK,
	}
	if !st.Open {
		switch {
		case angle >= g.cfg.ExtendedDeg:
			st.Reason = ReasonArmExtended
		case angle > g.cfg.CrossedDeg:
			st.Reason = ReasonAmbiguous
		default:
			st.Reason = ReasonHolding
		}
	}
	return st
}

// Reset clears the smoothed angle and hold state.
func (g *Arms) Reset() {
	g.angle.Reset()
	g.hyst.Reset()
	g.hold.Reset()
}
