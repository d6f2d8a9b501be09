// Package phase classifies a sit-to-stand cycle into discrete phases from the
// hip-height fraction and knee flexion signals.
package phase

import "math"

// Phase is one stage of a sit-to-stand repetition.
type Phase string

const (
	Standing  Phase = "standing"
	GoingDown Phase = "going_down"
	Seated    Phase = "seated"
	GoingUp   Phase = "going_up"
)

var labels = map[Phase]string{
	Standing:  "Standing",
	GoingDown: "Going down",
	Seated:    "Seated",
	GoingUp:   "Going up",
}

// Label returns a human readable name for display.
func (p Phase) Label() string {
	if l, ok := labels[p]; ok {
		return l
	}
	return string(p)
}

// InRep reports whether p is part of a repetition in progress.
func (p Phase) InRep() bool {
	return p == GoingDown || p == Seated || p == GoingUp
}

// Config holds the transition thresholds. Fractions are dimensionless, velocities
// are per second and angles are degrees.
type Config struct {
	TopBand    float64 `json:"top_band"`
	BottomBand float64 `json:"bottom_band"`
	VelDown    float64 `json:"vel_down"`
	VelUp      float64 `json:"vel_up"`
	VelStill   float64 `json:"vel_still"`
	HoldMs     int64   `json:"hold_ms"`

	KneeStandMax  float64 `json:"knee_stand_max"`
	KneeSeatedMin float64 `json:"knee_seated_min"`
	KneeMargin    float64 `json:"knee_margin"`
	KneeFlexVel   float64 `json:"knee_flex_vel"`
	KneeExtVel    float64 `json:"knee_ext_vel"`
	KneeStillVel  float64 `json:"knee_still_vel"`

	MinSpan   float64 `json:"min_span"`
	FracAlpha float64 `json:"frac_alpha"`
	KneeAlpha float64 `json:"knee_alpha"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		TopBand:       0.75,
		BottomBand:    0.50,
		VelDown:       -0.25,
		VelUp:         0.25,
		VelStill:      0.50,
		HoldMs:        100,
		KneeStandMax:  150,
		KneeSeatedMin: 90,
		KneeMargin:    5,
		KneeFlexVel:   -50,
		KneeExtVel:    50,
		KneeStillVel:  10,
		MinSpan:       0.02,
		FracAlpha:     0.3,
		KneeAlpha:     0.3,
	}
}

// Signals are the filtered features a transition is decided on.
type Signals struct {
	Frac    float64 // hip height fraction, 1 standing and 0 hip at knee level
	FracVel float64
	Knee    float64 // knee included angle, valid only when KneeOK
	KneeOK  bool
	KneeVel float64

	// TopHeld and BottomHeld report that the still-at-band condition has held
	// for at least HoldMs.
	TopHeld    bool
	BottomHeld bool
}

// Next returns the phase that follows p given s. The first matching rule for
// the current phase wins; with no match the phase is kept.
func Next(p Phase, s Signals, cfg Config) Phase {
	still := math.Abs(s.FracVel) < cfg.VelStill

	switch p {
	case Standing:
		kneeDown := s.KneeOK && s.Knee < cfg.KneeStandMax && s.KneeVel < cfg.KneeFlexVel
		if (s.FracVel < cfg.VelDown && s.Frac < cfg.TopBand) || kneeDown {
			return GoingDown
		}

	case GoingDown:
		kneeBottom := s.KneeOK && s.Knee <= cfg.KneeSeatedMin && math.Abs(s.KneeVel) < cfg.KneeStillVel
		switch {
		case (s.Frac <= cfg.BottomBand && still && s.BottomHeld) || kneeBottom:
			return Seated
		case s.KneeOK && s.KneeVel >= cfg.KneeExtVel:
			return GoingUp
		case s.KneeOK && s.Knee > cfg.KneeStandMax:
			return Standing
		}

	case Seated:
		kneeUp := s.KneeOK && (s.KneeVel >= cfg.KneeExtVel || s.Knee > cfg.KneeSeatedMin+cfg.KneeMargin)
		if (s.FracVel > cfg.VelUp && s.Frac > cfg.BottomBand) || kneeUp {
			return GoingUp
		}

	case GoingUp:
		kneeTop := s.KneeOK && s.Knee >= cfg.KneeStandMax-cfg.KneeMargin
		if (s.Frac >= cfg.TopBand && still && s.TopHeld) || kneeTop {
			return Standing
		}
	}
	return p
}

// Edge is the phase change detected on a single frame.
type Edge struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
	AtMs int64 `json:"at_ms"`
}

// Changed reports whether the frame moved to a new phase.
func (e Edge) Changed() bool {
	return e.From != e.To
}

// Is reports whether the edge is the from -> to transition.
func (e Edge) Is(from, to Phase) bool {
	return e.From == from && e.To == to
}
