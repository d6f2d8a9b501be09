package gate

import (
	"github.com/ayusman/sitstand/internal/detector"
	"github.com/ayusman/sitstand/internal/filter"
)

// OrientationConfig holds the torso yaw thresholds.
type OrientationConfig struct {
	MinVisibility float64 `json:"min_visibility"`
	OpenDeg       float64 `json:"open_deg"`
	CloseDeg      float64 `json:"close_deg"`
	Alpha         float64 `json:"alpha"`
	MinDwellMs    int64   `json:"min_dwell_ms"`
}

// DefaultOrientationConfig returns the default yaw hysteresis.
func DefaultOrientationConfig() OrientationConfig {
	return OrientationConfig{
		MinVisibility: 0.3,
		OpenDeg:       20,
		CloseDeg:      15,
		Alpha:         0.3,
		MinDwellMs:    250,
	}
}

// OrientationState adds the nearer body side to the gate state.
type OrientationState struct {
	State
	Side detector.Side `json:"side,omitempty"`
}

// Orientation opens when the subject is turned far enough from the camera
// for side-view geometry to hold.
type Orientation struct {
	cfg  OrientationConfig
	yaw  *filter.Smoother
	hyst *filter.Hysteresis
}

// NewOrientation creates a closed orientation gate.
func NewOrientation(cfg OrientationConfig) *Orientation {
	return &Orientation{
		cfg: cfg,
		yaw: filter.NewSmoother(cfg.Alpha),
		hyst: filter.NewHysteresis(filter.Threshold{
			Open:       cfg.OpenDeg,
			Close:      cfg.CloseDeg,
			MinDwellMs: cfg.MinDwellMs,
		}),
	}
}

// Update evaluates frame f.
func (g *Orientation) Update(f *detector.PoseFrame) OrientationState {
	if f == nil {
		g.Reset()
		return OrientationState{State: closed(ReasonLowVisibility)}
	}
	now := f.TimestampMs

	torso := []int{detector.LeftShoulder, detector.RightShoulder, detector.LeftHip, detector.RightHip}
	if !f.AllVisible(g.cfg.MinVisibility, torso...) {
		g.invalidate(now)
		return OrientationState{State: closed(ReasonLowVisibility)}
	}

	raw, ok := detector.TorsoYaw(f)
	if !ok {
		g.invalidate(now)
		return OrientationState{State: closed(ReasonBadAngle)}
	}

	yaw := g.yaw.Update(raw)
	open := g.hyst.Update(now, yaw)

	st := OrientationState{
		State: State{Open: open, Metric: metric(yaw), Reason: ReasonOK},
		Side:  detector.CloserSide(f),
	}
	if open {
		if flip, ok := g.hyst.LastFlip(); ok {
			st.HeldMs = now - flip
		}
	} else {
		st.Reason = ReasonTooFrontal
	}
	return st
}

func (g *Orientation) invalidate(now int64) {
	g.yaw.Reset()
	g.hyst.ForceClose(now)
}

// Reset returns the gate to its initial closed state.
func (g *Orientation) Reset() {
	g.yaw.Reset()
	g.hyst.Reset()
}
