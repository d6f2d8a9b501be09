package gate

import (
	"math"

	"github.com/ayusman/sitstand/internal/detector"
	"github.com/ayusman/sitstand/internal/filter"
)

// StabilityConfig holds the ankle stillness thresholds.
type StabilityConfig struct {
	MinVisibility float64 `json:"min_visibility"`
	// MaxVelocityPx is the largest smoothed ankle displacement, in pixels per
	// frame, still considered planted.
	MaxVelocityPx float64 `json:"max_velocity_px"`
	HoldMs        int64   `json:"hold_ms"`
	Alpha         float64 `json:"alpha"`
	FrameHeightPx float64 `json:"frame_height_px"`
}

// DefaultStabilityConfig returns the default ankle stillness settings.
func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		MinVisibility: 0.4,
		MaxVelocityPx: 17.5,
		HoldMs:        200,
		Alpha:         0.35,
		FrameHeightPx: 1080,
	}
}

// Stability opens once the active-side ankle has stayed still for HoldMs.
type Stability struct {
	cfg    StabilityConfig
	vel    *filter.Smoother
	hold   filter.Hold
	prev   detector.Landmark
	primed bool
}

// NewStability creates a closed stability gate.
func NewStability(cfg StabilityConfig) *Stability {
	return &Stability{
		cfg: cfg,
		vel: filter.NewSmoother(cfg.Alpha),
	}
}

// Update evaluates the ankle on side s of frame f. Metric is the smoothed
// ankle speed in pixels per frame.
func (g *Stability) Update(f *detector.PoseFrame, s detector.Side) State {
	ankle := detector.LandmarksFor(s).Ankle
	if f == nil || !f.Visible(ankle, g.cfg.MinVisibility) {
		g.Reset()
		return closed(ReasonLowVisibility)
	}
	now := f.TimestampMs
	a := f.Points[ankle]

	step := 0.0
	if g.primed {
		step = math.Hypot(a.X-g.prev.X, a.Y-g.prev.Y)
	}
	g.prev = a
	g.primed = true

	height := math.Max(1, g.cfg.FrameHeightPx)
	speed := g.vel.Update(step)
	still := speed <= g.cfg.MaxVelocityPx/height

	held := g.hold.Update(now, still)
	st := State{
		Open:   still && held >= g.cfg.HoldMs,
		HeldMs: held,
		Metric: metric(speed * height),
		Reason: ReasonOK,
	}
	switch {
	case !still:
		st.Reason = ReasonMoving
	case !st.Open:
		st.Reason = ReasonHolding
	}
	return st
}

// Reset clears the ankle history and the hold timer.
func (g *Stability) Reset() {
	g.vel.Reset()
	g.hold.Reset()
	g.prev = detector.Landmark{}
	g.primed = false
}
