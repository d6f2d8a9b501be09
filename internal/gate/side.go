package gate

import (
	"math"

	"github.com/ayusman/sitstand/internal/detector"
)

// SideConfig tunes the active-side selection.
type SideConfig struct {
	MinVisibility      float64 `json:"min_visibility"`
	DepthDeadBand      float64 `json:"depth_dead_band"`
	FallbackVisibility float64 `json:"fallback_visibility"`
	ConfirmFrames      int     `json:"confirm_frames"`
}

// DefaultSideConfig returns the default side selection settings.
func DefaultSideConfig() SideConfig {
	return SideConfig{
		MinVisibility:      0.2,
		DepthDeadBand:      0.03,
		FallbackVisibility: 0.4,
		ConfirmFrames:      4,
	}
}

// SideSelector picks the body side nearer the camera and only switches after
// the new side has been proposed for ConfirmFrames consecutive frames.
type SideSelector struct {
	cfg    SideConfig
	locked detector.Side
	streak int
}

// NewSideSelector creates a selector with no locked side.
func NewSideSelector(cfg SideConfig) *SideSelector {
	return &SideSelector{cfg: cfg}
}

// Propose returns the side suggested by frame f alone. Depth decides when the
// torso is visible and the sides differ by more than the dead band; otherwise
// the side with more confident landmarks wins, ties going left.
func (s *SideSelector) Propose(f *detector.PoseFrame) detector.Side {
	torso := []int{detector.LeftShoulder, detector.RightShoulder, detector.LeftHip, detector.RightHip}
	if f.AllVisible(s.cfg.MinVisibility, torso...) {
		diff := detector.DepthDiff(f)
		if math.Abs(diff) > s.cfg.DepthDeadBand {
			if diff < 0 {
				return detector.SideLeft
			}
			return detector.SideRight
		}
	}

	count := func(side detector.Side) int {
		n := 0
		for _, i := range detector.LandmarksFor(side).Indices() {
			if f.Visible(i, s.cfg.FallbackVisibility) {
				n++
			}
		}
		return n
	}
	if count(detector.SideLeft) >= count(detector.SideRight) {
		return detector.SideLeft
	}
	return detector.SideRight
}

// Update returns the stabilized active side for frame f.
func (s *SideSelector) Update(f *detector.PoseFrame) detector.Side {
	proposed := s.Propose(f)

	switch {
	case s.locked == "":
		s.locked = proposed
		s.streak = 0
	case proposed != s.locked:
		s.streak++
		if s.streak >= s.cfg.ConfirmFrames {
			s.locked = proposed
			s.streak = 0
		}
	default:
		s.streak = 0
	}
	return s.locked
}

// Locked returns the current side and whether one has been chosen.
func (s *SideSelector) Locked() (detector.Side, bool) {
	return s.locked, s.locked != ""
}

// Reset forgets the locked side.
func (s *SideSelector) Reset() {
	s.locked = ""
	s.streak = 0
}
