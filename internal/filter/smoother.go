// Package filter provides the scalar signal conditioning primitives shared by
// the gates and the phase machine: exponential smoothing, finite-difference
// velocity, hold timers and a debounced two-threshold switch.
package filter

// Smoother is an exponential moving average. The first sample initializes the
// state without smoothing.
type Smoother struct {
	alpha  float64
	value  float64
	primed bool
}

// NewSmoother creates a Smoother with weight alpha given to each new sample.
// alpha is clamped to (0, 1].
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &Smoother{alpha: alpha}
}

// Update blends x into the smoothed value and returns it.
func (s *Smoother) Update(x float64) float64 {
	if !s.primed {
		s.value = x
		s.primed = true
		return x
	}
	s.value = s.alpha*x + (1-s.alpha)*s.value
	return s.value
}

// Value returns the current smoothed value and whether any sample was seen.
func (s *Smoother) Value() (float64, bool) {
	return s.value, s.primed
}

// Reset forgets all history.
func (s *Smoother) Reset() {
	s.value = 0
	s.primed = false
}
