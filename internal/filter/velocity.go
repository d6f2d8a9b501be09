package filter

// MinDtSeconds floors the sample interval so duplicate timestamps cannot blow up the rate.
const MinDtSeconds = 0.01

// Velocity estimates a smoothed signed rate of change (units per second) from
// timestamped samples.
type Velocity struct {
	alpha  float64
	lastT  int64
	lastX  float64
	primed bool
	raw    float64
	smooth float64
}

// NewVelocity creates a Velocity whose raw finite differences are smoothed with alpha.
func NewVelocity(alpha float64) *Velocity {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &Velocity{alpha: alpha}
}

// Update feeds sample x taken at tMs and returns the smoothed velocity.
// The first sample after a reset only primes the estimator and returns 0.
func (v *Velocity) Update(tMs int64, x float64) float64 {
	if v.primed {
		dt := float64(tMs-v.lastT) / 1000
		if dt < MinDtSeconds {
			dt = MinDtSeconds
		}
		v.raw = (x - v.lastX) / dt
		v.smooth = v.alpha*v.raw + (1-v.alpha)*v.smooth
	}
	v.lastT = tMs
	v.lastX = x
	v.primed = true
	return v.smooth
}

// Value returns the last smoothed velocity.
func (v *Velocity) Value() float64 {
	return v.smooth
}

// Raw returns the last unsmoothed finite difference.
func (v *Velocity) Raw() float64 {
	return v.raw
}

// Reset returns the estimator to neutral.
func (v *Velocity) Reset() {
	*v = Velocity{alpha: v.alpha}
}
