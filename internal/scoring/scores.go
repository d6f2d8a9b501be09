// Package scoring grades completed repetitions and reduces them to a session
// summary.
package scoring

import "math"

// Maximum points per sub-score.
const (
	MaxKnee     = 30
	MaxBack     = 20
	MaxSymmetry = 20
	MaxDepth    = 30
	MaxTotal    = MaxKnee + MaxBack + MaxSymmetry + MaxDepth
)

// Config holds the scoring curves.
type Config struct {
	KneeTarget  float64 `json:"knee_target"`  // full marks at or below, degrees
	KneeFalloff float64 `json:"knee_falloff"` // degrees above target until zero
	KneeCurve   float64 `json:"knee_curve"`

	BackGrace float64 `json:"back_grace"` // full marks at or above, degrees
	BackZero  float64 `json:"back_zero"`

	SymmetryFull float64 `json:"symmetry_full"` // slower/faster ratio kept at full marks
	SymmetryZero float64 `json:"symmetry_zero"`

	DepthMinRatio float64 `json:"depth_min_ratio"`

	TierGood int `json:"tier_good"`
	TierOK   int `json:"tier_ok"`
}

// DefaultConfig returns the default scoring curves.
func DefaultConfig() Config {
	return Config{
		KneeTarget:    90,
		KneeFalloff:   20,
		KneeCurve:     1.8,
		BackGrace:     -5,
		BackZero:      -20,
		SymmetryFull:  1.6,
		SymmetryZero:  2.6,
		DepthMinRatio: 0.7,
		TierGood:      75,
		TierOK:        50,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Knee scores the knee angle at the deepest point. A missing angle scores 0.
func (c Config) Knee(angle float64, ok bool) float64 {
	if !ok {
		return 0
	}
	if angle <= c.KneeTarget {
		return MaxKnee
	}
	t := (angle - c.KneeTarget) / c.KneeFalloff
	faded := MaxKnee * (1 - math.Pow(t, math.Max(1, c.KneeCurve)))
	return clamp(faded, 0, MaxKnee)
}

// Back scores the most backward trunk lean of the rep. Forward lean is not
// penalized.
func (c Config) Back(minBackward float64) float64 {
	if minBackward >= c.BackGrace {
		return MaxBack
	}
	if minBackward <= c.BackZero {
		return 0
	}
	t := (minBackward - c.BackZero) / (c.BackGrace - c.BackZero)
	return clamp(MaxBack*t, 0, MaxBack)
}

// Symmetry compares descent and ascent durations.
func (c Config) Symmetry(downMs, upMs int64) float64 {
	if downMs <= 0 || upMs <= 0 {
		return 0
	}
	slow := math.Max(float64(downMs), float64(upMs))
	fast := math.Min(float64(downMs), float64(upMs))
	ratio := slow / fast

	if ratio <= c.SymmetryFull {
		return MaxSymmetry
	}
	t := (ratio - c.SymmetryFull) / (c.SymmetryZero - c.SymmetryFull)
	return clamp(MaxSymmetry*(1-t), 0, MaxSymmetry)
}

// Depth scores the hip height relative to the knee height in image space.
// Ratios at or above 1 mean the hip reached knee level.
func (c Config) Depth(hipY, kneeY float64) float64 {
	if kneeY == 0 {
		return 0
	}
	ratio := math.Abs(hipY / kneeY)
	if ratio >= 1 {
		return MaxDepth
	}
	if ratio <= c.DepthMinRatio {
		return 0
	}
	t := (ratio - c.DepthMinRatio) / (1 - c.DepthMinRatio)
	return clamp(MaxDepth*t, 0, MaxDepth)
}

// Tier buckets an aggregate score for feedback.
type Tier string

const (
	TierGood Tier = "good"
	TierOK   Tier = "ok"
	TierBad  Tier = "bad"
)

// Tier returns the feedback bucket for total.
func (c Config) Tier(total int) Tier {
	switch {
	case total >= c.TierGood:
		return TierGood
	case total >= c.TierOK:
		return TierOK
	default:
		return TierBad
	}
}
