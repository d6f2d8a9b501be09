// Package gate implements the admission gates that decide whether the current
// pose can be trusted: torso orientation, foot stability and the arms-crossed
// posture requirement. Each gate owns its smoothing and timing state and
// degrades to closed on missing or low-confidence landmarks.
package gate

// Reason explains a gate's current state for diagnostics.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonLowVisibility     Reason = "low_visibility"
	ReasonLowVisibilitySide Reason = "low_visibility_side"
	ReasonBadAngle          Reason = "bad_angle"
	ReasonTooFrontal        Reason = "too_frontal"
	ReasonMoving            Reason = "moving"
	ReasonArmExtended       Reason = "arm_extended"
	ReasonAmbiguous         Reason = "ambiguous"
	ReasonHolding           Reason = "holding"
)

// State is the per-frame output of a gate.
type State struct {
	Open   bool     `json:"open"`
	HeldMs int64    `json:"held_ms"`
	Metric *float64 `json:"metric"`
	Reason Reason   `json:"reason"`
}

func closed(reason Reason) State {
	return State{Reason: reason}
}

func metric(v float64) *float64 {
	return &v
}
