package filter

// Hold measures how long a condition has been continuously true.
type Hold struct {
	since  int64
	active bool
}

// Update records cond at nowMs and returns how long it has held, 0 when false.
// The timer starts on the first true frame and clears on the first false frame.
func (h *Hold) Update(nowMs int64, cond bool) int64 {
	if !cond {
		h.active = false
		h.since = 0
		return 0
	}
	if !h.active {
		h.active = true
		h.since = nowMs
	}
	return nowMs - h.since
}

// Held returns the hold duration at nowMs without updating.
func (h *Hold) Held(nowMs int64) int64 {
	if !h.active {
		return 0
	}
	return nowMs - h.since
}

// Active reports whether the condition is currently holding.
func (h *Hold) Active() bool {
	return h.active
}

// Reset clears the timer.
func (h *Hold) Reset() {
	h.since = 0
	h.active = false
}

// Threshold configures a debounced two-threshold switch.
//
// With Inverted false the switch opens when the value rises to Open and closes
// when it falls below Close (Close <= Open). With Inverted true it opens when the
// value falls to Open and closes when it rises to Close (Close >= Open).
// Values between the thresholds keep the current state.
type Threshold struct {
	Open       float64
	Close      float64
	Inverted   bool
	MinDwellMs int64
}

// Hysteresis is a debounced boolean driven by a Threshold.
type Hysteresis struct {
	cfg      Threshold
	open     bool
	lastFlip int64
	flipped  bool
}

// NewHysteresis creates a closed switch.
func NewHysteresis(cfg Threshold) *Hysteresis {
	return &Hysteresis{cfg: cfg}
}

// Want returns the state the thresholds ask for given v, ignoring dwell.
func (h *Hysteresis) Want(v float64) bool {
	c := h.cfg
	if c.Inverted {
		if h.open {
			return v < c.Close
		}
		return v <= c.Open
	}
	if h.open {
		return v >= c.Close
	}
	return v >= c.Open
}

// Update evaluates v at nowMs and returns the (possibly unchanged) state.
// A flip is applied only when MinDwellMs has elapsed since the previous flip.
func (h *Hysteresis) Update(nowMs int64, v float64) bool {
	want := h.Want(v)
	if want != h.open && (!h.flipped || nowMs-h.lastFlip >= h.cfg.MinDwellMs) {
		h.open = want
		h.lastFlip = nowMs
		h.flipped = true
	}
	return h.open
}

// Open reports the current state.
func (h *Hysteresis) Open() bool {
	return h.open
}

// LastFlip returns the timestamp of the most recent flip and whether one happened.
func (h *Hysteresis) LastFlip() (int64, bool) {
	return h.lastFlip, h.flipped
}

// Reset closes the switch and forgets flip history.
func (h *Hysteresis) Reset() {
	h.open = false
	h.lastFlip = 0
	h.flipped = false
}

// ForceClose closes the switch immediately, counting it as a flip when it was open.
func (h *Hysteresis) ForceClose(nowMs int64) {
	if h.open {
		h.open = false
		h.lastFlip = nowMs
		h.flipped = true
	}
}
