package scoring

import "math"

// Classification of a finished attempt.
type Classification string

const (
	Full     Classification = "full"
	Partial  Classification = "partial"
	Rejected Classification = "rejected"
)

// Snapshot is the geometry captured at the deepest point of a rep.
type Snapshot struct {
	Knee   float64 `json:"knee"`
	KneeOK bool    `json:"knee_ok"`
	HipY   float64 `json:"hip_y"`
	KneeY  float64 `json:"knee_y"`
}

// Scores holds the four sub-scores and their rounded sum.
type Scores struct {
	Knee     float64 `json:"knee"`
	Back     float64 `json:"back"`
	Symmetry float64 `json:"symmetry"`
	Depth    float64 `json:"depth"`
	Total    int     `json:"total"`
}

// Record describes one finished attempt. Rejected records carry no scores.
type Record struct {
	DownStartMs int64    `json:"down_start_ms"`
	DownEndMs   int64    `json:"down_end_ms"`
	UpStartMs   int64    `json:"up_start_ms"`
	EndMs       int64    `json:"end_ms"`
	Snapshot    Snapshot `json:"snapshot"`
	MaxForward  float64  `json:"max_forward_lean"`
	MinBackward float64  `json:"min_backward_lean"`
	ArmsOK      bool     `json:"arms_ok"`
	// BottomReached is set when the seated phase was visited.
	BottomReached bool           `json:"bottom_reached"`
	Class         Classification `json:"class"`
	Scores        Scores         `json:"scores"`
	Tier          Tier           `json:"tier,omitempty"`
}

// DownMs is the descent duration.
func (r Record) DownMs() int64 {
	if r.DownEndMs <= r.DownStartMs {
		return 0
	}
	return r.DownEndMs - r.DownStartMs
}

// UpMs is the ascent duration.
func (r Record) UpMs() int64 {
	if r.UpStartMs == 0 || r.EndMs <= r.UpStartMs {
		return 0
	}
	return r.EndMs - r.UpStartMs
}

// Score derives the sub-scores from the record snapshot.
func (c Config) Score(r Record) Scores {
	s := Scores{
		Knee:     c.Knee(r.Snapshot.Knee, r.Snapshot.KneeOK),
		Back:     c.Back(r.MinBackward),
		Symmetry: c.Symmetry(r.DownMs(), r.UpMs()),
		Depth:    c.Depth(r.Snapshot.HipY, r.Snapshot.KneeY),
	}
	s.Total = int(math.Round(s.Knee + s.Back + s.Symmetry + s.Depth))
	return s
}

// Tracker accumulates a single repetition between the start of the descent and
// the return to standing.
type Tracker struct {
	active   bool
	bottom   bool
	reversed bool
	armsOK   bool

	downStart int64
	downEnd   int64
	upStart   int64

	bottomSnap   Snapshot
	reversalSnap Snapshot
	maxForward   float64
	minBackward  float64
}

// Begin starts a new attempt at nowMs, discarding any previous one.
func (t *Tracker) Begin(nowMs int64, armsOpen bool) {
	*t = Tracker{
		active:    true,
		armsOK:    armsOpen,
		downStart: nowMs,
	}
}

// Active reports whether an attempt is in progress.
func (t *Tracker) Active() bool {
	return t.active
}

// ArmsOK reports whether the arms gate has stayed open for the whole attempt.
func (t *Tracker) ArmsOK() bool {
	return t.active && t.armsOK
}

// BottomReached reports whether the attempt reached the seated phase.
func (t *Tracker) BottomReached() bool {
	return t.bottom
}

// Observe folds the arms gate state of an in-rep frame into the attempt.
func (t *Tracker) Observe(armsOpen bool) {
	if t.active {
		t.armsOK = t.armsOK && armsOpen
	}
}

// Lean records a signed trunk lean, positive forward.
func (t *Tracker) Lean(deg float64) {
	if deg > t.maxForward {
		t.maxForward = deg
	}
	if deg < t.minBackward {
		t.minBackward = deg
	}
}

// Bottom marks the seated phase at nowMs.
func (t *Tracker) Bottom(nowMs int64, snap Snapshot) {
	if !t.active {
		return
	}
	t.bottom = true
	t.downEnd = nowMs
	t.bottomSnap = snap
}

// Reversal marks an ascent that began before the seated phase.
func (t *Tracker) Reversal(nowMs int64, snap Snapshot) {
	if !t.active || t.bottom {
		return
	}
	t.reversed = true
	t.downEnd = nowMs
	t.upStart = nowMs
	t.reversalSnap = snap
}

// DescentMs returns how long the current descent has lasted at nowMs, 0 once
// the bottom or a reversal was reached.
func (t *Tracker) DescentMs(nowMs int64) int64 {
	if !t.active || t.bottom || t.reversed {
		return 0
	}
	return nowMs - t.downStart
}

// AscentStart marks leaving the seated phase.
func (t *Tracker) AscentStart(nowMs int64) {
	if t.active {
		t.upStart = nowMs
	}
}

// Abort drops the attempt without a record.
func (t *Tracker) Abort() {
	*t = Tracker{}
}

// Finish closes the attempt at nowMs and returns its record. current is used as
// the snapshot when no reversal was captured. ok is false when no attempt was
// active. The tracker is cleared in every case.
func (t *Tracker) Finish(nowMs int64, current Snapshot, cfg Config) (Record, bool) {
	if !t.active {
		return Record{}, false
	}

	r := Record{
		DownStartMs: t.downStart,
		DownEndMs:   t.downEnd,
		UpStartMs:   t.upStart,
		EndMs:       nowMs,
		MaxForward:  t.maxForward,
		MinBackward: t.minBackward,
		ArmsOK:      t.armsOK,

		BottomReached: t.bottom,
	}

	switch {
	case t.bottom:
		r.Class = Full
		r.Snapshot = t.bottomSnap
	case t.reversed:
		r.Class = Partial
		r.Snapshot = t.reversalSnap
	default:
		r.Class = Partial
		r.Snapshot = current
	}

	if !t.armsOK {
		r.Class = Rejected
	} else {
		r.Scores = cfg.Score(r)
		r.Tier = cfg.Tier(r.Scores.Total)
	}

	*t = Tracker{}
	return r, true
}
