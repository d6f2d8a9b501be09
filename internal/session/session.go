// Package session runs one sit-to-stand test: it owns the gates, the phase
// machine and the repetition tracker, and turns pose frames into frame results
// and events.
package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/sitstand/internal/detector"
	"github.com/ayusman/sitstand/internal/gate"
	"github.com/ayusman/sitstand/internal/phase"
	"github.com/ayusman/sitstand/internal/scoring"
)

var (
	// ErrNotActive is returned when a frame arrives outside a running session.
	ErrNotActive = errors.New("session not active")
	// ErrOutOfOrder is returned for a frame older than the previous one.
	ErrOutOfOrder = errors.New("frame timestamp out of order")
	// ErrNoPose is returned for a nil frame.
	ErrNoPose = errors.New("no pose in frame")
)

// SkipReason says why a frame did not reach the phase machine.
type SkipReason string

const (
	SkipOrientation   SkipReason = "orientation"
	SkipLowConfidence SkipReason = "low_confidence"
	SkipStability     SkipReason = "stability"
	SkipLandmarks     SkipReason = "landmarks"
)

// FrameResult is everything a host needs to render or report one frame.
type FrameResult struct {
	SessionID   string     `json:"session_id"`
	TimestampMs int64      `json:"timestamp_ms"`
	ElapsedMs   int64      `json:"elapsed_ms"`
	RemainingMs int64      `json:"remaining_ms"`
	Skipped     SkipReason `json:"skipped,omitempty"`

	Side        detector.Side         `json:"side,omitempty"`
	Orientation gate.OrientationState `json:"orientation"`
	Stability   gate.State            `json:"stability"`
	Arms        gate.State            `json:"arms"`

	Phase   phase.Phase  `json:"phase"`
	Edge    phase.Edge   `json:"edge"`
	Signals phase.Output `json:"signals"`
	Knee    *float64     `json:"knee,omitempty"`
	Lean    *float64     `json:"lean,omitempty"`
	Stalled bool         `json:"stalled,omitempty"`

	Rep     *scoring.Record `json:"rep,omitempty"`
	Reps    int             `json:"reps"`
	Full    int             `json:"full"`
	Partial int             `json:"partial"`
	History []int           `json:"history"`

	TimeUp  bool             `json:"time_up,omitempty"`
	Summary *scoring.Summary `json:"summary,omitempty"`
}

// Status is a point-in-time view of the session.
type Status struct {
	ID         string      `json:"id"`
	Active     bool        `json:"active"`
	StartedAt  time.Time   `json:"started_at"`
	Phase      phase.Phase `json:"phase"`
	Reps       int         `json:"reps"`
	Full       int         `json:"full"`
	Partial    int         `json:"partial"`
	Rejected   int         `json:"rejected"`
	History    []int       `json:"history"`
	Calibrated bool        `json:"calibrated"`
	ElapsedMs  int64       `json:"elapsed_ms"`
}

// Session processes frames for a single tracked subject. It is safe for
// concurrent use; frames must arrive in non-decreasing timestamp order.
type Session struct {
	cfg Config

	orientation *gate.Orientation
	stability   *gate.Stability
	arms        *gate.Arms
	side        *gate.SideSelector
	machine     *phase.Machine
	tracker     scoring.Tracker

	id        string
	active    bool
	startedAt time.Time
	startMs   int64
	lastMs    int64
	seen      bool

	records []scoring.Record
	history []int
	full    int
	partial int
	reject  int
	prev    *FrameResult

	events Dispatcher
	mu     sync.Mutex
}

// New creates an idle session.
func New(cfg Config) *Session {
	return &Session{
		cfg:         cfg,
		orientation: gate.NewOrientation(cfg.Orientation),
		stability:   gate.NewStability(cfg.Stability),
		arms:        gate.NewArms(cfg.Arms),
		side:        gate.NewSideSelector(cfg.Side),
		machine:     phase.NewMachine(cfg.Phase, cfg.Calibration),
	}
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Subscribe registers h for session events.
func (s *Session) Subscribe(h Handler) {
	s.events.Subscribe(h)
}

// Start resets all state and begins a new session with a fresh ID.
func (s *Session) Start() string {
	s.mu.Lock()
	s.reset()
	s.id = uuid.NewString()
	s.active = true
	s.startedAt = time.Now()
	id := s.id
	s.mu.Unlock()

	log.Printf("Session %s started (duration %dms)", id, s.cfg.DurationMs)
	s.events.Emit(Event{Type: EventStarted, SessionID: id})
	return id
}

// Stop ends the session. A repetition in progress is discarded.
func (s *Session) Stop() scoring.Summary {
	s.mu.Lock()
	if !s.active {
		sum := scoring.Summarize(s.records)
		s.mu.Unlock()
		return sum
	}
	sum := s.end()
	ended := s.endedEvent(EndStopped, &sum)
	s.mu.Unlock()

	log.Printf("Session %s stopped: %d reps (%d full, %d partial)", ended.SessionID, sum.Reps, sum.Full, sum.Partial)
	s.events.Emit(ended)
	return sum
}

// Reset zeroes every counter, filter, timer and the calibration lock. The
// session is left idle. Resetting an active session ends it with EndReset
// first.
func (s *Session) Reset() {
	s.mu.Lock()
	var ended []Event
	if s.active {
		sum := s.end()
		ended = append(ended, s.endedEvent(EndReset, &sum))
	}
	s.reset()
	s.mu.Unlock()

	log.Println("Session reset")
	s.events.Emit(ended...)
}

// Tick advances the session clock to nowMs without a pose, so the test
// still times out while nobody is in view. The first Tick or frame after
// Start anchors the clock. Tick reports whether the session ended.
func (s *Session) Tick(nowMs int64) bool {
	s.mu.Lock()
	if !s.active || (s.seen && nowMs < s.lastMs) {
		s.mu.Unlock()
		return false
	}
	s.advance(nowMs)
	if s.cfg.DurationMs <= 0 || s.lastMs-s.startMs < s.cfg.DurationMs {
		s.mu.Unlock()
		return false
	}
	sum := s.end()
	ended := s.endedEvent(EndTimeUp, &sum)
	s.mu.Unlock()

	log.Printf("Session %s time up: %d reps", ended.SessionID, sum.Reps)
	s.events.Emit(ended)
	return true
}

// advance moves the clock to now, anchoring it on first use.
func (s *Session) advance(now int64) {
	if !s.seen {
		s.startMs = now
		s.seen = true
	}
	s.lastMs = now
}

func (s *Session) endedEvent(reason EndReason, sum *scoring.Summary) Event {
	e := Event{Type: EventEnded, SessionID: s.id, AtMs: s.lastMs, Reason: reason, Summary: sum}
	if s.seen {
		e.ElapsedMs = s.lastMs - s.startMs
	}
	return e
}

func (s *Session) reset() {
	s.orientation.Reset()
	s.stability.Reset()
	s.arms.Reset()
	s.side.Reset()
	s.machine.Reset()
	s.tracker.Abort()

	s.id = ""
	s.active = false
	s.startedAt = time.Time{}
	s.startMs = 0
	s.lastMs = 0
	s.seen = false
	s.records = nil
	s.history = nil
	s.full = 0
	s.partial = 0
	s.reject = 0
	s.prev = nil
}

func (s *Session) end() scoring.Summary {
	s.active = false
	s.tracker.Abort()
	return scoring.Summarize(s.records)
}

// Active reports whether the session accepts frames.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ID returns the current session ID, empty before the first Start.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Status returns a snapshot of the session counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, calibrated := s.machine.Calibration().Scale()
	st := Status{
		ID:         s.id,
		Active:     s.active,
		StartedAt:  s.startedAt,
		Phase:      s.machine.Phase(),
		Reps:       s.full + s.partial,
		Full:       s.full,
		Partial:    s.partial,
		Rejected:   s.reject,
		History:    append([]int(nil), s.history...),
		Calibrated: calibrated,
	}
	if s.seen {
		st.ElapsedMs = s.lastMs - s.startMs
	}
	return st
}

// Records returns every finished attempt, rejected ones included.
func (s *Session) Records() []scoring.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scoring.Record(nil), s.records...)
}

// Summary reduces the finished attempts.
func (s *Session) Summary() scoring.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scoring.Summarize(s.records)
}

// ProcessFrame advances the session by one pose frame. Bad landmarks never
// produce an error; the frame is reported as skipped instead.
func (s *Session) ProcessFrame(f *detector.PoseFrame) (FrameResult, error) {
	if f == nil {
		return FrameResult{}, ErrNoPose
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return FrameResult{}, ErrNotActive
	}
	if s.seen && f.TimestampMs < s.lastMs {
		s.mu.Unlock()
		return FrameResult{}, ErrOutOfOrder
	}

	res := s.step(f)
	events := deriveEvents(s.id, s.prev, &res)
	s.prev = &res
	s.mu.Unlock()

	if res.TimeUp {
		log.Printf("Session %s time up: %d reps", res.SessionID, res.Reps)
	}
	if res.Rep != nil && res.Rep.Class == scoring.Rejected {
		log.Printf("Session %s: repetition rejected, arms not crossed", res.SessionID)
	}
	s.events.Emit(events...)
	return res, nil
}

func (s *Session) step(f *detector.PoseFrame) FrameResult {
	now := f.TimestampMs
	s.advance(now)

	res := FrameResult{
		SessionID:   s.id,
		TimestampMs: now,
		ElapsedMs:   now - s.startMs,
		Phase:       s.machine.Phase(),
		Edge:        phase.Edge{From: s.machine.Phase(), To: s.machine.Phase(), AtMs: now},
	}
	if s.cfg.DurationMs > 0 {
		res.RemainingMs = max(0, s.cfg.DurationMs-res.ElapsedMs)
		if res.ElapsedMs >= s.cfg.DurationMs {
			sum := s.end()
			res.TimeUp = true
			res.Summary = &sum
			s.fillCounters(&res)
			return res
		}
	}

	res.Orientation = s.orientation.Update(f)
	if !res.Orientation.Open {
		res.Skipped = SkipOrientation
		s.resetPosture()
		s.fillCounters(&res)
		return res
	}

	if f.LowConfidenceCount() > s.cfg.MaxLowConfidence {
		res.Skipped = SkipLowConfidence
		s.resetPosture()
		s.fillCounters(&res)
		return res
	}

	side := s.side.Update(f)
	res.Side = side

	res.Stability = s.stability.Update(f, side)
	if !res.Stability.Open {
		res.Skipped = SkipStability
		s.fillCounters(&res)
		return res
	}

	res.Arms = s.arms.Update(f, side)

	lm := detector.LandmarksFor(side)
	if !f.Present[lm.Shoulder] || !f.Present[lm.Hip] || !f.Present[lm.Knee] || !f.Present[lm.Ankle] {
		res.Skipped = SkipLandmarks
		s.fillCounters(&res)
		return res
	}

	hipY := f.Points[lm.Hip].Y
	kneeY := f.Points[lm.Knee].Y
	knee, kneeOK := detector.KneeFlexion3D(f, side)
	if kneeOK {
		res.Knee = &knee
	}

	out := s.machine.Step(phase.Input{
		TimestampMs: now,
		HipY:        hipY,
		KneeY:       kneeY,
		AnkleY:      f.Points[lm.Ankle].Y,
		Knee:        knee,
		KneeOK:      kneeOK,
	})
	res.Phase = out.Phase
	res.Edge = out.Edge
	res.Signals = out

	if lean, ok := detector.TrunkLean(f, side); ok {
		res.Lean = &lean
		s.tracker.Lean(lean)
	}
	if out.Phase.InRep() {
		s.tracker.Observe(res.Arms.Open)
	}

	snap := scoring.Snapshot{Knee: knee, KneeOK: kneeOK, HipY: hipY, KneeY: kneeY}
	edge := out.Edge
	switch {
	case edge.Is(phase.Standing, phase.GoingDown):
		s.tracker.Begin(now, res.Arms.Open)
	case edge.Is(phase.GoingDown, phase.Seated):
		s.tracker.Bottom(now, snap)
	case edge.Is(phase.GoingDown, phase.GoingUp):
		s.tracker.Reversal(now, snap)
	case edge.Is(phase.Seated, phase.GoingUp):
		s.tracker.AscentStart(now)
	case edge.Is(phase.GoingDown, phase.Standing):
		s.tracker.Abort()
	case edge.Is(phase.GoingUp, phase.Standing):
		if rec, ok := s.tracker.Finish(now, snap, s.cfg.Scoring); ok {
			s.record(rec)
			res.Rep = &rec
		}
	}

	if s.cfg.MaxDescentMs > 0 && s.tracker.DescentMs(now) > s.cfg.MaxDescentMs {
		res.Stalled = true
	}

	s.fillCounters(&res)
	return res
}

// resetPosture drops the stability and arms state so both gates have to
// settle again on frames they actually saw.
func (s *Session) resetPosture() {
	s.stability.Reset()
	s.arms.Reset()
}

func (s *Session) record(rec scoring.Record) {
	s.records = append(s.records, rec)
	switch rec.Class {
	case scoring.Rejected:
		s.reject++
		return
	case scoring.Full:
		s.full++
	case scoring.Partial:
		s.partial++
	}

	s.history = append(s.history, rec.Scores.Total)
	if n := s.cfg.HistorySize; n > 0 && len(s.history) > n {
		s.history = s.history[len(s.history)-n:]
	}
}

func (s *Session) fillCounters(res *FrameResult) {
	res.Reps = s.full + s.partial
	res.Full = s.full
	res.Partial = s.partial
	res.History = append([]int(nil), s.history...)
}
