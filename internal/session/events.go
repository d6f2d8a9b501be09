package session

import (
	"sync"

	"github.com/ayusman/sitstand/internal/phase"
	"github.com/ayusman/sitstand/internal/scoring"
)

// EventType identifies an outward-facing session event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventPhase    EventType = "phase"
	EventRep      EventType = "rep"
	EventRejected EventType = "rejected"
	EventCue      EventType = "cue"
	EventEnded    EventType = "ended"
)

// Cue is a coaching hint for the subject.
type Cue string

const (
	CueShallow      Cue = "shallow"
	CueCrossArms    Cue = "cross_arms"
	CueTurnSideways Cue = "turn_sideways"
	CueStall        Cue = "stall"
	CueFinish       Cue = "finish"
)

var cueText = map[Cue]string{
	CueShallow:      "Go lower",
	CueCrossArms:    "Cross your arms",
	CueTurnSideways: "Turn sideways to the camera",
	CueStall:        "Keep moving",
}

// EndReason says why a session ended.
type EndReason string

const (
	EndStopped EndReason = "stopped"
	EndTimeUp  EndReason = "time_up"
	EndReset   EndReason = "reset"
)

// Event is delivered to subscribers after the frame that caused it.
type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"session_id"`
	AtMs      int64            `json:"at_ms"`
	Edge      *phase.Edge      `json:"edge,omitempty"`
	Rep       *scoring.Record  `json:"rep,omitempty"`
	Cue       Cue              `json:"cue,omitempty"`
	Text      string           `json:"text,omitempty"`
	Reason    EndReason        `json:"reason,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms,omitempty"`
	Summary   *scoring.Summary `json:"summary,omitempty"`
}

// FinishPhrase is the spoken feedback after a flawed repetition, empty when
// there is nothing to correct.
func FinishPhrase(missArms, missDepth bool) string {
	switch {
	case missArms && missDepth:
		return "Cross arms and go lower"
	case missArms:
		return "Cross arms"
	case missDepth:
		return "Go lower"
	default:
		return ""
	}
}

func cue(id string, at int64, c Cue, text string) Event {
	if text == "" {
		text = cueText[c]
	}
	return Event{Type: EventCue, SessionID: id, AtMs: at, Cue: c, Text: text}
}

// deriveEvents compares two consecutive frame results and lists the events
// the newer one produces.
func deriveEvents(id string, prev, cur *FrameResult) []Event {
	var events []Event
	at := cur.TimestampMs

	if cur.Skipped == SkipOrientation && (prev == nil || prev.Skipped != SkipOrientation) {
		events = append(events, cue(id, at, CueTurnSideways, ""))
	}

	if cur.Edge.Changed() {
		edge := cur.Edge
		events = append(events, Event{Type: EventPhase, SessionID: id, AtMs: at, Edge: &edge})
		if edge.Is(phase.GoingDown, phase.GoingUp) {
			events = append(events, cue(id, at, CueShallow, ""))
		}
	}

	if cur.Stalled && (prev == nil || !prev.Stalled) {
		events = append(events, cue(id, at, CueStall, ""))
	}

	if r := cur.Rep; r != nil {
		rec := *r
		missArms := rec.Class == scoring.Rejected
		missDepth := !rec.BottomReached
		if missArms {
			events = append(events, Event{Type: EventRejected, SessionID: id, AtMs: at, Rep: &rec})
			events = append(events, cue(id, at, CueCrossArms, ""))
		} else {
			events = append(events, Event{Type: EventRep, SessionID: id, AtMs: at, Rep: &rec})
		}
		if missDepth {
			events = append(events, cue(id, at, CueShallow, ""))
		}
		if phrase := FinishPhrase(missArms, missDepth); phrase != "" {
			events = append(events, cue(id, at, CueFinish, phrase))
		}
	}

	if cur.TimeUp {
		events = append(events, Event{
			Type:      EventEnded,
			SessionID: id,
			AtMs:      at,
			Reason:    EndTimeUp,
			ElapsedMs: cur.ElapsedMs,
			Summary:   cur.Summary,
		})
	}
	return events
}

// Handler receives session events.
type Handler func(Event)

// Dispatcher fans events out to subscribers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

// Subscribe registers h for every later event.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Emit delivers events to every subscriber in registration order.
func (d *Dispatcher) Emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.RUnlock()

	for _, e := range events {
		for _, h := range handlers {
			h(e)
		}
	}
}
