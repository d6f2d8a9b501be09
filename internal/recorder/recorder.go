// Package recorder persists sit-to-stand session events to the store.
package recorder

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/sitstand/internal/scoring"
	"github.com/ayusman/sitstand/internal/session"
	"github.com/ayusman/sitstand/internal/store"
)

// Recorder persists session events: a row when a session starts, one per
// finished attempt, and the totals when it ends. Storage errors are logged
// and never reach the frame loop.
type Recorder struct {
	store      *store.Store
	durationMs int64

	mu      sync.Mutex
	started map[string]time.Time
}

// New creates a recorder writing to s. durationMs is the configured
// session length.
func New(s *store.Store, durationMs int64) *Recorder {
	return &Recorder{
		store:      s,
		durationMs: durationMs,
		started:    make(map[string]time.Time),
	}
}

// Handle is a session.Handler.
func (r *Recorder) Handle(e session.Event) {
	if err := r.handle(e); err != nil {
		log.Printf("Failed to record %s event for session %s: %v", e.Type, e.SessionID, err)
	}
}

func (r *Recorder) handle(e session.Event) error {
	switch e.Type {
	case session.EventStarted:
		now := time.Now()
		r.mu.Lock()
		r.started[e.SessionID] = now
		r.mu.Unlock()
		return r.store.Sessions().Create(&store.Session{
			ID:         e.SessionID,
			StartedAt:  now,
			DurationMs: r.durationMs,
		})

	case session.EventRep, session.EventRejected:
		if e.Rep == nil {
			return nil
		}
		return r.store.Repetitions().Create(RepetitionFromRecord(e.SessionID, *e.Rep))

	case session.EventEnded:
		r.mu.Lock()
		startedAt, ok := r.started[e.SessionID]
		delete(r.started, e.SessionID)
		r.mu.Unlock()
		if !ok {
			sess, err := r.store.Sessions().GetByID(e.SessionID)
			if err != nil {
				return err
			}
			startedAt = sess.StartedAt
		}

		row := &store.Session{
			ID:         e.SessionID,
			StartedAt:  startedAt,
			DurationMs: e.ElapsedMs,
			EndReason:  string(e.Reason),
		}
		if e.Summary != nil {
			applySummary(row, *e.Summary)
		}
		if row.DurationMs == 0 {
			row.DurationMs = time.Since(startedAt).Milliseconds()
		}
		return r.store.Sessions().Finish(row)
	}
	return nil
}

func applySummary(row *store.Session, sum scoring.Summary) {
	row.Reps = sum.Reps
	row.FullReps = sum.Full
	row.PartialReps = sum.Partial
	row.RejectedReps = sum.Rejected
	row.Overall = sum.Overall.Avg
	if data, err := json.Marshal(sum); err == nil {
		row.Summary = string(data)
	}
}

// RepetitionFromRecord converts a finished attempt into its stored form.
func RepetitionFromRecord(sessionID string, rec scoring.Record) *store.Repetition {
	rep := &store.Repetition{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		Class:           string(rec.Class),
		KneeScore:       rec.Scores.Knee,
		BackScore:       rec.Scores.Back,
		SymmetryScore:   rec.Scores.Symmetry,
		DepthScore:      rec.Scores.Depth,
		Total:           rec.Scores.Total,
		DownMs:          rec.DownMs(),
		UpMs:            rec.UpMs(),
		MinBackwardLean: rec.MinBackward,
		MaxForwardLean:  rec.MaxForward,
	}
	if rec.Snapshot.KneeOK {
		knee := rec.Snapshot.Knee
		rep.KneeAngle = &knee
	}
	return rep
}
