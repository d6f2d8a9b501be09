package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is a persisted sit-to-stand test.
type Session struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	EndReason    string     `json:"end_reason"`
	Reps         int        `json:"reps"`
	FullReps     int        `json:"full_reps"`
	PartialReps  int        `json:"partial_reps"`
	RejectedReps int        `json:"rejected_reps"`
	Overall      float64    `json:"overall"`
	Summary      string     `json:"summary"` // JSON encoded summary
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, started_at, ended_at, duration_ms, end_reason, reps, full_reps,
	partial_reps, rejected_reps, overall, summary`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	err := row.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.DurationMs, &sess.EndReason,
		&sess.Reps, &sess.FullReps, &sess.PartialReps, &sess.RejectedReps, &sess.Overall, &sess.Summary)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// Create inserts a new session. A zero StartedAt is set to now.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Summary == "" {
		sess.Summary = "{}"
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.EndedAt, sess.DurationMs, sess.EndReason,
		sess.Reps, sess.FullReps, sess.PartialReps, sess.RejectedReps, sess.Overall, sess.Summary,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Finish records the end of a session and its totals.
func (r *SessionRepository) Finish(sess *Session) error {
	if sess.EndedAt == nil {
		now := time.Now()
		sess.EndedAt = &now
	}
	if sess.DurationMs == 0 {
		sess.DurationMs = sess.EndedAt.Sub(sess.StartedAt).Milliseconds()
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, duration_ms = ?, end_reason = ?, reps = ?, full_reps = ?,
		 partial_reps = ?, rejected_reps = ?, overall = ?, summary = ?
		 WHERE id = ?`,
		sess.EndedAt, sess.DurationMs, sess.EndReason, sess.Reps, sess.FullReps,
		sess.PartialReps, sess.RejectedReps, sess.Overall, sess.Summary, sess.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a session and its repetitions.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
