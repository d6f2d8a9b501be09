package store

import (
	"database/sql"
	"time"
)

// Repetition is a persisted attempt within a session.
type Repetition struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Seq             int       `json:"seq"`
	Class           string    `json:"class"`
	KneeScore       float64   `json:"knee_score"`
	BackScore       float64   `json:"back_score"`
	SymmetryScore   float64   `json:"symmetry_score"`
	DepthScore      float64   `json:"depth_score"`
	Total           int       `json:"total"`
	DownMs          int64     `json:"down_ms"`
	UpMs            int64     `json:"up_ms"`
	KneeAngle       *float64  `json:"knee_angle,omitempty"`
	MinBackwardLean float64   `json:"min_backward_lean"`
	MaxForwardLean  float64   `json:"max_forward_lean"`
	CreatedAt       time.Time `json:"created_at"`
}

// RepetitionRepository stores repetitions.
type RepetitionRepository struct {
	db *sql.DB
}

// Repetitions returns the repetition repository for this store.
func (s *Store) Repetitions() *RepetitionRepository {
	return &RepetitionRepository{db: s.db}
}

// Create inserts a repetition. Seq is assigned as the next number in the session
// when left at zero.
func (r *RepetitionRepository) Create(rep *Repetition) error {
	rep.CreatedAt = time.Now()

	if rep.Seq == 0 {
		err := r.db.QueryRow(
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM repetitions WHERE session_id = ?`,
			rep.SessionID,
		).Scan(&rep.Seq)
		if err != nil {
			return err
		}
	}

	var knee sql.NullFloat64
	if rep.KneeAngle != nil {
		knee = sql.NullFloat64{Float64: *rep.KneeAngle, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO repetitions (id, session_id, seq, class, knee_score, back_score, symmetry_score,
		 depth_score, total, down_ms, up_ms, knee_angle, min_backward_lean, max_forward_lean, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.SessionID, rep.Seq, rep.Class, rep.KneeScore, rep.BackScore, rep.SymmetryScore,
		rep.DepthScore, rep.Total, rep.DownMs, rep.UpMs, knee, rep.MinBackwardLean, rep.MaxForwardLean,
		rep.CreatedAt,
	)
	return err
}

// ListBySession returns the repetitions of a session in order.
func (r *RepetitionRepository) ListBySession(sessionID string) ([]*Repetition, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, class, knee_score, back_score, symmetry_score, depth_score,
		 total, down_ms, up_ms, knee_angle, min_backward_lean, max_forward_lean, created_at
		 FROM repetitions WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []*Repetition
	for rows.Next() {
		rep := &Repetition{}
		var knee sql.NullFloat64
		err := rows.Scan(&rep.ID, &rep.SessionID, &rep.Seq, &rep.Class, &rep.KneeScore, &rep.BackScore,
			&rep.SymmetryScore, &rep.DepthScore, &rep.Total, &rep.DownMs, &rep.UpMs, &knee,
			&rep.MinBackwardLean, &rep.MaxForwardLean, &rep.CreatedAt)
		if err != nil {
			return nil, err
		}
		if knee.Valid {
			v := knee.Float64
			rep.KneeAngle = &v
		}
		reps = append(reps, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reps, nil
}
