package scoring

// Metric is a session average for one sub-score.
type Metric struct {
	Avg float64 `json:"avg"`
	Pct float64 `json:"pct"`
	Max float64 `json:"max"`
}

func newMetric(sum float64, n int, max float64) Metric {
	m := Metric{Max: max}
	if n > 0 {
		m.Avg = sum / float64(n)
	}
	if max > 0 {
		m.Pct = m.Avg / max * 100
	}
	return m
}

// Summary aggregates the accepted repetitions of a session.
type Summary struct {
	Reps     int    `json:"reps"`
	Full     int    `json:"full"`
	Partial  int    `json:"partial"`
	Rejected int    `json:"rejected"`
	Knee     Metric `json:"knee"`
	Back     Metric `json:"back"`
	Symmetry Metric `json:"symmetry"`
	Depth    Metric `json:"depth"`
	Overall  Metric `json:"overall"`
}

// Summarize reduces records to a Summary. Rejected records are counted but do
// not contribute to the averages.
func Summarize(records []Record) Summary {
	var s Summary
	var knee, back, sym, depth float64

	for _, r := range records {
		switch r.Class {
		case Rejected:
			s.Rejected++
			continue
		case Full:
			s.Full++
		case Partial:
			s.Partial++
		}
		s.Reps++
		knee += r.Scores.Knee
		back += r.Scores.Back
		sym += r.Scores.Symmetry
		depth += r.Scores.Depth
	}

	s.Knee = newMetric(knee, s.Reps, MaxKnee)
	s.Back = newMetric(back, s.Reps, MaxBack)
	s.Symmetry = newMetric(sym, s.Reps, MaxSymmetry)
	s.Depth = newMetric(depth, s.Reps, MaxDepth)

	overall := s.Knee.Avg + s.Back.Avg + s.Symmetry.Avg + s.Depth.Avg
	s.Overall = Metric{Avg: overall, Pct: overall, Max: MaxTotal}
	return s
}
