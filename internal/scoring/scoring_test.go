package scoring

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestKnee(t *testing.T) {
	c := DefaultConfig()

	tests := []struct {
		name  string
		angle float64
		ok    bool
		want  float64
	}{
		{"missing", 80, false, 0},
		{"deep", 70, true, 30},
		{"at target", 90, true, 30},
		{"halfway", 100, true, 30 * (1 - math.Pow(0.5, 1.8))},
		{"at falloff end", 110, true, 0},
		{"beyond falloff", 140, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Knee(tt.angle, tt.ok); !approx(got, tt.want) {
				t.Errorf("Knee(%f) = %f, want %f", tt.angle, got, tt.want)
			}
		})
	}
}

func TestBack(t *testing.T) {
	c := DefaultConfig()

	tests := []struct {
		lean float64
		want float64
	}{
		{10, 20},
		{0, 20},
		{-5, 20},
		{-12.5, 10},
		{-20, 0},
		{-35, 0},
	}

	for _, tt := range tests {
		if got := c.Back(tt.lean); !approx(got, tt.want) {
			t.Errorf("Back(%f) = %f, want %f", tt.lean, got, tt.want)
		}
	}
}

func TestSymmetry(t *testing.T) {
	c := DefaultConfig()

	tests := []struct {
		name     string
		down, up int64
		want     float64
	}{
		{"equal", 1000, 1000, 20},
		{"boundary", 1000, 1600, 20},
		{"halfway", 1000, 2100, 10},
		{"zero ratio", 1000, 2600, 0},
		{"beyond", 1000, 4000, 0},
		{"slow descent", 2100, 1000, 10},
		{"missing descent", 0, 1000, 0},
		{"missing ascent", 1000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Symmetry(tt.down, tt.up); !approx(got, tt.want) {
				t.Errorf("Symmetry(%d, %d) = %f, want %f", tt.down, tt.up, got, tt.want)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	c := DefaultConfig()
	kneeY := 0.6

	tests := []struct {
		name string
		hipY float64
		want float64
	}{
		{"hip at knee", kneeY, 30},
		{"hip below knee", kneeY * 1.1, 30},
		{"half", kneeY * 0.5, 0},
		{"at tolerance", kneeY * 0.7, 0},
		{"between", kneeY * 0.85, 30 * (0.85 - 0.7) / 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Depth(tt.hipY, kneeY); !approx(got, tt.want) {
				t.Errorf("Depth = %f, want %f", got, tt.want)
			}
		})
	}

	if got := c.Depth(0.5, 0); got != 0 {
		t.Errorf("Depth with zero knee = %f, want 0", got)
	}
}

func TestScoresAlwaysInRange(t *testing.T) {
	c := DefaultConfig()
	for angle := -10.0; angle <= 200; angle += 7.3 {
		if s := c.Knee(angle, true); s < 0 || s > MaxKnee {
			t.Errorf("Knee(%f) = %f out of range", angle, s)
		}
		if s := c.Back(angle - 100); s < 0 || s > MaxBack {
			t.Errorf("Back(%f) = %f out of range", angle-100, s)
		}
		if s := c.Depth(angle/100, 0.6); s < 0 || s > MaxDepth {
			t.Errorf("Depth(%f) = %f out of range", angle/100, s)
		}
	}
	for up := int64(1); up < 10000; up += 373 {
		if s := c.Symmetry(1000, up); s < 0 || s > MaxSymmetry {
			t.Errorf("Symmetry(1000, %d) = %f out of range", up, s)
		}
	}
}

func TestTier(t *testing.T) {
	c := DefaultConfig()
	tests := map[int]Tier{100: TierGood, 75: TierGood, 74: TierOK, 50: TierOK, 49: TierBad, 0: TierBad}
	for total, want := range tests {
		if got := c.Tier(total); got != want {
			t.Errorf("Tier(%d) = %s, want %s", total, got, want)
		}
	}
}

func TestTracker_FullRep(t *testing.T) {
	c := DefaultConfig()
	var tr Tracker

	tr.Begin(1000, true)
	tr.Lean(8)
	tr.Lean(-2)
	tr.Observe(true)
	tr.Bottom(2000, Snapshot{Knee: 85, KneeOK: true, HipY: 0.6, KneeY: 0.6})
	tr.Observe(true)
	tr.AscentStart(2500)
	tr.Observe(true)

	r, ok := tr.Finish(3500, Snapshot{}, c)
	if !ok {
		t.Fatal("expected a record")
	}
	if r.Class != Full {
		t.Errorf("Class = %s, want full", r.Class)
	}
	if r.DownMs() != 1000 || r.UpMs() != 1000 {
		t.Errorf("durations = %d/%d, want 1000/1000", r.DownMs(), r.UpMs())
	}
	want := Scores{Knee: 30, Back: 20, Symmetry: 20, Depth: 30, Total: 100}
	if r.Scores != want {
		t.Errorf("Scores = %+v, want %+v", r.Scores, want)
	}
	if r.Tier != TierGood {
		t.Errorf("Tier = %s, want good", r.Tier)
	}
	if r.MaxForward != 8 || r.MinBackward != -2 {
		t.Errorf("lean = %f/%f, want 8/-2", r.MaxForward, r.MinBackward)
	}
	if tr.Active() {
		t.Error("tracker should be cleared after Finish")
	}
}

func TestTracker_PartialUsesReversalSnapshot(t *testing.T) {
	c := DefaultConfig()
	var tr Tracker

	tr.Begin(0, true)
	rev := Snapshot{Knee: 130, KneeOK: true, HipY: 0.45, KneeY: 0.6}
	tr.Reversal(800, rev)

	r, _ := tr.Finish(1600, Snapshot{Knee: 170, KneeOK: true, HipY: 0.2, KneeY: 0.6}, c)
	if r.Class != Partial {
		t.Errorf("Class = %s, want partial", r.Class)
	}
	if r.Snapshot != rev {
		t.Errorf("Snapshot = %+v, want reversal %+v", r.Snapshot, rev)
	}
	if r.UpStartMs != 800 || r.DownEndMs != 800 {
		t.Errorf("reversal timestamps = %d/%d, want 800/800", r.DownEndMs, r.UpStartMs)
	}
	if r.Scores.Knee != 0 {
		t.Errorf("Knee score = %f, want 0 for a 130 degree reversal", r.Scores.Knee)
	}
}

func TestTracker_ArmsRejects(t *testing.T) {
	var tr Tracker
	tr.Begin(0, true)
	tr.Observe(true)
	tr.Observe(false)
	tr.Observe(true)
	tr.Bottom(1000, Snapshot{Knee: 85, KneeOK: true, HipY: 0.6, KneeY: 0.6})
	tr.AscentStart(1500)

	if tr.ArmsOK() {
		t.Error("a single closed frame should fail the attempt")
	}

	r, ok := tr.Finish(2500, Snapshot{}, DefaultConfig())
	if !ok || r.Class != Rejected {
		t.Fatalf("Finish = %+v %v, want rejected", r, ok)
	}
	if r.Scores != (Scores{}) || r.Tier != "" {
		t.Errorf("rejected record should carry no scores, got %+v %q", r.Scores, r.Tier)
	}
}

func TestTracker_FinishWithoutAttempt(t *testing.T) {
	var tr Tracker
	if _, ok := tr.Finish(100, Snapshot{}, DefaultConfig()); ok {
		t.Error("Finish without Begin should not produce a record")
	}

	tr.Begin(0, true)
	tr.Abort()
	if _, ok := tr.Finish(100, Snapshot{}, DefaultConfig()); ok {
		t.Error("Finish after Abort should not produce a record")
	}
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Class: Full, Scores: Scores{Knee: 30, Back: 20, Symmetry: 20, Depth: 30, Total: 100}},
		{Class: Partial, Scores: Scores{Knee: 10, Back: 20, Symmetry: 10, Depth: 0, Total: 40}},
		{Class: Rejected},
	}

	s := Summarize(records)
	if s.Reps != 2 || s.Full != 1 || s.Partial != 1 || s.Rejected != 1 {
		t.Errorf("counts = %+v", s)
	}
	if !approx(s.Knee.Avg, 20) || !approx(s.Knee.Pct, 20.0/30*100) {
		t.Errorf("Knee = %+v", s.Knee)
	}
	if !approx(s.Symmetry.Avg, 15) || !approx(s.Symmetry.Pct, 75) {
		t.Errorf("Symmetry = %+v", s.Symmetry)
	}
	if !approx(s.Overall.Avg, 70) || s.Overall.Max != MaxTotal {
		t.Errorf("Overall = %+v", s.Overall)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Reps != 0 || s.Overall.Avg != 0 || math.IsNaN(s.Knee.Pct) {
		t.Errorf("empty summary = %+v", s)
	}
}
