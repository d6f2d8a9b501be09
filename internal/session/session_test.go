package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ayusman/sitstand/internal/detector"
	"github.com/ayusman/sitstand/internal/phase"
	"github.com/ayusman/sitstand/internal/scoring"
)

const frameMs = 33

type driver struct {
	t       *testing.T
	s       *Session
	ts      int64
	results []FrameResult
	events  []Event
}

func newDriver(t *testing.T, cfg Config) *driver {
	t.Helper()
	d := &driver{t: t, s: New(cfg)}
	d.s.Subscribe(func(e Event) { d.events = append(d.events, e) })
	d.s.Start()
	return d
}

func (d *driver) frame(p detector.PoseParams) FrameResult {
	d.t.Helper()
	f := detector.SyntheticPose(p)
	f.TimestampMs = d.ts
	d.ts += frameMs

	res, err := d.s.ProcessFrame(&f)
	if err != nil {
		d.t.Fatalf("ProcessFrame at %dms: %v", f.TimestampMs, err)
	}
	d.results = append(d.results, res)
	return res
}

func (d *driver) hold(p detector.PoseParams, n int) {
	d.t.Helper()
	for i := 0; i < n; i++ {
		d.frame(p)
	}
}

func (d *driver) knees(p detector.PoseParams, from, to, step float64) {
	d.t.Helper()
	if to < from {
		step = -step
	}
	for a := from + step; (step > 0 && a <= to) || (step < 0 && a >= to); a += step {
		p.KneeDeg = a
		d.frame(p)
	}
}

// fullRep stands long enough for the stability gate, sits down and stands up.
func (d *driver) fullRep(p detector.PoseParams) {
	d.t.Helper()
	p.KneeDeg = 178
	d.hold(p, 15)
	d.knees(p, 178, 90, 3)
	p.KneeDeg = 90
	d.hold(p, 25)
	d.knees(p, 90, 178, 3)
	p.KneeDeg = 178
	d.hold(p, 10)
}

func (d *driver) eventsOf(typ EventType) []Event {
	var out []Event
	for _, e := range d.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (d *driver) cues() []Cue {
	var out []Cue
	for _, e := range d.eventsOf(EventCue) {
		out = append(out, e.Cue)
	}
	return out
}

func hasCue(cues []Cue, c Cue) bool {
	for _, x := range cues {
		if x == c {
			return true
		}
	}
	return false
}

func TestSession_FullRep(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	d.fullRep(detector.StandingParams())

	st := d.s.Status()
	if st.Reps != 1 || st.Full != 1 || st.Partial != 0 {
		t.Fatalf("Status = %+v, want one full rep", st)
	}
	if !st.Calibrated {
		t.Error("expected calibration to lock while standing")
	}
	if len(st.History) != 1 {
		t.Errorf("History = %v, want one entry", st.History)
	}

	reps := d.eventsOf(EventRep)
	if len(reps) != 1 {
		t.Fatalf("got %d rep events, want 1", len(reps))
	}
	rec := reps[0].Rep
	if rec.Class != scoring.Full || !rec.ArmsOK {
		t.Errorf("record = %+v, want full with arms ok", rec)
	}
	if rec.Scores.Knee < scoring.MaxKnee-0.01 || rec.Scores.Depth < scoring.MaxDepth-0.01 || rec.Scores.Back != scoring.MaxBack {
		t.Errorf("Scores = %+v, want full knee, depth and back marks", rec.Scores)
	}
	if rec.Scores.Total < 0 || rec.Scores.Total > scoring.MaxTotal {
		t.Errorf("Total = %d out of range", rec.Scores.Total)
	}
	if hasCue(d.cues(), CueShallow) || hasCue(d.cues(), CueFinish) {
		t.Errorf("unexpected cues %v for a clean rep", d.cues())
	}

	var phases []phase.Phase
	for _, e := range d.eventsOf(EventPhase) {
		phases = append(phases, e.Edge.To)
	}
	want := []phase.Phase{phase.GoingDown, phase.Seated, phase.GoingUp, phase.Standing}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phase events = %v, want %v", phases, want)
	}
}

func TestSession_CountsEachCycleOnce(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	d.fullRep(p)
	d.fullRep(p)
	d.fullRep(p)

	st := d.s.Status()
	if st.Reps != 3 || st.Full != 3 {
		t.Errorf("Status = %+v, want 3 full reps", st)
	}
	if n := len(d.eventsOf(EventRep)); n != 3 {
		t.Errorf("got %d rep events, want 3", n)
	}
}

func TestSession_PartialRep(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	d.hold(p, 15)
	d.knees(p, 178, 130, 3)
	d.knees(p, 130, 178, 3)
	d.hold(p, 10)

	st := d.s.Status()
	if st.Reps != 1 || st.Partial != 1 || st.Full != 0 {
		t.Fatalf("Status = %+v, want one partial rep", st)
	}

	cues := d.cues()
	if !hasCue(cues, CueShallow) || !hasCue(cues, CueFinish) {
		t.Errorf("cues = %v, want shallow and finish", cues)
	}
	for _, e := range d.eventsOf(EventCue) {
		if e.Cue == CueFinish && e.Text != "Go lower" {
			t.Errorf("finish phrase = %q, want %q", e.Text, "Go lower")
		}
	}
}

func TestSession_ArmsRejectRep(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	d.hold(p, 15)
	d.knees(p, 178, 90, 3)

	p.KneeDeg = 90
	d.hold(p, 10)
	extended := p
	extended.ElbowDeg = 175
	d.hold(extended, 8)
	d.hold(p, 10)

	d.knees(p, 90, 178, 3)
	p.KneeDeg = 178
	d.hold(p, 10)

	st := d.s.Status()
	if st.Reps != 0 || st.Full != 0 || st.Partial != 0 {
		t.Errorf("Status = %+v, want no counted reps", st)
	}
	if st.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", st.Rejected)
	}
	if len(st.History) != 0 {
		t.Errorf("History = %v, want empty", st.History)
	}
	if n := len(d.eventsOf(EventRejected)); n != 1 {
		t.Errorf("got %d rejected events, want 1", n)
	}
	if !hasCue(d.cues(), CueCrossArms) {
		t.Errorf("cues = %v, want cross_arms", d.cues())
	}
	if sum := d.s.Summary(); sum.Reps != 0 || sum.Rejected != 1 {
		t.Errorf("Summary = %+v", sum)
	}
}

func TestSession_OrientationSkipsFrames(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	p.YawDeg = 0

	for i := 0; i < 5; i++ {
		res := d.frame(p)
		if res.Skipped != SkipOrientation {
			t.Fatalf("Skipped = %q, want orientation", res.Skipped)
		}
	}

	cues := d.cues()
	if len(cues) != 1 || cues[0] != CueTurnSideways {
		t.Errorf("cues = %v, want a single turn_sideways", cues)
	}
}

func TestSession_SkipReasons(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()

	res := d.frame(p)
	if res.Skipped != SkipStability {
		t.Errorf("first frame Skipped = %q, want stability", res.Skipped)
	}

	d.hold(p, 10)
	if last := d.results[len(d.results)-1]; last.Skipped != "" {
		t.Fatalf("settled frame Skipped = %q, want none", last.Skipped)
	}

	f := detector.SyntheticPose(p)
	f.TimestampMs = d.ts
	for i := detector.LeftKnee; i <= detector.RightFootIndex; i++ {
		f.Points[i].Visibility = 0.1
	}
	res, err := d.s.ProcessFrame(&f)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if res.Skipped != SkipLowConfidence {
		t.Errorf("Skipped = %q, want low_confidence", res.Skipped)
	}
}

func TestSession_Errors(t *testing.T) {
	s := New(DefaultConfig())
	f := detector.SyntheticPose(detector.StandingParams())

	if _, err := s.ProcessFrame(&f); !errors.Is(err, ErrNotActive) {
		t.Errorf("err = %v, want ErrNotActive", err)
	}

	s.Start()
	if _, err := s.ProcessFrame(nil); !errors.Is(err, ErrNoPose) {
		t.Errorf("err = %v, want ErrNoPose", err)
	}

	f.TimestampMs = 100
	if _, err := s.ProcessFrame(&f); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	f.TimestampMs = 50
	if _, err := s.ProcessFrame(&f); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("err = %v, want ErrOutOfOrder", err)
	}
	f.TimestampMs = 100
	if _, err := s.ProcessFrame(&f); err != nil {
		t.Errorf("equal timestamp rejected: %v", err)
	}
}

func TestSession_TimeUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationMs = 1000
	d := newDriver(t, cfg)
	p := detector.StandingParams()

	var res FrameResult
	for i := 0; i < 100 && !res.TimeUp; i++ {
		res = d.frame(p)
	}
	if !res.TimeUp || res.Summary == nil {
		t.Fatalf("expected time up with summary, got %+v", res)
	}
	if res.ElapsedMs < cfg.DurationMs || res.RemainingMs != 0 {
		t.Errorf("elapsed/remaining = %d/%d", res.ElapsedMs, res.RemainingMs)
	}
	if d.s.Active() {
		t.Error("session should stop when time is up")
	}

	ended := d.eventsOf(EventEnded)
	if len(ended) != 1 || ended[0].Reason != EndTimeUp {
		t.Errorf("ended events = %+v, want one time_up", ended)
	}

	f := detector.SyntheticPose(p)
	f.TimestampMs = d.ts
	if _, err := d.s.ProcessFrame(&f); !errors.Is(err, ErrNotActive) {
		t.Errorf("err = %v, want ErrNotActive after time up", err)
	}
}

func TestSession_StopDiscardsRepInProgress(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	d.hold(p, 15)
	d.knees(p, 178, 90, 3)

	sum := d.s.Stop()
	if sum.Reps != 0 {
		t.Errorf("Summary = %+v, want no reps", sum)
	}
	ended := d.eventsOf(EventEnded)
	if len(ended) != 1 || ended[0].Reason != EndStopped {
		t.Errorf("ended events = %+v, want one stopped", ended)
	}
}

func TestSession_StallCue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDescentMs = 200
	d := newDriver(t, cfg)
	p := detector.StandingParams()
	d.hold(p, 15)
	d.knees(p, 178, 90, 3)

	n := 0
	for _, c := range d.cues() {
		if c == CueStall {
			n++
		}
	}
	if n != 1 {
		t.Errorf("got %d stall cues, want 1", n)
	}
	if d.s.Status().Phase == phase.Standing {
		t.Error("stall must not force a transition back to standing")
	}
}

func TestSession_ResetMatchesFresh(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	d.fullRep(p)
	d.hold(p, 15)
	d.knees(p, 178, 120, 3)

	d.s.Reset()
	fresh := New(DefaultConfig())

	if got, want := d.s.Status(), fresh.Status(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Status after reset = %+v, want %+v", got, want)
	}

	d.s.Start()
	fresh.Start()

	var ts int64
	feed := func(params detector.PoseParams) {
		t.Helper()
		f := detector.SyntheticPose(params)
		f.TimestampMs = ts
		ts += frameMs

		a, errA := d.s.ProcessFrame(&f)
		b, errB := fresh.ProcessFrame(&f)
		if errA != nil || errB != nil {
			t.Fatalf("ProcessFrame: %v / %v", errA, errB)
		}
		a.SessionID, b.SessionID = "", ""
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("frame %dms differs after reset:\n%+v\n%+v", f.TimestampMs, a, b)
		}
	}

	for i := 0; i < 15; i++ {
		feed(p)
	}
	for a := 175.0; a >= 90; a -= 3 {
		q := p
		q.KneeDeg = a
		feed(q)
	}
}

func TestFinishPhrase(t *testing.T) {
	tests := []struct {
		arms, depth bool
		want        string
	}{
		{true, true, "Cross arms and go lower"},
		{true, false, "Cross arms"},
		{false, true, "Go lower"},
		{false, false, ""},
	}
	for _, tt := range tests {
		if got := FinishPhrase(tt.arms, tt.depth); got != tt.want {
			t.Errorf("FinishPhrase(%v, %v) = %q, want %q", tt.arms, tt.depth, got, tt.want)
		}
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"duration_ms": 60000, "phase": {"hold_ms": 150}}`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.DurationMs != 60000 || cfg.Phase.HoldMs != 150 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Phase.TopBand != phase.DefaultConfig().TopBand {
		t.Errorf("TopBand = %f, want default", cfg.Phase.TopBand)
	}

	if _, err := ParseConfig([]byte(`{"phase": {"bottom_band": 0.9}}`)); err == nil {
		t.Error("expected validation error for inverted bands")
	}
	if _, err := ParseConfig([]byte(`{`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestSession_TickEndsWithoutPoses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationMs = 1000
	d := newDriver(t, cfg)

	var ended bool
	var ts int64
	for ; ts <= 2*cfg.DurationMs && !ended; ts += frameMs {
		ended = d.s.Tick(ts)
	}
	if !ended {
		t.Fatal("Tick never ended the session")
	}
	if d.s.Active() {
		t.Error("session still active after time up")
	}

	evs := d.eventsOf(EventEnded)
	if len(evs) != 1 || evs[0].Reason != EndTimeUp || evs[0].Summary == nil {
		t.Fatalf("ended events = %+v, want one time_up with summary", evs)
	}
	if evs[0].ElapsedMs < cfg.DurationMs {
		t.Errorf("ElapsedMs = %d, want >= %d", evs[0].ElapsedMs, cfg.DurationMs)
	}
	if d.s.Tick(ts + frameMs) {
		t.Error("Tick on an ended session reported time up again")
	}
}

func TestSession_TickAnchorsClock(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	if d.s.Tick(1000) {
		t.Fatal("Tick ended a fresh session")
	}
	if d.s.Tick(900) {
		t.Error("Tick accepted an earlier timestamp")
	}

	f := detector.SyntheticPose(detector.StandingParams())
	f.TimestampMs = 1500
	res, err := d.s.ProcessFrame(&f)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if res.ElapsedMs != 500 {
		t.Errorf("ElapsedMs = %d, want 500 counted from the first tick", res.ElapsedMs)
	}
}

func TestSession_ResetEndsActiveSession(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	d.hold(detector.StandingParams(), 5)

	d.s.Reset()
	if d.s.Active() {
		t.Error("session still active after reset")
	}
	evs := d.eventsOf(EventEnded)
	if len(evs) != 1 || evs[0].Reason != EndReset || evs[0].Summary == nil {
		t.Fatalf("ended events = %+v, want one reset with summary", evs)
	}
	if want := int64(4 * frameMs); evs[0].ElapsedMs != want {
		t.Errorf("ElapsedMs = %d, want %d", evs[0].ElapsedMs, want)
	}

	d.s.Reset()
	if n := len(d.eventsOf(EventEnded)); n != 1 {
		t.Errorf("idle reset emitted %d ended events, want 1 in total", n)
	}
}

func TestSession_SkippedFramesResetPosture(t *testing.T) {
	d := newDriver(t, DefaultConfig())
	p := detector.StandingParams()
	d.hold(p, 15)
	if last := d.results[len(d.results)-1]; !last.Stability.Open {
		t.Fatalf("stability not open after settling: %+v", last.Stability)
	}

	frontal := p
	frontal.YawDeg = 0
	d.hold(frontal, 90)

	var res FrameResult
	for i := 0; i < 60; i++ {
		if res = d.frame(p); res.Skipped != SkipOrientation {
			break
		}
	}
	if res.Skipped == SkipOrientation {
		t.Fatal("orientation gate never reopened")
	}
	if res.Stability.Open || res.Skipped != SkipStability {
		t.Errorf("first frame back in view: Skipped = %q, stability %+v; want a fresh stability hold",
			res.Skipped, res.Stability)
	}
}
