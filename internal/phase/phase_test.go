package phase

import (
	"math"
	"testing"

	"github.com/ayusman/sitstand/internal/calibration"
)

func TestNext(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		from Phase
		sig  Signals
		want Phase
	}{
		{"standing still", Standing, Signals{Frac: 1, Knee: 178, KneeOK: true}, Standing},
		{"standing hip descending", Standing, Signals{Frac: 0.7, FracVel: -0.3}, GoingDown},
		{"standing descending inside top band", Standing, Signals{Frac: 0.8, FracVel: -1}, Standing},
		{"standing knee flexing", Standing, Signals{Frac: 1, Knee: 140, KneeOK: true, KneeVel: -60}, GoingDown},
		{"standing knee flexing but straight", Standing, Signals{Frac: 1, Knee: 155, KneeOK: true, KneeVel: -60}, Standing},
		{"standing knee missing", Standing, Signals{Frac: 1, KneeVel: -60}, Standing},

		{"down bottom held", GoingDown, Signals{Frac: 0.4, FracVel: 0.1, BottomHeld: true, Knee: 120, KneeOK: true}, Seated},
		{"down bottom not held", GoingDown, Signals{Frac: 0.4, FracVel: 0.1, Knee: 120, KneeOK: true, KneeVel: -20}, GoingDown},
		{"down knee at bottom", GoingDown, Signals{Frac: 0.6, Knee: 88, KneeOK: true, KneeVel: 5}, Seated},
		{"down knee at bottom still moving", GoingDown, Signals{Frac: 0.6, Knee: 88, KneeOK: true, KneeVel: -20}, GoingDown},
		{"down early reversal", GoingDown, Signals{Frac: 0.6, Knee: 130, KneeOK: true, KneeVel: 60}, GoingUp},
		{"down reversal without knee", GoingDown, Signals{Frac: 0.6, KneeVel: 60}, GoingDown},
		{"down aborted", GoingDown, Signals{Frac: 0.9, Knee: 155, KneeOK: true}, Standing},
		{"down seated wins over reversal", GoingDown, Signals{Frac: 0.4, BottomHeld: true, Knee: 130, KneeOK: true, KneeVel: 60}, Seated},

		{"seated still", Seated, Signals{Knee: 90, KneeOK: true}, Seated},
		{"seated hip rising", Seated, Signals{Frac: 0.55, FracVel: 0.3}, GoingUp},
		{"seated hip rising below band", Seated, Signals{Frac: 0.45, FracVel: 0.3, Knee: 92, KneeOK: true, KneeVel: 20}, Seated},
		{"seated knee extending", Seated, Signals{Knee: 92, KneeOK: true, KneeVel: 55}, GoingUp},
		{"seated knee past margin", Seated, Signals{Knee: 96, KneeOK: true}, GoingUp},

		{"up top held", GoingUp, Signals{Frac: 0.9, TopHeld: true, Knee: 130, KneeOK: true}, Standing},
		{"up top not held", GoingUp, Signals{Frac: 0.9, Knee: 130, KneeOK: true}, GoingUp},
		{"up top held but moving", GoingUp, Signals{Frac: 0.9, FracVel: 0.6, TopHeld: true}, GoingUp},
		{"up knee near straight", GoingUp, Signals{Frac: 0.6, Knee: 145, KneeOK: true}, Standing},
		{"up knee still bent", GoingUp, Signals{Frac: 0.6, Knee: 144, KneeOK: true}, GoingUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.from, tt.sig, cfg); got != tt.want {
				t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		name             string
		hip, knee, ankle float64
		want             float64
	}{
		{"standing", 0.18, 0.54, 0.9, 1},
		{"hip at knee", 0.54, 0.54, 0.9, 0},
		{"halfway", 0.36, 0.54, 0.9, 0.5},
		{"above range clamps", 0.0, 0.54, 0.9, 1},
		{"below knee clamps", 0.6, 0.54, 0.9, 0},
		{"collapsed span", 0.50, 0.51, 0.51, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fraction(tt.hip, tt.knee, tt.ankle, 0.02)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Fraction = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPhase_Label(t *testing.T) {
	if GoingDown.Label() != "Going down" {
		t.Errorf("Label = %q", GoingDown.Label())
	}
	if Phase("other").Label() != "other" {
		t.Errorf("unknown label = %q", Phase("other").Label())
	}
	if Standing.InRep() || !Seated.InRep() {
		t.Error("InRep mismatch")
	}
}

const frameMs = 33

// kneeInput places hip, knee and ankle so that the hip fraction tracks the
// knee angle (fraction = -cos(angle)).
func kneeInput(ts int64, deg float64) Input {
	const kneeY, ankleY = 0.54, 0.9
	hipY := kneeY + (ankleY-kneeY)*math.Cos(deg*math.Pi/180)
	return Input{
		TimestampMs: ts,
		HipY:        hipY,
		KneeY:       kneeY,
		AnkleY:      ankleY,
		Knee:        deg,
		KneeOK:      true,
	}
}

// ramp returns angles from start towards end in fixed steps, excluding start.
func ramp(start, end, step float64) []float64 {
	var out []float64
	if end < start {
		step = -step
	}
	for a := start + step; (step > 0 && a <= end) || (step < 0 && a >= end); a += step {
		out = append(out, a)
	}
	return out
}

func repeat(deg float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = deg
	}
	return out
}

func run(m *Machine, angles ...[]float64) []Edge {
	var edges []Edge
	var ts int64
	for _, seq := range angles {
		for _, a := range seq {
			out := m.Step(kneeInput(ts, a))
			if out.Edge.Changed() {
				edges = append(edges, out.Edge)
			}
			ts += frameMs
		}
	}
	return edges
}

func assertEdges(t *testing.T, got []Edge, want ...[2]Phase) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d edges %v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if !got[i].Is(w[0], w[1]) {
			t.Errorf("edge %d = %s->%s, want %s->%s", i, got[i].From, got[i].To, w[0], w[1])
		}
	}
}

func TestMachine_FullCycle(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())

	edges := run(m,
		repeat(178, 10),
		ramp(178, 90, 3),
		repeat(90, 20),
		ramp(90, 178, 3),
		repeat(178, 10),
	)

	assertEdges(t, edges,
		[2]Phase{Standing, GoingDown},
		[2]Phase{GoingDown, Seated},
		[2]Phase{Seated, GoingUp},
		[2]Phase{GoingUp, Standing},
	)
	if m.Phase() != Standing {
		t.Errorf("Phase = %s, want standing", m.Phase())
	}
}

func TestMachine_EarlyReversal(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())

	edges := run(m,
		repeat(178, 10),
		ramp(178, 130, 3),
		ramp(130, 178, 3),
		repeat(178, 10),
	)

	assertEdges(t, edges,
		[2]Phase{Standing, GoingDown},
		[2]Phase{GoingDown, GoingUp},
		[2]Phase{GoingUp, Standing},
	)
}

func TestMachine_AbortedDescent(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())

	edges := run(m,
		repeat(178, 10),
		ramp(178, 148, 3),
		ramp(148, 178, 3),
		repeat(178, 10),
	)

	assertEdges(t, edges,
		[2]Phase{Standing, GoingDown},
		[2]Phase{GoingDown, Standing},
	)
}

func TestMachine_MissingKneeStandingStill(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())
	run(m, repeat(178, 5))

	for i := 0; i < 10; i++ {
		in := kneeInput(int64(200+i*frameMs), 178)
		in.KneeOK = false
		out := m.Step(in)
		if out.KneeVel != 0 {
			t.Errorf("KneeVel = %f, want 0 without a knee angle", out.KneeVel)
		}
		if out.Phase != Standing {
			t.Errorf("Phase = %s, want standing", out.Phase)
		}
	}
}

// TestMachine_MissingKneeFollowsHip runs a whole cycle without a knee angle:
// every transition has to come from the hip fraction alone.
func TestMachine_MissingKneeFollowsHip(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())

	var edges []Edge
	var ts int64
	for _, seq := range [][]float64{
		repeat(178, 10),
		ramp(178, 90, 3),
		repeat(90, 20),
		ramp(90, 178, 3),
		repeat(178, 20),
	} {
		for _, a := range seq {
			in := kneeInput(ts, a)
			in.KneeOK = false
			out := m.Step(in)
			if out.KneeVel != 0 {
				t.Fatalf("KneeVel = %f at %dms, want 0 without a knee angle", out.KneeVel, ts)
			}
			if out.Edge.Changed() {
				edges = append(edges, out.Edge)
			}
			ts += frameMs
		}
	}

	assertEdges(t, edges,
		[2]Phase{Standing, GoingDown},
		[2]Phase{GoingDown, Seated},
		[2]Phase{Seated, GoingUp},
		[2]Phase{GoingUp, Standing},
	)
}

func TestMachine_CalibratesWhileStanding(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())

	var out Output
	for i := 0; i < 4; i++ {
		out = m.Step(kneeInput(int64(i*frameMs), 178))
		if out.DepthOK {
			t.Fatalf("depth available after %d frames", i+1)
		}
	}
	out = m.Step(kneeInput(4*frameMs, 178))
	if !out.DepthOK {
		t.Fatal("expected depth after 5 standing frames")
	}
	if math.Abs(out.Depth-1) > 1e-9 {
		t.Errorf("Depth = %f, want 1", out.Depth)
	}

	scale, _ := m.Calibration().Scale()
	run(m, ramp(178, 90, 3))
	if again, _ := m.Calibration().Scale(); again != scale {
		t.Errorf("scale changed during descent: %f -> %f", scale, again)
	}
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine(DefaultConfig(), calibration.DefaultConfig())
	run(m, repeat(178, 10), ramp(178, 90, 3), repeat(90, 20))
	if m.Phase() != Seated {
		t.Fatalf("Phase = %s, want seated before reset", m.Phase())
	}

	m.Reset()
	fresh := NewMachine(DefaultConfig(), calibration.DefaultConfig())

	if m.Phase() != Standing {
		t.Errorf("Phase = %s, want standing", m.Phase())
	}
	if _, ok := m.Calibration().Scale(); ok {
		t.Error("calibration should be unlocked after reset")
	}

	a := m.Step(kneeInput(0, 178))
	b := fresh.Step(kneeInput(0, 178))
	if a != b {
		t.Errorf("after reset %+v, fresh %+v", a, b)
	}
}
