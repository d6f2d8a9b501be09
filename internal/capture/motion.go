package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// AnalysisWidth is the width frames are downscaled to before differencing.
	AnalysisWidth = 320
)

// MotionDetector reports whether the scene changed between consecutive frames
// using blurred grayscale frame differencing.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, so 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion was
// detected along with the percentage of changed pixels. The first frame after
// a reset only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	small := gocv.NewMat()
	defer small.Close()
	if frame.Cols() > AnalysisWidth {
		h := frame.Rows() * AnalysisWidth / frame.Cols()
		gocv.Resize(*frame, &small, image.Point{X: AnalysisWidth, Y: h}, 0, 0, gocv.InterpolationArea)
	} else {
		frame.CopyTo(&small)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the changed-pixel percentage. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Activity switches the capture rate between idle and active based on motion.
// An active session keeps the active rate regardless of motion.
type Activity struct {
	IdleFPS   int
	ActiveFPS int
	IdleAfter time.Duration

	active     bool
	lastMotion time.Time
}

// NewActivity creates an idle tracker.
func NewActivity(idleFPS, activeFPS int, idleAfter time.Duration) *Activity {
	return &Activity{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleAfter: idleAfter}
}

// Observe records one frame and returns the rate to capture at and whether it
// changed with this frame.
func (a *Activity) Observe(now time.Time, motion, busy bool) (fps int, changed bool) {
	if motion || busy {
		a.lastMotion = now
	}

	switch {
	case !a.active && (motion || busy):
		a.active = true
		return a.ActiveFPS, true
	case a.active && !busy && now.Sub(a.lastMotion) > a.IdleAfter:
		a.active = false
		return a.IdleFPS, true
	}
	return a.FPS(), false
}

// Active reports whether the tracker is in the active state.
func (a *Activity) Active() bool {
	return a.active
}

// FPS returns the rate for the current state.
func (a *Activity) FPS() int {
	if a.active {
		return a.ActiveFPS
	}
	return a.IdleFPS
}
