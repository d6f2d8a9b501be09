package vision

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/sitstand/internal/detector"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	pose *detector.PoseFrame
	err  error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose that will be returned by Detect.
func (m *MockDetector) SetPose(p *detector.PoseFrame) {
	m.pose = p
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns a copy of the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*detector.PoseFrame, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.pose == nil {
		return nil, nil
	}
	p := *m.pose
	return &p, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
