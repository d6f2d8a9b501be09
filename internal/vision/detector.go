// Package vision estimates body pose landmarks from camera images.
package vision

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitstand/internal/detector"
)

// Detector defines the interface for pose landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the landmarks of the tracked subject.
	// Returns nil when nobody is detected. The caller stamps TimestampMs.
	Detect(frame *gocv.Mat) (*detector.PoseFrame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ModelComplexity selects the landmark model (0=lite, 1=full, 2=heavy).
	ModelComplexity int

	// IdleTimeout stops the pose service after this long without frames.
	// Zero keeps it running.
	IdleTimeout time.Duration

	// Script and Python override the pose service locations.
	Script string
	Python string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ModelComplexity: 1,
		IdleTimeout:     30 * time.Second,
	}
}
