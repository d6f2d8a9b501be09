// Package detector defines the pose landmark model, the geometry derived
// from it and synthetic poses for tests.
package detector

// Pose landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
	FaceMaxIndex   = MouthRight
	firstBodyIndex = LeftShoulder
	firstHandIndex = LeftPinky
	lastHandIndex  = RightThumb
	lowConfidence  = 0.4
)

// Landmark is a body point in normalized image coordinates with a visibility confidence.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// WorldPoint is the metric counterpart of a landmark, in meters relative to the hip center.
type WorldPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseFrame holds one tracked subject's landmarks for a single processed video frame.
type PoseFrame struct {
	Points      [NumLandmarks]Landmark   `json:"points"`
	World       [NumLandmarks]WorldPoint `json:"world"`
	Present     [NumLandmarks]bool       `json:"present"`
	TimestampMs int64                    `json:"timestamp_ms"`
}

// Visible reports whether landmark i is present with visibility at or above minVis.
func (f *PoseFrame) Visible(i int, minVis float64) bool {
	if f == nil || i < 0 || i >= NumLandmarks || !f.Present[i] {
		return false
	}
	return f.Points[i].Visibility >= minVis
}

// AllVisible reports whether every listed landmark passes Visible.
func (f *PoseFrame) AllVisible(minVis float64, idx ...int) bool {
	for _, i := range idx {
		if !f.Visible(i, minVis) {
			return false
		}
	}
	return true
}

// Set stores a landmark and its world point and marks it present.
func (f *PoseFrame) Set(i int, lm Landmark, w WorldPoint) {
	f.Points[i] = lm
	f.World[i] = w
	f.Present[i] = true
}

// LowConfidenceCount counts body landmarks (shoulders down, hands excluded)
// whose visibility is below 0.4. Missing landmarks count as low confidence.
func (f *PoseFrame) LowConfidenceCount() int {
	n := 0
	for i := firstBodyIndex; i < NumLandmarks; i++ {
		if i >= firstHandIndex && i <= lastHandIndex {
			continue
		}
		if !f.Visible(i, lowConfidence) {
			n++
		}
	}
	return n
}

// Side identifies the half of the body nearer the camera.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// SideLandmarks resolves the per-side landmark indices used by the core.
type SideLandmarks struct {
	Shoulder, Elbow, Wrist, Hip, Knee, Ankle, Heel, FootIndex int
}

// LandmarksFor returns the landmark indices for side s.
func LandmarksFor(s Side) SideLandmarks {
	if s == SideLeft {
		return SideLandmarks{
			Shoulder: LeftShoulder, Elbow: LeftElbow, Wrist: LeftWrist,
			Hip: LeftHip, Knee: LeftKnee, Ankle: LeftAnkle,
			Heel: LeftHeel, FootIndex: LeftFootIndex,
		}
	}
	return SideLandmarks{
		Shoulder: RightShoulder, Elbow: RightElbow, Wrist: RightWrist,
		Hip: RightHip, Knee: RightKnee, Ankle: RightAnkle,
		Heel: RightHeel, FootIndex: RightFootIndex,
	}
}

// Indices returns all landmark indices of the side in a fixed order.
func (s SideLandmarks) Indices() []int {
	return []int{s.Shoulder, s.Elbow, s.Wrist, s.Hip, s.Knee, s.Ankle, s.Heel, s.FootIndex}
}
