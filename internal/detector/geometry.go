package detector

import "math"

const (
	rad2deg = 180 / math.Pi
	// minNorm is the smallest vector magnitude treated as a real direction.
	minNorm = 1e-6
)

// angleBetween3D returns the included angle in degrees between u and v.
// ok is false when either vector is degenerate.
func angleBetween3D(u, v WorldPoint) (float64, bool) {
	nu := math.Sqrt(u.X*u.X + u.Y*u.Y + u.Z*u.Z)
	nv := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if nu < minNorm || nv < minNorm {
		return 0, false
	}
	c := (u.X*v.X + u.Y*v.Y + u.Z*v.Z) / (nu * nv)
	return math.Acos(clampUnit(c)) * rad2deg, true
}

func sub3(a, b WorldPoint) WorldPoint {
	return WorldPoint{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func clampUnit(c float64) float64 {
	return math.Max(-1, math.Min(1, c))
}

// KneeFlexion3D returns the included knee angle (thigh vs shank) for side s
// using world landmarks. About 180 when the leg is straight.
func KneeFlexion3D(f *PoseFrame, s Side) (float64, bool) {
	lm := LandmarksFor(s)
	if f == nil || !f.Present[lm.Hip] || !f.Present[lm.Knee] || !f.Present[lm.Ankle] {
		return 0, false
	}
	knee := f.World[lm.Knee]
	return angleBetween3D(sub3(f.World[lm.Hip], knee), sub3(f.World[lm.Ankle], knee))
}

// ElbowAngle2D returns the included elbow angle for side s in image space,
// from the elbow->shoulder and elbow->wrist vectors.
func ElbowAngle2D(f *PoseFrame, s Side) (float64, bool) {
	lm := LandmarksFor(s)
	if f == nil || !f.Present[lm.Shoulder] || !f.Present[lm.Elbow] || !f.Present[lm.Wrist] {
		return 0, false
	}
	sh, el, wr := f.Points[lm.Shoulder], f.Points[lm.Elbow], f.Points[lm.Wrist]
	v1x, v1y := sh.X-el.X, sh.Y-el.Y
	v2x, v2y := wr.X-el.X, wr.Y-el.Y
	n1, n2 := math.Hypot(v1x, v1y), math.Hypot(v2x, v2y)
	if n1 <= minNorm || n2 <= minNorm {
		return 0, false
	}
	c := (v1x*v2x + v1y*v2y) / (n1 * n2)
	return math.Acos(clampUnit(c)) * rad2deg, true
}

// TorsoYaw returns how far the torso is turned away from facing the camera,
// averaging the shoulder line and the hip line. 0 means square to the camera.
func TorsoYaw(f *PoseFrame) (float64, bool) {
	if f == nil {
		return 0, false
	}
	for _, i := range []int{LeftShoulder, RightShoulder, LeftHip, RightHip} {
		if !f.Present[i] {
			return 0, false
		}
	}
	yaw := func(l, r WorldPoint) float64 {
		dx := math.Abs(r.X - l.X)
		dz := math.Abs(r.Z - l.Z)
		return math.Atan2(dz, math.Max(minNorm, dx)) * rad2deg
	}
	ys := yaw(f.World[LeftShoulder], f.World[RightShoulder])
	yh := yaw(f.World[LeftHip], f.World[RightHip])
	v := (ys + yh) / 2
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// DepthDiff returns the mean shoulder+hip depth of the left side minus the right side.
// Negative means the left side is nearer the camera.
func DepthDiff(f *PoseFrame) float64 {
	leftZ := (f.World[LeftShoulder].Z + f.World[LeftHip].Z) / 2
	rightZ := (f.World[RightShoulder].Z + f.World[RightHip].Z) / 2
	return leftZ - rightZ
}

// CloserSide returns the side whose shoulder and hip are nearer the camera.
func CloserSide(f *PoseFrame) Side {
	if DepthDiff(f) < 0 {
		return SideLeft
	}
	return SideRight
}

// TrunkLean returns the signed angle of the hip->shoulder vector from vertical-up
// in image space, oriented so positive means leaning forward for either side.
func TrunkLean(f *PoseFrame, s Side) (float64, bool) {
	lm := LandmarksFor(s)
	if f == nil || !f.Present[lm.Shoulder] || !f.Present[lm.Hip] {
		return 0, false
	}
	vx := f.Points[lm.Shoulder].X - f.Points[lm.Hip].X
	vy := f.Points[lm.Shoulder].Y - f.Points[lm.Hip].Y
	if math.Hypot(vx, vy) < minNorm {
		return 0, false
	}
	deg := math.Atan2(vx, -vy) * rad2deg
	if s == SideLeft {
		deg = -deg
	}
	return deg, true
}
