package detector

import "math"

// PoseParams describes a synthetic side-on pose.
type PoseParams struct {
	Side       Side    // side nearer the camera
	KneeDeg    float64 // included knee angle, 180 = straight leg
	ElbowDeg   float64 // included elbow angle, 180 = arm hanging straight
	YawDeg     float64 // torso yaw away from facing the camera
	LeanDeg    float64 // trunk lean from vertical, positive = forward
	AnkleShift float64 // horizontal ankle offset in normalized image units
	Visibility float64 // applied to every landmark
}

// StandingParams returns a side-on standing pose with arms crossed.
func StandingParams() PoseParams {
	return PoseParams{
		Side:       SideLeft,
		KneeDeg:    178,
		ElbowDeg:   60,
		YawDeg:     60,
		Visibility: 0.95,
	}
}

// SeatedParams returns a side-on seated pose with arms crossed.
func SeatedParams() PoseParams {
	p := StandingParams()
	p.KneeDeg = 90
	return p
}

const (
	shankLen   = 0.45 // meters
	thighLen   = 0.45
	trunkLen   = 0.50
	armSegLen  = 0.28
	hipWidth   = 0.30
	imageScale = 0.8 // normalized image units per meter
	ankleImgX  = 0.5
	ankleImgY  = 0.9
)

// SyntheticPose builds a full 33-point frame from p. Image y grows downward;
// with the shank vertical, the hip fraction (kneeY-hipY)/(ankleY-kneeY) equals -cos(knee).
func SyntheticPose(p PoseParams) PoseFrame {
	var f PoseFrame
	vis := p.Visibility

	fwd := 1.0
	if p.Side == SideLeft {
		fwd = -1.0
	}

	yaw := p.YawDeg * math.Pi / 180
	dx := hipWidth * math.Cos(yaw)
	dz := hipWidth * math.Sin(yaw)

	knee := p.KneeDeg * math.Pi / 180
	lean := p.LeanDeg * math.Pi / 180
	elbow := p.ElbowDeg * math.Pi / 180

	build := func(s Side, xOff, z float64) {
		lm := LandmarksFor(s)

		ankle := WorldPoint{X: xOff + p.AnkleShift/imageScale, Y: shankLen + thighLen, Z: z}
		kneePt := WorldPoint{X: ankle.X, Y: ankle.Y - shankLen, Z: z}
		hip := WorldPoint{
			X: kneePt.X + fwd*thighLen*math.Sin(knee),
			Y: kneePt.Y + thighLen*math.Cos(knee),
			Z: z,
		}
		shoulder := WorldPoint{
			X: hip.X + fwd*trunkLen*math.Sin(lean),
			Y: hip.Y - trunkLen*math.Cos(lean),
			Z: z,
		}
		elbowPt := WorldPoint{X: shoulder.X, Y: shoulder.Y + armSegLen, Z: z}
		wrist := WorldPoint{
			X: elbowPt.X + fwd*armSegLen*math.Sin(elbow),
			Y: elbowPt.Y - armSegLen*math.Cos(elbow),
			Z: z,
		}
		heel := WorldPoint{X: ankle.X - fwd*0.05, Y: ankle.Y + 0.03, Z: z}
		toe := WorldPoint{X: ankle.X + fwd*0.15, Y: ankle.Y + 0.03, Z: z}

		pts := map[int]WorldPoint{
			lm.Ankle: ankle, lm.Knee: kneePt, lm.Hip: hip, lm.Shoulder: shoulder,
			lm.Elbow: elbowPt, lm.Wrist: wrist, lm.Heel: heel, lm.FootIndex: toe,
		}
		for i, w := range pts {
			f.Set(i, toImage(w), w)
			f.Points[i].Visibility = vis
		}
	}

	nearZ, farZ := -dz/2, dz/2
	build(p.Side, 0, nearZ)
	build(p.Side.Opposite(), dx, farZ)

	// The synthetic body is a 2D projection: image coordinates ignore depth, and
	// the opposite side is shifted by dx so shoulder/hip lines keep a width.
	head := f.World[LandmarksFor(p.Side).Shoulder]
	head.Y -= 0.25
	for i := 0; i <= FaceMaxIndex; i++ {
		f.Set(i, toImage(head), head)
		f.Points[i].Visibility = vis
	}
	for i := firstHandIndex; i <= lastHandIndex; i++ {
		w := LandmarksFor(SideLeft).Wrist
		if i%2 == 0 {
			w = LandmarksFor(SideRight).Wrist
		}
		f.Set(i, f.Points[w], f.World[w])
	}

	return f
}

func toImage(w WorldPoint) Landmark {
	return Landmark{
		X: ankleImgX + w.X*imageScale,
		Y: ankleImgY - (shankLen+thighLen-w.Y)*imageScale,
	}
}
