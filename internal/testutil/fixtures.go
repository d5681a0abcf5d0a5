package testutil

import (
	"slices"

	"github.com/tphakala/safeguard-go/internal/detection"
)

const fixtureConfidence = 0.9

func kp(x, y float64) detection.Keypoint {
	return detection.Keypoint{X: x, Y: y, Confidence: fixtureConfidence}
}

// UprightPose is a standing person, 200 px tall, horizontally centered on cx
// with the top of the box at top. Body and head angles are 0.
func UprightPose(cx, top float64) detection.PoseDetection {
	return detection.PoseDetection{
		BBox:       detection.BBox{X1: cx - 40, Y1: top, X2: cx + 40, Y2: top + 200},
		Confidence: fixtureConfidence,
		Keypoints: []detection.Keypoint{
			kp(cx, top+15),                     // nose
			kp(cx-6, top+10), kp(cx+6, top+10), // eyes
			kp(cx-12, top+12), kp(cx+12, top+12), // ears
			kp(cx-25, top+45), kp(cx+25, top+45), // shoulders
			kp(cx-30, top+80), kp(cx+30, top+80), // elbows
			kp(cx-32, top+110), kp(cx+32, top+110), // wrists
			kp(cx-18, top+110), kp(cx+18, top+110), // hips
			kp(cx-18, top+150), kp(cx+18, top+150), // knees
			kp(cx-18, top+195), kp(cx+18, top+195), // ankles
		},
	}
}

// DroopedPose is an upright person whose head hangs sideways below shoulder
// level, a head angle of roughly 99 degrees.
func DroopedPose(cx, top float64) detection.PoseDetection {
	p := UprightPose(cx, top)
	p.Keypoints[detection.KeypointNose] = kp(cx+30, top+50)
	return p
}

// LyingPose is a person lying horizontally centered on (cx, cy). The body
// angle is 90 degrees and the box is 50 px tall.
func LyingPose(cx, cy float64) detection.PoseDetection {
	return detection.PoseDetection{
		BBox:       detection.BBox{X1: cx - 100, Y1: cy - 25, X2: cx + 100, Y2: cy + 25},
		Confidence: fixtureConfidence,
		Keypoints: []detection.Keypoint{
			kp(cx-90, cy),
			kp(cx-95, cy-4), kp(cx-95, cy+4),
			kp(cx-92, cy-10), kp(cx-92, cy+10),
			kp(cx-60, cy-12), kp(cx-60, cy+12),
			kp(cx-30, cy-20), kp(cx-30, cy+20),
			kp(cx, cy-22), kp(cx, cy+22),
			kp(cx+40, cy-12), kp(cx+40, cy+12),
			kp(cx+70, cy-12), kp(cx+70, cy+12),
			kp(cx+98, cy-12), kp(cx+98, cy+12),
		},
	}
}

// Shifted returns a copy of p moved by (dx, dy).
func Shifted(p detection.PoseDetection, dx, dy float64) detection.PoseDetection {
	out := p
	out.BBox = detection.BBox{X1: p.BBox.X1 + dx, Y1: p.BBox.Y1 + dy, X2: p.BBox.X2 + dx, Y2: p.BBox.Y2 + dy}
	out.Keypoints = slices.Clone(p.Keypoints)
	for i := range out.Keypoints {
		out.Keypoints[i].X += dx
		out.Keypoints[i].Y += dy
	}
	return out
}

// Jittered returns a copy of p whose keypoints are displaced by ±amount
// alternately, leaving the box in place. Mean displacement relative to p is
// amount*sqrt(2).
func Jittered(p detection.PoseDetection, amount float64) detection.PoseDetection {
	out := p
	out.Keypoints = slices.Clone(p.Keypoints)
	for i := range out.Keypoints {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		out.Keypoints[i].X += sign * amount
		out.Keypoints[i].Y += sign * amount
	}
	return out
}

// FaceMeshSize is the landmark count of a refined face mesh.
const FaceMeshSize = 478

var (
	leftEye  = [6]int{33, 160, 158, 133, 153, 144}
	rightEye = [6]int{362, 385, 387, 263, 373, 380}
)

// FaceMesh builds a normalized face mesh whose eyes both have aspect ratio
// ear and whose head pitch evaluates to pitch.
func FaceMesh(ear, pitch float64) detection.Face {
	lm := make([]detection.Point, FaceMeshSize)
	for i := range lm {
		lm[i] = detection.Point{X: 0.5, Y: 0.5}
	}
	placeEye(lm, leftEye, 0.35, 0.4, ear)
	placeEye(lm, rightEye, 0.65, 0.4, ear)

	const forehead, chin = 0.2, 0.8
	lm[10] = detection.Point{X: 0.5, Y: forehead}
	lm[152] = detection.Point{X: 0.5, Y: chin}
	lm[1] = detection.Point{X: 0.5, Y: forehead + (chin-forehead)*(pitch/100+0.5)}
	return detection.Face{Landmarks: lm}
}

func placeEye(lm []detection.Point, idx [6]int, cx, cy, ear float64) {
	const width = 0.1
	half := ear * width / 2
	lm[idx[0]] = detection.Point{X: cx - width/2, Y: cy}
	lm[idx[3]] = detection.Point{X: cx + width/2, Y: cy}
	lm[idx[1]] = detection.Point{X: cx - 0.02, Y: cy - half}
	lm[idx[5]] = detection.Point{X: cx - 0.02, Y: cy + half}
	lm[idx[2]] = detection.Point{X: cx + 0.02, Y: cy - half}
	lm[idx[4]] = detection.Point{X: cx + 0.02, Y: cy + half}
}
