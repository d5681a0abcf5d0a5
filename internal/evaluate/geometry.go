package evaluate

import (
	"math"

	"github.com/tphakala/safeguard-go/internal/detection"
)

const angleEpsilon = 1e-6

// Movement is the mean displacement of keypoints confidently seen in both
// sets, normalized by refWidth. It is 0 without a previous set or when no
// keypoint qualifies.
func Movement(curr, prev []detection.Keypoint, minConf, refWidth float64) float64 {
	if prev == nil || refWidth <= 0 {
		return 0
	}
	var sum float64
	var n int
	for i := range min(len(curr), len(prev)) {
		if curr[i].Confidence > minConf && prev[i].Confidence > minConf {
			sum += curr[i].Point().Dist(prev[i].Point())
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / refWidth
}

func confident(minConf float64, kps ...detection.Keypoint) bool {
	for _, k := range kps {
		if k.Confidence <= minConf {
			return false
		}
	}
	return true
}

func midpoint(a, b detection.Keypoint) detection.Point {
	return detection.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// torso returns shoulder and hip centers, or false when any of the four
// keypoints is not confident.
func torso(kps []detection.Keypoint, minConf float64) (shoulders, hips detection.Point, ok bool) {
	if len(kps) < detection.NumKeypoints {
		return shoulders, hips, false
	}
	ls, rs := kps[detection.KeypointLeftShoulder], kps[detection.KeypointRightShoulder]
	lh, rh := kps[detection.KeypointLeftHip], kps[detection.KeypointRightHip]
	if !confident(minConf, ls, rs, lh, rh) {
		return shoulders, hips, false
	}
	return midpoint(ls, rs), midpoint(lh, rh), true
}

// BodyAngle is the angle in degrees between the shoulder-to-hip vector and
// straight down: 0 standing, 90 lying.
func BodyAngle(kps []detection.Keypoint, minConf float64) float64 {
	shoulders, hips, ok := torso(kps, minConf)
	if !ok {
		return 0
	}
	dx := hips.X - shoulders.X
	dy := hips.Y - shoulders.Y
	return math.Abs(degrees(math.Atan2(dx, dy+angleEpsilon)))
}

// HeadAngle is the angle in degrees between the neck-to-nose vector and
// straight up: 0 for an upright head, larger as the head droops.
func HeadAngle(kps []detection.Keypoint, minConf float64) float64 {
	if len(kps) < detection.NumKeypoints {
		return 0
	}
	nose := kps[detection.KeypointNose]
	ls, rs := kps[detection.KeypointLeftShoulder], kps[detection.KeypointRightShoulder]
	if !confident(minConf, nose, ls, rs) {
		return 0
	}
	neck := midpoint(ls, rs)
	dx := nose.X - neck.X
	up := neck.Y - nose.Y
	return math.Abs(degrees(math.Atan2(dx, up+angleEpsilon)))
}

// VerticalRatio is torso height over shoulder width.
func VerticalRatio(kps []detection.Keypoint, minConf float64) float64 {
	shoulders, hips, ok := torso(kps, minConf)
	if !ok {
		return 0
	}
	width := math.Abs(kps[detection.KeypointRightShoulder].X - kps[detection.KeypointLeftShoulder].X)
	height := math.Abs(hips.Y - shoulders.Y)
	return height / (width + angleEpsilon)
}

// Eye landmark indices in the face mesh, ordered p1..p6: outer corner, two
// upper lid points, inner corner, two lower lid points.
var (
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	RightEye = [6]int{362, 385, 387, 263, 373, 380}
)

const (
	landmarkNoseTip  = 1
	landmarkForehead = 10
	landmarkChin     = 152
)

// EyeAspectRatio is (|p2-p6| + |p3-p5|) / (2|p1-p4|) with normalized
// landmarks scaled to a w by h frame. ok is false when the eye corners
// coincide.
func EyeAspectRatio(lm []detection.Point, eye [6]int, w, h float64) (ear float64, ok bool) {
	p := func(i int) detection.Point {
		return detection.Point{X: lm[eye[i]].X * w, Y: lm[eye[i]].Y * h}
	}
	horizontal := p(0).Dist(p(3))
	if horizontal == 0 {
		return 0, false
	}
	return (p(1).Dist(p(5)) + p(2).Dist(p(4))) / (2 * horizontal), true
}

// HeadPitch estimates pitch from the nose position between forehead and
// chin: 0 neutral, positive looking down. ok is false for a degenerate mesh.
func HeadPitch(lm []detection.Point) (pitch float64, ok bool) {
	forehead := lm[landmarkForehead].Y
	faceHeight := lm[landmarkChin].Y - forehead
	if faceHeight <= 0 {
		return 0, false
	}
	return ((lm[landmarkNoseTip].Y-forehead)/faceHeight - 0.5) * 100, true
}
