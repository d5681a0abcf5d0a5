// Package detection provides the per-frame perception models consumed by the
// threat pipeline. Values are produced by external detectors (object, pose,
// face mesh and fire heuristics) and are treated as immutable once a frame
// has been submitted.
package detection

import (
	"fmt"
	"math"
	"time"

	"github.com/tphakala/safeguard-go/internal/errors"
)

// ErrPerceptionUnavailable marks detector output that cannot be evaluated for
// the current frame, such as a truncated keypoint set or NaN coordinates.
var ErrPerceptionUnavailable = errors.NewStd("perception unavailable")

// COCO keypoint layout used by pose detectors.
const (
	KeypointNose          = 0
	KeypointLeftShoulder  = 5
	KeypointRightShoulder = 6
	KeypointLeftHip       = 11
	KeypointRightHip      = 12
	NumKeypoints          = 17
)

// MinFaceLandmarks is the smallest face mesh that contains every landmark
// used by eye closure evaluation.
const MinFaceLandmarks = 388

// Point is a 2D position. Face landmarks use normalized 0..1 coordinates.
type Point struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Keypoint is a pose keypoint in pixel coordinates with its confidence.
type Keypoint struct {
	X          float64
	Y          float64
	Confidence float64
}

func (k Keypoint) Point() Point { return Point{X: k.X, Y: k.Y} }

// BBox is an axis-aligned box in pixel coordinates.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

func (b BBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Bottom is the largest y of the box, the edge closest to the ground.
func (b BBox) Bottom() float64 { return b.Y2 }

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// ObjectDetection is a classified object box.
type ObjectDetection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// PoseDetection is a person box with its COCO keypoints.
type PoseDetection struct {
	BBox       BBox       `json:"bbox"`
	Confidence float64    `json:"confidence"`
	Keypoints  []Keypoint `json:"keypoints"`
}

// Validate reports ErrPerceptionUnavailable for poses that cannot be evaluated.
func (p *PoseDetection) Validate() error {
	if len(p.Keypoints) < NumKeypoints {
		return fmt.Errorf("%w: pose has %d keypoints, want %d", ErrPerceptionUnavailable, len(p.Keypoints), NumKeypoints)
	}
	if !finite(p.BBox.X1, p.BBox.Y1, p.BBox.X2, p.BBox.Y2, p.Confidence) {
		return fmt.Errorf("%w: pose box is not finite", ErrPerceptionUnavailable)
	}
	for i, kp := range p.Keypoints {
		if !finite(kp.X, kp.Y, kp.Confidence) {
			return fmt.Errorf("%w: keypoint %d is not finite", ErrPerceptionUnavailable, i)
		}
	}
	return nil
}

// Face is a face mesh in normalized coordinates.
type Face struct {
	Landmarks []Point `json:"landmarks"`
}

// Validate reports ErrPerceptionUnavailable for meshes missing required landmarks.
func (f *Face) Validate() error {
	if len(f.Landmarks) < MinFaceLandmarks {
		return fmt.Errorf("%w: face has %d landmarks, want at least %d", ErrPerceptionUnavailable, len(f.Landmarks), MinFaceLandmarks)
	}
	for i, p := range f.Landmarks {
		if !finite(p.X, p.Y) {
			return fmt.Errorf("%w: landmark %d is not finite", ErrPerceptionUnavailable, i)
		}
	}
	return nil
}

// FireRegion is a candidate fire area from the color heuristic.
type FireRegion struct {
	BBox BBox    `json:"bbox"`
	Area float64 `json:"area"`
}

// Frame is one snapshot of perception output.
type Frame struct {
	Sequence    uint64            `json:"sequence"`
	Timestamp   time.Time         `json:"timestamp"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Objects     []ObjectDetection `json:"objects"`
	Poses       []PoseDetection   `json:"poses"`
	Faces       []Face            `json:"faces"`
	FireRegions []FireRegion      `json:"fire_regions"`
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
