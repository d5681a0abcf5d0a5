// Package evaluate implements the per-frame condition evaluators.
//
// Evaluators are pure: they read a track snapshot and the current detections
// and return a result plus the timer values to store for the next frame. Timers
// count frames at the nominal rate, so a 3 s threshold at 30 fps is exactly 90
// qualifying frames.
package evaluate

import (
	"fmt"
	"math"
	"strings"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/tracker"
)

// DefaultFrameHeight is assumed when the frame height is unknown.
const DefaultFrameHeight = 640

// Result is one condition's verdict for one frame.
type Result struct {
	Active bool
	// Metric is the accumulated seconds for timed conditions and the
	// normalized speed for falling.
	Metric float64
}

// EntityResult holds every per-entity verdict for one frame.
type EntityResult struct {
	Sleeping    Result
	Falling     Result
	Unconscious Result
	Drowning    Result

	Movement      float64
	BodyAngle     float64
	HeadAngle     float64
	VerticalRatio float64

	// Timers are the values to store on the track.
	Timers tracker.Timers
}

// EyeResult is the scene-global eye closure verdict.
type EyeResult struct {
	Closed  bool
	Faces   int     // faces evaluated
	Skipped int     // faces without a usable mesh or with collapsed eyes
	MinEAR  float64 // 1 when no face was evaluated
	Pitch   float64 // pitch of the last evaluated face
}

// WeaponResult lists objects recognized as weapons.
type WeaponResult struct {
	Active  bool
	Matches []detection.ObjectDetection
}

// FireResult summarizes fire regions above the area threshold.
type FireResult struct {
	Active  bool
	Regions int
	MaxArea float64
}

// Evaluator applies threat settings. It holds no per-stream state.
type Evaluator struct {
	s *conf.ThreatSettings

	sleepFrames       int
	unconsciousFrames int
	drownFrames       int
	weaponClasses     []string
}

// New creates an evaluator for settings.
func New(settings *conf.ThreatSettings) *Evaluator {
	classes := make([]string, len(settings.Weapon.Classes))
	for i, c := range settings.Weapon.Classes {
		classes[i] = strings.ToLower(c)
	}
	return &Evaluator{
		s:                 settings,
		sleepFrames:       settings.FramesFor(settings.Sleeping.Duration),
		unconsciousFrames: settings.FramesFor(settings.Unconscious.Duration),
		drownFrames:       settings.FramesFor(settings.Drowning.Duration),
		weaponClasses:     classes,
	}
}

func (e *Evaluator) seconds(frames int) float64 {
	return float64(frames) / e.s.FPS
}

// reached needs at least one qualifying frame even for a zero duration.
func reached(frames, threshold int) bool {
	return frames > 0 && frames >= threshold
}

// Entity evaluates all per-entity conditions for pose, which the tracker has
// already recorded on track. Invalid poses yield ErrPerceptionUnavailable with
// the timers unchanged.
func (e *Evaluator) Entity(track *tracker.Track, pose *detection.PoseDetection, frameHeight int) (EntityResult, error) {
	out := EntityResult{Timers: track.Timers}
	if err := pose.Validate(); err != nil {
		return out, err
	}
	prev := track.Previous()
	if prev != nil && len(prev) < detection.NumKeypoints {
		prev = nil
	}

	kps := pose.Keypoints
	minConf := e.s.KeypointConfidence
	out.Movement = Movement(kps, prev, minConf, e.s.ReferenceWidth)
	out.BodyAngle = BodyAngle(kps, minConf)
	out.HeadAngle = HeadAngle(kps, minConf)
	out.VerticalRatio = VerticalRatio(kps, minConf)

	timers := track.Timers
	out.Sleeping, timers.SleepFrames = e.Sleeping(out.Movement, out.HeadAngle, timers.SleepFrames)
	out.Falling, timers.LastCenterY = e.Falling(pose.BBox, out.BodyAngle, timers.LastCenterY, timers.HasLastCenterY)
	timers.HasLastCenterY = true
	out.Unconscious, timers.UnconsciousFrames = e.Unconscious(pose.BBox, out.BodyAngle, out.Movement, frameHeight, timers.UnconsciousFrames)
	out.Drowning, timers.DrownFrames = e.Drowning(out.Movement, out.VerticalRatio, timers.DrownFrames)
	out.Timers = timers
	return out, nil
}

// Sleeping counts consecutive still frames with the head down.
func (e *Evaluator) Sleeping(movement, headAngle float64, frames int) (Result, int) {
	if movement < e.s.Sleeping.MovementThreshold && headAngle > e.s.Sleeping.HeadAngle {
		frames++
	} else {
		frames = 0
	}
	return Result{Active: reached(frames, e.sleepFrames), Metric: e.seconds(frames)}, frames
}

// Falling detects a fast downward move of a tilted body. It never fires on
// the first sighting and always returns the new center y for storage.
func (e *Evaluator) Falling(box detection.BBox, bodyAngle, lastY float64, hasLastY bool) (Result, float64) {
	cy := box.Center().Y
	if !hasLastY {
		return Result{}, cy
	}
	change := cy - lastY
	speed := math.Abs(change) / e.s.ReferenceWidth
	active := speed > e.s.Falling.SpeedThreshold && change > 0 && bodyAngle > e.s.Falling.AngleThreshold
	return Result{Active: active, Metric: speed}, cy
}

// Unconscious counts consecutive frames lying still near the ground.
func (e *Evaluator) Unconscious(box detection.BBox, bodyAngle, movement float64, frameHeight, frames int) (Result, int) {
	if frameHeight <= 0 {
		frameHeight = DefaultFrameHeight
	}
	nearGround := box.Bottom() > float64(frameHeight)*e.s.Unconscious.GroundRatio
	horizontal := bodyAngle > e.s.Unconscious.AngleThreshold
	still := movement < e.s.Unconscious.MovementThreshold
	if nearGround && horizontal && still {
		frames++
	} else {
		frames = 0
	}
	return Result{Active: reached(frames, e.unconsciousFrames), Metric: e.seconds(frames)}, frames
}

// Drowning is a leaky bucket: erratic upright frames add one, any other
// frame removes one, floored at zero.
func (e *Evaluator) Drowning(movement, verticalRatio float64, frames int) (Result, int) {
	if movement > e.s.Drowning.MovementThreshold && verticalRatio > e.s.Drowning.VerticalRatio {
		frames++
	} else if frames > 0 {
		frames--
	}
	return Result{Active: reached(frames, e.drownFrames), Metric: e.seconds(frames)}, frames
}

// EyeClosure applies the two-threshold hysteresis over every face. wasClosed
// is the previous frame's verdict; the caller stores the returned Closed for
// the next frame. width and height scale normalized landmarks; zero means 1.
func (e *Evaluator) EyeClosure(faces []detection.Face, wasClosed bool, width, height int) EyeResult {
	w, h := float64(width), float64(height)
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	res := EyeResult{MinEAR: 1}
	for i := range faces {
		face := &faces[i]
		if err := face.Validate(); err != nil {
			res.Skipped++
			continue
		}
		left, okLeft := EyeAspectRatio(face.Landmarks, LeftEye, w, h)
		right, okRight := EyeAspectRatio(face.Landmarks, RightEye, w, h)
		if !okLeft || !okRight {
			res.Skipped++
			continue
		}
		res.Faces++

		ear := (left + right) / 2
		res.MinEAR = min(res.MinEAR, ear)
		if pitch, ok := HeadPitch(face.Landmarks); ok {
			res.Pitch = pitch
		}

		switch {
		case res.Pitch > e.s.Eyes.PitchOverride:
			// looking down, not resting
			res.Closed = false
		case wasClosed && ear < e.s.Eyes.OpenThreshold:
			res.Closed = true
		case !wasClosed && ear < e.s.Eyes.ClosedThreshold:
			res.Closed = true
		}
	}
	return res
}

// Weapons matches object classes against the configured weapon names.
func (e *Evaluator) Weapons(objects []detection.ObjectDetection) WeaponResult {
	var res WeaponResult
	for _, obj := range objects {
		if obj.Confidence < e.s.Weapon.Confidence {
			continue
		}
		class := strings.ToLower(obj.Class)
		for _, w := range e.weaponClasses {
			if strings.Contains(class, w) {
				res.Matches = append(res.Matches, obj)
				break
			}
		}
	}
	res.Active = len(res.Matches) > 0
	return res
}

// Fire reports regions larger than the minimum area. Disabled fire detection
// is never active.
func (e *Evaluator) Fire(regions []detection.FireRegion) FireResult {
	var res FireResult
	if !e.s.Fire.Enabled {
		return res
	}
	for _, r := range regions {
		if r.Area > e.s.Fire.MinArea {
			res.Regions++
			res.MaxArea = max(res.MaxArea, r.Area)
		}
	}
	res.Active = res.Regions > 0
	return res
}

// Describe renders a short human-readable summary used in alert messages.
func (r WeaponResult) Describe() string {
	if len(r.Matches) == 0 {
		return ""
	}
	m := r.Matches[0]
	return fmt.Sprintf("%s (confidence %.0f%%)", strings.ToUpper(m.Class), m.Confidence*100)
}
