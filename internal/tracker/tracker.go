// Package tracker associates pose detections across frames by nearest box
// center, giving each person a stable entity id while they stay in view.
//
// Association is greedy and deterministic: detections are processed in input
// order, candidate tracks in ascending id order, and a track can be claimed by
// at most one detection per frame. Tracks not seen for StaleFrames frames are
// evicted and never re-identified.
package tracker

import (
	"math"
	"slices"

	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
)

// ErrTrackingAmbiguity is reported when a detection's nearest track was
// already claimed earlier in the same frame.
var ErrTrackingAmbiguity = errors.NewStd("tracking ambiguity")

func GetLogger() logger.Logger {
	return logger.Global().Module("tracker")
}

// Config controls association and retention.
type Config struct {
	MatchDistance float64 // maximum center distance in pixels, exclusive
	StaleFrames   uint64  // frames a track survives without a match
	HistorySize   int     // keypoint sets kept per track
}

// DefaultConfig mirrors the shipped configuration.
func DefaultConfig() Config {
	return Config{MatchDistance: 100, StaleFrames: 30, HistorySize: 30}
}

// Timers carries evaluator state between frames. The tracker stores it but
// never interprets it.
type Timers struct {
	SleepFrames       int
	UnconsciousFrames int
	DrownFrames       int
	LastCenterY       float64
	HasLastCenterY    bool
}

// Track is the tracker's view of one entity.
type Track struct {
	ID        int
	Position  detection.Point
	BBox      detection.BBox
	FirstSeen uint64
	LastSeen  uint64
	Timers    Timers

	history [][]detection.Keypoint
}

// Current returns the keypoints recorded for the latest frame.
func (t *Track) Current() []detection.Keypoint {
	if len(t.history) == 0 {
		return nil
	}
	return t.history[len(t.history)-1]
}

// Previous returns the keypoints recorded before the latest frame, or nil on
// first sighting.
func (t *Track) Previous() []detection.Keypoint {
	if len(t.history) < 2 {
		return nil
	}
	return t.history[len(t.history)-2]
}

// HistoryLen is the number of keypoint sets kept.
func (t *Track) HistoryLen() int { return len(t.history) }

// Assignment is the outcome of one Update.
type Assignment struct {
	// IDs maps detection index to entity id.
	IDs []int
	// Created lists ids allocated this frame.
	Created []int
	// Evicted lists ids dropped as stale before association.
	Evicted []int
	// Ambiguous lists detection indexes whose nearest track was already claimed.
	Ambiguous []int
}

// Tracker owns all tracks of one stream. It is not safe for concurrent use.
type Tracker struct {
	cfg    Config
	tracks map[int]*Track
	order  []int // live ids, ascending
	nextID int
	log    logger.Logger
}

// New creates an empty tracker. A nil log uses the package logger.
func New(cfg Config, log logger.Logger) *Tracker {
	if log == nil {
		log = GetLogger()
	}
	if cfg.HistorySize < 2 {
		cfg.HistorySize = 2
	}
	return &Tracker{
		cfg:    cfg,
		tracks: make(map[int]*Track),
		log:    log,
	}
}

// Update associates poses observed in frame with tracks.
func (tr *Tracker) Update(frame uint64, poses []detection.PoseDetection) Assignment {
	a := Assignment{IDs: make([]int, len(poses))}
	a.Evicted = tr.evictStale(frame)

	claimed := make(map[int]bool, len(poses))
	for i := range poses {
		pose := &poses[i]
		center := pose.BBox.Center()

		best, bestDist := -1, math.Inf(1)
		taken, takenDist := -1, math.Inf(1)
		for _, id := range tr.order {
			d := tr.tracks[id].Position.Dist(center)
			if d >= tr.cfg.MatchDistance {
				continue
			}
			if claimed[id] {
				if d < takenDist {
					taken, takenDist = id, d
				}
				continue
			}
			if d < bestDist {
				best, bestDist = id, d
			}
		}
		if taken >= 0 && (takenDist < bestDist || (takenDist == bestDist && taken < best)) {
			a.Ambiguous = append(a.Ambiguous, i)
			tr.log.Warn("nearest track already claimed this frame",
				logger.Error(ErrTrackingAmbiguity),
				logger.Int("detection", i),
				logger.Uint64("frame", frame),
				logger.Int("fallback_id", best))
		}

		if best < 0 {
			best = tr.create(frame, center)
			a.Created = append(a.Created, best)
		}
		tr.observe(tr.tracks[best], frame, pose)
		claimed[best] = true
		a.IDs[i] = best
	}
	return a
}

func (tr *Tracker) evictStale(frame uint64) []int {
	if frame <= tr.cfg.StaleFrames {
		return nil
	}
	cutoff := frame - tr.cfg.StaleFrames
	var evicted []int
	tr.order = slices.DeleteFunc(tr.order, func(id int) bool {
		if tr.tracks[id].LastSeen < cutoff {
			evicted = append(evicted, id)
			delete(tr.tracks, id)
			return true
		}
		return false
	})
	if len(evicted) > 0 {
		tr.log.Debug("evicted stale tracks", logger.Any("ids", evicted), logger.Uint64("frame", frame))
	}
	return evicted
}

func (tr *Tracker) create(frame uint64, center detection.Point) int {
	id := tr.nextID
	tr.nextID++
	tr.tracks[id] = &Track{
		ID:        id,
		Position:  center,
		FirstSeen: frame,
		history:   make([][]detection.Keypoint, 0, tr.cfg.HistorySize),
	}
	// ids are monotonic, so appending keeps order sorted
	tr.order = append(tr.order, id)
	return id
}

func (tr *Tracker) observe(t *Track, frame uint64, pose *detection.PoseDetection) {
	if len(t.history) == tr.cfg.HistorySize {
		t.history = slices.Delete(t.history, 0, 1)
	}
	t.history = append(t.history, slices.Clone(pose.Keypoints))
	t.Position = pose.BBox.Center()
	t.BBox = pose.BBox
	t.LastSeen = frame
}

// Track returns a snapshot of entity id. The keypoint history is shared and
// must not be modified.
func (tr *Tracker) Track(id int) (Track, bool) {
	t, ok := tr.tracks[id]
	if !ok {
		return Track{}, false
	}
	return *t, true
}

// SetTimers stores evaluator timers for entity id. Unknown ids are ignored
// and reported as false.
func (tr *Tracker) SetTimers(id int, timers Timers) bool {
	t, ok := tr.tracks[id]
	if ok {
		t.Timers = timers
	}
	return ok
}

// IDs returns the live entity ids in ascending order.
func (tr *Tracker) IDs() []int { return slices.Clone(tr.order) }

func (tr *Tracker) Len() int { return len(tr.tracks) }

// Reset drops every track. Ids keep increasing.
func (tr *Tracker) Reset() {
	clear(tr.tracks)
	tr.order = tr.order[:0]
}
