package detection

import (
	"encoding/json"
	"fmt"
)

// Geometry travels as compact arrays: boxes as [x1, y1, x2, y2], keypoints as
// [x, y, confidence] and landmarks as [x, y].

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	v, err := unmarshalFloats(data, 4, 4)
	if err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	*b = BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	return nil
}

func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{k.X, k.Y, k.Confidence})
}

// UnmarshalJSON accepts [x, y] or [x, y, confidence]. A missing confidence is 0.
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	v, err := unmarshalFloats(data, 2, 3)
	if err != nil {
		return fmt.Errorf("keypoint: %w", err)
	}
	*k = Keypoint{X: v[0], Y: v[1]}
	if len(v) == 3 {
		k.Confidence = v[2]
	}
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts [x, y] and ignores a trailing z from 3D meshes.
func (p *Point) UnmarshalJSON(data []byte) error {
	v, err := unmarshalFloats(data, 2, 3)
	if err != nil {
		return fmt.Errorf("point: %w", err)
	}
	*p = Point{X: v[0], Y: v[1]}
	return nil
}

func unmarshalFloats(data []byte, minLen, maxLen int) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if len(v) < minLen || len(v) > maxLen {
		return nil, fmt.Errorf("expected %d to %d numbers, got %d", minLen, maxLen, len(v))
	}
	return v, nil
}
