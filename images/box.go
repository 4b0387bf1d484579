// Package images - image geometry and pixel utilities for detection pipelines.
package images

// Rect is a lightweight bounding box.
// Right and Bottom are exclusive (like image.Rectangle).
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// Width returns the horizontal extent in pixels.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent in pixels.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Area returns the pixel area, promoted so products on large frames cannot
// overflow the intermediate arithmetic.
func (r Rect) Area() int64 { return int64(r.Width()) * int64(r.Height()) }

// Empty reports whether the rect has no interior.
func (r Rect) Empty() bool { return r.Left >= r.Right || r.Top >= r.Bottom }

// CalculateIoU computes the Intersection-over-Union of two boxes.
//
// IoU = intersection area / union area, a value in [0, 1]: 1.0 means the
// boxes are identical, 0.0 means they do not overlap at all. The overlap
// corner coordinates are the max of the two lefts/tops and the min of the
// two rights/bottoms; if either overlap extent is zero or negative the
// boxes are disjoint and the result is exactly 0. The union is computed by
// inclusion-exclusion, Area(A) + Area(B) - Area(overlap), and the final
// division happens in floating point.
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.Left, o.Left)
	iy1 := max(r.Top, o.Top)
	ix2 := min(r.Right, o.Right)
	iy2 := min(r.Bottom, o.Bottom)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := int64(interW) * int64(interH)

	unionArea := r.Area() + o.Area() - interArea

	return float32(interArea) / float32(unionArea)
}
