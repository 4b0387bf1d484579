// Package postprocess - converts raw detector head outputs into a final,
// de-duplicated detection list.
package postprocess

import "github.com/edge-ml/go-detect/images"

// Detection is a single detected object in source-image coordinates.
type Detection struct {
	// The bounding box of the detection, never degenerate.
	Box images.Rect `json:"box"`
	// The confidence score of the detection, in [0, 1].
	Confidence float32 `json:"confidence"`
	// The raw class index predicted by the model.
	Class int `json:"class"`
}
