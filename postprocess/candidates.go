package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/edge-ml/go-detect/images"
	"github.com/edge-ml/go-detect/inference"
)

// BuildCandidates walks the raw per-box rows of a detection head and emits
// the candidates that survive thresholding, projection and clamping.
//
// The boxes tensor is laid out [1, N, 4] with left, top, right, bottom per
// row; the scores and classes tensors hold one entry per box. Scores and
// coordinates are dequantized with their own tensors' parameters (box and
// score outputs routinely carry different scale/zero-point); class ids are
// read raw. Coordinates leave the model in canvas space and are projected
// through pl back into source space, clamped to the source bounds, and
// dropped when degenerate. The output keeps ascending tensor-index order;
// sorting is the suppression stage's job.
func BuildCandidates(
	boxes, scores, classes inference.Tensor,
	boxThreshold float32,
	pl images.Placement,
) ([]Detection, error) {
	dims := boxes.Dims()
	if len(dims) < 2 {
		return nil, errors.Errorf("boxes tensor has %d dimensions, want at least 2", len(dims))
	}
	numBoxes := dims[1]

	if got := inference.ElemCount(boxes); got < numBoxes*4 {
		return nil, errors.Errorf("boxes tensor holds %d values, %d boxes need %d", got, numBoxes, numBoxes*4)
	}
	if got := inference.ElemCount(scores); got < numBoxes {
		return nil, errors.Errorf("scores tensor holds %d values, want %d", got, numBoxes)
	}
	if got := inference.ElemCount(classes); got < numBoxes {
		return nil, errors.Errorf("classes tensor holds %d values, want %d", got, numBoxes)
	}

	maxW := float32(pl.SrcWidth)
	maxH := float32(pl.SrcHeight)

	candidates := make([]Detection, 0, numBoxes/4+1)
	for i := 0; i < numBoxes; i++ {
		score := inference.ValueAt(scores, i)
		if score < boxThreshold {
			continue
		}

		class := inference.ClassAt(classes, i)

		left := inference.ValueAt(boxes, i*4)
		top := inference.ValueAt(boxes, i*4+1)
		right := inference.ValueAt(boxes, i*4+2)
		bottom := inference.ValueAt(boxes, i*4+3)

		// The model saw the letterboxed canvas; detections are reported in
		// source-image coordinates.
		left, top = pl.ToSource(left, top)
		right, bottom = pl.ToSource(right, bottom)

		left = math32.Min(math32.Max(left, 0), maxW)
		right = math32.Min(math32.Max(right, 0), maxW)
		top = math32.Min(math32.Max(top, 0), maxH)
		bottom = math32.Min(math32.Max(bottom, 0), maxH)

		if left >= right || top >= bottom {
			continue
		}

		box := images.Rect{
			Left:   int(math32.Round(left)),
			Top:    int(math32.Round(top)),
			Right:  int(math32.Round(right)),
			Bottom: int(math32.Round(bottom)),
		}
		// Rounding can still collapse a sliver thinner than a pixel.
		if box.Empty() {
			continue
		}

		candidates = append(candidates, Detection{Box: box, Confidence: score, Class: class})
	}

	return candidates, nil
}
