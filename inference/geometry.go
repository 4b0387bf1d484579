package inference

import "github.com/pkg/errors"

// Geometry is the logical image layout of an input tensor.
type Geometry struct {
	Width    int
	Height   int
	Channels int
}

// ImageDims derives which positions of a tensor shape carry width, height
// and channels. Detector models declare shapes like [1, H, W, C] or
// [1, W, H]; scanning left to right and skipping singleton (batch) axes
// avoids hardcoding an axis order per model family. The first non-singleton
// dimension is taken as width, the second as height, the third as channels;
// a shape with exactly two non-singleton dimensions is single-channel.
//
// The scan fails on a zero dimension, on more than three or fewer than two
// non-singleton dimensions, and on a resolved channel count above 4.
func ImageDims(dims []int) (Geometry, error) {
	var g Geometry
	found := 0
	for i, d := range dims {
		if d == 0 {
			return Geometry{}, errors.Errorf("tensor shape %v: dimension %d is zero", dims, i)
		}
		if d == 1 {
			continue
		}
		switch found {
		case 0:
			g.Width = d
		case 1:
			g.Height = d
		case 2:
			g.Channels = d
		default:
			return Geometry{}, errors.Errorf("tensor shape %v: more than three non-singleton dimensions", dims)
		}
		found++
	}

	if found < 2 {
		return Geometry{}, errors.Errorf("tensor shape %v: fewer than two non-singleton dimensions", dims)
	}
	if found == 2 {
		g.Channels = 1
	}
	if g.Channels > 4 {
		return Geometry{}, errors.Errorf("tensor shape %v: channel count %d exceeds 4", dims, g.Channels)
	}

	return g, nil
}
