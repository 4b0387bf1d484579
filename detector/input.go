package detector

import (
	"image"

	"github.com/pkg/errors"

	"github.com/edge-ml/go-detect/inference"
)

// fillInput writes img into the model's input tensor, row-major RGB.
// Quantized models take the raw channel bytes; float models take each
// channel scaled by 1/255.
func fillInput(t inference.Tensor, img *image.RGBA) error {
	bounds := img.Bounds()
	want := bounds.Dx() * bounds.Dy() * 3

	switch t.Kind() {
	case inference.KindUInt8:
		out := t.Bytes()
		if len(out) < want {
			return errors.Errorf("input tensor holds %d bytes, the canvas needs %d", len(out), want)
		}
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				out[i+0] = uint8(r >> 8)
				out[i+1] = uint8(g >> 8)
				out[i+2] = uint8(b >> 8)
				i += 3
			}
		}
	case inference.KindFloat32:
		out := t.Floats()
		if len(out) < want {
			return errors.Errorf("input tensor holds %d floats, the canvas needs %d", len(out), want)
		}
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				out[i+0] = float32(r>>8) / 255
				out[i+1] = float32(g>>8) / 255
				out[i+2] = float32(b>>8) / 255
				i += 3
			}
		}
	default:
		return errors.Errorf("unsupported input tensor kind %s", t.Kind())
	}
	return nil
}
