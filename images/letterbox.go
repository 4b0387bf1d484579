package images

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

// Placement records the geometric transform a letterbox applied: the uniform
// scale factor and the canvas offset of the pasted content. Downstream stages
// use it to project model-space coordinates back into source-image space.
type Placement struct {
	// Scale maps source pixels to canvas pixels.
	Scale float32
	// Left, Top are the canvas margins of the pasted content.
	Left int
	Top  int
	// SrcWidth, SrcHeight are the source dimensions projected coordinates
	// are clamped against.
	SrcWidth  int
	SrcHeight int
}

// IdentityPlacement describes a frame fed to the model as-is.
func IdentityPlacement(width, height int) Placement {
	return Placement{Scale: 1, SrcWidth: width, SrcHeight: height}
}

// ToSource projects a canvas-space point back into source space.
func (p Placement) ToSource(x, y float32) (float32, float32) {
	return (x - float32(p.Left)) / p.Scale, (y - float32(p.Top)) / p.Scale
}

// Letterbox fits src into a target x target square without distorting its
// aspect ratio. The image is scaled by target/max(width, height), pasted
// centered onto a black canvas, and the unused border stays zero-valued.
// No content is cropped and src itself is never modified.
//
// Arguments:
//   - src: The source image.
//   - target: The square canvas edge in pixels (the model input size).
//
// Returns:
//   - *image.RGBA: The target x target canvas.
//   - Placement: The scale and margins applied, for projecting boxes back.
func Letterbox(src image.Image, target int) (*image.RGBA, Placement) {
	bounds := src.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	scale := float64(target) / float64(max(srcWidth, srcHeight))
	newWidth := int(math.Round(float64(srcWidth) * scale))
	newHeight := int(math.Round(float64(srcHeight) * scale))

	resized := resize.Resize(uint(newWidth), uint(newHeight), src, resize.Lanczos3)

	padLeft := (target - newWidth) / 2
	padTop := (target - newHeight) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, target, target))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
		resized, image.Point{}, draw.Over)

	return canvas, Placement{
		Scale:     float32(scale),
		Left:      padLeft,
		Top:       padTop,
		SrcWidth:  srcWidth,
		SrcHeight: srcHeight,
	}
}
