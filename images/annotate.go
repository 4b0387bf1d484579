package images

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation pairs a box with the text drawn next to it.
type Annotation struct {
	Box   Rect
	Label string
}

var (
	boxColor   = color.RGBA{R: 0x32, G: 0xcd, B: 0x32, A: 0xff}
	labelColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Annotate returns a copy of img with each annotation's box outlined and its
// label drawn above the top-left corner. The input image is left untouched.
func Annotate(img image.Image, anns []Annotation) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, ann := range anns {
		drawRect(out, ann.Box, 2)
		if ann.Label != "" {
			drawLabel(out, ann.Box, ann.Label)
		}
	}

	return out
}

// drawRect outlines r with the given border thickness, clipped to the image.
func drawRect(img *image.RGBA, r Rect, thickness int) {
	clip := img.Bounds()
	for t := 0; t < thickness; t++ {
		for x := r.Left; x < r.Right; x++ {
			setIfInside(img, clip, x, r.Top+t)
			setIfInside(img, clip, x, r.Bottom-1-t)
		}
		for y := r.Top; y < r.Bottom; y++ {
			setIfInside(img, clip, r.Left+t, y)
			setIfInside(img, clip, r.Right-1-t, y)
		}
	}
}

func setIfInside(img *image.RGBA, clip image.Rectangle, x, y int) {
	if image.Pt(x, y).In(clip) {
		img.SetRGBA(x, y, boxColor)
	}
}

// drawLabel renders text just above the box, or inside it when the box
// touches the top edge.
func drawLabel(img *image.RGBA, r Rect, text string) {
	face := basicfont.Face7x13
	y := r.Top - 3
	if y-face.Ascent < img.Bounds().Min.Y {
		y = r.Top + face.Height
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(r.Left+2, y),
	}
	d.DrawString(text)
}
