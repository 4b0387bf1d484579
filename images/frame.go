package images

import (
	"image"

	"github.com/pkg/errors"
)

// ChannelOrder defines the packed byte ordering of a Frame's channels.
type ChannelOrder int

const (
	// OrderBGR is blue-green-red byte order, the layout capture devices and
	// OpenCV mats produce.
	OrderBGR ChannelOrder = iota
	// OrderRGB is red-green-blue byte order, the layout decoded files and
	// inference inputs use.
	OrderRGB
)

// Frame is a packed height x width x channel byte image, the raw form a
// detection pipeline receives from a capture source. Pix is row-major with
// interleaved channels: Pix[(y*Width+x)*Channels+c].
type Frame struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
	// Order is the channel layout of Pix.
	Order ChannelOrder
}

// NewFrame wraps pix as a Frame without copying.
func NewFrame(pix []byte, width, height, channels int, order ChannelOrder) *Frame {
	return &Frame{Pix: pix, Width: width, Height: height, Channels: channels, Order: order}
}

// FrameFromImage flattens img into a packed 3-channel Frame in the given
// byte order. Decoded image files land here on their way into a detector.
func FrameFromImage(img image.Image, order ChannelOrder) *Frame {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	pix := make([]byte, width*height*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if order == OrderBGR {
				pix[i] = uint8(b >> 8)
				pix[i+1] = uint8(g >> 8)
				pix[i+2] = uint8(r >> 8)
			} else {
				pix[i] = uint8(r >> 8)
				pix[i+1] = uint8(g >> 8)
				pix[i+2] = uint8(b >> 8)
			}
			i += 3
		}
	}

	return &Frame{Pix: pix, Width: width, Height: height, Channels: 3, Order: order}
}

// Validate checks that the frame describes a well-formed packed image.
func (f *Frame) Validate() error {
	if f == nil {
		return errors.New("frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return errors.Errorf("invalid frame dimensions: %dx%dx%d", f.Height, f.Width, f.Channels)
	}
	if len(f.Pix) != f.Width*f.Height*f.Channels {
		return errors.Errorf("frame buffer holds %d bytes, dimensions %dx%dx%d require %d",
			len(f.Pix), f.Height, f.Width, f.Channels, f.Width*f.Height*f.Channels)
	}
	return nil
}

// RGBA converts a 3-channel frame to an RGBA image, swapping the blue and
// red bytes when the frame is BGR. This is the color normalization step in
// front of inference: models downstream always see RGB.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))

	ri, bi := 0, 2
	if f.Order == OrderBGR {
		ri, bi = 2, 0
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			src := (y*f.Width + x) * f.Channels
			dst := y*img.Stride + x*4
			img.Pix[dst] = f.Pix[src+ri]
			img.Pix[dst+1] = f.Pix[src+1]
			img.Pix[dst+2] = f.Pix[src+bi]
			img.Pix[dst+3] = 0xff
		}
	}

	return img
}
