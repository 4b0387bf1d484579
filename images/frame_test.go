package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		ok    bool
	}{
		{"well-formed BGR frame", NewFrame(make([]byte, 2*3*3), 3, 2, 3, OrderBGR), true},
		{"nil frame", nil, false},
		{"zero width", NewFrame(make([]byte, 12), 0, 4, 3, OrderBGR), false},
		{"zero channels", NewFrame(make([]byte, 12), 2, 2, 0, OrderBGR), false},
		{"short buffer", NewFrame(make([]byte, 10), 2, 2, 3, OrderBGR), false},
		{"oversized buffer", NewFrame(make([]byte, 16), 2, 2, 3, OrderBGR), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.ok {
				assert.NoError(t, err, "frame should validate")
			} else {
				assert.Error(t, err, "frame should be rejected")
			}
		})
	}
}

func TestFrame_RGBA_SwapsBGR(t *testing.T) {
	// One pixel, BGR bytes: blue=10, green=20, red=30.
	f := NewFrame([]byte{10, 20, 30}, 1, 1, 3, OrderBGR)
	require.NoError(t, f.Validate())

	img := f.RGBA()
	c := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(30), c.R, "red should come from the third BGR byte")
	assert.Equal(t, uint8(20), c.G, "green stays in the middle")
	assert.Equal(t, uint8(10), c.B, "blue should come from the first BGR byte")
	assert.Equal(t, uint8(0xff), c.A, "frames are opaque")
}

func TestFrame_RGBA_KeepsRGB(t *testing.T) {
	f := NewFrame([]byte{10, 20, 30}, 1, 1, 3, OrderRGB)

	c := f.RGBA().RGBAAt(0, 0)
	assert.Equal(t, uint8(10), c.R, "RGB frames pass through unswapped")
	assert.Equal(t, uint8(20), c.G)
	assert.Equal(t, uint8(30), c.B)
}

func TestFrameFromImage_RoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 255})
	img.SetRGBA(0, 1, color.RGBA{R: 7, G: 8, B: 9, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 10, G: 11, B: 12, A: 255})

	f := FrameFromImage(img, OrderBGR)
	require.NoError(t, f.Validate())
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, 3, f.Channels)
	assert.Equal(t, []byte{3, 2, 1}, f.Pix[0:3], "first pixel should be packed BGR")

	// Converting back restores the original channel values.
	back := f.RGBA()
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, img.RGBAAt(x, y), back.RGBAAt(x, y), "pixel (%d,%d) should survive the round trip", x, y)
		}
	}
}
