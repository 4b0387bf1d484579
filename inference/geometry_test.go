package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageDims(t *testing.T) {
	tests := []struct {
		name string
		dims []int
		want Geometry
	}{
		{"NHWC square quantized input", []int{1, 320, 320, 3}, Geometry{Width: 320, Height: 320, Channels: 3}},
		{"batch plus two spatial dims", []int{1, 640, 640}, Geometry{Width: 640, Height: 640, Channels: 1}},
		{"bare two dims", []int{300, 400}, Geometry{Width: 300, Height: 400, Channels: 1}},
		{"extra singleton axes", []int{1, 1, 224, 224, 3}, Geometry{Width: 224, Height: 224, Channels: 3}},
		{"four channels allowed", []int{1, 128, 128, 4}, Geometry{Width: 128, Height: 128, Channels: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImageDims(tt.dims)
			require.NoError(t, err, "shape %v should resolve", tt.dims)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageDims_Rejections(t *testing.T) {
	tests := []struct {
		name string
		dims []int
	}{
		{"zero dimension", []int{1, 0, 320, 3}},
		{"four non-singleton dimensions", []int{2, 3, 4, 5}},
		{"single non-singleton dimension", []int{1, 1, 5}},
		{"empty shape", nil},
		{"one bare dimension", []int{7}},
		{"channel count above four", []int{1, 224, 224, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImageDims(tt.dims)
			assert.Error(t, err, "shape %v must be rejected as ambiguous", tt.dims)
		})
	}
}
