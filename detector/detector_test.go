package detector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/edge-ml/go-detect/images"
	"github.com/edge-ml/go-detect/inference"
	"github.com/edge-ml/go-detect/inference/sim"
)

func solidFrame(width, height int, b, g, r byte) *images.Frame {
	pix := make([]byte, width*height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i] = b
		pix[i+1] = g
		pix[i+2] = r
	}
	return images.NewFrame(pix, width, height, 3, images.OrderBGR)
}

func uint8Input(dims ...int) sim.Option {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return sim.WithInput(tensor.New(
		tensor.WithShape(dims...),
		tensor.WithBacking(make([]uint8, n)),
	), inference.QuantParams{Scale: 1, ZeroPoint: 0})
}

func float32Input(dims ...int) sim.Option {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return sim.WithInput(tensor.New(
		tensor.WithShape(dims...),
		tensor.WithBacking(make([]float32, n)),
	), inference.QuantParams{})
}

// ssdOutputs wires the three detection outputs in their conventional order:
// boxes, scores, classes.
func ssdOutputs(rows int, boxes, scores, classes []float32) []sim.Option {
	return []sim.Option{
		sim.WithOutput(tensor.New(tensor.WithShape(1, rows, 4), tensor.WithBacking(boxes)), inference.QuantParams{}),
		sim.WithOutput(tensor.New(tensor.WithShape(1, rows), tensor.WithBacking(scores)), inference.QuantParams{}),
		sim.WithOutput(tensor.New(tensor.WithShape(1, rows), tensor.WithBacking(classes)), inference.QuantParams{}),
	}
}

func TestDetector_QuantizedModel(t *testing.T) {
	opts := append([]sim.Option{uint8Input(1, 4, 4, 3)}, ssdOutputs(2,
		[]float32{
			0, 0, 4, 4,
			0, 0, 2, 2,
		},
		[]float32{0.9, 0.3},
		[]float32{1, 6},
	)...)
	eng := sim.New(opts...)

	d, err := New("", WithEngine(eng))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	assert.True(t, d.IsQuantized())
	h, w, c := d.InputShape()
	assert.Equal(t, [3]int{4, 4, 3}, [3]int{h, w, c})

	dets, err := d.Detect(solidFrame(4, 4, 10, 20, 30), DefaultParams())
	require.NoError(t, err, "should succeed")
	require.Len(t, dets, 1, "the below-threshold row is dropped")
	assert.Equal(t, images.Rect{Left: 0, Top: 0, Right: 4, Bottom: 4}, dets[0].Box)
	assert.Equal(t, 1, dets[0].Class)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.Equal(t, 1, eng.Invocations())

	// The BGR frame must land in the tensor as RGB bytes.
	input, err := eng.InputTensor(0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{30, 20, 10}, input.Bytes()[:3])
}

func TestDetector_FloatModel(t *testing.T) {
	opts := append([]sim.Option{float32Input(1, 4, 4, 3)}, ssdOutputs(1,
		[]float32{1, 1, 3, 3},
		[]float32{0.8},
		[]float32{0},
	)...)
	eng := sim.New(opts...)

	d, err := New("", WithEngine(eng))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	assert.False(t, d.IsQuantized())

	// Pure blue in BGR is pure blue in RGB: (0, 0, 255) -> (0, 0, 1.0).
	dets, err := d.Detect(solidFrame(4, 4, 255, 0, 0), DefaultParams())
	require.NoError(t, err, "should succeed")
	require.Len(t, dets, 1)

	input, err := eng.InputTensor(0)
	require.NoError(t, err)
	floats := input.Floats()
	assert.InDelta(t, 0.0, floats[0], 1e-6)
	assert.InDelta(t, 0.0, floats[1], 1e-6)
	assert.InDelta(t, 1.0, floats[2], 1e-6)
}

func TestDetector_LetterboxesMismatchedFrames(t *testing.T) {
	// An 8-wide 4-tall frame on an 8x8 model sits under a 2 pixel top
	// margin; a canvas box spanning the content maps back to the full frame.
	opts := append([]sim.Option{uint8Input(1, 8, 8, 3)}, ssdOutputs(1,
		[]float32{0, 2, 8, 6},
		[]float32{0.8},
		[]float32{0},
	)...)
	eng := sim.New(opts...)

	d, err := New("", WithEngine(eng))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	dets, err := d.Detect(solidFrame(8, 4, 10, 20, 30), DefaultParams())
	require.NoError(t, err, "should succeed")
	require.Len(t, dets, 1)
	assert.Equal(t, images.Rect{Left: 0, Top: 0, Right: 8, Bottom: 4}, dets[0].Box,
		"detections come back in frame coordinates")
}

func TestDetector_RejectsNonThreeChannelFrame(t *testing.T) {
	opts := append([]sim.Option{uint8Input(1, 4, 4, 3)}, ssdOutputs(1,
		[]float32{0, 0, 4, 4}, []float32{0.9}, []float32{0},
	)...)
	d, err := New("", WithEngine(sim.New(opts...)))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	gray := images.NewFrame(make([]byte, 16), 4, 4, 1, images.OrderBGR)
	_, err = d.Detect(gray, DefaultParams())
	require.Error(t, err)
	assert.True(t, IsConfiguration(err), "a channel mismatch is a configuration problem")
	assert.False(t, IsInference(err))
}

func TestDetector_InvokeFailure(t *testing.T) {
	boom := errors.New("delegate kernel fault")
	opts := append([]sim.Option{uint8Input(1, 4, 4, 3), sim.WithInvokeError(boom)}, ssdOutputs(1,
		[]float32{0, 0, 4, 4}, []float32{0.9}, []float32{0},
	)...)
	d, err := New("", WithEngine(sim.New(opts...)))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	_, err = d.Detect(solidFrame(4, 4, 0, 0, 0), DefaultParams())
	require.Error(t, err)
	assert.True(t, IsInference(err))
	assert.False(t, IsConfiguration(err))
	assert.True(t, errors.Is(err, boom), "the backend error must stay reachable")
}

func TestDetector_MissingOutputs(t *testing.T) {
	eng := sim.New(
		uint8Input(1, 4, 4, 3),
		sim.WithOutput(tensor.New(tensor.WithShape(1, 1, 4), tensor.WithBacking(make([]float32, 4))), inference.QuantParams{}),
		sim.WithOutput(tensor.New(tensor.WithShape(1, 1), tensor.WithBacking(make([]float32, 1))), inference.QuantParams{}),
	)
	d, err := New("", WithEngine(eng))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	_, err = d.Detect(solidFrame(4, 4, 0, 0, 0), DefaultParams())
	require.Error(t, err, "a model without a class tensor cannot be decoded")
	assert.True(t, IsConfiguration(err))
}

func TestDetector_NewRejectsBadGeometry(t *testing.T) {
	t.Run("too many axes", func(t *testing.T) {
		eng := sim.New(sim.WithInput(tensor.New(
			tensor.WithShape(2, 3, 4, 5),
			tensor.WithBacking(make([]uint8, 120)),
		), inference.QuantParams{}))

		_, err := New("", WithEngine(eng))
		require.Error(t, err)
		assert.True(t, IsConfiguration(err))
		assert.True(t, eng.Closed(), "a failed New must not leak the engine")
	})

	t.Run("four channel input", func(t *testing.T) {
		eng := sim.New(uint8Input(1, 4, 4, 4))

		_, err := New("", WithEngine(eng))
		require.Error(t, err)
		assert.True(t, IsConfiguration(err))
		assert.Contains(t, err.Error(), "channels")
		assert.True(t, eng.Closed())
	})
}

func TestDetector_NonSquareModelRejectsMismatch(t *testing.T) {
	opts := append([]sim.Option{uint8Input(1, 6, 4, 3)}, ssdOutputs(1,
		[]float32{0, 0, 4, 4}, []float32{0.9}, []float32{0},
	)...)
	d, err := New("", WithEngine(sim.New(opts...)))
	require.NoError(t, err, "should succeed")
	defer d.Close()

	// Exact match passes through without a letterbox.
	_, err = d.Detect(solidFrame(6, 4, 0, 0, 0), DefaultParams())
	require.NoError(t, err, "should succeed")

	// Anything else has no square canvas to letterbox onto.
	_, err = d.Detect(solidFrame(10, 10, 0, 0, 0), DefaultParams())
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestDetector_CloseIsIdempotent(t *testing.T) {
	opts := append([]sim.Option{uint8Input(1, 4, 4, 3)}, ssdOutputs(1,
		[]float32{0, 0, 4, 4}, []float32{0.9}, []float32{0},
	)...)
	eng := sim.New(opts...)
	d, err := New("", WithEngine(eng))
	require.NoError(t, err, "should succeed")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, eng.Closed())

	_, err = d.Detect(solidFrame(4, 4, 0, 0, 0), DefaultParams())
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, float32(0.5), p.BoxThreshold)
	assert.Equal(t, float32(0.45), p.NMSThreshold)
}
