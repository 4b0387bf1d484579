// Package ort - ONNX Runtime engine for float32 detection models, behind
// the same engine contract as the TFLite backend.
package ort

import (
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/edge-ml/go-detect/inference"
)

// Options configure engine construction. ONNX models do not carry the
// TFLite-style named-output convention, so tensor names and shapes are
// provided explicitly.
type Options struct {
	// LibraryPath overrides the onnxruntime shared library location.
	// Empty keeps the platform default search.
	LibraryPath string
	// InputName is the graph input, e.g. "images".
	InputName string
	// InputShape is the input tensor shape, e.g. [1, 3, 640, 640].
	InputShape []int64
	// OutputNames are the graph outputs in boxes/scores/classes order.
	OutputNames []string
	// OutputShapes are the matching output shapes.
	OutputShapes [][]int64
	// Threads caps intra-op parallelism. Zero keeps the runtime default.
	Threads int
	// Provider selects the execution provider. Empty means CPU.
	Provider Provider
	// CUDA configures the CUDA provider; read only when Provider is
	// ProviderCUDA.
	CUDA CUDAOptions
	// OpenVINO configures the OpenVINO provider; read only when Provider is
	// ProviderOpenVINO.
	OpenVINO OpenVINOOptions
}

var initOnce sync.Once

// initEnvironment prepares the process-wide onnxruntime environment; the
// native layer is loaded once and shared by every session.
func initEnvironment(libraryPath string) error {
	var err error
	initOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		err = ort.InitializeEnvironment()
	})
	return err
}

// Engine runs ONNX detection models through onnxruntime. All tensors are
// float32; quantized models belong to the TFLite backend.
type Engine struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
}

var _ inference.Engine = (*Engine)(nil)

// Open creates a session for the model at path with preallocated input and
// output tensors. Construction failures release every tensor acquired so far.
func Open(path string, opts Options) (*Engine, error) {
	if opts.InputName == "" || len(opts.InputShape) == 0 {
		return nil, errors.New("ort: input name and shape are required")
	}
	if len(opts.OutputNames) == 0 || len(opts.OutputNames) != len(opts.OutputShapes) {
		return nil, errors.New("ort: output names and shapes must align")
	}

	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, errors.Wrap(err, "ort: initialize environment")
	}

	e := &Engine{}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "ort: create input tensor")
	}
	e.input = input

	arbitraryOutputs := make([]ort.ArbitraryTensor, 0, len(opts.OutputNames))
	for i, shape := range opts.OutputShapes {
		output, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "ort: create output tensor %q", opts.OutputNames[i])
		}
		e.outputs = append(e.outputs, output)
		arbitraryOutputs = append(arbitraryOutputs, output)
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		e.Close()
		return nil, errors.Wrap(err, "ort: create session options")
	}
	defer sessionOptions.Destroy()

	if opts.Threads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(opts.Threads); err != nil {
			e.Close()
			return nil, errors.Wrap(err, "ort: set thread count")
		}
	}
	if err := sessionOptions.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "ort: set graph optimization level")
	}
	if err := applyProvider(sessionOptions, opts); err != nil {
		e.Close()
		return nil, errors.Wrap(err, "ort: configure execution provider")
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{opts.InputName},
		opts.OutputNames,
		[]ort.ArbitraryTensor{e.input},
		arbitraryOutputs,
		sessionOptions,
	)
	if err != nil {
		e.Close()
		return nil, errors.Wrapf(err, "ort: create session for %q", path)
	}
	e.session = session

	return e, nil
}

// InputTensor returns the descriptor of the session input. Only index 0
// exists for this backend.
func (e *Engine) InputTensor(i int) (inference.Tensor, error) {
	if i != 0 {
		return nil, errors.Errorf("ort: input tensor %d out of range", i)
	}
	return &tensorView{t: e.input}, nil
}

// OutputTensor returns the descriptor of the output at index i.
func (e *Engine) OutputTensor(i int) (inference.Tensor, error) {
	if i < 0 || i >= len(e.outputs) {
		return nil, errors.Errorf("ort: output tensor %d out of range", i)
	}
	return &tensorView{t: e.outputs[i]}, nil
}

// OutputCount reports how many output tensors the session exposes.
func (e *Engine) OutputCount() int { return len(e.outputs) }

// Invoke runs one synchronous inference pass.
func (e *Engine) Invoke() error {
	if err := e.session.Run(); err != nil {
		return errors.Wrap(err, "ort: run session")
	}
	return nil
}

// Close destroys the session and its tensors. Calling it again is a no-op.
func (e *Engine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	for _, output := range e.outputs {
		output.Destroy()
	}
	e.outputs = nil
	return nil
}

// tensorView adapts an onnxruntime tensor to the inference descriptor.
type tensorView struct {
	t *ort.Tensor[float32]
}

func (v *tensorView) Kind() inference.Kind { return inference.KindFloat32 }

func (v *tensorView) Dims() []int {
	shape := v.t.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return dims
}

func (v *tensorView) ByteSize() int     { return 4 * len(v.t.GetData()) }
func (v *tensorView) Bytes() []uint8    { return nil }
func (v *tensorView) Floats() []float32 { return v.t.GetData() }

// Quantization reports zero values: float tensors have no linear mapping.
func (v *tensorView) Quantization() inference.QuantParams {
	return inference.QuantParams{}
}
