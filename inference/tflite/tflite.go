// Package tflite - TensorFlow Lite engine over the TFLite C API, with an
// optional XNNPack delegate for accelerated execution.
package tflite

import (
	tfl "github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates"
	"github.com/mattn/go-tflite/delegates/xnnpack"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/edge-ml/go-detect/inference"
)

// Options configure engine construction.
type Options struct {
	// Accelerator enables the XNNPack delegate. A delegate that fails to
	// initialize is absorbed: the engine logs a warning and keeps the plain
	// CPU execution path.
	Accelerator bool
	// Threads is the interpreter thread count. Zero keeps the runtime default.
	Threads int
	// Logger receives the delegate fallback warning and runtime diagnostics.
	Logger *zap.Logger
}

// Engine runs TFLite detection models. It owns the model, interpreter
// options, delegate and interpreter handles, and Close releases whichever
// of them construction reached.
type Engine struct {
	model    *tfl.Model
	options  *tfl.InterpreterOptions
	delegate delegates.Delegater
	interp   *tfl.Interpreter
}

var _ inference.Engine = (*Engine)(nil)

// Open loads the model at path and prepares an allocated interpreter.
// On any construction failure every handle acquired so far is released
// before the error returns.
func Open(path string, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{}

	e.model = tfl.NewModelFromFile(path)
	if e.model == nil {
		return nil, errors.Errorf("tflite: cannot load model %q", path)
	}

	e.options = tfl.NewInterpreterOptions()
	if e.options == nil {
		e.Close()
		return nil, errors.New("tflite: cannot create interpreter options")
	}
	if opts.Threads > 0 {
		e.options.SetNumThread(opts.Threads)
	}
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Debug("tflite runtime", zap.String("message", msg))
	}, nil)

	if opts.Accelerator {
		e.delegate = xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(opts.Threads)})
		if e.delegate == nil {
			log.Warn("accelerator delegate unavailable, falling back to CPU execution",
				zap.String("model", path))
		} else {
			e.options.AddDelegate(e.delegate)
		}
	}

	e.interp = tfl.NewInterpreter(e.model, e.options)
	if e.interp == nil {
		e.Close()
		return nil, errors.Errorf("tflite: cannot create interpreter for %q", path)
	}

	if status := e.interp.AllocateTensors(); status != tfl.OK {
		e.Close()
		return nil, errors.Errorf("tflite: tensor allocation failed for %q", path)
	}

	return e, nil
}

// InputTensor returns the descriptor of the model input at index i.
func (e *Engine) InputTensor(i int) (inference.Tensor, error) {
	if i < 0 || i >= e.interp.GetInputTensorCount() {
		return nil, errors.Errorf("tflite: input tensor %d out of range", i)
	}
	return &tensorView{t: e.interp.GetInputTensor(i)}, nil
}

// OutputTensor returns the descriptor of the model output at index i.
func (e *Engine) OutputTensor(i int) (inference.Tensor, error) {
	if i < 0 || i >= e.interp.GetOutputTensorCount() {
		return nil, errors.Errorf("tflite: output tensor %d out of range", i)
	}
	return &tensorView{t: e.interp.GetOutputTensor(i)}, nil
}

// OutputCount reports how many output tensors the model exposes.
func (e *Engine) OutputCount() int {
	return e.interp.GetOutputTensorCount()
}

// Invoke runs one synchronous inference pass.
func (e *Engine) Invoke() error {
	if status := e.interp.Invoke(); status != tfl.OK {
		return errors.New("tflite: invoke failed")
	}
	return nil
}

// Close releases the interpreter, delegate, options and model handles in
// reverse construction order. Calling it again is a no-op.
func (e *Engine) Close() error {
	if e.interp != nil {
		e.interp.Delete()
		e.interp = nil
	}
	if e.delegate != nil {
		e.delegate.Delete()
		e.delegate = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}

// tensorView adapts a TFLite tensor to the inference descriptor. The data
// views alias the interpreter's buffers.
type tensorView struct {
	t *tfl.Tensor
}

func (v *tensorView) Kind() inference.Kind {
	switch v.t.Type() {
	case tfl.UInt8:
		return inference.KindUInt8
	case tfl.Float32:
		return inference.KindFloat32
	default:
		return inference.KindUnknown
	}
}

func (v *tensorView) Dims() []int {
	dims := make([]int, v.t.NumDims())
	for i := range dims {
		dims[i] = v.t.Dim(i)
	}
	return dims
}

func (v *tensorView) ByteSize() int     { return int(v.t.ByteSize()) }
func (v *tensorView) Bytes() []uint8    { return v.t.UInt8s() }
func (v *tensorView) Floats() []float32 { return v.t.Float32s() }

func (v *tensorView) Quantization() inference.QuantParams {
	q := v.t.QuantizationParams()
	return inference.QuantParams{Scale: float32(q.Scale), ZeroPoint: int32(q.ZeroPoint)}
}
