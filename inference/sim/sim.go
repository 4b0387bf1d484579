// Package sim provides a simulated inference engine for tests and
// benchmarks. It serves canned tensors through the same engine contract the
// native backends implement, so pipelines can run without a model file or a
// native runtime.
package sim

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/edge-ml/go-detect/inference"
)

// Engine replays preloaded tensors. Inputs are real writable buffers, so a
// pipeline's tensor-fill step works against it unchanged; outputs return
// whatever the scenario loaded; Invoke can be rigged to fail.
type Engine struct {
	inputs      []inference.Tensor
	outputs     []inference.Tensor
	invokeErr   error
	onInvoke    func()
	invocations int
	closed      bool
}

// Option configures a simulated engine.
type Option func(*Engine)

// WithInput appends an input tensor backed by d.
func WithInput(d *tensor.Dense, q inference.QuantParams) Option {
	return func(e *Engine) { e.inputs = append(e.inputs, NewView(d, q)) }
}

// WithOutput appends an output tensor backed by d.
func WithOutput(d *tensor.Dense, q inference.QuantParams) Option {
	return func(e *Engine) { e.outputs = append(e.outputs, NewView(d, q)) }
}

// WithInvokeError makes every Invoke return err.
func WithInvokeError(err error) Option {
	return func(e *Engine) { e.invokeErr = err }
}

// WithInvokeHook runs f on every Invoke, before the configured error is
// considered. Scenarios use it to rewrite outputs between calls.
func WithInvokeHook(f func()) Option {
	return func(e *Engine) { e.onInvoke = f }
}

// New builds a simulated engine from the given scenario.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InputTensor returns the preloaded input at index i.
func (e *Engine) InputTensor(i int) (inference.Tensor, error) {
	if i < 0 || i >= len(e.inputs) {
		return nil, errors.Errorf("sim: input tensor %d out of range", i)
	}
	return e.inputs[i], nil
}

// OutputTensor returns the preloaded output at index i.
func (e *Engine) OutputTensor(i int) (inference.Tensor, error) {
	if i < 0 || i >= len(e.outputs) {
		return nil, errors.Errorf("sim: output tensor %d out of range", i)
	}
	return e.outputs[i], nil
}

// OutputCount reports how many output tensors were loaded.
func (e *Engine) OutputCount() int { return len(e.outputs) }

// Invoke counts the call, runs the hook, and returns the configured error.
func (e *Engine) Invoke() error {
	e.invocations++
	if e.onInvoke != nil {
		e.onInvoke()
	}
	return e.invokeErr
}

// Invocations reports how many times Invoke ran.
func (e *Engine) Invocations() int { return e.invocations }

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool { return e.closed }

// View adapts a dense tensor to the inference descriptor. The dense backing
// array is shared, not copied.
type View struct {
	d *tensor.Dense
	q inference.QuantParams
}

var _ inference.Tensor = (*View)(nil)

// NewView wraps d with the given quantization parameters.
func NewView(d *tensor.Dense, q inference.QuantParams) *View {
	return &View{d: d, q: q}
}

func (v *View) Kind() inference.Kind {
	switch v.d.Dtype() {
	case tensor.Uint8:
		return inference.KindUInt8
	case tensor.Float32:
		return inference.KindFloat32
	default:
		return inference.KindUnknown
	}
}

func (v *View) Dims() []int { return []int(v.d.Shape()) }

func (v *View) ByteSize() int {
	switch v.Kind() {
	case inference.KindUInt8:
		return len(v.Bytes())
	case inference.KindFloat32:
		return 4 * len(v.Floats())
	default:
		return 0
	}
}

func (v *View) Bytes() []uint8 {
	b, _ := v.d.Data().([]uint8)
	return b
}

func (v *View) Floats() []float32 {
	f, _ := v.d.Data().([]float32)
	return f
}

func (v *View) Quantization() inference.QuantParams { return v.q }
