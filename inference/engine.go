// Package inference - tensor descriptors and the engine contract the
// detection pipeline runs against.
package inference

// Engine is a loaded detection model together with the runtime state needed
// to execute it. Implementations own the native handles (model, interpreter,
// delegate) and release them in Close. An Engine is not reentrant: callers
// serialize Invoke per instance.
type Engine interface {
	// InputTensor returns the descriptor of the model input at index i.
	InputTensor(i int) (Tensor, error)
	// OutputTensor returns the descriptor of the model output at index i.
	OutputTensor(i int) (Tensor, error)
	// OutputCount reports how many output tensors the model exposes.
	OutputCount() int
	// Invoke runs one synchronous inference pass over the current contents
	// of the input tensors. It is non-cancelable; callers needing timeouts
	// wrap the whole call.
	Invoke() error
	// Close releases the native resources. Safe to call more than once.
	Close() error
}
