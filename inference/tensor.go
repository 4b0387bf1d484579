package inference

// Kind tags the storage type of a tensor. The pipeline understands 8-bit
// quantized and float32 storage; anything else decodes to zero values.
type Kind int

const (
	// KindUnknown is any storage the pipeline does not decode.
	KindUnknown Kind = iota
	// KindUInt8 is 8-bit linearly quantized storage.
	KindUInt8
	// KindFloat32 is plain float storage.
	KindFloat32
)

func (k Kind) String() string {
	switch k {
	case KindUInt8:
		return "uint8"
	case KindFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// QuantParams is the linear quantization mapping of one tensor:
// real = (raw - ZeroPoint) * Scale. Each tensor carries its own mapping;
// box and score outputs of the same model routinely differ.
type QuantParams struct {
	Scale     float32
	ZeroPoint int32
}

// Tensor describes one model input or output: storage kind, declared shape,
// raw data views and quantization mapping. The data views alias the
// backend's buffer and stay valid until the owning engine is closed.
type Tensor interface {
	Kind() Kind
	// Dims returns the declared shape, outermost dimension first.
	Dims() []int
	// ByteSize is the raw buffer size in bytes.
	ByteSize() int
	// Bytes is the uint8 view of the buffer. Meaningful for KindUInt8.
	Bytes() []uint8
	// Floats is the float32 view of the buffer. Meaningful for KindFloat32.
	Floats() []float32
	// Quantization returns the tensor's linear mapping. Kinds without one
	// report zero values.
	Quantization() QuantParams
}

// ElemCount returns the number of elements in the tensor's data view.
func ElemCount(t Tensor) int {
	switch t.Kind() {
	case KindUInt8:
		return len(t.Bytes())
	case KindFloat32:
		return len(t.Floats())
	default:
		return 0
	}
}
