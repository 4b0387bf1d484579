package inference

// ValueAt decodes the tensor element at index i to a real value.
//
// Quantized uint8 storage applies the tensor's own linear mapping,
// (raw - zero_point) * scale. Float32 storage passes through unchanged and
// the quantization parameters are ignored. Any other kind decodes to 0.
func ValueAt(t Tensor, i int) float32 {
	switch t.Kind() {
	case KindUInt8:
		q := t.Quantization()
		return (float32(t.Bytes()[i]) - float32(q.ZeroPoint)) * q.Scale
	case KindFloat32:
		return t.Floats()[i]
	default:
		return 0
	}
}

// ClassAt reads the element at index i as a raw class id, with no
// dequantization: quantized models store ids as plain bytes, float models
// as whole-valued floats.
func ClassAt(t Tensor, i int) int {
	switch t.Kind() {
	case KindUInt8:
		return int(t.Bytes()[i])
	case KindFloat32:
		return int(t.Floats()[i])
	default:
		return 0
	}
}
