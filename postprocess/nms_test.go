package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edge-ml/go-detect/images"
)

func det(class int, conf float32, l, t, r, b int) Detection {
	return Detection{
		Class:      class,
		Confidence: conf,
		Box:        images.Rect{Left: l, Top: t, Right: r, Bottom: b},
	}
}

func TestNMS_SuppressesOverlappingSameClass(t *testing.T) {
	// Two class-3 candidates overlapping at IoU ~0.71 against a 0.45
	// threshold: only the stronger survives.
	cands := []Detection{
		det(3, 0.6, 0, 17, 100, 117),
		det(3, 0.9, 0, 0, 100, 100),
	}
	require.Greater(t, images.CalculateIoU(cands[0].Box, cands[1].Box), float32(0.45),
		"fixture boxes must overlap above the threshold")

	got := NMS(cands, 0.45)
	require.Len(t, got, 1, "the weaker overlapping candidate must be suppressed")
	assert.Equal(t, float32(0.9), got[0].Confidence, "the stronger candidate survives")
	assert.Equal(t, 3, got[0].Class)
}

func TestNMS_ClassIsolation(t *testing.T) {
	// Fully overlapping boxes of different classes are both retained, even
	// with a zero threshold.
	cands := []Detection{
		det(1, 0.9, 10, 10, 110, 110),
		det(2, 0.8, 10, 10, 110, 110),
	}

	got := NMS(cands, 0.0)
	assert.Len(t, got, 2, "different classes never suppress each other")
}

func TestNMS_OrderingInvariant(t *testing.T) {
	cands := []Detection{
		det(0, 0.31, 0, 0, 10, 10),
		det(1, 0.92, 200, 200, 260, 260),
		det(2, 0.55, 400, 0, 440, 40),
		det(0, 0.74, 0, 300, 60, 360),
	}

	got := NMS(cands, 0.45)
	require.Len(t, got, 4, "disjoint boxes must all survive")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence,
			"output confidences must be non-increasing")
	}
	assert.Equal(t, float32(0.92), got[0].Confidence, "result[0] is the highest confidence")
}

func TestNMS_Idempotent(t *testing.T) {
	cands := []Detection{
		det(0, 0.9, 0, 0, 100, 100),
		det(0, 0.8, 10, 10, 110, 110),
		det(0, 0.7, 300, 300, 400, 400),
		det(1, 0.6, 0, 0, 100, 100),
	}

	once := NMS(cands, 0.45)
	twice := NMS(once, 0.45)
	assert.Equal(t, once, twice, "suppression must be a fixed point on its own output")
}

func TestNMS_TieKeepsEmissionOrder(t *testing.T) {
	// Equal confidences on disjoint boxes: the stable sort keeps emission order.
	a := det(0, 0.5, 0, 0, 10, 10)
	b := det(0, 0.5, 100, 100, 110, 110)

	got := NMS([]Detection{a, b}, 0.45)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0], "earlier emission wins the tie")
	assert.Equal(t, b, got[1])
}

func TestNMS_Empty(t *testing.T) {
	assert.Nil(t, NMS(nil, 0.45))
	assert.Nil(t, NMS([]Detection{}, 0.45))
}

func TestNMS_InputUntouched(t *testing.T) {
	cands := []Detection{
		det(0, 0.1, 0, 0, 10, 10),
		det(0, 0.9, 0, 0, 10, 10),
	}

	_ = NMS(cands, 0.45)
	assert.Equal(t, float32(0.1), cands[0].Confidence, "the caller's slice keeps its order")
}

func BenchmarkNMS(b *testing.B) {
	cands := make([]Detection, 0, 200)
	for i := 0; i < 200; i++ {
		x := (i % 20) * 30
		y := (i / 20) * 30
		cands = append(cands, det(i%4, float32(i%100)/100, x, y, x+60, y+60))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NMS(cands, 0.45)
	}
}
