package postprocess

import (
	"sort"

	"github.com/edge-ml/go-detect/images"
)

// NMS applies greedy class-partitioned Non-Maximum Suppression.
//
// Candidates are sorted by descending confidence, stably so equal scores
// keep their emission order, then walked once: each unsuppressed candidate
// is accepted, and every later candidate of the same class whose IoU with it
// exceeds iouThreshold is suppressed. Candidates of different classes never
// suppress each other.
//
// The returned slice preserves the sorted order; result[0] being the
// highest-confidence detection is part of the contract, not an accident.
// Feeding the output back through NMS with the same threshold changes
// nothing. The input slice is left unmodified.
func NMS(detections []Detection, iouThreshold float32) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]Detection, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	filtered := make([]Detection, 0, n/4+1)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if sorted[j].Class != anchor.Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > iouThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
