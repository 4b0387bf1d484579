package postprocess

// Filter transforms a detection list. Hosts compose filters on top of a
// detector's output, e.g. to serve only requested classes.
type Filter func([]Detection) []Detection

// MinConfidence keeps detections scoring at or above threshold.
func MinConfidence(threshold float32) Filter {
	return func(dets []Detection) []Detection {
		kept := make([]Detection, 0, len(dets))
		for _, d := range dets {
			if d.Confidence >= threshold {
				kept = append(kept, d)
			}
		}
		return kept
	}
}

// MinArea keeps detections whose box covers at least minArea pixels.
func MinArea(minArea int64) Filter {
	return func(dets []Detection) []Detection {
		kept := make([]Detection, 0, len(dets))
		for _, d := range dets {
			if d.Box.Area() >= minArea {
				kept = append(kept, d)
			}
		}
		return kept
	}
}

// Classes keeps only detections carrying one of the listed class ids.
func Classes(keep ...int) Filter {
	allowed := make(map[int]struct{}, len(keep))
	for _, c := range keep {
		allowed[c] = struct{}{}
	}
	return func(dets []Detection) []Detection {
		kept := make([]Detection, 0, len(dets))
		for _, d := range dets {
			if _, ok := allowed[d.Class]; ok {
				kept = append(kept, d)
			}
		}
		return kept
	}
}

// Chain applies filters left to right.
func Chain(filters ...Filter) Filter {
	return func(dets []Detection) []Detection {
		for _, f := range filters {
			dets = f(dets)
		}
		return dets
	}
}
