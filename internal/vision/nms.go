package vision

import "sort"

// nms keeps the highest-confidence box of every overlapping cluster.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) < 2 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	suppressed := make([]bool, len(detections))
	out := make([]Detection, 0, len(detections))
	for i := range detections {
		if suppressed[i] {
			continue
		}
		out = append(out, detections[i])
		for j := i + 1; j < len(detections); j++ {
			if !suppressed[j] && iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return out
}

func iou(a, b [4]float32) float32 {
	w := min(a[2], b[2]) - max(a[0], b[0])
	h := min(a[3], b[3]) - max(a[1], b[1])
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}
