package faces

import "sort"

// NonMaxSuppression removes overlapping detections for the same face before
// any embedding compute is spent on them: greedy pass keeping the
// highest-score box and suppressing every box whose IoU with it exceeds the
// threshold.
func NonMaxSuppression(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var result []Detection
	used := make([]bool, len(sorted))

	for i := 0; i < len(sorted); i++ {
		if used[i] {
			continue
		}
		result = append(result, sorted[i])
		used[i] = true

		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			if boxIoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				used[j] = true
			}
		}
	}
	return result
}

// boxIoU calculates the Intersection over Union between two boxes
func boxIoU(a, b [4]float32) float32 {
	x1 := maxFloat32(a[0], b[0])
	y1 := maxFloat32(a[1], b[1])
	x2 := minFloat32(a[2], b[2])
	y2 := minFloat32(a[3], b[3])

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0.0
	}
	return intersection / union
}

// minFloat32 returns the minimum of two float32 values
func minFloat32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// maxFloat32 returns the maximum of two float32 values
func maxFloat32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
