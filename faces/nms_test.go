package faces

import "testing"

func TestNonMaxSuppression(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		threshold  float32
		wantScores []float32
	}{
		{
			name:       "empty input",
			detections: nil,
			threshold:  0.4,
			wantScores: nil,
		},
		{
			name: "overlapping boxes keep highest score",
			detections: []Detection{
				{Score: 0.8, Box: [4]float32{0, 0, 100, 100}},
				{Score: 0.95, Box: [4]float32{10, 10, 110, 110}},
			},
			threshold:  0.4,
			wantScores: []float32{0.95},
		},
		{
			name: "disjoint boxes all survive",
			detections: []Detection{
				{Score: 0.7, Box: [4]float32{0, 0, 50, 50}},
				{Score: 0.9, Box: [4]float32{200, 200, 250, 250}},
			},
			threshold:  0.4,
			wantScores: []float32{0.9, 0.7},
		},
		{
			name: "light overlap below threshold survives",
			detections: []Detection{
				{Score: 0.9, Box: [4]float32{0, 0, 100, 100}},
				{Score: 0.8, Box: [4]float32{90, 90, 190, 190}},
			},
			threshold:  0.4,
			wantScores: []float32{0.9, 0.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NonMaxSuppression(tt.detections, tt.threshold)
			if len(got) != len(tt.wantScores) {
				t.Fatalf("got %d detections, want %d", len(got), len(tt.wantScores))
			}
			for i, want := range tt.wantScores {
				if got[i].Score != want {
					t.Errorf("detection %d: got score %v, want %v", i, got[i].Score, want)
				}
			}
		})
	}
}

func TestBoxIoU(t *testing.T) {
	a := [4]float32{0, 0, 100, 100}

	if got := boxIoU(a, a); got != 1.0 {
		t.Errorf("identical boxes: got IoU %v, want 1.0", got)
	}
	if got := boxIoU(a, [4]float32{200, 200, 300, 300}); got != 0.0 {
		t.Errorf("disjoint boxes: got IoU %v, want 0.0", got)
	}

	// half-width overlap: intersection 5000, union 15000
	got := boxIoU(a, [4]float32{50, 0, 150, 100})
	want := float32(1.0 / 3.0)
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("half overlap: got IoU %v, want %v", got, want)
	}
}
