package faces

import (
	"math"
	"testing"
)

func TestFitSimilarityTransformRecoversKnownTransform(t *testing.T) {
	// apply a known scale+rotation+translation to the template, then verify
	// the fit recovers a transform mapping the moved points back onto it
	scale := 1.5
	theta := 0.3
	txKnown, tyKnown := 12.0, -7.0

	a := scale * math.Cos(theta)
	b := scale * math.Sin(theta)

	var moved [10]float64
	for i := 0; i < 5; i++ {
		x, y := arcFaceTemplate[i*2], arcFaceTemplate[i*2+1]
		moved[i*2] = a*x - b*y + txKnown
		moved[i*2+1] = b*x + a*y + tyKnown
	}

	fit, err := FitSimilarityTransform(moved, arcFaceTemplate)
	if err != nil {
		t.Fatalf("FitSimilarityTransform failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		gotX, gotY := fit.Apply(moved[i*2], moved[i*2+1])
		wantX, wantY := arcFaceTemplate[i*2], arcFaceTemplate[i*2+1]
		if math.Abs(gotX-wantX) > 1e-6 || math.Abs(gotY-wantY) > 1e-6 {
			t.Errorf("point %d: got (%v,%v), want (%v,%v)", i, gotX, gotY, wantX, wantY)
		}
	}
}

func TestFitSimilarityTransformDegenerate(t *testing.T) {
	// all source points identical: no transform can be fit
	var src [10]float64
	for i := range src {
		src[i] = 5
	}
	if _, err := FitSimilarityTransform(src, arcFaceTemplate); err == nil {
		t.Error("expected an error for coincident landmarks")
	}
}

func TestExpandBox(t *testing.T) {
	tests := []struct {
		name   string
		box    [4]float32
		margin float32
		w, h   int
		want   [4]float32
	}{
		{
			name:   "interior box grows by margin",
			box:    [4]float32{100, 100, 200, 200},
			margin: 0.20,
			w:      1000, h: 1000,
			want: [4]float32{80, 80, 220, 220},
		},
		{
			name:   "growth clamps at frame edges",
			box:    [4]float32{0, 0, 100, 100},
			margin: 0.20,
			w:      110, h: 110,
			want: [4]float32{0, 0, 110, 110},
		},
		{
			name:   "zero margin is identity",
			box:    [4]float32{10, 20, 30, 40},
			margin: 0,
			w:      100, h: 100,
			want: [4]float32{10, 20, 30, 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandBox(tt.box, tt.margin, tt.w, tt.h)
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-4 {
					t.Errorf("coordinate %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
