package faces

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// arcFaceTemplate is the canonical destination for the five facial keypoints
// (left eye, right eye, nose tip, left mouth corner, right mouth corner) in
// a 112×112 crop. Standard ArcFace alignment target.
var arcFaceTemplate = [10]float64{
	38.2946, 51.6963,
	73.5318, 51.5014,
	56.0252, 71.7366,
	41.5493, 92.3655,
	70.7299, 92.2041,
}

// SimilarityTransform is a 2D translation+scale+rotation mapping
// (x,y) → (A·x − B·y + Tx, B·x + A·y + Ty).
type SimilarityTransform struct {
	A, B, Tx, Ty float64
}

// Apply maps a source point through the transform.
func (t SimilarityTransform) Apply(x, y float64) (float64, float64) {
	return t.A*x - t.B*y + t.Tx, t.B*x + t.A*y + t.Ty
}

// FitSimilarityTransform least-squares fits the non-reflective similarity
// transform carrying the source landmarks onto the destination landmarks.
// Both are 5 points packed as x0,y0..x4,y4.
func FitSimilarityTransform(src, dst [10]float64) (SimilarityTransform, error) {
	const n = 5

	var sx, sy, su, sv float64    // coordinate sums
	var sxx float64               // Σ(x²+y²)
	var sxu, sxv float64          // Σ(x·u + y·v), Σ(x·v − y·u)
	for i := 0; i < n; i++ {
		x, y := src[i*2], src[i*2+1]
		u, v := dst[i*2], dst[i*2+1]
		sx += x
		sy += y
		su += u
		sv += v
		sxx += x*x + y*y
		sxu += x*u + y*v
		sxv += x*v - y*u
	}

	denom := sxx - (sx*sx+sy*sy)/n
	if denom == 0 {
		return SimilarityTransform{}, fmt.Errorf("degenerate landmark configuration")
	}

	a := (sxu - (sx*su+sy*sv)/n) / denom
	b := (sxv - (sx*sv-sy*su)/n) / denom
	tx := (su - a*sx + b*sy) / n
	ty := (sv - b*sx - a*sy) / n

	return SimilarityTransform{A: a, B: b, Tx: tx, Ty: ty}, nil
}

// AlignFace warps the source frame so the detected landmarks land on the
// canonical template, producing an inputSize×inputSize crop for the
// embedding model. Bilinear resampling via the fitted similarity transform.
func AlignFace(frame image.Image, landmarks [10]float32, inputSize int) (*image.NRGBA, error) {
	var src [10]float64
	for i, v := range landmarks {
		src[i] = float64(v)
	}

	dst := arcFaceTemplate
	if inputSize != 112 {
		scale := float64(inputSize) / 112.0
		for i := range dst {
			dst[i] *= scale
		}
	}

	t, err := FitSimilarityTransform(src, dst)
	if err != nil {
		return nil, fmt.Errorf("failed to fit alignment transform: %w", err)
	}

	aligned := image.NewNRGBA(image.Rect(0, 0, inputSize, inputSize))
	m := f64.Aff3{
		t.A, -t.B, t.Tx,
		t.B, t.A, t.Ty,
	}
	draw.BiLinear.Transform(aligned, m, frame, frame.Bounds(), draw.Src, nil)
	return aligned, nil
}

// ExpandBox grows a tight detection box by a margin fraction on every side,
// clamped to the frame, so the embedding model sees context beyond the crop.
func ExpandBox(box [4]float32, margin float32, frameW, frameH int) [4]float32 {
	w := box[2] - box[0]
	h := box[3] - box[1]
	return [4]float32{
		maxFloat32(0, box[0]-w*margin),
		maxFloat32(0, box[1]-h*margin),
		minFloat32(float32(frameW), box[2]+w*margin),
		minFloat32(float32(frameH), box[3]+h*margin),
	}
}
