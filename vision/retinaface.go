package vision

import (
	"fmt"
	"image"
	"log"
	"math"

	"gocv.io/x/gocv"

	"github.com/haven-media/haven/faces"
)

// RetinaFace prior box generation and box decoding utilities

// PriorBox defines an anchor box (center_x, center_y, width, height)
type PriorBox struct {
	Cx, Cy, W, H float32
}

// GenerateRetinaFacePriors generates priors for the fixed 640x640 input
func GenerateRetinaFacePriors(imgW, imgH int) []PriorBox {
	// these settings match the standard RetinaFace/ONNX config
	minSizes := [][]int{{16, 32}, {64, 128}, {256, 512}}
	steps := []int{8, 16, 32}
	featureMapSizes := [][]int{
		{imgH / 8, imgW / 8},
		{imgH / 16, imgW / 16},
		{imgH / 32, imgW / 32},
	}
	priors := []PriorBox{}
	for k, fms := range featureMapSizes {
		fmH, fmW := fms[0], fms[1]
		for i := 0; i < fmH; i++ {
			for j := 0; j < fmW; j++ {
				for _, minSize := range minSizes[k] {
					cx := (float32(j) + 0.5) * float32(steps[k]) / float32(imgW)
					cy := (float32(i) + 0.5) * float32(steps[k]) / float32(imgH)
					w := float32(minSize) / float32(imgW)
					h := float32(minSize) / float32(imgH)
					priors = append(priors, PriorBox{Cx: cx, Cy: cy, W: w, H: h})
				}
			}
		}
	}
	return priors
}

// DecodeBox decodes a single box prediction using the prior and variances
func DecodeBox(rawBox [4]float32, prior PriorBox, variances [2]float32) [4]float32 {
	cx := prior.Cx + rawBox[0]*variances[0]*prior.W
	cy := prior.Cy + rawBox[1]*variances[0]*prior.H
	w := prior.W * float32Exp(rawBox[2]*variances[1])
	h := prior.H * float32Exp(rawBox[3]*variances[1])
	x1 := cx - w/2
	y1 := cy - h/2
	x2 := cx + w/2
	y2 := cy + h/2
	return [4]float32{x1, y1, x2, y2}
}

// float32Exp is a helper for float32 exponentiation
func float32Exp(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// RetinaFaceDetector provides face detection using a RetinaFace ONNX model.
// It reports every decoded candidate above a low noise floor; confidence
// filtering and non-max suppression belong to the extraction pipeline.
type RetinaFaceDetector struct {
	Net     gocv.Net
	Enabled bool

	InputSizeW int
	InputSizeH int
	MeanVal    gocv.Scalar
	MinScore   float32 // noise floor, not the pipeline's confidence threshold
}

// Ensure RetinaFaceDetector implements faces.Detector
var _ faces.Detector = (*RetinaFaceDetector)(nil)

// NewRetinaFaceDetector loads the RetinaFace model
func NewRetinaFaceDetector(modelPath string) *RetinaFaceDetector {
	if modelPath == "" {
		log.Println("detection(retinaface): model path is empty, disabling RetinaFace detector")
		return &RetinaFaceDetector{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("detection(retinaface): ERROR - ReadNet returned an empty network. Check file path and integrity.")
		return &RetinaFaceDetector{Enabled: false}
	}
	log.Printf("detection(retinaface): successfully loaded RetinaFace model")

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Println("detection(retinaface): Set backend/target to CUDA")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("detection(retinaface): Set backend/target to CPU (Default)")
	}

	return &RetinaFaceDetector{
		Net:        net,
		Enabled:    true,
		InputSizeW: 640,
		InputSizeH: 640,
		MeanVal:    gocv.NewScalar(104.0, 117.0, 123.0, 0),
		MinScore:   0.1,
	}
}

func (r *RetinaFaceDetector) Close() {
	if r != nil && r.Enabled {
		r.Net.Close()
		log.Println("detection(retinaface): closed network")
		r.Enabled = false
	}
}

// Detect runs RetinaFace on a decoded frame
func (r *RetinaFaceDetector) Detect(img image.Image) ([]faces.Detection, error) {
	if r == nil || !r.Enabled {
		return nil, fmt.Errorf("retinaface detector is not enabled")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame for detection: %w", err)
	}
	defer mat.Close()

	imgHeight := float32(mat.Rows())
	imgWidth := float32(mat.Cols())

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(r.InputSizeW, r.InputSizeH), r.MeanVal, false, false)
	defer blob.Close()

	r.Net.SetInput(blob, "input")

	outputNames := []string{"bbox", "confidence", "landmark"}
	outputs := r.Net.ForwardLayers(outputNames)
	if len(outputs) < 3 {
		return nil, fmt.Errorf("expected 3 outputs (boxes, scores, landmarks), got %d", len(outputs))
	}
	defer func() {
		for _, mat := range outputs {
			mat.Close()
		}
	}()

	return r.parseOutput(outputs[0], outputs[1], outputs[2], imgWidth, imgHeight)
}

// parseOutput decodes the model outputs (boxes, scores, landmarks) into
// pixel-coordinate detections
func (r *RetinaFaceDetector) parseOutput(boxes, scores, landmarks gocv.Mat, imgWidth, imgHeight float32) ([]faces.Detection, error) {
	numDetections := boxes.Size()[1]

	priors := GenerateRetinaFacePriors(r.InputSizeW, r.InputSizeH)
	if len(priors) != numDetections {
		return nil, fmt.Errorf("priors count (%d) != detections (%d); wrong model variant?", len(priors), numDetections)
	}
	variances := [2]float32{0.1, 0.2}

	var detections []faces.Detection
	for i := 0; i < numDetections; i++ {
		scoreFace := scores.GetFloatAt(0, i*2+1)
		if scoreFace < r.MinScore {
			continue
		}

		var rawBox [4]float32
		for j := 0; j < 4; j++ {
			rawBox[j] = boxes.GetFloatAt(0, i*4+j)
		}
		decoded := DecodeBox(rawBox, priors[i], variances)
		x1 := clampFloat32(decoded[0]*imgWidth, 0, imgWidth)
		y1 := clampFloat32(decoded[1]*imgHeight, 0, imgHeight)
		x2 := clampFloat32(decoded[2]*imgWidth, 0, imgWidth)
		y2 := clampFloat32(decoded[3]*imgHeight, 0, imgHeight)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		var pts [10]float32
		for j := 0; j < 5; j++ {
			pts[j*2] = landmarks.GetFloatAt(0, i*10+j*2+0) * imgWidth
			pts[j*2+1] = landmarks.GetFloatAt(0, i*10+j*2+1) * imgHeight
		}

		detections = append(detections, faces.Detection{
			Score:     scoreFace,
			Box:       [4]float32{x1, y1, x2, y2},
			Landmarks: pts,
		})
	}

	return detections, nil
}

func clampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
