package vision

import (
	"fmt"
	"image"
	"log"
	"os"

	"gocv.io/x/gocv"

	"github.com/haven-media/haven/faces"
)

// ArcFaceEmbedder extracts face embeddings from aligned face crops using an
// ArcFace ONNX model. The crop is expected to already be aligned to the
// canonical template at the model's input size; normalization of the output
// vector is left to the caller.
type ArcFaceEmbedder struct {
	Net     gocv.Net
	Enabled bool

	inputSize int
}

var _ faces.Embedder = (*ArcFaceEmbedder)(nil)

// NewArcFaceEmbedder loads the ArcFace model
func NewArcFaceEmbedder(modelPath string) *ArcFaceEmbedder {
	if modelPath == "" {
		log.Println("recognition(arcface): model path is empty, disabling face embedding")
		return &ArcFaceEmbedder{Enabled: false}
	}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		log.Printf("recognition(arcface): ERROR - Model file does not exist: %s", modelPath)
		return &ArcFaceEmbedder{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("recognition(arcface): ERROR - ReadNet returned an empty network. Check file path and integrity.")
		return &ArcFaceEmbedder{Enabled: false}
	}
	log.Println("recognition(arcface): successfully loaded ArcFace model")

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Println("recognition(arcface): Set backend/target to CUDA")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("recognition(arcface): Set backend/target to CPU (Default)")
	}

	return &ArcFaceEmbedder{
		Net:       net,
		Enabled:   true,
		inputSize: 112,
	}
}

func (a *ArcFaceEmbedder) Close() {
	if a != nil && a.Enabled {
		a.Net.Close()
		log.Println("recognition(arcface): closed network")
		a.Enabled = false
	}
}

// InputSize returns the side length of the square crop the model expects
func (a *ArcFaceEmbedder) InputSize() int {
	if a.inputSize == 0 {
		return 112
	}
	return a.inputSize
}

// Embed runs the model over an aligned face crop and returns the raw
// embedding vector
func (a *ArcFaceEmbedder) Embed(aligned *image.NRGBA) ([]float32, error) {
	if a == nil || !a.Enabled {
		return nil, fmt.Errorf("arcface embedder is not enabled")
	}
	if aligned == nil {
		return nil, fmt.Errorf("aligned face crop is nil")
	}

	mat, err := gocv.ImageToMatRGB(aligned)
	if err != nil {
		return nil, fmt.Errorf("failed to convert face crop: %w", err)
	}
	defer mat.Close()

	// ArcFace takes RGB pixels scaled to [0,1]
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(a.inputSize, a.inputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	a.Net.SetInput(blob, "")
	output := a.Net.Forward("")
	defer output.Close()

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embeddingSize := flattened.Cols()
	if embeddingSize == 0 {
		return nil, fmt.Errorf("model produced an empty embedding")
	}
	embedding := make([]float32, embeddingSize)
	for i := 0; i < embeddingSize; i++ {
		embedding[i] = flattened.GetFloatAt(0, i)
	}

	return embedding, nil
}
