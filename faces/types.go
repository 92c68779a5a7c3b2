package faces

import (
	"context"
	"image"
)

// Detection is one candidate face reported by a detector: a confidence
// score, a tight pixel-coordinate box (x1,y1,x2,y2) and five (x,y) facial
// keypoints used for alignment.
type Detection struct {
	Score     float32
	Box       [4]float32
	Landmarks [10]float32
}

// Result is one retained face after embedding and deduplication.
type Result struct {
	Embedding     []float32 // L2-normalized
	Score         float32
	Box           [4]float32
	Landmarks     [10]float32
	TimeOffsetSec *float64 // nil for still images
}

// Detector finds faces in a decoded frame. Pure given its input.
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
}

// Embedder produces a fixed-length embedding from an aligned face crop of
// InputSize×InputSize pixels. Pure given its input.
type Embedder interface {
	Embed(aligned *image.NRGBA) ([]float32, error)
	InputSize() int
}

// FrameSource is the media decode/transcode collaborator: frame extraction
// by timestamp from video, frame count and extraction by index from animated
// images. Every call carries a caller-imposed timeout via ctx.
type FrameSource interface {
	VideoDuration(ctx context.Context, path string) (float64, error)
	FrameAt(ctx context.Context, path string, tsSec float64) (image.Image, error)
	AnimatedFrameCount(ctx context.Context, path string) (count int, durationSec float64, err error)
	FrameAtIndex(ctx context.Context, path string, index int) (image.Image, error)
}
