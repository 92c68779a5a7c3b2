package faces

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// fakeDetector reports one fixed face per frame.
type fakeDetector struct {
	detections []Detection
	calls      int
}

func (f *fakeDetector) Detect(img image.Image) ([]Detection, error) {
	f.calls++
	return f.detections, nil
}

// fakeEmbedder returns a scripted sequence of embeddings, repeating the last
// one when the script runs out.
type fakeEmbedder struct {
	vectors [][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(aligned *image.NRGBA) ([]float32, error) {
	idx := f.calls
	if idx >= len(f.vectors) {
		idx = len(f.vectors) - 1
	}
	f.calls++
	return f.vectors[idx], nil
}

func (f *fakeEmbedder) InputSize() int { return 112 }

type fakeFrameSource struct {
	duration   float64
	frameCount int
	frame      image.Image
	frameCalls int
}

func (f *fakeFrameSource) VideoDuration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func (f *fakeFrameSource) FrameAt(ctx context.Context, path string, tsSec float64) (image.Image, error) {
	f.frameCalls++
	return f.frame, nil
}

func (f *fakeFrameSource) AnimatedFrameCount(ctx context.Context, path string) (int, float64, error) {
	return f.frameCount, f.duration, nil
}

func (f *fakeFrameSource) FrameAtIndex(ctx context.Context, path string, index int) (image.Image, error) {
	f.frameCalls++
	return f.frame, nil
}

func testFrame() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	return img
}

// testDetection is a plausible face box with landmarks roughly where a face
// would carry them, so alignment fitting never degenerates.
func testDetection(score float32) Detection {
	return Detection{
		Score: score,
		Box:   [4]float32{40, 40, 160, 180},
		Landmarks: [10]float32{
			75, 90,
			125, 90,
			100, 120,
			80, 150,
			120, 150,
		},
	}
}

func writeTestPNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, testFrame()); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

func TestExtractFileStillImage(t *testing.T) {
	path := writeTestPNG(t)

	det := &fakeDetector{detections: []Detection{testDetection(0.9)}}
	emb := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}}}
	p := NewPipeline(det, emb, nil, Options{})

	results, err := p.ExtractFile(context.Background(), path, "image/png")
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].TimeOffsetSec != nil {
		t.Error("still image result should have no time offset")
	}
	if results[0].Score != 0.9 {
		t.Errorf("got score %v, want 0.9", results[0].Score)
	}
}

func TestExtractFileConfidenceFilter(t *testing.T) {
	path := writeTestPNG(t)

	det := &fakeDetector{detections: []Detection{testDetection(0.3)}}
	emb := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}}}
	p := NewPipeline(det, emb, nil, Options{ConfThreshold: 0.60})

	results, err := p.ExtractFile(context.Background(), path, "image/png")
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("low-confidence detection survived: got %d results", len(results))
	}
	if emb.calls != 0 {
		t.Error("embedder should never run for filtered detections")
	}
}

func TestExtractFileNonVisualMime(t *testing.T) {
	p := NewPipeline(&fakeDetector{}, &fakeEmbedder{vectors: [][]float32{{1}}}, nil, Options{})
	results, err := p.ExtractFile(context.Background(), "irrelevant", "application/pdf")
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if results != nil {
		t.Error("non-visual media should yield no results")
	}
}

func TestExtractVideoCrossFrameDedup(t *testing.T) {
	det := &fakeDetector{detections: []Detection{testDetection(0.9)}}
	// same embedding every frame: one physical face across the whole video
	emb := &fakeEmbedder{vectors: [][]float32{{0, 1, 0}}}
	frames := &fakeFrameSource{duration: 3.0, frame: testFrame()}
	p := NewPipeline(det, emb, frames, Options{})

	results, err := p.ExtractFile(context.Background(), "video.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if frames.frameCalls != 3 {
		t.Errorf("sampled %d frames, want 3 (1s step over 3s)", frames.frameCalls)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 after cross-frame dedup", len(results))
	}
	if results[0].TimeOffsetSec == nil || *results[0].TimeOffsetSec != 0 {
		t.Error("retained face should carry the first frame's offset")
	}
}

func TestExtractVideoSampleCap(t *testing.T) {
	det := &fakeDetector{}
	frames := &fakeFrameSource{duration: 500.0, frame: testFrame()}
	p := NewPipeline(det, &fakeEmbedder{vectors: [][]float32{{1}}}, frames, Options{})

	if _, err := p.ExtractFile(context.Background(), "long.mp4", "video/mp4"); err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if frames.frameCalls != 60 {
		t.Errorf("sampled %d frames, want the cap of 60", frames.frameCalls)
	}
}

func TestExtractAnimatedDistinctFaces(t *testing.T) {
	det := &fakeDetector{detections: []Detection{testDetection(0.9)}}
	// orthogonal embeddings: every sampled frame contributes a new face
	emb := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
	frames := &fakeFrameSource{frameCount: 30, duration: 3.0, frame: testFrame()}
	p := NewPipeline(det, emb, frames, Options{})

	results, err := p.ExtractFile(context.Background(), "anim.gif", "image/gif")
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	// 30 frames sample at 3 indices
	if frames.frameCalls != 3 {
		t.Errorf("sampled %d frames, want 3", frames.frameCalls)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 distinct faces", len(results))
	}
	for i, r := range results {
		if r.TimeOffsetSec == nil {
			t.Errorf("result %d: animated frame should carry a time offset", i)
		}
	}
}

func TestAnimatedSampleIndices(t *testing.T) {
	tests := []struct {
		total, cap int
		want       []int
	}{
		{total: 0, cap: 10, want: nil},
		{total: 1, cap: 10, want: []int{0}},
		{total: 5, cap: 10, want: []int{4}},
		{total: 30, cap: 10, want: []int{0, 10, 29}},
		{total: 100, cap: 10, want: []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 99}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("total=%d_cap=%d", tt.total, tt.cap), func(t *testing.T) {
			got := AnimatedSampleIndices(tt.total, tt.cap)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	t.Run("final frame always sampled", func(t *testing.T) {
		for _, total := range []int{2, 7, 11, 59, 240, 1000} {
			got := AnimatedSampleIndices(total, 10)
			if len(got) == 0 || got[len(got)-1] != total-1 {
				t.Errorf("total=%d: final frame missing from %v", total, got)
			}
			if len(got) > 10 {
				t.Errorf("total=%d: %d indices exceeds cap", total, len(got))
			}
		}
	})
}
