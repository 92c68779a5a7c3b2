package faces

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"

	"github.com/haven-media/haven/media"
)

// Options tunes the extraction pipeline. Zero values are replaced by the
// defaults below.
type Options struct {
	ConfThreshold  float32 // minimum detector confidence
	IoUThreshold   float32 // NMS overlap suppression
	DedupThreshold float32 // cosine similarity at which two faces are one
	CropMargin     float32 // box expansion fraction

	VideoSampleStepSec int // one frame per step
	VideoSampleCap     int // hard cap on sampled video frames
	AnimatedSampleCap  int // hard cap on sampled animated-image frames
}

func (o *Options) applyDefaults() {
	if o.ConfThreshold == 0 {
		o.ConfThreshold = 0.60
	}
	if o.IoUThreshold == 0 {
		o.IoUThreshold = 0.40
	}
	if o.DedupThreshold == 0 {
		o.DedupThreshold = 0.70
	}
	if o.CropMargin == 0 {
		o.CropMargin = 0.20
	}
	if o.VideoSampleStepSec == 0 {
		o.VideoSampleStepSec = 1
	}
	if o.VideoSampleCap == 0 {
		o.VideoSampleCap = 60
	}
	if o.AnimatedSampleCap == 0 {
		o.AnimatedSampleCap = 10
	}
}

// Pipeline turns one decoded visual media item into its deduplicated list of
// face embeddings. Frame decode, detection and embedding are external
// collaborators; the pipeline owns sampling, suppression, alignment and
// cross-frame deduplication.
type Pipeline struct {
	Detector Detector
	Embedder Embedder
	Frames   FrameSource
	Opts     Options
}

func NewPipeline(detector Detector, embedder Embedder, frames FrameSource, opts Options) *Pipeline {
	opts.applyDefaults()
	return &Pipeline{Detector: detector, Embedder: embedder, Frames: frames, Opts: opts}
}

// ExtractFile routes a stored file through the still-image, video or
// animated-image path based on its sniffed MIME type.
func (p *Pipeline) ExtractFile(ctx context.Context, path, mimeType string) ([]Result, error) {
	switch {
	case media.IsAnimatedImageMime(mimeType):
		return p.extractAnimated(ctx, path)
	case len(mimeType) >= 6 && mimeType[:6] == "video/":
		return p.extractVideo(ctx, path)
	case len(mimeType) >= 6 && mimeType[:6] == "image/":
		return p.extractStill(path)
	default:
		return nil, nil
	}
}

// extractStill runs detection once and deduplicates within that single set.
func (p *Pipeline) extractStill(path string) ([]Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	acc := NewAccumulator(p.Opts.DedupThreshold)
	p.processFrame(img, nil, acc)
	return acc.Results(), nil
}

// extractVideo samples frames at a fixed time step up to a hard cap. Every
// new embedding is merged against the whole item's accumulated set, not just
// its own frame.
func (p *Pipeline) extractVideo(ctx context.Context, path string) ([]Result, error) {
	duration, err := p.Frames.VideoDuration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video %s: %w", path, err)
	}

	acc := NewAccumulator(p.Opts.DedupThreshold)
	step := float64(p.Opts.VideoSampleStepSec)
	sampled := 0
	for ts := 0.0; ts < duration && sampled < p.Opts.VideoSampleCap; ts += step {
		frame, err := p.Frames.FrameAt(ctx, path, ts)
		if err != nil {
			// one bad frame must not lose the faces of the others
			log.Printf("faces: failed to extract frame at %.1fs of %s: %v", ts, path, err)
			sampled++
			continue
		}
		offset := ts
		p.processFrame(frame, &offset, acc)
		sampled++
	}
	return acc.Results(), nil
}

// extractAnimated determines the total frame count cheaply, then samples a
// bounded set of representative indices. The sample count shrinks as the
// animation grows (total/10, capped) so long animations are never
// exhaustively scanned, and the final frame is always included.
func (p *Pipeline) extractAnimated(ctx context.Context, path string) ([]Result, error) {
	total, duration, err := p.Frames.AnimatedFrameCount(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to count frames of %s: %w", path, err)
	}
	if total <= 0 {
		return nil, nil
	}

	indices := AnimatedSampleIndices(total, p.Opts.AnimatedSampleCap)

	acc := NewAccumulator(p.Opts.DedupThreshold)
	for _, idx := range indices {
		frame, err := p.Frames.FrameAtIndex(ctx, path, idx)
		if err != nil {
			log.Printf("faces: failed to extract frame %d of %s: %v", idx, path, err)
			continue
		}
		var offset *float64
		if duration > 0 {
			o := duration * float64(idx) / float64(total)
			offset = &o
		} else {
			o := float64(idx)
			offset = &o
		}
		p.processFrame(frame, offset, acc)
	}
	return acc.Results(), nil
}

// AnimatedSampleIndices picks at most cap representative frame indices for an
// animation of total frames: count = min(cap, max(1, total/10)), spread
// evenly from the start and always including the final frame.
func AnimatedSampleIndices(total, cap int) []int {
	if total <= 0 {
		return nil
	}
	count := total / 10
	if count < 1 {
		count = 1
	}
	if count > cap {
		count = cap
	}
	if count >= total {
		indices := make([]int, total)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	indices := make([]int, 0, count)
	seen := make(map[int]bool, count)
	for i := 0; i < count-1; i++ {
		idx := i * total / count
		if !seen[idx] {
			indices = append(indices, idx)
			seen[idx] = true
		}
	}
	if !seen[total-1] {
		indices = append(indices, total-1)
	}
	return indices
}

// processFrame runs one frame through detection, suppression, alignment and
// embedding, merging survivors into the item-wide accumulator. Errors are
// isolated per face; a frame always contributes whatever succeeded.
func (p *Pipeline) processFrame(frame image.Image, offset *float64, acc *Accumulator) {
	detections, err := p.Detector.Detect(frame)
	if err != nil {
		log.Printf("faces: detection failed: %v", err)
		return
	}

	kept := detections[:0:0]
	for _, d := range detections {
		if d.Score >= p.Opts.ConfThreshold {
			kept = append(kept, d)
		}
	}
	// suppress duplicate boxes before any embedding compute is spent
	kept = NonMaxSuppression(kept, p.Opts.IoUThreshold)

	bounds := frame.Bounds()
	for _, d := range kept {
		embedding, err := p.embedDetection(frame, d, bounds.Dx(), bounds.Dy())
		if err != nil {
			log.Printf("faces: failed to embed face at [%.0f,%.0f,%.0f,%.0f]: %v",
				d.Box[0], d.Box[1], d.Box[2], d.Box[3], err)
			continue
		}
		acc.AddIfUnique(Result{
			Embedding:     embedding,
			Score:         d.Score,
			Box:           d.Box,
			Landmarks:     d.Landmarks,
			TimeOffsetSec: offset,
		})
	}
}

// embedDetection crops the expanded box, aligns the face to the canonical
// pose via its landmarks, and runs the embedding model on the result.
func (p *Pipeline) embedDetection(frame image.Image, d Detection, frameW, frameH int) ([]float32, error) {
	expanded := ExpandBox(d.Box, p.Opts.CropMargin, frameW, frameH)

	rect := image.Rect(int(expanded[0]), int(expanded[1]), int(expanded[2]), int(expanded[3]))
	crop := imaging.Crop(frame, rect)
	if crop.Bounds().Empty() {
		return nil, fmt.Errorf("empty crop for box [%.0f,%.0f,%.0f,%.0f]", d.Box[0], d.Box[1], d.Box[2], d.Box[3])
	}

	// landmarks move into crop coordinates
	var landmarks [10]float32
	for i := 0; i < 5; i++ {
		landmarks[i*2] = d.Landmarks[i*2] - expanded[0]
		landmarks[i*2+1] = d.Landmarks[i*2+1] - expanded[1]
	}

	aligned, err := AlignFace(crop, landmarks, p.Embedder.InputSize())
	if err != nil {
		return nil, err
	}

	embedding, err := p.Embedder.Embed(aligned)
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}
	return NormalizeEmbedding(embedding), nil
}
