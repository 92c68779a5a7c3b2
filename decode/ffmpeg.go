// Package decode extracts frames from videos and animated images by shelling
// out to ffmpeg and ffprobe.
package decode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/haven-media/haven/faces"
)

const defaultTimeout = 30 * time.Second

// FFmpegSource implements frame extraction via the ffmpeg and ffprobe
// binaries. Every invocation runs under a hard timeout; a decoder stuck on a
// malformed file is killed rather than waited on.
type FFmpegSource struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

var _ faces.FrameSource = (*FFmpegSource)(nil)

// NewFFmpegSource builds a source using the given binary paths. Empty paths
// fall back to lookup on PATH.
func NewFFmpegSource(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpegSource {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &FFmpegSource{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

func (s *FFmpegSource) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out after %s", name, s.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return nil, fmt.Errorf("%s failed: %w (%s)", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// VideoDuration probes the container duration in seconds
func (s *FFmpegSource) VideoDuration(ctx context.Context, path string) (float64, error) {
	out, err := s.run(ctx, s.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to probe duration: %w", err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse probed duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}

// FrameAt decodes the frame nearest the given timestamp
func (s *FFmpegSource) FrameAt(ctx context.Context, path string, tsSec float64) (image.Image, error) {
	out, err := s.run(ctx, s.FFmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(tsSec, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame at %.3fs: %w", tsSec, err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame at %.3fs: %w", tsSec, err)
	}
	return img, nil
}

// AnimatedFrameCount counts the frames of an animated image and probes its
// total duration
func (s *FFmpegSource) AnimatedFrameCount(ctx context.Context, path string) (int, float64, error) {
	out, err := s.run(ctx, s.FFprobePath,
		"-v", "error",
		"-count_frames",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_read_frames:format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to probe animated image: %w", err)
	}

	// two lines: nb_read_frames then duration, either may be "N/A"
	var count int
	var duration float64
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "N/A" {
			continue
		}
		if n, err := strconv.Atoi(line); err == nil && count == 0 {
			count = n
			continue
		}
		if d, err := strconv.ParseFloat(line, 64); err == nil && duration == 0 {
			duration = d
		}
	}
	if count <= 0 {
		return 0, 0, fmt.Errorf("could not determine frame count for %s", path)
	}
	return count, duration, nil
}

// FrameAtIndex decodes a single frame of an animated image by index
func (s *FFmpegSource) FrameAtIndex(ctx context.Context, path string, index int) (image.Image, error) {
	out, err := s.run(ctx, s.FFmpegPath,
		"-v", "error",
		"-i", path,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", index),
		"-vsync", "0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame %d: %w", index, err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, nil
}
