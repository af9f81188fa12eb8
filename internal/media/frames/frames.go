package frames

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"

	"adscribe/internal/media/ffmpeg"
	"adscribe/internal/services"
)

// Frame is one sampled video frame.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
}

// Source yields frames in timestamp order and returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// SamplerOptions controls frame sampling.
type SamplerOptions struct {
	FFmpegBinary string
	// Interval is the spacing between sampled frames in seconds.
	Interval float64
	// Width is the analysis width; height keeps the aspect ratio.
	Width int
	// WorkDir receives the extracted frame files.
	WorkDir string
}

// Sequence reads frames previously extracted by Sample from disk, one at a time.
type Sequence struct {
	paths    []string
	interval float64
	next     int
}

// Sample extracts one frame every opts.Interval seconds, scaled to opts.Width,
// into opts.WorkDir and returns a Sequence over them.
func Sample(ctx context.Context, video string, opts SamplerOptions) (*Sequence, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("frames: interval must be positive")
	}
	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("frames: ensure work dir: %w", err)
	}
	width := opts.Width
	if width <= 0 {
		width = 160
	}
	filter := fmt.Sprintf("fps=1/%s,scale=%d:-2", strconv.FormatFloat(opts.Interval, 'f', -1, 64), width)
	runner := ffmpeg.Runner{Binary: opts.FFmpegBinary, Kind: services.KindVideoProcessing, Component: "frames"}
	pattern := filepath.Join(opts.WorkDir, "frame_%06d.png")
	if err := runner.Run(ctx, "-i", video, "-an", "-vf", filter, "-vsync", "vfr", pattern); err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(opts.WorkDir, "frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("frames: list extracted frames: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, services.New(services.KindVideoProcessing, "frames", "", "no frames decoded from "+video)
	}
	return &Sequence{paths: paths, interval: opts.Interval}, nil
}

// Len returns the number of frames in the sequence.
func (s *Sequence) Len() int {
	return len(s.paths)
}

// Next decodes the next frame file.
func (s *Sequence) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.paths) {
		return Frame{}, io.EOF
	}
	index := s.next
	s.next++
	img, err := imaging.Open(s.paths[index])
	if err != nil {
		return Frame{}, services.Wrap(services.KindVideoProcessing, "frames", "", "decode sampled frame", err)
	}
	return Frame{Index: index, Timestamp: float64(index) * s.interval, Image: img}, nil
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []Frame
	next   int
}

// FromImages builds a Source with frames spaced interval seconds apart.
func FromImages(interval float64, images ...image.Image) *SliceSource {
	frames := make([]Frame, len(images))
	for i, img := range images {
		frames[i] = Frame{Index: i, Timestamp: float64(i) * interval, Image: img}
	}
	return &SliceSource{frames: frames}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}
