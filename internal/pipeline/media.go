package pipeline

import (
	"context"

	"adscribe/internal/compose"
	"adscribe/internal/config"
	"adscribe/internal/media/ffprobe"
	"adscribe/internal/media/frames"
	"adscribe/internal/media/pcm"
)

// Media is the ffmpeg-backed toolbox a job uses.
type Media interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
	ExtractAudio(ctx context.Context, video, mapSpec, dest string, format pcm.Format) (pcm.Track, error)
	SampleFrames(ctx context.Context, video, workDir string) (frames.Source, error)
	Keyframe(ctx context.Context, video string, seconds float64) ([]byte, error)
	Mux(ctx context.Context, video, wav, dest string) error
}

type ffmpegMedia struct {
	cfg       *config.Config
	extractor *pcm.Extractor
}

// NewMedia returns the Media implementation that shells out to the
// configured ffmpeg and ffprobe binaries.
func NewMedia(cfg *config.Config) Media {
	return &ffmpegMedia{cfg: cfg, extractor: pcm.NewExtractor(cfg.Media.FFmpegBinary)}
}

func (m *ffmpegMedia) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := m.cfg.CommandTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (m *ffmpegMedia) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return ffprobe.Inspect(ctx, m.cfg.Media.FFprobeBinary, path)
}

func (m *ffmpegMedia) ExtractAudio(ctx context.Context, video, mapSpec, dest string, format pcm.Format) (pcm.Track, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.extractor.Load(ctx, video, mapSpec, dest, format)
}

func (m *ffmpegMedia) SampleFrames(ctx context.Context, video, workDir string) (frames.Source, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return frames.Sample(ctx, video, frames.SamplerOptions{
		FFmpegBinary: m.cfg.Media.FFmpegBinary,
		Interval:     m.cfg.Scene.SampleInterval,
		Width:        m.cfg.Scene.AnalysisWidth,
		WorkDir:      workDir,
	})
}

func (m *ffmpegMedia) Keyframe(ctx context.Context, video string, seconds float64) ([]byte, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return frames.Keyframe(ctx, m.cfg.Media.FFmpegBinary, video, seconds)
}

func (m *ffmpegMedia) Mux(ctx context.Context, video, wav, dest string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return compose.Mux(ctx, m.cfg.Media.FFmpegBinary, video, wav, dest, m.cfg.Compose.AudioBitrate)
}
