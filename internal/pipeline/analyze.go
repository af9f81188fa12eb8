package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"adscribe/internal/cache"
	"adscribe/internal/compose"
	"adscribe/internal/logging"
	"adscribe/internal/media/audio"
	"adscribe/internal/media/pcm"
	"adscribe/internal/providers"
	"adscribe/internal/scene"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/silence"
	"adscribe/internal/stage"
	"adscribe/internal/transcript"
)

// Analysis is the detection output for one video.
type Analysis struct {
	VideoPath   string               `json:"video_path" msgpack:"video_path"`
	Duration    float64              `json:"duration" msgpack:"duration"`
	AudioStream string               `json:"audio_stream" msgpack:"audio_stream"`
	Scenes      []scene.Interval     `json:"scenes" msgpack:"scenes"`
	Silences    []silence.Interval   `json:"silences" msgpack:"silences"`
	Transcript  []transcript.Segment `json:"transcript,omitempty" msgpack:"transcript"`
	Cached      bool                 `json:"cached" msgpack:"-"`
}

// job carries the state of one run across stages.
type job struct {
	p         *Pipeline
	req       Request
	set       *providers.Set
	workDir   string
	outputDir string
	logger    *slog.Logger
	runner    *stage.Runner

	duration  float64
	selection audio.Selection
	fileKey   string
	wavPath   string
	track     pcm.Track

	analysis    Analysis
	analysisKey string
	cues        []schedule.Cue
	composed    compose.Result
	artifacts   Artifacts
}

func (j *job) analyze(ctx context.Context) error {
	if err := j.runner.Run(ctx, stage.Validate, j.validate); err != nil {
		return err
	}
	if err := j.runner.Run(ctx, stage.Extract, j.extract); err != nil {
		return err
	}
	return j.runner.Run(ctx, stage.Analyze, j.detect)
}

// validate rejects inputs the rest of the job cannot handle.
func (j *job) validate(ctx context.Context, logger *slog.Logger, _ func(float64)) error {
	cfg := j.p.cfg
	path := j.req.VideoPath
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.New(services.KindValidation, "validate", services.CodeFileNotFound, "video not found: "+path)
		}
		return services.Wrap(services.KindValidation, "validate", services.CodeFileNotFound, "stat video", err)
	}
	if info.IsDir() {
		return services.New(services.KindValidation, "validate", services.CodeUnsupportedFormat, path+" is a directory")
	}

	probe, err := j.p.media.Probe(ctx, path)
	if err != nil {
		return err
	}
	if probe.VideoStreamCount() == 0 {
		return services.New(services.KindValidation, "validate", services.CodeUnsupportedFormat, "no video stream found")
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return services.New(services.KindValidation, "validate", services.CodeUnsupportedFormat, "video duration is unknown")
	}
	if limit := cfg.Media.MaxVideoSeconds; limit > 0 && duration > float64(limit) {
		return services.New(services.KindValidation, "validate", services.CodeVideoTooLong,
			fmt.Sprintf("video is %.0fs long, the maximum is %ds", duration, limit))
	}

	selection := audio.Select(probe.Streams, cfg.Media.Language)
	if !selection.Found() {
		return services.New(services.KindValidation, "validate", services.CodeUnsupportedFormat, "no audio stream found")
	}
	j.duration = duration
	j.selection = selection

	logger.Info("audio stream selected", logging.Args(
		logging.DecisionAttrs("audio_stream", selection.MapSpec(), selection.PrimaryLabel())...,
	)...)
	logger.Info("video validated",
		logging.Float64("duration_seconds", duration),
		logging.Int("audio_streams", probe.AudioStreamCount()),
		logging.Int64("size_bytes", info.Size()),
	)

	if j.p.cache != nil {
		key, err := j.p.cache.KeyFor(path)
		if err != nil {
			logger.Debug("cache key unavailable", logging.Error(err))
		} else {
			j.fileKey = key
		}
	}
	return nil
}

func (j *job) extract(ctx context.Context, logger *slog.Logger, _ func(float64)) error {
	cfg := j.p.cfg
	j.wavPath = filepath.Join(j.workDir, "original.wav")
	track, err := j.p.media.ExtractAudio(ctx, j.req.VideoPath, j.selection.MapSpec(), j.wavPath,
		pcm.Format{SampleRate: cfg.Compose.SampleRate, Channels: cfg.Compose.Channels})
	if err != nil {
		return err
	}
	j.track = track
	logger.Info("audio extracted",
		logging.String("stream", j.selection.MapSpec()),
		logging.Int("sample_rate", track.SampleRate),
		logging.Int("channels", track.Channels),
		logging.Float64("seconds", track.Duration()),
	)
	return nil
}

// detect runs scene segmentation and silence detection side by side and
// joins them before scheduling.
func (j *job) detect(ctx context.Context, logger *slog.Logger, report func(float64)) error {
	j.analysisKey = j.cacheKey("analysis", j.analysisParams())
	var cached Analysis
	if hit, err := j.cacheGet(ctx, j.analysisKey, &cached); err != nil {
		logger.Debug("analysis cache read failed", logging.Error(err))
	} else if hit {
		cached.Cached = true
		cached.VideoPath = j.req.VideoPath
		j.analysis = cached
		logger.Info("analysis loaded from cache",
			logging.Int("scenes", len(cached.Scenes)),
			logging.Int("silences", len(cached.Silences)),
		)
		return nil
	}

	segmenter, err := scene.New(scene.OptionsFromConfig(j.p.cfg), logger,
		scene.WithGate(j.p.memory.WaitIfPaused),
	)
	if err != nil {
		return services.Wrap(services.KindValidation, "scene", "", "invalid scene options", err)
	}
	detector, err := silence.New(silence.OptionsFromConfig(j.p.cfg), logger)
	if err != nil {
		return services.Wrap(services.KindValidation, "silence", "", "invalid silence options", err)
	}

	var mu sync.Mutex
	halves := 0
	finished := func() {
		mu.Lock()
		defer mu.Unlock()
		halves++
		report(float64(halves) / 2)
	}

	var (
		scenes   []scene.Interval
		windows  []silence.Interval
		segments []transcript.Segment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		src, err := j.p.media.SampleFrames(gctx, j.req.VideoPath, filepath.Join(j.workDir, "frames"))
		if err != nil {
			return err
		}
		scenes, err = segmenter.Segment(gctx, src, j.duration)
		if err != nil {
			return err
		}
		finished()
		return nil
	})
	g.Go(func() error {
		var err error
		segments, err = j.transcribe(gctx, logger)
		if err != nil {
			return err
		}
		windows, err = detector.Detect(gctx, j.track, segments)
		if err != nil {
			return err
		}
		finished()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	j.analysis = Analysis{
		VideoPath:   j.req.VideoPath,
		Duration:    j.duration,
		AudioStream: j.selection.MapSpec(),
		Scenes:      scenes,
		Silences:    windows,
		Transcript:  segments,
	}
	if err := j.cachePut(ctx, j.analysisKey, "analysis", j.analysis); err != nil {
		logging.WarnWithContext(logger, "analysis not cached", "cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache.dir permissions and free space"),
			logging.String(logging.FieldImpact, "the next run repeats scene and silence detection"),
		)
	}
	logger.Info("analysis complete",
		logging.Int("scenes", len(scenes)),
		logging.Int("silences", len(windows)),
		logging.Int("transcript_segments", len(segments)),
	)
	return nil
}

// transcribe returns the transcript, or nil when the provider has none. A
// failed transcription degrades to waveform analysis unless the transcript
// strategy was requested explicitly.
func (j *job) transcribe(ctx context.Context, logger *slog.Logger) ([]transcript.Segment, error) {
	if j.set == nil || j.set.Transcriber == nil {
		return nil, nil
	}
	segments, err := j.set.Transcriber.Transcribe(ctx, j.wavPath, j.p.cfg.Media.Language)
	if err == nil {
		return segments, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if silence.Strategy(strings.ToLower(j.p.cfg.Silence.Strategy)) == silence.StrategyTranscript {
		return nil, err
	}
	logging.WarnWithContext(logger, "transcription failed; using waveform analysis", "transcription_fallback",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the transcription provider with 'adscribe deps'"),
		logging.String(logging.FieldImpact, "silence windows come from audio levels and no subtitles are written"),
	)
	return nil, nil
}

func (j *job) analysisParams() string {
	cfg := j.p.cfg
	return strings.Join([]string{
		fmt.Sprintf("%+v", scene.OptionsFromConfig(cfg)),
		fmt.Sprintf("%.3f", cfg.Scene.SampleInterval),
		fmt.Sprintf("%+v", silence.OptionsFromConfig(cfg)),
		cfg.Transcription.Provider,
		cfg.Transcription.Model,
		cfg.Media.Language,
		j.selection.MapSpec(),
	}, "|")
}

// cacheKey derives a stage key from the source file key. It returns "" when
// caching is off or the file key is unknown, which every cache call treats
// as a miss.
func (j *job) cacheKey(stage string, params ...string) string {
	if j.fileKey == "" {
		return ""
	}
	return cache.DeriveKey(append([]string{j.fileKey, stage}, params...)...)
}

func (j *job) cacheGet(ctx context.Context, key string, out any) (bool, error) {
	if key == "" {
		return false, nil
	}
	return j.p.cache.Get(ctx, key, out)
}

func (j *job) cachePut(ctx context.Context, key, stage string, payload any) error {
	if key == "" {
		return nil
	}
	return j.p.cache.Put(ctx, key, stage, payload)
}
