package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"adscribe/internal/config"
	"adscribe/internal/logging"
	"adscribe/internal/media/frames"
	"adscribe/internal/services"
)

// Interval is one detected scene in seconds.
type Interval struct {
	Start      float64 `json:"start" msgpack:"start"`
	End        float64 `json:"end" msgpack:"end"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Options tunes boundary detection.
type Options struct {
	Metric           string
	Threshold        float64
	MinSceneDuration float64
	Width            int
	Workers          int
}

// OptionsFromConfig maps the scene config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Metric:           cfg.Scene.Metric,
		Threshold:        cfg.Scene.Threshold,
		MinSceneDuration: cfg.Scene.MinSceneDuration,
		Width:            cfg.Scene.AnalysisWidth,
		Workers:          cfg.Scene.Workers,
	}
}

// gateEvery is how many frames are decoded between gate checks.
const gateEvery = 32

// Option customizes a Segmenter.
type Option func(*Segmenter)

// WithGate installs a check run before the first frame and then every
// gateEvery frames. It may block; an error stops segmentation.
func WithGate(gate func(context.Context) error) Option {
	return func(s *Segmenter) { s.gate = gate }
}

// Segmenter turns a frame sequence into scene intervals.
type Segmenter struct {
	opts   Options
	metric Metric
	gate   func(context.Context) error
	logger *slog.Logger
}

// New validates opts and returns a Segmenter.
func New(opts Options, logger *slog.Logger, options ...Option) (*Segmenter, error) {
	metric, err := MetricByName(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	s := &Segmenter{
		opts:   opts,
		metric: metric,
		logger: logging.NewComponentLogger(logger, "scene"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

type pairDiff struct {
	index int
	diff  float64
}

// Segment reads every frame from src, scores consecutive pairs, and returns
// the merged scene list. duration is the video length; when it is not
// positive the last frame timestamp is used.
func (s *Segmenter) Segment(ctx context.Context, src frames.Source, duration float64) ([]Interval, error) {
	pool, poolCtx := errgroup.WithContext(ctx)
	pool.SetLimit(s.opts.Workers)

	var (
		mu         sync.Mutex
		diffs      []pairDiff
		timestamps []float64
		prev       *image.Gray
	)
	readErr := func() error {
		for {
			if s.gate != nil && len(timestamps)%gateEvery == 0 {
				if err := s.gate(poolCtx); err != nil {
					return err
				}
			}
			frame, err := src.Next(poolCtx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return classifyFrameError(err)
			}
			cur := frames.Gray(frame.Image, s.opts.Width)
			timestamps = append(timestamps, frame.Timestamp)
			if prev != nil {
				a, b, index := prev, cur, len(timestamps)-1
				pool.Go(func() error {
					d, err := s.metric(a, b)
					if err != nil {
						return services.Wrap(services.KindVideoProcessing, "scene", "", fmt.Sprintf("compare frames %d and %d", index-1, index), err)
					}
					mu.Lock()
					diffs = append(diffs, pairDiff{index: index, diff: d})
					mu.Unlock()
					return nil
				})
			}
			prev = cur
		}
	}()
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if len(timestamps) == 0 {
		return nil, services.New(services.KindVideoProcessing, "scene", "", "no frames to analyze")
	}
	if duration <= 0 {
		duration = timestamps[len(timestamps)-1]
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].index < diffs[j].index })

	var boundaries []boundary
	for _, d := range diffs {
		if d.diff > s.opts.Threshold {
			boundaries = append(boundaries, boundary{at: timestamps[d.index], confidence: 1 - d.diff})
		}
	}
	scenes := buildScenes(boundaries, duration, s.opts.MinSceneDuration)
	s.logger.DebugContext(ctx, "scene segmentation complete",
		logging.Int("frames", len(timestamps)),
		logging.Int("boundaries", len(boundaries)),
		logging.Int("scenes", len(scenes)),
	)
	return scenes, nil
}

type boundary struct {
	at         float64
	confidence float64
}

// buildScenes converts boundaries into intervals, folds short scenes into
// their predecessor (a short opening scene folds forward), and drops any
// scene still below minDuration. Without boundaries the whole video is one
// scene.
func buildScenes(boundaries []boundary, duration, minDuration float64) []Interval {
	if duration <= 0 {
		return nil
	}
	if len(boundaries) == 0 {
		return []Interval{{Start: 0, End: duration, Confidence: 1}}
	}
	raw := make([]Interval, 0, len(boundaries)+1)
	start, confidence := 0.0, 1.0
	for _, b := range boundaries {
		if b.at <= start || b.at >= duration {
			continue
		}
		raw = append(raw, Interval{Start: start, End: b.at, Confidence: confidence})
		start, confidence = b.at, b.confidence
	}
	raw = append(raw, Interval{Start: start, End: duration, Confidence: confidence})

	merged := make([]Interval, 0, len(raw))
	var carry *Interval
	for _, scene := range raw {
		if carry != nil {
			scene.Start = carry.Start
			scene.Confidence = min(scene.Confidence, carry.Confidence)
			carry = nil
		}
		if scene.Duration() < minDuration {
			if len(merged) > 0 {
				last := &merged[len(merged)-1]
				last.End = scene.End
				last.Confidence = min(last.Confidence, scene.Confidence)
				continue
			}
			held := scene
			carry = &held
			continue
		}
		merged = append(merged, scene)
	}
	if carry != nil {
		merged = append(merged, *carry)
	}
	return lo.Filter(merged, func(scene Interval, _ int) bool {
		return scene.Duration() >= minDuration
	})
}

func classifyFrameError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var classified *services.Error
	if errors.As(err, &classified) {
		return err
	}
	return services.Wrap(services.KindVideoProcessing, "scene", "", "read frame", err)
}
