package silence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"adscribe/internal/config"
	"adscribe/internal/logging"
	"adscribe/internal/media/pcm"
	"adscribe/internal/transcript"
)

// Strategy selects how windows are detected.
type Strategy string

const (
	StrategyAuto       Strategy = "auto"
	StrategyTranscript Strategy = "transcript"
	StrategyAmplitude  Strategy = "amplitude"
)

// blockSeconds is the amplitude analysis frame length.
const blockSeconds = 0.010

// Interval is a non-speech window in seconds.
type Interval struct {
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Options tunes detection. Durations are in seconds.
type Options struct {
	Strategy      Strategy
	MinSilence    float64
	ThresholdDB   float64
	MergeGap      float64
	MinConfidence float64
}

// OptionsFromConfig maps the silence config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Strategy:      Strategy(strings.ToLower(strings.TrimSpace(cfg.Silence.Strategy))),
		MinSilence:    float64(cfg.Silence.MinSilenceMS) / 1000,
		ThresholdDB:   cfg.Silence.ThresholdDB,
		MergeGap:      float64(cfg.Silence.MergeGapMS) / 1000,
		MinConfidence: cfg.Silence.MinConfidence,
	}
}

// Detector finds silence windows.
type Detector struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts and returns a Detector.
func New(opts Options, logger *slog.Logger) (*Detector, error) {
	switch opts.Strategy {
	case "":
		opts.Strategy = StrategyAuto
	case StrategyAuto, StrategyTranscript, StrategyAmplitude:
	default:
		return nil, fmt.Errorf("silence: unknown strategy %q", opts.Strategy)
	}
	if opts.MinSilence <= 0 {
		return nil, fmt.Errorf("silence: minimum window must be positive")
	}
	return &Detector{opts: opts, logger: logging.NewComponentLogger(logger, "silence")}, nil
}

// Detect returns sorted, non-overlapping windows. segments may be nil, in
// which case the auto strategy falls back to the waveform.
func (d *Detector) Detect(ctx context.Context, track pcm.Track, segments []transcript.Segment) ([]Interval, error) {
	strategy := d.opts.Strategy
	if strategy == StrategyAuto {
		strategy = StrategyAmplitude
		if len(segments) > 0 {
			strategy = StrategyTranscript
		}
	}

	var (
		windows []Interval
		err     error
	)
	switch strategy {
	case StrategyTranscript:
		windows = d.fromTranscript(segments, track.Duration())
	default:
		windows, err = d.fromAmplitude(ctx, track)
		if err != nil {
			return nil, err
		}
	}

	d.logger.InfoContext(ctx, "silence detection complete",
		logging.Args(append(
			logging.DecisionAttrs("silence_strategy", string(strategy), strategyReason(d.opts.Strategy, len(segments))),
			logging.Int("windows", len(windows)),
			logging.Float64("audio_seconds", track.Duration()),
		)...)...,
	)
	return windows, nil
}

func strategyReason(configured Strategy, segments int) string {
	if configured != StrategyAuto {
		return "configured"
	}
	if segments > 0 {
		return "transcript available"
	}
	return "no transcript"
}

// fromTranscript measures gaps from the last confident speech end. Segments
// below the confidence threshold do not move the speech end, so the gaps
// around them may overlap; merging coalesces those.
func (d *Detector) fromTranscript(segments []transcript.Segment, duration float64) []Interval {
	var raw []Interval
	lastEnd := 0.0
	minConf, minLen := d.opts.MinConfidence, d.opts.MinSilence
	for _, seg := range transcript.Sorted(segments) {
		if seg.Start-lastEnd >= minLen {
			raw = append(raw, Interval{Start: lastEnd, End: seg.Start})
		}
		if seg.Confidence() >= minConf && seg.End > lastEnd {
			lastEnd = seg.End
		}
	}
	if duration-lastEnd >= minLen {
		raw = append(raw, Interval{Start: lastEnd, End: duration})
	}
	return finalize(raw, d.opts.MergeGap, minLen)
}

func (d *Detector) fromAmplitude(ctx context.Context, track pcm.Track) ([]Interval, error) {
	if track.SampleRate <= 0 || track.Frames() == 0 {
		return nil, nil
	}
	blockFrames := max(int(float64(track.SampleRate)*blockSeconds), 1)
	total := track.Frames()
	rate := float64(track.SampleRate)

	var raw []Interval
	runStart := -1
	closeRun := func(endFrame int) {
		if runStart < 0 {
			return
		}
		window := Interval{Start: float64(runStart) / rate, End: float64(endFrame) / rate}
		if window.Duration() >= d.opts.MinSilence {
			raw = append(raw, window)
		}
		runStart = -1
	}
	for frame, block := 0, 0; frame < total; frame, block = frame+blockFrames, block+1 {
		if block%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		level := pcm.DBFS(pcm.RMS(track.Slice(frame, frame+blockFrames)))
		if level < d.opts.ThresholdDB {
			if runStart < 0 {
				runStart = frame
			}
			continue
		}
		closeRun(frame)
	}
	closeRun(total)
	return finalize(raw, d.opts.MergeGap, d.opts.MinSilence), nil
}

// finalize merges windows closer than gap (overlapping windows always merge)
// and drops windows shorter than minDuration. Input must be sorted by start.
func finalize(windows []Interval, gap, minDuration float64) []Interval {
	if len(windows) == 0 {
		return nil
	}
	merged := []Interval{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End || w.Start-last.End < gap {
			last.End = max(last.End, w.End)
			continue
		}
		merged = append(merged, w)
	}
	out := merged[:0]
	for _, w := range merged {
		if w.Duration() >= minDuration {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
