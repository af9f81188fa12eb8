package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/media/pcm"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/stage"
	"adscribe/internal/subtitles"
	"adscribe/internal/textutil"
)

// Standards applied to the exported artifacts.
const (
	StandardAudioDescription = "UNE 153020"
	StandardSubtitles        = "UNE 153010"
)

// Metadata is the sidecar written next to the artifacts.
type Metadata struct {
	Video       string            `json:"video"`
	JobID       string            `json:"job_id,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Duration    float64           `json:"duration"`
	Language    string            `json:"language"`
	Standards   []string          `json:"standards"`
	Providers   map[string]string `json:"providers"`
	Stats       Stats             `json:"stats"`
	Subtitles   []subtitles.Issue `json:"subtitle_issues,omitempty"`
	Artifacts   Artifacts         `json:"artifacts"`
}

// Stats summarizes a job for the metadata sidecar.
type Stats struct {
	Scenes        int  `json:"scenes"`
	Silences      int  `json:"silences"`
	Descriptions  int  `json:"descriptions"`
	Placed        int  `json:"placed"`
	Warnings      int  `json:"warnings"`
	SubtitleCues  int  `json:"subtitle_cues"`
	AnalysisCache bool `json:"analysis_cached"`
}

func (j *job) export(ctx context.Context) error {
	return j.runner.Run(ctx, stage.Export, j.write)
}

func (j *job) write(ctx context.Context, logger *slog.Logger, report func(float64)) error {
	cfg := j.p.cfg
	name := textutil.VideoStem(j.req.VideoPath)
	path := func(suffix string) string { return filepath.Join(j.outputDir, name+suffix) }
	fail := func(what string, err error) error {
		return services.Wrap(services.KindSystem, "export", "", "write "+what, err)
	}

	j.artifacts.AudioWAV = path("_described.wav")
	if err := pcm.WriteWAV(j.artifacts.AudioWAV, j.composed.Track); err != nil {
		return fail("mixed audio", err)
	}
	report(0.3)

	if cfg.Compose.Mux {
		j.artifacts.Video = path("_described.mp4")
		if err := j.p.media.Mux(ctx, j.req.VideoPath, j.artifacts.AudioWAV, j.artifacts.Video); err != nil {
			return err
		}
	}
	report(0.7)

	j.artifacts.SRT = path("_descriptions.srt")
	if err := schedule.WriteSRTFile(j.artifacts.SRT, j.composed.Cues); err != nil {
		return fail("description srt", err)
	}
	j.artifacts.ScriptJSON = path("_script.json")
	if err := schedule.WriteScriptFile(j.artifacts.ScriptJSON, j.composed.Cues); err != nil {
		return fail("description script", err)
	}

	subtitleCues, issues, err := j.writeSubtitles(logger, path("_subtitles.srt"))
	if err != nil {
		return fail("subtitles", err)
	}
	report(0.9)

	j.artifacts.Metadata = filepath.Join(j.outputDir, "metadata.json")
	meta := Metadata{
		Video:       j.req.VideoPath,
		JobID:       j.req.JobID,
		GeneratedAt: j.p.now().UTC(),
		Duration:    j.analysis.Duration,
		Language:    cfg.Media.Language,
		Standards:   []string{StandardAudioDescription},
		Providers: map[string]string{
			"description":   cfg.AI.Provider,
			"transcription": cfg.Transcription.Provider,
			"tts":           cfg.TTS.Provider,
		},
		Stats: Stats{
			Scenes:        len(j.analysis.Scenes),
			Silences:      len(j.analysis.Silences),
			Descriptions:  len(j.composed.Cues),
			Placed:        j.composed.Placed(),
			Warnings:      len(j.composed.Warnings),
			SubtitleCues:  subtitleCues,
			AnalysisCache: j.analysis.Cached,
		},
		Subtitles: issues,
		Artifacts: j.artifacts,
	}
	if subtitleCues > 0 {
		meta.Standards = append(meta.Standards, StandardSubtitles)
	}
	if err := writeJSON(j.artifacts.Metadata, meta); err != nil {
		return fail("metadata", err)
	}

	logger.Info("artifacts written",
		logging.String("output_dir", j.outputDir),
		logging.String("audio", j.artifacts.AudioWAV),
		logging.String("video", j.artifacts.Video),
		logging.Int("subtitle_cues", subtitleCues),
	)
	return nil
}

// writeSubtitles builds transcript subtitles when enabled and a transcript
// exists. Standards violations are logged and recorded, not fatal.
func (j *job) writeSubtitles(logger *slog.Logger, dest string) (int, []subtitles.Issue, error) {
	cfg := j.p.cfg
	if !cfg.Subtitles.Enabled || len(j.analysis.Transcript) == 0 {
		logger.Debug("subtitles skipped",
			logging.Bool("enabled", cfg.Subtitles.Enabled),
			logging.Int("transcript_segments", len(j.analysis.Transcript)),
		)
		return 0, nil, nil
	}
	opts := subtitles.OptionsFromConfig(cfg)
	cues, removals := subtitles.Build(j.analysis.Transcript, opts)
	for _, r := range removals {
		logger.Debug("transcript segment dropped",
			logging.String("reason", r.Reason),
			logging.String("text", r.Text),
			logging.Float64("start", r.Start),
		)
	}
	if len(cues) == 0 {
		return 0, nil, nil
	}
	if err := subtitles.WriteSRTFile(dest, cues); err != nil {
		return 0, nil, err
	}
	j.artifacts.SubtitleSRT = dest
	issues := subtitles.Validate(cues, opts, j.analysis.Duration)
	if len(issues) > 0 {
		logging.WarnWithContext(logger, "subtitles break standard limits", "subtitle_validation",
			logging.Int("issues", len(issues)),
			logging.String("first_issue", issues[0].String()),
			logging.String(logging.FieldErrorHint, "review the subtitle file before publishing"),
			logging.String(logging.FieldImpact, "some subtitles may be hard to read"),
		)
	}
	return len(cues), issues, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
