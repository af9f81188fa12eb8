package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateScene(); err != nil {
		return err
	}
	if err := c.validateSilence(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateCompose(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateGovernor(); err != nil {
		return err
	}
	return c.validateProviders()
}

func (c *Config) validateMedia() error {
	if _, err := language.Parse(c.Media.Language); err != nil {
		return fmt.Errorf("media.language %q is not a valid BCP 47 tag: %w", c.Media.Language, err)
	}
	if c.Media.MaxVideoSeconds <= 0 {
		return errors.New("media.max_video_seconds must be positive")
	}
	return nil
}

func (c *Config) validateScene() error {
	switch c.Scene.Metric {
	case "absdiff", "histogram":
	default:
		return fmt.Errorf("scene.metric must be absdiff or histogram, got %q", c.Scene.Metric)
	}
	if c.Scene.Threshold <= 0 || c.Scene.Threshold >= 1 {
		return errors.New("scene.threshold must be between 0 and 1")
	}
	if c.Scene.MinSceneDuration < 0 {
		return errors.New("scene.min_scene_duration must be >= 0")
	}
	if c.Scene.SampleInterval <= 0 {
		return errors.New("scene.sample_interval must be positive")
	}
	return nil
}

func (c *Config) validateSilence() error {
	switch c.Silence.Strategy {
	case "auto", "transcript", "amplitude":
	default:
		return fmt.Errorf("silence.strategy must be auto, transcript or amplitude, got %q", c.Silence.Strategy)
	}
	if c.Silence.MinSilenceMS <= 0 {
		return errors.New("silence.min_silence_ms must be positive")
	}
	if c.Silence.ThresholdDB >= 0 {
		return errors.New("silence.threshold_db must be negative (dBFS)")
	}
	if c.Silence.MergeGapMS < 0 {
		return errors.New("silence.merge_gap_ms must be >= 0")
	}
	if c.Silence.MinConfidence < 0 || c.Silence.MinConfidence > 1 {
		return errors.New("silence.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if err := ensurePositiveFloats(map[string]float64{
		"schedule.word_rate":        c.Schedule.WordRate,
		"schedule.chars_per_second": c.Schedule.CharsPerSecond,
		"schedule.max_wpm":          c.Schedule.MaxWPM,
	}); err != nil {
		return err
	}
	if c.Schedule.MinReadingTime < 0 || c.Schedule.MatchTolerance < 0 || c.Schedule.ValidationRetries < 0 {
		return errors.New("schedule.min_reading_time, match_tolerance and validation_retries must be >= 0")
	}
	switch c.Schedule.Style {
	case "neutral", "detailed":
	default:
		return fmt.Errorf("schedule.style must be neutral or detailed, got %q", c.Schedule.Style)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if !c.Subtitles.Enabled {
		return nil
	}
	if c.Subtitles.MaxCharsPerLine <= 0 || c.Subtitles.MaxLines <= 0 {
		return errors.New("subtitles.max_chars_per_line and subtitles.max_lines must be positive")
	}
	if c.Subtitles.CharsPerSecond <= 0 {
		return errors.New("subtitles.chars_per_second must be positive")
	}
	if c.Subtitles.MinDuration <= 0 || c.Subtitles.MaxDuration < c.Subtitles.MinDuration {
		return errors.New("subtitles.min_duration must be positive and not exceed subtitles.max_duration")
	}
	return nil
}

func (c *Config) validateCompose() error {
	if c.Compose.FadeMS < 0 {
		return errors.New("compose.fade_ms must be >= 0")
	}
	if c.Compose.DuckFloorDB > c.Compose.DuckCeilingDB || c.Compose.DuckCeilingDB > 0 {
		return errors.New("compose.duck_floor_db must not exceed compose.duck_ceiling_db, and both must be <= 0")
	}
	if c.Compose.ShrinkStep <= 0 || c.Compose.MaxShrinkAttempts < 0 {
		return errors.New("compose.shrink_step must be positive and compose.max_shrink_attempts >= 0")
	}
	if c.Compose.SampleRate <= 0 || c.Compose.Channels <= 0 {
		return errors.New("compose.sample_rate and compose.channels must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("cache.dir must be set when cache.enabled is true")
	}
	return ensurePositiveMap(map[string]int{
		"cache.max_age_hours": c.Cache.MaxAgeHours,
		"cache.max_size_mb":   c.Cache.MaxSizeMB,
		"cache.chunk_size_mb": c.Cache.ChunkSizeMB,
	})
}

func (c *Config) validateGovernor() error {
	if err := ensurePositiveMap(map[string]int{
		"governor.max_concurrent":     c.Governor.MaxConcurrent,
		"governor.check_interval_ms":  c.Governor.CheckIntervalMS,
		"governor.poll_interval":      c.Governor.PollInterval,
		"governor.heartbeat_interval": c.Governor.HeartbeatInterval,
		"governor.heartbeat_timeout":  c.Governor.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Governor.HeartbeatTimeout <= c.Governor.HeartbeatInterval {
		return errors.New("governor.heartbeat_timeout must be greater than governor.heartbeat_interval")
	}
	if c.Governor.HighWatermark <= 0 || c.Governor.HighWatermark > 1 {
		return errors.New("governor.high_watermark must be between 0 and 1")
	}
	if c.Governor.ResumeWatermark <= 0 || c.Governor.ResumeWatermark >= c.Governor.HighWatermark {
		return errors.New("governor.resume_watermark must be positive and below governor.high_watermark")
	}
	if c.Governor.MemoryLimitMB < 0 {
		return errors.New("governor.memory_limit_mb must be >= 0")
	}
	return nil
}

func (c *Config) validateProviders() error {
	switch c.AI.Provider {
	case "stub":
	case "openrouter":
		if c.AI.APIKey == "" {
			return errors.New("ai.api_key must be set when ai.provider is openrouter (or set OPENROUTER_API_KEY)")
		}
	case "gemini":
		if c.AI.GeminiAPIKey == "" {
			return errors.New("ai.gemini_api_key must be set when ai.provider is gemini (or set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("ai.provider must be stub, openrouter or gemini, got %q", c.AI.Provider)
	}

	switch c.Transcription.Provider {
	case "none", "whisperx":
	default:
		return fmt.Errorf("transcription.provider must be none or whisperx, got %q", c.Transcription.Provider)
	}

	switch c.TTS.Provider {
	case "stub":
	case "openai":
		if c.TTS.APIKey == "" {
			return errors.New("tts.api_key must be set when tts.provider is openai (or set OPENAI_API_KEY)")
		}
	case "command":
		if c.TTS.Command == "" {
			return errors.New("tts.command must be set when tts.provider is command")
		}
	default:
		return fmt.Errorf("tts.provider must be stub, openai or command, got %q", c.TTS.Provider)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensurePositiveFloats(values map[string]float64) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
