package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"adscribe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("ADSCRIBE_LOG_LEVEL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".local", "share", "adscribe"); cfg.Paths.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, want)
	}
	if want := filepath.Join(tempHome, ".cache", "adscribe"); cfg.Cache.Dir != want {
		t.Fatalf("cache dir = %q, want %q", cfg.Cache.Dir, want)
	}
	if cfg.QueueDBPath() != filepath.Join(cfg.Paths.DataDir, "queue.db") {
		t.Fatalf("unexpected queue path %q", cfg.QueueDBPath())
	}
}

func TestDefaultsMatchDocumentedThresholds(t *testing.T) {
	cfg := config.Default()
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"scene.threshold", cfg.Scene.Threshold, 0.3},
		{"scene.min_scene_duration", cfg.Scene.MinSceneDuration, 2.0},
		{"silence.threshold_db", cfg.Silence.ThresholdDB, -40},
		{"silence.merge_gap_ms", float64(cfg.Silence.MergeGapMS), 1000},
		{"schedule.word_rate", cfg.Schedule.WordRate, 3.0},
		{"schedule.chars_per_second", cfg.Schedule.CharsPerSecond, 15},
		{"schedule.max_wpm", cfg.Schedule.MaxWPM, 180},
		{"schedule.validation_retries", float64(cfg.Schedule.ValidationRetries), 3},
		{"compose.fade_ms", float64(cfg.Compose.FadeMS), 800},
		{"compose.overlay_gain_db", cfg.Compose.OverlayGainDB, -2},
		{"compose.shrink_step", float64(cfg.Compose.ShrinkStep), 2},
		{"cache.max_age_hours", float64(cfg.Cache.MaxAgeHours), 168},
		{"cache.max_size_mb", float64(cfg.Cache.MaxSizeMB), 1000},
		{"cache.chunk_size_mb", float64(cfg.Cache.ChunkSizeMB), 100},
		{"governor.max_concurrent", float64(cfg.Governor.MaxConcurrent), 3},
		{"governor.high_watermark", cfg.Governor.HighWatermark, 0.8},
		{"governor.resume_watermark", cfg.Governor.ResumeWatermark, 0.7},
		{"media.max_video_seconds", float64(cfg.Media.MaxVideoSeconds), 600},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestLoadCustomConfigOverridesAndEnvFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	t.Setenv("ADSCRIBE_LOG_LEVEL", "DEBUG")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
output_dir = "~/described"

[scene]
metric = "Histogram"

[ai]
provider = "openrouter"

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config file to be used, got resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "described") {
		t.Fatalf("output dir not expanded: %q", cfg.Paths.OutputDir)
	}
	if cfg.Scene.Metric != "histogram" {
		t.Fatalf("metric not normalized: %q", cfg.Scene.Metric)
	}
	if cfg.AI.APIKey != "router-key" {
		t.Fatalf("expected api key from env, got %q", cfg.AI.APIKey)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"bad language", func(c *config.Config) { c.Media.Language = "not a tag!" }, "media.language"},
		{"bad metric", func(c *config.Config) { c.Scene.Metric = "ssim" }, "scene.metric"},
		{"threshold out of range", func(c *config.Config) { c.Scene.Threshold = 1.5 }, "scene.threshold"},
		{"bad strategy", func(c *config.Config) { c.Silence.Strategy = "vad" }, "silence.strategy"},
		{"positive silence threshold", func(c *config.Config) { c.Silence.ThresholdDB = 3 }, "silence.threshold_db"},
		{"bad style", func(c *config.Config) { c.Schedule.Style = "poetic" }, "schedule.style"},
		{"inverted duck bounds", func(c *config.Config) { c.Compose.DuckFloorDB = -1 }, "compose.duck_floor_db"},
		{"resume above high", func(c *config.Config) { c.Governor.ResumeWatermark = 0.9 }, "governor.resume_watermark"},
		{"heartbeat order", func(c *config.Config) { c.Governor.HeartbeatTimeout = 5 }, "governor.heartbeat_timeout"},
		{"openrouter without key", func(c *config.Config) { c.AI.Provider = "openrouter"; c.AI.APIKey = "" }, "ai.api_key"},
		{"gemini without key", func(c *config.Config) { c.AI.Provider = "gemini"; c.AI.GeminiAPIKey = "" }, "ai.gemini_api_key"},
		{"command tts without binary", func(c *config.Config) { c.TTS.Provider = "command" }, "tts.command"},
		{"unknown transcription", func(c *config.Config) { c.Transcription.Provider = "cloud" }, "transcription.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
	if cfg.Compose.AudioBitrate != "192k" {
		t.Fatalf("unexpected bitrate %q", cfg.Compose.AudioBitrate)
	}
}

func TestEnsureDirectoriesCreatesConfiguredDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Cache.Dir = filepath.Join(base, "cache")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.InboxDir, cfg.Cache.Dir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
