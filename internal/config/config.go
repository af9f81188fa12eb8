package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	InboxDir     string `toml:"inbox_dir"`
	MetricsBind  string `toml:"metrics_bind"`
	MetricsToken string `toml:"metrics_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Media contains probing limits and external binaries.
type Media struct {
	Language           string `toml:"language"`
	MaxVideoSeconds    int    `toml:"max_video_seconds"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	CommandTimeoutSecs int    `toml:"command_timeout_seconds"`
}

// Scene configures visual scene segmentation.
type Scene struct {
	Metric           string  `toml:"metric"`
	Threshold        float64 `toml:"threshold"`
	MinSceneDuration float64 `toml:"min_scene_duration"`
	SampleInterval   float64 `toml:"sample_interval"`
	AnalysisWidth    int     `toml:"analysis_width"`
	Workers          int     `toml:"workers"`
}

// Silence configures non-speech window detection.
type Silence struct {
	Strategy      string  `toml:"strategy"`
	MinSilenceMS  int     `toml:"min_silence_ms"`
	ThresholdDB   float64 `toml:"threshold_db"`
	MergeGapMS    int     `toml:"merge_gap_ms"`
	MinConfidence float64 `toml:"min_confidence"`
}

// Schedule configures scene to window matching and text fitting.
type Schedule struct {
	WordRate          float64 `toml:"word_rate"`
	CharsPerSecond    float64 `toml:"chars_per_second"`
	MinReadingTime    float64 `toml:"min_reading_time"`
	MaxWPM            float64 `toml:"max_wpm"`
	ValidationRetries int     `toml:"validation_retries"`
	MatchTolerance    float64 `toml:"match_tolerance"`
	Style             string  `toml:"style"`
}

// Subtitles configures UNE 153010 subtitle generation from the transcript.
type Subtitles struct {
	Enabled         bool    `toml:"enabled"`
	MaxCharsPerLine int     `toml:"max_chars_per_line"`
	MaxLines        int     `toml:"max_lines"`
	CharsPerSecond  float64 `toml:"chars_per_second"`
	MinDuration     float64 `toml:"min_duration"`
	MaxDuration     float64 `toml:"max_duration"`
}

// Compose configures synthesis fitting and mixing.
type Compose struct {
	FadeMS            int     `toml:"fade_ms"`
	OverlayGainDB     float64 `toml:"overlay_gain_db"`
	DuckCeilingDB     float64 `toml:"duck_ceiling_db"`
	DuckFloorDB       float64 `toml:"duck_floor_db"`
	ShrinkStep        int     `toml:"shrink_step"`
	MaxShrinkAttempts int     `toml:"max_shrink_attempts"`
	SampleRate        int     `toml:"sample_rate"`
	Channels          int     `toml:"channels"`
	Mux               bool    `toml:"mux"`
	AudioBitrate      string  `toml:"audio_bitrate"`
}

// Cache configures the on-disk result cache.
type Cache struct {
	Enabled     bool   `toml:"enabled"`
	Dir         string `toml:"dir"`
	MaxAgeHours int    `toml:"max_age_hours"`
	MaxSizeMB   int    `toml:"max_size_mb"`
	ChunkSizeMB int    `toml:"chunk_size_mb"`
	Checksum    bool   `toml:"checksum"`
}

// Governor configures worker concurrency and memory backpressure.
type Governor struct {
	MaxConcurrent     int     `toml:"max_concurrent"`
	MemoryLimitMB     int     `toml:"memory_limit_mb"`
	HighWatermark     float64 `toml:"high_watermark"`
	ResumeWatermark   float64 `toml:"resume_watermark"`
	CheckIntervalMS   int     `toml:"check_interval_ms"`
	PollInterval      int     `toml:"poll_interval"`
	HeartbeatInterval int     `toml:"heartbeat_interval"`
	HeartbeatTimeout  int     `toml:"heartbeat_timeout"`
}

// AI contains description generator settings.
type AI struct {
	Provider          string `toml:"provider"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	RetryAttempts     int    `toml:"retry_attempts"`
	GeminiAPIKey      string `toml:"gemini_api_key"`
	GeminiModel       string `toml:"gemini_model"`
}

// Transcription contains speech transcription settings.
type Transcription struct {
	Provider    string `toml:"provider"`
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// TTS contains speech synthesis settings.
type TTS struct {
	Provider       string   `toml:"provider"`
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	Voice          string   `toml:"voice"`
	Speed          float64  `toml:"speed"`
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	WordsPerSecond float64  `toml:"words_per_second"`
}

// Config encapsulates all configuration values for adscribe.
//
// Configuration sections by subsystem:
//   - Paths: data, output, log and inbox directories plus the metrics bind
//   - Media: language, duration limit, ffmpeg/ffprobe binaries
//   - Scene, Silence, Schedule: analysis and scheduling thresholds
//   - Subtitles: UNE 153010 subtitle limits
//   - Compose: synthesis fitting and mixing parameters
//   - Cache: result cache location, TTL and size budget
//   - Governor: worker concurrency and memory watermarks
//   - AI, Transcription, TTS: external collaborators
//   - Logging: log format, level, and per-stage overrides
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Media         Media         `toml:"media"`
	Scene         Scene         `toml:"scene"`
	Silence       Silence       `toml:"silence"`
	Schedule      Schedule      `toml:"schedule"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Compose       Compose       `toml:"compose"`
	Cache         Cache         `toml:"cache"`
	Governor      Governor      `toml:"governor"`
	AI            AI            `toml:"ai"`
	Transcription Transcription `toml:"transcription"`
	TTS           TTS           `toml:"tts"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is
// loaded first so credentials can stay out of the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("adscribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the worker writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		dirs = append(dirs, c.Paths.InboxDir)
	}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Cache.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite job store location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the single-instance lock file used by the worker.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "adscribe.lock")
}

// MinSilence returns the minimum silence window length.
func (c *Config) MinSilence() time.Duration {
	return time.Duration(c.Silence.MinSilenceMS) * time.Millisecond
}

// AITimeout returns the per-call timeout for external AI collaborators.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// CommandTimeout bounds a single ffmpeg/ffprobe invocation.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Media.CommandTimeoutSecs) * time.Second
}

// CacheMaxAge returns the TTL of cache entries.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "adscribe")
	}
	return "~/.cache/adscribe"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
