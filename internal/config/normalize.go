package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeAnalysis()
	c.normalizeAI()
	c.normalizeTranscription()
	c.normalizeTTS()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.InboxDir, err = expandPath(strings.TrimSpace(c.Paths.InboxDir)); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.MetricsBind = strings.TrimSpace(c.Paths.MetricsBind)
	if value := envValue("ADSCRIBE_METRICS_TOKEN"); value != "" {
		c.Paths.MetricsToken = value
	}
	c.Paths.MetricsToken = strings.TrimSpace(c.Paths.MetricsToken)
	return nil
}

func (c *Config) normalizeCache() error {
	var err error
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir()
	}
	if c.Cache.Dir, err = expandPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	if c.Cache.ChunkSizeMB <= 0 {
		c.Cache.ChunkSizeMB = defaultCacheChunkSizeMB
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.Language = strings.TrimSpace(c.Media.Language)
	if c.Media.Language == "" {
		c.Media.Language = defaultLanguage
	}
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Media.CommandTimeoutSecs <= 0 {
		c.Media.CommandTimeoutSecs = defaultCommandTimeout
	}
}

func (c *Config) normalizeAnalysis() {
	c.Scene.Metric = strings.ToLower(strings.TrimSpace(c.Scene.Metric))
	if c.Scene.Metric == "" {
		c.Scene.Metric = defaultSceneMetric
	}
	if c.Scene.Workers <= 0 {
		c.Scene.Workers = defaultSceneWorkers
	}
	if c.Scene.AnalysisWidth <= 0 {
		c.Scene.AnalysisWidth = defaultAnalysisWidth
	}
	c.Silence.Strategy = strings.ToLower(strings.TrimSpace(c.Silence.Strategy))
	if c.Silence.Strategy == "" {
		c.Silence.Strategy = defaultSilenceStrategy
	}
	c.Schedule.Style = strings.ToLower(strings.TrimSpace(c.Schedule.Style))
	if c.Schedule.Style == "" {
		c.Schedule.Style = defaultStyle
	}
	c.Compose.AudioBitrate = strings.TrimSpace(c.Compose.AudioBitrate)
	if c.Compose.AudioBitrate == "" {
		c.Compose.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeAI() {
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.Provider == "" {
		c.AI.Provider = defaultAIProvider
	}
	c.AI.BaseURL = strings.TrimSpace(c.AI.BaseURL)
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = defaultAIBaseURL
	}
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
	c.AI.Referer = strings.TrimSpace(c.AI.Referer)
	if c.AI.Referer == "" {
		c.AI.Referer = defaultAIReferer
	}
	c.AI.Title = strings.TrimSpace(c.AI.Title)
	if c.AI.Title == "" {
		c.AI.Title = defaultAITitle
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = defaultAITimeoutSeconds
	}
	if c.AI.RequestsPerMinute <= 0 {
		c.AI.RequestsPerMinute = defaultRequestsPerMinute
	}
	if c.AI.RetryAttempts <= 0 {
		c.AI.RetryAttempts = defaultRetryAttempts
	}
	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	if c.AI.APIKey == "" {
		c.AI.APIKey = envValue("OPENROUTER_API_KEY")
	}
	c.AI.GeminiAPIKey = strings.TrimSpace(c.AI.GeminiAPIKey)
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = envValue("GEMINI_API_KEY")
	}
	c.AI.GeminiModel = strings.TrimSpace(c.AI.GeminiModel)
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = defaultGeminiModel
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = defaultTranscription
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value := envValue("HUGGING_FACE_HUB_TOKEN"); value != "" {
			c.Transcription.HFToken = value
		} else {
			c.Transcription.HFToken = envValue("HF_TOKEN")
		}
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Provider = strings.ToLower(strings.TrimSpace(c.TTS.Provider))
	if c.TTS.Provider == "" {
		c.TTS.Provider = defaultTTSProvider
	}
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = envValue("OPENAI_API_KEY")
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	if c.TTS.Speed <= 0 {
		c.TTS.Speed = defaultTTSSpeed
	}
	if c.TTS.WordsPerSecond <= 0 {
		c.TTS.WordsPerSecond = defaultWordsPerSecond
	}
	c.TTS.Command = strings.TrimSpace(c.TTS.Command)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	if value := envValue("ADSCRIBE_LOG_LEVEL"); value != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envValue(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
