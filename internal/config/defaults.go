package config

const (
	defaultConfigPath  = "~/.config/adscribe/config.toml"
	defaultDataDir     = "~/.local/share/adscribe"
	defaultOutputDir   = "~/adscribe/output"
	defaultLogDir      = "~/.local/share/adscribe/logs"
	defaultMetricsBind = "127.0.0.1:7489"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"

	defaultLanguage        = "es"
	defaultMaxVideoSeconds = 600
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultCommandTimeout  = 300

	defaultSceneMetric      = "absdiff"
	defaultSceneThreshold   = 0.3
	defaultMinSceneDuration = 2.0
	defaultSampleInterval   = 0.5
	defaultAnalysisWidth    = 160
	defaultSceneWorkers     = 4

	defaultSilenceStrategy = "auto"
	defaultMinSilenceMS    = 2000
	defaultSilenceThreshDB = -40.0
	defaultMergeGapMS      = 1000
	defaultMinConfidence   = 0.5

	defaultWordRate          = 3.0
	defaultCharsPerSecond    = 15.0
	defaultMinReadingTime    = 1.0
	defaultMaxWPM            = 180.0
	defaultValidationRetries = 3
	defaultStyle             = "neutral"

	defaultSubtitleCharsPerLine = 37
	defaultSubtitleLines        = 2
	defaultSubtitleMinDuration  = 1.0
	defaultSubtitleMaxDuration  = 6.0

	defaultFadeMS            = 800
	defaultOverlayGainDB     = -2.0
	defaultDuckCeilingDB     = -5.0
	defaultDuckFloorDB       = -10.0
	defaultShrinkStep        = 2
	defaultMaxShrinkAttempts = 3
	defaultSampleRate        = 48000
	defaultChannels          = 2
	defaultAudioBitrate      = "192k"

	defaultCacheMaxAgeHours = 168
	defaultCacheMaxSizeMB   = 1000
	defaultCacheChunkSizeMB = 100

	defaultMaxConcurrent     = 3
	defaultHighWatermark     = 0.80
	defaultResumeWatermark   = 0.70
	defaultCheckIntervalMS   = 1000
	defaultPollInterval      = 5
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120

	defaultAIProvider        = "stub"
	defaultAIBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultAIModel           = "google/gemini-2.5-flash"
	defaultAIReferer         = "https://github.com/adscribe/adscribe"
	defaultAITitle           = "adscribe"
	defaultAITimeoutSeconds  = 60
	defaultRequestsPerMinute = 60
	defaultRetryAttempts     = 3
	defaultGeminiModel       = "gemini-1.5-flash"

	defaultTranscription = "none"
	defaultWhisperXModel = "large-v3-turbo"
	defaultVADMethod     = "silero"

	defaultTTSProvider    = "stub"
	defaultTTSModel       = "tts-1"
	defaultTTSVoice       = "alloy"
	defaultTTSSpeed       = 1.0
	defaultWordsPerSecond = 2.5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			OutputDir:   defaultOutputDir,
			LogDir:      defaultLogDir,
			MetricsBind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Media: Media{
			Language:           defaultLanguage,
			MaxVideoSeconds:    defaultMaxVideoSeconds,
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			CommandTimeoutSecs: defaultCommandTimeout,
		},
		Scene: Scene{
			Metric:           defaultSceneMetric,
			Threshold:        defaultSceneThreshold,
			MinSceneDuration: defaultMinSceneDuration,
			SampleInterval:   defaultSampleInterval,
			AnalysisWidth:    defaultAnalysisWidth,
			Workers:          defaultSceneWorkers,
		},
		Silence: Silence{
			Strategy:      defaultSilenceStrategy,
			MinSilenceMS:  defaultMinSilenceMS,
			ThresholdDB:   defaultSilenceThreshDB,
			MergeGapMS:    defaultMergeGapMS,
			MinConfidence: defaultMinConfidence,
		},
		Schedule: Schedule{
			WordRate:          defaultWordRate,
			CharsPerSecond:    defaultCharsPerSecond,
			MinReadingTime:    defaultMinReadingTime,
			MaxWPM:            defaultMaxWPM,
			ValidationRetries: defaultValidationRetries,
			Style:             defaultStyle,
		},
		Subtitles: Subtitles{
			Enabled:         true,
			MaxCharsPerLine: defaultSubtitleCharsPerLine,
			MaxLines:        defaultSubtitleLines,
			CharsPerSecond:  defaultCharsPerSecond,
			MinDuration:     defaultSubtitleMinDuration,
			MaxDuration:     defaultSubtitleMaxDuration,
		},
		Compose: Compose{
			FadeMS:            defaultFadeMS,
			OverlayGainDB:     defaultOverlayGainDB,
			DuckCeilingDB:     defaultDuckCeilingDB,
			DuckFloorDB:       defaultDuckFloorDB,
			ShrinkStep:        defaultShrinkStep,
			MaxShrinkAttempts: defaultMaxShrinkAttempts,
			SampleRate:        defaultSampleRate,
			Channels:          defaultChannels,
			Mux:               true,
			AudioBitrate:      defaultAudioBitrate,
		},
		Cache: Cache{
			Enabled:     true,
			Dir:         defaultCacheDir(),
			MaxAgeHours: defaultCacheMaxAgeHours,
			MaxSizeMB:   defaultCacheMaxSizeMB,
			ChunkSizeMB: defaultCacheChunkSizeMB,
		},
		Governor: Governor{
			MaxConcurrent:     defaultMaxConcurrent,
			HighWatermark:     defaultHighWatermark,
			ResumeWatermark:   defaultResumeWatermark,
			CheckIntervalMS:   defaultCheckIntervalMS,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		AI: AI{
			Provider:          defaultAIProvider,
			BaseURL:           defaultAIBaseURL,
			Model:             defaultAIModel,
			Referer:           defaultAIReferer,
			Title:             defaultAITitle,
			TimeoutSeconds:    defaultAITimeoutSeconds,
			RequestsPerMinute: defaultRequestsPerMinute,
			RetryAttempts:     defaultRetryAttempts,
			GeminiModel:       defaultGeminiModel,
		},
		Transcription: Transcription{
			Provider:  defaultTranscription,
			Model:     defaultWhisperXModel,
			VADMethod: defaultVADMethod,
		},
		TTS: TTS{
			Provider:       defaultTTSProvider,
			Model:          defaultTTSModel,
			Voice:          defaultTTSVoice,
			Speed:          defaultTTSSpeed,
			WordsPerSecond: defaultWordsPerSecond,
		},
	}
}
