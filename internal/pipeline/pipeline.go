package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"adscribe/internal/cache"
	"adscribe/internal/compose"
	"adscribe/internal/config"
	"adscribe/internal/governor"
	"adscribe/internal/logging"
	"adscribe/internal/providers"
	"adscribe/internal/queue"
	"adscribe/internal/scene"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/silence"
	"adscribe/internal/stage"
	"adscribe/internal/textutil"
)

const jobLogName = "adscribe-job.log"

// ProviderFactory builds a job's external collaborators. workDir holds
// scratch files that are removed when the job ends.
type ProviderFactory func(ctx context.Context, workDir string, logger *slog.Logger) (*providers.Set, error)

// Request identifies one video to process.
type Request struct {
	JobID     string
	VideoPath string
	// OutputDir defaults to <paths.output_dir>/<video name>.
	OutputDir string
}

// Artifacts lists the files written by a completed job.
type Artifacts struct {
	AudioWAV    string `json:"audio_wav"`
	Video       string `json:"video,omitempty"`
	SRT         string `json:"srt"`
	ScriptJSON  string `json:"script_json"`
	SubtitleSRT string `json:"subtitle_srt,omitempty"`
	Metadata    string `json:"metadata"`
	Log         string `json:"log,omitempty"`
}

// Result is the persisted outcome of a job.
type Result struct {
	JobID     string                      `json:"job_id"`
	VideoPath string                      `json:"video_path"`
	Duration  float64                     `json:"duration"`
	Scenes    []scene.Interval            `json:"scenes"`
	Silences  []silence.Interval          `json:"silences"`
	Cues      []schedule.Cue              `json:"cues"`
	Warnings  []compose.ComplianceWarning `json:"warnings"`
	Artifacts Artifacts                   `json:"artifacts"`
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMedia replaces the ffmpeg-backed media toolbox.
func WithMedia(m Media) Option {
	return func(p *Pipeline) { p.media = m }
}

// WithProviders replaces the config-driven provider factory.
func WithProviders(f ProviderFactory) Option {
	return func(p *Pipeline) { p.providers = f }
}

// WithCache enables result caching.
func WithCache(c *cache.Manager) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithMemoryMonitor holds stages while memory usage is above the watermark.
func WithMemoryMonitor(m *governor.MemoryMonitor) Option {
	return func(p *Pipeline) { p.memory = m }
}

// WithRetryPolicy overrides the policy used for external service calls.
func WithRetryPolicy(policy services.RetryPolicy) Option {
	return func(p *Pipeline) {
		p.retry = policy
		p.retrySet = true
	}
}

// Pipeline runs jobs against one configuration.
type Pipeline struct {
	cfg       *config.Config
	media     Media
	providers ProviderFactory
	cache     *cache.Manager
	memory    *governor.MemoryMonitor
	retry     services.RetryPolicy
	retrySet  bool
	// One bucket per external service, shared by every job of this pipeline.
	describeLimiter *services.RateLimiter
	speechLimiter   *services.RateLimiter
	logger          *slog.Logger
	now             func() time.Time
}

// New builds a Pipeline.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:             cfg,
		describeLimiter: services.NewRateLimiter(cfg.AI.RequestsPerMinute),
		speechLimiter:   services.NewRateLimiter(cfg.AI.RequestsPerMinute),
		logger:          logging.NewComponentLogger(logger, "pipeline"),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.media == nil {
		p.media = NewMedia(cfg)
	}
	if p.providers == nil {
		p.providers = func(ctx context.Context, workDir string, logger *slog.Logger) (*providers.Set, error) {
			return providers.Build(ctx, cfg, workDir, logger)
		}
	}
	if !p.retrySet {
		p.retry = services.DefaultRetryPolicy()
		if cfg.AI.RetryAttempts > 0 {
			p.retry.Attempts = cfg.AI.RetryAttempts
		}
		p.retry.Timeout = cfg.AITimeout()
	}
	return p
}

// Run implements governor.Runner; the returned string is the Result as JSON.
func (p *Pipeline) Run(ctx context.Context, job *queue.Job, progress governor.ProgressFunc) (string, error) {
	result, err := p.Process(ctx, Request{JobID: job.ID, VideoPath: job.VideoPath, OutputDir: job.OutputDir}, stage.ProgressFunc(progress))
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode job result: %w", err)
	}
	return string(data), nil
}

// Process runs every stage for req and writes the artifacts.
func (p *Pipeline) Process(ctx context.Context, req Request, progress stage.ProgressFunc) (Result, error) {
	if req.JobID != "" {
		ctx = services.WithJobID(ctx, req.JobID)
	}
	outputDir, err := p.outputDir(req)
	if err != nil {
		return Result{}, err
	}
	logger, closeLog, logPath := p.jobLogger(ctx, outputDir)
	defer closeLog()

	workDir, cleanup, err := p.workDir(req)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	set, err := p.providers(ctx, filepath.Join(workDir, "tts"), logger)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Debug("provider close failed", logging.Error(err))
		}
	}()

	j := &job{
		p:         p,
		req:       req,
		set:       set,
		workDir:   workDir,
		outputDir: outputDir,
		logger:    logger,
		runner:    p.stageRunner(logger, stage.ProcessPlan(), progress),
		artifacts: Artifacts{Log: logPath},
	}
	logger.Info("processing video",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("video_path", req.VideoPath),
		logging.String("output_dir", outputDir),
	)
	if err := j.analyze(ctx); err != nil {
		return Result{}, err
	}
	if err := j.schedule(ctx); err != nil {
		return Result{}, err
	}
	if err := j.compose(ctx); err != nil {
		return Result{}, err
	}
	if err := j.export(ctx); err != nil {
		return Result{}, err
	}
	result := Result{
		JobID:     req.JobID,
		VideoPath: req.VideoPath,
		Duration:  j.analysis.Duration,
		Scenes:    j.analysis.Scenes,
		Silences:  j.analysis.Silences,
		Cues:      j.composed.Cues,
		Warnings:  j.composed.Warnings,
		Artifacts: j.artifacts,
	}
	logger.Info("video processed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("scenes", len(result.Scenes)),
		logging.Int("silences", len(result.Silences)),
		logging.Int("cues", len(result.Cues)),
		logging.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// Analyze validates the video and detects scenes and silence windows
// without generating descriptions.
func (p *Pipeline) Analyze(ctx context.Context, videoPath string, progress stage.ProgressFunc) (Analysis, error) {
	logger := logging.WithContext(ctx, p.logger)
	workDir, cleanup, err := p.workDir(Request{VideoPath: videoPath})
	if err != nil {
		return Analysis{}, err
	}
	defer cleanup()

	j := &job{
		p:       p,
		req:     Request{VideoPath: videoPath},
		set:     &providers.Set{Transcriber: providers.NewTranscriber(p.cfg, logger)},
		workDir: workDir,
		logger:  logger,
		runner:  p.stageRunner(logger, stage.AnalysisPlan(), progress),
	}
	if err := j.analyze(ctx); err != nil {
		return Analysis{}, err
	}
	return j.analysis, nil
}

func (p *Pipeline) stageRunner(logger *slog.Logger, plan stage.Plan, progress stage.ProgressFunc) *stage.Runner {
	return &stage.Runner{
		Logger:    logger,
		Overrides: p.cfg.Logging.StageOverrides,
		Plan:      plan,
		Progress:  progress,
		Gate:      p.memory.WaitIfPaused,
	}
}

func (p *Pipeline) outputDir(req Request) (string, error) {
	dir := strings.TrimSpace(req.OutputDir)
	if dir == "" {
		dir = filepath.Join(p.cfg.Paths.OutputDir, textutil.VideoStem(req.VideoPath))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.KindSystem, "pipeline", "", "create output directory", err)
	}
	return dir, nil
}

func (p *Pipeline) workDir(req Request) (string, func(), error) {
	root := filepath.Join(p.cfg.Paths.DataDir, "work")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", nil, services.Wrap(services.KindSystem, "pipeline", "", "create work directory", err)
	}
	prefix := req.JobID
	if prefix == "" {
		prefix = textutil.WorkToken(textutil.VideoStem(req.VideoPath))
	}
	dir, err := os.MkdirTemp(root, prefix+"-")
	if err != nil {
		return "", nil, services.Wrap(services.KindSystem, "pipeline", "", "create work directory", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Debug("work directory cleanup failed", logging.String("path", dir), logging.Error(err))
		}
	}, nil
}

// jobLogger mirrors the pipeline logger into a JSON log file in the output
// directory. A log file that cannot be opened or written is not fatal.
func (p *Pipeline) jobLogger(ctx context.Context, outputDir string) (*slog.Logger, func(), string) {
	base := logging.WithContext(ctx, p.logger)
	path := filepath.Join(outputDir, jobLogName)
	handler, closer, err := logging.NewFileHandler(path, logging.ParseLevel(p.cfg.Logging.Level))
	if err != nil {
		logging.WarnWithContext(base, "job log file unavailable", "job_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the output directory"),
			logging.String(logging.FieldImpact, "job events are only written to the main log"),
		)
		return base, func() {}, ""
	}
	logger := logging.MirrorLogger(base, handler.WithAttrs(append(logging.ContextFields(ctx), logging.String(logging.FieldComponent, "pipeline"))))
	return logger, func() {
		if dropped := logging.DroppedMirrorRecords(logger); dropped > 0 {
			logging.WarnWithContext(base, "job log file is incomplete", "job_log_incomplete",
				logging.String("path", path),
				logging.Int64("dropped_records", dropped),
				logging.String(logging.FieldErrorHint, "check free space on the output volume"),
				logging.String(logging.FieldImpact, "job.log is missing events that the main log still has"),
			)
		}
		closeQuietly(closer)
	}, path
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
