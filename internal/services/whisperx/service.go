package whisperx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"adscribe/internal/language"
	"adscribe/internal/logging"
	"adscribe/internal/media/ffmpeg"
	"adscribe/internal/services"
	"adscribe/internal/transcript"
)

const component = "whisperx"

// CommandRunner executes name with args and returns combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service provides WhisperX transcription.
type Service struct {
	cfg    Config
	run    CommandRunner
	logger *slog.Logger
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		run:    runCommand,
		logger: logging.NewComponentLogger(logger, component),
	}
}

// WithCommandRunner replaces process execution (tests).
func (s *Service) WithCommandRunner(runner CommandRunner) *Service {
	if runner != nil {
		s.run = runner
	}
	return s
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe implements transcript.Provider. WhisperX output is written to a
// scratch directory next to wavPath and removed afterwards.
func (s *Service) Transcribe(ctx context.Context, wavPath, lang string) ([]transcript.Segment, error) {
	if strings.TrimSpace(wavPath) == "" {
		return nil, services.New(services.KindValidation, component, "", "audio path required")
	}
	outputDir, err := os.MkdirTemp(filepath.Dir(wavPath), ".whisperx-")
	if err != nil {
		return nil, services.Wrap(services.KindSystem, component, "", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	started := time.Now()
	args := s.buildArgs(wavPath, outputDir, lang)
	if output, err := s.run(ctx, UVXCommand, args...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.KindSystem, component, services.CodeMissingBinary, "uvx not found", err).
				WithSuggestion("install uv (https://docs.astral.sh/uv/) or set transcription.provider = \"none\"")
		}
		return nil, services.Wrap(services.KindAudioProcessing, component, "",
			fmt.Sprintf("whisperx failed: %s", ffmpeg.Tail(string(output), 8)), err)
	}

	baseName := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	raw, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, services.Wrap(services.KindAudioProcessing, component, "", "read whisperx output", err)
	}
	segments := convert(raw)
	s.logger.InfoContext(ctx, "transcription complete",
		logging.String("model", s.Model()),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return segments, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 changed torch.load to weights_only=true, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	return output.Bytes(), err
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 40)
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := language.Base(lang); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// Word is a single aligned word in WhisperX JSON output. Words WhisperX could
// not align carry no timing.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Score *float64 `json:"score"`
}

// Segment is a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// convert maps WhisperX segments onto transcript segments. Unaligned words
// inherit the previous word's end (or the segment start) and score 0.
func convert(raw []Segment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(raw))
	for _, seg := range raw {
		converted := transcript.Segment{Start: seg.Start, End: seg.End, Text: strings.TrimSpace(seg.Text)}
		cursor := seg.Start
		for _, w := range seg.Words {
			word := transcript.Word{Text: strings.TrimSpace(w.Word), Start: cursor, End: cursor}
			if w.Start != nil {
				word.Start = *w.Start
			}
			if w.End != nil {
				word.End = *w.End
			}
			if w.Score != nil {
				word.Probability = *w.Score
			}
			cursor = word.End
			converted.Words = append(converted.Words, word)
		}
		out = append(out, converted)
	}
	return transcript.Sorted(out)
}
