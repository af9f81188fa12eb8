package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"adscribe/internal/cache"
	"adscribe/internal/pipeline"
	"adscribe/internal/scene"
	"adscribe/internal/schedule"
	"adscribe/internal/silence"
)

// newPipeline builds the in-process pipeline used by analyze and process.
func newPipeline(ctx *commandContext) (*pipeline.Pipeline, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return pipeline.New(cfg, logger, pipeline.WithCache(cache.NewManager(cfg, logger, nil))), nil
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Detect scenes and silence windows without generating descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			video, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			progress := newProgressPrinter(cmd.ErrOrStderr())
			analysis, err := p.Analyze(cmd.Context(), video, progress.update)
			progress.done()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, analysis)
			}
			printAnalysis(cmd.OutOrStdout(), analysis)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printAnalysis(out io.Writer, analysis pipeline.Analysis) {
	fmt.Fprintf(out, "Video:     %s\n", analysis.VideoPath)
	fmt.Fprintf(out, "Duration:  %s\n", formatTimestamp(analysis.Duration))
	fmt.Fprintf(out, "Audio:     stream %s\n", analysis.AudioStream)
	fmt.Fprintf(out, "Cached:    %s\n", yesNo(analysis.Cached))
	fmt.Fprintf(out, "\nScenes (%d):\n", len(analysis.Scenes))
	fmt.Fprintln(out, sceneTable(analysis.Scenes))
	fmt.Fprintf(out, "\nSilence windows (%d):\n", len(analysis.Silences))
	fmt.Fprintln(out, silenceTable(analysis.Silences))
}

func sceneTable(scenes []scene.Interval) string {
	rows := make([][]string, 0, len(scenes))
	for i, s := range scenes {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i),
			formatTimestamp(s.Start),
			formatTimestamp(s.End),
			fmt.Sprintf("%.2f", s.Confidence),
		})
	}
	return renderTable([]string{"#", "Start", "End", "Confidence"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight})
}

func silenceTable(windows []silence.Interval) string {
	rows := make([][]string, 0, len(windows))
	for i, w := range windows {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i),
			formatTimestamp(w.Start),
			formatTimestamp(w.End),
			fmt.Sprintf("%.2fs", w.Duration()),
		})
	}
	return renderTable([]string{"#", "Start", "End", "Length"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight})
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Describe, mix and export a video in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			video, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			progress := newProgressPrinter(cmd.ErrOrStderr())
			result, err := p.Process(cmd.Context(), pipeline.Request{
				VideoPath: video,
				OutputDir: strings.TrimSpace(outputDir),
			}, progress.update)
			progress.done()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the artifacts (default <output_dir>/<video name>)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printResult(out io.Writer, result pipeline.Result) {
	fmt.Fprintf(out, "Video:     %s\n", result.VideoPath)
	fmt.Fprintf(out, "Duration:  %s\n", formatTimestamp(result.Duration))
	fmt.Fprintf(out, "Scenes:    %d\n", len(result.Scenes))
	fmt.Fprintf(out, "Silences:  %d\n", len(result.Silences))
	fmt.Fprintf(out, "\nDescriptions (%d):\n", len(result.Cues))
	fmt.Fprintln(out, cueTable(result.Cues))
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "\nCompliance warnings (%d):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "  - %s\n", w.String())
		}
	}
	fmt.Fprintln(out, "\nArtifacts:")
	a := result.Artifacts
	for _, item := range [][2]string{
		{"Mixed audio", a.AudioWAV},
		{"Video", a.Video},
		{"Descriptions", a.SRT},
		{"Script", a.ScriptJSON},
		{"Subtitles", a.SubtitleSRT},
		{"Metadata", a.Metadata},
		{"Log", a.Log},
	} {
		if item[1] != "" {
			fmt.Fprintf(out, "  %-13s %s\n", item[0]+":", item[1])
		}
	}
}

func cueTable(cues []schedule.Cue) string {
	rows := make([][]string, 0, len(cues))
	for _, c := range cues {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.SceneIndex),
			formatTimestamp(c.Window.Start),
			formatTimestamp(c.End()),
			c.Text,
		})
	}
	return renderTable([]string{"Scene", "Start", "End", "Text"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
}
