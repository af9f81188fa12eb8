package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"adscribe/internal/daemon"
	"adscribe/internal/pipeline"
	"adscribe/internal/queue"
)

func newQueueCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newStatusCommand(ctx),
		newListCommand(ctx),
		newRetryCommand(ctx),
		newAckCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "submit <video>...",
		Short: "Queue videos for the worker started with 'adscribe serve'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := resolveVideo(arg)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}
			return ctx.withStore(func(store *queue.Store) error {
				views := make([]queue.StatusView, 0, len(paths))
				for _, path := range paths {
					job, err := store.Enqueue(cmd.Context(), path, strings.TrimSpace(outputDir))
					if err != nil {
						return err
					}
					views = append(views, job.View())
					if !jsonOut {
						fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as %s\n", filepath.Base(path), job.ID)
					}
				}
				if jsonOut {
					return writeJSON(cmd, views)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the artifacts (default <output_dir>/<video name>)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func resolveVideo(arg string) (string, error) {
	path, err := filepath.Abs(strings.TrimSpace(arg))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", arg, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if !daemon.IsVideoFile(path) {
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
	return path, nil
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job (id prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.FindByPrefix(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, job.View())
				}
				printJob(cmd.OutOrStdout(), job, isTerminal(cmd.OutOrStdout()))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the status dictionary as JSON")
	return cmd
}

func printJob(out io.Writer, job *queue.Job, colorize bool) {
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "Video:     %s\n", job.VideoPath)
	fmt.Fprintf(out, "Status:    %s\n", renderStatus(job.Status, colorize))
	fmt.Fprintf(out, "Progress:  %.1f%%\n", job.Progress)
	if job.CurrentStep != "" {
		fmt.Fprintf(out, "Step:      %s\n", job.CurrentStep)
	}
	if job.Attempts > 1 {
		fmt.Fprintf(out, "Attempts:  %d\n", job.Attempts)
	}
	if elapsed := job.Elapsed(time.Now()); elapsed > 0 {
		fmt.Fprintf(out, "Elapsed:   %s\n", elapsed.Round(time.Second))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
		if job.ErrorCode != "" {
			fmt.Fprintf(out, "Code:      %s\n", job.ErrorCode)
		}
		if job.ErrorSuggestion != "" {
			fmt.Fprintf(out, "Hint:      %s\n", job.ErrorSuggestion)
		}
	}
	if job.Status != queue.StatusCompleted || job.ResultJSON == "" {
		return
	}
	var result pipeline.Result
	if err := json.Unmarshal([]byte(job.ResultJSON), &result); err != nil {
		return
	}
	fmt.Fprintf(out, "Cues:      %d (%d warnings)\n", len(result.Cues), len(result.Warnings))
	if result.Artifacts.Metadata != "" {
		fmt.Fprintf(out, "Output:    %s\n", filepath.Dir(result.Artifacts.Metadata))
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in submission order",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					views := make([]queue.StatusView, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, job.View())
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, jobTable(jobs, isTerminal(out)))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (queued, processing, completed, failed)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func jobTable(jobs []*queue.Job, colorize bool) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		step := job.CurrentStep
		if job.Status == queue.StatusFailed && job.ErrorCode != "" {
			step = job.ErrorCode
		}
		rows = append(rows, []string{
			shortID(job.ID),
			renderStatus(job.Status, colorize),
			fmt.Sprintf("%.0f%%", job.Progress),
			step,
			filepath.Base(job.VideoPath),
			job.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable([]string{"ID", "Status", "Progress", "Step", "Video", "Updated"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft})
}

// resolveIDs expands id prefixes to full job ids.
func resolveIDs(cmd *cobra.Command, store *queue.Store, args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		job, err := store.FindByPrefix(cmd.Context(), arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, job.ID)
	}
	return ids, nil
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Re-queue failed jobs (all failed jobs when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				ids, err := resolveIDs(cmd, store, args)
				if err != nil {
					return err
				}
				count, err := store.Retry(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if count == 0 {
					fmt.Fprintln(out, "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(out, "Retried %d failed jobs\n", count)
				return nil
			})
		},
	}
}

func newAckCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ack [job-id...]",
		Short: "Remove finished jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("pass job ids or --all")
			}
			return ctx.withStore(func(store *queue.Store) error {
				var (
					count int64
					err   error
				)
				if all {
					count, err = store.ClearTerminal(cmd.Context())
				} else {
					var ids []string
					if ids, err = resolveIDs(cmd, store, args); err != nil {
						return err
					}
					count, err = store.Delete(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs\n", count)
				if !all && count < int64(len(args)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Jobs still queued or processing were kept")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every completed and failed job")
	return cmd
}
