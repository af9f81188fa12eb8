package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"adscribe/internal/queue"
	"adscribe/internal/services"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusColor(status queue.Status) string {
	switch status {
	case queue.StatusCompleted:
		return ansiGreen
	case queue.StatusFailed:
		return ansiRed
	case queue.StatusProcessing:
		return ansiYellow
	case queue.StatusQueued:
		return ansiBlue
	default:
		return ""
	}
}

func renderStatus(status queue.Status, colorize bool) string {
	label := string(status)
	if colorize {
		if color := statusColor(status); color != "" {
			return color + label + ansiReset
		}
	}
	return label
}

// formatTimestamp renders seconds as HH:MM:SS.mmm.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// formatError adds the classified suggestion, when there is one, below the
// error message.
func formatError(err error) string {
	msg := err.Error()
	code, suggestion := services.Details(err)
	if code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, code)
	}
	if strings.TrimSpace(suggestion) != "" {
		msg += "\nhint: " + suggestion
	}
	return msg
}

// writeJSON prints v as indented JSON on the command's stdout for --json
// output. HTML escaping is off so description text such as "Tom & Jerry"
// or "<music>" reads as written.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
