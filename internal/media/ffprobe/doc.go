// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result; helper methods expose stream
// counts, the primary video stream, duration, and frame and sample rates.
// Failures are returned as classified services errors so a job records a
// missing binary or unreadable input with the matching suggestion.
package ffprobe
