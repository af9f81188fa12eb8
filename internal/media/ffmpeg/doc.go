// Package ffmpeg runs the ffmpeg binary and converts failures into
// classified services errors carrying the tail of ffmpeg's stderr.
package ffmpeg
