package compose

import (
	"context"
	"strings"

	"adscribe/internal/media/ffmpeg"
	"adscribe/internal/services"
)

const defaultAudioBitrate = "192k"

// Mux copies the video stream of video and pairs it with the audio in wav,
// encoded as AAC, writing dest.
func Mux(ctx context.Context, ffmpegBinary, video, wav, dest, bitrate string) error {
	if strings.TrimSpace(bitrate) == "" {
		bitrate = defaultAudioBitrate
	}
	runner := ffmpeg.Runner{Binary: ffmpegBinary, Kind: services.KindVideoProcessing, Component: "mux"}
	return runner.Run(ctx, MuxArgs(video, wav, dest, bitrate)...)
}

// MuxArgs returns the ffmpeg arguments used by Mux.
func MuxArgs(video, wav, dest, bitrate string) []string {
	return []string{
		"-i", video,
		"-i", wav,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", bitrate,
		"-shortest",
		dest,
	}
}
