package pcm

import (
	"context"
	"strconv"

	"adscribe/internal/media/ffmpeg"
	"adscribe/internal/services"
)

// Format is the target PCM layout for extraction and normalization.
type Format struct {
	SampleRate int
	Channels   int
}

// Extractor converts media into PCM WAV files through ffmpeg.
type Extractor struct {
	runner ffmpeg.Runner
}

// NewExtractor returns an Extractor using the given ffmpeg binary.
func NewExtractor(binary string) *Extractor {
	return &Extractor{runner: ffmpeg.Runner{
		Binary:    binary,
		Kind:      services.KindAudioProcessing,
		Component: "audio-extract",
	}}
}

// ExtractAudio decodes the stream selected by mapSpec (for example "0:a:1")
// from video into a 16-bit WAV at dest.
func (e *Extractor) ExtractAudio(ctx context.Context, video, mapSpec, dest string, format Format) error {
	if mapSpec == "" {
		mapSpec = "0:a:0"
	}
	return e.runner.Run(ctx,
		"-i", video,
		"-map", mapSpec,
		"-vn",
		"-ac", strconv.Itoa(format.Channels),
		"-ar", strconv.Itoa(format.SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// Normalize resamples and remixes an audio file of any supported format into
// a WAV with the requested format.
func (e *Extractor) Normalize(ctx context.Context, src, dest string, format Format) error {
	return e.runner.Run(ctx,
		"-i", src,
		"-vn",
		"-ac", strconv.Itoa(format.Channels),
		"-ar", strconv.Itoa(format.SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
}

// Load extracts the selected stream to dest and decodes it.
func (e *Extractor) Load(ctx context.Context, video, mapSpec, dest string, format Format) (Track, error) {
	if err := e.ExtractAudio(ctx, video, mapSpec, dest, format); err != nil {
		return Track{}, err
	}
	track, err := ReadWAV(dest)
	if err != nil {
		return Track{}, services.Wrap(services.KindAudioProcessing, "audio-extract", "", "decode extracted audio", err)
	}
	return track, nil
}
