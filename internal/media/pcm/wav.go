package pcm

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	outputBitDepth = 16
	wavFormatPCM   = 1
)

// ErrInvalidWAV reports a file that is not a decodable PCM WAV.
var ErrInvalidWAV = errors.New("invalid wav file")

// ReadWAV decodes a PCM WAV file into a float Track.
func ReadWAV(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Track{}, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Track{}, fmt.Errorf("decode wav: %w", err)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = outputBitDepth
	}
	scale := math.Pow(2, float64(bitDepth-1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = Clamp(float64(v) / scale)
	}
	return Track{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// WriteWAV encodes t as 16-bit PCM WAV at path.
func WriteWAV(path string, t Track) error {
	if t.Channels <= 0 || t.SampleRate <= 0 {
		return fmt.Errorf("write wav: invalid format %d Hz x %d ch", t.SampleRate, t.Channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	enc := wav.NewEncoder(f, t.SampleRate, outputBitDepth, t.Channels, wavFormatPCM)
	const maxInt16 = math.MaxInt16
	data := make([]int, len(t.Samples))
	for i, s := range t.Samples {
		data[i] = int(math.Round(Clamp(s) * maxInt16))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: t.Channels, SampleRate: t.SampleRate},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}
