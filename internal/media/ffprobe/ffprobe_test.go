package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"adscribe/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Disposition: map[string]int{"attached_pic": 1}, Width: 300},
			{CodecType: "video", Width: 1920, AvgFrameRate: "30000/1001"},
			{CodecType: "audio", SampleRate: "48000"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 2 || result.AudioStreamCount() != 2 {
		t.Fatalf("unexpected stream counts: video=%d audio=%d", result.VideoStreamCount(), result.AudioStreamCount())
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1920 {
		t.Fatalf("cover art should be skipped, got %+v", video)
	}
	if rate := video.FrameRate(); math.Abs(rate-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate %v", rate)
	}
	if result.Streams[2].SampleRateHz() != 48000 {
		t.Fatalf("unexpected sample rate %d", result.Streams[2].SampleRateHz())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 || result.BitRate() != 32000 {
		t.Fatalf("unexpected size/bitrate: %d %d", result.SizeBytes(), result.BitRate())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{Streams: []Stream{{Duration: "10.5"}, {Duration: "12.0"}}}
	if result.DurationSeconds() != 12 {
		t.Fatalf("expected longest stream duration, got %v", result.DurationSeconds())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 || result.BitRate() != 0 {
		t.Fatalf("expected zero size and bitrate")
	}
	if (Stream{AvgFrameRate: "0/0"}).FrameRate() != 0 {
		t.Fatal("0/0 frame rate must not divide by zero")
	}
}

func TestInspectClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	_, err := Inspect(ctx, filepath.Join(t.TempDir(), "missing-ffprobe"), "/v/a.mp4")
	if code, _ := services.Details(err); code != services.CodeMissingBinary {
		t.Fatalf("expected missing binary code, got %v", err)
	}

	failing := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err = Inspect(ctx, failing, "/v/a.mp4")
	if !errors.Is(err, services.ErrVideoProcessing) {
		t.Fatalf("expected video processing error, got %v", err)
	}
}

func TestInspectParsesOutput(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n{\"streams\":[{\"index\":0,\"codec_type\":\"video\",\"width\":640}],\"format\":{\"duration\":\"42.0\"}}\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	result, err := Inspect(context.Background(), stub, "/v/a.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 42 || len(result.RawJSON()) == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
