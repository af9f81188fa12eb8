package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/disintegration/imaging"

	"adscribe/internal/media/ffmpeg"
	"adscribe/internal/services"
)

const (
	keyframeMaxSize = 768
	keyframeQuality = 85
)

// Keyframe grabs the frame at seconds and returns it as a JPEG no larger
// than 768px on either side.
func Keyframe(ctx context.Context, ffmpegBinary, video string, seconds float64) ([]byte, error) {
	runner := ffmpeg.Runner{Binary: ffmpegBinary, Kind: services.KindVideoProcessing, Component: "keyframe"}
	raw, err := runner.Output(ctx,
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", video,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, services.Wrap(services.KindVideoProcessing, "keyframe", "", "decode keyframe", err)
	}
	return EncodeJPEG(img)
}

// EncodeJPEG fits img within the keyframe bounds and encodes it as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	fitted := imaging.Fit(img, keyframeMaxSize, keyframeMaxSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(keyframeQuality)); err != nil {
		return nil, fmt.Errorf("encode keyframe: %w", err)
	}
	return buf.Bytes(), nil
}

// Gray converts img to an 8-bit luminance buffer resized to width.
// A non-positive width keeps the original size.
func Gray(img image.Image, width int) *image.Gray {
	if width > 0 && img.Bounds().Dx() != width {
		img = imaging.Resize(img, width, 0, imaging.Box)
	}
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = gray.Pix[y*gray.Stride+x*4]
		}
	}
	return out
}
