package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
)

func solid(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func TestSliceSourceTimestamps(t *testing.T) {
	src := FromImages(0.5, solid(4, 4, color.Black), solid(4, 4, color.White))
	ctx := context.Background()
	first, err := src.Next(ctx)
	if err != nil || first.Timestamp != 0 {
		t.Fatalf("first frame: %+v %v", first, err)
	}
	second, _ := src.Next(ctx)
	if second.Index != 1 || second.Timestamp != 0.5 {
		t.Fatalf("second frame: %+v", second)
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestGrayResizesAndConverts(t *testing.T) {
	gray := Gray(solid(320, 180, color.RGBA{R: 255, A: 255}), 160)
	if gray.Bounds().Dx() != 160 || gray.Bounds().Dy() != 90 {
		t.Fatalf("unexpected size %v", gray.Bounds())
	}
	// Pure red has luminance near 0.3.
	if v := gray.GrayAt(10, 10).Y; v < 70 || v > 85 {
		t.Fatalf("unexpected luminance %d", v)
	}
}

func TestEncodeJPEGFitsBounds(t *testing.T) {
	data, err := EncodeJPEG(solid(1920, 1080, color.White))
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 768 || img.Bounds().Dy() != 432 {
		t.Fatalf("unexpected keyframe size %v", img.Bounds())
	}
}
