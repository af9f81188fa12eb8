package scene

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Metric scores the visual difference between two equally sized grayscale
// frames in [0, 1].
type Metric func(a, b *image.Gray) (float64, error)

// Metric names accepted in configuration.
const (
	MetricAbsDiff   = "absdiff"
	MetricHistogram = "histogram"
)

// MetricByName resolves a configured metric.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MetricAbsDiff, "":
		return AbsDiff, nil
	case MetricHistogram:
		return HistogramDiff, nil
	default:
		return nil, fmt.Errorf("unknown scene metric %q", name)
	}
}

// AbsDiff is the mean absolute pixel difference normalized by 255.
func AbsDiff(a, b *image.Gray) (float64, error) {
	if err := sameSize(a, b); err != nil {
		return 0, err
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w*h == 0 {
		return 0, nil
	}
	var total int64
	for y := 0; y < h; y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+w]
		rowB := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := range rowA {
			d := int64(rowA[x]) - int64(rowB[x])
			if d < 0 {
				d = -d
			}
			total += d
		}
	}
	return float64(total) / float64(w*h) / 255, nil
}

// HistogramDiff is 1 minus the Pearson correlation of the 256-bin luminance
// histograms, clamped to [0, 1].
func HistogramDiff(a, b *image.Gray) (float64, error) {
	ha, hb := histogram(a), histogram(b)
	var meanA, meanB float64
	for i := range ha {
		meanA += ha[i]
		meanB += hb[i]
	}
	meanA /= float64(len(ha))
	meanB /= float64(len(hb))

	var cov, varA, varB float64
	for i := range ha {
		da, db := ha[i]-meanA, hb[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		if ha == hb {
			return 0, nil
		}
		return 1, nil
	}
	corr := cov / math.Sqrt(varA*varB)
	return math.Max(0, math.Min(1, 1-corr)), nil
}

func histogram(img *image.Gray) [256]float64 {
	var h [256]float64
	w, ht := img.Bounds().Dx(), img.Bounds().Dy()
	for y := 0; y < ht; y++ {
		for _, v := range img.Pix[y*img.Stride : y*img.Stride+w] {
			h[v]++
		}
	}
	return h
}

func sameSize(a, b *image.Gray) error {
	if a.Bounds().Size() != b.Bounds().Size() {
		return fmt.Errorf("frame size mismatch: %v vs %v", a.Bounds().Size(), b.Bounds().Size())
	}
	return nil
}
