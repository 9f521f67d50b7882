package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
)

// HistogramName is the registry name of the intensity histogram model.
const HistogramName = "histogram"

func init() {
	_ = Register(HistogramName, func(dim int) (Extractor, error) { return NewHistogram(dim), nil })
}

// Histogram describes an image by the L1-normalised histogram of its
// luminance, using dim equal-width bins.
type Histogram struct {
	bins int
}

// NewHistogram returns a histogram extractor with bins buckets.
func NewHistogram(bins int) *Histogram {
	return &Histogram{bins: bins}
}

func (h *Histogram) Name() string   { return HistogramName }
func (h *Histogram) Dimension() int { return h.bins }

func (h *Histogram) Extract(ctx context.Context, data []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedInput, err)
	}

	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrUnsupportedInput, format)
	}

	counts := make([]int, h.bins)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channels.
			lum := (299*r + 587*g + 114*bl) / 1000
			bin := int(lum) * h.bins / 0x10000
			counts[bin]++
		}
	}

	out := make([]float32, h.bins)
	for i, c := range counts {
		out[i] = float32(c) / float32(total)
	}
	return out, nil
}
