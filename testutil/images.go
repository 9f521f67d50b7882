package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// PNG encodes a w×h grayscale image whose pixel values come from fill.
func PNG(w, h int, fill func(x, y int) uint8) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// GrayPNG encodes a uniformly gray w×h image.
func GrayPNG(w, h int, level uint8) []byte {
	return PNG(w, h, func(int, int) uint8 { return level })
}

// GradientPNG encodes a horizontal gradient from black to white.
func GradientPNG(w, h int) []byte {
	return PNG(w, h, func(x, _ int) uint8 {
		if w <= 1 {
			return 0
		}
		return uint8(x * 255 / (w - 1))
	})
}
