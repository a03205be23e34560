// Package raster renders annotation markers, caption bands, and day mosaics
// onto captured photos using the standard image pipeline.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // registered for Decode
)

// jpegQuality applies to every encoded output.
const jpegQuality = 90

// Decode parses JPEG or PNG bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: decode image: %w", err)
	}
	return img, nil
}

// EncodeJPEG serializes img as JPEG at the standard quality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("raster: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// toRGBA always returns a fresh buffer so callers can draw on the result
// without touching the source image.
func toRGBA(img image.Image) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
