package raster

import (
	"fmt"
	"image/color"
)

// FluorescentPalette holds the marker colors assigned to annotations by
// insertion order, cycling when a photo carries more than ten markers.
var FluorescentPalette = []string{
	"#FF0033", // red
	"#00FF33", // green
	"#3300FF", // blue
	"#FF33FF", // magenta
	"#FFFF00", // yellow
	"#00FFFF", // cyan
	"#FF6600", // orange
	"#CC00FF", // purple
	"#FF0099", // pink
	"#66FF00", // lime
}

// ColorForIndex returns the palette color for the i-th annotation.
func ColorForIndex(i int) string {
	if i < 0 {
		i = 0
	}
	return FluorescentPalette[i%len(FluorescentPalette)]
}

// ParseHexColor converts a #RRGGBB string to an opaque RGBA color.
func ParseHexColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("raster: invalid color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
