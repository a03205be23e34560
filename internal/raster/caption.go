package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"sporelab/pkg/domain"
)

// Caption band geometry. The band height is 30% of the source height,
// clamped to 200..300 px.
const (
	captionMinHeight = 200
	captionMaxHeight = 300
	captionPadding   = 20
	captionLineStep  = 35
)

// CaptionInfo carries the metadata printed beneath a finished photo.
type CaptionInfo struct {
	ExperimentNumber int
	RepetitionNumber int
	TestNumber       int
	Day              domain.CheckDay
	Strain           string
	PhotoNumber      int // 1-based position among the captured photos
	Unit             string
	TestLot          string
	Annotations      []domain.Annotation
}

// CaptionBandHeight computes the band height for a source image height.
func CaptionBandHeight(srcHeight int) int {
	h := int(float64(srcHeight) * 0.3)
	if h < captionMinHeight {
		h = captionMinHeight
	}
	if h > captionMaxHeight {
		h = captionMaxHeight
	}
	return h
}

// AddCaptionBand appends a caption band beneath src and prints the test
// metadata into it. The source pixels are never covered: the output is
// taller than the input by the band height. The band background is the
// stretched bottom strip of the photo under a darkening gradient, so the
// caption reads like the familiar overlay while keeping the full frame.
func AddCaptionBand(src image.Image, info CaptionInfo) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	bandH := CaptionBandHeight(h)
	out := image.NewRGBA(image.Rect(0, 0, w, h+bandH))
	draw.Draw(out, image.Rect(0, 0, w, h), src, sb.Min, draw.Src)

	// Band background: the photo's bottom strip stretched into the band.
	stripH := bandH
	if stripH > h {
		stripH = h
	}
	strip := image.Rect(sb.Min.X, sb.Max.Y-stripH, sb.Max.X, sb.Max.Y)
	xdraw.ApproxBiLinear.Scale(out, image.Rect(0, h, w, h+bandH), src, strip, xdraw.Src, nil)
	shadeBand(out, h, bandH)

	white := color.White
	y := h + 40
	drawTextLeft(out, captionPadding, y, fmt.Sprintf("Exp #%d - Rep #%d - Test #%d", info.ExperimentNumber, info.RepetitionNumber, info.TestNumber), 28, white)
	y += captionLineStep
	drawTextLeft(out, captionPadding, y, fmt.Sprintf("Day: %d - Strain: %s - Photo %d", info.Day, info.Strain, info.PhotoNumber), 28, white)
	y += captionLineStep
	if info.Unit != "" || info.TestLot != "" {
		drawTextLeft(out, captionPadding, y, unitLotLine(info.Unit, info.TestLot), 28, white)
		y += captionLineStep
	}

	if len(info.Annotations) > 0 {
		y += 10
		drawTextLeft(out, captionPadding, y, "Annotations:", 28, white)
		y += captionLineStep
		for i, a := range info.Annotations {
			if a.Caption == "" {
				continue
			}
			hex := a.Color
			if hex == "" {
				hex = ColorForIndex(i)
			}
			col, err := ParseHexColor(hex)
			if err != nil {
				col, _ = ParseHexColor(ColorForIndex(i))
			}
			fillCircle(out, captionPadding+15, float64(y-10), 12, col)
			drawTextCentered(out, captionPadding+15, y-10, fmt.Sprintf("%d", i+1), 16, white)
			drawTextLeft(out, captionPadding+35, y-10, a.Caption, 24, white)
			y += 30
		}
	}
	return out
}

// unitLotLine renders the production unit display name and lot suffix.
func unitLotLine(unit, lot string) string {
	var line string
	if unit != "" {
		if unit == "americana" {
			line = "Americana"
		} else {
			line = "Salto"
		}
	}
	if lot != "" {
		if line != "" {
			line += " "
		}
		line += "- Lot: " + lot
	}
	return line
}

// shadeBand darkens the band with a vertical gradient: half-opaque black at
// the top fading to solid black at the bottom.
func shadeBand(img *image.RGBA, top, bandH int) {
	b := img.Bounds()
	for dy := 0; dy < bandH; dy++ {
		t := float64(dy) / float64(bandH)
		var alpha float64
		switch {
		case t < 0.7:
			alpha = 0.5 + (0.9-0.5)*(t/0.7)
		default:
			alpha = 0.9 + (1.0-0.9)*((t-0.7)/0.3)
		}
		y := top + dy
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			c.R = uint8(float64(c.R) * (1 - alpha))
			c.G = uint8(float64(c.G) * (1 - alpha))
			c.B = uint8(float64(c.B) * (1 - alpha))
			c.A = 255
			img.SetRGBA(x, y, c)
		}
	}
}
