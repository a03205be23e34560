package raster

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"sporelab/pkg/domain"
)

// Marker diameters in display pixels per size class.
const (
	markerSmallPx  = 40
	markerMediumPx = 80
	markerLargePx  = 120
)

// markerLineWidth is the stroke width of the marker ring. It is not scaled:
// the original editor strokes a constant 6px line at full resolution.
const markerLineWidth = 6

// MarkerDiameter returns the display diameter for a size class.
func MarkerDiameter(size domain.MarkerSize) float64 {
	switch size {
	case domain.MarkerSmall:
		return markerSmallPx
	case domain.MarkerLarge:
		return markerLargePx
	default:
		return markerMediumPx
	}
}

// BakeAnnotations draws the numbered markers onto a copy of src and returns
// it. Annotation coordinates are in display space; scale is original width
// divided by displayed width and is applied uniformly to positions and
// diameters so a marker lands on the same feature at full resolution.
func BakeAnnotations(src image.Image, annotations []domain.Annotation, scale float64) *image.RGBA {
	out := toRGBA(src)
	if scale <= 0 {
		scale = 1
	}
	for i, a := range annotations {
		hex := a.Color
		if hex == "" {
			hex = ColorForIndex(i)
		}
		col, err := ParseHexColor(hex)
		if err != nil {
			col, _ = ParseHexColor(ColorForIndex(i))
		}
		cx := a.X * scale
		cy := a.Y * scale
		radius := MarkerDiameter(a.Size) * scale / 2

		strokeCircle(out, cx, cy, radius, markerLineWidth, col)

		numberSize := radius / 2
		if numberSize < 16 {
			numberSize = 16
		}
		badgeX := cx - radius*0.7
		badgeY := cy - radius*0.7
		fillCircle(out, badgeX, badgeY, numberSize/1.5, col)
		drawTextCentered(out, int(badgeX), int(badgeY), strconv.Itoa(i+1), int(numberSize), color.White)
	}
	return out
}

func strokeCircle(img *image.RGBA, cx, cy, r, width float64, col color.RGBA) {
	half := width / 2
	outer := r + half
	x0, x1 := int(cx-outer)-1, int(cx+outer)+1
	y0, y1 := int(cy-outer)-1, int(cy+outer)+1
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			d := dx*dx + dy*dy
			inner := r - half
			if inner < 0 {
				inner = 0
			}
			if d >= inner*inner && d <= outer*outer {
				setIfInside(img, x, y, col)
			}
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, r float64, col color.RGBA) {
	x0, x1 := int(cx-r)-1, int(cx+r)+1
	y0, y1 := int(cy-r)-1, int(cy+r)+1
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if dx*dx+dy*dy <= r*r {
				setIfInside(img, x, y, col)
			}
		}
	}
}

func setIfInside(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

// renderText rasterizes text with the builtin bitmap face and scales it to
// the requested pixel height with nearest-neighbor so digits stay crisp.
func renderText(text string, heightPx int, col color.Color) *image.RGBA {
	face := basicfont.Face7x13
	w := len(text) * face.Advance
	h := face.Height
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	factor := heightPx / h
	if factor < 1 {
		factor = 1
	}
	if factor == 1 {
		return small
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w*factor, h*factor))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), small, small.Bounds(), xdraw.Over, nil)
	return scaled
}

func drawTextCentered(dst *image.RGBA, cx, cy int, text string, heightPx int, col color.Color) {
	glyphs := renderText(text, heightPx, col)
	b := glyphs.Bounds()
	offset := image.Pt(cx-b.Dx()/2, cy-b.Dy()/2)
	draw.Draw(dst, b.Add(offset), glyphs, b.Min, draw.Over)
}

func drawTextLeft(dst *image.RGBA, x, baselineCenterY int, text string, heightPx int, col color.Color) {
	glyphs := renderText(text, heightPx, col)
	b := glyphs.Bounds()
	offset := image.Pt(x, baselineCenterY-b.Dy()/2)
	draw.Draw(dst, b.Add(offset), glyphs, b.Min, draw.Over)
}
