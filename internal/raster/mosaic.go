package raster

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

const mosaicColumns = 2

// DayMosaic composes the day's photos into a two-column grid. Every cell
// has the dimensions of the largest input; smaller photos are scaled up to
// fill their cell.
func DayMosaic(photos []image.Image) (*image.RGBA, error) {
	if len(photos) == 0 {
		return nil, fmt.Errorf("raster: mosaic needs at least one photo")
	}
	cellW, cellH := 0, 0
	for _, p := range photos {
		b := p.Bounds()
		if b.Dx() > cellW {
			cellW = b.Dx()
		}
		if b.Dy() > cellH {
			cellH = b.Dy()
		}
	}
	cols := mosaicColumns
	if len(photos) < cols {
		cols = len(photos)
	}
	rows := (len(photos) + mosaicColumns - 1) / mosaicColumns
	out := image.NewRGBA(image.Rect(0, 0, cols*cellW, rows*cellH))
	for i, p := range photos {
		col := i % mosaicColumns
		row := i / mosaicColumns
		cell := image.Rect(col*cellW, row*cellH, (col+1)*cellW, (row+1)*cellH)
		xdraw.ApproxBiLinear.Scale(out, cell, p, p.Bounds(), xdraw.Src, nil)
	}
	return out, nil
}
