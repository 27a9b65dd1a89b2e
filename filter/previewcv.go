//go:build withcv
// +build withcv

/*
NAME
  previewcv.go

DESCRIPTION
  previewcv.go displays the converted planar frame in a debug window, the
  withcv-tagged half of the same build-tag split filters_circleci.go
  used for the teacher's motion filters (spec §2's "Filter shell", debug
  preview).

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package filter

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Preview is a debug window showing the planar frame produced by
// convert.CopyFromInput, for visually confirming pixel-format
// conversion during development.
type Preview struct {
	window *gocv.Window
}

// NewPreview opens a debug window titled name.
func NewPreview(name string) *Preview {
	return &Preview{window: gocv.NewWindow(name + ": Converted Frame")}
}

// Show displays the main plane as an 8-bit grayscale image, copying the
// first width bytes of each row, with the format name overlaid. Samples
// wider than one byte (16-bit or packed RGB planes) are not decoded.
func (p *Preview) Show(mainPlane []byte, width, height, stride int, formatName string) {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := mainPlane[y*stride : y*stride+width]
		copy(img.Pix[y*img.Stride:y*img.Stride+width], row)
	}
	mat, err := gocv.ImageToMatGray(img)
	if err != nil {
		return
	}
	defer mat.Close()
	gocv.PutText(&mat, fmt.Sprintf("fmt=%s", formatName), image.Pt(16, 24),
		gocv.FontHersheyPlain, 1.5, color.RGBA{0, 255, 0, 0}, 2)
	p.window.IMShow(mat)
	p.window.WaitKey(1)
}

// Close releases the debug window.
func (p *Preview) Close() error {
	return p.window.Close()
}
