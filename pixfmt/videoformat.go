/*
NAME
  videoformat.go

DESCRIPTION
  videoformat.go provides VideoFormat, the derived descriptor of a media
  type that the rest of the filter works with: pixel format, dimensions,
  frame duration, pixel aspect ratio, colorimetry and HDR fields.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pixfmt

import "github.com/pkg/errors"

// DefaultFrameDuration is used when a media type's AvgTimePerFrame is
// unset, corresponding to 25 fps (spec §8 boundary behaviour 10).
const DefaultFrameDuration = 400000

// VideoFormat is the derived descriptor of a media type: the matched
// PixelFormat, absolute dimensions, frame duration in 100 ns units, pixel
// aspect ratio reduced to lowest terms, optional colorimetry, HDR
// signalling (populated separately from inbound side data, not from the
// media type itself) and a copy of the bitmap header.
type VideoFormat struct {
	Format PixelFormat

	Width  int
	Height int

	// FrameDuration is in 100 ns units.
	FrameDuration int64

	ParNum, ParDen int

	// Colorimetry is nil when the media type carries no colour info.
	Colorimetry *Colorimetry

	// HDRType is 0 (none) or 1 (present). HDRLuminance is in cd/m^2.
	// Neither is derived from the media type; the frame handler sets them
	// from inbound HDR side data (spec §4.5.1 step 8).
	HDRType      int
	HDRLuminance int

	Bmi BitmapInfoHeader
}

// GetVideoFormat decodes a MediaType into a VideoFormat: it looks up the
// PixelFormat by subtype, reads width/height from the bitmap header and
// the frame duration from AvgTimePerFrame, reduces the pixel aspect ratio to lowest terms, and
// derives colorimetry from the V2 DXVA extended-format bits when present.
func GetVideoFormat(mt MediaType) (VideoFormat, error) {
	pf, ok := BySubtype(mt.Subtype)
	if !ok {
		return VideoFormat{}, errors.Wrapf(ErrUnknownSubtype, "subtype %q", mt.Subtype)
	}

	vi := mt.VideoInfo
	width := int(vi.Bmi.Width)
	height := int(vi.Bmi.Height)
	if height < 0 {
		height = -height
	}

	dur := vi.AvgTimePerFrame
	if dur == 0 {
		dur = DefaultFrameDuration
	}

	parNum, parDen := 1, 1
	if vi.IsV2 && vi.PictAspectRatioX != 0 && vi.PictAspectRatioY != 0 && width != 0 && height != 0 {
		num := int(vi.PictAspectRatioX) * height
		den := int(vi.PictAspectRatioY) * width
		g := gcd(num, den)
		parNum, parDen = num/g, den/g
	}

	vf := VideoFormat{
		Format:        pf,
		Width:         width,
		Height:        height,
		FrameDuration: dur,
		ParNum:        parNum,
		ParDen:        parDen,
		Bmi:           vi.Bmi,
	}

	if vi.IsV2 && vi.ControlFlags&ControlFlagColorInfoPresent != 0 {
		c := colorimetryFromControlFlags(vi.ControlFlags)
		vf.Colorimetry = &c
	}

	return vf, nil
}
