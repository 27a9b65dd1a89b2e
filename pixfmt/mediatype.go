/*
NAME
  mediatype.go

DESCRIPTION
  mediatype.go provides the native Go stand-in for the DirectShow
  AM_MEDIA_TYPE / VIDEOINFOHEADER / VIDEOINFOHEADER2 structures this filter
  negotiates over. The COM/DirectShow scaffolding itself is out of scope
  (spec §1); this is just the data the negotiation engine and sample
  converter need from it.

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

// Rect is a simple rectangle, standing in for DirectShow's RECT as used by
// rcSource/rcTarget.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// BitmapInfoHeader is the native Go stand-in for BITMAPINFOHEADER.
// Compression is "RGB" for RGB formats and otherwise the packed FourCC of the
// subtype (e.g. "YUY2"). A negative Height means the RGB buffer is stored
// top-down; positive (the default) means bottom-up.
type BitmapInfoHeader struct {
	Width       int32
	Height      int32
	BitCount    uint16
	Compression string
	SizeImage   uint32
}

// ControlFlagColorInfoPresent mirrors AMCONTROL_COLORINFO_PRESENT: when set
// in VideoInfoHeader.ControlFlags, the flags word is reinterpreted as a
// packed DXVA extended-format bitfield rather than simple playback control
// bits, and Colorimetry can be derived from it.
const ControlFlagColorInfoPresent = 1 << 31

// Colorimetry holds the DXVA extended-format colour description bits.
type Colorimetry struct {
	NominalRange     uint32
	TransferMatrix   uint32
	Primaries        uint32
	TransferFunction uint32
}

// colorimetryFromControlFlags decomposes the packed DXVA extended-format
// bitfield. Layout (low to high bit): 3 bits sample format, 4 bits chroma
// siting, 3 bits nominal range, 4 bits transfer matrix, 5 bits lighting, 5
// bits primaries, 5 bits transfer function, ... , bit 31 colorinfo-present.
// This is a self-consistent stand-in for the DXVA_ExtendedFormat layout;
// the core only needs to round-trip it, not match Microsoft's headers
// bit-for-bit, since the COM type itself is out of scope.
func colorimetryFromControlFlags(flags uint32) Colorimetry {
	return Colorimetry{
		NominalRange:     (flags >> 7) & 0x7,
		TransferMatrix:   (flags >> 10) & 0xf,
		Primaries:        (flags >> 19) & 0x1f,
		TransferFunction: (flags >> 24) & 0x1f,
	}
}

// VideoInfoHeader is the native Go stand-in for VIDEOINFOHEADER (IsV2 ==
// false) and VIDEOINFOHEADER2 (IsV2 == true). AvgTimePerFrame is in 100 ns
// units; 0 means unset. PictAspectRatioX/Y and ControlFlags are only
// meaningful when IsV2.
type VideoInfoHeader struct {
	RcSource, RcTarget Rect
	AvgTimePerFrame    int64

	Bmi BitmapInfoHeader

	IsV2                                bool
	PictAspectRatioX, PictAspectRatioY  uint32
	ControlFlags                        uint32
}

// MediaType is the native Go stand-in for AM_MEDIA_TYPE restricted to the
// video fields this filter cares about.
type MediaType struct {
	// Subtype is the media subtype tag, e.g. "NV12". It must have a
	// corresponding pixfmt.PixelFormat entry to be usable by the core.
	Subtype string

	VideoInfo VideoInfoHeader
}

// gcd returns the greatest common divisor of two non-negative integers.
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// BitmapSize computes the expected buffer size in bytes for a PixelFormat
// at the given dimensions: width*height*bitsPerPixel/8, rounded up. Used
// both to populate BitmapInfoHeader.SizeImage and as a cross-check in
// tests (spec §8 property 7).
func BitmapSize(f PixelFormat, width, height int) uint32 {
	bits := width * height * f.BitsPerPixel
	return uint32((bits + 7) / 8)
}
