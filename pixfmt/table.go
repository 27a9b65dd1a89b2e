/*
NAME
  table.go

DESCRIPTION
  table.go provides the static catalogue of pixel formats supported by the
  script filter, and the three lookup directions the negotiation engine and
  sample converter need: by media subtype, by script pixel type, and by
  symbolic name.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pixfmt provides the pixel format catalogue and media-type
// descriptor used to negotiate and convert between the packed/interleaved
// layouts a DirectShow-style upstream offers and the planar layout a
// scripted frame processor expects.
package pixfmt

import "fmt"

// ProcPixelType identifies one of the planar pixel layouts the scripted
// frame processor works in. Several media subtypes may share a ProcPixelType
// (e.g. NV12, I420 and IYUV all decode to YUV420P8).
type ProcPixelType int

const (
	YUV420P8 ProcPixelType = iota
	YUV420P16
	CompatYUY2
	YUV422P16
	YUV444P8
	BGR24
	BGR32
)

func (p ProcPixelType) String() string {
	switch p {
	case YUV420P8:
		return "YUV420P8"
	case YUV420P16:
		return "YUV420P16"
	case CompatYUY2:
		return "CompatYUY2"
	case YUV422P16:
		return "YUV422P16"
	case YUV444P8:
		return "YUV444P8"
	case BGR24:
		return "BGR24"
	case BGR32:
		return "BGR32"
	default:
		return fmt.Sprintf("ProcPixelType(%d)", int(p))
	}
}

// PixelFormat records one entry of the static catalogue: a symbolic name, a
// media subtype identifier (the GUID tag, e.g. "NV12"), the script's pixel
// type, bit depth, chroma subsampling ratios (0 when not applicable, i.e.
// packed formats with no separate chroma planes), whether the U/V planes
// are interleaved in the packed buffer, and a UI resource id kept for parity
// with the settings/property-page use the original had (unused by the core,
// but part of the table's shape per §4.1).
type PixelFormat struct {
	Name string

	// Subtype is the media subtype tag, unique across the table.
	Subtype string

	ProcType ProcPixelType

	BitsPerPixel int

	// SubsampleWidthRatio and SubsampleHeightRatio are the ratio between the
	// main plane and the chroma planes. 0 for packed formats with no
	// separate chroma plane (YUY2, RGB24, RGB32).
	SubsampleWidthRatio  int
	SubsampleHeightRatio int

	// UVPlanesInterleaved is true when U and V samples are packed together
	// in a single plane (NV12, P010, P016, P210, P216).
	UVPlanesInterleaved bool

	// VFirst is true when the packed buffer holds the V plane before the U
	// plane (YV12, YV24). Only meaningful when planes are separate.
	VFirst bool

	ResourceID int
}

// HasChroma reports whether the format carries separate chroma samples at
// all (false for YUY2, which is fully packed, and for RGB24/RGB32, which
// have no chroma planes).
func (p PixelFormat) HasChroma() bool {
	return p.SubsampleWidthRatio != 0 || p.SubsampleHeightRatio != 0
}

// BytesPerComponent returns the storage width of one luma/chroma sample:
// 1 for 8-bit formats, 2 for the 16-bit P010/P016/P210/P216 formats.
func (p PixelFormat) BytesPerComponent() int {
	switch p.ProcType {
	case YUV420P16, YUV422P16:
		return 2
	default:
		return 1
	}
}

// Table is the static, immutable pixel format catalogue, per spec §6.1.
var Table = []PixelFormat{
	{
		Name: "NV12", Subtype: "NV12", ProcType: YUV420P8,
		BitsPerPixel: 12, SubsampleWidthRatio: 2, SubsampleHeightRatio: 2,
		UVPlanesInterleaved: true, ResourceID: 0,
	},
	{
		Name: "YV12", Subtype: "YV12", ProcType: YUV420P8,
		BitsPerPixel: 12, SubsampleWidthRatio: 2, SubsampleHeightRatio: 2,
		UVPlanesInterleaved: false, VFirst: true, ResourceID: 1,
	},
	{
		Name: "I420", Subtype: "I420", ProcType: YUV420P8,
		BitsPerPixel: 12, SubsampleWidthRatio: 2, SubsampleHeightRatio: 2,
		UVPlanesInterleaved: false, ResourceID: 2,
	},
	{
		Name: "IYUV", Subtype: "IYUV", ProcType: YUV420P8,
		BitsPerPixel: 12, SubsampleWidthRatio: 2, SubsampleHeightRatio: 2,
		UVPlanesInterleaved: false, ResourceID: 3,
	},
	{
		// P010 shares storage layout with P016; the low 6 bits of each
		// 16-bit sample are simply zero. The converter treats it
		// identically to P016.
		Name: "P010", Subtype: "P010", ProcType: YUV420P16,
		BitsPerPixel: 24, SubsampleWidthRatio: 2, SubsampleHeightRatio: 2,
		UVPlanesInterleaved: true, ResourceID: 4,
	},
	{
		Name: "P016", Subtype: "P016", ProcType: YUV420P16,
		BitsPerPixel: 24, SubsampleWidthRatio: 2, SubsampleHeightRatio: 2,
		UVPlanesInterleaved: true, ResourceID: 5,
	},
	{
		Name: "YUY2", Subtype: "YUY2", ProcType: CompatYUY2,
		BitsPerPixel: 16, ResourceID: 6,
	},
	{
		Name: "P210", Subtype: "P210", ProcType: YUV422P16,
		BitsPerPixel: 32, SubsampleWidthRatio: 2, SubsampleHeightRatio: 1,
		UVPlanesInterleaved: true, ResourceID: 7,
	},
	{
		Name: "P216", Subtype: "P216", ProcType: YUV422P16,
		BitsPerPixel: 32, SubsampleWidthRatio: 2, SubsampleHeightRatio: 1,
		UVPlanesInterleaved: true, ResourceID: 8,
	},
	{
		Name: "YV24", Subtype: "YV24", ProcType: YUV444P8,
		BitsPerPixel: 24, SubsampleWidthRatio: 1, SubsampleHeightRatio: 1,
		UVPlanesInterleaved: false, VFirst: true, ResourceID: 9,
	},
	{
		Name: "RGB24", Subtype: "RGB24", ProcType: BGR24,
		BitsPerPixel: 24, ResourceID: 10,
	},
	{
		Name: "RGB32", Subtype: "RGB32", ProcType: BGR32,
		BitsPerPixel: 32, ResourceID: 11,
	},
}

func init() {
	seen := make(map[string]bool, len(Table))
	for _, f := range Table {
		if seen[f.Subtype] {
			panic("pixfmt: duplicate subtype in table: " + f.Subtype)
		}
		seen[f.Subtype] = true
	}
}

// BySubtype looks up a PixelFormat by its media subtype tag. Lookup is
// total: every subtype in Table is reachable, and unknown tags report ok
// == false.
func BySubtype(subtype string) (PixelFormat, bool) {
	for _, f := range Table {
		if f.Subtype == subtype {
			return f, true
		}
	}
	return PixelFormat{}, false
}

// ByProcType returns every PixelFormat sharing the given script pixel type,
// in table order. Several source subtypes may map to the same proc type
// (e.g. NV12, I420 and IYUV all decode to YUV420P8).
func ByProcType(t ProcPixelType) []PixelFormat {
	var out []PixelFormat
	for _, f := range Table {
		if f.ProcType == t {
			out = append(out, f)
		}
	}
	return out
}

// ByName looks up a PixelFormat by its symbolic name, for settings/UI use.
func ByName(name string) (PixelFormat, bool) {
	for _, f := range Table {
		if f.Name == name {
			return f, true
		}
	}
	return PixelFormat{}, false
}
