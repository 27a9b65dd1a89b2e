/*
NAME
  convert.go

DESCRIPTION
  convert.go provides SampleConverter: the bit-exact pack/unpack between a
  DirectShow-style media-sample buffer and the planar frame layout the
  scripted frame processor expects, per spec §4.2.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package convert provides bit-exact conversion between the packed/
// interleaved media-sample buffer layouts of pixfmt.Table and the planar
// frame layout a scripted frame processor works in.
package convert

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vsfilter/pixfmt"
)

// InputPadding returns the trailing padding, in bytes, that an input
// media-sample buffer must carry beyond its nominal size so that SIMD-
// width deinterleave writes landing past the last row are safe to issue.
// Per spec §6.2: vectorSize-2, 0 when no vector tier is available.
func InputPadding() int {
	v := VectorSize()
	if v == 0 {
		return 0
	}
	return v - 2
}

// OutputPadding returns the equivalent padding for output buffers. Per
// spec §6.2 the scalar fallback keeps the SSSE3-sized padding (2*16-2)
// rather than dropping to zero, since interleave writes two source planes
// per destination row and the original implementation never special-cased
// the no-SIMD case for the write side.
func OutputPadding() int {
	v := VectorSize()
	if v == 0 {
		return 2*16 - 2
	}
	return 2*v - 2
}

// planeLayout describes, for a given pixfmt.PixelFormat and frame size,
// the byte geometry CopyFromInput/CopyToOutput need: main (luma/packed)
// plane stride and size, and chroma plane stride/size when present.
type planeLayout struct {
	width, height int
	bpc           int // bytes per luma/chroma component
	bytesPerMain  int // bytes per main-plane sample (bpc for planar formats, full packed sample size otherwise)

	mainStride int
	mainSize   int

	hasChroma    bool
	chromaW      int
	chromaH      int
	chromaStride int // stride of one standalone U or V plane row
	chromaSize   int // size of one standalone U or V plane
}

func layoutFor(f pixfmt.PixelFormat, width, height int) (planeLayout, error) {
	if width <= 0 || height <= 0 {
		return planeLayout{}, errors.Errorf("convert: invalid dimensions %dx%d", width, height)
	}

	bpc := f.BytesPerComponent()
	l := planeLayout{width: width, height: height, bpc: bpc}

	if f.HasChroma() {
		l.bytesPerMain = bpc
		if width%f.SubsampleWidthRatio != 0 || height%f.SubsampleHeightRatio != 0 {
			return planeLayout{}, errors.Errorf("convert: dimensions %dx%d not a multiple of subsample ratio %d/%d", width, height, f.SubsampleWidthRatio, f.SubsampleHeightRatio)
		}
		l.chromaW = width / f.SubsampleWidthRatio
		l.chromaH = height / f.SubsampleHeightRatio
		l.chromaStride = l.chromaW * bpc
		l.chromaSize = l.chromaStride * l.chromaH
		l.hasChroma = true
	} else {
		l.bytesPerMain = f.BitsPerPixel / 8
	}

	l.mainStride = width * l.bytesPerMain
	l.mainSize = l.mainStride * height

	return l, nil
}

// isRGB reports whether a PixelFormat is one of the packed RGB layouts
// subject to the top-down/bottom-up orientation convention (spec §4.2
// step 1, §3 invariant, §8 boundary behaviour 11).
func isRGB(f pixfmt.PixelFormat) bool {
	return f.ProcType == pixfmt.BGR24 || f.ProcType == pixfmt.BGR32
}

// copyMainPlane copies rowSize bytes of height rows between src and dst,
// optionally inverting row order (used for the RGB top-down/bottom-up
// convention). dstStride/srcStride may exceed rowSize; trailing bytes
// within a row beyond rowSize are left untouched (they are allocator
// padding, not plane content).
func copyMainPlane(dst []byte, dstStride int, src []byte, srcStride int, rowSize, height int, invert bool) {
	for y := 0; y < height; y++ {
		sy := y
		if invert {
			sy = height - 1 - y
		}
		d := dst[y*dstStride : y*dstStride+rowSize]
		s := src[sy*srcStride : sy*srcStride+rowSize]
		copy(d, s)
	}
}

// CopyFromInput unpacks a media-sample buffer (src, laid out per vf) into
// the planar slices the scripted frame processor expects. The plane order
// for chroma formats is always [main, U, V], regardless of whether the
// source packs V before U (YV12/YV24): the swap happens here so script
// frames always see canonical U-then-V ordering. Packed formats with no
// separate chroma (YUY2, RGB24, RGB32) expect a single-element dst slice.
//
// dstStrides gives each destination plane's row stride in bytes; pass nil
// to use tightly-packed strides (stride == row size).
func CopyFromInput(vf pixfmt.VideoFormat, src []byte, dst [][]byte, dstStrides []int) error {
	f := vf.Format
	l, err := layoutFor(f, vf.Width, vf.Height)
	if err != nil {
		return err
	}

	wantPlanes := 1
	if l.hasChroma {
		wantPlanes = 3
	}
	if len(dst) != wantPlanes {
		return errors.Errorf("convert: CopyFromInput: got %d destination planes, want %d", len(dst), wantPlanes)
	}
	dstStrides = resolveStrides(dstStrides, l, wantPlanes)

	if len(src) < l.mainSize {
		return errors.Errorf("convert: CopyFromInput: src too small: have %d bytes, need at least %d", len(src), l.mainSize)
	}

	invert := isRGB(f) && vf.Bmi.Height < 0
	copyMainPlane(dst[0], dstStrides[0], src, l.mainStride, l.mainStride, l.height, invert)

	if !l.hasChroma {
		return nil
	}

	chromaSrc := src[l.mainSize:]
	if f.UVPlanesInterleaved {
		needed := l.chromaStride * 2 * l.chromaH
		if len(chromaSrc) < needed {
			return errors.Errorf("convert: CopyFromInput: interleaved chroma src too small: have %d, need %d", len(chromaSrc), needed)
		}
		deinterleave(chromaSrc, l.chromaStride*2, dst[1], dstStrides[1], dst[2], dstStrides[2], l.chromaStride, l.chromaH, l.bpc)
		return nil
	}

	// Separate U/V planes in the source buffer; YV12/YV24 store V first.
	first, second := dst[1], dst[2]
	firstStride, secondStride := dstStrides[1], dstStrides[2]
	if f.VFirst {
		first, second = dst[2], dst[1]
		firstStride, secondStride = dstStrides[2], dstStrides[1]
	}
	if len(chromaSrc) < 2*l.chromaSize {
		return errors.Errorf("convert: CopyFromInput: planar chroma src too small: have %d, need %d", len(chromaSrc), 2*l.chromaSize)
	}
	copyMainPlane(first, firstStride, chromaSrc, l.chromaStride, l.chromaStride, l.chromaH, false)
	copyMainPlane(second, secondStride, chromaSrc[l.chromaSize:], l.chromaStride, l.chromaStride, l.chromaH, false)
	return nil
}

// CopyToOutput packs planar slices (produced by the scripted frame
// processor, always in [main, U, V] order for chroma formats) into a
// media-sample buffer laid out per vf. It is the mirror of
// CopyFromInput; see its documentation for plane ordering and stride
// conventions.
func CopyToOutput(vf pixfmt.VideoFormat, src [][]byte, srcStrides []int, dst []byte) error {
	f := vf.Format
	l, err := layoutFor(f, vf.Width, vf.Height)
	if err != nil {
		return err
	}

	wantPlanes := 1
	if l.hasChroma {
		wantPlanes = 3
	}
	if len(src) != wantPlanes {
		return errors.Errorf("convert: CopyToOutput: got %d source planes, want %d", len(src), wantPlanes)
	}
	srcStrides = resolveStrides(srcStrides, l, wantPlanes)

	if len(dst) < l.mainSize {
		return errors.Errorf("convert: CopyToOutput: dst too small: have %d bytes, need at least %d", len(dst), l.mainSize)
	}

	invert := isRGB(f) && vf.Bmi.Height < 0
	copyMainPlane(dst, l.mainStride, src[0], srcStrides[0], l.mainStride, l.height, invert)

	if !l.hasChroma {
		return nil
	}

	chromaDst := dst[l.mainSize:]
	if f.UVPlanesInterleaved {
		needed := l.chromaStride * 2 * l.chromaH
		if len(chromaDst) < needed {
			return errors.Errorf("convert: CopyToOutput: interleaved chroma dst too small: have %d, need %d", len(chromaDst), needed)
		}
		interleave(src[1], srcStrides[1], src[2], srcStrides[2], l.chromaStride, chromaDst, l.chromaStride*2, l.chromaH, l.bpc)
		return nil
	}

	first, second := src[1], src[2]
	firstStride, secondStride := srcStrides[1], srcStrides[2]
	if f.VFirst {
		first, second = src[2], src[1]
		firstStride, secondStride = srcStrides[2], srcStrides[1]
	}
	if len(chromaDst) < 2*l.chromaSize {
		return errors.Errorf("convert: CopyToOutput: planar chroma dst too small: have %d, need %d", len(chromaDst), 2*l.chromaSize)
	}
	copyMainPlane(chromaDst, l.chromaStride, first, firstStride, l.chromaStride, l.chromaH, false)
	copyMainPlane(chromaDst[l.chromaSize:], l.chromaStride, second, secondStride, l.chromaStride, l.chromaH, false)
	return nil
}

// resolveStrides fills in tightly-packed default strides for any missing
// entries: stride == row size for the main plane and for chroma planes.
func resolveStrides(given []int, l planeLayout, n int) []int {
	out := make([]int, n)
	if len(given) == n {
		copy(out, given)
		return out
	}
	out[0] = l.mainStride
	for i := 1; i < n; i++ {
		out[i] = l.chromaStride
	}
	return out
}
