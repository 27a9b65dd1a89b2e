/*
NAME
  convert_test.go

DESCRIPTION
  convert_test.go tests SampleConverter's bit-exact round-trip property and
  the format-specific edge cases called out in spec §8.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package convert

import (
	"bytes"
	"testing"

	"github.com/ausocean/vsfilter/pixfmt"
)

func vfFor(t *testing.T, subtype string, w, h int) pixfmt.VideoFormat {
	t.Helper()
	pf, ok := pixfmt.BySubtype(subtype)
	if !ok {
		t.Fatalf("unknown subtype %q", subtype)
	}
	return pixfmt.VideoFormat{
		Format: pf,
		Width:  w,
		Height: h,
		Bmi:    pixfmt.BitmapInfoHeader{Width: int32(w), Height: int32(h)},
	}
}

// gradientBuffer builds a deterministic, non-uniform byte buffer of the
// given size so that round-trip bugs (transposed planes, wrong stride)
// are very likely to be caught.
func gradientBuffer(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7 % 256)
	}
	return b
}

func mkPlanes(sizes []int) [][]byte {
	out := make([][]byte, len(sizes))
	for i, s := range sizes {
		out[i] = make([]byte, s)
	}
	return out
}

// TestRoundTrip checks spec §8 property 6: CopyToOutput(CopyFromInput(x))
// == x on the visible rectangle, for every supported format.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		subtype string
		w, h    int
	}{
		{"NV12", 16, 8},
		{"YV12", 16, 8},
		{"I420", 16, 8},
		{"IYUV", 16, 8},
		{"P010", 16, 8},
		{"P016", 16, 8},
		{"YUY2", 16, 8},
		{"P210", 16, 8},
		{"P216", 16, 8},
		{"YV24", 16, 8},
		{"RGB24", 16, 8},
		{"RGB32", 16, 8},
	}

	for _, c := range cases {
		t.Run(c.subtype, func(t *testing.T) {
			vf := vfFor(t, c.subtype, c.w, c.h)
			f := vf.Format
			l, err := layoutFor(f, c.w, c.h)
			if err != nil {
				t.Fatal(err)
			}

			srcSize := l.mainSize
			if l.hasChroma {
				srcSize += 2 * l.chromaSize
			}
			src := gradientBuffer(srcSize)

			var dstPlanes [][]byte
			if l.hasChroma {
				dstPlanes = mkPlanes([]int{l.mainSize, l.chromaSize, l.chromaSize})
			} else {
				dstPlanes = mkPlanes([]int{l.mainSize})
			}

			if err := CopyFromInput(vf, src, dstPlanes, nil); err != nil {
				t.Fatalf("CopyFromInput: %v", err)
			}

			out := make([]byte, srcSize)
			if err := CopyToOutput(vf, dstPlanes, nil, out); err != nil {
				t.Fatalf("CopyToOutput: %v", err)
			}

			if !bytes.Equal(src, out) {
				t.Fatalf("round trip not byte-exact for %s", c.subtype)
			}
		})
	}
}

// TestYV12VFirst checks spec §8 scenario S4: YV12's V-first packed
// ordering is unswapped correctly, landing U and V in their canonical
// (U-then-V) planar slots.
func TestYV12VFirst(t *testing.T) {
	const w, h = 16, 8
	vf := vfFor(t, "YV12", w, h)
	l, err := layoutFor(vf.Format, w, h)
	if err != nil {
		t.Fatal(err)
	}

	src := make([]byte, l.mainSize+2*l.chromaSize)
	// V plane (first in the packed buffer) is all 0xE0, U plane (second)
	// is all 0x10.
	for i := l.mainSize; i < l.mainSize+l.chromaSize; i++ {
		src[i] = 0xE0
	}
	for i := l.mainSize + l.chromaSize; i < len(src); i++ {
		src[i] = 0x10
	}

	dst := mkPlanes([]int{l.mainSize, l.chromaSize, l.chromaSize})
	if err := CopyFromInput(vf, src, dst, nil); err != nil {
		t.Fatalf("CopyFromInput: %v", err)
	}

	for _, b := range dst[1] {
		if b != 0x10 {
			t.Fatalf("U plane byte = 0x%02x, want 0x10", b)
		}
	}
	for _, b := range dst[2] {
		if b != 0xE0 {
			t.Fatalf("V plane byte = 0x%02x, want 0xE0", b)
		}
	}
}

// TestRGBOrientation checks spec §8 boundary behaviour 11: a negative
// biHeight (top-down) source, when copied, produces the same planar
// bytes as the same image stored bottom-up (positive biHeight) and
// copied directly — i.e. CopyFromInput always yields a bottom-up-
// convention destination plane.
func TestRGBOrientation(t *testing.T) {
	const w, h = 4, 4
	bpp := 3 // RGB24

	// Build a bottom-up buffer where row y has all bytes == byte(y).
	bottomUp := make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		for i := 0; i < w*bpp; i++ {
			bottomUp[y*w*bpp+i] = byte(y)
		}
	}

	// The same image stored top-down is just the row order reversed.
	topDown := make([]byte, len(bottomUp))
	for y := 0; y < h; y++ {
		copy(topDown[y*w*bpp:(y+1)*w*bpp], bottomUp[(h-1-y)*w*bpp:(h-y)*w*bpp])
	}

	vfBottomUp := vfFor(t, "RGB24", w, h)
	vfBottomUp.Bmi.Height = int32(h) // positive: bottom-up, no inversion

	vfTopDown := vfFor(t, "RGB24", w, h)
	vfTopDown.Bmi.Height = -int32(h) // negative: top-down, inverted on copy

	dst1 := mkPlanes([]int{w * h * bpp})
	if err := CopyFromInput(vfBottomUp, bottomUp, dst1, nil); err != nil {
		t.Fatalf("CopyFromInput (bottom-up): %v", err)
	}

	dst2 := mkPlanes([]int{w * h * bpp})
	if err := CopyFromInput(vfTopDown, topDown, dst2, nil); err != nil {
		t.Fatalf("CopyFromInput (top-down): %v", err)
	}

	if !bytes.Equal(dst1[0], dst2[0]) {
		t.Fatal("top-down and bottom-up sources did not converge to the same planar bytes")
	}
}

// TestNV12Identity checks spec §8 scenario S1's conversion half: a
// gradient NV12 frame converts and converts back byte-exact.
func TestNV12Identity(t *testing.T) {
	const w, h = 1920, 1080
	vf := vfFor(t, "NV12", w, h)
	l, err := layoutFor(vf.Format, w, h)
	if err != nil {
		t.Fatal(err)
	}

	src := make([]byte, l.mainSize+2*l.chromaSize)
	for y := 0; y < h; y++ {
		row := byte(y % 256)
		for x := 0; x < w; x++ {
			src[y*w+x] = row
		}
	}
	for i := l.mainSize; i < l.mainSize+l.chromaSize; i += 2 {
		src[i] = 128 // U
		src[i+1] = 64 // V
	}

	dst := mkPlanes([]int{l.mainSize, l.chromaSize, l.chromaSize})
	if err := CopyFromInput(vf, src, dst, nil); err != nil {
		t.Fatalf("CopyFromInput: %v", err)
	}

	out := make([]byte, len(src))
	if err := CopyToOutput(vf, dst, nil, out); err != nil {
		t.Fatalf("CopyToOutput: %v", err)
	}
	if !bytes.Equal(src, out) {
		t.Fatal("NV12 identity round trip not byte-exact")
	}
}
