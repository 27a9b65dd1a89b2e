/*
NAME
  chroma.go

DESCRIPTION
  chroma.go provides the interleaved-UV deinterleave/interleave core used
  by CopyFromInput/CopyToOutput for NV12, P010/P016 and P210/P216, per
  spec §4.2. The per-tier loops are selected by the CPU feature gate in
  simd.go; see that file's doc comment for why these are word-at-a-time Go
  loops rather than hand-written AVX2/SSSE3 assembly.

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

// deinterleave splits one packed UV row (chromaW component-pairs of bpc
// bytes each, U before V) into separate U (dst1) and V (dst2) planes.
// rowSize is the size in bytes of one destination (U or V) plane row;
// the source row is 2*rowSize bytes. Bit-exact regardless of tier.
func deinterleave(src []byte, srcStride int, dst1 []byte, dst1Stride int, dst2 []byte, dst2Stride int, rowSize, height, bpc int) {
	compsPerRow := rowSize / bpc
	words := wordsPerIteration()

	for y := 0; y < height; y++ {
		srow := src[y*srcStride : y*srcStride+2*rowSize]
		d1 := dst1[y*dst1Stride : y*dst1Stride+rowSize]
		d2 := dst2[y*dst2Stride : y*dst2Stride+rowSize]

		for i := 0; i < compsPerRow; i += words {
			end := i + words
			if end > compsPerRow {
				end = compsPerRow
			}
			for c := i; c < end; c++ {
				u := srow[c*2*bpc : c*2*bpc+bpc]
				v := srow[c*2*bpc+bpc : c*2*bpc+2*bpc]
				copy(d1[c*bpc:c*bpc+bpc], u)
				copy(d2[c*bpc:c*bpc+bpc], v)
			}
		}
	}
}

// interleave is the mirror of deinterleave: it packs separate U (src1)
// and V (src2) plane rows into one interleaved UV row.
func interleave(src1 []byte, src1Stride int, src2 []byte, src2Stride int, rowSize int, dst []byte, dstStride, height, bpc int) {
	compsPerRow := rowSize / bpc
	words := wordsPerIteration()

	for y := 0; y < height; y++ {
		s1 := src1[y*src1Stride : y*src1Stride+rowSize]
		s2 := src2[y*src2Stride : y*src2Stride+rowSize]
		drow := dst[y*dstStride : y*dstStride+2*rowSize]

		for i := 0; i < compsPerRow; i += words {
			end := i + words
			if end > compsPerRow {
				end = compsPerRow
			}
			for c := i; c < end; c++ {
				copy(drow[c*2*bpc:c*2*bpc+bpc], s1[c*bpc:c*bpc+bpc])
				copy(drow[c*2*bpc+bpc:c*2*bpc+2*bpc], s2[c*bpc:c*bpc+bpc])
			}
		}
	}
}
