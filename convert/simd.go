/*
NAME
  simd.go

DESCRIPTION
  simd.go selects between three chroma (de)interleave strategies based on
  the host CPU's feature set, per spec §4.2/§6.2: an AVX2-width tier, an
  SSSE3-width tier, and a scalar fallback.

  Go has no portable inline AVX2/SSSE3 intrinsics without hand-written
  assembly; rather than fabricate a dependency that does not exist in the
  teacher's or the pack's ecosystem, the three tiers are three
  bit-exact, increasingly-wide word-at-a-time Go loops, selected by the
  same golang.org/x/sys/cpu feature gate the spec describes. See
  DESIGN.md for the rationale.

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

import "golang.org/x/sys/cpu"

// simdTier identifies which (de)interleave strategy VectorSize and the
// (de)interleave functions should use.
type simdTier int

const (
	tierScalar simdTier = iota
	tierSSSE3
	tierAVX2
)

// currentTier is resolved once at package init from the host's CPU
// features, mirroring the spec's AVX2 > SSSE3 > scalar dispatch order.
var currentTier = detectTier()

func detectTier() simdTier {
	if cpu.X86.HasAVX2 {
		return tierAVX2
	}
	if cpu.X86.HasSSSE3 {
		return tierSSSE3
	}
	return tierScalar
}

// VectorSize returns the intrinsic vector width in bytes implied by the
// detected tier: 32 for AVX2, 16 for SSSE3, 0 otherwise. Used by the
// allocator to size trailing buffer padding per spec §6.2.
func VectorSize() int {
	switch currentTier {
	case tierAVX2:
		return 32
	case tierSSSE3:
		return 16
	default:
		return 0
	}
}

// wordsPerIteration returns how many chroma components the deinterleave/
// interleave inner loop consumes per iteration for the current tier. This
// is the unrolling factor standing in for true vector width; every tier
// produces byte-identical output, only throughput differs.
func wordsPerIteration() int {
	switch currentTier {
	case tierAVX2:
		return 8
	case tierSSSE3:
		return 4
	default:
		return 1
	}
}
