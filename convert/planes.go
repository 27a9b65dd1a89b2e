/*
NAME
  planes.go

DESCRIPTION
  planes.go provides AllocatePlanes, allocating a zeroed destination
  plane set for a script pixel type, used by the frame handler to build
  the processor-facing frame CopyFromInput writes into and to size the
  scratch the script's own frame is read out of before CopyToOutput.

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
	"github.com/pkg/errors"

	"github.com/ausocean/vsfilter/pixfmt"
)

// AllocatePlanes returns zeroed, tightly-packed planes and their strides
// for a processor pixel type at the given dimensions, in the same
// [main, U, V] (or single-plane) convention CopyFromInput/CopyToOutput
// use. Any table entry sharing the proc type describes the same planar
// geometry, so the first one is used as the representative.
func AllocatePlanes(pt pixfmt.ProcPixelType, width, height int) ([][]byte, []int, error) {
	reps := pixfmt.ByProcType(pt)
	if len(reps) == 0 {
		return nil, nil, errors.Errorf("convert: no pixel format table entry for proc type %v", pt)
	}
	l, err := layoutFor(reps[0], width, height)
	if err != nil {
		return nil, nil, err
	}

	main := make([]byte, l.mainSize)
	if !l.hasChroma {
		return [][]byte{main}, []int{l.mainStride}, nil
	}

	u := make([]byte, l.chromaSize)
	v := make([]byte, l.chromaSize)
	return [][]byte{main, u, v}, []int{l.mainStride, l.chromaStride, l.chromaStride}, nil
}
