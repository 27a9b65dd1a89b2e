/*
NAME
  timing.go

DESCRIPTION
  timing.go implements the timing arithmetic of spec §4.6: frame-duration
  derivation from a stream's fps, the source-frame-index to
  output-frame-index mapping, drift-tolerant stop-time snapping, and
  periodic frame-rate checkpoint recomputation.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package handler

// UNITS is the number of 100 ns ticks in one second, the reference time
// base every duration/timestamp in this package is expressed in.
const UNITS = 10000000

// FrameRateScale is the fixed-point scale frame rates are reported at
// (fps * FrameRateScale), matching the remote-control protocol's scaled
// integers (spec §6.3).
const FrameRateScale = 1000

// MaxOutputFrameDurationPadding is the drift tolerance, in 100 ns units,
// within which an output frame's computed stop time snaps to the next
// source frame's start time rather than drifting short of it.
const MaxOutputFrameDurationPadding = 10

// NumSourceFramesPerProcessing is the minimum number of buffered source
// frames the worker needs on hand to compute an output frame's stop time
// from the following source frame's start time, per the original
// engine's NUM_SRC_FRAMES_PER_PROCESSING constant.
const NumSourceFramesPerProcessing = 3

// avgFrameDuration returns UNITS*den/num, the average frame duration in
// 100 ns units for an fps expressed as num/den. Returns 0 if num <= 0.
func avgFrameDuration(num, den int) int64 {
	if num <= 0 {
		return 0
	}
	if den <= 0 {
		den = 1
	}
	return int64(UNITS) * int64(den) / int64(num)
}

// avgFrameRate returns the fps, scaled by FrameRateScale, for num/den.
func avgFrameRate(num, den int) int64 {
	if den <= 0 {
		return 0
	}
	return int64(num) * FrameRateScale / int64(den)
}

// targetOutputFrameIndex returns the output frame index a source frame k
// maps to, given the two streams' average frame durations: floor(k *
// sourceAvgFrameDuration / scriptAvgFrameDuration).
func targetOutputFrameIndex(k int, sourceAvgFrameDuration, scriptAvgFrameDuration int64) int {
	if scriptAvgFrameDuration <= 0 {
		return k
	}
	return int(int64(k) * sourceAvgFrameDuration / scriptAvgFrameDuration)
}

// snapStopTime implements the drift correction of spec §4.6: if stop is
// short of nextSourceStart by no more than MaxOutputFrameDurationPadding,
// round it up to nextSourceStart.
func snapStopTime(stop, nextSourceStart int64) int64 {
	if stop < nextSourceStart && nextSourceStart-stop <= MaxOutputFrameDurationPadding {
		return nextSourceStart
	}
	return stop
}

// frameRateCheckpoint tracks the (frame number, start time) pair a
// rolling frame-rate estimate was last recomputed from.
type frameRateCheckpoint struct {
	n         int
	startTime int64
	rate      int64 // scaled by FrameRateScale
	seeded    bool
}

// refresh recomputes the checkpoint's rate once at least one UNITS
// (one second) has elapsed since it was last taken, advancing the
// checkpoint to (n, start). The first call only seeds the checkpoint.
// Returns true if the rate was recomputed.
func (c *frameRateCheckpoint) refresh(n int, start int64) bool {
	if !c.seeded {
		c.n, c.startTime, c.seeded = n, start, true
		return false
	}
	elapsed := start - c.startTime
	if elapsed < UNITS {
		return false
	}
	c.rate = int64(n-c.n) * FrameRateScale * UNITS / elapsed
	c.n, c.startTime = n, start
	return true
}
