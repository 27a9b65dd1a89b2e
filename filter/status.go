/*
NAME
  status.go

DESCRIPTION
  status.go provides Status, the read-only snapshot of filter state the
  remote-control protocol (spec §6.3) and any other collaborator queries:
  input geometry, frame rates, HDR signalling, and the script's run
  state.

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

import "time"

// ScriptState is the script run state exposed over the remote-control
// protocol (spec §6.3).
type ScriptState int

// Script run states, matching spec §6.3's enum exactly.
const (
	ScriptStopped ScriptState = 0
	ScriptRunning ScriptState = 1
	ScriptPaused  ScriptState = 2
	ScriptError   ScriptState = 3
)

func (s ScriptState) String() string {
	switch s {
	case ScriptStopped:
		return "Stopped"
	case ScriptRunning:
		return "Running"
	case ScriptPaused:
		return "Paused"
	case ScriptError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Status is the read-only snapshot spec §6.3 exposes: input width/height,
// input PAR scaled x1000, current input/output fps scaled x1000, the
// codec FourCC, HDR signalling, source average fps, script run state and
// error text, and the effective script path.
type Status struct {
	InputWidth, InputHeight int

	// InputPARScaled is (ParNum*1000)/ParDen, per spec §6.3's "scaled
	// x1000" wire convention for the PAR.
	InputPARScaled int

	InputFPSScaled  int64
	OutputFPSScaled int64

	CodecFourCC string

	HDRType      int
	HDRLuminance int

	SourceAvgFPSScaled int64

	ScriptState ScriptState
	ScriptError string
	ScriptPath  string

	// LastSampleAt is the wall-clock time the most recent input sample was
	// received, independent of the 100 ns reference-time domain the
	// pipeline otherwise works in.
	LastSampleAt time.Time

	// Bitrate is bytes/sec of delivered output, an ambient diagnostic
	// distinct from the §4.6 frame-rate checkpoints.
	Bitrate int

	// SmoothedOutputFrameSeconds is the mean of the most recent delivered
	// output frame durations (in seconds), an ambient diagnostic on top
	// of (not instead of) the exact §4.6 checkpoint math.
	SmoothedOutputFrameSeconds float64
}
