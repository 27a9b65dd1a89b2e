/*
NAME
  processor.go

DESCRIPTION
  processor.go defines FrameProcessor, the external collaborator's
  capability set (spec §6.4): a reloadable script exposing a source()
  function and yielding a video node with known pixel type, dimensions
  and fps. The concrete scripting runtime is out of scope (spec §1); this
  package only defines the boundary and the data it exchanges across it.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package script defines the boundary between the frame pipeline and the
// external scripted frame processor: the narrow FrameProcessor interface
// of spec §6.4, and the frame/video-info types that cross it.
package script

import "github.com/ausocean/vsfilter/pixfmt"

// Frame is a script-produced (or script-consumed) planar frame. Planes
// follow the same [main, U, V] (or single-plane) convention as
// convert.CopyFromInput/CopyToOutput. Duration is the frame's own
// duration in 100 ns units if the script attached one to the frame;
// 0 means the caller should fall back to the script's average frame
// duration (spec §4.5.3 step 3).
type Frame struct {
	Planes   [][]byte
	Strides  []int
	Duration int64
}

// VideoInfo is the script's reported source()/output video node shape:
// width, height, the script's native pixel type, and frame rate as a
// reduced fraction.
type VideoInfo struct {
	Width, Height int
	PixelType     pixfmt.ProcPixelType
	FPSNum, FPSDen int
}

// ReloadResult reports the outcome of Reload. OK is false when the script
// failed to load; Err in that case carries the retained error text (spec
// §7: "retained as error text; state = Error"). Disconnect is true when
// the script explicitly signalled it will not bind to the offered media
// type (the "no-clip" sentinel, spec §4.4.1, §7).
type ReloadResult struct {
	OK         bool
	Disconnect bool
	Err        error
}

// SourceProvider is implemented by the frame handler and given to the
// processor on each Reload, so the script can pull source frames by
// index while producing an output frame (spec §6.4, §9 "coroutine-like
// callback from the processor").
type SourceProvider interface {
	// GetSourceFrame returns the source frame at index n, blocking per
	// spec §4.5.2 until it is available (or a flush is in progress, in
	// which case a blank drain frame is returned, never an error).
	GetSourceFrame(n int) (*Frame, error)
}

// FrameProcessor is the narrow interface the frame pipeline depends on
// for the scripting runtime (spec §6.4). filter.Shell hands one
// FrameProcessor value to both the negotiation engine and the frame
// handler: the engine's probing Reload calls rebind the same instance the
// handler pulls frames through, and there is no separate checking
// instance.
type FrameProcessor interface {
	// Reload (re)loads the script at scriptPath bound to a source clip
	// whose video info matches mt, wiring source to answer the script's
	// source-frame pulls. If the script signals the "no-clip" disconnect
	// sentinel, Reload returns Disconnect == true unless ignoreDisconnect
	// is set, in which case the reload proceeds regardless.
	Reload(scriptPath string, mt pixfmt.MediaType, ignoreDisconnect bool, source SourceProvider) ReloadResult

	// VideoInfo reports the currently-loaded script's output node shape.
	// It is only valid to call after a successful Reload.
	VideoInfo() (VideoInfo, error)

	// GetFrameAsync requests the script's outputIndex-th frame. callback
	// is invoked exactly once, from any goroutine, with either a non-nil
	// Frame or a non-nil error. While producing the frame, the script may
	// synchronously call source.GetSourceFrame.
	GetFrameAsync(outputIndex int, callback func(*Frame, error))

	// MakeBlankFrame allocates a zero-initialised frame in the script's
	// native layout, used as the drain sentinel returned by
	// SourceProvider.GetSourceFrame during a flush (spec §4.5.2, §7).
	MakeBlankFrame(info VideoInfo) *Frame
}
