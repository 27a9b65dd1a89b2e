/*
NAME
  scripttest.go

DESCRIPTION
  scripttest.go provides Fake, a FrameProcessor test double driven by a
  pluggable frame-index mapping and optional artificial latency, so the
  negotiation engine and frame handler can be exercised against spec §8's
  scenarios without a real scripting runtime.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package scripttest provides a FrameProcessor test double for exercising
// the negotiation engine and frame handler without a real scripting
// runtime.
package scripttest

import (
	"sync"
	"time"

	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/script"
)

// Fake is a script.FrameProcessor double. It reports a fixed VideoInfo and
// answers GetFrameAsync by mapping the requested output index to a single
// source index via Map (identity by default) and returning that source
// frame's planes unchanged. Delay, if set, is slept before invoking the
// callback, to simulate a slow script for back-pressure tests. Disconnect
// makes Reload report the "no-clip" sentinel.
type Fake struct {
	Info VideoInfo

	// Map translates an output frame index to the source frame index to
	// pull. Defaults to the identity mapping.
	Map func(outputIndex int) int

	// Delay, if non-zero, is slept inside GetFrameAsync before the
	// callback fires.
	Delay time.Duration

	// Disconnect makes Reload return a disconnect result unless
	// ignoreDisconnect is requested.
	Disconnect bool

	// FailReload, if non-nil, is returned as the Reload error.
	FailReload error

	mu     sync.Mutex
	source script.SourceProvider
}

// VideoInfo mirrors script.VideoInfo to avoid an import cycle in callers
// that only need to build a Fake without importing script directly for
// the literal.
type VideoInfo = script.VideoInfo

// New returns a Fake reporting info, with an identity index mapping.
func New(info VideoInfo) *Fake {
	return &Fake{Info: info, Map: func(n int) int { return n }}
}

func (f *Fake) Reload(scriptPath string, mt pixfmt.MediaType, ignoreDisconnect bool, source script.SourceProvider) script.ReloadResult {
	if f.FailReload != nil {
		return script.ReloadResult{OK: false, Err: f.FailReload}
	}
	if f.Disconnect && !ignoreDisconnect {
		return script.ReloadResult{OK: true, Disconnect: true}
	}
	f.mu.Lock()
	f.source = source
	f.mu.Unlock()
	return script.ReloadResult{OK: true}
}

func (f *Fake) VideoInfo() (script.VideoInfo, error) {
	return f.Info, nil
}

func (f *Fake) GetFrameAsync(outputIndex int, callback func(*script.Frame, error)) {
	go func() {
		if f.Delay > 0 {
			time.Sleep(f.Delay)
		}
		f.mu.Lock()
		source := f.source
		f.mu.Unlock()

		mapFn := f.Map
		if mapFn == nil {
			mapFn = func(n int) int { return n }
		}
		sourceIdx := mapFn(outputIndex)
		src, err := source.GetSourceFrame(sourceIdx)
		if err != nil {
			callback(nil, err)
			return
		}
		callback(&script.Frame{Planes: src.Planes, Strides: src.Strides}, nil)
	}()
}

func (f *Fake) MakeBlankFrame(info script.VideoInfo) *script.Frame {
	bpc := 1
	if info.PixelType == pixfmt.YUV420P16 || info.PixelType == pixfmt.YUV422P16 {
		bpc = 2
	}
	main := make([]byte, info.Width*info.Height*bpc)
	return &script.Frame{Planes: [][]byte{main}, Strides: []int{info.Width * bpc}}
}
