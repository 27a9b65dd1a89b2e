/*
NAME
  engine.go

DESCRIPTION
  engine.go implements NegotiationEngine: the (input, output) pixel-format
  compatibility set a connecting upstream pin is checked and offered
  against, built by probing the FrameProcessor against each candidate
  input media type it is handed (spec §4.4).

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package negotiate implements the pixel-format negotiation engine that
// sits between the upstream decoder pin and the scripted frame processor
// (spec §4.4): it builds and maintains the set of (input media type,
// input pixel format, output media type, output pixel format) quadruples
// a connection can use, and drives reconnection when the script's
// reported shape changes.
package negotiate

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/script"
)

// ErrNoMediaSubtypeForProcType resolves spec §9 Open Question 3: when the
// script reports a pixel type with no corresponding PixelFormatTable
// entry, the engine surfaces this typed error from Enumerate/HandleFormatChange
// rather than silently offering an empty compatibility set.
var ErrNoMediaSubtypeForProcType = errors.New("negotiate: script pixel type has no media subtype in the table")

// ErrDisconnected is returned when the processor signals the "no-clip"
// sentinel while probing a candidate input type.
var ErrDisconnected = errors.New("negotiate: processor disconnected candidate input type")

// Entry is one member of the compatibility set: an accepted input media
// type paired with the output media type synthesized for it.
type Entry struct {
	InputMediaType   pixfmt.MediaType
	InputPixelFormat pixfmt.PixelFormat

	OutputMediaType   pixfmt.MediaType
	OutputPixelFormat pixfmt.PixelFormat
}

// Engine is the NegotiationEngine of spec §4.4. It is not safe for
// concurrent Enumerate calls against the same Engine, but CheckInputType,
// GetMediaType and CheckTransform may be called concurrently with each
// other once entries exist.
type Engine struct {
	Processor  script.FrameProcessor
	ScriptPath string

	mu      sync.RWMutex
	entries []Entry
	current int // index into entries whose InputPixelFormat is the connected input format, -1 if none

	// currentOutputFormat is the pixel format actually flowing out right
	// now. It starts equal to entries[current].OutputPixelFormat but can
	// drift from it when the script's output shape changes without a new
	// Enumerate call, which is exactly the mismatch Reconnect resolves
	// (spec §4.4.4).
	currentOutputFormat pixfmt.PixelFormat
	watermark           int
}

// New returns an Engine bound to a FrameProcessor and the script path
// Reload will be called with.
func New(proc script.FrameProcessor, scriptPath string) *Engine {
	return &Engine{Processor: proc, ScriptPath: scriptPath, current: -1}
}

// Enumerate implements spec §4.4.1: offered one candidate input media
// type at a time by the upstream enumerator, it probes the processor and
// grows the compatibility set. Candidates whose subtype is already
// represented, or whose subtype has no table entry, are skipped without
// error; a script disconnect or an unmapped script pixel type is
// reported.
func (e *Engine) Enumerate(mt pixfmt.MediaType, source script.SourceProvider) error {
	ip, ok := pixfmt.BySubtype(mt.Subtype)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		if ent.InputPixelFormat.Subtype == ip.Subtype {
			return nil
		}
	}

	res := e.Processor.Reload(e.ScriptPath, mt, false, source)
	if res.Disconnect {
		return ErrDisconnected
	}
	if !res.OK {
		return errors.Wrap(res.Err, "negotiate: reload failed")
	}

	info, err := e.Processor.VideoInfo()
	if err != nil {
		return errors.Wrap(err, "negotiate: video info")
	}

	outFormats := pixfmt.ByProcType(info.PixelType)
	if len(outFormats) == 0 {
		return ErrNoMediaSubtypeForProcType
	}

	for _, op := range outFormats {
		omt := SynthesizeOutputType(mt, ip, op, info)
		e.entries = append(e.entries, Entry{
			InputMediaType:    mt,
			InputPixelFormat:  ip,
			OutputMediaType:   omt,
			OutputPixelFormat: op,
		})
	}
	return nil
}

// CheckInputType implements spec §4.4.2: accept iff mt's pixel format
// appears as some entry's input pixel format.
func (e *Engine) CheckInputType(mt pixfmt.MediaType) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ent := range e.entries {
		if ent.InputPixelFormat.Subtype == mt.Subtype {
			return true
		}
	}
	return false
}

// GetMediaType returns the output media type of the i-th compatibility
// entry, implementing spec §4.4.2's enumeration support for the output
// pin.
func (e *Engine) GetMediaType(i int) (pixfmt.MediaType, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.entries) {
		return pixfmt.MediaType{}, false
	}
	return e.entries[i].OutputMediaType, true
}

// CheckTransform implements spec §4.4.2: accept iff either pair is the
// currently connected one, or some entry matches both sides.
func (e *Engine) CheckTransform(in, out pixfmt.MediaType) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.current >= 0 {
		cur := e.entries[e.current]
		if cur.InputMediaType.Subtype == in.Subtype && cur.OutputMediaType.Subtype == out.Subtype {
			return true
		}
	}
	for _, ent := range e.entries {
		if ent.InputMediaType.Subtype == in.Subtype && ent.OutputMediaType.Subtype == out.Subtype {
			return true
		}
	}
	return false
}

// Connect marks entry i as the active connection, resetting the
// reconnection watermark. Callers invoke this once a candidate from
// Enumerate/Reconnect is accepted downstream.
func (e *Engine) Connect(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = i
	e.currentOutputFormat = e.entries[i].OutputPixelFormat
	e.watermark = 0
}

// SetCurrentOutputFormat records the pixel format actually flowing out of
// the connection right now, independent of what entries[current] says.
// filter.Shell calls this after a runtime format change, so Reconnect
// has something to compare against (spec §4.4.4).
func (e *Engine) SetCurrentOutputFormat(f pixfmt.PixelFormat) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentOutputFormat = f
}

// Current returns the active compatibility entry, if any.
func (e *Engine) Current() (Entry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current < 0 {
		return Entry{}, false
	}
	return e.entries[e.current], true
}
