/*
NAME
  reconnect.go

DESCRIPTION
  reconnect.go implements the output-type synthesis (spec §4.4.3), the
  reconnection protocol (spec §4.4.4) and runtime format change (spec
  §4.4.5).

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package negotiate

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/script"
)

// ErrReconnectExhausted is returned by Reconnect when every remaining
// candidate input type has been tried and none was accepted.
var ErrReconnectExhausted = errors.New("negotiate: reconnection candidates exhausted")

// ErrTypeNotAccepted is returned by HandleFormatChange when no
// synthesized output type is accepted downstream (spec §4.4.5, "abort
// playback with type not accepted").
var ErrTypeNotAccepted = errors.New("negotiate: downstream did not accept any candidate output type")

// SynthesizeOutputType implements spec §4.4.3: derive an output media
// type from the accepted input template, the chosen output pixel format
// and the script's reported video info.
func SynthesizeOutputType(input pixfmt.MediaType, ip, op pixfmt.PixelFormat, info script.VideoInfo) pixfmt.MediaType {
	vi := input.VideoInfo

	fpsNum, fpsDen := info.FPSNum, info.FPSDen
	if fpsNum <= 0 {
		fpsNum, fpsDen = 25, 1
	}

	out := pixfmt.VideoInfoHeader{
		RcSource: pixfmt.Rect{Right: int32(info.Width), Bottom: int32(info.Height)},
		RcTarget: pixfmt.Rect{Right: int32(info.Width), Bottom: int32(info.Height)},
		Bmi: pixfmt.BitmapInfoHeader{
			Width:    int32(info.Width),
			Height:   int32(info.Height),
			BitCount: uint16(op.BitsPerPixel),
		},
		IsV2: vi.IsV2,
	}
	if fpsNum != 0 {
		out.AvgTimePerFrame = int64(10000000) * int64(fpsDen) / int64(fpsNum)
	}

	if op.ProcType == pixfmt.BGR24 || op.ProcType == pixfmt.BGR32 {
		out.Bmi.Compression = "RGB"
	} else {
		out.Bmi.Compression = op.Subtype
	}
	out.Bmi.SizeImage = pixfmt.BitmapSize(op, info.Width, info.Height)

	if vi.IsV2 && vi.PictAspectRatioX != 0 && vi.PictAspectRatioY != 0 &&
		(int(vi.Bmi.Width) != info.Width || absI32(vi.Bmi.Height) != int32(info.Height)) {
		sourceW := int(vi.Bmi.Width)
		sourceH := int(absI32(vi.Bmi.Height))
		num := int(vi.PictAspectRatioX) * sourceH * info.Width
		den := int(vi.PictAspectRatioY) * sourceW * info.Height
		if num != 0 && den != 0 {
			g := gcdInt(num, den)
			out.PictAspectRatioX = uint32(num / g)
			out.PictAspectRatioY = uint32(den / g)
		}
	} else {
		out.PictAspectRatioX, out.PictAspectRatioY = vi.PictAspectRatioX, vi.PictAspectRatioY
	}
	out.ControlFlags = vi.ControlFlags

	return pixfmt.MediaType{Subtype: op.Subtype, VideoInfo: out}
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func gcdInt(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// Reconnect implements spec §4.4.4. It is called once both pins are
// connected and the script's output pixel format no longer matches the
// active connection's output pixel format. accept is called with each
// candidate input media type in turn (skipping the first watermark
// mismatches already tried by prior calls) and should attempt the actual
// downstream reconnect, returning whether it was accepted. On success
// the engine's current entry and watermark are updated and the accepted
// Entry is returned. Exhaustion returns ErrReconnectExhausted and leaves
// the connection unchanged; the watermark stays advanced, so later calls
// skip the candidates already tried until Connect resets it.
func (e *Engine) Reconnect(accept func(candidateInput pixfmt.MediaType) bool) (Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current < 0 {
		return Entry{}, errors.New("negotiate: Reconnect called with no active connection")
	}
	cur := e.entries[e.current]

	if cur.OutputPixelFormat.Subtype == e.currentOutputFormat.Subtype {
		return cur, nil
	}

	var candidates []int
	for i, ent := range e.entries {
		if ent.InputPixelFormat.Subtype == e.currentOutputFormat.Subtype {
			candidates = append(candidates, i)
		}
	}

	skip := e.watermark
	for _, idx := range candidates {
		if skip > 0 {
			skip--
			continue
		}
		e.watermark++
		if accept(e.entries[idx].InputMediaType) {
			e.current = idx
			e.currentOutputFormat = e.entries[idx].OutputPixelFormat
			e.watermark = 0
			return e.entries[idx], nil
		}
	}
	return Entry{}, ErrReconnectExhausted
}

// HandleFormatChange implements spec §4.4.5: given a new input media
// type carried by an incoming sample, reload the processor against it
// and offer each resulting candidate output type to offerOutput (which
// should call ReceiveConnection downstream, not QueryAccept) until one
// is accepted. On success the active entry is updated to the accepted
// pair.
func (e *Engine) HandleFormatChange(mt pixfmt.MediaType, source script.SourceProvider, offerOutput func(pixfmt.MediaType) bool) error {
	ip, ok := pixfmt.BySubtype(mt.Subtype)
	if !ok {
		return ErrTypeNotAccepted
	}

	res := e.Processor.Reload(e.ScriptPath, mt, true, source)
	if !res.OK {
		return errors.Wrap(res.Err, "negotiate: reload failed during format change")
	}
	info, err := e.Processor.VideoInfo()
	if err != nil {
		return errors.Wrap(err, "negotiate: video info during format change")
	}
	outFormats := pixfmt.ByProcType(info.PixelType)
	if len(outFormats) == 0 {
		return ErrNoMediaSubtypeForProcType
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, op := range outFormats {
		omt := SynthesizeOutputType(mt, ip, op, info)
		if offerOutput(omt) {
			entry := Entry{InputMediaType: mt, InputPixelFormat: ip, OutputMediaType: omt, OutputPixelFormat: op}
			e.entries = append(e.entries, entry)
			e.current = len(e.entries) - 1
			e.watermark = 0
			return nil
		}
	}
	return ErrTypeNotAccepted
}
