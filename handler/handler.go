/*
NAME
  handler.go

DESCRIPTION
  handler.go provides FrameHandler's construction, format state and the
  two call paths the filter and the processor drive it through:
  AddInputSample (spec §4.5.1) and GetSourceFrame (spec §4.5.2).

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

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ausocean/vsfilter/convert"
	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/sample"
	"github.com/ausocean/vsfilter/script"
	"github.com/ausocean/vsfilter/sidedata"
)

// ErrSkipped is returned by AddInputSample for conditions the spec treats
// as "drop the sample, no error" (flushing/stopping, a failed pending
// format change, or a non-monotone start time) — not a fault, just
// nothing delivered for this call.
var ErrSkipped = errors.New("handler: input sample skipped")

// FrameHandler is the concurrency core of spec §4.5: it owns the
// sourceFrames/outputSamples maps, the counters and flags listed there,
// and drives the delivery worker.
type FrameHandler struct {
	Processor  script.FrameProcessor
	ScriptPath string
	Sink       Sink

	// PreviewTap, if set, is called with every source frame's converted
	// main plane right after CopyFromInput (spec §4.5.1 step 7), for a
	// debug preview window to show what the converter actually produced.
	// Not part of the spec; purely a development aid, so it runs inline
	// and is expected to be cheap or nil in production.
	PreviewTap func(mainPlane []byte, width, height, stride int, formatName string)

	formatMu               sync.RWMutex
	inputFormat            pixfmt.VideoFormat
	outputFormat           pixfmt.VideoFormat
	scriptInfo             script.VideoInfo
	sourceAvgFrameDuration int64
	scriptAvgFrameDuration int64

	extraSourceBuffer int32 // atomic

	isFlushing      atomic.Bool
	isStopping      atomic.Bool
	isWorkerLatched atomic.Bool

	sourceMu            sync.RWMutex
	sourceCond          *sync.Cond
	sourceFrames        map[int]*SourceFrameInfo
	nextSourceFrameNb   int
	maxRequestedFrameNb int
	lastStartTime       int64
	inputRate           frameRateCheckpoint

	outputMu                 sync.RWMutex
	outputCond               *sync.Cond
	outputSamples            map[int]*OutputSampleData
	nextProcessSourceFrameNb int
	nextOutputSourceFrameNb  int // next output frame index not yet scheduled
	nextDeliveryFrameNb      int // next output frame index the worker will deliver
	nextOutputFrameStartTime int64
	deliveryRate             frameRateCheckpoint

	flushMu   sync.Mutex
	flushCond *sync.Cond

	drainOnce sync.Once
	drainVal  *script.Frame

	workerDone chan struct{}
}

// New returns a FrameHandler bound to proc and the script path Reload
// calls use, delivering finished samples to sink.
func New(proc script.FrameProcessor, scriptPath string, sink Sink) *FrameHandler {
	h := &FrameHandler{
		Processor:     proc,
		ScriptPath:    scriptPath,
		Sink:          sink,
		sourceFrames:  make(map[int]*SourceFrameInfo),
		outputSamples: make(map[int]*OutputSampleData),
		lastStartTime: -1,
	}
	h.sourceCond = sync.NewCond(&h.sourceMu)
	h.outputCond = sync.NewCond(&h.outputMu)
	h.flushCond = sync.NewCond(&h.flushMu)
	return h
}

// SetFormat records the current input/output video formats and the
// script's reported shape, and recomputes the average frame durations
// §4.6's formulas are built from. Callers (the negotiation engine, on
// connect or format change) must call this before Start.
func (h *FrameHandler) SetFormat(input, output pixfmt.VideoFormat, info script.VideoInfo) {
	h.formatMu.Lock()
	defer h.formatMu.Unlock()
	h.inputFormat = input
	h.outputFormat = output
	h.scriptInfo = info
	h.sourceAvgFrameDuration = input.FrameDuration
	h.scriptAvgFrameDuration = avgFrameDuration(info.FPSNum, info.FPSDen)
}

func (h *FrameHandler) rates() (source, scriptDur int64) {
	h.formatMu.RLock()
	defer h.formatMu.RUnlock()
	return h.sourceAvgFrameDuration, h.scriptAvgFrameDuration
}

func (h *FrameHandler) currentScriptInfo() script.VideoInfo {
	h.formatMu.RLock()
	defer h.formatMu.RUnlock()
	return h.scriptInfo
}

func (h *FrameHandler) currentInputFormat() pixfmt.VideoFormat {
	h.formatMu.RLock()
	defer h.formatMu.RUnlock()
	return h.inputFormat
}

// CurrentInputFormat exposes the active input VideoFormat to
// collaborators outside the package (the filter shell's status
// reporting, spec §6.3).
func (h *FrameHandler) CurrentInputFormat() pixfmt.VideoFormat {
	return h.currentInputFormat()
}

// CurrentOutputFormat exposes the active output VideoFormat to
// collaborators outside the package, mirroring CurrentInputFormat.
func (h *FrameHandler) CurrentOutputFormat() pixfmt.VideoFormat {
	return h.currentOutputFormat()
}

func (h *FrameHandler) currentOutputFormat() pixfmt.VideoFormat {
	h.formatMu.RLock()
	defer h.formatMu.RUnlock()
	return h.outputFormat
}

// SetExtraSourceBuffer adjusts the extraSourceBuffer capacity knob (spec
// §4.5) governing how many source frames beyond
// NumSourceFramesPerProcessing may queue before AddInputSample blocks.
func (h *FrameHandler) SetExtraSourceBuffer(n int) {
	atomic.StoreInt32(&h.extraSourceBuffer, int32(n))
	h.sourceMu.Lock()
	h.sourceCond.Broadcast()
	h.sourceMu.Unlock()
}

// AddInputSample implements spec §4.5.1. onFormatChange, if non-nil, is
// invoked when s carries an attached media type (a runtime format
// change, spec §4.4.5); a non-nil error from it causes the sample to be
// dropped (ErrSkipped), matching "if it fails, drop."
func (h *FrameHandler) AddInputSample(s *sample.Sample, onFormatChange func(pixfmt.MediaType) error) error {
	h.sourceMu.Lock()
	for {
		if h.isFlushing.Load() {
			break
		}
		extra := int(atomic.LoadInt32(&h.extraSourceBuffer))
		if len(h.sourceFrames) < NumSourceFramesPerProcessing+extra {
			break
		}
		if h.nextSourceFrameNb <= h.maxRequestedFrameNb {
			break
		}
		h.sourceCond.Wait()
	}
	nextNb := h.nextSourceFrameNb
	h.sourceMu.Unlock()

	if h.isFlushing.Load() || h.isStopping.Load() {
		return ErrSkipped
	}

	if s.AttachedMediaType != nil && onFormatChange != nil {
		if err := onFormatChange(*s.AttachedMediaType); err != nil {
			return ErrSkipped
		}
	}

	srcDur, scriptDur := h.rates()

	startTime, hasStart := s.StartTime()
	if !hasStart {
		startTime = int64(nextNb) * srcDur
	}

	h.sourceMu.RLock()
	last := h.lastStartTime
	h.sourceMu.RUnlock()
	if startTime <= last {
		return ErrSkipped
	}

	h.sourceMu.Lock()
	h.inputRate.refresh(h.nextSourceFrameNb, startTime)
	h.sourceMu.Unlock()

	inputFormat := h.currentInputFormat()
	scriptInfo := h.currentScriptInfo()

	planes, strides, err := convert.AllocatePlanes(scriptInfo.PixelType, inputFormat.Width, inputFormat.Height)
	if err != nil {
		return errors.Wrap(err, "handler: allocate processor frame")
	}
	if err := convert.CopyFromInput(inputFormat, s.Buffer, planes, strides); err != nil {
		return errors.Wrap(err, "handler: convert input sample")
	}
	frame := &script.Frame{Planes: planes, Strides: strides}

	if h.PreviewTap != nil {
		h.PreviewTap(planes[0], inputFormat.Width, inputFormat.Height, strides[0], inputFormat.Format.Name)
	}

	hdr := sidedata.New()
	hdr.ReadFrom(s)
	if b, ok := hdr.Retrieve(sidedata.HDR); ok {
		h.formatMu.Lock()
		h.inputFormat.HDRType = 1
		if cll, ok := hdr.Retrieve(sidedata.HDRContentLightLevel); ok && len(cll) >= 4 {
			h.inputFormat.HDRLuminance = int(binary.LittleEndian.Uint32(cll))
		} else if len(b) >= 4 {
			h.inputFormat.HDRLuminance = int(binary.LittleEndian.Uint32(b))
		}
		h.formatMu.Unlock()
	}

	h.sourceMu.Lock()
	idx := h.nextSourceFrameNb
	h.sourceFrames[idx] = &SourceFrameInfo{Frame: frame, StartTime: startTime, HDR: hdr}
	h.lastStartTime = startTime
	h.nextSourceFrameNb++
	h.sourceCond.Broadcast()
	h.sourceMu.Unlock()

	h.scheduleOutputFrames(idx, srcDur, scriptDur)

	return nil
}

// scheduleOutputFrames implements the output pre-scheduling paragraph of
// spec §4.5.1: for every output frame index up to and including the
// target mapped from the just-added source frame that has not yet been
// queued, insert an outputSamples entry linked to this source frame and
// kick off an async GetFrameAsync request for it.
func (h *FrameHandler) scheduleOutputFrames(sourceFrameNb int, srcDur, scriptDur int64) {
	target := targetOutputFrameIndex(sourceFrameNb, srcDur, scriptDur)

	h.outputMu.Lock()
	h.nextProcessSourceFrameNb = sourceFrameNb
	start := h.nextOutputSourceFrameNb
	if start > target {
		h.outputMu.Unlock()
		return
	}
	for n := start; n <= target; n++ {
		if _, exists := h.outputSamples[n]; exists {
			continue
		}
		h.outputSamples[n] = &OutputSampleData{LinkedSourceFrameNb: sourceFrameNb}
		nb := n
		h.Processor.GetFrameAsync(nb, func(f *script.Frame, err error) {
			h.outputMu.Lock()
			if e, ok := h.outputSamples[nb]; ok {
				e.Frame, e.Err = f, err
			}
			h.outputCond.Broadcast()
			h.outputMu.Unlock()
		})
	}
	h.nextOutputSourceFrameNb = target + 1
	h.outputMu.Unlock()
}

// lowerBound returns the smallest key k >= n present in sourceFrames,
// linear-scanned since the map stays bounded by
// NumSourceFramesPerProcessing+extraSourceBuffer entries. Caller must
// hold sourceMu.
func (h *FrameHandler) lowerBound(n int) (int, bool) {
	best, found := 0, false
	for k := range h.sourceFrames {
		if k >= n && (!found || k < best) {
			best, found = k, true
		}
	}
	return best, found
}

func (h *FrameHandler) drainFrame() *script.Frame {
	h.drainOnce.Do(func() {
		h.drainVal = h.Processor.MakeBlankFrame(h.currentScriptInfo())
	})
	return h.drainVal
}

// GetSourceFrame implements spec §4.5.2: called back by the processor
// while producing an output frame, it blocks until source frame n (or
// the next one still buffered) is available, or flushing starts, in
// which case it returns the drain frame so the processor can unwind.
func (h *FrameHandler) GetSourceFrame(n int) (*script.Frame, error) {
	h.sourceMu.Lock()
	if n > h.maxRequestedFrameNb {
		h.maxRequestedFrameNb = n
	}
	h.sourceCond.Broadcast()

	var key int
	var ok bool
	for {
		if h.isFlushing.Load() {
			break
		}
		key, ok = h.lowerBound(n)
		if ok {
			break
		}
		h.sourceCond.Wait()
	}

	var frame *script.Frame
	if h.isFlushing.Load() || !ok {
		frame = h.drainFrame()
	} else {
		frame = h.sourceFrames[key].Frame
	}
	h.sourceMu.Unlock()

	return frame, nil
}
