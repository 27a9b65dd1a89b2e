/*
NAME
  worker.go

DESCRIPTION
  worker.go implements the delivery worker loop (spec §4.5.3), garbage
  collection of resolved map entries (§4.5.4), the flush handshake
  (§4.5.5) and start/stop lifecycle (§4.5.6).

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
	"sync"

	"github.com/pkg/errors"

	"github.com/ausocean/vsfilter/convert"
	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/sidedata"
)

// Start launches the delivery worker goroutine. Must be called once,
// after SetFormat, before any AddInputSample call.
func (h *FrameHandler) Start() {
	h.workerDone = make(chan struct{})
	go h.workerLoop()
}

// Stop signals the worker to exit and waits for it to join. interim, if
// non-nil, runs after the stop flag is set but before the wait — mirrors
// EndFlush's interim hook for callers that need to release an upstream
// lock across the join.
func (h *FrameHandler) Stop(interim func() error) error {
	h.isStopping.Store(true)

	h.sourceMu.Lock()
	h.sourceCond.Broadcast()
	h.sourceMu.Unlock()

	h.outputMu.Lock()
	h.outputCond.Broadcast()
	h.outputMu.Unlock()

	var err error
	if interim != nil {
		err = interim()
	}

	if h.workerDone != nil {
		<-h.workerDone
	}
	return err
}

// BeginFlush implements spec §4.5.5: raises isFlushing so every blocked
// waiter (AddInputSample's back-pressure wait, GetSourceFrame's
// lower-bound wait, and the worker's delivery wait) unblocks and drains
// rather than stalling the pipeline.
func (h *FrameHandler) BeginFlush() {
	h.isFlushing.Store(true)

	h.sourceMu.Lock()
	h.sourceCond.Broadcast()
	h.sourceMu.Unlock()

	h.outputMu.Lock()
	h.outputCond.Broadcast()
	h.outputMu.Unlock()
}

// EndFlush implements spec §4.5.5: waits for the worker to reach its
// flush-latched state and for every outstanding outputSamples entry to
// resolve, runs interim (e.g. an upstream handshake reply), then clears
// both maps and resets every counter before lowering isFlushing.
func (h *FrameHandler) EndFlush(interim func() error) error {
	h.flushMu.Lock()
	for !h.isWorkerLatched.Load() {
		h.flushCond.Wait()
	}
	h.flushMu.Unlock()

	h.outputMu.Lock()
	for {
		allResolved := true
		for _, e := range h.outputSamples {
			if !e.resolved() {
				allResolved = false
				break
			}
		}
		if allResolved {
			break
		}
		h.outputCond.Wait()
	}
	h.outputMu.Unlock()

	var err error
	if interim != nil {
		err = interim()
	}

	h.sourceMu.Lock()
	h.sourceFrames = make(map[int]*SourceFrameInfo)
	h.nextSourceFrameNb = 0
	h.maxRequestedFrameNb = 0
	h.lastStartTime = -1
	h.inputRate = frameRateCheckpoint{}
	h.sourceMu.Unlock()

	h.outputMu.Lock()
	h.outputSamples = make(map[int]*OutputSampleData)
	h.nextProcessSourceFrameNb = 0
	h.nextOutputSourceFrameNb = 0
	h.nextDeliveryFrameNb = 0
	h.nextOutputFrameStartTime = 0
	h.deliveryRate = frameRateCheckpoint{}
	h.outputMu.Unlock()

	h.drainOnce = sync.Once{}
	h.drainVal = nil

	h.isFlushing.Store(false)
	h.isWorkerLatched.Store(false)

	h.sourceMu.Lock()
	h.sourceCond.Broadcast()
	h.sourceMu.Unlock()
	h.outputMu.Lock()
	h.outputCond.Broadcast()
	h.outputMu.Unlock()

	return err
}

// GarbageCollect drops every sourceFrames entry with an index at or
// below upTo, per spec §4.5.4, and every outputSamples entry below
// nextDeliveryFrameNb. Called by finishDelivery after each delivery,
// successful or not, bounding both maps to the window still needed for
// in-flight GetFrameAsync requests.
func (h *FrameHandler) GarbageCollect(upTo int) {
	h.sourceMu.Lock()
	for k := range h.sourceFrames {
		if k <= upTo {
			delete(h.sourceFrames, k)
		}
	}
	h.sourceCond.Broadcast()
	h.sourceMu.Unlock()

	h.outputMu.Lock()
	for k := range h.outputSamples {
		if k < h.nextDeliveryFrameNb {
			delete(h.outputSamples, k)
		}
	}
	h.outputMu.Unlock()
}

// workerLoop implements spec §4.5.3: deliver output frames in index
// order as they resolve, handling the flush-latch handshake between
// deliveries.
func (h *FrameHandler) workerLoop() {
	defer close(h.workerDone)
	for {
		if h.isStopping.Load() {
			return
		}

		if h.isFlushing.Load() {
			h.flushMu.Lock()
			h.isWorkerLatched.Store(true)
			h.flushCond.Broadcast()
			h.flushMu.Unlock()

			h.outputMu.Lock()
			for h.isFlushing.Load() {
				h.outputCond.Wait()
			}
			h.outputMu.Unlock()
			continue
		}

		h.outputMu.Lock()
		nb := h.nextDeliveryFrameNb
		var entry *OutputSampleData
		for {
			if h.isStopping.Load() || h.isFlushing.Load() {
				break
			}
			e, ok := h.outputSamples[nb]
			if ok && e.resolved() {
				entry = e
				break
			}
			h.outputCond.Wait()
		}
		h.outputMu.Unlock()

		if entry == nil {
			continue
		}

		h.deliverOne(nb, entry)
	}
}

// deliverOne converts and delivers output frame nb, computing its
// start/stop times per spec §4.6, then advances past it.
func (h *FrameHandler) deliverOne(nb int, entry *OutputSampleData) {
	if entry.Err != nil {
		h.finishDelivery(nb, entry)
		return
	}

	srcDur, scriptDur := h.rates()

	h.sourceMu.Lock()
	nextSrcStart, haveNext := int64(0), false
	if si, ok := h.sourceFrames[entry.LinkedSourceFrameNb+1]; ok {
		nextSrcStart, haveNext = si.StartTime, true
	}
	var hdr *sidedata.Store
	var linkedStart int64
	if si, ok := h.sourceFrames[entry.LinkedSourceFrameNb]; ok {
		hdr = si.HDR
		linkedStart = si.StartTime
	}
	h.sourceMu.Unlock()

	// Spec §4.6: frame 0's start is the linked source frame's own start
	// time, not whatever nextOutputFrameStartTime happens to hold (it is
	// reset to 0 on construction and by EndFlush, so a resumed session
	// whose first source frame starts later than 0 must not be chained
	// from 0).
	start := h.nextOutputFrameStartTime
	if nb == 0 {
		start = linkedStart
	}
	dur := scriptDur
	if entry.Frame.Duration > 0 {
		dur = entry.Frame.Duration
	}
	stop := start + dur
	if dur <= 0 {
		stop = start + srcDur
	}
	if haveNext {
		stop = snapStopTime(stop, nextSrcStart)
	}

	outputFormat := h.currentOutputFormat()
	nominal := int(pixfmt.BitmapSize(outputFormat.Format, outputFormat.Width, outputFormat.Height))
	// The scratch buffer CopyToOutput writes into carries the trailing
	// SIMD padding spec §6.2 requires (convert.OutputPadding); only the
	// nominal, unpadded bytes are handed to the Sink.
	padded := make([]byte, nominal+convert.OutputPadding())
	if err := convert.CopyToOutput(outputFormat, entry.Frame.Planes, entry.Frame.Strides, padded); err != nil {
		entry.Err = errors.Wrap(err, "handler: convert output frame")
		h.finishDelivery(nb, entry)
		return
	}
	buf := padded[:nominal]

	h.outputMu.Lock()
	h.deliveryRate.refresh(nb, start)
	h.outputMu.Unlock()

	discontinuity := nb == 0

	err := h.Sink.Deliver(buf, start, stop, discontinuity, hdr)
	if err != nil {
		entry.Err = errors.Wrap(err, "handler: deliver output sample")
	}

	h.nextOutputFrameStartTime = stop
	h.finishDelivery(nb, entry)
}

func (h *FrameHandler) finishDelivery(nb int, entry *OutputSampleData) {
	h.outputMu.Lock()
	delete(h.outputSamples, nb)
	h.nextDeliveryFrameNb = nb + 1
	linked := entry.LinkedSourceFrameNb
	h.outputMu.Unlock()

	h.GarbageCollect(linked - 1)
}
