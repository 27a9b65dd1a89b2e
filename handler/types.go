/*
NAME
  types.go

DESCRIPTION
  types.go provides the FrameHandler's state types: SourceFrameInfo and
  OutputSampleData (spec §4.5's two sorted maps), and the Sink interface
  the delivery worker uses to hand off finished samples without knowing
  anything about the downstream transport.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package handler implements FrameHandler, the concurrency core of the
// filter: it queues decoded source frames, drives the scripted frame
// processor's async frame production, and delivers finished output
// samples downstream in order, per spec §4.5 and the timing rules of
// §4.6.
package handler

import (
	"github.com/ausocean/vsfilter/script"
	"github.com/ausocean/vsfilter/sidedata"
)

// SourceFrameInfo is one entry of the sourceFrames map: a converted
// processor-facing frame, its start time, and the HDR side-data read off
// the inbound sample that produced it.
type SourceFrameInfo struct {
	Frame     *script.Frame
	StartTime int64
	HDR       *sidedata.Store
}

// OutputSampleData is one entry of the outputSamples map: which source
// frame it was scheduled from, and the eventual result of the async
// GetFrameAsync request (exactly one of Frame/Err becomes non-nil once
// resolved).
type OutputSampleData struct {
	LinkedSourceFrameNb int
	Frame               *script.Frame
	Err                 error
}

func (o *OutputSampleData) resolved() bool {
	return o.Frame != nil || o.Err != nil
}

// Sink receives finished output samples from the delivery worker. buf is
// the packed media-sample payload; start/stop are in 100 ns units;
// discontinuity marks the first sample after a flush or stream start;
// hdr (may be nil) is the side-data to copy onto the outbound sample.
type Sink interface {
	Deliver(buf []byte, start, stop int64, discontinuity bool, hdr *sidedata.Store) error
}
