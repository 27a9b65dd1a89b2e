/*
NAME
  sample.go

DESCRIPTION
  sample.go provides Sample: the media-sample type this filter passes
  between stages. Per spec §9, "polymorphism over media-sample variants"
  collapses to one concrete type declaring the capability set {timed byte
  buffer, side-data mapping} — there is no virtual-inheritance tree to
  model.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sample provides the media-sample type and its allocator: a
// timed byte buffer carrying a side-data mapping, sized and laid out per
// spec §4.3.
package sample

import (
	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/sidedata"
)

// Sample is a timed media-sample buffer carrying an attached side-data
// store. Buffer is a slice into an Allocator's backing arena (or, for
// samples not produced by this filter's allocator, any caller-owned
// slice); Sample does not copy it.
type Sample struct {
	Buffer []byte

	startTime    int64
	hasStartTime bool
	stopTime     int64
	hasStopTime  bool

	Discontinuity bool

	// AttachedMediaType is set when the upstream sample carries a runtime
	// format-change notification (spec §4.4.5). nil otherwise.
	AttachedMediaType *pixfmt.MediaType

	side *sidedata.Store

	// owner/slot identify the Allocator this sample was drawn from, for
	// Allocator.Free. Zero value for samples not drawn from a pool.
	owner *Allocator
	slot  int
}

// New wraps buf in a standalone Sample not associated with any Allocator.
func New(buf []byte) *Sample {
	return &Sample{Buffer: buf}
}

// SideData returns the sample's side-data store, creating it on first
// use. Implements sidedata.Carrier.
func (s *Sample) SideData() *sidedata.Store {
	if s.side == nil {
		s.side = sidedata.New()
	}
	return s.side
}

// StartTime returns the sample's start time in 100 ns units and whether
// it has been set.
func (s *Sample) StartTime() (int64, bool) { return s.startTime, s.hasStartTime }

// SetStartTime sets the sample's start time.
func (s *Sample) SetStartTime(t int64) {
	s.startTime = t
	s.hasStartTime = true
}

// StopTime returns the sample's stop time in 100 ns units and whether it
// has been set.
func (s *Sample) StopTime() (int64, bool) { return s.stopTime, s.hasStopTime }

// SetStopTime sets the sample's stop time.
func (s *Sample) SetStopTime(t int64) {
	s.stopTime = t
	s.hasStopTime = true
}
