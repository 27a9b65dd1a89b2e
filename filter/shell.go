/*
NAME
  shell.go

DESCRIPTION
  shell.go provides Shell, the filter shell of spec §2's component table:
  it receives upstream samples, delegates conversion and timing to
  FrameHandler, drives NegotiationEngine through the runtime format-change
  protocol (spec §4.4.5), and exposes Status/control to collaborators
  (the remote-control protocol, scriptwatch) the way revid.Revid exposes
  itself to cmd/rv.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package filter provides Shell, the filter shell sitting between the
// upstream decoder and the downstream renderer (spec §1, §2): it wires
// together pixfmt, convert, sidedata, sample, negotiate, handler and an
// external script.FrameProcessor into the one type the COM/DirectShow
// base-filter scaffolding (out of scope, spec §1) would call into.
package filter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ausocean/utils/bitrate"
	"github.com/ausocean/utils/ioext"
	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/realtime"
	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/vsfilter/filter/config"
	"github.com/ausocean/vsfilter/handler"
	"github.com/ausocean/vsfilter/negotiate"
	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/sample"
	"github.com/ausocean/vsfilter/script"
	"github.com/ausocean/vsfilter/sidedata"
)

// smoothedFPSWindow is the number of recent output frame durations
// averaged for Status.SmoothedOutputFrameSeconds.
const smoothedFPSWindow = 30

// frameRateScale matches handler's FRAME_RATE_SCALE (spec §4.6): fps
// values on the wire are scaled by 1000 rather than carried as a
// fraction.
const frameRateScale = 1000

// Downstream is the out-of-scope collaborator a real COM/DirectShow
// output pin would be (spec §1): it accepts finished samples and, during
// a runtime format change (spec §4.4.5), is offered candidate output
// media types via ReceiveConnection rather than QueryAccept, since it
// must be allowed to counter-propose.
type Downstream interface {
	Deliver(s *sample.Sample) error
	ReceiveConnection(mt pixfmt.MediaType) bool
}

// Shell is the filter shell: it owns the negotiation engine, the frame
// handler, the sample allocator output samples are drawn from, and the
// ambient config/logger/status bookkeeping.
type Shell struct {
	Config     *config.Config
	Engine     *negotiate.Engine
	Handler    *handler.FrameHandler
	Processor  script.FrameProcessor
	Allocator  *sample.Allocator
	Downstream Downstream

	mu         sync.RWMutex
	status     Status
	durations  []float64
	bitrate    bitrate.Calculator
	lastSample *realtime.RealTime

	probeMu sync.Mutex
	probe   io.WriteCloser

	previewMu sync.Mutex
	preview   *Preview
}

// New returns a Shell wired to cfg, proc and downstream. The caller must
// still call Allocator and Engine/Handler setup (Enumerate, SetFormat)
// before Start, per the negotiation protocol of spec §4.4.
func New(cfg *config.Config, proc script.FrameProcessor, downstream Downstream, alloc *sample.Allocator) *Shell {
	engine := negotiate.New(proc, cfg.ScriptPath)
	s := &Shell{
		Config:     cfg,
		Engine:     engine,
		Processor:  proc,
		Downstream: downstream,
		Allocator:  alloc,
		lastSample: realtime.NewRealTime(),
	}
	s.Handler = handler.New(proc, cfg.ScriptPath, s)
	s.Handler.SetExtraSourceBuffer(int(cfg.ExtraSourceBuffer))
	s.status.ScriptState = ScriptStopped
	s.status.ScriptPath = cfg.ScriptPath
	return s
}

// Start spawns the frame handler's delivery worker, per spec §4.5.6.
func (s *Shell) Start() {
	s.Handler.Start()
	s.mu.Lock()
	s.status.ScriptState = ScriptRunning
	s.mu.Unlock()
	s.log(logging.Info, "filter shell started")
}

// Stop stops the frame handler: it raises the handler's stop flag, runs
// interim, and waits for the delivery worker to exit. It does not flush:
// queued source frames and pending output entries are left in place.
func (s *Shell) Stop(interim func() error) error {
	err := s.Handler.Stop(interim)
	s.mu.Lock()
	s.status.ScriptState = ScriptStopped
	s.mu.Unlock()
	return err
}

// SetProbe installs p as a debug tap receiving a copy of every delivered
// sample's raw bytes, mirroring revid.Revid.SetProbe. Must be called
// before Start.
func (s *Shell) SetProbe(p io.WriteCloser) error {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	s.probe = ioext.MultiWriteCloser(nopWriteCloser{}, p)
	return nil
}

// SetPreview installs p as a debug window shown the converted main plane
// of every source frame (spec §4.5.1 step 7's conversion output), the
// way revid's motion filters expose an optional withcv preview. Pass nil
// to disable. Safe to call at any time; takes effect on the next
// AddInputSample.
func (s *Shell) SetPreview(p *Preview) {
	s.previewMu.Lock()
	s.preview = p
	s.previewMu.Unlock()

	if p == nil {
		s.Handler.PreviewTap = nil
		return
	}
	s.Handler.PreviewTap = func(mainPlane []byte, width, height, stride int, formatName string) {
		s.previewMu.Lock()
		cur := s.preview
		s.previewMu.Unlock()
		if cur != nil {
			cur.Show(mainPlane, width, height, stride, formatName)
		}
	}
}

// ReloadScript implements scriptwatch.Reloader: it re-runs the runtime
// format-change path (spec §4.4.5) against the currently connected input
// media type, so an on-disk script edit takes effect without a fresh
// pin connection.
func (s *Shell) ReloadScript() error {
	entry, ok := s.Engine.Current()
	if !ok {
		return fmt.Errorf("filter: reload script: no active connection")
	}
	return s.onFormatChange(entry.InputMediaType)
}

// SetScriptPath updates the script path used by future Reload calls,
// implementing the remote-control protocol's write access (spec §6.3).
func (s *Shell) SetScriptPath(path string) error {
	s.mu.Lock()
	s.Config.ScriptPath = path
	s.Engine.ScriptPath = path
	s.Handler.ScriptPath = path
	s.status.ScriptPath = path
	s.mu.Unlock()
	return nil
}

// Receive implements the filter shell's receive path (spec §2's data
// flow: "upstream sample -> Filter.Receive -> FrameHandler.AddInputSample").
func (s *Shell) Receive(smp *sample.Sample) error {
	s.mu.Lock()
	s.lastSample.Set(time.Now())
	s.mu.Unlock()

	err := s.Handler.AddInputSample(smp, s.onFormatChange)
	if err != nil {
		if err == handler.ErrSkipped {
			s.log(logging.Debug, "input sample skipped")
			return nil
		}
		s.log(logging.Error, "input sample failed", "error", err)
		s.setScriptError(err)
		return err
	}
	s.refreshInputStatus()
	return nil
}

// Deliver implements handler.Sink: it wraps the worker's finished bytes
// in an allocator-owned Sample, copies HDR side data onto it (spec
// §4.5.3 step 4), taps the debug probe if set, and hands the sample to
// Downstream.
func (s *Shell) Deliver(buf []byte, start, stop int64, discontinuity bool, hdr *sidedata.Store) error {
	var smp *sample.Sample
	var err error
	if s.Allocator != nil {
		smp, err = s.Allocator.Alloc()
		if err != nil {
			return fmt.Errorf("filter: allocate output sample: %w", err)
		}
		copy(smp.Buffer, buf)
	} else {
		smp = sample.New(buf)
	}
	smp.SetStartTime(start)
	smp.SetStopTime(stop)
	smp.Discontinuity = discontinuity
	if hdr != nil {
		hdr.WriteTo(smp)
	}

	s.probeMu.Lock()
	p := s.probe
	s.probeMu.Unlock()
	if p != nil {
		p.Write(buf)
	}

	s.bitrate.Report(len(buf))
	s.recordDuration(float64(stop-start) / 1e7)

	if err := s.Downstream.Deliver(smp); err != nil {
		return fmt.Errorf("filter: downstream delivery: %w", err)
	}
	return nil
}

// onFormatChange implements spec §4.4.5's runtime format-change path: it
// is invoked by FrameHandler.AddInputSample when a sample carries an
// attached media type.
func (s *Shell) onFormatChange(mt pixfmt.MediaType) error {
	s.Handler.BeginFlush()
	defer func() {
		_ = s.Handler.EndFlush(func() error { return nil })
	}()

	err := s.Engine.HandleFormatChange(mt, s.Handler, s.Downstream.ReceiveConnection)
	if err != nil {
		s.setScriptError(err)
		return fmt.Errorf("filter: format change: %w", err)
	}

	entry, ok := s.Engine.Current()
	if !ok {
		return fmt.Errorf("filter: format change: no active entry after HandleFormatChange")
	}
	ivf, err := pixfmt.GetVideoFormat(entry.InputMediaType)
	if err != nil {
		return fmt.Errorf("filter: format change: input video format: %w", err)
	}
	ovf, err := pixfmt.GetVideoFormat(entry.OutputMediaType)
	if err != nil {
		return fmt.Errorf("filter: format change: output video format: %w", err)
	}
	info, err := s.Processor.VideoInfo()
	if err != nil {
		return fmt.Errorf("filter: format change: script video info: %w", err)
	}
	s.Handler.SetFormat(ivf, ovf, info)
	s.Engine.SetCurrentOutputFormat(entry.OutputPixelFormat)

	s.mu.Lock()
	s.status.InputWidth = ivf.Width
	s.status.InputHeight = ivf.Height
	s.status.CodecFourCC = ivf.Format.Subtype
	s.status.ScriptState = ScriptRunning
	s.status.ScriptError = ""
	s.mu.Unlock()

	s.log(logging.Info, "runtime format change accepted", "subtype", ivf.Format.Subtype)
	return nil
}

// refreshInputStatus updates the Status fields derived from the
// handler's current format state after a successful Receive.
func (s *Shell) refreshInputStatus() {
	ivf := s.Handler.CurrentInputFormat()
	ovf := s.Handler.CurrentOutputFormat()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.ScriptState == ScriptError {
		return
	}
	s.status.InputWidth = ivf.Width
	s.status.InputHeight = ivf.Height
	s.status.CodecFourCC = ivf.Format.Subtype
	s.status.HDRType = ivf.HDRType
	s.status.HDRLuminance = ivf.HDRLuminance
	if ivf.ParDen != 0 {
		s.status.InputPARScaled = ivf.ParNum * 1000 / ivf.ParDen
	}
	if ivf.FrameDuration != 0 {
		s.status.InputFPSScaled = 1e7 * frameRateScale / ivf.FrameDuration
		s.status.SourceAvgFPSScaled = s.status.InputFPSScaled
	}
	if ovf.FrameDuration != 0 {
		s.status.OutputFPSScaled = 1e7 * frameRateScale / ovf.FrameDuration
	}
}

func (s *Shell) setScriptError(err error) {
	s.mu.Lock()
	s.status.ScriptState = ScriptError
	s.status.ScriptError = err.Error()
	s.mu.Unlock()
}

// Status returns a snapshot of the filter's current state, per spec
// §6.3.
func (s *Shell) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.LastSampleAt = s.lastSample.Get()
	st.Bitrate = s.bitrate.Bitrate()
	if len(s.durations) > 0 {
		st.SmoothedOutputFrameSeconds = stat.Mean(s.durations, nil)
	}
	return st
}

func (s *Shell) recordDuration(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, seconds)
	if len(s.durations) > smoothedFPSWindow {
		s.durations = s.durations[len(s.durations)-smoothedFPSWindow:]
	}
}

func (s *Shell) log(level int8, msg string, params ...interface{}) {
	if s.Config == nil || s.Config.Logger == nil {
		return
	}
	switch level {
	case logging.Debug:
		s.Config.Logger.Debug(msg, params...)
	case logging.Warning:
		s.Config.Logger.Warning(msg, params...)
	case logging.Error:
		s.Config.Logger.Error(msg, params...)
	default:
		s.Config.Logger.Info(msg, params...)
	}
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
