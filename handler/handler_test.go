/*
NAME
  handler_test.go

DESCRIPTION
  handler_test.go tests FrameHandler against the spec §8 scenarios:
  identity passthrough (S1), back-pressure/starvation (S2), fps doubling
  (S3), HDR passthrough (S5) and flush-during-starvation (S6), using a
  scripttest.Fake processor and a recording Sink double, in the style of
  revid/senders_test.go's recording destination double.

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
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/sample"
	"github.com/ausocean/vsfilter/script/scripttest"
	"github.com/ausocean/vsfilter/sidedata"
)

// timing records the delivered times and discontinuity flag of one
// Sink.Deliver call, for assertions against spec §4.6/§8 scenarios S1
// and S3.
type timing struct {
	start, stop   int64
	discontinuity bool
}

// recordingSink collects every delivered sample for assertions.
type recordingSink struct {
	mu      sync.Mutex
	bufs    [][]byte
	hdrs    []*sidedata.Store
	timings []timing
	cond    *sync.Cond
}

func newRecordingSink() *recordingSink {
	s := &recordingSink{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *recordingSink) Deliver(buf []byte, start, stop int64, discontinuity bool, hdr *sidedata.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	s.bufs = append(s.bufs, cp)
	s.hdrs = append(s.hdrs, hdr)
	s.timings = append(s.timings, timing{start, stop, discontinuity})
	s.cond.Broadcast()
	return nil
}

func (s *recordingSink) hdrAt(i int) *sidedata.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.hdrs) {
		return nil
	}
	return s.hdrs[i]
}

func (s *recordingSink) timingAt(i int) timing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.timings) {
		return timing{}
	}
	return s.timings[i]
}

func (s *recordingSink) waitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.bufs) < n {
		if time.Now().After(deadline) {
			return false
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
		s.mu.Lock()
	}
	return true
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bufs)
}

func nv12Format(w, h int) pixfmt.VideoFormat {
	pf, _ := pixfmt.BySubtype("NV12")
	return pixfmt.VideoFormat{
		Format:        pf,
		Width:         w,
		Height:        h,
		FrameDuration: avgFrameDuration(25, 1),
	}
}

func nv12MediaType(w, h int) pixfmt.MediaType {
	return pixfmt.MediaType{
		Subtype: "NV12",
		VideoInfo: pixfmt.VideoInfoHeader{
			Bmi: pixfmt.BitmapInfoHeader{Width: int32(w), Height: int32(h), BitCount: uint16(12)},
		},
	}
}

func newTestHandler(t *testing.T, w, hgt int, sink *recordingSink) *FrameHandler {
	t.Helper()
	proc := scripttest.New(scripttest.VideoInfo{
		Width: w, Height: hgt, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1,
	})
	fh := New(proc, "script.avsi", sink)
	if res := proc.Reload("script.avsi", nv12MediaType(w, hgt), false, fh); !res.OK {
		t.Fatalf("Reload failed: %v", res.Err)
	}
	info, err := proc.VideoInfo()
	if err != nil {
		t.Fatal(err)
	}
	vf := nv12Format(w, hgt)
	fh.SetFormat(vf, vf, info)
	fh.Start()
	t.Cleanup(func() { fh.Stop(nil) })
	return fh
}

func nv12Sample(w, h int, fill byte) *sample.Sample {
	pf, _ := pixfmt.BySubtype("NV12")
	buf := make([]byte, pixfmt.BitmapSize(pf, w, h))
	for i := range buf {
		buf[i] = fill
	}
	s := sample.New(buf)
	return s
}

// TestIdentityPassthrough covers spec §8 scenario S1: a 1:1 frame-rate
// script should deliver exactly as many output samples as input samples,
// each timed from its matching source frame.
func TestIdentityPassthrough(t *testing.T) {
	sink := newRecordingSink()
	fh := newTestHandler(t, 4, 4, sink)

	const n = 5
	for i := 0; i < n; i++ {
		s := nv12Sample(4, 4, byte(i))
		s.SetStartTime(int64(i) * avgFrameDuration(25, 1))
		if err := fh.AddInputSample(s, nil); err != nil {
			t.Fatalf("AddInputSample(%d): %v", i, err)
		}
	}

	if !sink.waitFor(n, 2*time.Second) {
		t.Fatalf("sink got %d samples, want %d", sink.count(), n)
	}

	dur := avgFrameDuration(25, 1)
	for i := 0; i < n; i++ {
		got := sink.timingAt(i)
		wantStart, wantStop := int64(i)*dur, int64(i+1)*dur
		if got.start != wantStart || got.stop != wantStop {
			t.Errorf("frame %d: start=%d stop=%d, want start=%d stop=%d", i, got.start, got.stop, wantStart, wantStop)
		}
		if i == 0 && !got.discontinuity {
			t.Error("frame 0: discontinuity = false, want true")
		}
		if i != 0 && got.discontinuity {
			t.Errorf("frame %d: discontinuity = true, want false", i)
		}
	}
}

// TestHDRPassthrough covers spec §8 scenario S5: HDR mastering metadata
// and content-light-level attached to an inbound sample must ride
// through to the matching delivered sample byte-identical, and the
// handler's current input VideoFormat must record hdrType/hdrLuminance
// from the MaxCLL field.
func TestHDRPassthrough(t *testing.T) {
	sink := newRecordingSink()
	fh := newTestHandler(t, 4, 4, sink)

	hdrBlob := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 4)
	cll := make([]byte, 4)
	binary.LittleEndian.PutUint32(cll, 1000)

	s := nv12Sample(4, 4, 9)
	s.SetStartTime(0)
	if err := s.SideData().Store(sidedata.HDR, hdrBlob); err != nil {
		t.Fatalf("Store(HDR): %v", err)
	}
	if err := s.SideData().Store(sidedata.HDRContentLightLevel, cll); err != nil {
		t.Fatalf("Store(HDRContentLightLevel): %v", err)
	}
	if err := fh.AddInputSample(s, nil); err != nil {
		t.Fatalf("AddInputSample: %v", err)
	}

	if !sink.waitFor(1, 2*time.Second) {
		t.Fatalf("sink got %d samples, want 1", sink.count())
	}

	got := sink.hdrAt(0)
	if got == nil {
		t.Fatal("delivered sample carries no side-data store")
	}
	gotHDR, ok := got.Retrieve(sidedata.HDR)
	if !ok || !bytes.Equal(gotHDR, hdrBlob) {
		t.Fatalf("delivered HDR blob = %x, want %x (present=%v)", gotHDR, hdrBlob, ok)
	}
	gotCLL, ok := got.Retrieve(sidedata.HDRContentLightLevel)
	if !ok || !bytes.Equal(gotCLL, cll) {
		t.Fatalf("delivered MaxCLL = %x, want %x (present=%v)", gotCLL, cll, ok)
	}

	inFmt := fh.CurrentInputFormat()
	if inFmt.HDRType != 1 {
		t.Fatalf("inputFormat.HDRType = %d, want 1", inFmt.HDRType)
	}
	if inFmt.HDRLuminance != 1000 {
		t.Fatalf("inputFormat.HDRLuminance = %d, want 1000", inFmt.HDRLuminance)
	}
}

// TestBackPressureStarvation covers spec §8 scenario S2: with a slow
// script, feeding more samples than the source buffer holds must finish
// without deadlocking on back pressure, and every sample must be
// delivered.
func TestBackPressureStarvation(t *testing.T) {
	sink := newRecordingSink()
	proc := scripttest.New(scripttest.VideoInfo{
		Width: 4, Height: 4, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1,
	})
	proc.Delay = 50 * time.Millisecond
	fh := New(proc, "script.avsi", sink)
	if res := proc.Reload("script.avsi", nv12MediaType(4, 4), false, fh); !res.OK {
		t.Fatalf("Reload failed: %v", res.Err)
	}
	info, err := proc.VideoInfo()
	if err != nil {
		t.Fatal(err)
	}
	vf := nv12Format(4, 4)
	fh.SetFormat(vf, vf, info)
	fh.Start()
	defer fh.Stop(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < NumSourceFramesPerProcessing+3; i++ {
			s := nv12Sample(4, 4, byte(i))
			s.SetStartTime(int64(i) * avgFrameDuration(25, 1))
			fh.AddInputSample(s, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("AddInputSample calls never completed (deadlock?)")
	}

	if !sink.waitFor(NumSourceFramesPerProcessing+3, 3*time.Second) {
		t.Fatalf("sink got %d samples, want %d", sink.count(), NumSourceFramesPerProcessing+3)
	}
}

// TestPreviewTap verifies AddInputSample fires PreviewTap with the
// converted main plane of each source frame, the hook filter.Shell.
// SetPreview wires a debug window onto.
func TestPreviewTap(t *testing.T) {
	sink := newRecordingSink()
	fh := newTestHandler(t, 4, 4, sink)

	type call struct {
		width, height, stride int
		name                  string
		sum                   int
	}
	var mu sync.Mutex
	var calls []call
	fh.PreviewTap = func(mainPlane []byte, width, height, stride int, formatName string) {
		sum := 0
		for _, b := range mainPlane {
			sum += int(b)
		}
		mu.Lock()
		calls = append(calls, call{width, height, stride, formatName, sum})
		mu.Unlock()
	}

	s := nv12Sample(4, 4, 7)
	s.SetStartTime(0)
	if err := fh.AddInputSample(s, nil); err != nil {
		t.Fatalf("AddInputSample: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("got %d PreviewTap calls, want 1", len(calls))
	}
	c := calls[0]
	if c.width != 4 || c.height != 4 || c.name != "NV12" {
		t.Fatalf("unexpected call %+v", c)
	}
	if c.sum != 4*4*7 {
		t.Fatalf("main plane sum = %d, want %d (fill byte not passed through)", c.sum, 4*4*7)
	}
}

// TestFPSDoubling covers spec §8 scenario S3: a script reporting twice
// the input's fps must deliver two output frames per source frame, each
// scriptDur (half the source frame duration) long.
func TestFPSDoubling(t *testing.T) {
	sink := newRecordingSink()
	proc := scripttest.New(scripttest.VideoInfo{
		Width: 4, Height: 4, PixelType: pixfmt.YUV420P8, FPSNum: 50, FPSDen: 1,
	})
	// Output index n maps to source index n/2: out 0,1 -> src 0; out 2,3
	// -> src 1; out 4 -> src 2, mirroring a script that repeats each
	// source frame once to double the frame rate.
	proc.Map = func(n int) int { return n / 2 }

	fh := New(proc, "script.avsi", sink)
	if res := proc.Reload("script.avsi", nv12MediaType(4, 4), false, fh); !res.OK {
		t.Fatalf("Reload failed: %v", res.Err)
	}
	info, err := proc.VideoInfo()
	if err != nil {
		t.Fatal(err)
	}
	// Input format reports 25 fps; the script (output) format reports 50.
	inFmt := nv12Format(4, 4)
	outFmt := inFmt
	outFmt.FrameDuration = avgFrameDuration(50, 1)
	fh.SetFormat(inFmt, outFmt, info)
	fh.Start()
	defer fh.Stop(nil)

	for i, start := range []int64{0, 400000, 800000} {
		s := nv12Sample(4, 4, byte(i))
		s.SetStartTime(start)
		if err := fh.AddInputSample(s, nil); err != nil {
			t.Fatalf("AddInputSample(%d): %v", i, err)
		}
	}

	if !sink.waitFor(4, 2*time.Second) {
		t.Fatalf("sink got %d samples, want at least 4", sink.count())
	}

	// Spec §8 S3: output frames at 0/200000, 200000/400000, 400000/600000,
	// 600000/800000.
	want := []timing{
		{0, 200000, true},
		{200000, 400000, false},
		{400000, 600000, false},
		{600000, 800000, false},
	}
	for i, w := range want {
		got := sink.timingAt(i)
		if got != w {
			t.Errorf("frame %d: got %+v, want %+v", i, got, w)
		}
	}
}

// TestFlushDuringStarvation covers spec §8 scenario S6: beginning a flush
// while the worker is waiting on an output frame the slow script has not
// produced yet must let that request resolve (its source pulls get the
// drain frame) rather than hang EndFlush forever.
func TestFlushDuringStarvation(t *testing.T) {
	sink := newRecordingSink()
	proc := scripttest.New(scripttest.VideoInfo{
		Width: 4, Height: 4, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1,
	})
	proc.Delay = 200 * time.Millisecond
	fh := New(proc, "script.avsi", sink)
	if res := proc.Reload("script.avsi", nv12MediaType(4, 4), false, fh); !res.OK {
		t.Fatalf("Reload failed: %v", res.Err)
	}
	info, err := proc.VideoInfo()
	if err != nil {
		t.Fatal(err)
	}
	vf := nv12Format(4, 4)
	fh.SetFormat(vf, vf, info)
	fh.Start()
	defer fh.Stop(nil)

	s := nv12Sample(4, 4, 1)
	s.SetStartTime(0)
	if err := fh.AddInputSample(s, nil); err != nil {
		t.Fatalf("AddInputSample: %v", err)
	}

	fh.BeginFlush()
	flushDone := make(chan error, 1)
	go func() { flushDone <- fh.EndFlush(nil) }()

	select {
	case err := <-flushDone:
		if err != nil {
			t.Fatalf("EndFlush: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("EndFlush never returned (starvation not drained)")
	}
}
