/*
NAME
  shell_test.go

DESCRIPTION
  shell_test.go exercises Shell's receive/deliver/format-change wiring
  against a scripttest.Fake processor and a recording Downstream double,
  in the style of handler_test.go's recordingSink.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/ausocean/vsfilter/filter/config"
	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/sample"
	"github.com/ausocean/vsfilter/script/scripttest"
)

// recordingDownstream collects delivered samples and always accepts a
// ReceiveConnection offer, standing in for the out-of-scope DirectShow
// output pin.
type recordingDownstream struct {
	mu      sync.Mutex
	samples []*sample.Sample
	cond    *sync.Cond
}

func newRecordingDownstream() *recordingDownstream {
	d := &recordingDownstream{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *recordingDownstream) Deliver(s *sample.Sample) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, s)
	d.cond.Broadcast()
	return nil
}

func (d *recordingDownstream) ReceiveConnection(mt pixfmt.MediaType) bool { return true }

func (d *recordingDownstream) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}

func (d *recordingDownstream) waitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.samples) < n {
		if time.Now().After(deadline) {
			return false
		}
		d.mu.Unlock()
		time.Sleep(time.Millisecond)
		d.mu.Lock()
	}
	return true
}

func nv12MediaType(w, h int) pixfmt.MediaType {
	return pixfmt.MediaType{
		Subtype: "NV12",
		VideoInfo: pixfmt.VideoInfoHeader{
			Bmi: pixfmt.BitmapInfoHeader{Width: int32(w), Height: int32(h), BitCount: 12},
		},
	}
}

func newTestShell(t *testing.T, proc *scripttest.Fake, ds *recordingDownstream) *Shell {
	t.Helper()
	cfg := &config.Config{ScriptPath: "identity.avs"}
	sh := New(cfg, proc, ds, nil)

	mt := nv12MediaType(4, 2)
	if err := sh.Engine.Enumerate(mt, sh.Handler); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	sh.Engine.Connect(0)
	entry, _ := sh.Engine.Current()
	ivf, err := pixfmt.GetVideoFormat(entry.InputMediaType)
	if err != nil {
		t.Fatalf("GetVideoFormat input: %v", err)
	}
	ovf, err := pixfmt.GetVideoFormat(entry.OutputMediaType)
	if err != nil {
		t.Fatalf("GetVideoFormat output: %v", err)
	}
	info, err := proc.VideoInfo()
	if err != nil {
		t.Fatalf("VideoInfo: %v", err)
	}
	sh.Handler.SetFormat(ivf, ovf, info)
	return sh
}

func TestShellIdentityPassthrough(t *testing.T) {
	proc := scripttest.New(scripttest.VideoInfo{Width: 4, Height: 2, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1})
	ds := newRecordingDownstream()
	sh := newTestShell(t, proc, ds)
	sh.Start()
	defer sh.Stop(func() error { return nil })

	buf := make([]byte, 4*2+4*2/2)
	for i := range buf {
		buf[i] = byte(i)
	}
	s := sample.New(buf)
	s.SetStartTime(0)

	if err := sh.Receive(s); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if !ds.waitFor(1, time.Second) {
		t.Fatalf("expected one delivered sample, got %d", ds.count())
	}

	st := sh.Status()
	if st.InputWidth != 4 || st.InputHeight != 2 {
		t.Fatalf("unexpected status geometry: %+v", st)
	}
	if st.CodecFourCC != "NV12" {
		t.Fatalf("unexpected codec: %q", st.CodecFourCC)
	}
}

// TestShellSetPreview verifies SetPreview wires and unwires the frame
// handler's PreviewTap hook.
func TestShellSetPreview(t *testing.T) {
	proc := scripttest.New(scripttest.VideoInfo{Width: 4, Height: 2, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1})
	ds := newRecordingDownstream()
	sh := newTestShell(t, proc, ds)

	if sh.Handler.PreviewTap != nil {
		t.Fatalf("PreviewTap set before SetPreview called")
	}

	sh.SetPreview(NewPreview("test"))
	if sh.Handler.PreviewTap == nil {
		t.Fatalf("SetPreview did not install PreviewTap")
	}

	sh.SetPreview(nil)
	if sh.Handler.PreviewTap != nil {
		t.Fatalf("SetPreview(nil) did not clear PreviewTap")
	}
}

func TestShellSetScriptPath(t *testing.T) {
	proc := scripttest.New(scripttest.VideoInfo{Width: 4, Height: 2, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1})
	ds := newRecordingDownstream()
	sh := newTestShell(t, proc, ds)

	if err := sh.SetScriptPath("other.avs"); err != nil {
		t.Fatalf("SetScriptPath: %v", err)
	}
	if sh.Status().ScriptPath != "other.avs" {
		t.Fatalf("status did not reflect new script path")
	}
	if sh.Engine.ScriptPath != "other.avs" {
		t.Fatalf("engine script path not updated")
	}
}
