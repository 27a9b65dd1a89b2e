/*
NAME
  reconnect_test.go

DESCRIPTION
  reconnect_test.go tests the watermark-based reconnection protocol (spec
  §4.4.4) and output-type synthesis (spec §4.4.3).

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
	"testing"

	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/script/scripttest"
)

// buildMultiInputSet enumerates two distinct input candidates (NV12 and
// YV12), each fanning out to every YUV420P8 output format, so Reconnect
// has real cross-input candidates to walk: entries[0..3] are input NV12
// with outputs NV12/YV12/I420/IYUV, entries[4..7] are input YV12 with the
// same four outputs (ByProcType table order).
func buildMultiInputSet(t *testing.T) *Engine {
	t.Helper()
	proc := scripttest.New(scripttest.VideoInfo{Width: 640, Height: 480, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1})
	e := New(proc, "script.avsi")
	if err := e.Enumerate(nv12MediaType(), nopSource{}); err != nil {
		t.Fatal(err)
	}
	yv12 := nv12MediaType()
	yv12.Subtype = "YV12"
	if err := e.Enumerate(yv12, nopSource{}); err != nil {
		t.Fatal(err)
	}
	e.Connect(0) // NV12 in, NV12 out
	return e
}

func TestReconnectSkipsWatermarkedCandidates(t *testing.T) {
	e := buildMultiInputSet(t)

	// Simulate the script's output format changing without a fresh
	// Enumerate: the connection's actual output no longer matches
	// entries[0].OutputPixelFormat, so Reconnect must walk candidates
	// whose input format matches the new output format.
	e.SetCurrentOutputFormat(e.entries[1].OutputPixelFormat)

	var tried []string
	accept := func(mt pixfmt.MediaType) bool {
		tried = append(tried, mt.Subtype)
		return false
	}
	_, err := e.Reconnect(accept)
	if err != ErrReconnectExhausted {
		t.Fatalf("Reconnect() err = %v, want ErrReconnectExhausted", err)
	}
	if len(tried) == 0 {
		t.Fatal("Reconnect never attempted any candidate")
	}

	// A second call should not retry candidates already attempted: the
	// watermark must have advanced, so cumulative attempts across both
	// calls never exceed the total candidate count.
	triedBefore := len(tried)
	_, err = e.Reconnect(accept)
	if err != ErrReconnectExhausted {
		t.Fatalf("second Reconnect() err = %v, want ErrReconnectExhausted", err)
	}
	if len(tried) != triedBefore {
		t.Fatalf("second Reconnect tried %d more candidates, want 0 (watermark exhausted)", len(tried)-triedBefore)
	}
}

func TestReconnectAcceptsCandidate(t *testing.T) {
	e := buildMultiInputSet(t)
	e.SetCurrentOutputFormat(e.entries[1].OutputPixelFormat)

	accept := func(mt pixfmt.MediaType) bool { return true }
	ent, err := e.Reconnect(accept)
	if err != nil {
		t.Fatalf("Reconnect() = %v, want nil", err)
	}
	if ent.InputMediaType.Subtype == "" {
		t.Fatal("Reconnect returned zero-value entry on success")
	}
	got, _ := e.Current()
	if got.InputMediaType.Subtype != ent.InputMediaType.Subtype {
		t.Error("Current() does not reflect accepted reconnection")
	}
}

func TestSynthesizeOutputTypeFourCC(t *testing.T) {
	input := nv12MediaType()
	ip, _ := pixfmt.BySubtype("NV12")
	rgb32, _ := pixfmt.ByName("RGB32")
	info := scripttest.VideoInfo{Width: 640, Height: 480, PixelType: pixfmt.BGR32, FPSNum: 25, FPSDen: 1}

	out := SynthesizeOutputType(input, ip, rgb32, info)
	if out.VideoInfo.Bmi.Compression != "RGB" {
		t.Errorf("Compression = %q, want RGB for BGR32 output", out.VideoInfo.Bmi.Compression)
	}
	if out.VideoInfo.Bmi.Width != 640 || out.VideoInfo.Bmi.Height != 480 {
		t.Errorf("output dims = %dx%d, want 640x480", out.VideoInfo.Bmi.Width, out.VideoInfo.Bmi.Height)
	}
	if out.VideoInfo.AvgTimePerFrame != 400000 {
		t.Errorf("AvgTimePerFrame = %d, want 400000 (25fps)", out.VideoInfo.AvgTimePerFrame)
	}
}

func TestSynthesizeOutputTypeYUVFourCC(t *testing.T) {
	input := nv12MediaType()
	ip, _ := pixfmt.BySubtype("NV12")
	yv12, _ := pixfmt.ByName("YV12")
	info := scripttest.VideoInfo{Width: 640, Height: 480, PixelType: pixfmt.YUV420P8, FPSNum: 25, FPSDen: 1}

	out := SynthesizeOutputType(input, ip, yv12, info)
	if out.VideoInfo.Bmi.Compression != "YV12" {
		t.Errorf("Compression = %q, want YV12", out.VideoInfo.Bmi.Compression)
	}
}
