/*
NAME
  main.go

DESCRIPTION
  vsfiltermux is a demonstration binary wiring the scripted video filter
  (pixfmt/convert/sidedata/sample/negotiate/handler/filter) end to end
  outside of any COM/DirectShow graph: it reads raw NV12 frames from a
  file, drives them through filter.Shell, and writes the processed
  output to another file. It plays the role cmd/rv/main.go plays for
  revid: a thin, loggable, systemd-aware process around the library.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vsfiltermux is a demonstration driver for the scripted video
// filter pipeline.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vsfilter/convert"
	"github.com/ausocean/vsfilter/filter"
	"github.com/ausocean/vsfilter/filter/config"
	"github.com/ausocean/vsfilter/pixfmt"
	"github.com/ausocean/vsfilter/remote"
	"github.com/ausocean/vsfilter/sample"
	"github.com/ausocean/vsfilter/script/scripttest"
	"github.com/ausocean/vsfilter/scriptwatch"
)

// Logging related constants, mirroring cmd/rv/main.go's lumberjack
// wiring.
const (
	logPath      = "/var/log/vsfiltermux/vsfiltermux.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 14 // days
	logVerbosity = logging.Debug
	logSuppress  = false
)

// fileDownstream is a minimal Downstream that appends every delivered
// sample's raw bytes to an output file, standing in for the out-of-scope
// DirectShow output pin.
type fileDownstream struct {
	w io.WriteCloser
}

func (d *fileDownstream) Deliver(s *sample.Sample) error {
	_, err := d.w.Write(s.Buffer)
	return err
}

// ReceiveConnection always accepts, since there is no real downstream
// pin to counter-propose against in this demo.
func (d *fileDownstream) ReceiveConnection(mt pixfmt.MediaType) bool { return true }

func main() {
	scriptPath := flag.String("script", "", "path to the script file FrameProcessor binds to")
	inputPath := flag.String("input", "", "path to a raw NV12 input file")
	outputPath := flag.String("output", "", "path to write the processed output to")
	width := flag.Int("width", 1920, "input frame width")
	height := flag.Int("height", 1080, "input frame height")
	fpsNum := flag.Int("fps-num", 25, "input frame rate numerator")
	fpsDen := flag.Int("fps-den", 1, "input frame rate denominator")
	preview := flag.Bool("preview", false, "show a debug window of the converted frame (requires a withcv build)")
	flag.Parse()

	if *scriptPath == "" || *inputPath == "" || *outputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vsfiltermux -script=... -input=... -output=...")
		os.Exit(2)
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)
	log.Info("starting vsfiltermux")

	in, err := os.Open(*inputPath)
	if err != nil {
		log.Fatal("could not open input", "error", err)
	}
	defer in.Close()

	out, err := os.Create(*outputPath)
	if err != nil {
		log.Fatal("could not create output", "error", err)
	}
	defer out.Close()

	cfg := &config.Config{
		ScriptPath: *scriptPath,
		Logger:     log,
		LogLevel:   logVerbosity,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "error", err)
	}

	// The concrete scripting runtime is an external collaborator (spec
	// §1, §6.4); scripttest.Fake stands in here so this demo is runnable
	// without one. A real deployment injects its own script.FrameProcessor
	// implementation in its place.
	proc := scripttest.New(scripttest.VideoInfo{
		Width: *width, Height: *height,
		PixelType: pixfmt.YUV420P8,
		FPSNum:    *fpsNum, FPSDen: *fpsDen,
	})

	alloc, err := sample.NewAllocator(pixfmt.BitmapSize(mustNV12(), *width, *height), 8, 0, sample.StrideAlignment)
	if err != nil {
		log.Fatal("could not create sample allocator", "error", err)
	}

	downstream := &fileDownstream{w: out}
	shell := filter.New(cfg, proc, downstream, alloc)

	inputType := nv12MediaType(*width, *height, *fpsNum, *fpsDen)
	if err := shell.Engine.Enumerate(inputType, shell.Handler); err != nil {
		log.Fatal("negotiation failed", "error", err)
	}
	shell.Engine.Connect(0)
	entry, _ := shell.Engine.Current()
	ivf, err := pixfmt.GetVideoFormat(entry.InputMediaType)
	if err != nil {
		log.Fatal("input video format", "error", err)
	}
	ovf, err := pixfmt.GetVideoFormat(entry.OutputMediaType)
	if err != nil {
		log.Fatal("output video format", "error", err)
	}
	info, err := proc.VideoInfo()
	if err != nil {
		log.Fatal("script video info", "error", err)
	}
	shell.Handler.SetFormat(ivf, ovf, info)

	if *preview {
		p := filter.NewPreview("vsfiltermux")
		shell.SetPreview(p)
		defer p.Close()
	}

	watcher, err := scriptwatch.New(*scriptPath, shell, log)
	if err != nil {
		log.Error("could not create script watcher", "error", err)
	} else if err := watcher.Start(); err != nil {
		log.Error("could not start script watcher", "error", err)
	} else {
		defer watcher.Stop()
	}

	remoteHandler := remote.New(shell.Status, shell)
	_ = remoteHandler // wired for an external IPC transport (out of scope, spec §1) to drive.

	shell.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go pump(shell, in, int(pixfmt.BitmapSize(ivf.Format, ivf.Width, ivf.Height)), ivf.FrameDuration, log, done)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warning("sd_notify failed", "error", err)
	} else if sent {
		log.Info("sd_notify(READY=1) sent")
	}

	select {
	case <-sig:
		log.Info("received signal, stopping")
	case <-done:
		log.Info("input exhausted, stopping")
	}

	if err := shell.Stop(func() error { return nil }); err != nil {
		log.Error("stop failed", "error", err)
	}
}

// pump reads fixed-size frames from r and feeds them to shell.Receive as
// fast as Receive accepts them, with start times frameDuration apart,
// closing done when r is exhausted. Each
// sample's buffer carries convert.InputPadding trailing bytes beyond
// frameSize, per spec §6.2/§4.2 (this demo doubles as the input-sample
// allocator a real upstream pin would otherwise own).
func pump(shell *filter.Shell, r io.Reader, frameSize int, frameDuration int64, log logging.Logger, done chan struct{}) {
	defer close(done)
	buf := make([]byte, frameSize)
	var startTime int64
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Error("read input frame failed", "error", err)
			}
			return
		}
		padded := make([]byte, frameSize+convert.InputPadding())
		copy(padded, buf)
		s := sample.New(padded[:frameSize])
		s.SetStartTime(startTime)
		if err := shell.Receive(s); err != nil {
			log.Warning("receive failed", "error", err)
		}
		startTime += frameDuration
	}
}

func nv12MediaType(w, h, fpsNum, fpsDen int) pixfmt.MediaType {
	avgFrameDuration := int64(10000000) * int64(fpsDen) / int64(fpsNum)
	return pixfmt.MediaType{
		Subtype: "NV12",
		VideoInfo: pixfmt.VideoInfoHeader{
			IsV2:            true,
			AvgTimePerFrame: avgFrameDuration,
			Bmi: pixfmt.BitmapInfoHeader{
				Width: int32(w), Height: int32(h), BitCount: 12,
			},
		},
	}
}

func mustNV12() pixfmt.PixelFormat {
	pf, ok := pixfmt.BySubtype("NV12")
	if !ok {
		panic("pixfmt: NV12 missing from table")
	}
	return pf
}
