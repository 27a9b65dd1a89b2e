//go:build !withcv
// +build !withcv

/*
NAME
  preview_stub.go

DESCRIPTION
  preview_stub.go replaces Preview when built without gocv, exactly the
  role filters_circleci.go played for the teacher's motion filters: this
  filter links and runs without OpenCV installed (e.g. under CI).

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

// Preview is a no-op stand-in for the withcv-tagged debug preview
// window.
type Preview struct{}

// NewPreview returns a no-op Preview.
func NewPreview(name string) *Preview { return &Preview{} }

// Show does nothing in the !withcv build.
func (p *Preview) Show(mainPlane []byte, width, height, stride int, formatName string) {}

// Close does nothing in the !withcv build.
func (p *Preview) Close() error { return nil }
