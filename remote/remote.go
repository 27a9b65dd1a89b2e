/*
NAME
  remote.go

DESCRIPTION
  remote.go provides a minimal, transport-agnostic realization of the
  remote-control protocol summarised in spec §6.3: a message transport
  identified by a class name carries typed requests keyed by numeric
  message ID; the core exposes read access to filter status fields and
  write access to the script path. The concrete IPC transport (a socket,
  a named pipe, a window message) is an external collaborator (spec §1)
  this package does not define.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package remote implements the read/write surface of the remote-control
// protocol (spec §6.3) over filter.Status and filter.Shell.SetScriptPath,
// independent of whatever IPC transport a real deployment wires it to.
package remote

import (
	"fmt"

	"github.com/ausocean/vsfilter/filter"
)

// MessageID identifies one field of the remote-control protocol, per
// spec §6.3's "typed requests with numeric message IDs."
type MessageID int

// The remote-control protocol's read/write surface (spec §6.3).
const (
	MsgInputWidth MessageID = iota
	MsgInputHeight
	MsgInputPAR
	MsgInputFPS
	MsgOutputFPS
	MsgCodecFourCC
	MsgHDRType
	MsgHDRLuminance
	MsgSourceAvgFPS
	MsgScriptState
	MsgScriptError
	MsgScriptPath
	MsgSetScriptPath
)

// ErrUnknownMessage is returned by Handle for a MessageID outside the
// protocol's surface.
var ErrUnknownMessage = fmt.Errorf("remote: unknown message id")

// Request is one remote-control call. Value is only read for
// MsgSetScriptPath.
type Request struct {
	ID    MessageID
	Value string
}

// Response carries a request's result. String responses are UTF-8
// (spec §6.3); numeric responses are the typed API return value, held
// here as an int64 regardless of the field's native width.
type Response struct {
	ID       MessageID
	IsString bool
	Str      string
	Num      int64
}

// ScriptPathSetter is implemented by filter.Shell: the only remote
// write access the protocol exposes (spec §6.3).
type ScriptPathSetter interface {
	SetScriptPath(path string) error
}

// Handler answers remote-control requests against a status source and a
// script-path setter, per spec §6.3.
type Handler struct {
	Status func() filter.Status
	Script ScriptPathSetter
}

// New returns a Handler backed by status and script.
func New(status func() filter.Status, script ScriptPathSetter) *Handler {
	return &Handler{Status: status, Script: script}
}

// Handle answers one Request.
func (h *Handler) Handle(req Request) (Response, error) {
	if req.ID == MsgSetScriptPath {
		if h.Script == nil {
			return Response{}, fmt.Errorf("remote: no script path setter configured")
		}
		if err := h.Script.SetScriptPath(req.Value); err != nil {
			return Response{}, fmt.Errorf("remote: set script path: %w", err)
		}
		return Response{ID: req.ID, IsString: true, Str: req.Value}, nil
	}

	st := h.Status()
	switch req.ID {
	case MsgInputWidth:
		return Response{ID: req.ID, Num: int64(st.InputWidth)}, nil
	case MsgInputHeight:
		return Response{ID: req.ID, Num: int64(st.InputHeight)}, nil
	case MsgInputPAR:
		return Response{ID: req.ID, Num: int64(st.InputPARScaled)}, nil
	case MsgInputFPS:
		return Response{ID: req.ID, Num: st.InputFPSScaled}, nil
	case MsgOutputFPS:
		return Response{ID: req.ID, Num: st.OutputFPSScaled}, nil
	case MsgCodecFourCC:
		return Response{ID: req.ID, IsString: true, Str: st.CodecFourCC}, nil
	case MsgHDRType:
		return Response{ID: req.ID, Num: int64(st.HDRType)}, nil
	case MsgHDRLuminance:
		return Response{ID: req.ID, Num: int64(st.HDRLuminance)}, nil
	case MsgSourceAvgFPS:
		return Response{ID: req.ID, Num: st.SourceAvgFPSScaled}, nil
	case MsgScriptState:
		return Response{ID: req.ID, Num: int64(st.ScriptState)}, nil
	case MsgScriptError:
		return Response{ID: req.ID, IsString: true, Str: st.ScriptError}, nil
	case MsgScriptPath:
		return Response{ID: req.ID, IsString: true, Str: st.ScriptPath}, nil
	default:
		return Response{}, ErrUnknownMessage
	}
}
