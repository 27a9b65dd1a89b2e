/*
NAME
  config.go

DESCRIPTION
  config.go provides the filter's ambient configuration: the knobs a
  property page, registry/INI settings file or command-line flag set
  would drive, independent of the per-connection state the negotiation
  engine and frame handler own for themselves.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config holds the scripted video filter's configuration: the
// script path, frame-handler tuning knobs and logger, mirroring the
// shape of revid/config.Config (plain exported fields, a Validate
// method, an Update map for live reconfiguration).
package config

import "github.com/ausocean/utils/logging"

// Defaults for the tuning knobs below.
const (
	DefaultExtraSourceBuffer = 0
	DefaultIgnoreDisconnect  = false
)

// Config holds the filter's settings.
type Config struct {
	// ScriptPath is the path to the script the FrameProcessor loads. This
	// is the only field the remote-control protocol's write access (spec
	// §6.3) and scriptwatch's reload trigger mutate at runtime.
	ScriptPath string

	// ExtraSourceBuffer is the FrameHandler's extraSourceBuffer capacity
	// knob (spec §4.5): how many source frames beyond
	// NumSourceFramesPerProcessing may queue before AddInputSample
	// blocks. 0 is the spec's baseline back-pressure behaviour.
	ExtraSourceBuffer uint

	// IgnoreDisconnect is carried with the other settings but is not read
	// by the filter: the initial enumeration (spec §4.4.1) always calls
	// Reload with ignoreDisconnect=false, so a script that signals
	// "no-clip" for a probed input type makes Enumerate fail with
	// ErrDisconnected whatever this is set to.
	IgnoreDisconnect bool

	// Logger holds an implementation of the Logger interface. This must
	// be set for the filter to work correctly.
	Logger logging.Logger

	// LogLevel is the filter's logging verbosity level. Valid values are
	// defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning, logging.Error, logging.Fatal.
	LogLevel int8

	// Suppress holds logger suppression state.
	Suppress bool
}

// Validate checks for any errors in the config fields and defaults
// settings if particular parameters have not been defined.
func (c *Config) Validate() error {
	if c.ScriptPath == "" {
		c.LogInvalidField("ScriptPath", "")
	}
	return nil
}

// Update takes a map of configuration variable names and their
// corresponding values, parses the string values and sets the matching
// Config field. Unknown names are ignored.
func (c *Config) Update(vars map[string]string) {
	if v, ok := vars["ScriptPath"]; ok {
		c.ScriptPath = v
	}
}

// LogInvalidField logs that a field was bad or unset and the default
// value substituted, matching revid/config.Config.LogInvalidField.
func (c *Config) LogInvalidField(name string, def interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
