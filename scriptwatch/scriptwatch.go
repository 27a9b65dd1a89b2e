/*
NAME
  scriptwatch.go

DESCRIPTION
  scriptwatch.go watches the script file named by the filter's config
  for changes and triggers a reload, since the script is explicitly
  "reloadable" (spec §9) but nothing in the core's negotiation/frame
  pipeline polls the filesystem for it — that is this package's one job.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package scriptwatch watches the filter's script file for on-disk
// changes and triggers a reload, using fsnotify the way the rest of the
// ambient stack uses small, focused third-party libraries for one
// concern each.
package scriptwatch

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/utils/logging"
)

// debounce coalesces the burst of write/chmod events many editors and
// script interpreters emit for a single logical save.
const debounce = 200 * time.Millisecond

// Reloader is implemented by the filter shell: ReloadScript is invoked
// once per coalesced on-disk change to the watched script.
type Reloader interface {
	ReloadScript() error
}

// Watcher watches one script file and calls Reloader.ReloadScript on
// change.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	reloader Reloader
	logger   logging.Logger

	done chan struct{}
}

// New creates a Watcher for path. Call Start to begin watching.
func New(path string, r Reloader, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, path: path, reloader: r, logger: logger, done: make(chan struct{})}, nil
}

// Start adds the script path to the underlying fsnotify watch and spawns
// the event loop.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.path); err != nil {
		return err
	}
	go w.run()
	return nil
}

// Stop closes the underlying watcher and ends the event loop.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	var pending *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.done:
			if pending != nil {
				pending.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := w.reloader.ReloadScript(); err != nil && w.logger != nil {
				w.logger.Error("scriptwatch: reload failed", "path", w.path, "error", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warning("scriptwatch: watch error", "path", w.path, "error", err)
			}
		}
	}
}
