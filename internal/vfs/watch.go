package vfs

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// DeviceWatcher notices device nodes appearing or disappearing under a
// directory backing OSFS device files. It is modeled on the teacher's
// internal/runtime/vfs/watch_fsnotify.go wrapper around fsnotify; it is
// not on the hot path of any syscall, matching spec.md's scope (the
// kernel core doesn't reconfigure devices at runtime). Boot creates one
// after the swap store has been opened and closes it at Shutdown;
// nothing in the kernel reads its events.
type DeviceWatcher struct {
	w *fsnotify.Watcher
}

// NewDeviceWatcher starts watching dir for filesystem events.
func NewDeviceWatcher(dir string) (*DeviceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("vfs: creating device watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("vfs: watching %s: %w", dir, err)
	}
	return &DeviceWatcher{w: w}, nil
}

// Events exposes the raw fsnotify event stream.
func (d *DeviceWatcher) Events() <-chan fsnotify.Event { return d.w.Events }

// Errors exposes the raw fsnotify error stream.
func (d *DeviceWatcher) Errors() <-chan error { return d.w.Errors }

// Close stops watching.
func (d *DeviceWatcher) Close() error { return d.w.Close() }
