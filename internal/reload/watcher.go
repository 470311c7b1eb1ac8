// Package reload applies configuration edits to a running process. Only the
// log level takes effect live; other edits are reported and wait for a
// restart.
package reload

import (
	"context"
	"os"
	"os/signal"
	"time"
)

const defaultPollInterval = 5 * time.Second

// Reason says what prompted a reload.
type Reason string

// Reload reasons.
const (
	ReasonModified Reason = "modified"
	ReasonSignal   Reason = "signal"
)

// Watcher polls a configuration file and reports edits. It can also relay
// OS signals (typically SIGHUP) as reload requests.
type Watcher struct {
	path     string
	interval time.Duration
	signals  chan os.Signal
	baseline stamp
}

// stamp identifies one version of the watched file.
type stamp struct {
	mod  time.Time
	size int64
}

// NewWatcher creates a watcher for path. A non-positive interval means
// five seconds. The file's current state is recorded here, so any edit made
// after NewWatcher returns is reported by Watch, even one made before Watch
// starts. Create the watcher right after reading the file.
func NewWatcher(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	w := &Watcher{
		path:     path,
		interval: interval,
		signals:  make(chan os.Signal, 1),
	}
	w.baseline, _ = w.stat()
	return w
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// NotifyOn relays sig as reload requests while Watch runs. Must be called
// before Watch.
func (w *Watcher) NotifyOn(sig ...os.Signal) {
	signal.Notify(w.signals, sig...)
}

// Watch blocks until ctx is done, calling onChange from the watching
// goroutine whenever the file's size or modification time differs from
// the last state seen (initially the one recorded by NewWatcher) or a
// relayed signal arrives. A missing file is ignored until it reappears.
func (w *Watcher) Watch(ctx context.Context, onChange func(Reason)) {
	defer signal.Stop(w.signals)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.baseline
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signals:
			onChange(ReasonSignal)
		case <-ticker.C:
			current, ok := w.stat()
			if !ok || current == last {
				continue
			}
			last = current
			onChange(ReasonModified)
		}
	}
}

func (w *Watcher) stat() (stamp, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		return stamp{}, false
	}
	return stamp{mod: info.ModTime(), size: info.Size()}, true
}
