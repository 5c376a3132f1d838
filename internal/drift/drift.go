// Package drift detects changes to the set of date directories that were
// ingested. A change means the in-memory store no longer matches the
// layout on disk and the process must ingest again from scratch.
package drift

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"drmonitor/internal/logdir"
	"drmonitor/internal/logging"
)

// Signal is the outcome of a check. Drifted is a control-flow result, not
// an error.
type Signal uint8

const (
	Stable Signal = iota
	Drifted
)

func (s Signal) String() string {
	if s == Drifted {
		return "drifted"
	}
	return "stable"
}

type Watchdog struct {
	parent   string
	baseline int
	logger   *logging.Logger
}

// New captures the current date directory count of parent as the baseline.
func New(parent string, logger *logging.Logger) (*Watchdog, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	n, err := logdir.CountDateDirs(parent)
	if err != nil {
		return nil, fmt.Errorf("count date directories: %w", err)
	}
	return &Watchdog{parent: parent, baseline: n, logger: logger}, nil
}

func (w *Watchdog) Baseline() int {
	return w.baseline
}

// Check recounts the date directories. Failing to list the parent is an
// error; any difference from the baseline is Drifted.
func (w *Watchdog) Check() (Signal, error) {
	n, err := logdir.CountDateDirs(w.parent)
	if err != nil {
		return Stable, fmt.Errorf("count date directories: %w", err)
	}
	if n != w.baseline {
		w.logger.Info("date directories changed",
			logging.Field("baseline", w.baseline),
			logging.Field("current", n),
		)
		return Drifted, nil
	}
	return Stable, nil
}

// Watch logs date directory creations and removals under the parent as
// they happen until ctx is done. It only reports; Check still decides.
func (w *Watchdog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.parent); err != nil {
		return fmt.Errorf("watch %s: %w", w.parent, err)
	}
	w.logger.Debug("watching log directory", logging.Field("path", w.parent))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Field("error", err))
		}
	}
}

func (w *Watchdog) handleEvent(event fsnotify.Event) {
	w.logger.Debugf("fsnotify event: op=%s path=%s", event.Op.String(), event.Name)
	name := filepath.Base(event.Name)
	if !logdir.IsDateDirName(name) {
		return
	}
	switch {
	case event.Op&fsnotify.Create != 0:
		w.logger.Info("date directory appeared", logging.Field("name", name))
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.logger.Info("date directory removed", logging.Field("name", name))
	}
}
