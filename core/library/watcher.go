package library

import (
	"context"
	"time"

	"Cadenza/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the configured music directories and triggers a
// library refresh when their content changes. Events are debounced so a
// burst of file writes results in one scan.
type Watcher struct {
	fw       *fsnotify.Watcher
	scanner  *Scanner
	debounce time.Duration
	done     chan struct{}
}

// NewWatcher starts watching the given directories. Directories that
// don't exist are logged and skipped.
func NewWatcher(scanner *Scanner, dirs []string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logger.Warn("cannot watch music directory",
				logger.String("dir", dir), logger.ErrorField(err))
			continue
		}
		logger.Info("watching music directory", logger.String("dir", dir))
	}

	w := &Watcher{
		fw:       fw,
		scanner:  scanner,
		debounce: debounce,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("music directory watch error", logger.ErrorField(err))
		case <-fire:
			timer = nil
			fire = nil
			go func() {
				outcome := w.scanner.Refresh(context.Background())
				logger.Info("watch-triggered refresh finished",
					logger.String("status", string(outcome.Status)),
					logger.Int("tracks", outcome.TrackCount))
			}()
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
