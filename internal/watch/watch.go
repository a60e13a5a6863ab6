// Package watch triggers a callback when scripts under a directory tree are
// created or modified. Rapid saves to the same file are coalesced.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler receives a settled script path.
type Handler func(ctx context.Context, path string)

type Watcher struct {
	Root     string
	Match    func(path string) bool
	Debounce time.Duration
	Handle   Handler
	Logger   *zap.Logger

	// tick is how often pending paths are checked against Debounce.
	tick time.Duration
}

func New(root string, debounce time.Duration, match func(string) bool, handle Handler, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Root:     root,
		Match:    match,
		Debounce: debounce,
		Handle:   handle,
		Logger:   logger,
		tick:     100 * time.Millisecond,
	}
}

// Run watches Root and every directory below it until ctx is done.
// Handlers run one at a time on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.Root); err != nil {
		return err
	}
	w.Logger.Info("Watching scripts", zap.String("root", w.Root))

	tick := w.tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev, pending)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("Watcher error", zap.Error(err))
		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.Debounce) {
				if ctx.Err() != nil {
					return nil
				}
				w.Handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]time.Time) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.Logger.Warn("Could not watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return
		}
	}
	if w.Match != nil && !w.Match(ev.Name) {
		return
	}
	w.Logger.Debug("Script changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
	pending[ev.Name] = time.Now()
}

// settled removes and returns, sorted, the paths quiet for at least d.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var out []string
	for path, at := range pending {
		if now.Sub(at) >= d {
			out = append(out, path)
			delete(pending, path)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("watch root %s does not exist", root)
	}
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	return nil
}
