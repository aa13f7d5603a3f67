// Package watcher reports debounced file changes in a set of directories using fsnotify.
// It drives rule-set reloads and the ingest inbox.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/weaveai/weave/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Matcher selects which paths produce callbacks.
type Matcher func(path string) bool

// MatchExtensions matches files by extension, case-insensitively. No extensions matches everything.
func MatchExtensions(extensions ...string) Matcher {
	return func(path string) bool {
		if len(extensions) == 0 {
			return true
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		for _, e := range extensions {
			if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
				return true
			}
		}
		return false
	}
}

// MatchFile matches exactly one file.
func MatchFile(file string) Matcher {
	want := filepath.Clean(file)
	return func(path string) bool { return filepath.Clean(path) == want }
}

// Watcher watches directories (non-recursively) and invokes callbacks on file changes.
type Watcher struct {
	dirs        []string
	match       Matcher
	onChange    func(path string)
	onRemove    func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must be quiet before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over dirs. onChange fires once per burst of create/write events
// on a matching path; onRemove fires on remove or rename. Either callback may be nil.
func New(dirs []string, match Matcher, onChange, onRemove func(path string), opts ...Option) *Watcher {
	if match == nil {
		match = MatchExtensions()
	}
	w := &Watcher{
		dirs:        dirs,
		match:       match,
		onChange:    onChange,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// ForFile watches the directory holding file and calls onChange when file changes.
// Watching the directory keeps working when editors replace the file by rename.
func ForFile(file string, onChange func(path string), opts ...Option) *Watcher {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	return New([]string{filepath.Dir(abs)}, MatchFile(abs), onChange, nil, opts...)
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing directories are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = fw.Close()
			w.mu.Unlock()
			return err
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			w.mu.Unlock()
			return err
		}
	}
	w.watcher = fw
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("Watcher started", zap.Strings("dirs", w.dirs))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.match(path) {
		return
	}
	w.logger.Debug("Watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return
		}
		w.debounceChange(path)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

func (w *Watcher) debounceChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// SyncExisting calls onChange for every matching file already present in the watched directories.
func (w *Watcher) SyncExisting() {
	if w.onChange == nil {
		return
	}
	for _, dir := range w.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			w.logger.Debug("Watcher sync failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if !e.IsDir() && w.match(path) {
				w.onChange(path)
			}
		}
	}
}

// Stop stops the watcher and releases resources. Pending debounced callbacks are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
