package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultExtensions are the file extensions watched when none are given.
var DefaultExtensions = []string{".h", ".c"}

const defaultDebounce = 300 * time.Millisecond

// Option configures a watcher.
type Option func(*sourceWatcher)

// WithDebounce sets the quiet period before a batch of changes is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *sourceWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions replaces the watched file extensions.
func WithExtensions(exts ...string) Option {
	return func(w *sourceWatcher) {
		w.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			w.extensions[ext] = true
		}
	}
}

type sourceWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool
	debounce   time.Duration
	callback   func(files []string)
	cancel     context.CancelFunc

	mu      sync.Mutex
	paused  bool
	pending map[string]bool
	timer   *time.Timer

	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewSourceWatcher watches every directory in dirs recursively. Paths that
// name files are replaced by their parent directory, so the inputs of an
// extraction can be passed as they are.
func NewSourceWatcher(dirs []string, opts ...Option) (SourceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &sourceWatcher{
		watcher:  fsw,
		debounce: defaultDebounce,
		pending:  make(map[string]bool),
		doneCh:   make(chan struct{}),
	}
	WithExtensions(DefaultExtensions...)(w)
	for _, opt := range opts {
		opt(w)
	}

	seen := make(map[string]bool)
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.addRecursive(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *sourceWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}
	w.callback = callback
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	return nil
}

func (w *sourceWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.doneCh
		} else {
			close(w.doneCh)
		}
		err = w.watcher.Close()
	})
	return err
}

func (w *sourceWatcher) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
}

func (w *sourceWatcher) Resume() {
	w.mu.Lock()
	wasPaused := w.paused
	w.paused = false
	w.mu.Unlock()

	if wasPaused {
		w.flush()
	}
}

func (w *sourceWatcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
				w.timer = nil
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = true
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
			w.mu.Unlock()

		case <-fire:
			w.mu.Lock()
			paused := w.paused
			w.mu.Unlock()
			if !paused {
				w.flush()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Source watcher error: %v", err)
		}
	}
}

// flush reports the pending files, if any.
func (w *sourceWatcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if w.callback != nil {
		w.callback(files)
	}
}

func (w *sourceWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.extensions[filepath.Ext(event.Name)]
}

func (w *sourceWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}
