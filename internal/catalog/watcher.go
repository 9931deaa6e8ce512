package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tildaslashalef/farmboard/internal/loggy"
)

// Watcher reloads the catalog whenever its file changes. It watches the
// parent directory because editors usually replace files by renaming.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *loggy.Logger

	watcher *fsnotify.Watcher
	updates chan *Catalog
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the catalog at path. It must be started
// with Start before it emits anything.
func NewWatcher(path string, logger *loggy.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("resolving catalog path: %w", err)
	}
	return &Watcher{
		path:     abs,
		debounce: 200 * time.Millisecond,
		logger:   logger,
		watcher:  fw,
		updates:  make(chan *Catalog, 1),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops watching and closes the Updates and Errors channels
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	close(w.updates)
	close(w.errors)
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Updates emits the freshly loaded catalog after each change. Only the
// newest catalog is kept when the reader falls behind.
func (w *Watcher) Updates() <-chan *Catalog {
	return w.updates
}

// Errors emits load failures; the previous catalog stays valid
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Mission catalog reload failed", "path", w.path, "error", err)
		w.sendError(err)
		return
	}
	w.logger.Info("Mission catalog reloaded", "path", w.path, "networks", len(c.Networks), "missions", c.MissionCount())

	// drop a stale catalog nobody picked up yet
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- c:
	case <-w.done:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
