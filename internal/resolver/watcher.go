package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize alias watcher")

// DefaultDebounce coalesces bursts of writes from editors and deploy tools.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a Resolver whenever its alias file changes.
type Watcher struct {
	path     string
	resolver *Resolver
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	reloaded chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the directory holding path so that atomic replaces
// (write to temp file, rename) are seen as well as in-place writes.
func NewWatcher(path string, r *Resolver, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolving alias path: %w", err)
	}
	return &Watcher{
		path:     abs,
		resolver: r,
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   logger,
		reloaded: make(chan error, 1),
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine. Call Stop to release it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching alias directory: %w", err)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

// Reloaded reports the outcome of each reload. Results are dropped when
// nobody is reading.
func (w *Watcher) Reloaded() <-chan error {
	return w.reloaded
}

func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("alias watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	aliases, err := LoadAliases(w.path)
	if err == nil {
		err = w.resolver.Reload(ctx, aliases)
	}
	if err != nil {
		aliasReloads.WithLabelValues("error").Inc()
		w.logger.Warn("alias reload failed, keeping previous index", zap.String("path", w.path), zap.Error(err))
	} else {
		aliasReloads.WithLabelValues("success").Inc()
		w.logger.Info("aliases reloaded", zap.String("path", w.path), zap.Int("aliases", len(aliases)))
	}

	select {
	case w.reloaded <- err:
	default:
	}
}
