package features

import (
	"context"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/session"
)

// WatchedFiles watches a directory tree and forwards changes to the peer as
// workspace/didChangeWatchedFiles notifications. Events arriving within the
// batch window are sent together.
type WatchedFiles struct {
	root   string
	window time.Duration
	skip   map[string]bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatchedFiles watches root recursively. Directories named in skip (for
// example ".git") are not descended into.
func NewWatchedFiles(root string, skip ...string) *WatchedFiles {
	w := &WatchedFiles{root: root, window: 50 * time.Millisecond, skip: make(map[string]bool)}
	for _, s := range skip {
		w.skip[s] = true
	}
	return w
}

func (w *WatchedFiles) Name() string { return "watchedFiles" }

func (w *WatchedFiles) Initialize(s *session.Session, _ environment.Environment) error {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	addDirs := func(dir string) {
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if p != dir && w.skip[d.Name()] {
				return filepath.SkipDir
			}
			if err := watcher.Add(p); err != nil {
				s.Logger().DebugContext(logContext(context.Background(), s, w.Name()), "features.watchedfiles.add.fail", slog.String("path", p), slog.String("err", err.Error()))
			}
			return nil
		})
	}
	addDirs(root)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			_ = watcher.Close()
		}()
		w.run(ctx, s, watcher, addDirs)
	}()
	return nil
}

func (w *WatchedFiles) run(ctx context.Context, s *session.Session, watcher *fsnotify.Watcher, addDirs func(string)) {
	var (
		batch []lsp.FileEvent
		timer *time.Timer
		fire  <-chan time.Time
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		params := lsp.DidChangeWatchedFilesParams{Changes: batch}
		batch = nil
		lctx := logContext(ctx, s, w.Name())
		if err := s.SendNotification(lctx, lsp.DidChangeWatchedFilesNotificationMethod, params); err != nil {
			s.Logger().WarnContext(lctx, "features.watchedfiles.notify.fail", slog.String("err", err.Error()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-fire:
			fire = nil
			flush()
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			var typ lsp.FileChangeType
			switch {
			case ev.Op&fsnotify.Create == fsnotify.Create:
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if w.skip[filepath.Base(ev.Name)] {
						continue
					}
					addDirs(ev.Name)
				}
				typ = lsp.FileCreated
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				typ = lsp.FileDeleted
			case ev.Op&fsnotify.Write == fsnotify.Write:
				typ = lsp.FileChanged
			default:
				continue
			}
			batch = append(batch, lsp.FileEvent{URI: FileURI(ev.Name), Type: typ})
			if fire == nil {
				if timer == nil {
					timer = time.NewTimer(w.window)
				} else {
					timer.Reset(w.window)
				}
				fire = timer.C
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.Logger().DebugContext(logContext(ctx, s, w.Name()), "features.watchedfiles.error", slog.String("err", err.Error()))
		}
	}
}

// FileURI converts an OS path to a file:// URI.
func FileURI(path string) lsp.DocumentURI {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return lsp.DocumentURI((&url.URL{Scheme: "file", Path: p}).String())
}

func (w *WatchedFiles) Deinitialize() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
