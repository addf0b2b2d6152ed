package refreshers

import (
	"context"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/fsnotify/fsnotify"

	"github.com/loadable-go/loadable"
)

// FileWatch requests a refresh when any watched path changes on disk.
// Watching a directory covers files created or renamed into it.
type FileWatch struct {
	ctx    context.Context
	paths  []string
	policy loadable.RefreshPolicy

	mu      sync.Mutex
	target  loadable.Refreshable
	watcher *fsnotify.Watcher
}

// NewFileWatch creates a file-watch refresher for the given paths. The
// context scopes logging only.
func NewFileWatch(ctx context.Context, policy loadable.RefreshPolicy, paths ...string) *FileWatch {
	return &FileWatch{
		ctx:    ctx,
		paths:  paths,
		policy: policy,
	}
}

func (f *FileWatch) Attach(target loadable.Refreshable) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target != nil {
		panic("refreshers: FileWatch attached twice")
	}
	f.target = target
}

func (f *FileWatch) Activate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target == nil || f.watcher != nil {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		clog.ErrorContext(f.ctx, "starting file watcher", "error", err)
		return
	}
	for _, path := range f.paths {
		if err := w.Add(path); err != nil {
			clog.ErrorContext(f.ctx, "watching path", "path", path, "error", err)
		}
	}
	f.watcher = w
	go f.loop(w)
}

func (f *FileWatch) Deactivate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher == nil {
		return
	}
	// Closing the watcher closes its channels and ends the loop.
	if err := f.watcher.Close(); err != nil {
		clog.ErrorContext(f.ctx, "closing file watcher", "error", err)
	}
	f.watcher = nil
}

func (f *FileWatch) loop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			clog.DebugContext(f.ctx, "watched path changed", "path", ev.Name, "op", ev.Op.String())
			f.mu.Lock()
			target := f.target
			f.mu.Unlock()
			target.RequestRefresh(f.policy)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			clog.ErrorContext(f.ctx, "file watcher error", "error", err)
		}
	}
}
