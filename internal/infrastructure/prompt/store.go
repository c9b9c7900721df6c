package prompt

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
)

// Store loads the prompt template file and serves the parsed template to the
// generation pipeline. Watch reloads it on file change; a broken edit keeps
// the last good template in service.
type Store struct {
	path string

	mu  sync.RWMutex
	tpl reply.Template
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Current() reply.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tpl
}

func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return errs.Wrapf(err, "read prompt template %q", s.path)
	}

	tpl, err := reply.ParseTemplate(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tpl = tpl
	s.mu.Unlock()
	return nil
}

// Watch reloads the template whenever the file changes, until ctx is done.
// Editors replace files rather than writing in place, so the watch covers the
// directory and filters events down to the template path.
func (s *Store) Watch(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create template watcher")
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return errs.Wrapf(err, "watch template directory %q", dir)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "prompt.store"))
	target := filepath.Clean(s.path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.Reload(); err != nil {
					logging.Warn(logCtx, "template reload failed, keeping previous template",
						slog.Any("err", errs.Loggable(err)))
					continue
				}
				logging.Info(logCtx, "prompt template reloaded", slog.String("path", s.path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn(logCtx, "template watcher error", slog.Any("err", errs.Loggable(err)))
			}
		}
	}()

	return nil
}
