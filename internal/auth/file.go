package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileSource reads the token from a file and watches it for changes. A missing
// or empty file means signed out.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: filepath.Clean(path)}
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Token(context.Context) (string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Watch observes the file's directory so that editors replacing the file
// atomically are picked up too.
func (f *FileSource) Watch(ctx context.Context, fn func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("token file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	last, err := f.Token(ctx)
	if err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("token file unreadable")
	}
	fn(last)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			tok, err := f.Token(ctx)
			if err != nil {
				log.Warn().Err(err).Str("path", f.path).Msg("token file unreadable")
				continue
			}
			if tok != last {
				last = tok
				fn(tok)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", f.path).Msg("token file watcher error")
		}
	}
}
