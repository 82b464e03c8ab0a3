// Package filewatch cancels contexts on changes of configuration files.
package filewatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ModifiedError is the cause of contexts cancelled by a change of a watched file.
type ModifiedError struct {
	Path string
	Op   fsnotify.Op
}

func (m *ModifiedError) Error() string {
	return fmt.Sprintf("%s is updated (%s)", m.Path, m.Op)
}

// IsModified tells the context is cancelled by a change of a watched file.
func IsModified(ctx context.Context) bool {
	var m *ModifiedError
	return errors.As(context.Cause(ctx), &m)
}

// UntilModifyContext returns a context which is cancelled when one of the files
// (or files in the directories) is written, created, removed or renamed.
// Changes of permissions are ignored. Empty paths are skipped.
//
// The cause of the cancellation is *ModifiedError, or an error of the watcher.
//
// When it fails to start watching, the returned context and cancel func are nil.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("watching %s: %w", p, err)
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				cancel(&ModifiedError{Path: event.Name, Op: event.Op})
				return
			}
		}
	}()
	return cctx, func() { cancel(nil) }, nil
}
