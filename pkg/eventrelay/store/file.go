package store

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// FileStore keeps the event list in one file inside a shared container
// directory. It is the store both processes use on a single host.
//
// Every write replaces the whole file atomically. Operations within one
// FileStore are serialized by a mutex; WithFileLock extends that exclusion
// to other processes.
type FileStore struct {
	root   string
	key    Key
	codec  Codec
	lock   bool
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a store for key under the containers root directory.
//
// Construction never fails. An unresolvable key surfaces as
// ErrStoreUnavailable from each operation.
func NewFileStore(root string, key Key, opts ...Option) *FileStore {
	o := applyOptions(opts)
	return &FileStore{
		root:   root,
		key:    key,
		codec:  o.codec,
		lock:   o.fileLock,
		logger: o.logger.With(slog.String("store_key", key.String())),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() (string, error) {
	return s.key.Path(s.root)
}

// Append implements Store.
//
// An unreadable or malformed existing file is replaced: the new contents
// are the appended events alone.
func (s *FileStore) Append(ctx context.Context, events event.List) error {
	if len(events) == 0 {
		return nil
	}
	return s.do(ctx, func(path string) error {
		current, err := s.readFile(path)
		if err != nil {
			s.logger.Warn("discarding unreadable event cache",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			current = nil
		}
		next := make(event.List, 0, len(current)+len(events))
		next = append(next, current...)
		next = append(next, events...)
		return s.writeFile(path, next)
	})
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context) (event.List, error) {
	var list event.List
	err := s.do(ctx, func(path string) error {
		var err error
		list, err = s.readFile(path)
		return err
	})
	return list, err
}

// ReadExisting is Read, except a missing file is ErrFileMissing instead
// of an empty list.
func (s *FileStore) ReadExisting(ctx context.Context) (event.List, error) {
	var list event.List
	err := s.do(ctx, func(path string) error {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return ErrFileMissing
			}
			return &IOError{Op: "stat", Path: path, Err: err}
		}
		var err error
		list, err = s.readFile(path)
		return err
	})
	return list, err
}

// Clear implements Store. It leaves an empty serialized list behind.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.do(ctx, func(path string) error {
		return s.writeFile(path, event.List{})
	})
}

// Drain implements Store.
//
// A malformed file is reported as ErrSerializationFailed and left in
// place.
func (s *FileStore) Drain(ctx context.Context) (event.List, error) {
	var list event.List
	err := s.do(ctx, func(path string) error {
		var err error
		list, err = s.readFile(path)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return nil
		}
		return s.writeFile(path, event.List{})
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// do runs fn with the in-process mutex held and, when enabled, the
// cross-process file lock.
func (s *FileStore) do(ctx context.Context, fn func(path string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	path, err := s.Path()
	if err != nil {
		return err
	}

	if s.lock {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &IOError{Op: "mkdir", Path: dir, Err: err}
		}
		unlock, err := lockFile(path + ".lock")
		if err != nil {
			return err
		}
		defer unlock()
	}

	return fn(path)
}

func (s *FileStore) readFile(path string) (event.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return event.List{}, nil
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return decodeList(s.codec, data)
}

func (s *FileStore) writeFile(path string, list event.List) error {
	data, err := encodeList(s.codec, list)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}
