// Package store provides the shared event cache that producer and consumer
// processes append to and drain.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// DefaultFileName is the cache file name used when a Key leaves it empty.
const DefaultFileName = "analytics-events.cache"

// Store is a process-shared mapping from one Key to an ordered list of
// event records. Implementations must be safe for concurrent use.
//
// Every method is synchronous; callers that need completion callbacks wrap
// the store with NewAsync.
type Store interface {
	// Append adds events after the existing ones. A missing backing
	// resource is created lazily.
	Append(ctx context.Context, events event.List) error

	// Read returns the current contents without mutating them.
	// A missing backing resource reads as an empty list.
	Read(ctx context.Context) (event.List, error)

	// Clear empties the store. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Drain returns the current contents and empties the store.
	// Two drains in one process never both observe the same records.
	//
	// Backends that keep one entry per record (SQLiteStore, RedisStore)
	// skip entries that no longer decode, in Read as well as Drain, and
	// log a warning. FileStore keeps the whole list in one payload and
	// cannot separate a bad record from good ones: it returns
	// ErrSerializationFailed and leaves the file in place.
	Drain(ctx context.Context) (event.List, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Key identifies one logical cache partition inside a shared container.
type Key struct {
	// ContainerID is the shared app-group identifier. Both processes must
	// agree on it.
	ContainerID string

	// FileName names the cache inside the container.
	// Empty means DefaultFileName.
	FileName string
}

// NewKey returns a Key for the default cache file in containerID.
func NewKey(containerID string) Key {
	return Key{ContainerID: containerID, FileName: DefaultFileName}
}

// Name returns the file name, applying the default.
func (k Key) Name() string {
	if k.FileName == "" {
		return DefaultFileName
	}
	return k.FileName
}

// String returns "<container>/<file>".
func (k Key) String() string {
	return k.ContainerID + "/" + k.Name()
}

// Validate reports ErrStoreUnavailable when the key cannot be resolved.
func (k Key) Validate() error {
	if k.ContainerID == "" {
		return fmt.Errorf("%w: shared container identifier is not configured", ErrStoreUnavailable)
	}
	name := k.Name()
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid cache file name %q", ErrStoreUnavailable, name)
	}
	return nil
}

// Path resolves the backing file path under root:
// <root>/<ContainerID>/<FileName>.
func (k Key) Path(root string) (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	if root == "" {
		return "", fmt.Errorf("%w: containers root is not configured", ErrStoreUnavailable)
	}
	return filepath.Join(root, k.ContainerID, k.Name()), nil
}

// Sentinel errors for store operations.
var (
	// ErrStoreUnavailable indicates the shared container is not configured.
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrFileMissing indicates an operation required the backing file to
	// already exist.
	ErrFileMissing = errors.New("event cache file does not exist")

	// ErrSerializationFailed indicates the payload is not a well-formed
	// list of records.
	ErrSerializationFailed = errors.New("event cache serialization failed")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("event store closed")
)

// IOError wraps an underlying I/O failure.
type IOError struct {
	// Op is the operation that failed ("read", "write", "lock", ...).
	Op string
	// Path is the resource involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("event store %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("event store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Err
}

func serializationError(err error) error {
	return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
}
