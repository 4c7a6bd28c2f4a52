package signal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileCenter delivers signals between processes that share a directory.
// Each channel is a file in that directory; raising a channel rewrites the
// file and subscribers in every process watching the directory are woken.
//
// The watcher is Linux only (inotify). On other platforms NewFileCenter
// returns ErrSignalUnsupported.
type FileCenter struct {
	dir    string
	table  *Table
	logger *slog.Logger

	mu          sync.Mutex
	closed      bool
	stopWatcher func()
}

// NewFileCenter creates the signal directory if needed and starts watching
// it.
func NewFileCenter(dir string, opts ...Option) (*FileCenter, error) {
	if dir == "" {
		return nil, fmt.Errorf("signal directory is required")
	}
	o := applyOptions(opts)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create signal directory %s: %w", dir, err)
	}

	c := &FileCenter{
		dir:    dir,
		table:  NewTable(),
		logger: o.logger.With("signal_dir", dir),
	}

	stop, err := watchDirectory(dir, o, c.deliver)
	if err != nil {
		return nil, err
	}
	c.stopWatcher = stop
	return c, nil
}

// Dir returns the watched directory.
func (c *FileCenter) Dir() string {
	return c.dir
}

// Raise implements Center.
func (c *FileCenter) Raise(ch Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrCenterClosed
	}

	path := filepath.Join(c.dir, string(ch))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("raise %s: %w", ch, err)
	}
	if _, err := f.Write([]byte{1}); err != nil {
		f.Close()
		return fmt.Errorf("raise %s: %w", ch, err)
	}
	// Close produces the IN_CLOSE_WRITE the watchers wait for.
	if err := f.Close(); err != nil {
		return fmt.Errorf("raise %s: %w", ch, err)
	}

	c.logger.Debug("signal raised", "channel", string(ch))
	return nil
}

// Subscribe implements Center.
func (c *FileCenter) Subscribe(ch Channel, h Handler) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrCenterClosed
	}
	return c.table.Add(ch, h)
}

// Unsubscribe implements Center.
func (c *FileCenter) Unsubscribe(tok Token) {
	c.table.Remove(tok)
}

// Close stops the watcher and waits for it to exit.
func (c *FileCenter) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stop := c.stopWatcher
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

// deliver is called by the watcher with each distinct file name observed
// in one debounce window.
func (c *FileCenter) deliver(name string) {
	ch := Channel(name)
	if ch.Validate() != nil {
		return
	}
	n := c.table.Dispatch(ch)
	if n > 0 {
		c.logger.Debug("signal observed",
			"channel", name,
			"subscribers", n,
		)
	}
}
