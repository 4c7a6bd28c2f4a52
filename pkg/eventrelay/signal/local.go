package signal

import (
	"log/slog"
	"sync"
)

// LocalCenter delivers signals within the current process only. It is the
// center for tests and for hosts where producer and consumer share a
// process.
type LocalCenter struct {
	table  *Table
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewLocalCenter creates an in-process center.
func NewLocalCenter(opts ...Option) *LocalCenter {
	o := applyOptions(opts)
	return &LocalCenter{
		table:  NewTable(),
		logger: o.logger,
	}
}

// Raise implements Center.
func (c *LocalCenter) Raise(ch Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrCenterClosed
	}

	n := c.table.Dispatch(ch)
	c.logger.Debug("signal raised",
		"channel", string(ch),
		"subscribers", n,
	)
	return nil
}

// Subscribe implements Center.
func (c *LocalCenter) Subscribe(ch Channel, h Handler) (Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", ErrCenterClosed
	}
	return c.table.Add(ch, h)
}

// Unsubscribe implements Center.
func (c *LocalCenter) Unsubscribe(tok Token) {
	c.table.Remove(tok)
}

// Close implements Center.
func (c *LocalCenter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
