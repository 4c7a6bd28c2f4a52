// Package signal provides payload-less named notifications that wake an
// event consumer, within one process or across processes on one host.
//
// A raise carries no data and is not queued: a process that subscribes
// after a raise never sees it. Consumers therefore treat a signal as a
// hint to look at shared state, never as the state itself.
//
// Design Influences:
//   - Darwin notify(3) / CFNotificationCenter (named, payload-less wakeups)
//   - Redis pub/sub (fire-and-forget fan-out)
package signal

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/registry"
)

// Channel names a signal. Producer and consumer must agree on it.
type Channel string

// maxChannelLength bounds a channel so it fits in one path component.
const maxChannelLength = 255

// Validate reports ErrInvalidChannel unless ch is usable as a file name.
func (ch Channel) Validate() error {
	s := string(ch)
	switch {
	case s == "":
		return fmt.Errorf("%w: empty name", ErrInvalidChannel)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	case len(s) > maxChannelLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidChannel, maxChannelLength)
	case strings.ContainsAny(s, "/\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidChannel, s)
	case strings.HasPrefix(s, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidChannel, s)
	}
	return nil
}

// Handler is invoked once per observed raise of a channel. Several raises
// close together may be coalesced into one invocation.
type Handler func(ch Channel)

// Token identifies one subscription.
type Token string

// Center raises and observes signals.
type Center interface {
	// Raise posts ch. It never blocks on subscriber delivery.
	Raise(ch Channel) error

	// Subscribe registers h for ch in this process.
	Subscribe(ch Channel, h Handler) (Token, error)

	// Unsubscribe removes a subscription. Unknown tokens are ignored.
	Unsubscribe(tok Token)

	// Close stops delivery and releases resources.
	Close() error
}

// Sentinel errors for signal operations.
var (
	// ErrSignalUnsupported indicates the platform lacks the primitive a
	// center needs.
	ErrSignalUnsupported = errors.New("signal transport unsupported on this platform")

	// ErrInvalidChannel indicates a channel name cannot be used.
	ErrInvalidChannel = errors.New("invalid signal channel")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("signal handler is required")

	// ErrCenterClosed indicates the center has been closed.
	ErrCenterClosed = errors.New("signal center closed")
)

// Option configures a center.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	pollInterval time.Duration
	debounce     time.Duration
}

func applyOptions(opts []Option) options {
	o := options{
		logger:       slog.Default(),
		pollInterval: 100 * time.Millisecond,
		debounce:     50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDebounce sets how long FileCenter keeps collecting events after the
// first one before notifying subscribers.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

// subscription is one entry of a Table.
type subscription struct {
	channel Channel
	handler Handler
	seq     uint64
}

// Table maps subscription tokens to channel handlers. It is safe for
// concurrent use.
type Table struct {
	subs *registry.Registry[Token, subscription]
	seq  atomic.Uint64
}

// NewTable creates an empty subscription table.
func NewTable() *Table {
	return &Table{subs: registry.New[Token, subscription]()}
}

// Add subscribes h to ch and returns its token.
func (t *Table) Add(ch Channel, h Handler) (Token, error) {
	if err := ch.Validate(); err != nil {
		return "", err
	}
	if h == nil {
		return "", ErrNilHandler
	}
	tok := Token(uuid.New().String())
	t.subs.Register(tok, subscription{
		channel: ch,
		handler: h,
		seq:     t.seq.Add(1),
	})
	return tok, nil
}

// Remove deletes the subscription for tok and returns its channel.
func (t *Table) Remove(tok Token) (Channel, bool) {
	sub, ok := t.subs.Get(tok)
	if !ok {
		return "", false
	}
	t.subs.Delete(tok)
	return sub.channel, true
}

// Handlers returns the handlers subscribed to ch in subscription order.
func (t *Table) Handlers(ch Channel) []Handler {
	var matched []subscription
	t.subs.Range(func(_ Token, sub subscription) bool {
		if sub.channel == ch {
			matched = append(matched, sub)
		}
		return true
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	handlers := make([]Handler, len(matched))
	for i, sub := range matched {
		handlers[i] = sub.handler
	}
	return handlers
}

// Count returns the number of subscriptions on ch.
func (t *Table) Count(ch Channel) int {
	n := 0
	t.subs.Range(func(_ Token, sub subscription) bool {
		if sub.channel == ch {
			n++
		}
		return true
	})
	return n
}

// Channels returns every channel with at least one subscription, sorted.
func (t *Table) Channels() []Channel {
	seen := make(map[Channel]struct{})
	t.subs.Range(func(_ Token, sub subscription) bool {
		seen[sub.channel] = struct{}{}
		return true
	})
	out := make([]Channel, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the total number of subscriptions.
func (t *Table) Len() int {
	return t.subs.Len()
}

// Dispatch invokes every handler subscribed to ch, each on its own
// goroutine, and returns how many were started.
func (t *Table) Dispatch(ch Channel) int {
	handlers := t.Handlers(ch)
	for _, h := range handlers {
		go h(ch)
	}
	return len(handlers)
}
