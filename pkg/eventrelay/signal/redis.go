package signal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChannelPrefix prefixes every pub/sub channel used by RedisCenter.
const RedisChannelPrefix = "eventrelay:signal:"

// RedisCenter delivers signals through Redis pub/sub, for producer and
// consumer processes that share a Redis server rather than a filesystem.
//
// The client is borrowed: Close releases the subscription connection but
// not the client.
type RedisCenter struct {
	client *redis.Client
	pubsub *redis.PubSub
	table  *Table
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewRedisCenter opens a subscription connection on client and starts the
// receive loop.
func NewRedisCenter(ctx context.Context, client *redis.Client, opts ...Option) *RedisCenter {
	o := applyOptions(opts)
	c := &RedisCenter{
		client: client,
		pubsub: client.Subscribe(ctx),
		table:  NewTable(),
		logger: o.logger,
		done:   make(chan struct{}),
	}
	go c.receive(c.pubsub.Channel())
	return c
}

func redisChannel(ch Channel) string {
	return RedisChannelPrefix + string(ch)
}

// Raise implements Center.
func (c *RedisCenter) Raise(ch Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrCenterClosed
	}

	if err := c.client.Publish(context.Background(), redisChannel(ch), "").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ch, err)
	}
	c.logger.Debug("signal raised", "channel", string(ch))
	return nil
}

// Subscribe implements Center.
func (c *RedisCenter) Subscribe(ch Channel, h Handler) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrCenterClosed
	}

	first := c.table.Count(ch) == 0
	tok, err := c.table.Add(ch, h)
	if err != nil {
		return "", err
	}
	if first {
		if err := c.pubsub.Subscribe(context.Background(), redisChannel(ch)); err != nil {
			c.table.Remove(tok)
			return "", fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}
	return tok, nil
}

// Unsubscribe implements Center.
func (c *RedisCenter) Unsubscribe(tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.table.Remove(tok)
	if !ok || c.closed || c.table.Count(ch) > 0 {
		return
	}
	if err := c.pubsub.Unsubscribe(context.Background(), redisChannel(ch)); err != nil {
		c.logger.Warn("redis unsubscribe failed",
			"channel", string(ch),
			"error", err,
		)
	}
}

// Close implements Center.
func (c *RedisCenter) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.pubsub.Close()
	<-c.done
	return err
}

func (c *RedisCenter) receive(msgs <-chan *redis.Message) {
	defer close(c.done)
	for msg := range msgs {
		name, ok := strings.CutPrefix(msg.Channel, RedisChannelPrefix)
		if !ok {
			continue
		}
		n := c.table.Dispatch(Channel(name))
		c.logger.Debug("signal observed",
			"channel", name,
			"subscribers", n,
		)
	}
}
