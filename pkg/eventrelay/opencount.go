package eventrelay

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/store"
)

// OpenCountFileName is the file, inside the shared container, that
// remembers the last push whose open was counted.
const OpenCountFileName = "push-open-count.json"

// OpenCountCache keeps the push open counted by whichever process saw it
// first, so the extension and the host never count the same push twice.
//
// Only the most recent tracking identifier is remembered.
type OpenCountCache struct {
	key    store.Key
	root   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewOpenCountCache creates a cache in containerID under root.
func NewOpenCountCache(root, containerID string, opts ...Option) *OpenCountCache {
	cfg := applyOptions(opts)
	return &OpenCountCache{
		key:    store.Key{ContainerID: containerID, FileName: OpenCountFileName},
		root:   root,
		logger: cfg.logger,
	}
}

// IsAlreadySent reports whether id was the last identifier marked sent.
// An empty id, a missing file or an unavailable container all report
// false.
func (c *OpenCountCache) IsAlreadySent(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sent, err := c.load()
	if err != nil {
		c.logger.Debug("push open count unavailable", slog.String("error", err.Error()))
		return false
	}
	return sent[id]
}

// MarkSent records id as sent, replacing any earlier identifier.
func (c *OpenCountCache) MarkSent(id string) error {
	if id == "" {
		return errors.New("tracking identifier is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path, err := c.key.Path(c.root)
	if err != nil {
		return err
	}
	data, err := json.Marshal(map[string]bool{id: true})
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(path, data, 0o644)
}

// Clear forgets the last sent identifier. Clearing an empty cache
// succeeds.
func (c *OpenCountCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, err := c.key.Path(c.root)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &store.IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

func (c *OpenCountCache) load() (map[string]bool, error) {
	path, err := c.key.Path(c.root)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sent map[string]bool
	if err := json.Unmarshal(data, &sent); err != nil {
		return nil, err
	}
	return sent, nil
}
