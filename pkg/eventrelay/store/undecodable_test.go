package store

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

var undecodableKey = Key{ContainerID: "group.a", FileName: DefaultFileName}

func named(names ...string) event.List {
	list := make(event.List, 0, len(names))
	for _, n := range names {
		list = append(list, event.NewRecord(n, nil))
	}
	return list
}

// perRecordSkipTest checks that a per-record backend skips an entry that
// no longer decodes, in Read and in Drain, and that the entry is gone
// after the drain.
func perRecordSkipTest(t *testing.T, s Store, logs *bytes.Buffer, corrupt func()) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, named("before")))
	corrupt()
	require.NoError(t, s.Append(ctx, named("after")))

	list, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, list.Names())

	list, err = s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, list.Names())
	assert.Contains(t, logs.String(), "undecodable")

	list, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore_SkipsUndecodableRows(t *testing.T) {
	var logs bytes.Buffer
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"), undecodableKey,
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)
	defer s.Close()

	perRecordSkipTest(t, s, &logs, func() {
		_, err := s.db.Exec(`INSERT INTO cached_events (store_key, payload) VALUES (?, ?)`,
			undecodableKey.String(), []byte("{not json"))
		require.NoError(t, err)
	})
}

func TestRedisStore_SkipsUndecodableElements(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	var logs bytes.Buffer
	s := NewRedisStore(client, undecodableKey, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	defer s.Close()

	perRecordSkipTest(t, s, &logs, func() {
		require.NoError(t, client.RPush(context.Background(), s.RedisKey(), "{not json").Err())
	})
}

func TestFileStore_UndecodablePayloadFailsDrain(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileStore(root, undecodableKey)

	path, err := undecodableKey.Path(root)
	require.NoError(t, err)
	require.NoError(t, WriteFileAtomic(path, []byte("{not json"), 0o644))

	_, err = s.Drain(ctx)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
