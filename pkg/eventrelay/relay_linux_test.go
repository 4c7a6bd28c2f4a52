//go:build linux

package eventrelay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/config"
)

// Two relays on the same directories stand in for the extension and host
// processes.
func TestRelay_FileAcrossProcesses(t *testing.T) {
	settings := testSettings(t)
	settings.StoreBackend = config.StoreFile
	settings.SignalBackend = config.SignalFile
	settings.FileLock = true

	host, err := New(settings)
	require.NoError(t, err)
	defer host.Close()

	extension, err := New(settings)
	require.NoError(t, err)
	defer extension.Close()

	d := newRecordingDelegate()
	_, err = host.Observer().Start(d)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, extension.Poster().Post(ctx, "pushNotification", map[string]any{"rid": "abcd1234"}))

	require.Eventually(t, func() bool { return len(d.Events()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "abcd1234", d.Events()[0].String("rid"))

	left, err := extension.Store().Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}
