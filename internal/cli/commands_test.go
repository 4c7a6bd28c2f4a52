package cli

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

func TestPostInspectDrain(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, root, "post", "pushNotification", "--param", "rid=abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "posted pushNotification rid=abcd1234\n", out)

	_, err = execute(t, root, "post", "purchase", "-p", "amount=9.99", "-p", "qty=2", "-p", "gift=true")
	require.NoError(t, err)

	out, err = execute(t, root, "inspect")
	require.NoError(t, err)
	assert.Equal(t,
		"group.test/analytics-events.cache: 2 event(s)\n"+
			"pushNotification rid=abcd1234\n"+
			"purchase amount=9.99 gift=true qty=2\n",
		out)

	out, err = execute(t, root, "--format", "json", "drain")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   EventsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Events, 2)
	assert.Equal(t, "purchase", resp.Data.Events[1].Name)
	assert.Equal(t, 2.0, resp.Data.Events[1].Parameters["qty"])

	out, err = execute(t, root, "inspect")
	require.NoError(t, err)
	assert.Equal(t, "group.test/analytics-events.cache: 0 event(s)\n", out)
}

func TestPost_JSONParameters(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, root, "post", "login", "--json", `{"method":"sso","attempt":3,"meta":{"beta":true}}`)
	require.NoError(t, err)

	out, err := execute(t, root, "--format", "json", "inspect")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"store":"group.test/analytics-events.cache","count":1,"events":[
		{"eventName":"login","eventParameters":{"method":"sso","attempt":3,"meta":{"beta":true}}}]}}`, out)
}

func TestPost_InvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing equals", []string{"post", "a", "--param", "novalue"}},
		{"empty key", []string{"post", "a", "--param", "=v"}},
		{"bad json", []string{"post", "a", "--json", "{"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, t.TempDir(), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestPost_MissingAppGroup(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	t.Setenv("EVENTRELAY_APP_GROUP_ID", "")
	cmd.SetArgs([]string{"--root", t.TempDir(), "--signal", "local", "post", "a"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "event store unavailable")
}

func TestInvalidBackend(t *testing.T) {
	_, err := execute(t, t.TempDir(), "--store", "s3", "inspect")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDrain_Clear(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "post", "a")
	require.NoError(t, err)

	out, err := execute(t, root, "drain", "--clear")
	require.NoError(t, err)
	assert.Equal(t, "group.test/analytics-events.cache: 0 event(s)\n", out)

	out, err = execute(t, root, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "0 event(s)")
}

func TestWatch_CachedEvents(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "post", "first", "-p", "n=1")
	require.NoError(t, err)
	_, err = execute(t, root, "post", "second", "-p", "n=2")
	require.NoError(t, err)

	out, err := execute(t, root, "--format", "json", "watch", "--count", "2", "--timeout", "5s")
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewBufferString(out))
	var names []string
	for dec.More() {
		var v EventView
		require.NoError(t, dec.Decode(&v))
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"first", "second"}, names)
}

func TestWatch_CountDiscardsRestOfBatch(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"first", "second", "third"} {
		_, err := execute(t, root, "post", name)
		require.NoError(t, err)
	}

	out, err := execute(t, root, "--format", "json", "watch", "--count", "1", "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte("\n")))
	assert.Contains(t, out, `"eventName":"first"`)

	out, err = execute(t, root, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "0 event(s)")

	watch, _, err := NewRootCommand().Find([]string{"watch"})
	require.NoError(t, err)
	assert.Contains(t, watch.Long, "removed without being printed")
	assert.Contains(t, watch.Flags().Lookup("count").Usage, "discarded")
}

func TestWatch_Timeout(t *testing.T) {
	start := time.Now()
	out, err := execute(t, t.TempDir(), "watch", "--timeout", "100ms")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPrintingDelegate_Limit(t *testing.T) {
	var buf bytes.Buffer
	d := &printingDelegate{
		formatter: &OutputFormatter{Format: "text", Writer: &buf},
		limit:     1,
		done:      make(chan struct{}),
	}

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.Process(t.Context(), eventNamed("e"))
		}()
	}
	wg.Wait()

	accepted := 0
	for _, ok := range results {
		if ok {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	select {
	case <-d.done:
	default:
		t.Fatal("done not closed after limit")
	}
}

func eventNamed(name string) event.Event {
	return event.Event{Name: name, Parameters: map[string]any{}, ReceivedAt: time.Now()}
}
