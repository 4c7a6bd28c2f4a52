package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

func TestNewRecord_CopiesParameters(t *testing.T) {
	params := map[string]any{
		"rid":    "abcd1234",
		"nested": map[string]any{"k": "v"},
		"list":   []any{"a", int64(1)},
	}

	rec := event.NewRecord("pushNotification", params)

	params["rid"] = "mutated"
	params["nested"].(map[string]any)["k"] = "mutated"
	params["list"].([]any)[0] = "mutated"

	got := rec.Parameters()
	assert.Equal(t, "abcd1234", got["rid"])
	assert.Equal(t, "v", got["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", got["list"].([]any)[0])

	// Accessor results are copies too.
	got["rid"] = "changed"
	assert.Equal(t, "abcd1234", rec.Parameters()["rid"])
}

func TestRecord_Wire(t *testing.T) {
	rec := event.NewRecord("launch", map[string]any{"count": int64(3)})

	assert.Equal(t, map[string]any{
		event.NameKey:       "launch",
		event.ParametersKey: map[string]any{"count": int64(3)},
	}, rec.Wire())

	noParams := event.NewRecord("launch", nil)
	assert.Equal(t, map[string]any{event.NameKey: "launch"}, noParams.Wire())
}

func TestFromWire_PreservesUnknownKeys(t *testing.T) {
	wire := map[string]any{
		event.NameKey:       "pushNotification",
		event.ParametersKey: map[string]any{"rid": "a"},
		"producerVersion":   "9.1.0",
	}

	rec := event.FromWire(wire)
	assert.True(t, rec.Valid())
	assert.Equal(t, "pushNotification", rec.Name())
	assert.Equal(t, wire, rec.Wire())
}

func TestFromWire_InvalidName(t *testing.T) {
	wire := map[string]any{
		event.NameKey:       42,
		event.ParametersKey: "not-a-map",
	}

	rec := event.FromWire(wire)
	assert.False(t, rec.Valid())
	assert.Nil(t, rec.Parameters())
	// Uninterpretable values round-trip verbatim.
	assert.Equal(t, wire, rec.Wire())
}

func TestList(t *testing.T) {
	list := event.List{
		event.NewRecord("a", nil),
		event.NewRecord("b", map[string]any{"x": true}),
	}

	assert.Equal(t, []string{"a", "b"}, list.Names())
	wire := list.Wire()
	require.Len(t, wire, 2)
	assert.Equal(t, "a", wire[0][event.NameKey])

	var empty event.List
	assert.NotNil(t, empty.Wire())
	assert.Empty(t, empty.Wire())
}

func TestFromRecord(t *testing.T) {
	now := time.Now()
	rec := event.NewRecord("pushNotification", map[string]any{"rid": "abcd1234"})

	evt, ok := event.FromRecord(rec, now)
	require.True(t, ok)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "pushNotification", evt.Name)
	assert.Equal(t, "abcd1234", evt.String("rid"))
	assert.Equal(t, "", evt.String("missing"))
	assert.Equal(t, now, evt.ReceivedAt)

	other, ok := event.FromRecord(rec, now)
	require.True(t, ok)
	assert.NotEqual(t, evt.ID, other.ID)
}

func TestFromRecord_NilParametersBecomeEmpty(t *testing.T) {
	evt, ok := event.FromRecord(event.NewRecord("launch", nil), time.Now())
	require.True(t, ok)
	assert.NotNil(t, evt.Parameters)
	assert.Empty(t, evt.Parameters)
}

func TestFromRecord_Invalid(t *testing.T) {
	_, ok := event.FromRecord(event.FromWire(map[string]any{"foo": "bar"}), time.Now())
	assert.False(t, ok)
}
