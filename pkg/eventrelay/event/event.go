// Package event defines the records carried by the relay and the typed
// events handed to the dispatch sink.
//
// A Record is what producers persist: a name plus free-form parameters.
// An Event is what the consumer reconstructs from a drained Record before
// dispatching it.
package event

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Wire keys of one cached record.
const (
	NameKey       = "eventName"
	ParametersKey = "eventParameters"
)

// Record is one name+parameters tuple representing a trackable occurrence.
// Records are immutable once created: constructors and accessors copy the
// parameter map.
type Record struct {
	name       string
	parameters map[string]any

	// extra holds wire keys this version does not understand, so that
	// rewriting a cache file never drops data written by a newer producer.
	extra map[string]any
}

// NewRecord creates a record. Parameters are deep-copied; nil parameters
// stay nil.
func NewRecord(name string, parameters map[string]any) Record {
	return Record{
		name:       name,
		parameters: copyMap(parameters),
	}
}

// Name returns the event name.
func (r Record) Name() string {
	return r.name
}

// Parameters returns a copy of the event parameters.
func (r Record) Parameters() map[string]any {
	return copyMap(r.parameters)
}

// Valid reports whether the record can be turned into an Event.
func (r Record) Valid() bool {
	return r.name != ""
}

// Wire returns the serializable map form of the record.
func (r Record) Wire() map[string]any {
	m := make(map[string]any, 2+len(r.extra))
	for k, v := range r.extra {
		m[k] = copyValue(v)
	}
	if r.name != "" {
		m[NameKey] = r.name
	}
	if r.parameters != nil {
		m[ParametersKey] = copyMap(r.parameters)
	}
	return m
}

// FromWire rebuilds a record from its map form.
//
// FromWire never fails: a missing or non-string name yields an invalid
// record, and values it cannot interpret are kept verbatim so Wire
// reproduces them.
func FromWire(m map[string]any) Record {
	var r Record
	for k, v := range m {
		switch k {
		case NameKey:
			if name, ok := v.(string); ok {
				r.name = name
				continue
			}
		case ParametersKey:
			if params, ok := v.(map[string]any); ok {
				r.parameters = copyMap(params)
				continue
			}
		}
		if r.extra == nil {
			r.extra = make(map[string]any)
		}
		r.extra[k] = copyValue(v)
	}
	return r
}

// List is an ordered sequence of records in FIFO arrival order.
type List []Record

// Wire returns the serializable form of the list. An empty list encodes as
// an empty slice, never nil.
func (l List) Wire() []map[string]any {
	out := make([]map[string]any, 0, len(l))
	for _, r := range l {
		out = append(out, r.Wire())
	}
	return out
}

// Names returns the record names in order.
func (l List) Names() []string {
	names := make([]string, 0, len(l))
	for _, r := range l {
		names = append(names, r.name)
	}
	return names
}

// Event is a record reconstructed on the consumer side.
type Event struct {
	// ID uniquely identifies this dispatch.
	ID string

	// Name is the event name.
	Name string

	// Parameters holds the event parameters. Never nil.
	Parameters map[string]any

	// ReceivedAt is when the consumer drained the record.
	ReceivedAt time.Time
}

// FromRecord reconstructs an Event. The second result is false for
// invalid records.
func FromRecord(r Record, receivedAt time.Time) (Event, bool) {
	if !r.Valid() {
		return Event{}, false
	}
	params := r.Parameters()
	if params == nil {
		params = make(map[string]any)
	}
	return Event{
		ID:         uuid.New().String(),
		Name:       r.name,
		Parameters: params,
		ReceivedAt: receivedAt,
	}, true
}

// String returns the string parameter for key, or "" if missing or not a
// string.
func (e Event) String(key string) string {
	s, _ := e.Parameters[key].(string)
	return s
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
