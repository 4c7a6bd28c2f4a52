package eventrelay

import "errors"

// ErrEmptyEventName is returned when posting an event without a name.
var ErrEmptyEventName = errors.New("event name is required")
