package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// Codec serializes the wire form of records.
//
// Decoded maps must be map[string]any, integers int64 and other numbers
// float64 so that values compare equal regardless of the codec used.
type Codec interface {
	// Name identifies the codec in configuration ("json", "cbor").
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec encodes records as JSON. Map keys are written sorted, so the
// same list always produces the same bytes.
//
// Floats are always written with a fraction or exponent ("3.0", not "3")
// so that they decode as float64 rather than int64.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(markFloats(v))
}

// jsonFloat is a float64 whose JSON form is never an integer literal.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(float64(f))
	if err != nil {
		return nil, err
	}
	if !bytes.ContainsAny(data, ".eE") {
		data = append(data, ".0"...)
	}
	return data, nil
}

// markFloats returns a copy of v with every float wrapped in jsonFloat.
func markFloats(v any) any {
	switch val := v.(type) {
	case float64:
		return jsonFloat(val)
	case float32:
		return jsonFloat(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = markFloats(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = markFloats(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = markFloats(item)
		}
		return out
	default:
		return markFloatsReflect(v)
	}
}

// markFloatsReflect handles typed slices and string-keyed maps such as
// []float64 or map[string]float64.
func markFloatsReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = markFloats(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = markFloats(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return normalize(v), nil
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		// Records only use string keys; decode any-typed maps to the
		// same type encoding/json produces.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORCodec encodes records as CBOR using Core Deterministic Encoding.
type CBORCodec struct{}

// Name implements Codec.
func (CBORCodec) Name() string { return "cbor" }

// Marshal implements Codec.
func (CBORCodec) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// Unmarshal implements Codec.
func (CBORCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := cborDec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize maps decoder-specific number types onto int64/float64.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

// encodeList serializes a list. An empty list still produces a valid
// payload.
func encodeList(c Codec, list event.List) ([]byte, error) {
	data, err := c.Marshal(list.Wire())
	if err != nil {
		return nil, serializationError(err)
	}
	return data, nil
}

// decodeList parses a list payload. Empty input is an empty list.
func decodeList(c Codec, data []byte) (event.List, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return event.List{}, nil
	}
	v, err := c.Unmarshal(data)
	if err != nil {
		return nil, serializationError(err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, serializationError(fmt.Errorf("payload is %T, not a list", v))
	}
	list := make(event.List, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, serializationError(fmt.Errorf("element %d is %T, not a record", i, item))
		}
		list = append(list, event.FromWire(m))
	}
	return list, nil
}

// encodeRecord serializes one record for row- or element-per-record
// backends.
func encodeRecord(c Codec, r event.Record) ([]byte, error) {
	data, err := c.Marshal(r.Wire())
	if err != nil {
		return nil, serializationError(err)
	}
	return data, nil
}

// decodeRecord parses one record payload.
func decodeRecord(c Codec, data []byte) (event.Record, error) {
	v, err := c.Unmarshal(data)
	if err != nil {
		return event.Record{}, serializationError(err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return event.Record{}, serializationError(fmt.Errorf("payload is %T, not a record", v))
	}
	return event.FromWire(m), nil
}
