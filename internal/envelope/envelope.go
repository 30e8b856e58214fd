// Package envelope implements the wire framing described in spec §3-4.1: a
// one-byte version prefix followed by an independently serialized header and
// payload, in either CBOR or JSON framing. It is the sole place in the
// module that knows how to turn a typed payload into bus-ready bytes and
// back.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
)

// Version is the only wire version this module produces or accepts (spec
// §3, invariants I4/I5).
const Version byte = 1

// Envelope is the decoded pair of header and payload for a message of
// concrete type T.
type Envelope[T any] struct {
	Header  Header
	Payload T
}

// Encode frames payload under seqID using format, per spec §4.1. It is total
// for any payload the chosen codec can serialize.
func Encode[T any](seqID uint64, payload T, format Format) ([]byte, error) {
	h, err := NewHeader(seqID, EventTypeBlockEvent, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	switch format {
	case Cbor:
		return encodeCBOR(h, payload)
	case JSON:
		return encodeJSON(h, payload)
	default:
		return nil, fmt.Errorf("%w: unknown envelope format %q", borealiserr.ErrConfig, format)
	}
}

// Decode parses data as an envelope of format, returning the empty sentinel
// (empty=true, err=nil) for zero-length input instead of an error (spec
// §4.1, property P3). Any other framing problem is reported as
// ErrMalformedEnvelope.
func Decode[T any](data []byte, format Format) (env Envelope[T], empty bool, err error) {
	switch format {
	case Cbor:
		return decodeCBOR[T](data)
	case JSON:
		return decodeJSON[T](data)
	default:
		return Envelope[T]{}, false, fmt.Errorf("%w: unknown envelope format %q", borealiserr.ErrConfig, format)
	}
}

func encodeCBOR[T any](h Header, payload T) ([]byte, error) {
	hb, err := cbor.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("envelope: cbor-encoding header: %w", err)
	}
	pb, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: cbor-encoding payload: %w", err)
	}

	out := make([]byte, 0, 1+len(hb)+len(pb))
	out = append(out, Version)
	out = append(out, hb...)
	out = append(out, pb...)
	return out, nil
}

func decodeCBOR[T any](data []byte) (Envelope[T], bool, error) {
	if len(data) == 0 {
		return Envelope[T]{}, true, nil
	}
	if data[0] != Version {
		return Envelope[T]{}, false, fmt.Errorf("%w: unknown version byte 0x%02x", borealiserr.ErrMalformedEnvelope, data[0])
	}

	r := bytes.NewReader(data[1:])
	dec := cbor.NewDecoder(r)

	var h Header
	if err := dec.Decode(&h); err != nil {
		return Envelope[T]{}, false, fmt.Errorf("%w: decoding header: %v", borealiserr.ErrMalformedEnvelope, err)
	}

	var p T
	if err := dec.Decode(&p); err != nil {
		return Envelope[T]{}, false, fmt.Errorf("%w: decoding payload: %v", borealiserr.ErrMalformedEnvelope, err)
	}

	// The decoder reads ahead from r into its own buffer, so r.Len() does
	// not show what is left; compare the bytes it consumed instead.
	if rest := len(data) - 1 - dec.NumBytesRead(); rest != 0 {
		return Envelope[T]{}, false, fmt.Errorf("%w: %d trailing bytes after payload", borealiserr.ErrMalformedEnvelope, rest)
	}

	return Envelope[T]{Header: h, Payload: p}, false, nil
}

// jsonWire is the single JSON object spec §3 describes: top-level keys
// version, envelope, payload.
type jsonWire[T any] struct {
	Version  uint8   `json:"version"`
	Envelope Header  `json:"envelope"`
	Payload  T       `json:"payload"`
}

func encodeJSON[T any](h Header, payload T) ([]byte, error) {
	out, err := json.Marshal(jsonWire[T]{Version: Version, Envelope: h, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("envelope: json-encoding envelope: %w", err)
	}
	return out, nil
}

func decodeJSON[T any](data []byte) (Envelope[T], bool, error) {
	if len(data) == 0 {
		return Envelope[T]{}, true, nil
	}

	var w jsonWire[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope[T]{}, false, fmt.Errorf("%w: %v", borealiserr.ErrMalformedEnvelope, err)
	}
	if w.Version != Version {
		return Envelope[T]{}, false, fmt.Errorf("%w: unexpected version %d", borealiserr.ErrMalformedEnvelope, w.Version)
	}

	return Envelope[T]{Header: w.Envelope, Payload: w.Payload}, false, nil
}

// PeekHeader decodes only the header of a CBOR-framed envelope, leaving the
// payload unparsed. This is the routing/auditing shortcut spec §4.1's
// Rationale describes: a consumer can inspect event_type/sequential_id
// without paying for payload deserialization. JSON framing has no
// equivalent cheap path since header and payload share one JSON document.
func PeekHeader(data []byte) (Header, bool, error) {
	if len(data) == 0 {
		return Header{}, true, nil
	}
	if data[0] != Version {
		return Header{}, false, fmt.Errorf("%w: unknown version byte 0x%02x", borealiserr.ErrMalformedEnvelope, data[0])
	}

	dec := cbor.NewDecoder(bytes.NewReader(data[1:]))
	var h Header
	if err := dec.Decode(&h); err != nil {
		return Header{}, false, fmt.Errorf("%w: decoding header: %v", borealiserr.ErrMalformedEnvelope, err)
	}
	return h, false, nil
}
