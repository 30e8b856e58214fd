package envelope

import "time"

// EventTypeBlockEvent is the header's event_type discriminator for
// block-event payloads (spec §3). Other values are reserved for future use;
// this module never interprets them.
const EventTypeBlockEvent uint16 = 4096

// BorealisEpoch is the origin of Header.TimestampS: 1231006505 Unix seconds,
// the Bitcoin genesis block timestamp (spec §3, Glossary).
const BorealisEpoch int64 = 1231006505

// Header is the envelope's fixed metadata block. The blank _ field with the
// ",toarray" tag tells the CBOR codec to encode the remaining fields
// positionally, in declaration order, instead of as a string-keyed map -
// this is what produces the compact "cbor(header)" segment of spec §3's wire
// framing.
type Header struct {
	_ struct{} `cbor:",toarray"`

	EventType    uint16 `json:"event_type"`
	SequentialID uint64 `json:"sequential_id"`
	TimestampS   uint32 `json:"timestamp_s"`
	TimestampMS  uint16 `json:"timestamp_ms"`
	UniqueID     Nonce  `json:"unique_id"`
}

// NewHeader builds a fresh header for seqID at wall-clock time now, per the
// timestamp policy of spec §4.1: TimestampS is floor(now - BorealisEpoch)
// truncated to u32 (wraps after ~136 years - the source does this and this
// rewrite preserves it unresolved, see spec §9(a)); TimestampMS is the
// residual milliseconds.
func NewHeader(seqID uint64, eventType uint16, now time.Time) (Header, error) {
	nonce, err := NewNonce()
	if err != nil {
		return Header{}, err
	}

	delta := now.Unix() - BorealisEpoch
	if delta < 0 {
		delta = 0
	}

	return Header{
		EventType:    eventType,
		SequentialID: seqID,
		TimestampS:   uint32(delta),
		TimestampMS:  uint16(now.UnixMilli() % 1000),
		UniqueID:     nonce,
	}, nil
}
