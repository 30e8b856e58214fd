package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Nonce is the envelope's 128-bit per-message identifier, used by the bus's
// duplicate window (spec §3, invariant I3). It implements
// encoding.BinaryMarshaler/Unmarshaler so the CBOR codec renders it as a
// compact byte string, and json.Marshaler/Unmarshaler so the JSON codec
// renders it as a hex string instead of an array of 16 small integers.
type Nonce [16]byte

// NewNonce draws a fresh nonce from the system CSPRNG.
func NewNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return Nonce{}, fmt.Errorf("envelope: generating nonce: %w", err)
	}
	return n, nil
}

func (n Nonce) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(n))
	copy(out, n[:])
	return out, nil
}

func (n *Nonce) UnmarshalBinary(b []byte) error {
	if len(b) != len(n) {
		return fmt.Errorf("envelope: nonce wants %d bytes, got %d", len(n), len(b))
	}
	copy(n[:], b)
	return nil
}

func (n Nonce) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(n[:]))
}

func (n *Nonce) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("envelope: decoding nonce hex: %w", err)
	}
	return n.UnmarshalBinary(b)
}

func (n Nonce) String() string { return hex.EncodeToString(n[:]) }
