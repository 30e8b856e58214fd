package envelope

import (
	"fmt"
	"strings"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
)

// Format selects the wire framing used for an envelope. The string value is
// also the upper-case token appended to a subject name (spec §3: "Subject
// naming").
type Format string

const (
	Cbor Format = "CBOR"
	JSON Format = "JSON"
)

// ParseFormat accepts case-insensitive spellings of a message format and
// rejects anything else with ErrConfig, per spec §6 ("All text enums accept
// case-insensitive input and reject unknown values with a single-line
// error").
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Cbor):
		return Cbor, nil
	case string(JSON):
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown message format %q (want CBOR or JSON)", borealiserr.ErrConfig, s)
	}
}

// Subject composes the on-bus subject name for base per spec §3:
// "<base-subject>_<FORMAT>".
func (f Format) Subject(base string) string {
	return base + "_" + string(f)
}

func (f Format) String() string { return string(f) }
