package consumer

import (
	"fmt"
	"strings"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
)

// WorkMode selects between the two consumer pipeline modes of spec §4.5.
type WorkMode string

const (
	Subscriber WorkMode = "Subscriber"
	JetStream  WorkMode = "JetStream"
)

// ParseWorkMode accepts any case spelling of the two modes (spec §6, "all
// text enums accept case-insensitive input") and rejects anything else with
// a ConfigError.
func ParseWorkMode(s string) (WorkMode, error) {
	switch strings.ToLower(s) {
	case "subscriber":
		return Subscriber, nil
	case "jetstream":
		return JetStream, nil
	default:
		return "", fmt.Errorf("%w: unknown work-mode %q", borealiserr.ErrConfig, s)
	}
}
