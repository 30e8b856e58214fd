package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelFromVerbose(t *testing.T) {
	cases := map[int]Level{
		0: LevelInfo,
		1: LevelDebug,
		2: LevelTrace,
		3: LevelTrace,
	}
	for verbose, want := range cases {
		if got := LevelFromVerbose(verbose); got != want {
			t.Fatalf("LevelFromVerbose(%d) = %v, want %v", verbose, got, want)
		}
	}
}

func TestParseDirectivesEmpty(t *testing.T) {
	directives, err := ParseDirectives("")
	if err != nil {
		t.Fatalf("ParseDirectives(\"\"): %v", err)
	}
	if directives != nil {
		t.Fatalf("expected a nil map for an empty directive string, got %v", directives)
	}
}

func TestParseDirectivesMultipleTargets(t *testing.T) {
	directives, err := ParseDirectives("borealis_producer=debug, borealis_consumer=trace")
	if err != nil {
		t.Fatalf("ParseDirectives: %v", err)
	}
	if directives["borealis_producer"] != LevelDebug {
		t.Fatalf("borealis_producer = %v, want debug", directives["borealis_producer"])
	}
	if directives["borealis_consumer"] != LevelTrace {
		t.Fatalf("borealis_consumer = %v, want trace", directives["borealis_consumer"])
	}
}

func TestParseDirectivesRejectsMissingEquals(t *testing.T) {
	if _, err := ParseDirectives("borealis_producer"); err == nil {
		t.Fatal("expected an error for a directive with no '='")
	}
}

func TestParseDirectivesRejectsUnknownLevel(t *testing.T) {
	if _, err := ParseDirectives("borealis_producer=verbose"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

// TestNewLoggerAppliesDirectiveOverride asserts that a BOREALIS_LOG directive
// for the logger's own target wins over the flat Level field, by observing
// the resulting global zerolog level NewLogger sets.
func TestNewLoggerAppliesDirectiveOverride(t *testing.T) {
	NewLogger(Config{
		Level:      LevelError,
		Format:     FormatJSON,
		Target:     "borealis_consumer",
		Directives: map[string]Level{"borealis_consumer": LevelTrace},
	})
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("global level = %v, want trace", zerolog.GlobalLevel())
	}
}
