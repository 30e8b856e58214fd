// Package dump implements the observer of spec §4.6: three strictly
// nested verbosity levels rendering a decoded StreamerMessage for operators
// and test assertions. It performs no bus I/O and has no retry logic.
package dump

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
)

// Level selects how much of a decoded message the observer renders. Each
// level strictly includes everything the previous one prints.
type Level int

const (
	BlockHashHeight Level = iota
	StreamerMessageDump
	StreamerMessageParse
)

// ParseLevel maps the --verbose flag's integer values (spec §6) onto Level.
func ParseLevel(verbose int) Level {
	switch {
	case verbose >= 2:
		return StreamerMessageParse
	case verbose == 1:
		return StreamerMessageDump
	default:
		return BlockHashHeight
	}
}

// Observer renders decoded messages at a fixed Level against a target log.
type Observer struct {
	Level  Level
	Logger zerolog.Logger
	Target string
}

func New(level Level, logger zerolog.Logger, target string) *Observer {
	return &Observer{Level: level, Logger: logger, Target: target}
}

// Observe prints msg at the configured verbosity. It never returns an error:
// a failed pretty or compact JSON render is logged and swallowed, and a
// structural walk entry whose JSON or CBOR render fails is written without
// that field, since the observer is a terminal, best-effort sink.
func (o *Observer) Observe(msg chainevent.StreamerMessage) {
	o.Logger.Info().
		Str("target", o.Target).
		Uint64("block_height", msg.Height()).
		Str("block_hash", msg.HashString()).
		Msg("block_height/block_hash")

	if o.Level < StreamerMessageDump {
		return
	}

	pretty, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		o.Logger.Error().Str("target", o.Target).Err(err).Msg("dump: pretty-json render failed")
	} else {
		o.Logger.Info().Str("target", o.Target).Msg("streamer_message (pretty json):\n" + string(pretty))
	}

	compact, err := json.Marshal(msg)
	if err != nil {
		o.Logger.Error().Str("target", o.Target).Err(err).Msg("dump: compact-json render failed")
	} else {
		o.Logger.Info().Str("target", o.Target).Str("streamer_message_compact", string(compact)).Msg("streamer_message (compact json)")
	}

	if o.Level < StreamerMessageParse {
		return
	}
	o.walk(msg)
}

// walk renders the structural per-shard/per-state-change breakdown in both
// JSON and CBOR, matching StreamerMessageParse (spec §4.6).
func (o *Observer) walk(msg chainevent.StreamerMessage) {
	for i, shard := range msg.Shards {
		o.renderStruct("shard", i, shard)
	}
	for i, sc := range msg.StateChanges {
		o.renderStruct("state_change", i, sc)
	}
}

func (o *Observer) renderStruct(kind string, index int, v any) {
	js, jerr := json.Marshal(v)
	cb, cerr := cbor.Marshal(v)

	ev := o.Logger.Info().Str("target", o.Target).Str("kind", kind).Int("index", index)
	if jerr == nil {
		ev = ev.Str("json", string(js))
	}
	if cerr == nil {
		ev = ev.Hex("cbor", cb)
	}
	ev.Msg("structural walk entry")
}
