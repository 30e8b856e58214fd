package dump

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
)

func sampleMessage() chainevent.StreamerMessage {
	return chainevent.StreamerMessage{
		Block: chainevent.BlockView{
			Header: chainevent.BlockHeaderView{Height: 63596, Hash: "5X37abc8mk"},
			Author: "validator.near",
		},
		Shards: []chainevent.IndexerShard{
			{ShardID: 0, ChunkHash: "chunk0", Receipts: 3, Transactions: 1},
		},
		StateChanges: []chainevent.StateChangeWithCauseView{
			{Cause: "transaction_processing", Type: "account_update", AffectedAccount: "alice.near"},
		},
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[int]Level{0: BlockHashHeight, 1: StreamerMessageDump, 2: StreamerMessageParse, 5: StreamerMessageParse}
	for verbose, want := range cases {
		if got := ParseLevel(verbose); got != want {
			t.Errorf("ParseLevel(%d) = %v, want %v", verbose, got, want)
		}
	}
}

func TestObserveBlockHashHeightOmitsPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	o := New(BlockHashHeight, logger, "borealis_consumer")

	o.Observe(sampleMessage())

	out := buf.String()
	if !strings.Contains(out, "63596") || !strings.Contains(out, "5X37abc8mk") {
		t.Fatalf("expected height/hash in output, got %q", out)
	}
	if strings.Contains(out, "pretty json") {
		t.Fatalf("BlockHashHeight must not render the payload: %q", out)
	}
}

func TestObserveStreamerMessageDumpIncludesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	o := New(StreamerMessageDump, logger, "borealis_consumer")

	o.Observe(sampleMessage())

	out := buf.String()
	if !strings.Contains(out, "pretty json") {
		t.Fatalf("expected pretty json section, got %q", out)
	}
	if !strings.Contains(out, "streamer_message_compact") {
		t.Fatalf("expected compact json field, got %q", out)
	}
	if strings.Contains(out, "structural walk entry") {
		t.Fatalf("StreamerMessageDump must not include the structural walk: %q", out)
	}
}

func TestObserveStreamerMessageParseWalksShardsAndStateChanges(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	o := New(StreamerMessageParse, logger, "borealis_consumer")

	o.Observe(sampleMessage())

	out := buf.String()
	if strings.Count(out, "structural walk entry") != 2 {
		t.Fatalf("expected 2 structural walk entries (1 shard + 1 state change), got: %q", out)
	}
	if !strings.Contains(out, `"kind":"shard"`) || !strings.Contains(out, `"kind":"state_change"`) {
		t.Fatalf("expected both shard and state_change entries, got %q", out)
	}
}
