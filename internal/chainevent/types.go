// Package chainevent models the two things this bridge needs from a
// blockchain indexer: the StreamerMessage payload shape it carries across
// the bus, and the Source boundary it reads events from. Everything past
// block.header.height/hash is opaque to the bridge (spec §1, §6) but is
// typed out here anyway so the observer (C6) has real structure to walk and
// the codec tests exercise a realistic nested payload rather than a toy one
// (SPEC_FULL §3).
package chainevent

// BlockHeaderView carries the two fields the bridge core reads, plus the
// fields original_source's borealis-indexer-types/src/types.rs keeps beside
// them. Only Height and Hash are read by the core; the rest passes through
// the codec untouched.
type BlockHeaderView struct {
	Height           uint64 `json:"height" cbor:"height"`
	Hash             string `json:"hash" cbor:"hash"`
	PrevHash         string `json:"prev_hash" cbor:"prev_hash"`
	Timestamp        uint64 `json:"timestamp" cbor:"timestamp"`
	TimestampNanosec uint64 `json:"timestamp_nanosec" cbor:"timestamp_nanosec"`
}

// BlockView wraps the header with the block's author, mirroring
// original_source's BlockView.
type BlockView struct {
	Header BlockHeaderView `json:"header" cbor:"header"`
	Author string          `json:"author" cbor:"author"`
}

// IndexerShard is an opaque per-shard chunk of a StreamerMessage. The
// bridge never inspects its contents; it exists so C6's
// StreamerMessageParse level has something concrete to walk per spec §4.6.
type IndexerShard struct {
	ShardID    uint64 `json:"shard_id" cbor:"shard_id"`
	ChunkHash  string `json:"chunk_hash,omitempty" cbor:"chunk_hash,omitempty"`
	Receipts   int    `json:"num_receipts" cbor:"num_receipts"`
	Transactions int  `json:"num_transactions" cbor:"num_transactions"`
}

// StateChangeWithCauseView is one state mutation attributed to a cause,
// mirroring original_source's type of the same name.
type StateChangeWithCauseView struct {
	Cause    string `json:"cause" cbor:"cause"`
	Type     string `json:"type" cbor:"type"`
	AffectedAccount string `json:"affected_account,omitempty" cbor:"affected_account,omitempty"`
}

// StreamerMessage is the reference payload type this deployment puts inside
// every envelope (spec §3). The bridge core reads only
// Block.Header.Height/Hash; Shards and StateChanges are carried opaquely.
type StreamerMessage struct {
	Block        BlockView                  `json:"block" cbor:"block"`
	Shards       []IndexerShard             `json:"shards" cbor:"shards"`
	StateChanges []StateChangeWithCauseView `json:"state_changes" cbor:"state_changes"`
}

// Height returns the sequence id the producer uses for this message (spec
// §3: "block.header.height used as the sequence id").
func (m StreamerMessage) Height() uint64 { return m.Block.Header.Height }

// HashString returns the operator-visible hash (spec §3: "block.header.hash
// used for operator-visible logging").
func (m StreamerMessage) HashString() string { return m.Block.Header.Hash }
