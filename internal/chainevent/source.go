package chainevent

import "context"

// Source is the indexer boundary of spec §4.4/§6: a finite-per-run producer
// of StreamerMessage values. The real indexer process is out of scope (spec
// §1); this module only specifies the shape production code pulls from and
// the channel contract tests replay against.
type Source interface {
	// Next blocks until an event is available, the source is exhausted
	// (ok=false), or ctx is done. It never reorders: successive calls
	// return events in the order the indexer produced them.
	Next(ctx context.Context) (msg StreamerMessage, ok bool, err error)
}

// ChanSource adapts a bounded channel of StreamerMessage into a Source. The
// producer pipeline is built against the Source interface so tests can
// drive it without a live indexer process. The producer CLI reads from
// stdin through StdinSource; ChanSource serves callers that already hold
// events on a channel.
type ChanSource struct {
	ch <-chan StreamerMessage
}

// NewChanSource wraps ch. Closing ch signals exhaustion.
func NewChanSource(ch <-chan StreamerMessage) *ChanSource {
	return &ChanSource{ch: ch}
}

func (s *ChanSource) Next(ctx context.Context) (StreamerMessage, bool, error) {
	select {
	case msg, open := <-s.ch:
		if !open {
			return StreamerMessage{}, false, nil
		}
		return msg, true, nil
	case <-ctx.Done():
		return StreamerMessage{}, false, ctx.Err()
	}
}

// ReplaySource replays a fixed, in-memory slice of events. It is used by
// the producer pipeline tests (in-order publishing and retry on publish
// failure); no CLI path constructs it.
type ReplaySource struct {
	events []StreamerMessage
	pos    int
}

func NewReplaySource(events []StreamerMessage) *ReplaySource {
	return &ReplaySource{events: events}
}

func (s *ReplaySource) Next(ctx context.Context) (StreamerMessage, bool, error) {
	select {
	case <-ctx.Done():
		return StreamerMessage{}, false, ctx.Err()
	default:
	}

	if s.pos >= len(s.events) {
		return StreamerMessage{}, false, nil
	}
	msg := s.events[s.pos]
	s.pos++
	return msg, true, nil
}
