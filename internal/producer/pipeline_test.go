package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/envelope"
)

type fakeConn struct {
	publishErr error
	published  [][]byte
}

func (c *fakeConn) Publish(_ string, data []byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, data)
	return nil
}
func (c *fakeConn) FlushTimeout(time.Duration) error                        { return nil }
func (c *fakeConn) SubscribeSync(string) (*nats.Subscription, error)        { return nil, nil }
func (c *fakeConn) JetStream(...nats.JSOpt) (nats.JetStreamContext, error)  { return nil, nil }
func (c *fakeConn) Close()                                                  {}

// fakeSupervisor starts with a connection that fails its first publish
// (spec §8 scenario S6: "a fake bus whose first publish returns Err and
// second returns Ok") and succeeds thereafter.
type fakeSupervisor struct {
	cid               uint64
	conn              *fakeConn
	newConnRequests   []uint64
}

func (s *fakeSupervisor) Current() (uint64, connsup.Conn) { return s.cid, s.conn }
func (s *fakeSupervisor) RequestNewConnection(cid uint64) { s.newConnRequests = append(s.newConnRequests, cid) }

func TestPipelinePublishesInOrderAndRetriesOnFailure(t *testing.T) {
	events := []chainevent.StreamerMessage{
		{Block: chainevent.BlockView{Header: chainevent.BlockHeaderView{Height: 10, Hash: "a"}}},
		{Block: chainevent.BlockView{Header: chainevent.BlockHeaderView{Height: 11, Hash: "b"}}},
	}
	source := chainevent.NewReplaySource(events)

	conn := &fakeConn{publishErr: errors.New("publish rejected")}
	sup := &fakeSupervisor{cid: 1, conn: conn}

	p := New(source, sup, "BlockIndex_StreamerMessages_CBOR", envelope.Cbor, zerolog.Nop())
	slept := 0
	p.sleep = func(time.Duration) { slept++; conn.publishErr = nil } // succeed after first retry

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(conn.published) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(conn.published))
	}
	if len(sup.newConnRequests) != 1 {
		t.Fatalf("expected exactly 1 reconnect request (one failure then success), got %d", len(sup.newConnRequests))
	}

	var decoded []envelope.Envelope[chainevent.StreamerMessage]
	for _, body := range conn.published {
		env, empty, err := envelope.Decode[chainevent.StreamerMessage](body, envelope.Cbor)
		if err != nil || empty {
			t.Fatalf("decode published body: empty=%v err=%v", empty, err)
		}
		decoded = append(decoded, env)
	}
	if decoded[0].Header.SequentialID != 10 || decoded[1].Header.SequentialID != 11 {
		t.Fatalf("published out of order: %+v", decoded)
	}
}

func TestPipelineStopsOnEmptySource(t *testing.T) {
	source := chainevent.NewReplaySource(nil)
	conn := &fakeConn{}
	sup := &fakeSupervisor{cid: 1, conn: conn}

	p := New(source, sup, "subj", envelope.JSON, zerolog.Nop())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run on empty source: %v", err)
	}
	if len(conn.published) != 0 {
		t.Fatalf("expected no publishes, got %d", len(conn.published))
	}
}
