package consumer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/dump"
	"github.com/andrcmdr/australis-indexer/internal/envelope"
)

type fakeHandle struct{}

func (fakeHandle) Publish(string, []byte) error                       { return nil }
func (fakeHandle) FlushTimeout(time.Duration) error                    { return nil }
func (fakeHandle) SubscribeSync(string) (*nats.Subscription, error)    { return nil, nil }
func (fakeHandle) JetStream(...nats.JSOpt) (nats.JetStreamContext, error) {
	return nil, nil
}
func (fakeHandle) Close() {}

type fakeSupervisor struct {
	cid  uint64
	conn connsup.Conn
}

func (s *fakeSupervisor) Current() (uint64, connsup.Conn) { return s.cid, s.conn }
func (s *fakeSupervisor) RequestNewConnection(uint64)     {}

// fakeSyncSub delivers one message, then cancels ctx and reports timeouts.
type fakeSyncSub struct {
	calls  int
	msg    Message
	cancel context.CancelFunc
}

func (f *fakeSyncSub) NextMsg(time.Duration) (Message, error) {
	f.calls++
	if f.calls == 1 {
		return f.msg, nil
	}
	f.cancel()
	return Message{}, nats.ErrTimeout
}

type fakePullSub struct {
	calls  int
	msgs   []Message
	cancel context.CancelFunc
}

func (f *fakePullSub) Fetch(int, time.Duration) ([]Message, error) {
	f.calls++
	if f.calls == 1 {
		return f.msgs, nil
	}
	f.cancel()
	return nil, nats.ErrTimeout
}

func encodedMessage(t *testing.T, height uint64, hash string) Message {
	t.Helper()
	msg := chainevent.StreamerMessage{Block: chainevent.BlockView{Header: chainevent.BlockHeaderView{Height: height, Hash: hash}}}
	body, err := envelope.Encode(height, msg, envelope.Cbor)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return Message{Data: body}
}

func TestSubscriberModeDecodesAndObserves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &fakeSyncSub{msg: encodedMessage(t, 42, "hash42"), cancel: cancel}

	var buf bytes.Buffer
	observer := dump.New(dump.BlockHashHeight, zerolog.New(&buf), "borealis_consumer")

	p := New(&fakeSupervisor{cid: 1, conn: fakeHandle{}}, Subscriber, "subj", "", "", envelope.Cbor, observer, zerolog.Nop())
	p.subscribe = func(connsup.Conn, string) (SyncSubscriber, error) { return sub, nil }

	if err := p.Run(ctx); err == nil {
		t.Fatal("expected Run to return ctx.Err() after cancellation")
	}
	if sub.calls < 2 {
		t.Fatalf("expected at least 2 NextMsg calls, got %d", sub.calls)
	}
	if !bytes.Contains(buf.Bytes(), []byte("hash42")) {
		t.Fatalf("expected observer to have seen the decoded message, got %q", buf.String())
	}
}

func TestStreamModeAcksOnSuccessfulDecode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	acked := false
	m := encodedMessage(t, 7, "hash7")
	m.ack = func() error { acked = true; return nil }

	pull := &fakePullSub{msgs: []Message{m}, cancel: cancel}

	var buf bytes.Buffer
	observer := dump.New(dump.BlockHashHeight, zerolog.New(&buf), "borealis_consumer")

	p := New(&fakeSupervisor{cid: 1, conn: fakeHandle{}}, JetStream, "subj", "Stream", "Durable", envelope.Cbor, observer, zerolog.Nop())
	p.pullSubscribe = func(connsup.Conn, string, string, string) (PullSubscriber, error) { return pull, nil }

	if err := p.Run(ctx); err == nil {
		t.Fatal("expected Run to return ctx.Err() after cancellation")
	}
	if !acked {
		t.Fatal("expected successfully decoded message to be acked")
	}
}

func TestStreamModeLeavesMalformedMessageUnacked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	acked := false
	bad := Message{Data: []byte("not a valid envelope"), ack: func() error { acked = true; return nil }}

	pull := &fakePullSub{msgs: []Message{bad}, cancel: cancel}

	var buf bytes.Buffer
	observer := dump.New(dump.BlockHashHeight, zerolog.New(&buf), "borealis_consumer")

	p := New(&fakeSupervisor{cid: 1, conn: fakeHandle{}}, JetStream, "subj", "Stream", "Durable", envelope.Cbor, observer, zerolog.Nop())
	p.pullSubscribe = func(connsup.Conn, string, string, string) (PullSubscriber, error) { return pull, nil }

	if err := p.Run(ctx); err == nil {
		t.Fatal("expected Run to return ctx.Err() after cancellation")
	}
	if acked {
		t.Fatal("malformed envelope must not be acked")
	}
}

// failNTimesHandler fails its first n calls and succeeds afterward,
// recording the payload it was eventually handed successfully.
type failNTimesHandler struct {
	n        int
	calls    int
	observed *chainevent.StreamerMessage
}

func (h *failNTimesHandler) Handle(msg chainevent.StreamerMessage) error {
	h.calls++
	if h.calls <= h.n {
		return errors.New("handler not ready yet")
	}
	m := msg
	h.observed = &m
	return nil
}

// redeliveringPullSub hands back the same message on every Fetch until it is
// acked, simulating a JetStream server redelivering an un-acked message.
type redeliveringPullSub struct {
	msg    Message
	acked  bool
	cancel context.CancelFunc
	fetches int
}

func (f *redeliveringPullSub) Fetch(int, time.Duration) ([]Message, error) {
	f.fetches++
	if f.acked {
		f.cancel()
		return nil, nats.ErrTimeout
	}
	return []Message{f.msg}, nil
}

// TestStreamModeRedeliversUntilHandlerSucceeds exercises property P6: a
// handler that fails for the first k deliveries and succeeds on the k+1-th
// causes the payload to be observed and the message acked only once the
// handler finally succeeds.
func TestStreamModeRedeliversUntilHandlerSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &failNTimesHandler{n: 2}
	ackCount := 0
	m := encodedMessage(t, 99, "hash99")

	sub := &redeliveringPullSub{cancel: cancel}
	sub.msg = m
	sub.msg.ack = func() error {
		ackCount++
		sub.acked = true
		return nil
	}

	p := NewWithHandler(&fakeSupervisor{cid: 1, conn: fakeHandle{}}, JetStream, "subj", "Stream", "Durable", envelope.Cbor, handler, zerolog.Nop())
	p.pullSubscribe = func(connsup.Conn, string, string, string) (PullSubscriber, error) { return sub, nil }

	if err := p.Run(ctx); err == nil {
		t.Fatal("expected Run to return ctx.Err() after cancellation")
	}
	if handler.calls != 3 {
		t.Fatalf("expected handler to be called 3 times (2 failures + 1 success), got %d", handler.calls)
	}
	if handler.observed == nil {
		t.Fatal("expected the payload to eventually be observed by the handler")
	}
	if handler.observed.Block.Header.Height != 99 {
		t.Fatalf("observed wrong payload: %+v", handler.observed)
	}
	if ackCount != 1 {
		t.Fatalf("expected exactly one ack once the handler succeeded, got %d", ackCount)
	}
}

func TestParseWorkModeCaseInsensitive(t *testing.T) {
	for _, s := range []string{"subscriber", "Subscriber", "SUBSCRIBER"} {
		if mode, err := ParseWorkMode(s); err != nil || mode != Subscriber {
			t.Fatalf("ParseWorkMode(%q) = %v, %v", s, mode, err)
		}
	}
	for _, s := range []string{"jetstream", "JetStream", "JETSTREAM"} {
		if mode, err := ParseWorkMode(s); err != nil || mode != JetStream {
			t.Fatalf("ParseWorkMode(%q) = %v, %v", s, mode, err)
		}
	}
	if _, err := ParseWorkMode("polling"); err == nil {
		t.Fatal("expected an error for an unknown work-mode")
	}
}
