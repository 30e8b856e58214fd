package stream

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/envelope"
)

type fakeJetStream struct {
	streams       map[string]*nats.StreamInfo
	consumers     map[string]*nats.ConsumerInfo
	addStreamErr  error
	addConsumerErr error
	addStreamCalls int
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{streams: map[string]*nats.StreamInfo{}, consumers: map[string]*nats.ConsumerInfo{}}
}

func (f *fakeJetStream) StreamInfo(name string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if info, ok := f.streams[name]; ok {
		return info, nil
	}
	return nil, errors.New("stream not found")
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.addStreamCalls++
	if f.addStreamErr != nil {
		// Simulate the race the error models: some other caller created
		// the stream concurrently, so a retried StreamInfo will now hit.
		f.streams[cfg.Name] = &nats.StreamInfo{Config: *cfg}
		return nil, f.addStreamErr
	}
	info := &nats.StreamInfo{Config: *cfg}
	f.streams[cfg.Name] = info
	return info, nil
}

func (f *fakeJetStream) ConsumerInfo(stream, durable string, _ ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	if info, ok := f.consumers[stream+"/"+durable]; ok {
		return info, nil
	}
	return nil, errors.New("consumer not found")
}

func (f *fakeJetStream) AddConsumer(stream string, cfg *nats.ConsumerConfig, _ ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	if f.addConsumerErr != nil {
		return nil, f.addConsumerErr
	}
	info := &nats.ConsumerInfo{Stream: stream, Config: *cfg}
	f.consumers[stream+"/"+cfg.Durable] = info
	return info, nil
}

func TestEnsureStreamCreatesOnce(t *testing.T) {
	js := newFakeJetStream()
	p := NewProvisioner(js, zerolog.Nop())

	streamName, subject, _ := Names("BlockIndex_StreamerMessages", envelope.Cbor)
	if subject != "BlockIndex_StreamerMessages_CBOR" {
		t.Fatalf("unexpected subject: %s", subject)
	}

	if _, err := p.EnsureStream(streamName, []string{subject}); err != nil {
		t.Fatalf("first EnsureStream: %v", err)
	}
	if _, err := p.EnsureStream(streamName, []string{subject}); err != nil {
		t.Fatalf("second EnsureStream (idempotent): %v", err)
	}
	if js.addStreamCalls != 1 {
		t.Fatalf("expected exactly one AddStream call, got %d", js.addStreamCalls)
	}
}

func TestEnsureStreamTreatsAlreadyInUseAsSuccess(t *testing.T) {
	js := newFakeJetStream()
	js.addStreamErr = nats.ErrStreamNameAlreadyInUse

	p := NewProvisioner(js, zerolog.Nop())
	if _, err := p.EnsureStream("S", []string{"S"}); err != nil {
		t.Fatalf("expected already-in-use to be treated as success, got %v", err)
	}
}

func TestEnsureConsumerCreatesOnce(t *testing.T) {
	js := newFakeJetStream()
	p := NewProvisioner(js, zerolog.Nop())

	streamName, subject, durable := Names("BlockIndex_StreamerMessages", envelope.JSON)
	if durable != "Borealis_Consumer_BlockIndex_StreamerMessages_JSON" {
		t.Fatalf("unexpected durable name: %s", durable)
	}

	if _, err := p.EnsureConsumer(streamName, durable, subject, DeliverLast()); err != nil {
		t.Fatalf("first EnsureConsumer: %v", err)
	}
	info, err := p.EnsureConsumer(streamName, durable, subject, DeliverLast())
	if err != nil {
		t.Fatalf("second EnsureConsumer (idempotent): %v", err)
	}
	if info.Config.AckPolicy != nats.AckExplicitPolicy {
		t.Fatalf("expected explicit ack policy, got %v", info.Config.AckPolicy)
	}
	if info.Config.ReplayPolicy != nats.ReplayInstantPolicy {
		t.Fatalf("expected instant replay policy, got %v", info.Config.ReplayPolicy)
	}
}

func TestEnsureConsumerByStartSeq(t *testing.T) {
	js := newFakeJetStream()
	p := NewProvisioner(js, zerolog.Nop())

	info, err := p.EnsureConsumer("S", "D", "S", DeliverByStartSeq(42))
	if err != nil {
		t.Fatalf("EnsureConsumer: %v", err)
	}
	if info.Config.OptStartSeq != 42 {
		t.Fatalf("expected OptStartSeq=42, got %d", info.Config.OptStartSeq)
	}
}
