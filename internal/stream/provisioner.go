package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
)

// duplicateWindow is the bus's own duplicate-detection window (spec §3,
// §4.3): 86400s, relied on alongside the envelope's 128-bit nonce for
// best-effort dedup across short producer restarts (spec §9).
const duplicateWindow = 86400 * time.Second

// JetStream is the slice of nats.JetStreamContext the provisioner needs.
// Any value satisfying nats.JetStreamContext also satisfies this interface;
// narrowing it lets tests substitute an in-memory fake.
type JetStream interface {
	StreamInfo(name string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	ConsumerInfo(stream, durable string, opts ...nats.JSOpt) (*nats.ConsumerInfo, error)
	AddConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error)
}

// DeliveryPolicy selects where a newly provisioned consumer starts reading
// from, per spec §4.3: Last (default), All, ByStartSeq(n), ByStartTime(t).
type DeliveryPolicy struct {
	Policy    nats.DeliverPolicy
	StartSeq  uint64
	StartTime *time.Time
}

func DeliverLast() DeliveryPolicy { return DeliveryPolicy{Policy: nats.DeliverLastPolicy} }
func DeliverAll() DeliveryPolicy  { return DeliveryPolicy{Policy: nats.DeliverAllPolicy} }

func DeliverByStartSeq(seq uint64) DeliveryPolicy {
	return DeliveryPolicy{Policy: nats.DeliverByStartSequencePolicy, StartSeq: seq}
}

func DeliverByStartTime(t time.Time) DeliveryPolicy {
	return DeliveryPolicy{Policy: nats.DeliverByStartTimePolicy, StartTime: &t}
}

// Provisioner creates or opens the server-side stream and durable consumer
// this deployment needs. Every operation is safe to call on every startup
// (spec §4.3, "Idempotence"); the server is the authority on current state
// and the provisioner never deletes.
type Provisioner struct {
	js     JetStream
	logger zerolog.Logger
}

func NewProvisioner(js JetStream, logger zerolog.Logger) *Provisioner {
	return &Provisioner{js: js, logger: logger}
}

// EnsureStream provisions name bound to subjects with the fixed policy spec
// §4.3 mandates: discard=Old, retention=Limits, storage=File,
// duplicate_window=86400s. An "already exists" race is treated as success.
func (p *Provisioner) EnsureStream(name string, subjects []string) (*nats.StreamInfo, error) {
	if info, err := p.js.StreamInfo(name); err == nil {
		p.logger.Info().Str("stream", name).Uint64("messages", info.State.Msgs).Msg("stream: already exists")
		return info, nil
	}

	info, err := p.js.AddStream(&nats.StreamConfig{
		Name:       name,
		Subjects:   subjects,
		Discard:    nats.DiscardOld,
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		Duplicates: duplicateWindow,
	})
	if err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return p.js.StreamInfo(name)
		}
		return nil, fmt.Errorf("%w: creating stream %q: %v", borealiserr.ErrStreamProvision, name, err)
	}

	p.logger.Info().Str("stream", name).Strs("subjects", subjects).Msg("stream: created")
	return info, nil
}

// EnsureConsumer provisions a durable consumer named durableName (or an
// ephemeral one if durableName is empty) on streamName, filtered to
// filterSubject, with ack_policy=Explicit and replay_policy=Instant fixed
// by spec §4.3, and the caller-selected delivery policy.
func (p *Provisioner) EnsureConsumer(streamName, durableName, filterSubject string, policy DeliveryPolicy) (*nats.ConsumerInfo, error) {
	if durableName != "" {
		if info, err := p.js.ConsumerInfo(streamName, durableName); err == nil {
			p.logger.Info().Str("stream", streamName).Str("durable", durableName).Msg("consumer: already exists")
			return info, nil
		}
	}

	cfg := &nats.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: filterSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
		DeliverPolicy: policy.Policy,
	}
	switch policy.Policy {
	case nats.DeliverByStartSequencePolicy:
		cfg.OptStartSeq = policy.StartSeq
	case nats.DeliverByStartTimePolicy:
		cfg.OptStartTime = policy.StartTime
	}

	info, err := p.js.AddConsumer(streamName, cfg)
	if err != nil {
		if errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
			return p.js.ConsumerInfo(streamName, durableName)
		}
		return nil, fmt.Errorf("%w: creating consumer %q on stream %q: %v", borealiserr.ErrStreamProvision, durableName, streamName, err)
	}

	p.logger.Info().Str("stream", streamName).Str("durable", durableName).Msg("consumer: created")
	return info, nil
}
