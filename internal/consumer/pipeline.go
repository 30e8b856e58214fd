// Package consumer implements the consumer pipeline of spec §4.5: either a
// plain subscription or a durable JetStream pull consumer, decoding every
// message through the envelope codec and forwarding the payload to a
// Handler. Processing is strictly sequential - the next fetch never begins
// before the previous handler returns (spec §4.5, "at-most-one concurrent
// handler per connection").
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/dump"
	"github.com/andrcmdr/australis-indexer/internal/envelope"
	"github.com/andrcmdr/australis-indexer/internal/metrics"
)

// fetchTimeout is the fixed next/process deadline of spec §4.5.
const fetchTimeout = 10 * time.Second

// retryDelay is the sleep between a subscribe/connection failure and the
// next attempt, matching the producer's fixed retry cadence (spec §4.4).
const retryDelay = 500 * time.Millisecond

// Supervisor is the slice of *connsup.Supervisor the pipeline needs.
type Supervisor interface {
	Current() (cid uint64, handle connsup.Conn)
	RequestNewConnection(cid uint64)
}

// Pipeline runs one consumer role instance: either Subscriber or JetStream
// mode, against a single subject, decoding with Format and forwarding every
// decoded payload to Handler.
type Pipeline struct {
	Sup         Supervisor
	Mode        WorkMode
	Subject     string
	StreamName  string
	DurableName string
	Format      envelope.Format
	Handler     Handler
	Logger      zerolog.Logger

	// sleep is overridden in tests.
	sleep func(time.Duration)

	// subscribe and pullSubscribe are overridden in tests so the loops can
	// be driven without a real NATS connection.
	subscribe     func(handle connsup.Conn, subject string) (SyncSubscriber, error)
	pullSubscribe func(handle connsup.Conn, subject, streamName, durableName string) (PullSubscriber, error)
}

// New builds a Pipeline whose Handler forwards every decoded payload to
// observer. Use NewWithHandler to supply a Handler that can itself fail
// (spec §8, property P6).
func New(sup Supervisor, mode WorkMode, subject, streamName, durableName string, format envelope.Format, observer *dump.Observer, logger zerolog.Logger) *Pipeline {
	return NewWithHandler(sup, mode, subject, streamName, durableName, format, NewObservingHandler(observer), logger)
}

// NewWithHandler builds a Pipeline against an arbitrary Handler.
func NewWithHandler(sup Supervisor, mode WorkMode, subject, streamName, durableName string, format envelope.Format, handler Handler, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Sup:           sup,
		Mode:          mode,
		Subject:       subject,
		StreamName:    streamName,
		DurableName:   durableName,
		Format:        format,
		Handler:       handler,
		Logger:        logger,
		sleep:         time.Sleep,
		subscribe:     subscribeNATS,
		pullSubscribe: pullSubscribeNATS,
	}
}

func subscribeNATS(handle connsup.Conn, subject string) (SyncSubscriber, error) {
	natsSub, err := handle.SubscribeSync(subject)
	if err != nil {
		return nil, err
	}
	return natsSyncSubscription{sub: natsSub}, nil
}

func pullSubscribeNATS(handle connsup.Conn, subject, streamName, durableName string) (PullSubscriber, error) {
	js, err := handle.JetStream()
	if err != nil {
		return nil, err
	}
	natsSub, err := js.PullSubscribe(subject, durableName, nats.Bind(streamName, durableName))
	if err != nil {
		return nil, err
	}
	return natsPullSubscription{sub: natsSub}, nil
}

// Run dispatches to the configured mode's loop. It runs until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.sleep == nil {
		p.sleep = time.Sleep
	}
	switch p.Mode {
	case JetStream:
		return p.runStream(ctx)
	default:
		return p.runSubscriber(ctx)
	}
}

// runSubscriber implements spec §4.5's subscriber-mode loop: open a plain
// subscription, then next_timeout(10s) forever, decoding on message and
// continuing on timeout.
func (p *Pipeline) runSubscriber(ctx context.Context) error {
	var sub SyncSubscriber
	var boundCID uint64
	haveSub := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cid, handle := p.Sup.Current()
		if handle == nil || !haveSub || cid != boundCID {
			if handle == nil {
				p.sleep(retryDelay)
				continue
			}
			newSub, err := p.subscribe(handle, p.Subject)
			if err != nil {
				p.Logger.Error().Err(err).Str("target", "borealis_consumer").Msg("consumer: subscribe failed, retrying")
				p.Sup.RequestNewConnection(cid)
				p.sleep(retryDelay)
				continue
			}
			sub = newSub
			boundCID = cid
			haveSub = true
		}

		msg, err := sub.NextMsg(fetchTimeout)
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				metrics.FetchTimeoutsTotal.Inc()
				p.Logger.Debug().Str("target", "borealis_consumer").Msg("consumer: fetch timeout, continuing")
				continue
			}
			p.Logger.Error().Err(err).Str("target", "borealis_consumer").Msg("consumer: next_msg failed, resubscribing")
			p.Sup.RequestNewConnection(cid)
			haveSub = false
			p.sleep(retryDelay)
			continue
		}

		p.handle(msg, false)
	}
}

// runStream implements spec §4.5's stream-mode loop: ensure the pull
// subscription is open against the durable consumer, then
// process_timeout(10s, handler), acking on success and leaving the message
// un-acked on decode/handler failure so the server redelivers it.
func (p *Pipeline) runStream(ctx context.Context) error {
	var sub PullSubscriber
	var boundCID uint64
	haveSub := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cid, handle := p.Sup.Current()
		if handle == nil || !haveSub || cid != boundCID {
			if handle == nil {
				p.sleep(retryDelay)
				continue
			}
			newSub, err := p.pullSubscribe(handle, p.Subject, p.StreamName, p.DurableName)
			if err != nil {
				p.Logger.Error().Err(err).Str("target", "borealis_consumer").Msg("consumer: pull subscribe failed, retrying")
				p.Sup.RequestNewConnection(cid)
				p.sleep(retryDelay)
				continue
			}
			sub = newSub
			boundCID = cid
			haveSub = true
		}

		msgs, err := sub.Fetch(1, fetchTimeout)
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				metrics.FetchTimeoutsTotal.Inc()
				p.Logger.Debug().Str("target", "borealis_consumer").Msg("consumer: fetch timeout, continuing")
				continue
			}
			p.Logger.Error().Err(err).Str("target", "borealis_consumer").Msg("consumer: fetch failed, resubscribing")
			p.Sup.RequestNewConnection(cid)
			haveSub = false
			p.sleep(retryDelay)
			continue
		}

		for _, msg := range msgs {
			p.handle(msg, true)
		}
	}
}

// handle implements the "handler contract" of spec §4.5: decode, forward to
// Handler, and in stream mode acknowledge only if both decode and Handler
// succeed. Decode and handler failures are fatal to the message, never to
// the loop - in stream mode the message is left un-acked so the server
// redelivers it (spec §7, MalformedEnvelope/HandlerError policy).
func (p *Pipeline) handle(msg Message, ackOnSuccess bool) {
	metrics.ConsumedTotal.Inc()

	env, empty, err := envelope.Decode[chainevent.StreamerMessage](msg.Data, p.Format)
	if err != nil || empty {
		metrics.DecodeErrorsTotal.Inc()
		if ackOnSuccess {
			metrics.NakTotal.Inc()
		}
		p.Logger.Error().
			Str("target", "borealis_consumer").
			Err(err).
			Bool("empty", empty).
			Msg("consumer: malformed envelope, dropping message")
		return
	}

	if err := p.Handler.Handle(env.Payload); err != nil {
		if ackOnSuccess {
			metrics.NakTotal.Inc()
		}
		p.Logger.Error().
			Err(wrapHandlerErr(err)).
			Str("target", "borealis_consumer").
			Uint64("block_height", env.Payload.Height()).
			Msg("consumer: handler failed, leaving message for redelivery")
		return
	}

	if ackOnSuccess {
		if err := msg.Ack(); err != nil {
			p.Logger.Error().Err(err).Str("target", "borealis_consumer").Msg("consumer: ack failed")
			return
		}
		metrics.AckTotal.Inc()
	}
}
