// Package producer implements the producer pipeline of spec §4.4: pull
// block events from the indexer, tag each with its height, encode via the
// envelope codec, and publish through the connection supervisor with
// automatic retry on publish failure.
package producer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/envelope"
	"github.com/andrcmdr/australis-indexer/internal/metrics"
)

// retryDelay is the fixed sleep between a failed publish and the next
// attempt (spec §4.4, step 5).
const retryDelay = 500 * time.Millisecond

// Supervisor is the slice of *connsup.Supervisor the pipeline needs.
type Supervisor interface {
	Current() (cid uint64, handle connsup.Conn)
	RequestNewConnection(cid uint64)
}

// Pipeline runs the per-event procedure of spec §4.4 against a chain event
// source, encoding and publishing each event in order and never dropping
// one on a publish failure.
type Pipeline struct {
	Source  chainevent.Source
	Sup     Supervisor
	Subject string
	Format  envelope.Format
	Logger  zerolog.Logger

	// sleep is overridden in tests.
	sleep func(time.Duration)
}

func New(source chainevent.Source, sup Supervisor, subject string, format envelope.Format, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Source:  source,
		Sup:     sup,
		Subject: subject,
		Format:  format,
		Logger:  logger,
		sleep:   time.Sleep,
	}
}

// Run drains Source until it is exhausted or ctx is done, publishing every
// event in the order it was produced (spec §4.4, "Ordering"). It never
// reorders and never drops an event on a transient publish failure (spec
// §7: PublishError is never fatal).
func (p *Pipeline) Run(ctx context.Context) error {
	if p.sleep == nil {
		p.sleep = time.Sleep
	}

	var lastHeight uint64
	first := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, ok, err := p.Source.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			p.Logger.Info().Str("target", "borealis_producer").Msg("producer: source exhausted, shutting down")
			return nil
		}

		height := msg.Height()
		if !first && height < lastHeight {
			p.Logger.Error().
				Str("target", "borealis_producer").
				Uint64("height", height).
				Uint64("last_height", lastHeight).
				Msg("producer: sequential_id decreased within a run (invariant I1 violated by the indexer)")
		}
		lastHeight = height
		first = false

		body, err := envelope.Encode(height, msg, p.Format)
		if err != nil {
			return err
		}

		if err := p.publishWithRetry(ctx, body, height, msg.HashString()); err != nil {
			return err
		}
		metrics.PublishedTotal.Inc()
	}
}

// publishWithRetry implements spec §4.4 steps 3-5: acquire the current
// connection, publish, and on failure post a reconnect request, sleep, and
// retry - the event is never dropped.
func (p *Pipeline) publishWithRetry(ctx context.Context, body []byte, height uint64, hash string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cid, handle := p.Sup.Current()
		if handle == nil {
			metrics.PublishErrorsTotal.Inc()
			p.Sup.RequestNewConnection(cid)
			p.sleep(retryDelay)
			continue
		}

		err := handle.Publish(p.Subject, body)
		if err == nil {
			p.Logger.Info().
				Str("target", "borealis_producer").
				Uint64("block_height", height).
				Str("block_hash", hash).
				Str("subject", p.Subject).
				Msg("producer: published")
			return nil
		}

		metrics.PublishErrorsTotal.Inc()
		p.Logger.Error().
			Err(err).
			Str("target", "borealis_producer").
			Uint64("cid", cid).
			Uint64("block_height", height).
			Msg("producer: publish failed, requesting new connection")
		p.Sup.RequestNewConnection(cid)
		p.sleep(retryDelay)
	}
}
