package connsup

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/metrics"
)

// eventQueueSize bounds the lifecycle event queue. Overflow drops the event
// (spec §9, "Callback -> event-queue bridge"): the health checker will
// re-observe any condition a dropped event would have reported.
const eventQueueSize = 64

// Supervisor owns exactly one live bus connection (spec §4.2). It is driven
// by Run, which must be started in its own goroutine (T1 of spec §5); every
// other goroutine in the process talks to it only through Current and
// RequestNewConnection.
type Supervisor struct {
	latch   *Latch
	events  chan Event
	nextCID atomic.Uint64

	dialer Dialer
	role   string
	tlsCfg TLSConfig
	logger zerolog.Logger

	// sleep is overridden in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// NewSupervisor builds a supervisor in its initial state (handle=none,
// CID=0). Call Run to perform the first connection attempt and start the
// event loop.
func NewSupervisor(dialer Dialer, role string, tlsCfg TLSConfig, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		latch:  NewLatch(),
		events: make(chan Event, eventQueueSize),
		dialer: dialer,
		role:   role,
		tlsCfg: tlsCfg,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Current returns the latch's current (cid, handle) pair.
func (s *Supervisor) Current() (uint64, Conn) { return s.latch.Current() }

// RequestNewConnection posts a NewConnectionRequest tagged with the CID the
// caller observed failing (spec §4.2, "Contract to publishers/consumers").
// The send never blocks.
func (s *Supervisor) RequestNewConnection(cid uint64) {
	s.post(Event{Kind: NewConnectionRequest, CID: cid})
}

func (s *Supervisor) post(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().
			Str("kind", ev.Kind.String()).
			Uint64("cid", ev.CID).
			Msg("connsup: event queue full, dropping event")
	}
}

// Run performs the initial connection and then processes lifecycle events
// until ctx is canceled, at which point it closes the current handle and
// returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.connectFresh(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if _, handle := s.latch.Current(); handle != nil {
				handle.Close()
			}
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// handle implements the compare-with-current-CID rule of spec §4.2: stale
// events (cid < current) are dropped silently; anything else triggers
// try_connect, which is a no-op when the existing handle is still healthy.
func (s *Supervisor) handle(ctx context.Context, ev Event) {
	currentCID, _ := s.latch.Current()

	if ev.CID < currentCID {
		s.logger.Debug().
			Uint64("event_cid", ev.CID).
			Uint64("current_cid", currentCID).
			Str("kind", ev.Kind.String()).
			Msg("connsup: stale event dropped")
		return
	}

	switch ev.Kind {
	case Reestablished:
		s.logger.Info().Uint64("cid", ev.CID).Msg("connsup: bus reestablished")
		s.tryConnect(ctx)
	case Lost:
		s.logger.Error().Uint64("cid", ev.CID).Msg("connsup: bus connection lost")
		s.tryConnect(ctx)
	case Closed, NewConnectionRequest:
		s.tryConnect(ctx)
	}
}

// tryConnect implements spec §4.2's try_connect: a 10s flush probes the
// existing handle; on success it is kept, on failure a fresh handle is
// opened and installed, and the old one is closed after the swap.
func (s *Supervisor) tryConnect(ctx context.Context) {
	if _, handle := s.latch.Current(); handle != nil {
		if err := handle.FlushTimeout(10 * time.Second); err == nil {
			return
		}
	}
	if err := s.connectFresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("connsup: giving up reconnecting (context canceled)")
	}
}

// connectFresh dials a new connection, retrying indefinitely with the
// backoff of spec §4.2 until one succeeds or ctx is done.
func (s *Supervisor) connectFresh(ctx context.Context) error {
	attempt := normalizeAttempt(0)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cid := s.nextCID.Add(1)
		opts, err := natsOptions(s.role, s.tlsCfg, cid, s.post)
		if err != nil {
			return err
		}

		conn, err := s.dialer.Dial(opts)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int("attempt", attempt).
				Str("auth_mode", s.tlsCfg.AuthMode()).
				Msg("connsup: dial failed, backing off")
			s.sleep(Backoff(attempt))
			attempt++
			continue
		}

		_, old := s.latch.Current()
		s.latch.store(cid, conn)
		if old != nil {
			old.Close()
		}
		metrics.ReconnectsTotal.Inc()

		s.logger.Info().
			Uint64("cid", cid).
			Str("auth_mode", s.tlsCfg.AuthMode()).
			Msg("connsup: connected")
		return nil
	}
}
