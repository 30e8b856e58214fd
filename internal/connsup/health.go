package connsup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// healthCheckInterval is the sleep between probes (spec §4.2, "Health
// check"), also the delay a publisher/consumer observes after a failed
// operation before retrying (spec §4.2, "Contract to publishers/consumers").
const healthCheckInterval = 500 * time.Millisecond

// Checker is the watchdog of spec §4.2 (T3 of spec §5): it loops forever,
// reading the supervisor's latch and flushing the current handle with a 10s
// deadline. A failed flush posts NewConnectionRequest for the CID it
// observed and sleeps before rereading. It runs independently of the
// publish/consume loop, beside the producer and consumer "run" pipelines;
// the "check" subcommands do not start it and make a single probe instead.
type Checker struct {
	sup    *Supervisor
	logger zerolog.Logger
	sleep  func(time.Duration)
}

// NewChecker builds a health checker over sup.
func NewChecker(sup *Supervisor, logger zerolog.Logger) *Checker {
	return &Checker{sup: sup, logger: logger, sleep: time.Sleep}
}

// Run blocks until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cid, handle := c.sup.Current()
		if handle == nil {
			c.sleep(healthCheckInterval)
			continue
		}

		if err := handle.FlushTimeout(10 * time.Second); err != nil {
			c.logger.Error().Err(err).Uint64("cid", cid).Msg("connsup: health probe failed")
			c.sup.RequestNewConnection(cid)
		}

		c.sleep(healthCheckInterval)
	}
}
