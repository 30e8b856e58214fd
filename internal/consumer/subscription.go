package consumer

import (
	"time"

	"github.com/nats-io/nats.go"
)

// SyncSubscriber is the slice of *nats.Subscription subscriber mode needs
// (spec §4.5, "Subscriber mode"). Narrowed to an interface so tests can
// drive the pipeline without a live NATS server.
type SyncSubscriber interface {
	NextMsg(timeout time.Duration) (Message, error)
}

// PullSubscriber is the slice of *nats.Subscription stream mode needs (spec
// §4.5, "Stream mode"): a batch-of-one pull with a deadline.
type PullSubscriber interface {
	Fetch(batch int, timeout time.Duration) ([]Message, error)
}

type natsSyncSubscription struct{ sub *nats.Subscription }

func (s natsSyncSubscription) NextMsg(timeout time.Duration) (Message, error) {
	m, err := s.sub.NextMsg(timeout)
	if err != nil {
		return Message{}, err
	}
	return fromSyncMsg(m), nil
}

type natsPullSubscription struct{ sub *nats.Subscription }

func (s natsPullSubscription) Fetch(batch int, timeout time.Duration) ([]Message, error) {
	msgs, err := s.sub.Fetch(batch, nats.MaxWait(timeout))
	if err != nil {
		return nil, err
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = fromStreamMsg(m)
	}
	return out, nil
}
