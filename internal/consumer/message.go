package consumer

import "github.com/nats-io/nats.go"

// Message is the slice of *nats.Msg the consumer pipeline needs: the raw
// body and an acknowledgement hook. Subscriber-mode messages carry a no-op
// Ack; stream-mode messages carry the server's real JetStream Msg.Ack.
type Message struct {
	Data []byte
	ack  func() error
}

func (m Message) Ack() error {
	if m.ack == nil {
		return nil
	}
	return m.ack()
}

func fromSyncMsg(m *nats.Msg) Message {
	return Message{Data: m.Data}
}

func fromStreamMsg(m *nats.Msg) Message {
	return Message{Data: m.Data, ack: m.Ack}
}
