// Package stream implements the stream provisioner of spec §4.3: idempotent
// create-or-open of a JetStream stream and durable consumer.
package stream

import "github.com/andrcmdr/australis-indexer/internal/envelope"

// consumerPrefix is fixed by spec §4.3: "durable_name =
// 'Borealis_Consumer_<base>_<FORMAT>'".
const consumerPrefix = "Borealis_Consumer_"

// Names derives the stream name, filter/deliver subject, and durable
// consumer name for base and format, per spec §4.3: "stream_name =
// deliver_subject = filter_subject = '<base>_<FORMAT>'".
func Names(base string, format envelope.Format) (streamName, subject, durableName string) {
	subject = format.Subject(base)
	return subject, subject, consumerPrefix + subject
}
