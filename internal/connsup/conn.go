// Package connsup implements the connection supervisor of spec §4.2: a
// single-writer/many-reader cell holding the current bus connection, an
// event loop that reacts to reestablish/lost/closed callbacks, and a
// watchdog health checker. Callers never hold the connection across a
// suspension point (spec §4.2, "Contract to publishers/consumers").
package connsup

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the slice of *nats.Conn the rest of this module needs. Narrowing
// it to an interface lets tests substitute a fake bus (spec §8, scenario
// S6) instead of dialing a real NATS server.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	SubscribeSync(subject string) (*nats.Subscription, error)
	JetStream(opts ...nats.JSOpt) (nats.JetStreamContext, error)
	Close()
}

// Dialer opens a fresh Conn. Production code uses natsDialer; tests
// substitute a fake that returns canned connections/errors.
type Dialer interface {
	Dial(opts []nats.Option) (Conn, error)
}

// natsDialer dials real NATS servers.
type natsDialer struct {
	servers []string
}

// NewNATSDialer builds a Dialer over the given comma-free server URL list
// (spec §6: "--nats-server (comma-separated URLs)" - splitting is the
// caller's job, this takes the already-split list).
func NewNATSDialer(servers []string) Dialer {
	return &natsDialer{servers: servers}
}

func (d *natsDialer) Dial(opts []nats.Option) (Conn, error) {
	url := nats.DefaultURL
	if len(d.servers) > 0 {
		url = joinServers(d.servers)
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

func joinServers(servers []string) string {
	out := servers[0]
	for _, s := range servers[1:] {
		out += "," + s
	}
	return out
}

// TLSConfig is the configuration triple of spec §4.2 ("Connection
// options"): (root_cert, client_cert, client_key).
type TLSConfig struct {
	RootCertPath   string
	ClientCertPath string
	ClientKeyPath  string
}

// AuthMode classifies the triple into the three modes spec §4.2 names.
func (c TLSConfig) AuthMode() string {
	switch {
	case c.RootCertPath != "" && c.ClientCertPath == "" && c.ClientKeyPath == "":
		return "tls-server-auth"
	case c.RootCertPath != "" && c.ClientCertPath != "" && c.ClientKeyPath != "":
		return "mutual-tls"
	default:
		return "plaintext"
	}
}

// natsOptions builds the options the supervisor attaches to every dial
// attempt: TLS per the configuration triple, the fixed reconnect buffer and
// in-library reconnect cap, a descriptive connection name, and the
// lifecycle callbacks translated into events on the supplied queue.
//
// Per spec §4.2: reconnect buffer is always 256 MiB, the library is allowed
// exactly one internal reconnect attempt (the supervisor drives everything
// past that), and the connection name is "Borealis <role> [<auth-mode>]".
func natsOptions(role string, tlsCfg TLSConfig, cid uint64, post func(Event)) ([]nats.Option, error) {
	mode := tlsCfg.AuthMode()

	opts := []nats.Option{
		nats.ReconnectBufSize(256 * 1024 * 1024),
		nats.MaxReconnects(1),
		nats.Name(fmt.Sprintf("Borealis %s [%s]", role, mode)),
		nats.ReconnectHandler(func(*nats.Conn) {
			post(Event{Kind: Reestablished, CID: cid})
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, _ error) {
			post(Event{Kind: Lost, CID: cid})
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			post(Event{Kind: Closed, CID: cid})
		}),
	}

	switch mode {
	case "tls-server-auth":
		opts = append(opts, nats.RootCAs(tlsCfg.RootCertPath))
	case "mutual-tls":
		opts = append(opts, nats.RootCAs(tlsCfg.RootCertPath), nats.ClientCert(tlsCfg.ClientCertPath, tlsCfg.ClientKeyPath))
	case "plaintext":
		// no TLS options; nats.Connect defaults to plaintext unless the
		// URL scheme is "tls://".
	}

	return opts, nil
}
