// Command borealis-consumer receives envelopes from a NATS bus and hands
// decoded payloads to the observer (spec §1, §4.5). It exposes the
// check/run subcommands of spec §6 via urfave/cli/v2.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/andrcmdr/australis-indexer/internal/config"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/consumer"
	"github.com/andrcmdr/australis-indexer/internal/dump"
	"github.com/andrcmdr/australis-indexer/internal/logging"
	"github.com/andrcmdr/australis-indexer/internal/metrics"
	"github.com/andrcmdr/australis-indexer/internal/stream"
)

var sharedFlags = []cli.Flag{
	&cli.StringFlag{Name: "root-cert-path"},
	&cli.StringFlag{Name: "client-cert-path"},
	&cli.StringFlag{Name: "client-private-key"},
	&cli.StringFlag{Name: "creds-path"},
	&cli.StringFlag{Name: "nats-server"},
	&cli.StringFlag{Name: "subject"},
	&cli.StringFlag{Name: "msg-format"},
	&cli.IntFlag{Name: "verbose"},
	&cli.StringFlag{Name: "metrics-addr"},
}

var consumerFlags = append(append([]cli.Flag{}, sharedFlags...),
	&cli.StringFlag{Name: "work-mode"},
)

func loadConfig(c *cli.Context) (*config.ConsumerConfig, error) {
	cfg, err := config.LoadConsumerConfig(nil)
	if err != nil {
		return nil, err
	}
	if c.IsSet("root-cert-path") {
		cfg.RootCertPath = c.String("root-cert-path")
	}
	if c.IsSet("client-cert-path") {
		cfg.ClientCertPath = c.String("client-cert-path")
	}
	if c.IsSet("client-private-key") {
		cfg.ClientPrivateKey = c.String("client-private-key")
	}
	if c.IsSet("creds-path") {
		cfg.CredsPath = c.String("creds-path")
	}
	if c.IsSet("nats-server") {
		cfg.NATSServers = c.String("nats-server")
	}
	if c.IsSet("subject") {
		cfg.Subject = c.String("subject")
	}
	if c.IsSet("msg-format") {
		cfg.MsgFormat = c.String("msg-format")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Int("verbose")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("work-mode") {
		cfg.WorkMode = c.String("work-mode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:  "borealis-consumer",
		Usage: "receive decoded block events from a NATS bus",
		Commands: []*cli.Command{
			checkCommand(),
			runCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "establish a connection and report a health summary",
		Flags: sharedFlags,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logCfg, err := cfg.LoggingConfig("borealis_consumer")
			if err != nil {
				return err
			}
			logger := logging.NewLogger(logCfg)

			nc, err := nats.Connect(joinFirst(cfg.Servers()), nats.Name("Borealis Consumer [check]"))
			if err != nil {
				return fmt.Errorf("check: connect failed: %w", err)
			}
			defer nc.Close()

			start := time.Now()
			if err := nc.FlushTimeout(10 * time.Second); err != nil {
				return fmt.Errorf("check: health probe failed: %w", err)
			}
			rtt := time.Since(start)

			id, _ := nc.GetClientID()
			fmt.Printf("connected: true\n")
			fmt.Printf("rtt: %s\n", rtt)
			ip, _ := nc.GetClientIP()
			fmt.Printf("client_ip: %s\n", ip)
			fmt.Printf("client_id: %d\n", id)
			fmt.Printf("max_payload: %d\n", nc.MaxPayload())
			logger.Info().Str("rtt", rtt.String()).Msg("check: ok")
			return nil
		},
	}
}

func joinFirst(servers []string) string {
	if len(servers) == 0 {
		return nats.DefaultURL
	}
	out := servers[0]
	for _, s := range servers[1:] {
		out += "," + s
	}
	return out
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the consumer pipeline",
		Flags: consumerFlags,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logCfg, err := cfg.LoggingConfig("borealis_consumer")
			if err != nil {
				return err
			}
			logger := logging.NewLogger(logCfg)
			cfg.LogConfig(logger)

			format, err := cfg.Format()
			if err != nil {
				return err
			}
			mode, err := consumer.ParseWorkMode(cfg.WorkMode)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info().Msg("consumer: shutdown signal received")
				cancel()
			}()

			if cfg.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(cfg.MetricsAddr); err != nil {
						logger.Error().Err(err).Msg("consumer: metrics server stopped")
					}
				}()
			}

			dialer := connsup.NewNATSDialer(cfg.Servers())
			sup := connsup.NewSupervisor(dialer, "Consumer", cfg.TLS(), logger)

			supErrCh := make(chan error, 1)
			go func() { supErrCh <- sup.Run(ctx) }()

			checker := connsup.NewChecker(sup, logger)
			go checker.Run(ctx)

			streamName, subject, durableName := stream.Names(cfg.Subject, format)

			if mode == consumer.JetStream {
				if err := provisionStream(ctx, sup, streamName, subject, durableName, logger); err != nil {
					return err
				}
			}

			verbosity := dump.ParseLevel(cfg.Verbose)
			observer := dump.New(verbosity, logger, "borealis_consumer")

			pipeline := consumer.New(sup, mode, subject, streamName, durableName, format, observer, logger)
			if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			cancel()
			<-supErrCh
			return nil
		},
	}
}

// provisionStream waits for the supervisor's first connection, then ensures
// the stream and durable consumer exist (spec §4.3) before the pipeline
// starts pulling.
func provisionStream(ctx context.Context, sup *connsup.Supervisor, streamName, subject, durableName string, logger zerolog.Logger) error {
	var handle connsup.Conn
	for handle == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		_, handle = sup.Current()
	}

	js, err := handle.JetStream()
	if err != nil {
		return fmt.Errorf("provision: jetstream context: %w", err)
	}

	provisioner := stream.NewProvisioner(js, logger)
	if _, err := provisioner.EnsureStream(streamName, []string{subject}); err != nil {
		return err
	}
	if _, err := provisioner.EnsureConsumer(streamName, durableName, subject, stream.DeliverLast()); err != nil {
		return err
	}
	return nil
}
