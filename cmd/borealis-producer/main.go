// Command borealis-producer bridges a blockchain node's finalized-block
// stream onto a NATS bus (spec §1). It exposes the check/init/run
// subcommands of spec §6 via urfave/cli/v2, grounded on
// prysmaticlabs/prysm's CLI dependency choice.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"

	"github.com/andrcmdr/australis-indexer/internal/chainevent"
	"github.com/andrcmdr/australis-indexer/internal/config"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/logging"
	"github.com/andrcmdr/australis-indexer/internal/metrics"
	"github.com/andrcmdr/australis-indexer/internal/producer"
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

var producerFlags = append(append([]cli.Flag{}, sharedFlags...),
	&cli.StringFlag{Name: "home-dir"},
	&cli.StringFlag{Name: "sync-mode"},
	&cli.Uint64Flag{Name: "block-height"},
	&cli.StringFlag{Name: "await-synced"},
)

func loadConfig(c *cli.Context) (*config.ProducerConfig, error) {
	cfg, err := config.LoadProducerConfig(nil)
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
	if c.IsSet("home-dir") {
		cfg.HomeDir = c.String("home-dir")
	}
	if c.IsSet("sync-mode") {
		cfg.SyncMode = c.String("sync-mode")
	}
	if c.IsSet("block-height") {
		cfg.BlockHeight = c.Uint64("block-height")
	}
	if c.IsSet("await-synced") {
		cfg.AwaitSynced = c.String("await-synced")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:  "borealis-producer",
		Usage: "bridge a finalized-block event stream onto a NATS bus",
		Commands: []*cli.Command{
			checkCommand(),
			initCommand(),
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
			logCfg, err := cfg.LoggingConfig("borealis_producer")
			if err != nil {
				return err
			}
			logger := logging.NewLogger(logCfg)

			nc, err := nats.Connect(joinFirst(cfg.Servers()), nats.Name("Borealis Producer [check]"))
			if err != nil {
				return fmt.Errorf("check: connect failed: %w", err)
			}
			defer nc.Close()

			start := time.Now()
			if err := nc.FlushTimeout(10 * time.Second); err != nil {
				return fmt.Errorf("check: health probe failed: %w", err)
			}
			rtt := time.Since(start)

			fmt.Printf("connected: true\n")
			fmt.Printf("rtt: %s\n", rtt)
			ip, _ := nc.GetClientIP()
			fmt.Printf("client_ip: %s\n", ip)
			fmt.Printf("client_id: %d\n", mustClientID(nc))
			fmt.Printf("max_payload: %d\n", nc.MaxPayload())
			logger.Info().Str("rtt", rtt.String()).Msg("check: ok")
			return nil
		},
	}
}

func mustClientID(nc *nats.Conn) uint64 {
	id, _ := nc.GetClientID()
	return id
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

func initCommand() *cli.Command {
	return &cli.Command{
		Name:            "init",
		Usage:           "delegate to the external indexer to create its configuration",
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			fmt.Printf("init: forwarding %d argument(s) to the external indexer under --home-dir (out of scope)\n", c.NArg())
			for _, a := range c.Args().Slice() {
				fmt.Printf("  %s\n", a)
			}
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the producer pipeline",
		Flags: producerFlags,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logCfg, err := cfg.LoggingConfig("borealis_producer")
			if err != nil {
				return err
			}
			logger := logging.NewLogger(logCfg)
			cfg.LogConfig(logger)

			format, err := cfg.Format()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info().Msg("producer: shutdown signal received")
				cancel()
			}()

			if cfg.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(cfg.MetricsAddr); err != nil {
						logger.Error().Err(err).Msg("producer: metrics server stopped")
					}
				}()
			}

			dialer := connsup.NewNATSDialer(cfg.Servers())
			sup := connsup.NewSupervisor(dialer, "Producer", cfg.TLS(), logger)

			supErrCh := make(chan error, 1)
			go func() { supErrCh <- sup.Run(ctx) }()

			checker := connsup.NewChecker(sup, logger)
			go checker.Run(ctx)

			source := chainevent.NewStdinSource(os.Stdin)
			pipeline := producer.New(source, sup, format.Subject(cfg.Subject), format, logger)

			if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			cancel()
			<-supErrCh
			return nil
		},
	}
}
