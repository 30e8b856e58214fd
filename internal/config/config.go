// Package config loads and validates the settings shared by both CLI roles,
// grounded on the teacher's ws/config.go: caarlos0/env struct tags for
// environment defaults plus joho/godotenv for local .env convenience, a
// Validate method with range/enum checks, and Print/LogConfig renderers.
// The CLI layer (cmd/borealis-producer, cmd/borealis-consumer) loads this
// first and then overrides any field an operator passed explicitly on the
// command line (spec §6).
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
	"github.com/andrcmdr/australis-indexer/internal/connsup"
	"github.com/andrcmdr/australis-indexer/internal/envelope"
	"github.com/andrcmdr/australis-indexer/internal/logging"
)

// Shared holds the connection/subject/format settings common to both roles
// (spec §6, "Flags (both roles, unless noted)").
type Shared struct {
	RootCertPath     string `env:"BOREALIS_ROOT_CERT_PATH"`
	ClientCertPath   string `env:"BOREALIS_CLIENT_CERT_PATH"`
	ClientPrivateKey string `env:"BOREALIS_CLIENT_PRIVATE_KEY"`
	CredsPath        string `env:"BOREALIS_CREDS_PATH" envDefault:"./.nats/seed/nats.creds"`
	NATSServers      string `env:"BOREALIS_NATS_SERVER" envDefault:"tls://eastcoast.nats.borealis.example:4222,tls://westcoast.nats.borealis.example:4222"`
	Subject          string `env:"BOREALIS_SUBJECT" envDefault:"BlockIndex_StreamerMessages"`
	MsgFormat        string `env:"BOREALIS_MSG_FORMAT" envDefault:"CBOR"`
	Verbose          int    `env:"BOREALIS_VERBOSE" envDefault:"0"`
	MetricsAddr      string `env:"BOREALIS_METRICS_ADDR" envDefault:""`
	LogLevel         string `env:"BOREALIS_LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"BOREALIS_LOG_FORMAT" envDefault:"json"`
	LogDirectives    string `env:"BOREALIS_LOG" envDefault:""`
}

// ProducerConfig adds the producer-only flags of spec §6.
type ProducerConfig struct {
	Shared

	HomeDir     string `env:"BOREALIS_HOME_DIR" envDefault:"./.borealis-indexer"`
	SyncMode    string `env:"BOREALIS_SYNC_MODE" envDefault:"LatestSynced"`
	BlockHeight uint64 `env:"BOREALIS_BLOCK_HEIGHT" envDefault:"0"`
	AwaitSynced string `env:"BOREALIS_AWAIT_SYNCED" envDefault:"StreamWhileSyncing"`
}

// ConsumerConfig adds the consumer-only flag of spec §6.
type ConsumerConfig struct {
	Shared

	WorkMode string `env:"BOREALIS_WORK_MODE" envDefault:"JetStream"`
}

// LoadProducerConfig reads a .env file (if present) then environment
// variables into defaults for the producer role. CLI flags are applied by
// the caller afterwards, overriding any field the operator passed
// explicitly.
func LoadProducerConfig(logger *zerolog.Logger) (*ProducerConfig, error) {
	loadDotenv(logger)
	cfg := &ProducerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing producer config: %v", borealiserr.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConsumerConfig is LoadProducerConfig's consumer-role counterpart.
func LoadConsumerConfig(logger *zerolog.Logger) (*ConsumerConfig, error) {
	loadDotenv(logger)
	cfg := &ConsumerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing consumer config: %v", borealiserr.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv(logger *zerolog.Logger) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("config: no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("config: loaded overrides from .env file")
	}
}

// Servers splits the comma-separated NATS server URL list (spec §6).
func (s Shared) Servers() []string {
	return strings.Split(s.NATSServers, ",")
}

// TLS builds the connsup.TLSConfig triple from the three cert/key paths.
func (s Shared) TLS() connsup.TLSConfig {
	return connsup.TLSConfig{
		RootCertPath:   s.RootCertPath,
		ClientCertPath: s.ClientCertPath,
		ClientKeyPath:  s.ClientPrivateKey,
	}
}

// Format parses MsgFormat into an envelope.Format, rejecting unknown
// spellings (spec §8, scenario S4).
func (s Shared) Format() (envelope.Format, error) {
	return envelope.ParseFormat(s.MsgFormat)
}

// LoggingConfig derives the logging.Config for target (spec §6): a
// BOREALIS_LOG directive matching target wins, otherwise --verbose maps to
// a level (0->info, 1->debug, 2->trace) if set above zero, otherwise
// LogLevel applies.
func (s Shared) LoggingConfig(target string) (logging.Config, error) {
	directives, err := logging.ParseDirectives(s.LogDirectives)
	if err != nil {
		return logging.Config{}, err
	}

	level := logging.Level(strings.ToLower(s.LogLevel))
	if s.Verbose > 0 {
		level = logging.LevelFromVerbose(s.Verbose)
	}
	if override, ok := directives[target]; ok {
		level = override
	}

	return logging.Config{
		Level:      level,
		Format:     logging.Format(strings.ToLower(s.LogFormat)),
		Target:     target,
		Directives: directives,
	}, nil
}

func (s Shared) validate() error {
	if s.NATSServers == "" {
		return fmt.Errorf("%w: --nats-server must not be empty", borealiserr.ErrConfig)
	}
	if _, err := s.Format(); err != nil {
		return err
	}
	if s.Verbose < 0 || s.Verbose > 2 {
		return fmt.Errorf("%w: --verbose must be 0, 1, or 2, got %d", borealiserr.ErrConfig, s.Verbose)
	}
	if s.ClientCertPath != "" && s.ClientPrivateKey == "" {
		return fmt.Errorf("%w: --client-cert-path requires --client-private-key", borealiserr.ErrConfig)
	}
	if s.ClientPrivateKey != "" && s.ClientCertPath == "" {
		return fmt.Errorf("%w: --client-private-key requires --client-cert-path", borealiserr.ErrConfig)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: LOG_LEVEL must be one of debug, info, warn, error, got %q", borealiserr.ErrConfig, s.LogLevel)
	}
	switch strings.ToLower(s.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be one of json, pretty, got %q", borealiserr.ErrConfig, s.LogFormat)
	}
	if _, err := logging.ParseDirectives(s.LogDirectives); err != nil {
		return err
	}
	return nil
}

// Validate checks the producer config, including the required-iff rule of
// spec §6: --block-height is required when --sync-mode = BlockHeight.
func (c *ProducerConfig) Validate() error {
	if err := c.Shared.validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.SyncMode) {
	case "latestsynced", "frominterruption", "blockheight":
	default:
		return fmt.Errorf("%w: unknown sync-mode %q", borealiserr.ErrConfig, c.SyncMode)
	}
	if strings.EqualFold(c.SyncMode, "BlockHeight") && c.BlockHeight == 0 {
		return fmt.Errorf("%w: --block-height is required when --sync-mode=BlockHeight", borealiserr.ErrConfig)
	}
	switch strings.ToLower(c.AwaitSynced) {
	case "waitforfullsync", "streamwhilesyncing":
	default:
		return fmt.Errorf("%w: unknown await-synced %q", borealiserr.ErrConfig, c.AwaitSynced)
	}
	return nil
}

// Validate checks the consumer config.
func (c *ConsumerConfig) Validate() error {
	if err := c.Shared.validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.WorkMode) {
	case "subscriber", "jetstream":
	default:
		return fmt.Errorf("%w: unknown work-mode %q", borealiserr.ErrConfig, c.WorkMode)
	}
	return nil
}

// Print renders the producer config for human inspection (spec §6, "check"
// subcommand summary).
func (c *ProducerConfig) Print() {
	fmt.Println("=== Borealis Producer Configuration ===")
	fmt.Printf("NATS servers:    %s\n", c.NATSServers)
	fmt.Printf("Subject:         %s\n", c.Subject)
	fmt.Printf("Message format:  %s\n", c.MsgFormat)
	fmt.Printf("Sync mode:       %s\n", c.SyncMode)
	fmt.Printf("Block height:    %d\n", c.BlockHeight)
	fmt.Printf("Await synced:    %s\n", c.AwaitSynced)
	fmt.Printf("Home dir:        %s\n", c.HomeDir)
	fmt.Printf("Verbose:         %d\n", c.Verbose)
	fmt.Printf("Log directives:  %s\n", c.LogDirectives)
	fmt.Println("========================================")
}

// LogConfig logs the producer config via structured logging.
func (c *ProducerConfig) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("nats_servers", c.NATSServers).
		Str("subject", c.Subject).
		Str("msg_format", c.MsgFormat).
		Str("sync_mode", c.SyncMode).
		Uint64("block_height", c.BlockHeight).
		Str("await_synced", c.AwaitSynced).
		Str("home_dir", c.HomeDir).
		Int("verbose", c.Verbose).
		Str("log_directives", c.LogDirectives).
		Msg("producer configuration loaded")
}

// Print renders the consumer config for human inspection.
func (c *ConsumerConfig) Print() {
	fmt.Println("=== Borealis Consumer Configuration ===")
	fmt.Printf("NATS servers:    %s\n", c.NATSServers)
	fmt.Printf("Subject:         %s\n", c.Subject)
	fmt.Printf("Message format:  %s\n", c.MsgFormat)
	fmt.Printf("Work mode:       %s\n", c.WorkMode)
	fmt.Printf("Verbose:         %d\n", c.Verbose)
	fmt.Printf("Log directives:  %s\n", c.LogDirectives)
	fmt.Println("========================================")
}

// LogConfig logs the consumer config via structured logging.
func (c *ConsumerConfig) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("nats_servers", c.NATSServers).
		Str("subject", c.Subject).
		Str("msg_format", c.MsgFormat).
		Str("work_mode", c.WorkMode).
		Int("verbose", c.Verbose).
		Str("log_directives", c.LogDirectives).
		Msg("consumer configuration loaded")
}
