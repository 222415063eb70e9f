package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/reactor-ui/reactor/pkg/server"
	"github.com/reactor-ui/reactor/pkg/snapshot"
)

func serveCmd() *cobra.Command {
	var (
		configPath  string
		address     string
		maxSessions int
		idleTimeout time.Duration
		sessionTTL  time.Duration
		backend     string
		boltPath    string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo app",
		Long: `Serve the built-in demo app over HTTP and websockets.

Settings load from the YAML config file first; flags given on the
command line override it.

Examples:
  reactor serve
  reactor serve --address=:9000 --snapshot=bolt --bolt-path=reactor.db
  reactor serve --config=reactor.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()

			if configPath != "" {
				if err := applyFileConfig(configPath, cfg, &backend, &boltPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("address") {
				cfg.Address = address
			}
			if cmd.Flags().Changed("max-sessions") {
				cfg.MaxSessions = maxSessions
			}
			if cmd.Flags().Changed("idle-timeout") {
				cfg.IdleTimeout = idleTimeout
			}
			if cmd.Flags().Changed("session-ttl") {
				cfg.SessionTTL = sessionTTL
			}

			return runServe(cfg, backend, boltPath, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVarP(&address, "address", "a", ":8080", "Address to listen on")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "Concurrent session cap (0 = unlimited)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 5*time.Minute, "Detach sessions idle this long")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", 30*time.Minute, "How long detached sessions stay resumable")
	cmd.Flags().StringVar(&backend, "snapshot", "memory", "Snapshot backend: memory or bolt")
	cmd.Flags().StringVar(&boltPath, "bolt-path", "reactor.db", "Bolt database path for --snapshot=bolt")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

// fileConfig is the YAML shape of --config files.
type fileConfig struct {
	Address     string   `yaml:"address"`
	MaxSessions int      `yaml:"max_sessions"`
	IdleTimeout duration `yaml:"idle_timeout"`
	SessionTTL  duration `yaml:"session_ttl"`
	Snapshot    struct {
		Backend  string `yaml:"backend"`
		BoltPath string `yaml:"bolt_path"`
	} `yaml:"snapshot"`
}

// duration parses YAML strings like "30s" or "5m".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

func applyFileConfig(path string, cfg *server.Config, backend, boltPath *string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if fc.Address != "" {
		cfg.Address = fc.Address
	}
	if fc.MaxSessions > 0 {
		cfg.MaxSessions = fc.MaxSessions
	}
	if fc.IdleTimeout > 0 {
		cfg.IdleTimeout = time.Duration(fc.IdleTimeout)
	}
	if fc.SessionTTL > 0 {
		cfg.SessionTTL = time.Duration(fc.SessionTTL)
	}
	if fc.Snapshot.Backend != "" {
		*backend = fc.Snapshot.Backend
	}
	if fc.Snapshot.BoltPath != "" {
		*boltPath = fc.Snapshot.BoltPath
	}
	return nil
}

func newSnapshotStore(backend, boltPath string) (snapshot.Store, error) {
	switch backend {
	case "memory":
		return snapshot.NewMemoryStore(), nil
	case "bolt":
		return snapshot.NewBoltStore(boltPath)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", backend)
	}
}

func runServe(cfg *server.Config, backend, boltPath string, verbose bool) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()
	server.SetLogger(logger)

	snapshots, err := newSnapshotStore(backend, boltPath)
	if err != nil {
		return err
	}

	srv := server.New(demoApp, snapshots, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
