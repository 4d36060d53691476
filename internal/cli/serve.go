package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/roach88/gisdoc/internal/relay"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigFile string
	Addr       string
	Database   string
	RedisAddr  string
	NATSURL    string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the document relay",
		Long: `Run the websocket relay that editors connect to.

Each document is served at /ws/{doc}. Updates are appended to the SQLite op
log and fanned out to every editor of the same document. With a Redis or
NATS address, several relay processes share fan-out.

Configuration comes from --config (YAML), then the environment
(GISDOC_ADDR, GISDOC_DB, REDIS_ADDR, NATS_URL), then flags.

Examples:
  gisdoc serve --db ./gisdoc.db
  gisdoc serve --config ./relay.yaml --addr :9000
  REDIS_ADDR=localhost:6379 gisdoc serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return runServe(cmd, cfg, opts.logger())
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default gisdoc.db)")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "", "Redis address for multi-process fan-out")
	cmd.Flags().StringVar(&opts.NATSURL, "nats", "", "NATS URL for multi-process fan-out")

	return cmd
}

// resolve assembles the configuration. Only flags the user set override
// the file and environment.
func (o *ServeOptions) resolve(cmd *cobra.Command) (ServeConfig, error) {
	cfg := DefaultServeConfig()
	if o.ConfigFile != "" {
		if err := LoadServeConfig(o.ConfigFile, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = o.Addr
	}
	if flags.Changed("db") {
		cfg.Database = o.Database
	}
	if flags.Changed("redis") {
		cfg.Redis.Addr = o.RedisAddr
	}
	if flags.Changed("nats") {
		cfg.NATS.URL = o.NATSURL
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, cfg ServeConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening database", "path", cfg.Database)
	st, err := openStore(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	broker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect broker", err)
	}
	defer broker.Close()

	hub := relay.NewHub(st, broker, relay.WithLogger(logger), relay.WithMetrics(relay.NewMetrics()))
	hubErr := make(chan error, 1)
	go func() { hubErr <- hub.Run(ctx) }()

	srv := relay.NewServer(hub,
		relay.WithServerLogger(logger),
		relay.WithHealthCheck(st.Ping),
		relay.WithCheckOrigin(originChecker(cfg.AllowedOrigins)),
	)
	serveErr := srv.ListenAndServe(ctx, cfg.Addr)
	stop()

	if err := <-hubErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay hub stopped with error", "error", err)
	}
	if serveErr != nil {
		return WrapExitError(ExitFailure, "relay error", serveErr)
	}
	logger.Info("relay stopped gracefully")
	return nil
}

func newBroker(ctx context.Context, cfg ServeConfig, logger *slog.Logger) (relay.Broker, error) {
	switch {
	case cfg.Redis.Addr != "":
		logger.Info("using redis broker", "addr", cfg.Redis.Addr)
		b, err := relay.NewRedisBroker(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		return b, nil
	case cfg.NATS.URL != "":
		logger.Info("using nats broker", "url", cfg.NATS.URL)
		b, err := relay.NewNATSBroker(cfg.NATS.URL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return relay.NewMemoryBroker(), nil
	}
}

// originChecker accepts requests without an Origin header and requests
// whose Origin host is listed. An empty list accepts everything.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, u.Host) || slices.Contains(allowed, origin)
	}
}
