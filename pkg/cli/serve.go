package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/sandbox/pkg/admin"
	"github.com/getmockd/sandbox/pkg/ai"
	"github.com/getmockd/sandbox/pkg/analytics"
	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/events"
	"github.com/getmockd/sandbox/pkg/fakers"
	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/metrics"
	"github.com/getmockd/sandbox/pkg/mockoon"
	"github.com/getmockd/sandbox/pkg/ratelimit"
	"github.com/getmockd/sandbox/pkg/specs"
	"github.com/getmockd/sandbox/pkg/store"

	// Store backends register themselves with store.Open.
	_ "github.com/getmockd/sandbox/pkg/store/file"
	_ "github.com/getmockd/sandbox/pkg/store/sqlite"
)

const (
	shutdownTimeout  = 10 * time.Second
	runtimeInterval  = 15 * time.Second
	serverLogRecords = 500
)

// serveFlags override values from the configuration file and environment.
type serveFlags struct {
	configPath string
	host       string
	port       int
	dataDir    string
	backend    string
	runner     string
	logLevel   string
}

var serveOpts serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sandboxd backend",
	Long: `Starts the admin API and restores stored specifications and environments.

Configuration is read from sandboxd.yaml (or --config), then SANDBOX_*
environment variables, then the flags below.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveOpts.configPath)
		if err != nil {
			return err
		}
		if err := serveOpts.apply(cmd, cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := newServer(ctx, cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return srv.run(ctx)
	},
}

// apply copies flags the user set onto cfg and validates the result.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.ServerConfig) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = f.port
	}
	if flags.Changed("data-dir") {
		cfg.Store.DataDir = f.dataDir
	}
	if flags.Changed("store") {
		cfg.Store.Backend = f.backend
	}
	if flags.Changed("runner") {
		cfg.Mockoon.Runner = f.runner
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	return config.Validate(cfg)
}

// server is a fully wired sandboxd process.
type server struct {
	cfg      *config.ServerConfig
	log      *slog.Logger
	kv       store.KV
	hub      *events.Hub
	envs     *mockoon.Manager
	api      *admin.API
	http     *http.Server
	listener net.Listener

	stopRuntime func()
}

// newServer wires config, logger, store and services into the admin API
// and binds its listener.
func newServer(ctx context.Context, cfg *config.ServerConfig, logOut io.Writer) (*server, error) {
	ring := logging.NewRing(serverLogRecords)
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: logOut,
		Ring:   ring,
	})

	dataDir := cfg.Store.DataDir
	if dataDir == "" {
		dataDir = store.DefaultDataDir()
	}
	kv, err := store.Open(ctx, store.Config{
		Backend:  store.Backend(cfg.Store.Backend),
		DataDir:  dataDir,
		ReadOnly: cfg.Store.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := metrics.NewRegistry()
	set := metrics.NewSet(registry)

	hub := events.NewHub(
		events.WithLogger(log.With("component", "events")),
		events.WithOriginPatterns(cfg.Server.AllowedOrigins...),
		events.WithClientCountHook(set.SetWebSocketClients),
	)
	specSvc := specs.NewService(kv,
		specs.WithPublisher(hub),
		specs.WithLogger(log),
		specs.WithMetrics(set),
	)
	recorder := analytics.NewRecorder(cfg.Analytics.MaxEntries,
		analytics.WithPublisher(hub),
		analytics.WithMetrics(set),
		analytics.WithLogger(log),
	)

	var runner mockoon.Runner
	switch cfg.Mockoon.Runner {
	case mockoon.RunnerCLI:
		runner = &mockoon.CLIRunner{
			Path:     cfg.Mockoon.CLIPath,
			DataDir:  filepath.Join(dataDir, "mockoon"),
			Logger:   log,
			LogLines: cfg.Mockoon.LogLines,
		}
	default:
		runner = &mockoon.BuiltinRunner{
			Host:     cfg.Mockoon.Host,
			Recorder: recorder,
			Fakers:   fakers.Default,
			Logger:   log,
			LogLines: cfg.Mockoon.LogLines,
		}
	}
	envs := mockoon.NewManager(kv, specSvc, runner,
		mockoon.WithPortRange(cfg.Mockoon.PortStart, cfg.Mockoon.PortEnd),
		mockoon.WithHostname(cfg.Mockoon.Host),
		mockoon.WithGenerator(fakers.NewGenerator(fakers.Default)),
		mockoon.WithPublisher(hub),
		mockoon.WithLogger(log),
		mockoon.WithMetrics(set),
	)
	if n, err := envs.Reconcile(ctx); err != nil {
		log.Warn("failed to reconcile environments", "error", err)
	} else if n > 0 {
		log.Info("environments from a previous run marked stopped", "count", n)
	}

	enhancer, err := ai.New(ai.FromSection(cfg.AI), ai.WithLogger(log), ai.WithMetrics(set))
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("configure AI enhancer: %w", err)
	}

	api := admin.New(admin.Deps{
		Specs:        specSvc,
		Environments: envs,
		Enhancer:     enhancer,
		Analytics:    recorder,
		Hub:          hub,
		Store:        kv,
		Fakers:       fakers.Default,
	},
		admin.WithLogger(log),
		admin.WithMetrics(registry, set),
		admin.WithLogRing(ring),
		admin.WithVersion(buildVersion().Version),
		admin.WithAPIKey(cfg.Server.APIKey),
		admin.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		admin.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		admin.WithEnhanceRateLimit(ratelimit.New(ratelimit.Config{
			PerMinute:      float64(cfg.AI.RateLimit),
			Burst:          cfg.AI.RateBurst,
			TrustedProxies: cfg.Server.TrustedProxies,
		})),
	)
	if err := api.RestoreSettings(ctx); err != nil {
		log.Warn("saved settings not applied", "error", err)
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	return &server{
		cfg:  cfg,
		log:  log,
		kv:   kv,
		hub:  hub,
		envs: envs,
		api:  api,
		http: &http.Server{
			Handler:           api,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		listener:    ln,
		stopRuntime: set.Runtime.StartCollector(runtimeInterval),
	}, nil
}

// Addr returns the address the admin API listens on.
func (s *server) Addr() net.Addr { return s.listener.Addr() }

// run serves until ctx is cancelled, then stops every environment and
// closes the store.
func (s *server) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("sandboxd started",
			"admin", "http://"+s.Addr().String(),
			"store", s.cfg.Store.Backend,
			"runner", s.envs.RunnerName(),
		)
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.hub.Close()
		errs := []error{s.http.Shutdown(shutdownCtx)}
		if err := s.envs.StopAll(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop environments: %w", err))
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	s.stopRuntime()
	if cerr := s.kv.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}
	if err == nil {
		s.log.Info("sandboxd stopped")
	}
	return err
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.configPath, "config", "c", "", "Path to the configuration file (default: ./"+config.DefaultConfigFile+" if present)")
	f.StringVar(&serveOpts.host, "host", config.DefaultHost, "Admin API listen host")
	f.IntVarP(&serveOpts.port, "port", "p", config.DefaultPort, "Admin API port")
	f.StringVar(&serveOpts.dataDir, "data-dir", "", "Data directory (default: "+store.DefaultDataDir()+")")
	f.StringVar(&serveOpts.backend, "store", config.DefaultBackend, "Store backend: file, sqlite or memory")
	f.StringVar(&serveOpts.runner, "runner", config.DefaultRunner, "Environment runner: builtin or cli (mockoon-cli)")
	f.StringVar(&serveOpts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.AddCommand(serveCmd)
}
