package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alfredmq/alfred-go"
	"github.com/alfredmq/alfred-go/config"
	"github.com/alfredmq/alfred-go/contracts"
	"github.com/alfredmq/alfred-go/monitor"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// app carries the state shared by every subcommand
type app struct {
	configPath  string
	verbose     bool
	metricsAddr string
	minPeers    int

	logger    *slog.Logger
	metrics   *monitor.PrometheusCollector
	directory *monitor.Directory
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{directory: monitor.NewDirectory()}

	rootCmd := &cobra.Command{
		Use:   "alfred",
		Short: "Run the alfred broker and its core modules",
		Long: `alfred runs the message broker and the built-in modules of an alfred
installation: routing, cron, logs, module discovery and ad hoc requests.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to the config file (default $ALFRED_CONFIG or config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	rootCmd.PersistentFlags().IntVar(&a.minPeers, "min-peers", 1, "Peers below which /healthz reports degraded (logs and modules only)")

	rootCmd.AddCommand(
		newBrokerCommand(a),
		newRoutingCommand(a),
		newCronCommand(a),
		newLogsCommand(a),
		newModulesCommand(a),
		newRequestCommand(a),
	)
	return rootCmd
}

// observesPeers marks commands that feed the peer directory
const observesPeers = "observes-peers"

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if a.metricsAddr == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics, err := monitor.NewPrometheusCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	a.metrics = metrics

	go a.serve(cmd.Context(), monitor.NewServeMux(monitor.MetricsHandler(reg), a.healthRegistry(cmd)))
	return nil
}

func (a *app) healthRegistry(cmd *cobra.Command) *monitor.Registry {
	health := monitor.NewRegistry()
	health.Register(monitor.NewRuntimeChecker(500, 1000))
	if cmd.Annotations[observesPeers] != "" {
		health.Register(monitor.PeerChecker(a.directory, a.minPeers))
	}
	return health
}

func (a *app) serve(ctx context.Context, handler http.Handler) {
	server := &http.Server{
		Addr:              a.metricsAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Serving metrics", "addr", a.metricsAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Metrics server failed", "error", err)
	}
}

func (a *app) loadConfig(module string) (*config.Config, error) {
	opts := []config.Option{config.WithModule(module)}
	if a.configPath != "" {
		opts = append(opts, config.WithFile(a.configPath))
	}
	return config.Load(opts...)
}

// connect joins the bus as the named module
func (a *app) connect(ctx context.Context, name string, extra ...alfred.ModuleOption) (*alfred.Module, error) {
	cfg, err := a.loadConfig(name)
	if err != nil {
		return nil, err
	}

	opts := []alfred.ModuleOption{
		alfred.WithConfig(cfg),
		alfred.WithLogger(a.logger.With("module", name)),
		alfred.WithVersion(version),
	}
	if a.metrics != nil {
		opts = append(opts, alfred.WithMetrics(a.metrics))
	}
	opts = append(opts, extra...)
	return alfred.NewModule(ctx, name, opts...)
}

func (a *app) observe(topic string, msg contracts.Message) {
	if a.directory.Observe(topic, msg) && a.metrics != nil {
		a.metrics.SetPeers(a.directory.Len())
	}
}
