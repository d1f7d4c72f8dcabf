// cmd/gateway/cmd_serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/api"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/monitor"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/storage"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/telemetry"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/websocket"
)

var (
	serveDataPort int
	serveUIPort   int
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Start the telemetry monitor, the ingest server and the dashboard server.
The process runs until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveDataPort, "data-port", 0, "ingest server port (overrides server.data_port)")
	serveCmd.Flags().IntVar(&serveUIPort, "ui-port", 0, "dashboard server port (overrides server.ui_port)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "telemetry refresh interval (overrides telemetry.interval)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	overrides := map[string]interface{}{}
	if cmd.Flags().Changed("data-port") {
		overrides["server.data_port"] = serveDataPort
	}
	if cmd.Flags().Changed("ui-port") {
		overrides["server.ui_port"] = serveUIPort
	}
	if cmd.Flags().Changed("interval") {
		overrides["telemetry.interval"] = serveInterval
	}
	a, err := setup(overrides)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	m := metrics.New()
	hub := websocket.NewHub(logger.Named("ws"), m)
	store := storage.NewMemoryStore(cfg.Telemetry.HistorySize)
	sim := telemetry.NewSimulator(telemetry.SimulatorConfig{
		HiveCount: cfg.Telemetry.HiveCount,
		Seed:      cfg.Telemetry.Seed,
	})

	monCfg := monitor.Config{
		Interval:        cfg.Telemetry.Interval,
		DispatchTimeout: cfg.Telemetry.DispatchTimeout,
		PublishTimeout:  cfg.Bus.PublishTimeout,
	}
	if cfg.Bus.Driver != "" && cfg.Bus.Driver != "none" {
		monCfg.StateSubject = cfg.Bus.StateSubject
	}
	mon := monitor.New(monCfg, sim, a.detector, a.dispatcher(m),
		monitor.WithLogger(logger.Named("monitor")),
		monitor.WithMetrics(m),
		monitor.WithBroadcaster(hub),
		monitor.WithPublisher(a.publisher),
		monitor.WithStore(store),
	)

	apiHandler := api.NewAPIHandler(api.Deps{
		Monitor:  mon,
		Detector: a.detector,
		Mutator:  sim,
		Store:    store,
		Hub:      hub,
		Metrics:  m,
		Logger:   logger.Named("http"),
		WebDir:   cfg.Server.WebDir,
	})
	servers := []*http.Server{
		{Addr: fmt.Sprintf(":%d", cfg.Server.DataPort), Handler: api.SetupDataRouter(apiHandler), ReadHeaderTimeout: 5 * time.Second},
		{Addr: fmt.Sprintf(":%d", cfg.Server.UIPort), Handler: api.SetupUIRouter(apiHandler), ReadHeaderTimeout: 5 * time.Second},
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return mon.Run(ctx)
	})
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped with error", zap.Error(err))
		return err
	}
	logger.Info("gateway stopped")
	return nil
}
