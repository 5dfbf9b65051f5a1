package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"matchmaker/core/loader"
	"matchmaker/core/logger"
	"matchmaker/core/metrics"
	"matchmaker/core/middleware/auth"
	"matchmaker/core/middleware/rayid"
	"matchmaker/core/scheduler"
	"matchmaker/feature/matching"
	"matchmaker/feature/realtime/gateway"
	"matchmaker/feature/realtime/registry"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title Matchmaker API
// @version 1.0
// @description Credit-gated matchmaking between two user categories.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the matchmaking server",
	Long: `Starts the HTTP API, the websocket gateway and the periodic batch pairing,
reconciliation and connection sweep tasks.`,
	RunE: runStart,
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logg := a.logger
	defer logg.Sync()
	zap.ReplaceGlobals(logg)
	cfg := a.cfg

	verifier := auth.NewVerifier(cfg.Auth)

	// Realtime gateway
	reg := a.connectionRegistry()
	hub := gateway.NewHub(reg, verifier, a.engine, cfg.Server.Origins(), logg.Named("hub"))
	gw := gateway.New(reg, a.directory, hub, a.recorder, logg.Named("gateway"))
	if err := gw.Start(ctx, a.bus); err != nil {
		return fmt.Errorf("failed to subscribe gateway: %w", err)
	}

	// HTTP API
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(rayid.New())
	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "connections": hub.Count()})
	})
	app.Get("/metrics", metrics.Handler(a.registry))

	mgr := loader.NewManager(logg)
	mgr.Register(matching.NewFeature(a.engine, a.reconcile, verifier, cfg.Server.ApiKey, logg.Named("http")))
	if err := mgr.LoadAll(app); err != nil {
		return fmt.Errorf("failed to load features: %w", err)
	}

	// Periodic tasks
	sched := scheduler.New(logg.Named("scheduler"), a.recorder.TaskRun)
	if err := addTasks(sched, a, reg); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	wsServer := &http.Server{
		Addr:              ":" + cfg.Server.WSPort,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		logg.Info("Starting HTTP API", zap.String("port", cfg.Server.Port))
		errs <- app.Listen(":" + cfg.Server.Port)
	}()
	go func() {
		logg.Info("Starting websocket gateway", zap.String("port", cfg.Server.WSPort))
		if err := wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		logg.Info("Shutting down server...")
	case err = <-errs:
		logg.Error("Listener failed", zap.Error(err))
	}

	cancel()
	sched.Stop()
	hub.Shutdown()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = wsServer.Shutdown(shutdownCtx)
	_ = app.ShutdownWithContext(shutdownCtx)
	return err
}

func addTasks(sched *scheduler.Scheduler, a *app, reg registry.Registry) error {
	m := a.cfg.Matching
	tasks := []scheduler.Task{
		{
			Name:     "batch_pairing",
			Interval: time.Duration(m.BatchIntervalSeconds) * time.Second,
			Run: func(ctx context.Context) error {
				res := a.engine.RunBatchPairing(ctx)
				if res.Error != "" {
					return fmt.Errorf("batch pairing: %s", res.Error)
				}
				return nil
			},
		},
		{
			Name:       "reconcile",
			Interval:   time.Duration(m.ReconcileIntervalSeconds) * time.Second,
			Run:        a.reconcile.ReconcileAll,
			RunOnStart: true,
		},
		{
			Name:     "connection_sweep",
			Interval: time.Duration(a.cfg.Realtime.SweepIntervalSeconds) * time.Second,
			Run: func(ctx context.Context) error {
				_, err := reg.Sweep(ctx)
				return err
			},
		},
	}
	for _, t := range tasks {
		if err := sched.Add(t); err != nil {
			return err
		}
	}
	return nil
}
