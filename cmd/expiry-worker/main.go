package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// The worker counts waitlist offers past their deadline as refusals, so
// entries that ignore offers eventually drop off the list.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "prod").Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "expiry-worker").Logger()

	logger.Info().
		Str("env", cfg.Env).
		Str("schedule", cfg.ExpirySchedule).
		Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := waitlist.NewService(
		waitlist.NewPgStore(pgPool),
		nil,
		waitlist.Config{
			MatchLimit:  cfg.WaitlistMatchLimit,
			OfferTTL:    cfg.WaitlistOfferTTL,
			MaxRefusals: cfg.WaitlistMaxRefusals,
		},
		waitlist.WithLogger(logger),
		waitlist.WithObserver(metrics.NewSchedulingMetrics(reg)),
	)

	metricsSrv := metrics.NewServer(cfg.MetricsPort, reg)
	go func() {
		logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics listener started")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ExpirySchedule, func() { runOnce(rootCtx, svc, logger) }); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ExpirySchedule).Msg("invalid expiry schedule")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping expiry worker")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics listener shutdown error")
	}
}

func runOnce(ctx context.Context, svc *waitlist.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpireStaleOffers(runCtx)
	if err != nil {
		logger.Error().Err(err).Int("expired", n).Msg("expiry run error")
		return
	}
	logger.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
}
