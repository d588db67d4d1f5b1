// Package main is the entry point for the Carteira portfolio analytics server.
// The application tracks holdings, reconstructs historical basket performance,
// and plans rebalancing trades against target allocations.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"carteira/internal/config"
	"carteira/internal/database"
	"carteira/internal/modules/baskets"
	baskethandlers "carteira/internal/modules/baskets/handlers"
	"carteira/internal/modules/calculations"
	calculationhandlers "carteira/internal/modules/calculations/handlers"
	"carteira/internal/modules/charts"
	"carteira/internal/modules/historical"
	historicalhandlers "carteira/internal/modules/historical/handlers"
	"carteira/internal/modules/performance"
	"carteira/internal/modules/portfolio"
	portfoliohandlers "carteira/internal/modules/portfolio/handlers"
	"carteira/internal/modules/rebalancing"
	rebalancinghandlers "carteira/internal/modules/rebalancing/handlers"
	"carteira/internal/scheduler"
	"carteira/internal/server"
	"carteira/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Carteira")

	// Single application database: assets, prices, baskets, transactions, cache
	db, err := database.New(database.Config{
		Path: cfg.DatabasePath(),
		Name: "app",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Repositories
	historyRepo := historical.NewRepository(db.Conn(), log)
	basketRepo := baskets.NewRepository(db.Conn(), log)
	portfolioRepo := portfolio.NewRepository(db.Conn(), log)

	// Services
	basketService := baskets.NewService(basketRepo, log)
	portfolioService := portfolio.NewService(portfolioRepo, historyRepo, log)
	rebalancingService := rebalancing.NewService(historyRepo, log)

	benchmarks := resolveBenchmarks(historyRepo, cfg.BenchmarkTickers, log)
	performanceService := performance.NewService(historyRepo, benchmarks, cfg.RiskFreeTicker, log)

	cache := calculations.NewCache(db.Conn(), cfg.CacheTTL, log)
	calculationsService := calculations.NewService(performanceService, basketService, cache, log)
	chartService := charts.NewService(log)

	// HTTP handlers
	basketHandler := baskethandlers.NewHandler(basketService, log)
	basketHandler.SetCacheInvalidator(calculationsService)
	portfolioHandler := portfoliohandlers.NewHandler(portfolioService, log)
	historicalHandler := historicalhandlers.NewHandler(historyRepo, log)
	performanceHandler := calculationhandlers.NewHandler(calculationsService, chartService, log)
	rebalancingHandler := rebalancinghandlers.NewHandler(rebalancingService, basketService, portfolioService, log)

	// Background jobs
	stalenessJob := scheduler.NewStalenessJob(historyRepo, log)
	cachePruneJob := scheduler.NewCachePruneJob(cache, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.StalenessCron, stalenessJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register staleness job")
	}
	if err := sched.AddJob(cfg.CachePruneCron, cachePruneJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache prune job")
	}
	sched.Start()

	// HTTP server
	srv := server.New(server.Config{
		Log:         log,
		DB:          db,
		Config:      cfg,
		Baskets:     basketHandler,
		Portfolio:   portfolioHandler,
		Historical:  historicalHandler,
		Performance: performanceHandler,
		Rebalancing: rebalancingHandler,
	})
	srv.SetJobs(sched, stalenessJob, cachePruneJob)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// resolveBenchmarks maps configured benchmark tickers to stored assets.
// Tickers without a matching asset are skipped: performance results then
// simply omit that benchmark until its asset is registered.
func resolveBenchmarks(repo *historical.Repository, tickers []string, log zerolog.Logger) []performance.BenchmarkSpec {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := make([]performance.BenchmarkSpec, 0, len(tickers))
	for _, ticker := range tickers {
		asset, err := repo.GetAssetByTicker(ctx, ticker)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("Benchmark asset not registered, skipping")
			continue
		}
		specs = append(specs, performance.BenchmarkSpec{
			Name:    ticker,
			AssetID: asset.ID,
		})
	}
	return specs
}
