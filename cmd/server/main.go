package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/backtester/internal/backtest"
	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/marketdata"
	"github.com/aristath/backtester/internal/scheduler"
	"github.com/aristath/backtester/internal/server"
	"github.com/aristath/backtester/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger isn't up yet; fall back to stderr.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting backtester")

	// history.db - daily price data, rebuilt from Yahoo when lost
	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history database")
	}
	defer historyDB.Close()

	// results.db - append-only run ledger
	resultsDB, err := database.New(database.Config{
		Path:    cfg.ResultsDBPath(),
		Profile: database.ProfileLedger,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results database")
	}
	defer resultsDB.Close()

	prices := marketdata.NewPriceRepository(historyDB.Conn(), log)
	if err := prices.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price schema")
	}

	runs := backtest.NewRepository(resultsDB.Conn(), log)
	if err := runs.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results schema")
	}

	// Nightly price sync
	yahooClient := marketdata.NewClient(log)
	syncJob := scheduler.NewPriceSyncJob(yahooClient, prices, cfg.Tickers, cfg.SyncPeriod, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price sync job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		HistoryDB: historyDB,
		ResultsDB: resultsDB,
		Prices:    prices,
		Runs:      runs,
		Scheduler: sched,
		SyncJob:   syncJob,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
