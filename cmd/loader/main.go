// Command loader performs a one-shot historical price download for a list of
// symbols, filling the history database used by the server.
package main

import (
	"flag"
	"os"
	"strings"

	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/marketdata"
	"github.com/aristath/backtester/internal/scheduler"
	"github.com/aristath/backtester/pkg/logger"
)

func main() {
	var (
		tickersFlag = flag.String("tickers", "", "comma-separated symbols (defaults to the configured universe)")
		periodFlag  = flag.String("period", "max", "Yahoo lookback period (e.g. 1y, 5y, max)")
		levelFlag   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: *levelFlag, Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	tickers := cfg.Tickers
	if *tickersFlag != "" {
		tickers = nil
		for _, t := range strings.Split(*tickersFlag, ",") {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t != "" {
				tickers = append(tickers, t)
			}
		}
	}
	if len(tickers) == 0 {
		log.Fatal().Msg("No tickers to load")
	}

	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history database")
	}
	defer historyDB.Close()

	prices := marketdata.NewPriceRepository(historyDB.Conn(), log)
	if err := prices.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price schema")
	}

	client := marketdata.NewClient(log)
	job := scheduler.NewPriceSyncJob(client, prices, tickers, *periodFlag, log)

	log.Info().
		Strs("tickers", tickers).
		Str("period", *periodFlag).
		Str("db", historyDB.Path()).
		Msg("Loading historical prices")

	if err := job.Run(); err != nil {
		log.Error().Err(err).Msg("Historical load failed")
		os.Exit(1)
	}

	log.Info().Msg("Historical load complete")
}
