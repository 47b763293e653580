package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/marketdata"
)

// PriceSyncJob refreshes the price history for the configured universe.
type PriceSyncJob struct {
	client  *marketdata.Client
	prices  *marketdata.PriceRepository
	tickers []string
	period  string
	log     zerolog.Logger
}

// NewPriceSyncJob creates the nightly price sync job.
func NewPriceSyncJob(
	client *marketdata.Client,
	prices *marketdata.PriceRepository,
	tickers []string,
	period string,
	log zerolog.Logger,
) *PriceSyncJob {
	if period == "" {
		period = "1y"
	}
	return &PriceSyncJob{
		client:  client,
		prices:  prices,
		tickers: tickers,
		period:  period,
		log:     log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name.
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run fetches and stores bars for every ticker in the universe. A failed
// ticker is logged and skipped so the rest of the universe still syncs.
func (j *PriceSyncJob) Run() error {
	start := time.Now()
	synced := 0
	failed := 0

	for _, symbol := range j.tickers {
		bars, err := j.client.GetHistoricalPrices(symbol, j.period)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch failed, skipping")
			failed++
			continue
		}

		rows, err := j.prices.UpsertPrices(symbol, bars)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Price store failed, skipping")
			failed++
			continue
		}

		j.log.Debug().Str("symbol", symbol).Int("rows", rows).Msg("Synced prices")
		synced++
	}

	j.log.Info().
		Int("synced", synced).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("Price sync finished")

	if synced == 0 && failed > 0 {
		return fmt.Errorf("price sync failed for all %d tickers", failed)
	}
	return nil
}
