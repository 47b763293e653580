// Package marketdata fetches, stores and shapes historical price data.
package marketdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// Bar is a single day's adjusted OHLCV record.
type Bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Client fetches historical bars from Yahoo Finance.
type Client struct {
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		maxRetries: 3,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// GetHistoricalPrices fetches daily auto-adjusted bars for a symbol over the
// given period (e.g. "1y", "5y", "max"). Transient failures are retried with
// exponential backoff.
func (c *Client) GetHistoricalPrices(symbol, period string) ([]Bar, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		bars, err := c.fetch(symbol, period)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		if attempt < c.maxRetries-1 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().
				Err(err).
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("Retrying historical price fetch")
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", symbol, c.maxRetries, lastErr)
}

func (c *Client) fetch(symbol, period string) ([]Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	}

	raw, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no bars returned for %s", symbol)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Date:     b.Date,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   int64(b.Volume),
		})
	}
	return bars, nil
}
