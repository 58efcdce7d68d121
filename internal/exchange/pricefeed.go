package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
)

// PriceFeed supplies an upstream spot price Paper can tick its simulated
// tape with. The control plane never blocks on it: a fetch failure just
// means this symbol is skipped for the tick.
type PriceFeed interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// coinbaseSpotURL is the public spot-price endpoint; %s is the
// Coinbase-style pair, e.g. "BTC-USD".
const coinbaseSpotURL = "https://api.coinbase.com/v2/prices/%s/spot"

type coinbaseSpotResponse struct {
	Data struct {
		Amount string `json:"amount"`
	} `json:"data"`
}

// CoinbasePriceFeed fetches the public spot price for a symbol. It has no
// notion of API keys or sandbox mode — it exists purely to give the paper
// simulator something real to tick against, independent of whatever venue
// Live is wired to.
type CoinbasePriceFeed struct {
	client  *http.Client
	baseURL string // %s-templated, overridden in tests to point at a local server
	logger  core.ILogger
}

// NewCoinbasePriceFeed builds a feed with a 5s request timeout, matching
// the original bot's live-price poll.
func NewCoinbasePriceFeed(logger core.ILogger) *CoinbasePriceFeed {
	return &CoinbasePriceFeed{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: coinbaseSpotURL,
		logger:  logger.WithField("component", "coinbase_price_feed"),
	}
}

// FetchPrice converts "SOL/USD" to the venue's "SOL-USD" pair form and
// fetches its spot price.
func (f *CoinbasePriceFeed) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := strings.ReplaceAll(symbol, "/", "-")
	url := fmt.Sprintf(f.baseURL, pair)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricefeed: build request for %s: %w", symbol, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricefeed: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("pricefeed: %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var parsed coinbaseSpotResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Zero, fmt.Errorf("pricefeed: decode %s: %w", symbol, err)
	}

	price, err := decimal.NewFromString(parsed.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricefeed: parse %s amount %q: %w", symbol, parsed.Data.Amount, err)
	}
	return price, nil
}

var _ PriceFeed = (*CoinbasePriceFeed)(nil)
