package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gridbot/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCoinbaseFeed(t *testing.T, handler http.HandlerFunc) *CoinbasePriceFeed {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)

	feed := NewCoinbasePriceFeed(logger)
	feed.baseURL = srv.URL + "/v2/prices/%s/spot"
	return feed
}

func TestCoinbasePriceFeedFetchPrice(t *testing.T) {
	feed := newTestCoinbaseFeed(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/prices/SOL-USD/spot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"base":"SOL","currency":"USD","amount":"142.37"}}`))
	})

	price, err := feed.FetchPrice(context.Background(), "SOL/USD")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("142.37")), "got %s", price.String())
}

func TestCoinbasePriceFeedNonOKStatus(t *testing.T) {
	feed := newTestCoinbaseFeed(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := feed.FetchPrice(context.Background(), "BTC/USD")
	require.Error(t, err)
}

func TestCoinbasePriceFeedMalformedBody(t *testing.T) {
	feed := newTestCoinbaseFeed(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := feed.FetchPrice(context.Background(), "ETH/USD")
	require.Error(t, err)
}
