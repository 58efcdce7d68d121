package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gridbot/internal/core"
)

// fearGreedURL is the public Crypto Fear & Greed Index endpoint: 0 is
// extreme fear, 100 is extreme greed.
const fearGreedURL = "https://api.alternative.me/fng/"

type fearGreedResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// SentimentGate polls the fear/greed index on a slow cadence, independent
// of the main tick, and lets RiskSupervisor consult the last reading
// read-only.
type SentimentGate struct {
	client *http.Client
	logger core.ILogger

	mu             sync.RWMutex
	value          int
	classification string
	haveReading    bool
}

// NewSentimentGate builds a gate with no reading until the first Refresh.
func NewSentimentGate(logger core.ILogger) *SentimentGate {
	return &SentimentGate{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.WithField("component", "sentiment_gate"),
	}
}

// Refresh fetches the current index value. Failures are logged and leave
// the prior reading (if any) in place; this is best-effort ambient
// intelligence, not a control-plane dependency.
func (g *SentimentGate) Refresh(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fearGreedURL, nil)
	if err != nil {
		g.logger.Warn("sentiment: build request failed", "error", err)
		return
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("sentiment: fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("sentiment: non-200 response", "status", resp.StatusCode)
		return
	}

	var parsed fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Data) == 0 {
		g.logger.Warn("sentiment: decode failed", "error", err)
		return
	}

	var value int
	if _, err := fmt.Sscanf(parsed.Data[0].Value, "%d", &value); err != nil {
		g.logger.Warn("sentiment: unparseable value", "raw", parsed.Data[0].Value)
		return
	}

	g.mu.Lock()
	g.value = value
	g.classification = parsed.Data[0].Classification
	g.haveReading = true
	g.mu.Unlock()

	g.logger.Info("sentiment updated", "value", value, "classification", parsed.Data[0].Classification)
}

// ExtremeFear reports whether the last reading is at or below threshold.
// Returns false (never vetoes) until a first reading has landed.
func (g *SentimentGate) ExtremeFear(threshold int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.haveReading && g.value <= threshold
}

// Value returns the last reading and whether one has ever landed.
func (g *SentimentGate) Value() (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value, g.haveReading
}
