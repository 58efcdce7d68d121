// Package ordermanager places and cancels grid orders, polls for fills,
// and reconciles the in-memory live-order set against the venue's
// authoritative view.
package ordermanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gridbot/internal/core"
	"gridbot/internal/journal"
	apperrors "gridbot/pkg/errors"
)

// Manager maintains liveIds per symbol and handles the lifecycle of the
// grid's resting limit orders. Market orders are placed by their callers
// directly on the ExchangeAdapter.
type Manager struct {
	mu       sync.Mutex
	exchange core.ExchangeAdapter
	store    *journal.Store
	logger   core.ILogger

	liveIDs map[string]map[string]struct{} // symbol -> set of venueOrderID
}

// New builds an OrderManager backed by the given adapter and journal.
func New(exchange core.ExchangeAdapter, store *journal.Store, logger core.ILogger) *Manager {
	return &Manager{
		exchange: exchange,
		store:    store,
		logger:   logger.WithField("component", "order_manager"),
		liveIDs:  make(map[string]map[string]struct{}),
	}
}

func (m *Manager) liveSetLocked(symbol string) map[string]struct{} {
	set, ok := m.liveIDs[symbol]
	if !ok {
		set = make(map[string]struct{})
		m.liveIDs[symbol] = set
	}
	return set
}

// OpenOrderCount reports how many live orders are tracked for a symbol;
// RiskSupervisor gates new-order admission on this count.
func (m *Manager) OpenOrderCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.liveSetLocked(symbol))
}

// PlaceGridOrder places a resting limit order for one grid level and
// records it as live.
func (m *Manager) PlaceGridOrder(ctx context.Context, symbol string, side core.Side, amount, price core.Decimal, levelIndex int) (core.Order, error) {
	order, err := m.exchange.PlaceLimit(ctx, symbol, side, amount, price)
	if err != nil {
		return core.Order{}, fmt.Errorf("ordermanager: place grid order %s: %w", symbol, err)
	}
	order.Status = core.OrderOpen
	order.LevelIndex = levelIndex

	if err := m.store.UpsertOrder(ctx, order); err != nil {
		m.logger.Error("failed to journal placed order", "orderID", order.VenueOrderID, "error", err)
	}

	m.mu.Lock()
	m.liveSetLocked(symbol)[order.VenueOrderID] = struct{}{}
	m.mu.Unlock()

	return order, nil
}

// CheckFills polls every live order for a symbol and returns the ones
// that reached filled status this call. Cancelled orders leave the live
// set without being returned; partially filled orders are updated but
// stay live; orders GetOrder cannot fetch stay live.
func (m *Manager) CheckFills(ctx context.Context, symbol string) ([]core.Order, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.liveSetLocked(symbol)))
	for id := range m.liveSetLocked(symbol) {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var filled []core.Order
	for _, id := range ids {
		order, err := m.exchange.GetOrder(ctx, id, symbol)
		if err != nil {
			m.logger.Warn("checkFills: getOrder failed, leaving order live", "orderID", id, "error", err)
			continue
		}

		switch order.Status {
		case core.OrderFilled, core.OrderCancelled:
			if err := m.store.UpsertOrder(ctx, order); err != nil {
				m.logger.Error("failed to journal filled order", "orderID", id, "error", err)
			}
			m.mu.Lock()
			delete(m.liveSetLocked(symbol), id)
			m.mu.Unlock()
			if order.Status == core.OrderFilled {
				filled = append(filled, order)
			}
		case core.OrderPartiallyFilled:
			if err := m.store.UpsertOrder(ctx, order); err != nil {
				m.logger.Error("failed to journal partially filled order", "orderID", id, "error", err)
			}
		}
	}
	return filled, nil
}

// Cancel cancels one order; not-found at the venue is treated as
// already-cancelled, with a warning, not an error.
func (m *Manager) Cancel(ctx context.Context, orderID, symbol string) (bool, error) {
	ok, err := m.exchange.Cancel(ctx, orderID, symbol)
	if errors.Is(err, apperrors.ErrOrderNotFound) {
		ok, err = true, nil
	}
	if err != nil {
		return false, fmt.Errorf("ordermanager: cancel %s: %w", orderID, err)
	}

	if ok {
		order, getErr := m.store.GetOrder(ctx, orderID)
		if getErr == nil {
			order.Status = core.OrderCancelled
			if err := m.store.UpsertOrder(ctx, order); err != nil {
				m.logger.Error("failed to journal cancelled order", "orderID", orderID, "error", err)
			}
		}
		m.mu.Lock()
		delete(m.liveSetLocked(symbol), orderID)
		m.mu.Unlock()
	}
	return ok, nil
}

// ReconcileWithExchange fetches the venue's authoritative open-order set
// for symbol; any tracked id absent from it is marked cancelled in the
// journal and dropped, then liveIds is replaced by the venue's set
// exactly. Idempotent: calling it twice with no exchange-side change
// yields identical liveIds.
func (m *Manager) ReconcileWithExchange(ctx context.Context, symbol string) error {
	venueOrders, err := m.exchange.GetOpenOrders(ctx, symbol)
	if err != nil {
		return fmt.Errorf("ordermanager: reconcile %s: %w", symbol, err)
	}

	venueSet := make(map[string]struct{}, len(venueOrders))
	for _, o := range venueOrders {
		venueSet[o.VenueOrderID] = struct{}{}
	}

	m.mu.Lock()
	local := m.liveSetLocked(symbol)
	var vanished []string
	for id := range local {
		if _, ok := venueSet[id]; !ok {
			vanished = append(vanished, id)
		}
	}
	m.mu.Unlock()

	for _, id := range vanished {
		order, err := m.store.GetOrder(ctx, id)
		if err == nil {
			order.Status = core.OrderCancelled
			if err := m.store.UpsertOrder(ctx, order); err != nil {
				m.logger.Error("failed to journal reconciled-away order", "orderID", id, "error", err)
			}
		}
		m.logger.Warn("reconcile: order missing at venue, marking cancelled", "orderID", id, "symbol", symbol)
	}

	m.mu.Lock()
	fresh := make(map[string]struct{}, len(venueOrders))
	for id := range venueSet {
		fresh[id] = struct{}{}
	}
	m.liveIDs[symbol] = fresh
	m.mu.Unlock()

	return nil
}

// RestoreLiveIDs seeds the live set for a symbol from persisted state on
// startup, before the first reconcile runs.
func (m *Manager) RestoreLiveIDs(symbol string, ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	m.liveIDs[symbol] = set
}
