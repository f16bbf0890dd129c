package risk

import (
	"fmt"
	"sync"
	"time"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/events"
	"satellite-trading-bot/internal/logging"
)

// Breaker trip reasons.
const (
	ReasonDailyLoss   = "daily loss limit reached"
	ReasonTradeCount  = "max trades per day reached"
	ReasonLowBalance  = "balance below minimum to trade"
	ReasonPersistence = "failed to persist daily stats"
	ReasonManualPause = "paused by operator"
)

// Confidence above this multiplies base risk by 1.5; above the configured
// high threshold it doubles.
const confidenceMidTier = 75.0

// Manager owns the daily ledger, the circuit breakers, and the position
// sizing math. All mutations persist the ledger before returning; a persist
// failure latches the halt so the loop cannot keep trading on state that
// would be lost across a restart.
type Manager struct {
	cfg   *config.Config
	store StatsStore
	bus   *events.EventBus
	log   *logging.Logger

	mu    sync.RWMutex
	stats DailyStats

	now func() time.Time
}

// NewManager loads the ledger from the store and resumes its breaker state.
// A store read failure is returned to the caller; starting blind on risk
// state is not an option.
func NewManager(cfg *config.Config, store StatsStore, bus *events.EventBus) (*Manager, error) {
	m := &Manager{
		cfg:   cfg,
		store: store,
		bus:   bus,
		log:   logging.WithComponent("risk"),
		now:   time.Now,
	}

	stats, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading daily stats: %w", err)
	}

	today := m.today()
	if ok && stats.Date == today {
		m.stats = stats
		if stats.IsHalted {
			m.log.Warn("Resuming with breaker tripped", "reason", stats.HaltReason)
		}
	} else {
		// No row, or a stale row from a previous day: start the day zeroed.
		// The first UpdateBalance sets the day's initial balance.
		m.stats = DailyStats{Date: today}
		if err := store.Save(m.stats); err != nil {
			return nil, fmt.Errorf("saving daily stats: %w", err)
		}
	}

	return m, nil
}

func (m *Manager) today() string {
	return m.now().UTC().Format("2006-01-02")
}

// UpdateBalance records the current total account value, derives the daily
// PnL, and re-evaluates the breakers. The first balance of the day becomes
// the day's initial balance.
func (m *Manager) UpdateBalance(balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()

	if m.stats.InitialBalance == 0 {
		m.stats.InitialBalance = balance
	}
	m.stats.CurrentBalance = balance
	m.stats.DailyPnL = balance - m.stats.InitialBalance

	m.evaluateBreakersLocked()

	if err := m.persistLocked(); err != nil {
		return err
	}

	if m.bus != nil {
		m.bus.PublishBalanceUpdate(balance, m.stats.DailyPnL)
	}
	return nil
}

// RecordTrade increments the day's trade count and re-evaluates the
// trade-count breaker.
func (m *Manager) RecordTrade() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()

	m.stats.TradesCount++
	m.evaluateBreakersLocked()

	return m.persistLocked()
}

// CanTrade reports whether new positions may be opened. The returned reason
// is empty when trading is allowed.
func (m *Manager) CanTrade() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()

	if m.stats.IsHalted {
		return false, m.stats.HaltReason
	}
	return true, ""
}

// ResetBreaker clears a tripped breaker by operator request. The underlying
// condition is not re-checked until the next balance update or trade.
func (m *Manager) ResetBreaker() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stats.IsHalted {
		return nil
	}

	m.stats.IsHalted = false
	m.stats.HaltReason = ""
	m.log.Warn("Circuit breaker manually reset")
	if m.bus != nil {
		m.bus.PublishBreakerReset("manual")
	}

	return m.persistLocked()
}

// Pause trips the breaker by operator request. Trading stays halted until
// ResetBreaker or the next UTC day rollover.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()
	m.tripLocked(ReasonManualPause)

	return m.persistLocked()
}

// Stats returns a copy of the current daily ledger.
func (m *Manager) Stats() DailyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Metrics returns the risk state for the status surfaces.
func (m *Manager) Metrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.cfg.Snapshot()

	lossPct := 0.0
	if m.stats.InitialBalance > 0 {
		lossPct = (m.stats.DailyPnL / m.stats.InitialBalance) * 100
	}

	return map[string]interface{}{
		"date":             m.stats.Date,
		"initial_balance":  m.stats.InitialBalance,
		"current_balance":  m.stats.CurrentBalance,
		"daily_pnl":        m.stats.DailyPnL,
		"daily_pnl_pct":    lossPct,
		"trades_count":     m.stats.TradesCount,
		"max_trades":       p.Risk.MaxTradesPerDay,
		"is_halted":        m.stats.IsHalted,
		"halt_reason":      m.stats.HaltReason,
		"daily_loss_limit": p.Risk.DailyLossLimit,
	}
}

// CalculatePositionSize returns the USDT value to commit to a satellite
// trade, or 0 when no trade should be placed. Size scales with analysis
// confidence and is capped by the satellite bucket's exposure limit; results
// below the exchange minimum are rounded up to it only when the satellite
// bucket can actually cover the minimum.
func (m *Manager) CalculatePositionSize(totalCapital, confidence float64) float64 {
	m.mu.RLock()
	halted := m.stats.IsHalted
	m.mu.RUnlock()

	p := m.cfg.Snapshot()

	if halted || totalCapital <= 0 || confidence < p.Confidence.MinToTrade {
		return 0
	}

	satelliteCapital := totalCapital * p.Allocation.Satellite
	if satelliteCapital < p.Risk.MinOrderSizeUSDT {
		// The satellite bucket cannot structurally cover even a minimum
		// order, so no clamp or round-up below may produce one.
		return 0
	}

	riskFraction := p.Risk.MaxRiskPerTrade
	switch {
	case confidence >= p.Confidence.HighThreshold:
		riskFraction *= 2.0
	case confidence >= confidenceMidTier:
		riskFraction *= 1.5
	}

	size := totalCapital * riskFraction

	if size < p.Risk.MinOrderSizeUSDT {
		size = p.Risk.MinOrderSizeUSDT
	}

	maxSize := satelliteCapital * p.Risk.MaxSatelliteExposure
	if maxSize < p.Risk.MinOrderSizeUSDT {
		maxSize = p.Risk.MinOrderSizeUSDT
	}
	if size > maxSize {
		size = maxSize
	}

	m.log.Debug("Position sized",
		"total_capital", totalCapital,
		"confidence", confidence,
		"risk_fraction", riskFraction,
		"size_usdt", size)

	return size
}

// GetExitPoints returns the protective stop and take-profit prices for an
// entry. A non-positive targetGainPercent falls back to the configured
// default, taken as-is; suggested targets are clamped to the 2..15 percent
// band so one optimistic analysis cannot park a target the market will
// never reach.
func (m *Manager) GetExitPoints(entryPrice float64, side string, targetGainPercent float64) (stopLoss, takeProfit float64) {
	p := m.cfg.Snapshot()

	gain := targetGainPercent
	if gain > 0 {
		if gain < 2 {
			gain = 2
		} else if gain > 15 {
			gain = 15
		}
	} else {
		gain = p.Risk.DefaultTakeProfit * 100
	}

	if side == "SELL" {
		stopLoss = entryPrice * (1 + p.Risk.DefaultStopLoss)
		takeProfit = entryPrice * (1 - gain/100)
	} else {
		stopLoss = entryPrice * (1 - p.Risk.DefaultStopLoss)
		takeProfit = entryPrice * (1 + gain/100)
	}
	return stopLoss, takeProfit
}

// rolloverLocked starts a fresh, zeroed ledger when the UTC day has changed.
// Breakers clear with the new day; the new day's initial balance is set by
// the first balance observation, not carried over, so an overnight portfolio
// move cannot trip the daily-loss breaker before a single trade. Caller
// holds mu.
func (m *Manager) rolloverLocked() {
	today := m.today()
	if m.stats.Date == today {
		return
	}

	wasHalted := m.stats.IsHalted
	m.stats = DailyStats{Date: today}

	m.log.Info("Daily stats rolled over", "date", today)
	if wasHalted && m.bus != nil {
		m.bus.PublishBreakerReset("day_rollover")
	}
}

// evaluateBreakersLocked trips the halt when any breaker condition holds.
// The halt latches: conditions clearing on their own do not resume trading.
// Caller holds mu.
func (m *Manager) evaluateBreakersLocked() {
	if m.stats.IsHalted {
		return
	}

	p := m.cfg.Snapshot()

	if m.stats.InitialBalance > 0 && m.stats.DailyPnL <= -p.Risk.DailyLossLimit*m.stats.InitialBalance {
		m.tripLocked(ReasonDailyLoss)
		return
	}
	if m.stats.TradesCount >= p.Risk.MaxTradesPerDay {
		m.tripLocked(ReasonTradeCount)
		return
	}
	if m.stats.CurrentBalance > 0 && m.stats.CurrentBalance < p.Risk.MinBalanceToTrade {
		m.tripLocked(ReasonLowBalance)
	}
}

// tripLocked latches the halt. Logs and publishes only on the transition.
func (m *Manager) tripLocked(reason string) {
	if m.stats.IsHalted {
		return
	}

	m.stats.IsHalted = true
	m.stats.HaltReason = reason

	m.log.Error("Circuit breaker tripped",
		"reason", reason,
		"daily_pnl", m.stats.DailyPnL,
		"trades", m.stats.TradesCount,
		"balance", m.stats.CurrentBalance)

	if m.bus != nil {
		m.bus.PublishBreakerTripped(reason, m.stats.DailyPnL, m.stats.CurrentBalance, m.stats.TradesCount)
	}
}

// persistLocked writes the ledger. On failure the halt latches so the loop
// stops opening positions it could not account for. Caller holds mu.
func (m *Manager) persistLocked() error {
	if err := m.store.Save(m.stats); err != nil {
		m.tripLocked(ReasonPersistence)
		m.log.Error("Failed to persist daily stats", "error", err)
		if m.bus != nil {
			m.bus.PublishError("risk", "failed to persist daily stats", err)
		}
		return fmt.Errorf("persisting daily stats: %w", err)
	}
	return nil
}
