// Package engine runs the unattended decision loop: scan for candidates,
// gate them through news analysis, size with the risk manager, execute with
// protective exits, then manage the open positions.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/ai/llm"
	"satellite-trading-bot/internal/events"
	"satellite-trading-bot/internal/exchange"
	"satellite-trading-bot/internal/logging"
	"satellite-trading-bot/internal/news"
	"satellite-trading-bot/internal/notification"
	"satellite-trading-bot/internal/orders"
	"satellite-trading-bot/internal/risk"
	"satellite-trading-bot/internal/screen"
	"satellite-trading-bot/internal/sentiment"
)

// NewsSource provides recent headlines for a pair.
type NewsSource interface {
	Latest(ctx context.Context, pair string) ([]news.Headline, error)
	IsConfigured() bool
}

// VerdictAnalyzer turns one headline into a structured trading verdict, or
// nil when no reliable verdict exists.
type VerdictAnalyzer interface {
	AnalyzeNews(ctx context.Context, pair, headline string, currentPrice, shortRSI float64) *llm.NewsVerdict
	IsConfigured() bool
}

// MarketGauge reports market-wide sentiment on a 0-100 scale.
type MarketGauge interface {
	Current(ctx context.Context) (sentiment.Score, error)
}

// TradeIntent is the audit record of a decision to trade, created before the
// order is sent so a crash mid-execution still leaves a trace in the logs.
type TradeIntent struct {
	ID         string
	Pair       string
	Side       string
	SizeUSDT   float64
	Confidence float64
	Reason     string
	CreatedAt  time.Time
}

// Engine is the decision loop. All trading decisions run on a single
// goroutine; tickers only decide which cycle fires next, so no two cycles
// ever touch the exchange or the risk ledger concurrently.
type Engine struct {
	cfg      *config.Config
	gateway  exchange.Gateway
	riskMgr  *risk.Manager
	filter   *screen.Filter
	feed     NewsSource
	analyzer VerdictAnalyzer
	gauge    MarketGauge
	tracker  *orders.GroupTracker
	notifier *notification.Manager
	bus      *events.EventBus
	log      *logging.Logger

	cycle int64
}

// New wires up the decision loop.
func New(
	cfg *config.Config,
	gateway exchange.Gateway,
	riskMgr *risk.Manager,
	filter *screen.Filter,
	feed NewsSource,
	analyzer VerdictAnalyzer,
	gauge MarketGauge,
	tracker *orders.GroupTracker,
	notifier *notification.Manager,
	bus *events.EventBus,
) *Engine {
	return &Engine{
		cfg:      cfg,
		gateway:  gateway,
		riskMgr:  riskMgr,
		filter:   filter,
		feed:     feed,
		analyzer: analyzer,
		gauge:    gauge,
		tracker:  tracker,
		notifier: notifier,
		bus:      bus,
		log:      logging.WithComponent("engine"),
	}
}

// Run blocks until ctx is cancelled, interleaving scan, trail, and rebalance
// cycles. An immediate scan fires on startup so a restart does not wait a
// full interval before resuming.
func (e *Engine) Run(ctx context.Context) {
	ec := e.cfg.Engine

	scanTicker := time.NewTicker(time.Duration(ec.ScanIntervalSecs) * time.Second)
	trailTicker := time.NewTicker(time.Duration(ec.TrailIntervalSecs) * time.Second)
	rebalanceTicker := time.NewTicker(time.Duration(ec.RebalanceIntervalSecs) * time.Second)
	defer scanTicker.Stop()
	defer trailTicker.Stop()
	defer rebalanceTicker.Stop()

	e.log.Info("Decision loop started",
		"pairs", len(ec.Pairs),
		"scan_interval_secs", ec.ScanIntervalSecs)
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{
			"pairs": ec.Pairs,
		}})
	}

	e.scanCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Decision loop stopped")
			if e.bus != nil {
				e.bus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]interface{}{}})
			}
			return
		case <-scanTicker.C:
			e.scanCycle(ctx)
		case <-trailTicker.C:
			e.trailCycle(ctx)
		case <-rebalanceTicker.C:
			e.rebalanceCycle(ctx)
		}
	}
}

// reconcile drops tracked exit groups whose orders are no longer open on the
// exchange: a filled stop or take-profit removes both legs server-side, and a
// group the exchange no longer holds is a closed position, not an open one.
// Without this the position cap fills up with ghosts and closed pairs are
// never re-scanned. An open-order fetch failure keeps the tracked set as-is;
// treating positions as still open is the safe direction.
func (e *Engine) reconcile() {
	if e.tracker.Count() == 0 {
		return
	}

	open, err := e.gateway.GetOpenOrders()
	if err != nil {
		e.log.Warn("Open-order fetch failed, reconciliation skipped", "error", err)
		return
	}

	live := make(map[string]bool, len(open))
	for _, o := range open {
		live[o.GroupID] = true
	}

	for _, g := range e.tracker.All() {
		if live[g.ID] {
			continue
		}
		if err := e.tracker.Remove(g.ID); err != nil {
			e.log.Error("Failed to drop closed exit group", "group_id", g.ID, "error", err)
			continue
		}
		e.log.Info("Position closed on exchange", "pair", g.Pair, "group_id", g.ID,
			"entry_price", g.EntryPrice, "stop_loss", g.StopLoss, "take_profit", g.TakeProfit)
		if e.bus != nil {
			e.bus.PublishPositionClosed(g.Pair, g.ID)
		}
	}
}

// scanCycle is one full pass: refresh the ledger, reconcile open positions,
// check the global gates, then evaluate each pair that is not already held.
func (e *Engine) scanCycle(ctx context.Context) {
	e.cycle++
	p := e.cfg.Snapshot()
	log := logging.ScanContext(e.cycle, len(e.cfg.Engine.Pairs))

	e.reconcile()

	total, err := e.gateway.GetTotalValueUSDT()
	if err != nil {
		log.Error("Failed to read account value, skipping cycle", "error", err)
		if e.bus != nil {
			e.bus.PublishError("engine", "failed to read account value", err)
		}
		return
	}
	if err := e.riskMgr.UpdateBalance(total); err != nil {
		log.Error("Ledger update failed, skipping cycle", "error", err)
		return
	}

	if ok, reason := e.riskMgr.CanTrade(); !ok {
		log.Warn("Trading halted, scan skipped", "reason", reason)
		return
	}

	// Market-wide fear floor. An unreadable gauge counts as fear.
	score, err := e.gauge.Current(ctx)
	if err != nil {
		log.Warn("Market gauge unavailable, scan skipped", "error", err)
		return
	}
	if score.Value < p.Risk.MinSentiment {
		log.Info("Market sentiment below floor, scan skipped",
			"score", score.Value, "label", score.Label, "floor", p.Risk.MinSentiment)
		return
	}

	if e.tracker.Count() >= p.Risk.MaxOpenSatelliteTrades {
		log.Info("Open position cap reached, scan skipped", "open", e.tracker.Count())
		return
	}

	for _, pair := range e.cfg.Engine.Pairs {
		if ctx.Err() != nil {
			return
		}
		if len(e.tracker.ByPair(pair)) > 0 {
			continue // already holding this pair
		}
		e.evaluatePair(ctx, pair, total)

		// A trade during this scan may have tripped a breaker or filled
		// the position cap; re-check before the next pair.
		if ok, _ := e.riskMgr.CanTrade(); !ok {
			return
		}
		if e.tracker.Count() >= p.Risk.MaxOpenSatelliteTrades {
			return
		}
	}
}

// evaluatePair runs the cheap technical screen and, only when it passes, the
// expensive news gate.
func (e *Engine) evaluatePair(ctx context.Context, pair string, totalCapital float64) {
	ec := e.cfg.Engine

	short, err := e.gateway.GetCandles(pair, ec.ShortInterval, ec.CandleLimit)
	if err != nil {
		e.log.Warn("Candle fetch failed", "pair", pair, "interval", ec.ShortInterval, "error", err)
		return
	}
	confirm, err := e.gateway.GetCandles(pair, ec.ConfirmInterval, ec.CandleLimit)
	if err != nil {
		e.log.Warn("Candle fetch failed", "pair", pair, "interval", ec.ConfirmInterval, "error", err)
		return
	}

	verdict := e.filter.Evaluate(short, confirm)
	if !verdict.Candidate {
		e.log.Debug("Pair screened out", "pair", pair, "reason", verdict.Reason)
		return
	}
	e.log.Info("Candidate found", "pair", pair, "reason", verdict.Reason, "rsi", verdict.ShortRSI)

	if !e.analyzer.IsConfigured() || !e.feed.IsConfigured() {
		e.log.Debug("News gate not configured, candidate dropped", "pair", pair)
		return
	}

	headlines, err := e.feed.Latest(ctx, pair)
	if err != nil {
		e.log.Warn("Headline fetch failed", "pair", pair, "error", err)
		return
	}
	if len(headlines) == 0 {
		e.log.Debug("No headlines, candidate dropped", "pair", pair)
		return
	}

	price, err := e.gateway.GetPrice(pair)
	if err != nil {
		e.log.Warn("Price fetch failed", "pair", pair, "error", err)
		return
	}

	best := e.bestVerdict(ctx, pair, headlines, price, verdict.ShortRSI)
	if best == nil {
		e.log.Info("No actionable verdict", "pair", pair)
		return
	}

	e.execute(pair, totalCapital, price, best)
}

// bestVerdict runs headlines through the gate until one is simultaneously
// bullish, a BUY, and above the high-confidence threshold, then stops: one
// trade decision per pair per cycle. Anything else - SELL, FOLD, bearish,
// low confidence, nil - is a pass; the satellite book is long-only.
func (e *Engine) bestVerdict(ctx context.Context, pair string, headlines []news.Headline, price, shortRSI float64) *llm.NewsVerdict {
	highThreshold := e.cfg.Snapshot().Confidence.HighThreshold

	for _, h := range headlines {
		if ctx.Err() != nil {
			return nil
		}
		v := e.analyzer.AnalyzeNews(ctx, pair, h.Title, price, shortRSI)
		if v == nil {
			continue
		}
		e.log.Debug("Headline verdict",
			"pair", pair,
			"action", v.SuggestedAction,
			"sentiment", v.Sentiment,
			"confidence", v.Confidence)
		if v.Sentiment == llm.SentimentBullish && v.SuggestedAction == llm.ActionBuy && v.Confidence >= highThreshold {
			return v
		}
	}
	return nil
}

// execute records the intent, sizes the trade, buys, and immediately places
// the protective exits. A position is never left naked: an exit placement
// failure is alerted at top volume since the stop does not exist.
func (e *Engine) execute(pair string, totalCapital, price float64, verdict *llm.NewsVerdict) {
	sizeUSDT := e.riskMgr.CalculatePositionSize(totalCapital, verdict.Confidence)
	if sizeUSDT <= 0 {
		e.log.Info("Position sized to zero, trade rejected", "pair", pair, "confidence", verdict.Confidence)
		if e.bus != nil {
			e.bus.PublishTradeRejected(pair, "position sized to zero")
		}
		return
	}

	intent := TradeIntent{
		ID:         uuid.New().String(),
		Pair:       pair,
		Side:       "BUY",
		SizeUSDT:   sizeUSDT,
		Confidence: verdict.Confidence,
		Reason:     verdict.Reasoning,
		CreatedAt:  time.Now(),
	}
	e.log.Info("Trade intent",
		"intent_id", intent.ID,
		"pair", intent.Pair,
		"size_usdt", intent.SizeUSDT,
		"confidence", intent.Confidence,
		"reason", intent.Reason)

	quantity := sizeUSDT / price
	fill, err := e.gateway.MarketBuy(pair, quantity)
	if err != nil {
		e.log.Error("Market buy failed", "intent_id", intent.ID, "pair", pair, "error", err)
		if e.bus != nil {
			e.bus.PublishError("engine", "market buy failed for "+pair, err)
		}
		return
	}

	tlog := logging.TradeContext(pair, "BUY", fill.Quantity, fill.Price)
	tlog.Info("Entry filled", "intent_id", intent.ID)

	stopLoss, takeProfit := e.riskMgr.GetExitPoints(fill.Price, "BUY", verdict.TargetGainPercent)

	groupID, err := e.gateway.PlaceProtectiveExitPair(pair, fill.Quantity, takeProfit, stopLoss)
	if err != nil {
		e.log.Error("UNPROTECTED POSITION: exit placement failed",
			"intent_id", intent.ID, "pair", pair, "quantity", fill.Quantity, "error", err)
		if e.bus != nil {
			e.bus.PublishError("engine", "exit placement failed, position unprotected: "+pair, err)
		}
		if e.notifier != nil {
			e.notifier.SendError("Unprotected position",
				"Exit placement failed for "+pair+"; manual intervention required")
		}
		// Fall through: the fill still counts against the daily ledger.
	} else {
		if err := e.tracker.Track(orders.Group{
			ID:         groupID,
			Pair:       pair,
			IntentID:   intent.ID,
			Quantity:   fill.Quantity,
			EntryPrice: fill.Price,
			StopLoss:   stopLoss,
			TakeProfit: takeProfit,
		}); err != nil {
			e.log.Error("Failed to track exit group", "group_id", groupID, "error", err)
		}
	}

	if err := e.riskMgr.RecordTrade(); err != nil {
		e.log.Error("Failed to record trade in ledger", "intent_id", intent.ID, "error", err)
	}

	if e.bus != nil {
		e.bus.PublishTradeExecuted(pair, "BUY", fill.Price, fill.Quantity, sizeUSDT, verdict.Confidence)
	}
	if e.notifier != nil {
		e.notifier.SendTradeAlert(pair, "BUY", fill.Price, fill.Quantity, sizeUSDT,
			stopLoss, takeProfit, verdict.Confidence, verdict.Reasoning)
	}
}
