package engine

import (
	"context"

	"satellite-trading-bot/internal/orders"
)

// Ratchet thresholds: raise the stop 1% once price has run 2% past it. The
// stop only ever moves up; a pullback never lowers it.
const (
	trailTriggerRatio = 1.02
	trailStepRatio    = 1.01
)

// trailCycle walks the open exit groups and ratchets any stop the market has
// left behind. Each ratchet is cancel-then-replace, so there is a brief
// window without exits; the replacement keeps the original take-profit.
// Reconciling first keeps the pass off groups the exchange already filled.
func (e *Engine) trailCycle(ctx context.Context) {
	e.reconcile()

	for _, g := range e.tracker.All() {
		if ctx.Err() != nil {
			return
		}
		e.ratchet(g)
	}
}

func (e *Engine) ratchet(g orders.Group) {
	price, err := e.gateway.GetPrice(g.Pair)
	if err != nil {
		e.log.Warn("Price fetch failed during trail", "pair", g.Pair, "error", err)
		return
	}

	if price < g.StopLoss*trailTriggerRatio {
		return
	}

	newStop := g.StopLoss * trailStepRatio
	// Take-profit already reached by the exchange side would have removed
	// the group; cap the stop below the target to keep the pair valid.
	if newStop >= g.TakeProfit {
		return
	}

	if err := e.gateway.CancelOrderGroup(g.Pair, g.ID); err != nil {
		e.log.Error("Failed to cancel exit group for ratchet", "pair", g.Pair, "group_id", g.ID, "error", err)
		if e.bus != nil {
			e.bus.PublishError("engine", "ratchet cancel failed for "+g.Pair, err)
		}
		return
	}

	newGroupID, err := e.gateway.PlaceProtectiveExitPair(g.Pair, g.Quantity, g.TakeProfit, newStop)
	if err != nil {
		e.log.Error("UNPROTECTED POSITION: ratchet replacement failed",
			"pair", g.Pair, "quantity", g.Quantity, "error", err)
		if e.bus != nil {
			e.bus.PublishError("engine", "ratchet replacement failed, position unprotected: "+g.Pair, err)
		}
		if e.notifier != nil {
			e.notifier.SendError("Unprotected position",
				"Ratchet replacement failed for "+g.Pair+"; manual intervention required")
		}
		if err := e.tracker.Remove(g.ID); err != nil {
			e.log.Error("Failed to drop tracking for unprotected group", "group_id", g.ID, "error", err)
		} else {
			e.log.Warn("Dropped tracking for unprotected group", "group_id", g.ID)
		}
		return
	}

	if err := e.tracker.Replace(g.ID, orders.Group{
		ID:         newGroupID,
		Pair:       g.Pair,
		Quantity:   g.Quantity,
		EntryPrice: g.EntryPrice,
		StopLoss:   newStop,
		TakeProfit: g.TakeProfit,
	}); err != nil {
		e.log.Error("Failed to swap tracked group after ratchet", "group_id", g.ID, "error", err)
	}

	e.log.Info("Stop ratcheted",
		"pair", g.Pair,
		"old_stop", g.StopLoss,
		"new_stop", newStop,
		"price", price)
	if e.bus != nil {
		e.bus.PublishStopRatcheted(g.Pair, g.StopLoss, newStop, price)
	}
	if e.notifier != nil {
		e.notifier.SendStopRatchet(g.Pair, g.StopLoss, newStop, price)
	}
}
