package engine

import "context"

// Core is only topped up once it drifts this far below its target share.
// The band keeps the loop from churning tiny orders on every wiggle.
const rebalanceDriftBand = 0.05

// rebalanceCycle tops up the core allocation when it has drifted below
// target. It only ever buys core assets with spare quote balance; it never
// sells satellites to fund the core.
func (e *Engine) rebalanceCycle(ctx context.Context) {
	p := e.cfg.Snapshot()

	if ok, reason := e.riskMgr.CanTrade(); !ok {
		e.log.Debug("Rebalance skipped, trading halted", "reason", reason)
		return
	}

	total, err := e.gateway.GetTotalValueUSDT()
	if err != nil {
		e.log.Warn("Account value fetch failed, rebalance skipped", "error", err)
		return
	}
	if total <= 0 {
		return
	}

	coreValue := 0.0
	for _, asset := range p.Allocation.CoreAssets {
		if ctx.Err() != nil {
			return
		}
		qty, err := e.gateway.GetBalance(asset)
		if err != nil || qty == 0 {
			continue
		}
		price, err := e.gateway.GetPrice(asset + "USDT")
		if err != nil {
			e.log.Warn("Core asset price fetch failed", "asset", asset, "error", err)
			continue
		}
		coreValue += qty * price
	}

	threshold := (p.Allocation.Core - rebalanceDriftBand) * total
	if coreValue >= threshold {
		return
	}

	deficit := p.Allocation.Core*total - coreValue
	if len(p.Allocation.CoreAssets) == 0 {
		return
	}
	perAsset := deficit / float64(len(p.Allocation.CoreAssets))

	e.log.Info("Core below target, rebalancing",
		"core_value", coreValue,
		"total", total,
		"deficit", deficit)

	for _, asset := range p.Allocation.CoreAssets {
		if ctx.Err() != nil {
			return
		}
		if perAsset < p.Risk.MinOrderSizeUSDT {
			e.log.Debug("Rebalance leg below minimum order, skipped",
				"asset", asset, "size_usdt", perAsset)
			continue
		}

		pair := asset + "USDT"
		price, err := e.gateway.GetPrice(pair)
		if err != nil {
			e.log.Warn("Price fetch failed for rebalance leg", "pair", pair, "error", err)
			continue
		}

		fill, err := e.gateway.MarketBuy(pair, perAsset/price)
		if err != nil {
			e.log.Error("Rebalance buy failed", "pair", pair, "error", err)
			if e.bus != nil {
				e.bus.PublishError("engine", "rebalance buy failed for "+pair, err)
			}
			continue
		}

		e.log.Info("Core topped up",
			"asset", asset,
			"size_usdt", perAsset,
			"price", fill.Price)
		if e.bus != nil {
			e.bus.PublishRebalanced(asset, perAsset, coreValue, total)
		}
		if e.notifier != nil {
			e.notifier.SendRebalance(asset, perAsset, coreValue, total)
		}
	}
}
