package control

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/orders"
	"satellite-trading-bot/internal/risk"
)

func testListener(t *testing.T) *Listener {
	t.Helper()
	cfg := config.Default()
	riskMgr, err := risk.NewManager(cfg, risk.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("risk.NewManager: %v", err)
	}
	tracker := orders.NewGroupTracker(nil, zerolog.Nop())
	return NewListener(ListenerConfig{BotToken: "token", ChatID: "42"}, cfg, riskMgr, tracker, nil)
}

func TestPauseAndResumeCommands(t *testing.T) {
	l := testListener(t)

	reply := l.Execute("/pause")
	if !strings.Contains(reply, "paused") {
		t.Errorf("pause reply = %q", reply)
	}
	if ok, reason := l.riskMgr.CanTrade(); ok || reason != risk.ReasonManualPause {
		t.Fatalf("CanTrade = (%v, %q) after /pause", ok, reason)
	}

	reply = l.Execute("/resume")
	if !strings.Contains(reply, "resumed") {
		t.Errorf("resume reply = %q", reply)
	}
	if ok, _ := l.riskMgr.CanTrade(); !ok {
		t.Error("trading still halted after /resume")
	}
}

func TestSetCommand(t *testing.T) {
	l := testListener(t)

	reply := l.Execute("/set risk.maxTradesPerDay 9")
	if !strings.Contains(reply, "Updated") {
		t.Fatalf("set reply = %q", reply)
	}
	if got := l.cfg.Snapshot().Risk.MaxTradesPerDay; got != 9 {
		t.Errorf("maxTradesPerDay = %d, want 9", got)
	}
}

func TestSetCommandRejectsBadInput(t *testing.T) {
	l := testListener(t)

	cases := []string{
		"/set",                          // missing args
		"/set risk.maxTradesPerDay",     // missing value
		"/set risk.leverage 20",         // unknown key
		"/set risk.dailyLossLimit 1.5",  // out of domain
		"/set risk.maxTradesPerDay abc", // not a number
	}
	for _, cmd := range cases {
		reply := l.Execute(cmd)
		if strings.Contains(reply, "Updated") {
			t.Errorf("%q was accepted: %q", cmd, reply)
		}
	}
	if got := l.cfg.Snapshot().Risk.DailyLossLimit; got != 0.05 {
		t.Errorf("dailyLossLimit changed to %v", got)
	}
}

func TestStatusCommand(t *testing.T) {
	l := testListener(t)
	if err := l.riskMgr.UpdateBalance(1200); err != nil {
		t.Fatal(err)
	}
	l.tracker.Track(orders.Group{ID: "g1", Pair: "SOLUSDT", Quantity: 0.5, EntryPrice: 100, StopLoss: 98, TakeProfit: 110})

	reply := l.Execute("/status")
	if !strings.Contains(reply, "1200.00") {
		t.Errorf("status missing balance: %q", reply)
	}
	if !strings.Contains(reply, "SOLUSDT") {
		t.Errorf("status missing position: %q", reply)
	}
	if !strings.Contains(reply, "active") {
		t.Errorf("status missing trading state: %q", reply)
	}
}

func TestUnknownAndBotSuffixedCommands(t *testing.T) {
	l := testListener(t)

	if reply := l.Execute("/reboot"); !strings.Contains(reply, "Unknown command") {
		t.Errorf("reply = %q", reply)
	}
	// Group chats address commands as /cmd@BotName.
	if reply := l.Execute("/pause@satellite_bot"); !strings.Contains(reply, "paused") {
		t.Errorf("suffixed command reply = %q", reply)
	}
	if reply := l.Execute("   "); reply != "" {
		t.Errorf("blank input reply = %q", reply)
	}
}
