package config

import "testing"

func TestApplyUpdateRejectsUnknownKey(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyUpdate("risk.leverage", "5"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestApplyUpdateRejectsOutOfDomain(t *testing.T) {
	cfg := Default()

	cases := []struct {
		key, value string
	}{
		{"risk.maxRiskPerTrade", "0"},
		{"risk.maxRiskPerTrade", "1.5"},
		{"risk.maxRiskPerTrade", "abc"},
		{"risk.maxTradesPerDay", "0"},
		{"risk.maxTradesPerDay", "2.5"},
		{"risk.minOrderSizeUsdt", "-1"},
		{"confidence.minToTrade", "101"},
		{"technicals.rsiOversold", "55"},
		{"technicals.rsiOverbought", "40"},
		{"allocation.core", "1"},
		{"allocation.core", "0"},
	}
	for _, tc := range cases {
		if err := cfg.ApplyUpdate(tc.key, tc.value); err == nil {
			t.Errorf("ApplyUpdate(%s, %s): expected error", tc.key, tc.value)
		}
	}
}

func TestApplyUpdateAcceptsValidValues(t *testing.T) {
	cfg := Default()

	if err := cfg.ApplyUpdate("risk.maxRiskPerTrade", "0.02"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.ApplyUpdate("risk.maxTradesPerDay", "8"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := cfg.Snapshot()
	if p.Risk.MaxRiskPerTrade != 0.02 {
		t.Errorf("maxRiskPerTrade = %v, want 0.02", p.Risk.MaxRiskPerTrade)
	}
	if p.Risk.MaxTradesPerDay != 8 {
		t.Errorf("maxTradesPerDay = %d, want 8", p.Risk.MaxTradesPerDay)
	}
}

func TestAllocationUpdateKeepsSplitComplementary(t *testing.T) {
	cfg := Default()

	if err := cfg.ApplyUpdate("allocation.core", "0.8"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := cfg.Snapshot()
	if p.Allocation.Core != 0.8 || p.Allocation.Satellite != 0.2 {
		t.Errorf("split = %v/%v, want 0.8/0.2", p.Allocation.Core, p.Allocation.Satellite)
	}

	if err := cfg.ApplyUpdate("allocation.satellite", "0.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p = cfg.Snapshot()
	if p.Allocation.Core != 0.6 || p.Allocation.Satellite != 0.4 {
		t.Errorf("split = %v/%v, want 0.6/0.4", p.Allocation.Core, p.Allocation.Satellite)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg := Default()
	p := cfg.Snapshot()
	p.Risk.MaxTradesPerDay = 99
	p.Allocation.CoreAssets[0] = "DOGE"

	p2 := cfg.Snapshot()
	if p2.Risk.MaxTradesPerDay == 99 {
		t.Error("mutating a snapshot leaked into the config")
	}
	if p2.Allocation.CoreAssets[0] == "DOGE" {
		t.Error("mutating a snapshot slice leaked into the config")
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
