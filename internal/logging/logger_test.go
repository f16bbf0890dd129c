package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	l := New(&Config{Level: level, Output: path, Component: "test", JSONFormat: true})
	return l, path
}

func readEntries(t *testing.T, path string) []LogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var out []LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func TestKeyValueArgsBecomeFields(t *testing.T) {
	l, path := fileLogger(t, "INFO")

	l.Info("Trade intent", "pair", "SOLUSDT", "size_usdt", 20.0)

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != "INFO" || e.Message != "Trade intent" || e.Component != "test" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields["pair"] != "SOLUSDT" {
		t.Errorf("pair field = %v", e.Fields["pair"])
	}
	if e.Fields["size_usdt"] != 20.0 {
		t.Errorf("size field = %v", e.Fields["size_usdt"])
	}
}

func TestLevelFilters(t *testing.T) {
	l, path := fileLogger(t, "WARN")

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept")

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("levels = %s/%s", entries[0].Level, entries[1].Level)
	}
}

func TestDerivedLoggersDoNotShareFields(t *testing.T) {
	l, path := fileLogger(t, "INFO")

	scoped := l.WithComponent("risk").WithFields(map[string]interface{}{"pair": "SOLUSDT"})
	scoped.Info("scoped")
	l.Info("base")

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Component != "risk" || entries[0].Fields["pair"] != "SOLUSDT" {
		t.Errorf("scoped entry = %+v", entries[0])
	}
	if entries[1].Component != "test" || entries[1].Fields != nil {
		t.Errorf("base entry mutated by derived logger: %+v", entries[1])
	}
}

func TestTraceAndDuration(t *testing.T) {
	l, path := fileLogger(t, "INFO")

	l.WithTraceID("abc123").WithDuration(250 * time.Millisecond).Info("Request completed")

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].TraceID != "abc123" {
		t.Errorf("trace id = %q", entries[0].TraceID)
	}
	if entries[0].Fields["duration"] != "250ms" {
		t.Errorf("duration field = %v", entries[0].Fields["duration"])
	}
}

func TestErrorArgsSerialized(t *testing.T) {
	l, path := fileLogger(t, "INFO")

	l.Error("Candle fetch failed", "error", os.ErrNotExist)

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Fields["error"] != os.ErrNotExist.Error() {
		t.Errorf("error field = %v", entries[0].Fields["error"])
	}
}
