package notification

import (
	"errors"
	"sync"
	"testing"
)

type fakeNotifier struct {
	mu      sync.Mutex
	name    string
	enabled bool
	err     error
	sent    []*Notification
}

func (f *fakeNotifier) Send(n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestSendFansOutToEnabledProviders(t *testing.T) {
	m := NewManager(true)
	on := &fakeNotifier{name: "on", enabled: true}
	off := &fakeNotifier{name: "off", enabled: false}
	m.AddNotifier(on)
	m.AddNotifier(off)

	if err := m.SendInfo("title", "body"); err != nil {
		t.Fatalf("SendInfo: %v", err)
	}
	if on.count() != 1 {
		t.Errorf("enabled provider got %d notifications, want 1", on.count())
	}
	if off.count() != 0 {
		t.Errorf("disabled provider got %d notifications, want 0", off.count())
	}
}

func TestSendDisabledManagerIsSilent(t *testing.T) {
	m := NewManager(false)
	n := &fakeNotifier{name: "n", enabled: true}
	m.AddNotifier(n)

	if err := m.SendError("x", "y"); err != nil {
		t.Fatalf("SendError: %v", err)
	}
	if n.count() != 0 {
		t.Error("disabled manager still delivered")
	}
}

func TestSendReportsProviderFailure(t *testing.T) {
	m := NewManager(true)
	good := &fakeNotifier{name: "good", enabled: true}
	bad := &fakeNotifier{name: "bad", enabled: true, err: errors.New("webhook down")}
	m.AddNotifier(bad)
	m.AddNotifier(good)

	if err := m.SendInfo("t", "m"); err == nil {
		t.Error("expected error from failing provider")
	}
	// One failing provider must not block the others.
	if good.count() != 1 {
		t.Errorf("good provider got %d notifications, want 1", good.count())
	}
}

func TestSendBreakerAlertContent(t *testing.T) {
	m := NewManager(true)
	n := &fakeNotifier{name: "n", enabled: true}
	m.AddNotifier(n)

	if err := m.SendBreakerAlert("daily loss limit reached", -52.3, 947.7, 4); err != nil {
		t.Fatal(err)
	}
	sent := n.sent[0]
	if sent.Type != NotifyBreaker {
		t.Errorf("type = %s, want breaker", sent.Type)
	}
	if sent.PnL != -52.3 {
		t.Errorf("pnl = %v, want -52.3", sent.PnL)
	}
}

func TestNotifiersDisabledWithoutCredentials(t *testing.T) {
	tg := NewTelegramNotifier(TelegramConfig{Enabled: true})
	if tg.IsEnabled() {
		t.Error("telegram enabled without token/chat")
	}
	dc := NewDiscordNotifier(DiscordConfig{Enabled: true})
	if dc.IsEnabled() {
		t.Error("discord enabled without webhook URL")
	}
}
