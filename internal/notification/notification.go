package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"satellite-trading-bot/internal/events"
	"satellite-trading-bot/internal/logging"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyTrade     NotificationType = "trade"
	NotifyBreaker   NotificationType = "breaker"
	NotifyRatchet   NotificationType = "ratchet"
	NotifyRebalance NotificationType = "rebalance"
	NotifyError     NotificationType = "error"
	NotifyInfo      NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Pair      string
	Price     float64
	PnL       float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
	log       *logging.Logger
}

// NewManager creates a new notification manager
func NewManager(enabled bool) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   enabled,
		log:       logging.WithComponent("notification"),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				m.log.Warn("Notification delivery failed", "provider", n.Name(), "error", err)
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendTradeAlert reports an executed satellite entry with its protective exits.
func (m *Manager) SendTradeAlert(pair, side string, price, quantity, sizeUSDT, stopLoss, takeProfit, confidence float64, reasoning string) error {
	return m.Send(&Notification{
		Type:  NotifyTrade,
		Title: fmt.Sprintf("📈 Trade: %s", pair),
		Message: fmt.Sprintf("%s %s @ %.4f\nSize: %.2f USDT (qty %.8f)\nSL: %.4f | TP: %.4f\nConfidence: %.0f\n%s",
			side, pair, price, sizeUSDT, quantity, stopLoss, takeProfit, confidence, reasoning),
		Pair:      pair,
		Price:     price,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"side":        side,
			"size_usdt":   sizeUSDT,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
			"confidence":  confidence,
		},
	})
}

// SendBreakerAlert reports a tripped circuit breaker. This is the alert that
// matters most when nobody is watching.
func (m *Manager) SendBreakerAlert(reason string, dailyPnL, balance float64, trades int) error {
	return m.Send(&Notification{
		Type:  NotifyBreaker,
		Title: "🛑 Trading halted",
		Message: fmt.Sprintf("Reason: %s\nDaily PnL: %.2f USDT\nBalance: %.2f USDT\nTrades today: %d",
			reason, dailyPnL, balance, trades),
		PnL:       dailyPnL,
		Timestamp: time.Now(),
	})
}

// SendStopRatchet reports a trailing stop adjustment.
func (m *Manager) SendStopRatchet(pair string, oldStop, newStop, price float64) error {
	return m.Send(&Notification{
		Type:  NotifyRatchet,
		Title: fmt.Sprintf("🔒 Stop raised: %s", pair),
		Message: fmt.Sprintf("Price: %.4f\nStop: %.4f → %.4f",
			price, oldStop, newStop),
		Pair:      pair,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// SendRebalance reports a core top-up.
func (m *Manager) SendRebalance(asset string, sizeUSDT, coreValue, totalValue float64) error {
	return m.Send(&Notification{
		Type:  NotifyRebalance,
		Title: "⚖️ Core rebalanced",
		Message: fmt.Sprintf("Bought %.2f USDT of %s\nCore: %.2f / Total: %.2f",
			sizeUSDT, asset, coreValue, totalValue),
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// SendInfo sends an informational notification
func (m *Manager) SendInfo(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyInfo,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// WireBus subscribes the manager to the event bus so breaker and error events
// reach the operator even when the publishing code does not hold a manager.
func (m *Manager) WireBus(bus *events.EventBus) {
	bus.Subscribe(events.EventBreakerTripped, func(e events.Event) {
		reason, _ := e.Data["reason"].(string)
		pnl, _ := e.Data["daily_pnl"].(float64)
		balance, _ := e.Data["balance"].(float64)
		trades, _ := e.Data["trades"].(int)
		m.SendBreakerAlert(reason, pnl, balance, trades)
	})
	bus.Subscribe(events.EventBreakerReset, func(e events.Event) {
		trigger, _ := e.Data["trigger"].(string)
		m.SendInfo("✅ Breaker reset", fmt.Sprintf("Trigger: %s", trigger))
	})
	bus.Subscribe(events.EventError, func(e events.Event) {
		source, _ := e.Data["source"].(string)
		message, _ := e.Data["message"].(string)
		m.SendError(source, message)
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	apiBase  string
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
	APIBase  string // Override for tests; defaults to api.telegram.org
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	apiBase := config.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		apiBase:  apiBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	if notification.Type == NotifyError || notification.Type == NotifyBreaker {
		color = 0xFF0000 // Red
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Pair != "" {
		fields := []map[string]interface{}{
			{"name": "Pair", "value": notification.Pair, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
