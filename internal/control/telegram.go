// Package control turns a Telegram chat into a remote control for the bot.
// A long-poll loop reads commands from the configured operator chat and acts
// on the same risk manager and config the decision loop uses. The listener
// owns no trading state of its own.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"satellite-trading-bot/config"
	"satellite-trading-bot/internal/events"
	"satellite-trading-bot/internal/logging"
	"satellite-trading-bot/internal/orders"
	"satellite-trading-bot/internal/risk"
)

const longPollTimeoutSecs = 30

// Listener long-polls the Telegram getUpdates API and executes operator
// commands: /status, /pause, /resume, /set <key> <value>.
type Listener struct {
	botToken string
	chatID   string
	apiBase  string

	cfg     *config.Config
	riskMgr *risk.Manager
	tracker *orders.GroupTracker
	bus     *events.EventBus

	httpClient *http.Client
	log        *logging.Logger
	offset     int64
}

// ListenerConfig configures the command listener.
type ListenerConfig struct {
	BotToken string
	ChatID   string
	APIBase  string // Override for tests; defaults to api.telegram.org
}

// NewListener creates a Telegram command listener.
func NewListener(lc ListenerConfig, cfg *config.Config, riskMgr *risk.Manager, tracker *orders.GroupTracker, bus *events.EventBus) *Listener {
	apiBase := lc.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Listener{
		botToken: lc.BotToken,
		chatID:   lc.ChatID,
		apiBase:  apiBase,
		cfg:      cfg,
		riskMgr:  riskMgr,
		tracker:  tracker,
		bus:      bus,
		// Client timeout sits above the long-poll window so the server
		// closes the poll, not the client.
		httpClient: &http.Client{Timeout: (longPollTimeoutSecs + 10) * time.Second},
		log:        logging.WithComponent("control"),
	}
}

// IsConfigured reports whether the listener has credentials to run.
func (l *Listener) IsConfigured() bool {
	return l.botToken != "" && l.chatID != ""
}

// Run long-polls for commands until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	if !l.IsConfigured() {
		l.log.Info("Telegram command listener not configured, skipping")
		return
	}

	l.log.Info("Telegram command listener started", "chat_id", l.chatID)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("Telegram command listener stopped")
			return
		default:
		}

		updates, err := l.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("Telegram poll failed", "error", err)
			select {
			case <-time.After(10 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, u := range updates {
			l.offset = u.UpdateID + 1
			l.handleUpdate(ctx, u)
		}
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

func (l *Listener) poll(ctx context.Context) ([]update, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d",
		l.apiBase, l.botToken, l.offset, longPollTimeoutSecs)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates returned status %d", resp.StatusCode)
	}

	var parsed updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false")
	}
	return parsed.Result, nil
}

func (l *Listener) handleUpdate(ctx context.Context, u update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}

	// Only the configured operator chat may issue commands.
	chatID := fmt.Sprintf("%d", u.Message.Chat.ID)
	if chatID != l.chatID {
		l.log.Warn("Command from unauthorized chat ignored", "chat_id", chatID)
		return
	}

	reply := l.Execute(u.Message.Text)
	if reply == "" {
		return
	}
	if err := l.sendMessage(ctx, reply); err != nil {
		l.log.Warn("Failed to send command reply", "error", err)
	}
}

// Execute parses and runs a single command line, returning the reply text.
// Split out from the poll loop so it can be driven directly.
func (l *Listener) Execute(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return ""
	}

	cmd := strings.ToLower(fields[0])
	// Telegram group commands arrive as /cmd@BotName.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/status":
		return l.statusReply()

	case "/pause":
		if err := l.riskMgr.Pause(); err != nil {
			return fmt.Sprintf("Pause failed: %v", err)
		}
		l.log.Warn("Trading paused via Telegram")
		return "Trading paused. Use /resume to re-enable."

	case "/resume":
		if err := l.riskMgr.ResetBreaker(); err != nil {
			return fmt.Sprintf("Resume failed: %v", err)
		}
		l.log.Warn("Trading resumed via Telegram")
		return "Trading resumed."

	case "/set":
		if len(fields) != 3 {
			return "Usage: /set <key> <value>\nKeys: " + strings.Join(config.MutableKeys(), ", ")
		}
		key, value := fields[1], fields[2]
		if err := l.cfg.ApplyUpdate(key, value); err != nil {
			return fmt.Sprintf("Rejected: %v", err)
		}
		l.log.Info("Config updated via Telegram", "key", key, "value", value)
		if l.bus != nil {
			l.bus.PublishConfigUpdated(key, value, "telegram")
		}
		return fmt.Sprintf("Updated %s = %s", key, value)

	case "/help", "/start":
		return "Commands:\n/status - ledger and positions\n/pause - halt trading\n/resume - clear breaker\n/set <key> <value> - tune a parameter"

	default:
		return fmt.Sprintf("Unknown command %s. Try /help.", cmd)
	}
}

func (l *Listener) statusReply() string {
	stats := l.riskMgr.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", stats.Date)
	fmt.Fprintf(&b, "Balance: %.2f USDT (PnL %+.2f)\n", stats.CurrentBalance, stats.DailyPnL)
	fmt.Fprintf(&b, "Trades today: %d\n", stats.TradesCount)
	if stats.IsHalted {
		fmt.Fprintf(&b, "HALTED: %s\n", stats.HaltReason)
	} else {
		b.WriteString("Trading: active\n")
	}
	fmt.Fprintf(&b, "Open positions: %d", l.tracker.Count())
	for _, g := range l.tracker.All() {
		fmt.Fprintf(&b, "\n  %s qty %.6f entry %.4f sl %.4f tp %.4f",
			g.Pair, g.Quantity, g.EntryPrice, g.StopLoss, g.TakeProfit)
	}
	return b.String()
}

func (l *Listener) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", l.apiBase, l.botToken)

	form := url.Values{}
	form.Set("chat_id", l.chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendMessage returned status %d", resp.StatusCode)
	}
	return nil
}
