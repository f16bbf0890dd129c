package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config is the process configuration. The risk/confidence/technicals/allocation
// subset is remotely mutable through ApplyUpdate and is guarded by mu; everything
// else is read-only after Load.
type Config struct {
	Exchange     ExchangeConfig     `json:"exchange"`
	Risk         RiskConfig         `json:"risk"`
	Confidence   ConfidenceConfig   `json:"confidence"`
	Technicals   TechnicalsConfig   `json:"technicals"`
	Allocation   AllocationConfig   `json:"allocation"`
	Engine       EngineConfig       `json:"engine"`
	AI           AIConfig           `json:"ai"`
	News         NewsConfig         `json:"news"`
	Notification NotificationConfig `json:"notification"`
	Server       ServerConfig       `json:"server"`
	Auth         AuthConfig         `json:"auth"`
	Vault        VaultConfig        `json:"vault"`
	Redis        RedisConfig        `json:"redis"`
	Database     DatabaseConfig     `json:"database"`
	Logging      LoggingConfig      `json:"logging"`

	mu sync.RWMutex
}

// ExchangeConfig holds the exchange binding configuration.
type ExchangeConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"` // Use the in-memory mock gateway instead of the live API
}

// RiskConfig holds the capital-preservation parameters. Fractions are 0..1
// values, not percentages.
type RiskConfig struct {
	MaxRiskPerTrade        float64 `json:"max_risk_per_trade"`        // Fraction of total capital risked per trade
	MaxSatelliteExposure   float64 `json:"max_satellite_exposure"`    // Cap on one trade as a fraction of the satellite bucket
	DailyLossLimit         float64 `json:"daily_loss_limit"`          // Daily loss fraction that trips the breaker
	MaxTradesPerDay        int     `json:"max_trades_per_day"`        // Trade-count breaker threshold
	MinOrderSizeUSDT       float64 `json:"min_order_size_usdt"`       // Exchange-imposed minimum order value
	MaxOpenSatelliteTrades int     `json:"max_open_satellite_trades"` // Cap on concurrently open satellite positions
	MinBalanceToTrade      float64 `json:"min_balance_to_trade"`      // Minimum-balance breaker threshold
	MinSentiment           float64 `json:"min_sentiment"`             // Global market gauge floor (0-100)
	DefaultStopLoss        float64 `json:"default_stop_loss"`         // Stop distance as a fraction of entry
	DefaultTakeProfit      float64 `json:"default_take_profit"`       // Target distance as a fraction of entry
}

// ConfidenceConfig holds the analysis-confidence thresholds (0-100 scale).
type ConfidenceConfig struct {
	MinToTrade    float64 `json:"min_to_trade"`
	HighThreshold float64 `json:"high_threshold"`
}

// TechnicalsConfig holds the candidate-filter thresholds.
type TechnicalsConfig struct {
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	MinVolumeUSDT float64 `json:"min_volume_usdt"`
}

// AllocationConfig holds the core/satellite split. Core and Satellite must sum
// to 1.0; ApplyUpdate keeps them complementary.
type AllocationConfig struct {
	Core       float64  `json:"core"`
	Satellite  float64  `json:"satellite"`
	CoreAssets []string `json:"core_assets"`
}

// EngineConfig holds the decision-loop cadences and pair universe.
type EngineConfig struct {
	Pairs                 []string `json:"pairs"`
	ScanIntervalSecs      int      `json:"scan_interval_secs"`
	TrailIntervalSecs     int      `json:"trail_interval_secs"`
	RebalanceIntervalSecs int      `json:"rebalance_interval_secs"`
	ShortInterval         string   `json:"short_interval"`
	ConfirmInterval       string   `json:"confirm_interval"`
	CandleLimit           int      `json:"candle_limit"`
}

// AIConfig holds LLM provider configuration for news analysis.
type AIConfig struct {
	Enabled     bool    `json:"enabled"`
	Provider    string  `json:"provider"` // "claude", "openai", or "deepseek"
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// NewsConfig holds the headline feed configuration.
type NewsConfig struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	MaxItems int    `json:"max_items"`
}

// NotificationConfig holds alert routing configuration.
type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

// TelegramConfig holds Telegram bot settings, shared by the notifier and the
// inbound chat command listener.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Commands bool   `json:"commands"` // Enable the inbound command listener
}

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// ServerConfig holds the admin HTTP surface configuration.
type ServerConfig struct {
	Enabled        bool   `json:"enabled"`
	Port           int    `json:"port"`
	Host           string `json:"host"`
	AllowedOrigins string `json:"allowed_origins"`
}

// AuthConfig holds admin authentication configuration.
type AuthConfig struct {
	JWTSecret           string        `json:"jwt_secret"`
	AdminPasswordHash   string        `json:"admin_password_hash"` // bcrypt hash
	AccessTokenDuration time.Duration `json:"access_token_duration"`
}

// VaultConfig holds HashiCorp Vault configuration for exchange API keys.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

// RedisConfig holds Redis configuration for the verdict cache and order tracker.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig holds PostgreSQL configuration for the daily-stats store.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// LoggingConfig holds structured-logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`  // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

// Default returns a Config with conservative defaults for a small account.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			BaseURL: "https://api.binance.com",
		},
		Risk: RiskConfig{
			MaxRiskPerTrade:        0.01,
			MaxSatelliteExposure:   0.25,
			DailyLossLimit:         0.05,
			MaxTradesPerDay:        5,
			MinOrderSizeUSDT:       10,
			MaxOpenSatelliteTrades: 3,
			MinBalanceToTrade:      50,
			MinSentiment:           30,
			DefaultStopLoss:        0.02,
			DefaultTakeProfit:      0.04,
		},
		Confidence: ConfidenceConfig{
			MinToTrade:    60,
			HighThreshold: 85,
		},
		Technicals: TechnicalsConfig{
			RSIOversold:   30,
			RSIOverbought: 70,
			MinVolumeUSDT: 100000,
		},
		Allocation: AllocationConfig{
			Core:       0.7,
			Satellite:  0.3,
			CoreAssets: []string{"BTC", "ETH"},
		},
		Engine: EngineConfig{
			Pairs:                 []string{"SOLUSDT", "LINKUSDT", "AVAXUSDT"},
			ScanIntervalSecs:      900,
			TrailIntervalSecs:     120,
			RebalanceIntervalSecs: 3600,
			ShortInterval:         "15m",
			ConfirmInterval:       "1h",
			CandleLimit:           50,
		},
		AI: AIConfig{
			Enabled:     true,
			Provider:    "claude",
			Model:       "claude-3-haiku-20240307",
			MaxTokens:   1024,
			Temperature: 0.3,
		},
		News: NewsConfig{
			BaseURL:  "https://cryptopanic.com/api/v1",
			MaxItems: 5,
		},
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: "*",
		},
		Auth: AuthConfig{
			AccessTokenDuration: 15 * time.Minute,
		},
		Vault: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "satellite-bot/api-keys",
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "satellite_bot",
			Database: "satellite_bot",
			SSLMode:  "disable",
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

// Load reads config.json if present, then applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Exchange.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.Exchange.APIKey)
	cfg.Exchange.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.Exchange.SecretKey)
	cfg.Exchange.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.Exchange.BaseURL)
	cfg.Exchange.TestNet = getEnvBool("EXCHANGE_TESTNET", cfg.Exchange.TestNet)
	cfg.Exchange.MockMode = getEnvBool("MOCK_MODE", cfg.Exchange.MockMode)

	cfg.AI.Enabled = getEnvBool("AI_ENABLED", cfg.AI.Enabled)
	cfg.AI.Provider = getEnvOrDefault("AI_PROVIDER", cfg.AI.Provider)
	cfg.AI.APIKey = getEnvOrDefault("AI_API_KEY", cfg.AI.APIKey)
	cfg.AI.Model = getEnvOrDefault("AI_MODEL", cfg.AI.Model)

	cfg.News.APIKey = getEnvOrDefault("NEWS_API_KEY", cfg.News.APIKey)

	cfg.Notification.Enabled = getEnvBool("NOTIFICATIONS_ENABLED", cfg.Notification.Enabled)
	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
	cfg.Notification.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notification.Discord.WebhookURL)

	cfg.Server.Enabled = getEnvBool("SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", cfg.Auth.AdminPasswordHash)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
}

func (c *Config) validate() error {
	if sum := c.Allocation.Core + c.Allocation.Satellite; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("allocation core+satellite must sum to 1.0, got %.4f", sum)
	}
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade > 1 {
		return fmt.Errorf("risk.maxRiskPerTrade must be in (0,1], got %v", c.Risk.MaxRiskPerTrade)
	}
	if c.Risk.MaxTradesPerDay < 1 {
		return fmt.Errorf("risk.maxTradesPerDay must be >= 1, got %d", c.Risk.MaxTradesPerDay)
	}
	if c.Confidence.MinToTrade > c.Confidence.HighThreshold {
		return fmt.Errorf("confidence.minToTrade must not exceed confidence.highThreshold")
	}
	return nil
}

// Params is a point-in-time copy of the remotely mutable parameter set.
type Params struct {
	Risk       RiskConfig
	Confidence ConfidenceConfig
	Technicals TechnicalsConfig
	Allocation AllocationConfig
}

// Snapshot returns a consistent copy of the mutable parameters. Callers read
// one snapshot per decision cycle so a mid-cycle update cannot split a cycle
// across two parameter sets.
func (c *Config) Snapshot() Params {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := Params{
		Risk:       c.Risk,
		Confidence: c.Confidence,
		Technicals: c.Technicals,
		Allocation: c.Allocation,
	}
	p.Allocation.CoreAssets = append([]string(nil), c.Allocation.CoreAssets...)
	return p
}

// MutableKeys lists the parameter keys ApplyUpdate accepts, for the control
// surfaces to enumerate.
func MutableKeys() []string {
	return []string{
		"risk.maxRiskPerTrade",
		"risk.maxSatelliteExposure",
		"risk.dailyLossLimit",
		"risk.maxTradesPerDay",
		"risk.minOrderSizeUsdt",
		"risk.maxOpenSatelliteTrades",
		"risk.minBalanceToTrade",
		"risk.minSentiment",
		"risk.defaultStopLoss",
		"risk.defaultTakeProfit",
		"confidence.minToTrade",
		"confidence.highThreshold",
		"technicals.rsiOversold",
		"technicals.rsiOverbought",
		"technicals.minVolumeUsdt",
		"allocation.core",
		"allocation.satellite",
	}
}

// ApplyUpdate mutates a single enumerated parameter. Unknown keys and
// out-of-domain values are rejected with an error; nothing is coerced.
// Setting allocation.core adjusts allocation.satellite so the split keeps
// summing to 1.0, and vice versa.
func (c *Config) ApplyUpdate(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch key {
	case "risk.maxRiskPerTrade":
		return setFraction(&c.Risk.MaxRiskPerTrade, key, value)
	case "risk.maxSatelliteExposure":
		return setFraction(&c.Risk.MaxSatelliteExposure, key, value)
	case "risk.dailyLossLimit":
		return setFraction(&c.Risk.DailyLossLimit, key, value)
	case "risk.maxTradesPerDay":
		return setCount(&c.Risk.MaxTradesPerDay, key, value)
	case "risk.minOrderSizeUsdt":
		return setPositive(&c.Risk.MinOrderSizeUSDT, key, value)
	case "risk.maxOpenSatelliteTrades":
		return setCount(&c.Risk.MaxOpenSatelliteTrades, key, value)
	case "risk.minBalanceToTrade":
		return setNonNegative(&c.Risk.MinBalanceToTrade, key, value)
	case "risk.minSentiment":
		return setScore(&c.Risk.MinSentiment, key, value)
	case "risk.defaultStopLoss":
		return setFraction(&c.Risk.DefaultStopLoss, key, value)
	case "risk.defaultTakeProfit":
		return setFraction(&c.Risk.DefaultTakeProfit, key, value)
	case "confidence.minToTrade":
		return setScore(&c.Confidence.MinToTrade, key, value)
	case "confidence.highThreshold":
		return setScore(&c.Confidence.HighThreshold, key, value)
	case "technicals.rsiOversold":
		v, err := parseInRange(key, value, 0, 50)
		if err != nil {
			return err
		}
		c.Technicals.RSIOversold = v
		return nil
	case "technicals.rsiOverbought":
		v, err := parseInRange(key, value, 50, 100)
		if err != nil {
			return err
		}
		c.Technicals.RSIOverbought = v
		return nil
	case "technicals.minVolumeUsdt":
		return setNonNegative(&c.Technicals.MinVolumeUSDT, key, value)
	case "allocation.core":
		v, err := parseInRange(key, value, 0, 1)
		if err != nil {
			return err
		}
		c.Allocation.Core = v
		c.Allocation.Satellite = complement(v)
		return nil
	case "allocation.satellite":
		v, err := parseInRange(key, value, 0, 1)
		if err != nil {
			return err
		}
		c.Allocation.Satellite = v
		c.Allocation.Core = complement(v)
		return nil
	default:
		return fmt.Errorf("unknown parameter %q", key)
	}
}

// complement rounds 1-v so updates like core=0.8 leave the satellite share
// at exactly 0.2 rather than a float64 residue.
func complement(v float64) float64 {
	return math.Round((1-v)*1e9) / 1e9
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid numeric value %q", key, value)
	}
	return v, nil
}

func parseInRange(key, value string, lo, hi float64) (float64, error) {
	v, err := parseFloat(key, value)
	if err != nil {
		return 0, err
	}
	if v <= lo || v >= hi {
		return 0, fmt.Errorf("%s: value %v outside (%v,%v)", key, v, lo, hi)
	}
	return v, nil
}

func setFraction(dst *float64, key, value string) error {
	v, err := parseFloat(key, value)
	if err != nil {
		return err
	}
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s: value %v outside (0,1]", key, v)
	}
	*dst = v
	return nil
}

func setScore(dst *float64, key, value string) error {
	v, err := parseFloat(key, value)
	if err != nil {
		return err
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("%s: value %v outside [0,100]", key, v)
	}
	*dst = v
	return nil
}

func setPositive(dst *float64, key, value string) error {
	v, err := parseFloat(key, value)
	if err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("%s: value %v must be positive", key, v)
	}
	*dst = v
	return nil
}

func setNonNegative(dst *float64, key, value string) error {
	v, err := parseFloat(key, value)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%s: value %v must not be negative", key, v)
	}
	*dst = v
	return nil
}

func setCount(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer value %q", key, value)
	}
	if v < 1 {
		return fmt.Errorf("%s: value %d must be >= 1", key, v)
	}
	*dst = v
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
