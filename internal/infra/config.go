package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerMemory   = "memory"
	LedgerFile     = "file"
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"

	DetectTransactions = "transactions"
	DetectBalance      = "balance"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	TelegramToken         string
	TelegramBaseURL       string
	TelegramChatID        int64
	TelegramTopicID       int64
	TelegramWebhookURL    string
	TelegramWebhookSecret string
	OwnerID               int64
	AuthorizedUsers       []string

	PayPalClientID     string
	PayPalSecret       string
	PayPalMode         string
	PayPalBaseURL      string
	PayPalWebhookID    string
	PayPalCurrency     string
	PayPalDonationLink string

	VaultGoal        decimal.Decimal
	GreetingTimezone string

	PollInterval     time.Duration
	PollInitialDelay time.Duration
	PollLookback     time.Duration
	PollTimeout      time.Duration
	PollDetection    string
	PollSeedFirst    bool

	LedgerBackend  string
	LedgerFilePath string
	LedgerTTL      time.Duration
	RedisURL       string
	DatabaseURL    string

	DispatchQueueSize int
	DispatchWorkers   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TelegramToken:         strings.TrimSpace(os.Getenv("TELEGRAM_API_TOKEN")),
		TelegramBaseURL:       getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		TelegramWebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		AuthorizedUsers:       handles(splitList(os.Getenv("BOT_AUTHORIZED_USERS"))),
		PayPalClientID:        strings.TrimSpace(os.Getenv("PAYPAL_CLIENT_ID")),
		PayPalSecret:          strings.TrimSpace(os.Getenv("PAYPAL_SECRET_KEY")),
		PayPalMode:            strings.ToLower(getEnv("PAYPAL_MODE", "live")),
		PayPalBaseURL:         os.Getenv("PAYPAL_BASE_URL"),
		PayPalWebhookID:       os.Getenv("PAYPAL_WEBHOOK_ID"),
		PayPalCurrency:        strings.ToUpper(getEnv("PAYPAL_CURRENCY", "USD")),
		PayPalDonationLink:    getEnv("PAYPAL_DONATION_LINK", "https://www.paypal.com/ncp/payment/URH8ZBQYMY9KY"),
		GreetingTimezone:      getEnv("GREETING_TIMEZONE", "America/New_York"),
		PollInterval:          time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 60)),
		PollInitialDelay:      time.Second * time.Duration(getEnvInt("POLL_INITIAL_DELAY_SECONDS", 15)),
		PollLookback:          time.Hour * time.Duration(getEnvInt("POLL_LOOKBACK_HOURS", 24)),
		PollTimeout:           time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 30)),
		PollDetection:         strings.ToLower(getEnv("POLL_DETECTION", DetectTransactions)),
		LedgerBackend:         strings.ToLower(getEnv("LEDGER_BACKEND", LedgerMemory)),
		LedgerFilePath:        getEnv("LEDGER_FILE_PATH", "./data/announced.log"),
		LedgerTTL:             time.Hour * time.Duration(getEnvInt("LEDGER_TTL_HOURS", 0)),
		RedisURL:              os.Getenv("REDIS_URL"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DispatchQueueSize:     getEnvInt("DISPATCH_QUEUE_SIZE", 64),
		DispatchWorkers:       getEnvInt("DISPATCH_WORKERS", 2),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_API_TOKEN is required")
	}
	if cfg.PayPalClientID == "" || cfg.PayPalSecret == "" {
		return nil, fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_SECRET_KEY are required")
	}

	var err error
	if cfg.TelegramChatID, err = requireInt64("TELEGRAM_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.OwnerID, err = requireInt64("BOT_OWNER_ID"); err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOPIC_ID")); v != "" {
		if cfg.TelegramTopicID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_TOPIC_ID must be an integer: %w", err)
		}
	}

	cfg.VaultGoal, err = decimal.NewFromString(getEnv("VAULT_GOAL", "1000"))
	if err != nil {
		return nil, fmt.Errorf("VAULT_GOAL must be a number: %w", err)
	}

	switch cfg.PayPalMode {
	case "live", "sandbox":
	default:
		return nil, fmt.Errorf("PAYPAL_MODE must be live or sandbox, got %q", cfg.PayPalMode)
	}

	switch cfg.PollDetection {
	case DetectTransactions, DetectBalance:
	default:
		return nil, fmt.Errorf("POLL_DETECTION must be %s or %s, got %q", DetectTransactions, DetectBalance, cfg.PollDetection)
	}

	switch cfg.LedgerBackend {
	case LedgerMemory, LedgerFile:
	case LedgerRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis ledger")
		}
	case LedgerPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
	default:
		return nil, fmt.Errorf("unsupported LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	cfg.PollSeedFirst = getEnvBool("POLL_SEED_FIRST_TICK", cfg.LedgerBackend == LedgerMemory)

	if cfg.DispatchQueueSize <= 0 {
		cfg.DispatchQueueSize = 1
	}
	if cfg.DispatchWorkers <= 0 {
		cfg.DispatchWorkers = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func requireInt64(key string) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// handles accepts usernames with or without the leading "@".
func handles(names []string) []string {
	for i, n := range names {
		if !strings.HasPrefix(n, "@") {
			names[i] = "@" + n
		}
	}
	return names
}
