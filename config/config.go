package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"coliseum/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	ListenAddr    string // Address for the webhook/API listener
	WebhookSecret string // Shared secret for media webhook signatures

	// Media transport configuration
	AppDataDomain string // Application-data domain; recording URLs must never point here

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated)

	// Battle settings
	BattleDuration   time.Duration // Fixed battle length
	BattleWinPayout  int64         // Bonus coins credited to the winner
	RewardMultiplier float64       // Coin multiplier granted to the winner
	RewardDuration   time.Duration // How long the multiplier reward lasts

	// Live show settings
	DefaultEntryFee       int64 // Paid coins charged on waitlist join
	MinPerformanceSeconds int   // Minimum duration for a winning performance
	ShowWinPayout         int64 // Bonus coins credited for a winning performance

	// Moderation settings
	CommissionRate float64 // Officer commission as a fraction of the fee
	CoinUSDRate    float64 // USD value of one coin

	// Sweeper settings
	SweepInterval time.Duration // How often expired battles are force-completed

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		ListenAddr:    getEnvWithDefault("LISTEN_ADDR", ":8080"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		// Media transport
		AppDataDomain: os.Getenv("APP_DATA_DOMAIN"),

		// NATS
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		// Battle defaults
		BattleDuration:   2 * time.Minute,
		BattleWinPayout:  500,
		RewardMultiplier: 1.10,
		RewardDuration:   24 * time.Hour,

		// Live show defaults
		DefaultEntryFee:       100,
		MinPerformanceSeconds: 60,
		ShowWinPayout:         1000,

		// Moderation defaults
		CommissionRate: 0.10,
		CoinUSDRate:    0.01,

		// Sweeper default
		SweepInterval: 30 * time.Second,

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if fee := os.Getenv("SHOW_ENTRY_FEE"); fee != "" {
		if parsedFee, err := strconv.ParseInt(fee, 10, 64); err == nil {
			config.DefaultEntryFee = parsedFee
		}
	}
	if payout := os.Getenv("SHOW_WIN_PAYOUT"); payout != "" {
		if parsedPayout, err := strconv.ParseInt(payout, 10, 64); err == nil {
			config.ShowWinPayout = parsedPayout
		}
	}
	if payout := os.Getenv("BATTLE_WIN_PAYOUT"); payout != "" {
		if parsedPayout, err := strconv.ParseInt(payout, 10, 64); err == nil {
			config.BattleWinPayout = parsedPayout
		}
	}
	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil {
			config.SweepInterval = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:           "test",
		BattleDuration:        2 * time.Minute,
		BattleWinPayout:       500,
		RewardMultiplier:      1.10,
		RewardDuration:        24 * time.Hour,
		DefaultEntryFee:       100,
		MinPerformanceSeconds: 60,
		ShowWinPayout:         1000,
		CommissionRate:        0.10,
		CoinUSDRate:           0.01,
		SweepInterval:         30 * time.Second,
	}
}
