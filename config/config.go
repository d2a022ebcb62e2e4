package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"herald/database"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken   string  `env:"DISCORD_TOKEN"`
	DiscordGuildID string  `env:"DISCORD_GUILD_ID"`
	StaffRoleIDs   []int64 `env:"STAFF_ROLE_IDS" envSeparator:","`

	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Giveaway configuration
	GiveawayEmoji      string        `env:"GIVEAWAY_EMOJI" envDefault:"🎉"`
	GiveawayPingRoleID int64         `env:"GIVEAWAY_PING_ROLE_ID"`
	ResolveTimeout     time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
	ResolveRetryDelay  time.Duration `env:"RESOLVE_RETRY_DELAY" envDefault:"1m"`
	// Deadlines further in the past than this are logged as probable clock skew
	ClockSkewThreshold time.Duration `env:"CLOCK_SKEW_THRESHOLD" envDefault:"720h"`

	// Verification configuration
	VerifiedRoleIDs []int64 `env:"VERIFIED_ROLE_IDS" envSeparator:","`

	// Sticky message configuration
	StickyChannelIDs []int64 `env:"STICKY_CHANNEL_IDS" envSeparator:","`
	StickyMessage    string  `env:"STICKY_MESSAGE"`

	// Auto-react configuration, custom emojis as name:id
	AutoReactChannelIDs []int64  `env:"AUTO_REACT_CHANNEL_IDS" envSeparator:","`
	AutoReactEmojis     []string `env:"AUTO_REACT_EMOJIS" envSeparator:","`

	// NATS configuration, empty disables lifecycle event fan-out
	NATSServers string `env:"NATS_SERVERS"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelExporterType         string `env:"OTEL_EXPORTER_TYPE" envDefault:"console"`
	OTelOTLPEndpoint         string `env:"OTEL_OTLP_ENDPOINT" envDefault:"otel-collector:4317"`
	OTelServiceName          string `env:"OTEL_SERVICE_NAME" envDefault:"herald"`
	OTelExportIntervalMillis int    `env:"OTEL_EXPORT_INTERVAL_MS" envDefault:"15000"`

	// Health check HTTP port, 0 disables it
	HealthPort int `env:"HEALTH_PORT" envDefault:"3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
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
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsStaffRole reports whether the role grants access to campaign commands
func (c *Config) IsStaffRole(roleID int64) bool {
	for _, id := range c.StaffRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Environment == "test" {
		return nil
	}

	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DiscordGuildID == "" {
		return fmt.Errorf("DISCORD_GUILD_ID is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if len(c.StickyChannelIDs) > 0 && c.StickyMessage == "" {
		return fmt.Errorf("STICKY_MESSAGE is required when STICKY_CHANNEL_IDS is set")
	}
	if len(c.AutoReactChannelIDs) > 0 && len(c.AutoReactEmojis) == 0 {
		return fmt.Errorf("AUTO_REACT_EMOJIS is required when AUTO_REACT_CHANNEL_IDS is set")
	}
	switch c.OTelExporterType {
	case "console", "otlp", "none":
	default:
		return fmt.Errorf("unknown OTEL_EXPORTER_TYPE %q", c.OTelExporterType)
	}

	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		GiveawayEmoji:      "🎉",
		ResolveTimeout:     5 * time.Second,
		ResolveRetryDelay:  time.Minute,
		ClockSkewThreshold: 720 * time.Hour,
		VerifiedRoleIDs:    []int64{700001, 700002},
		StaffRoleIDs:       []int64{900001},
		OTelExporterType:   "none",
		OTelServiceName:    "herald-test",
		LogLevel:           "debug",
		LogFormat:          "text",
	}
}
