package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/scoring"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ZOO_"

// Config represents the application configuration.
type Config struct {
	Game      GameConfig      `yaml:"game" envPrefix:"GAME_"`
	Auction   AuctionConfig   `yaml:"auction" envPrefix:"AUCTION_"`
	Scoring   ScoringConfig   `yaml:"scoring" envPrefix:"SCORING_"`
	Journal   JournalConfig   `yaml:"journal" envPrefix:"JOURNAL_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Discord   DiscordConfig   `yaml:"discord" envPrefix:"DISCORD_"`
}

// GameConfig holds game setup and sequencing settings.
type GameConfig struct {
	Stake int `yaml:"stake" env:"STAKE"`
	// AutoInitialize sets up a game at startup so no admin call is needed.
	AutoInitialize bool `yaml:"auto_initialize" env:"AUTO_INITIALIZE"`
	// AutoAdvance starts the next tier TierPause after the previous one ends.
	AutoAdvance bool          `yaml:"auto_advance" env:"AUTO_ADVANCE"`
	TierPause   time.Duration `yaml:"tier_pause" env:"TIER_PAUSE"`
	// NamesFile is an optional CSV with display names for catalog items.
	NamesFile string `yaml:"names_file" env:"NAMES_FILE"`
}

// AuctionConfig holds round timing and bidding rules.
type AuctionConfig struct {
	// RoundDurations lists the round length for tiers 1 to 4.
	RoundDurations []time.Duration `yaml:"round_durations" env:"ROUND_DURATIONS" envSeparator:","`
	SnipeThreshold time.Duration   `yaml:"snipe_threshold" env:"SNIPE_THRESHOLD"`
	GraceWindow    time.Duration   `yaml:"grace_window" env:"GRACE_WINDOW"`
	MinIncrement   int             `yaml:"min_increment" env:"MIN_INCREMENT"`
	AnnounceDelay  time.Duration   `yaml:"announce_delay" env:"ANNOUNCE_DELAY"`
	UnsoldPolicy   string          `yaml:"unsold_policy" env:"UNSOLD_POLICY"`
}

// ScoringConfig overrides parts of the scoring formula.
type ScoringConfig struct {
	ZooMultiplier       string `yaml:"zoo_multiplier" env:"ZOO_MULTIPLIER"`
	ContinentMultiplier string `yaml:"continent_multiplier" env:"CONTINENT_MULTIPLIER"`
	Stacking            string `yaml:"stacking" env:"STACKING"`
	IncludeFunds        bool   `yaml:"include_funds" env:"INCLUDE_FUNDS"`
}

// JournalConfig holds settings for the game journal.
type JournalConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // "memory", "postgres" or "sqlite"
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"DBNAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path" env:"PATH"`
}

// DSN returns the Postgres connection string.
func (j JournalConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		j.Host, j.Port, j.User, j.Password, j.DBName, j.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// AdminToken guards the admin endpoints. Empty disables them.
	AdminToken string `yaml:"admin_token" env:"ADMIN_TOKEN"`
	// SubscriberBuffer is the snapshot queue length per stream client.
	SubscriberBuffer int `yaml:"subscriber_buffer" env:"SUBSCRIBER_BUFFER"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version" env:"SERVICE_VERSION"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Insecure       bool   `yaml:"insecure" env:"INSECURE"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// DiscordConfig holds Discord bot settings. The bot is disabled without a
// token.
type DiscordConfig struct {
	Token   string `yaml:"token" env:"TOKEN"`
	GuildID string `yaml:"guild_id" env:"GUILD_ID"`
	// AdminRoleID is the guild role allowed to run admin commands.
	AdminRoleID string `yaml:"admin_role_id" env:"ADMIN_ROLE_ID"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	rules := auction.DefaultRules()
	durations := make([]time.Duration, 0, catalog.MaxTier)
	for t := catalog.MinTier; t <= catalog.MaxTier; t++ {
		durations = append(durations, rules.Duration(t))
	}

	return &Config{
		Game: GameConfig{
			Stake:          100,
			AutoInitialize: true,
			TierPause:      10 * time.Second,
		},
		Auction: AuctionConfig{
			RoundDurations: durations,
			SnipeThreshold: rules.SnipeThreshold,
			GraceWindow:    rules.GraceWindow,
			MinIncrement:   rules.MinIncrement,
			AnnounceDelay:  rules.AnnounceDelay,
			UnsoldPolicy:   string(rules.UnsoldPolicy),
		},
		Scoring: ScoringConfig{
			ZooMultiplier:       "1.25",
			ContinentMultiplier: "1.1",
			Stacking:            string(scoring.StackMax),
			IncludeFunds:        true,
		},
		Journal: JournalConfig{
			Driver:  "memory",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "zoo-auction.db",
		},
		Server: ServerConfig{
			Port:             8080,
			ShutdownTimeout:  15 * time.Second,
			SubscriberBuffer: 16,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "zoo-auction",
			ServiceVersion: "0.1.0",
			LogLevel:       "info",
		},
	}
}

// Load reads a YAML configuration file from the given path, then applies
// ZOO_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// AuctionRules converts the auction section into engine rules.
func (c *Config) AuctionRules() (auction.Rules, error) {
	a := c.Auction
	if len(a.RoundDurations) != int(catalog.MaxTier) {
		return auction.Rules{}, fmt.Errorf("round_durations needs %d entries, got %d", catalog.MaxTier, len(a.RoundDurations))
	}
	rules := auction.Rules{
		RoundDurations: make(map[catalog.Tier]time.Duration, len(a.RoundDurations)),
		SnipeThreshold: a.SnipeThreshold,
		GraceWindow:    a.GraceWindow,
		MinIncrement:   a.MinIncrement,
		AnnounceDelay:  a.AnnounceDelay,
		UnsoldPolicy:   auction.UnsoldPolicy(a.UnsoldPolicy),
	}
	for i, d := range a.RoundDurations {
		rules.RoundDurations[catalog.Tier(i+1)] = d
	}
	return rules, rules.Validate()
}

// ScoringRules converts the scoring section into scoring rules, keeping the
// defaults for everything the section does not cover.
func (c *Config) ScoringRules() (scoring.Rules, error) {
	rules := scoring.DefaultRules()
	s := c.Scoring

	zoo, err := decimal.NewFromString(s.ZooMultiplier)
	if err != nil {
		return rules, fmt.Errorf("parsing zoo_multiplier: %w", err)
	}
	continent, err := decimal.NewFromString(s.ContinentMultiplier)
	if err != nil {
		return rules, fmt.Errorf("parsing continent_multiplier: %w", err)
	}
	rules.ZooMultiplier = zoo
	rules.ContinentMultiplier = continent
	rules.Stacking = scoring.Stacking(s.Stacking)
	rules.IncludeFunds = s.IncludeFunds
	return rules, rules.Validate()
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Journal.Driver {
	case "memory", "postgres", "sqlite":
		// valid
	default:
		return fmt.Errorf("unsupported journal driver %q: must be \"memory\", \"postgres\" or \"sqlite\"", c.Journal.Driver)
	}
	if c.Game.Stake <= 0 {
		return fmt.Errorf("game stake must be positive, got %d", c.Game.Stake)
	}
	if c.Game.TierPause < 0 {
		return fmt.Errorf("tier_pause must not be negative")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Telemetry.LogLevel)); err != nil {
		return fmt.Errorf("telemetry log_level: %w", err)
	}
	if c.Server.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be at least 1")
	}
	if _, err := c.AuctionRules(); err != nil {
		return fmt.Errorf("auction: %w", err)
	}
	if _, err := c.ScoringRules(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}
