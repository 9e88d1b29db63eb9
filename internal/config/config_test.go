package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/config"
	"github.com/jensholdgaard/zoo-auction/internal/scoring"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
game:
  stake: 150
  auto_advance: true
  tier_pause: 5s
auction:
  round_durations: [60s, 45s, 30s, 20s]
  snipe_threshold: 20s
  grace_window: 15s
  unsold_policy: discard
scoring:
  stacking: additive
journal:
  driver: postgres
  host: "db.example.com"
  port: 5433
  user: "zoo"
  password: "secret"
  dbname: "zoo"
  sslmode: "require"
server:
  port: 9090
  admin_token: "s3cret"
telemetry:
  service_name: "my-zoo"
  otlp_endpoint: "localhost:4318"
discord:
  token: "test-token"
  guild_id: "123456"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Game.Stake != 150 {
					t.Errorf("got stake %d, want %d", cfg.Game.Stake, 150)
				}
				if !cfg.Game.AutoAdvance || cfg.Game.TierPause != 5*time.Second {
					t.Errorf("got auto advance %v after %s", cfg.Game.AutoAdvance, cfg.Game.TierPause)
				}
				if cfg.Journal.Port != 5433 {
					t.Errorf("got journal port %d, want %d", cfg.Journal.Port, 5433)
				}
				if cfg.Server.AdminToken != "s3cret" {
					t.Errorf("got admin token %q", cfg.Server.AdminToken)
				}
				if cfg.Telemetry.ServiceName != "my-zoo" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-zoo")
				}

				rules, err := cfg.AuctionRules()
				if err != nil {
					t.Fatalf("AuctionRules: %v", err)
				}
				if rules.Duration(1) != time.Minute || rules.Duration(4) != 20*time.Second {
					t.Errorf("got durations %v", rules.RoundDurations)
				}
				if rules.UnsoldPolicy != auction.UnsoldDiscard {
					t.Errorf("got unsold policy %q", rules.UnsoldPolicy)
				}

				sr, err := cfg.ScoringRules()
				if err != nil {
					t.Fatalf("ScoringRules: %v", err)
				}
				if sr.Stacking != scoring.StackAdditive {
					t.Errorf("got stacking %q", sr.Stacking)
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
discord:
  token: "tok"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Journal.Driver != "memory" {
					t.Errorf("got driver %q, want %q", cfg.Journal.Driver, "memory")
				}
				if cfg.Game.Stake != 100 {
					t.Errorf("got stake %d, want %d", cfg.Game.Stake, 100)
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				rules, err := cfg.AuctionRules()
				if err != nil {
					t.Fatalf("AuctionRules: %v", err)
				}
				if rules.Duration(1) != 30*time.Second || rules.SnipeThreshold != 10*time.Second {
					t.Errorf("got rules %+v", rules)
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "sqlite driver accepted",
			yaml: `
journal:
  driver: sqlite
  path: /tmp/zoo.db
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Journal.Driver != "sqlite" || cfg.Journal.Path != "/tmp/zoo.db" {
					t.Errorf("got journal %+v", cfg.Journal)
				}
			},
		},
		{
			name: "invalid driver rejected",
			yaml: `
journal:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "wrong number of round durations",
			yaml: `
auction:
  round_durations: [30s, 20s]
`,
			wantErr: true,
		},
		{
			name: "grace window longer than snipe threshold",
			yaml: `
auction:
  snipe_threshold: 15s
  grace_window: 20s
`,
			wantErr: true,
		},
		{
			name: "unknown unsold policy",
			yaml: `
auction:
  unsold_policy: burn
`,
			wantErr: true,
		},
		{
			name: "bad multiplier",
			yaml: `
scoring:
  zoo_multiplier: "lots"
`,
			wantErr: true,
		},
		{
			name: "non-positive stake",
			yaml: `
game:
  stake: 0
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
game:
  stake: 150
journal:
  driver: memory
`)
	t.Setenv("ZOO_GAME_STAKE", "250")
	t.Setenv("ZOO_JOURNAL_DRIVER", "sqlite")
	t.Setenv("ZOO_SERVER_ADMIN_TOKEN", "from-env")
	t.Setenv("ZOO_AUCTION_ROUND_DURATIONS", "10s,10s,10s,5s")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.Stake != 250 {
		t.Errorf("got stake %d, want %d", cfg.Game.Stake, 250)
	}
	if cfg.Journal.Driver != "sqlite" {
		t.Errorf("got driver %q, want %q", cfg.Journal.Driver, "sqlite")
	}
	if cfg.Server.AdminToken != "from-env" {
		t.Errorf("got admin token %q", cfg.Server.AdminToken)
	}
	if got := cfg.Auction.RoundDurations[3]; got != 5*time.Second {
		t.Errorf("got tier 4 duration %s, want 5s", got)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.ServiceName != "zoo-auction" {
		t.Errorf("got service name %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestJournalConfig_DSN(t *testing.T) {
	cfg := config.JournalConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
