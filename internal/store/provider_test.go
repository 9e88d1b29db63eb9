package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/config"
	"github.com/jensholdgaard/zoo-auction/internal/store"

	// Import drivers so their init() functions register them.
	_ "github.com/jensholdgaard/zoo-auction/internal/store/memstore"
	_ "github.com/jensholdgaard/zoo-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/zoo-auction/internal/store/sqlite"
)

// fakeDriver is a store.Driver that always succeeds without connecting to a DB.
func fakeDriver(_ context.Context, _ config.JournalConfig, _ clock.Clock) (*store.Repositories, error) {
	return &store.Repositories{}, nil
}

func TestOpen(t *testing.T) {
	// Register a test driver.
	store.Register("test-driver", fakeDriver)

	tests := []struct {
		name    string
		cfg     config.JournalConfig
		wantErr bool
	}{
		{
			name: "registered driver succeeds",
			cfg:  config.JournalConfig{Driver: "test-driver"},
		},
		{
			name: "memory driver succeeds",
			cfg:  config.JournalConfig{Driver: "memory"},
		},
		{
			name: "sqlite driver succeeds",
			cfg:  config.JournalConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "journal.db")},
		},
		{
			name:    "unknown driver fails",
			cfg:     config.JournalConfig{Driver: "nonexistent"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := store.Open(context.Background(), tt.cfg, clock.Real{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(driver=%q) error = %v, wantErr %v", tt.cfg.Driver, err, tt.wantErr)
			}
			if repos != nil {
				if err := repos.Close(); err != nil {
					t.Errorf("Close: %v", err)
				}
			}
		})
	}
}

func TestOpen_PostgresUnavailable(t *testing.T) {
	// The driver is registered but has nothing to connect to, so the error
	// must come from connecting rather than from driver lookup.
	cfg := config.JournalConfig{Driver: "postgres", Host: "127.0.0.1", Port: 1, SSLMode: "disable"}
	_, err := store.Open(context.Background(), cfg, clock.Real{})
	if err == nil {
		t.Fatal("expected error (no DB running), got nil")
	}
	if strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("expected connection error, got unknown driver error: %v", err)
	}
}
