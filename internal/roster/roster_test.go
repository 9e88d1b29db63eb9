package roster_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/zoo-auction/internal/roster"
)

var testTP = noop.NewTracerProvider()

var errTaken = errors.New("taken")

// mockGame implements roster.Game for testing.
type mockGame struct {
	gameID  string
	claimed map[string]string
}

func newMockGame() *mockGame {
	return &mockGame{gameID: "g1", claimed: make(map[string]string)}
}

func (m *mockGame) Claim(_ context.Context, participantID, name string) error {
	if _, ok := m.claimed[participantID]; ok {
		return errTaken
	}
	m.claimed[participantID] = name
	return nil
}

func (m *mockGame) GameID() string { return m.gameID }

func TestManager_Claim(t *testing.T) {
	g := newMockGame()
	mgr := roster.NewManager(g, slog.Default(), testTP)
	ctx := context.Background()

	if _, err := mgr.Lookup("u1"); !errors.Is(err, roster.ErrNotClaimed) {
		t.Fatalf("Lookup() before claim error = %v, want ErrNotClaimed", err)
	}

	if err := mgr.Claim(ctx, "u1", "alice", "A1"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	got, err := mgr.Lookup("u1")
	if err != nil || got != "A1" {
		t.Fatalf("Lookup() = %q, %v; want A1", got, err)
	}
	if g.claimed["A1"] != "alice" {
		t.Errorf("game saw name %q, want alice", g.claimed["A1"])
	}

	tests := []struct {
		name    string
		userID  string
		zoo     string
		wantErr error
	}{
		{name: "second zoo for same user", userID: "u1", zoo: "B1", wantErr: roster.ErrAlreadyBound},
		{name: "zoo taken by another user", userID: "u2", zoo: "A1", wantErr: errTaken},
		{name: "another user, free zoo", userID: "u2", zoo: "B1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mgr.Claim(ctx, tt.userID, tt.userID, tt.zoo)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Claim() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestManager_NewGameForgetsBindings(t *testing.T) {
	g := newMockGame()
	mgr := roster.NewManager(g, slog.Default(), testTP)
	ctx := context.Background()

	if err := mgr.Claim(ctx, "u1", "alice", "A1"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	g.gameID = "g2"
	g.claimed = make(map[string]string)

	if _, err := mgr.Lookup("u1"); !errors.Is(err, roster.ErrNotClaimed) {
		t.Fatalf("Lookup() after reset error = %v, want ErrNotClaimed", err)
	}
	if err := mgr.Claim(ctx, "u1", "alice", "C3"); err != nil {
		t.Fatalf("Claim() in new game error = %v", err)
	}
	if got, _ := mgr.Lookup("u1"); got != "C3" {
		t.Errorf("Lookup() = %q, want C3", got)
	}
}
