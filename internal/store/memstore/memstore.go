// Package memstore provides the default store.Driver, keeping the journal in
// process memory. Everything is lost on restart.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/config"
	"github.com/jensholdgaard/zoo-auction/internal/event"
	"github.com/jensholdgaard/zoo-auction/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

func openMemory(_ context.Context, _ config.JournalConfig, clk clock.Clock) (*store.Repositories, error) {
	return New(clk), nil
}

// New returns Repositories backed by memory.
func New(clk clock.Clock) *store.Repositories {
	return &store.Repositories{
		Events:    NewEventStore(clk),
		Rounds:    NewRoundRepo(clk),
		Standings: NewStandingsRepo(),
		Ping:      func(context.Context) error { return nil },
	}
}

// EventStore implements event.Store in memory.
type EventStore struct {
	mu     sync.RWMutex
	events []event.Event
	clock  clock.Clock
}

// NewEventStore returns an empty EventStore.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		for _, existing := range s.events {
			if existing.AggregateID == e.AggregateID && existing.Version == e.Version {
				return fmt.Errorf("inserting event (aggregate=%s, version=%d): duplicate version", e.AggregateID, e.Version)
			}
		}
	}
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now()
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func (s *EventStore) LoadByType(_ context.Context, gameID string, eventType event.Type) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, e := range s.events {
		if e.GameID == gameID && e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}

// RoundRepo implements store.RoundRepository in memory.
type RoundRepo struct {
	mu     sync.RWMutex
	rounds []*store.Round
	clock  clock.Clock
}

// NewRoundRepo returns an empty RoundRepo.
func NewRoundRepo(clk clock.Clock) *RoundRepo {
	return &RoundRepo{clock: clk}
}

func (r *RoundRepo) Create(_ context.Context, rd *store.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	if rd.StartedAt.IsZero() {
		rd.StartedAt = r.clock.Now()
	}
	rd.Status = store.RoundOpen
	c := *rd
	r.rounds = append(r.rounds, &c)
	return nil
}

func (r *RoundRepo) Close(_ context.Context, id, winnerID string, amount int, stopped bool) error {
	return r.finish(id, func(rd *store.Round) {
		rd.Status = store.RoundSold
		rd.WinnerID = &winnerID
		rd.Amount = &amount
		rd.Stopped = stopped
	})
}

func (r *RoundRepo) MarkUnsold(_ context.Context, id string, stopped bool) error {
	return r.finish(id, func(rd *store.Round) {
		rd.Status = store.RoundUnsold
		rd.Stopped = stopped
	})
}

func (r *RoundRepo) finish(id string, apply func(*store.Round)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rd := range r.rounds {
		if rd.ID == id && rd.Status == store.RoundOpen {
			apply(rd)
			now := r.clock.Now()
			rd.ClosedAt = &now
			return nil
		}
	}
	return fmt.Errorf("round %s: %w", id, store.ErrNotFound)
}

func (r *RoundRepo) ListByGame(_ context.Context, gameID string) ([]store.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.Round
	for _, rd := range r.rounds {
		if rd.GameID == gameID {
			out = append(out, *rd)
		}
	}
	return out, nil
}

// StandingsRepo implements store.StandingsRepository in memory.
type StandingsRepo struct {
	mu     sync.RWMutex
	byGame map[string][]store.Standing
}

// NewStandingsRepo returns an empty StandingsRepo.
func NewStandingsRepo() *StandingsRepo {
	return &StandingsRepo{byGame: make(map[string][]store.Standing)}
}

func (r *StandingsRepo) Save(_ context.Context, gameID string, rows []store.Standing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byGame[gameID] = slices.Clone(rows)
	return nil
}

func (r *StandingsRepo) List(_ context.Context, gameID string) ([]store.Standing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byGame[gameID]), nil
}
