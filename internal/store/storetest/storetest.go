// Package storetest holds behaviour tests shared by every store driver.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/zoo-auction/internal/event"
	"github.com/jensholdgaard/zoo-auction/internal/store"
)

// Run exercises repos against the store contract. newRepos must return an
// empty journal on each call.
func Run(t *testing.T, newRepos func(t *testing.T) *store.Repositories) {
	t.Run("events append and load", func(t *testing.T) { testEvents(t, newRepos(t)) })
	t.Run("events duplicate version", func(t *testing.T) { testDuplicateVersion(t, newRepos(t)) })
	t.Run("events by type", func(t *testing.T) { testEventsByType(t, newRepos(t)) })
	t.Run("rounds lifecycle", func(t *testing.T) { testRounds(t, newRepos(t)) })
	t.Run("standings replace", func(t *testing.T) { testStandings(t, newRepos(t)) })
	t.Run("ping", func(t *testing.T) {
		repos := newRepos(t)
		assert.NoError(t, repos.Ping(context.Background()))
	})
}

func newEvent(gameID, aggregateID string, typ event.Type, version int, data string) event.Event {
	return event.Event{
		ID:          uuid.NewString(),
		GameID:      gameID,
		AggregateID: aggregateID,
		Type:        typ,
		Data:        json.RawMessage(data),
		Version:     version,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, version, 0, time.UTC),
	}
}

func testEvents(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	roundID := uuid.NewString()

	err := repos.Events.Append(ctx,
		newEvent("g1", roundID, event.RoundStarted, 1, `{"item_id":"1101"}`),
		newEvent("g1", roundID, event.RoundBidAccepted, 2, `{"bidder_id":"A1","amount":15}`),
	)
	assert.NoError(t, err)

	loaded, err := repos.Events.Load(ctx, roundID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(loaded))
	check.Equal(t, 1, loaded[0].Version)
	check.Equal(t, 2, loaded[1].Version)
	check.Equal(t, event.RoundStarted, loaded[0].Type)
	check.Equal(t, "g1", loaded[1].GameID)

	var bid event.BidAcceptedData
	assert.NoError(t, json.Unmarshal(loaded[1].Data, &bid))
	check.Equal(t, "A1", bid.BidderID)
	check.Equal(t, 15, bid.Amount)

	none, err := repos.Events.Load(ctx, uuid.NewString())
	assert.NoError(t, err)
	check.Equal(t, 0, len(none))
}

func testDuplicateVersion(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	roundID := uuid.NewString()

	assert.NoError(t, repos.Events.Append(ctx, newEvent("g1", roundID, event.RoundStarted, 1, `{}`)))
	err := repos.Events.Append(ctx,
		newEvent("g1", roundID, event.RoundOpened, 2, `{}`),
		newEvent("g1", roundID, event.RoundOpened, 1, `{}`),
	)
	check.Error(t, err)

	// The batch is atomic.
	loaded, err := repos.Events.Load(ctx, roundID)
	assert.NoError(t, err)
	check.Equal(t, 1, len(loaded))
}

func testEventsByType(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	r1, r2 := uuid.NewString(), uuid.NewString()

	assert.NoError(t, repos.Events.Append(ctx,
		newEvent("g1", r1, event.RoundStarted, 1, `{}`),
		newEvent("g1", r1, event.RoundResolved, 2, `{}`),
		newEvent("g1", r2, event.RoundStarted, 1, `{}`),
		newEvent("g2", uuid.NewString(), event.RoundStarted, 1, `{}`),
	))

	started, err := repos.Events.LoadByType(ctx, "g1", event.RoundStarted)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(started))
	check.Equal(t, r1, started[0].AggregateID)
	check.Equal(t, r2, started[1].AggregateID)
}

func testRounds(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sold := &store.Round{ID: uuid.NewString(), GameID: "g1", Tier: 1, ItemID: "1101", OpeningPrice: 30, StartedAt: started}
	unsold := &store.Round{ID: uuid.NewString(), GameID: "g1", Tier: 4, ItemID: "4101", OpeningPrice: 3, StartedAt: started.Add(time.Minute)}
	other := &store.Round{ID: uuid.NewString(), GameID: "g2", Tier: 1, ItemID: "1101", OpeningPrice: 30, StartedAt: started}
	for _, r := range []*store.Round{sold, unsold, other} {
		assert.NoError(t, repos.Rounds.Create(ctx, r))
		check.Equal(t, store.RoundOpen, r.Status)
	}

	assert.NoError(t, repos.Rounds.Close(ctx, sold.ID, "B1", 42, false))
	assert.NoError(t, repos.Rounds.MarkUnsold(ctx, unsold.ID, true))

	err := repos.Rounds.Close(ctx, sold.ID, "C1", 50, false)
	check.True(t, errors.Is(err, store.ErrNotFound))
	err = repos.Rounds.MarkUnsold(ctx, uuid.NewString(), false)
	check.True(t, errors.Is(err, store.ErrNotFound))

	rounds, err := repos.Rounds.ListByGame(ctx, "g1")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(rounds))

	check.Equal(t, sold.ID, rounds[0].ID)
	check.Equal(t, store.RoundSold, rounds[0].Status)
	assert.NotNil(t, rounds[0].WinnerID)
	check.Equal(t, "B1", *rounds[0].WinnerID)
	assert.NotNil(t, rounds[0].Amount)
	check.Equal(t, 42, *rounds[0].Amount)
	check.NotNil(t, rounds[0].ClosedAt)

	check.Equal(t, unsold.ID, rounds[1].ID)
	check.Equal(t, store.RoundUnsold, rounds[1].Status)
	check.True(t, rounds[1].Stopped)
	check.Nil(t, rounds[1].WinnerID)
}

func testStandings(t *testing.T, repos *store.Repositories) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	first := []store.Standing{
		{GameID: "g1", Rank: 1, ParticipantID: "A1", Name: "alice", Total: decimal.RequireFromString("120.50"), Rating: decimal.RequireFromString("33.10"), CreatedAt: at},
		{GameID: "g1", Rank: 2, ParticipantID: "B1", Total: decimal.RequireFromString("99"), Rating: decimal.RequireFromString("20"), CreatedAt: at},
	}
	assert.NoError(t, repos.Standings.Save(ctx, "g1", first))

	second := []store.Standing{
		{GameID: "g1", Rank: 1, ParticipantID: "B1", Total: decimal.RequireFromString("130"), Rating: decimal.RequireFromString("40"), CreatedAt: at},
	}
	assert.NoError(t, repos.Standings.Save(ctx, "g1", second))

	got, err := repos.Standings.List(ctx, "g1")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(got))
	check.Equal(t, "B1", got[0].ParticipantID)
	check.True(t, got[0].Total.Equal(decimal.NewFromInt(130)))

	empty, err := repos.Standings.List(ctx, "g2")
	assert.NoError(t, err)
	check.Equal(t, 0, len(empty))
}
