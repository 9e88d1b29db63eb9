package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	GameInitialized Type = "game.initialized"
	GameReset       Type = "game.reset"
	TierStarted     Type = "game.tier_started"
	TierCompleted   Type = "game.tier_completed"
	GameScored      Type = "game.scored"
	ZooClaimed      Type = "game.zoo_claimed"

	RoundStarted     Type = "round.started"
	RoundOpened      Type = "round.opened"
	RoundBidAccepted Type = "round.bid_accepted"
	RoundExtended    Type = "round.extended"
	RoundResolved    Type = "round.resolved"
	RoundUnsold      Type = "round.unsold"
	RoundStopped     Type = "round.stopped"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	GameID      string          `json:"game_id" db:"game_id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// RoundStartedData is the payload for RoundStarted events.
type RoundStartedData struct {
	Tier         int           `json:"tier"`
	ItemID       string        `json:"item_id"`
	OpeningPrice int           `json:"opening_price"`
	OpensAt      time.Time     `json:"opens_at"`
	Deadline     time.Time     `json:"deadline"`
	Duration     time.Duration `json:"duration"`
}

// BidAcceptedData is the payload for RoundBidAccepted events.
type BidAcceptedData struct {
	BidderID string    `json:"bidder_id"`
	Amount   int       `json:"amount"`
	Sequence uint64    `json:"sequence"`
	At       time.Time `json:"at"`
}

// RoundExtendedData is the payload for RoundExtended events.
type RoundExtendedData struct {
	Previous time.Time `json:"previous"`
	Deadline time.Time `json:"deadline"`
}

// RoundResolvedData is the payload for RoundResolved, RoundUnsold and
// RoundStopped events. WinnerID is empty when the item did not sell.
type RoundResolvedData struct {
	ItemID   string    `json:"item_id"`
	WinnerID string    `json:"winner_id,omitempty"`
	Amount   int       `json:"amount,omitempty"`
	Discard  bool      `json:"discard,omitempty"`
	At       time.Time `json:"at"`
}

// GameInitializedData is the payload for GameInitialized and GameReset events.
type GameInitializedData struct {
	Stake        int `json:"stake"`
	Participants int `json:"participants"`
	Items        int `json:"items"`
}

// TierData is the payload for TierStarted and TierCompleted events.
type TierData struct {
	Tier  int      `json:"tier"`
	Items []string `json:"items,omitempty"`
}

// ZooClaimedData is the payload for ZooClaimed events.
type ZooClaimedData struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}
