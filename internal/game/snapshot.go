package game

import (
	"time"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/scoring"
)

// Phase is the stage of the game.
type Phase string

const (
	PhaseSetup        Phase = "setup"
	PhaseAuction      Phase = "auction"
	PhaseIntermission Phase = "intermission"
	PhaseScoring      Phase = "scoring"
)

// Participant is one zoo as seen by clients, with its live score.
type Participant struct {
	ID         string               `json:"id"`
	Name       string               `json:"name,omitempty"`
	Continent  string               `json:"continent"`
	Favored    catalog.Biome        `json:"favored_biome"`
	Funds      int                  `json:"funds"`
	Spent      int                  `json:"spent"`
	Committed  int                  `json:"committed"`
	Items      []string             `json:"items"`
	TierCounts map[catalog.Tier]int `json:"tier_counts"`
	Score      scoring.Breakdown    `json:"score"`
}

// Snapshot is a consistent, read-only view of the whole game.
type Snapshot struct {
	Seq          uint64               `json:"seq"`
	GameID       string               `json:"game_id,omitempty"`
	Initialized  bool                 `json:"initialized"`
	Phase        Phase                `json:"phase"`
	Tier         int                  `json:"tier,omitempty"`
	Stake        int                  `json:"stake,omitempty"`
	Round        *auction.RoundView   `json:"round,omitempty"`
	Queued       int                  `json:"queued"`
	Available    map[catalog.Tier]int `json:"available,omitempty"`
	Completed    []int                `json:"completed_tiers,omitempty"`
	Participants []Participant        `json:"participants,omitempty"`
	Final        []scoring.Standing   `json:"final,omitempty"`
	At           time.Time            `json:"at"`
}
