package auction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/event"
)

// State is the lifecycle state of a round.
type State string

const (
	StateIdle       State = "idle"
	StateAnnouncing State = "announcing"
	StateOpen       State = "open"
	StateResolving  State = "resolving"
	StateClosed     State = "closed"
)

// Outcome is how a closed round ended.
type Outcome string

const (
	OutcomeNone   Outcome = ""
	OutcomeSold   Outcome = "sold"
	OutcomeUnsold Outcome = "unsold"
)

// Bid represents a single accepted bid. Time and Seq are assigned by the
// engine when the bid is admitted.
type Bid struct {
	BidderID string    `json:"bidder_id"`
	Amount   int       `json:"amount"`
	Time     time.Time `json:"time"`
	Seq      uint64    `json:"seq"`
}

// Round is the aggregate for one timed auction of a single item. It is only
// mutated by the Engine while holding the engine lock.
type Round struct {
	ID         string
	GameID     string
	Tier       catalog.Tier
	Item       catalog.Item
	State      State
	OpensAt    time.Time
	Deadline   time.Time
	Bids       []Bid
	Outcome    Outcome
	Stopped    bool
	Extensions int
	Version    int

	events []event.Event
}

func newRound(id, gameID string, item catalog.Item, opensAt, deadline time.Time) *Round {
	r := &Round{
		ID:       id,
		GameID:   gameID,
		Tier:     item.Tier,
		Item:     item,
		State:    StateAnnouncing,
		OpensAt:  opensAt,
		Deadline: deadline,
	}
	r.record(event.RoundStarted, event.RoundStartedData{
		Tier:         int(item.Tier),
		ItemID:       item.ID,
		OpeningPrice: item.OpeningPrice,
		OpensAt:      opensAt,
		Deadline:     deadline,
		Duration:     deadline.Sub(opensAt),
	})
	return r
}

// Live reports whether the round still blocks a new round from starting.
func (r *Round) Live() bool {
	switch r.State {
	case StateAnnouncing, StateOpen, StateResolving:
		return true
	}
	return false
}

// HighBid returns the current high bid, or nil while only the opening price
// stands.
func (r *Round) HighBid() *Bid {
	if len(r.Bids) == 0 {
		return nil
	}
	return &r.Bids[len(r.Bids)-1]
}

// HighAmount is the amount a new bid has to beat.
func (r *Round) HighAmount() int {
	if h := r.HighBid(); h != nil {
		return h.Amount
	}
	return r.Item.OpeningPrice
}

func (r *Round) open() {
	r.State = StateOpen
	r.record(event.RoundOpened, event.RoundStartedData{
		Tier:         int(r.Tier),
		ItemID:       r.Item.ID,
		OpeningPrice: r.Item.OpeningPrice,
		OpensAt:      r.OpensAt,
		Deadline:     r.Deadline,
		Duration:     r.Deadline.Sub(r.OpensAt),
	})
}

func (r *Round) accept(b Bid) {
	r.Bids = append(r.Bids, b)
	r.record(event.RoundBidAccepted, event.BidAcceptedData{
		BidderID: b.BidderID,
		Amount:   b.Amount,
		Sequence: b.Seq,
		At:       b.Time,
	})
}

func (r *Round) extend(deadline time.Time) {
	prev := r.Deadline
	r.Deadline = deadline
	r.Extensions++
	r.record(event.RoundExtended, event.RoundExtendedData{Previous: prev, Deadline: deadline})
}

func (r *Round) stop(at time.Time) {
	r.Stopped = true
	r.record(event.RoundStopped, event.RoundResolvedData{ItemID: r.Item.ID, At: at})
}

func (r *Round) closeSold(winner Bid, at time.Time) {
	r.State = StateClosed
	r.Outcome = OutcomeSold
	r.record(event.RoundResolved, event.RoundResolvedData{
		ItemID:   r.Item.ID,
		WinnerID: winner.BidderID,
		Amount:   winner.Amount,
		At:       at,
	})
}

func (r *Round) closeUnsold(discard bool, at time.Time) {
	r.State = StateClosed
	r.Outcome = OutcomeUnsold
	r.record(event.RoundUnsold, event.RoundResolvedData{ItemID: r.Item.ID, Discard: discard, At: at})
}

// pendingEvents returns uncommitted events and clears the buffer.
func (r *Round) pendingEvents() []event.Event {
	events := r.events
	r.events = nil
	return events
}

func (r *Round) record(t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	r.Version++
	r.events = append(r.events, event.Event{
		GameID:      r.GameID,
		AggregateID: r.ID,
		Type:        t,
		Data:        data,
		Version:     r.Version,
	})
}

// RoundView is a read-only copy of a round for snapshots and transports.
type RoundView struct {
	ID           string    `json:"id"`
	Tier         int       `json:"tier"`
	ItemID       string    `json:"item_id"`
	ItemName     string    `json:"item_name"`
	Biome        string    `json:"biome"`
	State        State     `json:"state"`
	OpeningPrice int       `json:"opening_price"`
	HighBid      int       `json:"high_bid"`
	HighBidder   string    `json:"high_bidder,omitempty"`
	BidCount     int       `json:"bid_count"`
	OpensAt      time.Time `json:"opens_at"`
	Deadline     time.Time `json:"deadline"`
	Extensions   int       `json:"extensions"`
	Outcome      Outcome   `json:"outcome,omitempty"`
	Stopped      bool      `json:"stopped,omitempty"`
}

// View copies the round into a RoundView.
func (r *Round) View() RoundView {
	v := RoundView{
		ID:           r.ID,
		Tier:         int(r.Tier),
		ItemID:       r.Item.ID,
		ItemName:     r.Item.Name,
		Biome:        string(r.Item.Biome),
		State:        r.State,
		OpeningPrice: r.Item.OpeningPrice,
		HighBid:      r.HighAmount(),
		BidCount:     len(r.Bids),
		OpensAt:      r.OpensAt,
		Deadline:     r.Deadline,
		Extensions:   r.Extensions,
		Outcome:      r.Outcome,
		Stopped:      r.Stopped,
	}
	if h := r.HighBid(); h != nil {
		v.HighBidder = h.BidderID
	}
	return v
}

// Replay reconstructs a round from its event history. The item carries only
// the fields stored in the journal.
func Replay(events []event.Event) (*Round, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to replay")
	}

	r := &Round{}
	for _, e := range events {
		switch e.Type {
		case event.RoundStarted:
			var d event.RoundStartedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling started event: %w", err)
			}
			r.ID = e.AggregateID
			r.GameID = e.GameID
			r.Tier = catalog.Tier(d.Tier)
			r.Item = catalog.Item{ID: d.ItemID, Tier: catalog.Tier(d.Tier), OpeningPrice: d.OpeningPrice}
			r.OpensAt = d.OpensAt
			r.Deadline = d.Deadline
			r.State = StateAnnouncing

		case event.RoundOpened:
			r.State = StateOpen

		case event.RoundBidAccepted:
			var d event.BidAcceptedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling bid event: %w", err)
			}
			r.Bids = append(r.Bids, Bid{BidderID: d.BidderID, Amount: d.Amount, Time: d.At, Seq: d.Sequence})

		case event.RoundExtended:
			var d event.RoundExtendedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling extended event: %w", err)
			}
			r.Deadline = d.Deadline
			r.Extensions++

		case event.RoundStopped:
			r.Stopped = true

		case event.RoundResolved:
			r.State = StateClosed
			r.Outcome = OutcomeSold

		case event.RoundUnsold:
			r.State = StateClosed
			r.Outcome = OutcomeUnsold
		}
		r.Version = e.Version
	}
	return r, nil
}
