// Package ledger tracks what every participant owns: funds, acquired items,
// per-tier counts and outstanding bid commitments, plus which catalog items
// are still available for auction.
//
// A Ledger is not safe for concurrent use. The auction engine serialises all
// access to it.
package ledger

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
)

// Errors returned by ledger operations.
var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownItem        = errors.New("unknown item")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTierCapExceeded    = errors.New("tier cap exceeded")
	ErrItemAlreadySold    = errors.New("item already sold")
	ErrAlreadyClaimed     = errors.New("zoo already claimed")
)

// ItemStatus is the availability of a catalog item.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemSold      ItemStatus = "sold"
	ItemDiscarded ItemStatus = "discarded"
)

// Entry is one participant's record. Values returned by Ledger methods are
// copies; mutating them has no effect on the ledger.
type Entry struct {
	ParticipantID string               `json:"participant_id"`
	Name          string               `json:"name,omitempty"`
	Zone          catalog.Zone         `json:"zone"`
	Funds         int                  `json:"funds"`
	Spent         int                  `json:"spent"`
	Items         []string             `json:"items"`
	TierCounts    map[catalog.Tier]int `json:"tier_counts"`
	// Pending maps item id to the amount committed by a leading bid.
	Pending map[string]int `json:"pending,omitempty"`
}

// Committed is the sum of all pending commitments.
func (e Entry) Committed() int {
	total := 0
	for _, amt := range e.Pending {
		total += amt
	}
	return total
}

// AvailableFor returns the funds a bid on itemID may use: funds minus the
// commitments held on every other item.
func (e Entry) AvailableFor(itemID string) int {
	return e.Funds - e.Committed() + e.Pending[itemID]
}

// Owns reports whether itemID is in the entry's portfolio.
func (e Entry) Owns(itemID string) bool {
	return slices.Contains(e.Items, itemID)
}

func (e *Entry) clone() Entry {
	c := *e
	c.Items = slices.Clone(e.Items)
	c.TierCounts = maps.Clone(e.TierCounts)
	c.Pending = maps.Clone(e.Pending)
	return c
}

// Ledger holds every participant entry and item availability.
type Ledger struct {
	cat     *catalog.Catalog
	stake   int
	entries map[string]*Entry
	order   []string
	// owner records who bought each sold item.
	owner     map[string]string
	discarded map[string]bool
}

// New creates one entry per catalog zone, each starting with stake funds.
// The participant id of an entry is its zone id.
func New(cat *catalog.Catalog, stake int) *Ledger {
	l := &Ledger{
		cat:       cat,
		stake:     stake,
		entries:   make(map[string]*Entry),
		owner:     make(map[string]string),
		discarded: make(map[string]bool),
	}
	for _, z := range cat.Zones() {
		l.entries[z.ID] = &Entry{
			ParticipantID: z.ID,
			Zone:          z,
			Funds:         stake,
			TierCounts:    make(map[catalog.Tier]int),
			Pending:       make(map[string]int),
		}
		l.order = append(l.order, z.ID)
	}
	return l
}

// Stake is the starting funds of every participant.
func (l *Ledger) Stake() int { return l.stake }

// Catalog returns the catalog the ledger was built from.
func (l *Ledger) Catalog() *catalog.Catalog { return l.cat }

// Entry returns a copy of the participant's entry.
func (l *Ledger) Entry(participantID string) (Entry, error) {
	e, err := l.entry(participantID)
	if err != nil {
		return Entry{}, err
	}
	return e.clone(), nil
}

// Entries returns copies of all entries in zone order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.entries[id].clone())
	}
	return out
}

// Claim attaches a display name to an unclaimed entry.
func (l *Ledger) Claim(participantID, name string) error {
	e, err := l.entry(participantID)
	if err != nil {
		return err
	}
	if e.Name != "" && e.Name != name {
		return fmt.Errorf("%w: %s is held by %s", ErrAlreadyClaimed, participantID, e.Name)
	}
	e.Name = name
	return nil
}

// ItemStatus reports whether an item can still be auctioned.
func (l *Ledger) ItemStatus(itemID string) ItemStatus {
	if _, ok := l.owner[itemID]; ok {
		return ItemSold
	}
	if l.discarded[itemID] {
		return ItemDiscarded
	}
	return ItemAvailable
}

// Owner returns the participant that bought itemID.
func (l *Ledger) Owner(itemID string) (string, bool) {
	id, ok := l.owner[itemID]
	return id, ok
}

// AvailableItems returns the unsold items of tier t in catalog order.
func (l *Ledger) AvailableItems(t catalog.Tier) []catalog.Item {
	var out []catalog.Item
	for _, it := range l.cat.ItemsInTier(t) {
		if l.ItemStatus(it.ID) == ItemAvailable {
			out = append(out, it)
		}
	}
	return out
}

// CheckAcquire verifies the participant could take itemID into their zoo
// without breaking the tier cap or duplicating an owned item.
func (l *Ledger) CheckAcquire(participantID, itemID string) error {
	e, err := l.entry(participantID)
	if err != nil {
		return err
	}
	it, ok := l.cat.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return l.checkAcquire(e, it)
}

func (l *Ledger) checkAcquire(e *Entry, it catalog.Item) error {
	if e.Owns(it.ID) {
		return fmt.Errorf("%w: %s already owns %s", ErrItemAlreadySold, e.ParticipantID, it.ID)
	}
	if limit, capped := l.cat.TierCap(it.Tier); capped && e.TierCounts[it.Tier] >= limit {
		return fmt.Errorf("%w: %s holds %d of %d tier %d items",
			ErrTierCapExceeded, e.ParticipantID, e.TierCounts[it.Tier], limit, it.Tier)
	}
	return nil
}

// Commit records amount as the participant's outstanding commitment on
// itemID, replacing any earlier commitment on the same item.
func (l *Ledger) Commit(participantID, itemID string, amount int) error {
	e, err := l.entry(participantID)
	if err != nil {
		return err
	}
	if avail := e.AvailableFor(itemID); amount > avail {
		return fmt.Errorf("%w: %s has %d available, needs %d", ErrInsufficientFunds, participantID, avail, amount)
	}
	e.Pending[itemID] = amount
	return nil
}

// Release drops the participant's commitment on itemID, if any.
func (l *Ledger) Release(participantID, itemID string) {
	if e, ok := l.entries[participantID]; ok {
		delete(e.Pending, itemID)
	}
}

// ReleaseItem drops every commitment held on itemID.
func (l *Ledger) ReleaseItem(itemID string) {
	for _, e := range l.entries {
		delete(e.Pending, itemID)
	}
}

// Settle transfers itemID to the participant for amount. It validates
// everything before mutating, so on error the ledger is unchanged.
func (l *Ledger) Settle(participantID, itemID string, amount int) error {
	e, err := l.entry(participantID)
	if err != nil {
		return err
	}
	it, ok := l.cat.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if l.ItemStatus(itemID) != ItemAvailable {
		return fmt.Errorf("%w: %s", ErrItemAlreadySold, itemID)
	}
	if err := l.checkAcquire(e, it); err != nil {
		return err
	}
	if amount < 0 || amount > e.Funds {
		return fmt.Errorf("%w: %s has %d, owes %d", ErrInsufficientFunds, participantID, e.Funds, amount)
	}

	e.Funds -= amount
	e.Spent += amount
	e.Items = append(e.Items, itemID)
	e.TierCounts[it.Tier]++
	l.owner[itemID] = participantID
	l.ReleaseItem(itemID)
	return nil
}

// MarkUnsold handles an item whose round ended without a winner. With
// discard set the item leaves the pool; otherwise it stays available.
func (l *Ledger) MarkUnsold(itemID string, discard bool) {
	l.ReleaseItem(itemID)
	if discard {
		l.discarded[itemID] = true
	}
}

// Verify checks the ledger invariants and returns the first violation.
func (l *Ledger) Verify() error {
	for _, id := range l.order {
		e := l.entries[id]
		if e.Funds < 0 {
			return fmt.Errorf("%s: negative funds %d", id, e.Funds)
		}
		if e.Funds+e.Spent != l.stake {
			return fmt.Errorf("%s: funds %d + spent %d != stake %d", id, e.Funds, e.Spent, l.stake)
		}
		if c := e.Committed(); c > e.Funds {
			return fmt.Errorf("%s: committed %d exceeds funds %d", id, c, e.Funds)
		}
		for t, n := range e.TierCounts {
			if limit, capped := l.cat.TierCap(t); capped && n > limit {
				return fmt.Errorf("%s: %d tier %d items exceeds cap %d", id, n, t, limit)
			}
		}
	}
	for item, owner := range l.owner {
		if e := l.entries[owner]; e == nil || !e.Owns(item) {
			return fmt.Errorf("item %s: owner %s does not hold it", item, owner)
		}
	}
	return nil
}

func (l *Ledger) entry(participantID string) (*Entry, error) {
	e, ok := l.entries[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParticipant, participantID)
	}
	return e, nil
}
