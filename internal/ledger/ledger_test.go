package ledger_test

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/ledger"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	cat, err := catalog.Default(nil)
	assert.NoError(t, err)
	return ledger.New(cat, 100)
}

func TestNew(t *testing.T) {
	l := newLedger(t)

	entries := l.Entries()
	check.Equal(t, 25, len(entries))
	check.Equal(t, "A1", entries[0].ParticipantID)
	check.Equal(t, "E5", entries[24].ParticipantID)
	for _, e := range entries {
		check.Equal(t, 100, e.Funds)
		check.Equal(t, 0, len(e.Items))
	}
	assert.NoError(t, l.Verify())
}

func TestEntry_Unknown(t *testing.T) {
	l := newLedger(t)
	_, err := l.Entry("Z9")
	check.True(t, errors.Is(err, ledger.ErrUnknownParticipant))
}

func TestSettle(t *testing.T) {
	l := newLedger(t)

	assert.NoError(t, l.Commit("A1", "1101", 40))
	assert.NoError(t, l.Settle("A1", "1101", 40))

	e, err := l.Entry("A1")
	assert.NoError(t, err)
	check.Equal(t, 60, e.Funds)
	check.Equal(t, 40, e.Spent)
	check.Equal(t, []string{"1101"}, e.Items)
	check.Equal(t, 1, e.TierCounts[1])
	check.Equal(t, 0, e.Committed())
	check.Equal(t, ledger.ItemSold, l.ItemStatus("1101"))

	owner, ok := l.Owner("1101")
	check.True(t, ok)
	check.Equal(t, "A1", owner)
	assert.NoError(t, l.Verify())
}

func TestSettle_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(l *ledger.Ledger)
		who     string
		item    string
		amount  int
		wantErr error
	}{
		{
			name:    "unknown participant",
			who:     "Q1",
			item:    "1101",
			amount:  30,
			wantErr: ledger.ErrUnknownParticipant,
		},
		{
			name:    "unknown item",
			who:     "A1",
			item:    "9999",
			amount:  30,
			wantErr: ledger.ErrUnknownItem,
		},
		{
			name:    "insufficient funds",
			who:     "A1",
			item:    "1101",
			amount:  101,
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name: "already sold",
			setup: func(l *ledger.Ledger) {
				_ = l.Settle("B1", "1101", 30)
			},
			who:     "A1",
			item:    "1101",
			amount:  30,
			wantErr: ledger.ErrItemAlreadySold,
		},
		{
			name: "tier cap",
			setup: func(l *ledger.Ledger) {
				_ = l.Settle("A1", "1101", 30)
				_ = l.Settle("A1", "1102", 30)
			},
			who:     "A1",
			item:    "1201",
			amount:  30,
			wantErr: ledger.ErrTierCapExceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			if tt.setup != nil {
				tt.setup(l)
			}
			before := l.Entries()

			err := l.Settle(tt.who, tt.item, tt.amount)
			check.True(t, errors.Is(err, tt.wantErr))
			check.Equal(t, before, l.Entries())
			assert.NoError(t, l.Verify())
		})
	}
}

func TestCommit(t *testing.T) {
	l := newLedger(t)

	assert.NoError(t, l.Commit("A1", "1101", 60))

	// A second item may only use what is left over.
	err := l.Commit("A1", "2101", 50)
	check.True(t, errors.Is(err, ledger.ErrInsufficientFunds))

	// Raising the commitment on the same item may use the full balance.
	assert.NoError(t, l.Commit("A1", "1101", 100))

	e, _ := l.Entry("A1")
	check.Equal(t, 100, e.Committed())
	check.Equal(t, 100, e.AvailableFor("1101"))
	check.Equal(t, 0, e.AvailableFor("2101"))

	l.Release("A1", "1101")
	e, _ = l.Entry("A1")
	check.Equal(t, 0, e.Committed())
}

func TestMarkUnsold(t *testing.T) {
	l := newLedger(t)

	assert.NoError(t, l.Commit("A1", "3101", 10))
	l.MarkUnsold("3101", false)
	check.Equal(t, ledger.ItemAvailable, l.ItemStatus("3101"))
	e, _ := l.Entry("A1")
	check.Equal(t, 0, e.Committed())

	l.MarkUnsold("3102", true)
	check.Equal(t, ledger.ItemDiscarded, l.ItemStatus("3102"))

	for _, it := range l.AvailableItems(3) {
		check.NotEqual(t, "3102", it.ID)
	}
	check.Equal(t, 34, len(l.AvailableItems(3)))
}

func TestClaim(t *testing.T) {
	l := newLedger(t)

	assert.NoError(t, l.Claim("C3", "alice"))
	assert.NoError(t, l.Claim("C3", "alice"))

	err := l.Claim("C3", "bob")
	check.True(t, errors.Is(err, ledger.ErrAlreadyClaimed))

	e, _ := l.Entry("C3")
	check.Equal(t, "alice", e.Name)
}

func TestEntry_IsCopy(t *testing.T) {
	l := newLedger(t)
	assert.NoError(t, l.Settle("A1", "4101", 3))

	e, _ := l.Entry("A1")
	e.Items[0] = "tampered"
	e.TierCounts[4] = 99

	again, _ := l.Entry("A1")
	check.Equal(t, "4101", again.Items[0])
	check.Equal(t, 1, again.TierCounts[4])
}
