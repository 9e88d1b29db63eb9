package scoring_test

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/ledger"
	"github.com/jensholdgaard/zoo-auction/internal/scoring"
)

func fixture(t *testing.T) (*catalog.Catalog, *ledger.Ledger) {
	t.Helper()
	cat, err := catalog.Default(nil)
	assert.NoError(t, err)
	return cat, ledger.New(cat, 100)
}

func entryWith(t *testing.T, l *ledger.Ledger, zone string, buys map[string]int) ledger.Entry {
	t.Helper()
	for item, price := range buys {
		assert.NoError(t, l.Settle(zone, item, price))
	}
	e, err := l.Entry(zone)
	assert.NoError(t, err)
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func checkDec(t *testing.T, field string, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", field, got, want)
	}
}

func TestScore_Breakdown(t *testing.T) {
	cat, l := fixture(t)
	// A1 favours forest; continent A favours tundra.
	e := entryWith(t, l, "A1", map[string]int{"1101": 30, "1201": 25, "3301": 5})

	b := scoring.Score(e, cat, scoring.DefaultRules())

	checkDec(t, "NetValue", "40", b.NetValue)
	// 30*1.25*1.2 + 30*1.1*1.4 + 7 - 27
	checkDec(t, "BiomeAdjusted", "71.2", b.BiomeAdjusted)
	check.Equal(t, 3, b.Biomes)
	check.Equal(t, 0, b.Established)
	checkDec(t, "DiversityBonus", "5", b.DiversityBonus)
	checkDec(t, "CombinationBonus", "10", b.CombinationBonus)
	checkDec(t, "Funds", "40", b.Funds)
	checkDec(t, "Total", "126.2", b.Total)
	checkDec(t, "Rating", "2.91", b.Rating)
	check.Equal(t, 3, len(b.Items))
}

func TestScore_HeadlinerPerk(t *testing.T) {
	cat, _ := fixture(t)
	a1, _ := cat.Zone("A1")
	rules := scoring.DefaultRules()

	tests := []struct {
		item string
		want string
	}{
		{"1101", "1.2"}, // tier 1 in the favoured biome
		{"1201", "1.4"}, // tier 1 elsewhere
		{"2101", "1"},
		{"4301", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			it, ok := cat.Item(tt.item)
			assert.True(t, ok)
			checkDec(t, "Perk", tt.want, rules.Perk(it, a1))
		})
	}
}

func TestScore_PairBonus(t *testing.T) {
	tests := []struct {
		name          string
		buys          map[string]int
		wantAdjusted  string
		wantCombo     string
		wantTotal     string
		wantRating    string
		wantDiversity string
	}{
		{
			// Forest is A1's favoured biome: (45 + 25) * (1.05 - 1).
			name:          "shared home biome",
			buys:          map[string]int{"1101": 30, "2101": 20},
			wantAdjusted:  "50",
			wantCombo:     "3.5",
			wantTotal:     "103.5",
			wantRating:    "19.05",
			wantDiversity: "0",
		},
		{
			// Tundra and ocean compound: (46.2 + 22 + 42 + 20) * (1.1^2 - 1)
			// plus both tier sets filled.
			name:          "two shared away biomes",
			buys:          map[string]int{"1201": 30, "2201": 20, "1301": 30, "2301": 20},
			wantAdjusted:  "90.2",
			wantCombo:     "43.34",
			wantTotal:     "135.54",
			wantRating:    "146.85",
			wantDiversity: "2",
		},
		{
			name:          "tiers in different biomes",
			buys:          map[string]int{"1201": 30, "2301": 20},
			wantAdjusted:  "46.2",
			wantCombo:     "0",
			wantTotal:     "98.2",
			wantRating:    "2.83",
			wantDiversity: "2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, l := fixture(t)
			e := entryWith(t, l, "A1", tt.buys)

			b := scoring.Score(e, cat, scoring.DefaultRules())

			checkDec(t, "BiomeAdjusted", tt.wantAdjusted, b.BiomeAdjusted)
			checkDec(t, "CombinationBonus", tt.wantCombo, b.CombinationBonus)
			checkDec(t, "DiversityBonus", tt.wantDiversity, b.DiversityBonus)
			checkDec(t, "Total", tt.wantTotal, b.Total)
			checkDec(t, "Rating", tt.wantRating, b.Rating)
		})
	}
}

func TestPairBonusRate(t *testing.T) {
	rules := scoring.DefaultRules()
	checkDec(t, "none", "0", rules.PairBonusRate(0, 0))
	checkDec(t, "one away", "0.1", rules.PairBonusRate(1, 0))
	checkDec(t, "three away", "0.331", rules.PairBonusRate(3, 0))
	checkDec(t, "home", "0.05", rules.PairBonusRate(0, 1))
	checkDec(t, "both", "0.26", rules.PairBonusRate(2, 1))
}

func TestScore_RatingCountsEstablishedBiomes(t *testing.T) {
	cat, l := fixture(t)
	// One tier-3 animal in each of two biomes: both count toward diversity,
	// neither is established for the rating.
	e := entryWith(t, l, "A1", map[string]int{"3101": 7, "3201": 7})

	b := scoring.Score(e, cat, scoring.DefaultRules())
	check.Equal(t, 2, b.Biomes)
	check.Equal(t, 0, b.Established)
	checkDec(t, "Total", "98.45", b.Total)
	checkDec(t, "Rating", "2.83", b.Rating)

	// A second tundra animal establishes the biome.
	e = entryWith(t, l, "A1", map[string]int{"3202": 7})
	b = scoring.Score(e, cat, scoring.DefaultRules())
	check.Equal(t, 2, b.Biomes)
	check.Equal(t, 1, b.Established)
	checkDec(t, "Total", "96.15", b.Total)
	checkDec(t, "Rating", "18.6", b.Rating)
}

func TestScore_EmptyZoo(t *testing.T) {
	cat, l := fixture(t)
	e, err := l.Entry("B2")
	assert.NoError(t, err)

	b := scoring.Score(e, cat, scoring.DefaultRules())
	checkDec(t, "NetValue", "0", b.NetValue)
	checkDec(t, "Total", "100", b.Total)
	check.True(t, b.Rating.IsPositive())

	rules := scoring.DefaultRules()
	rules.IncludeFunds = false
	b = scoring.Score(e, cat, rules)
	checkDec(t, "Total", "0", b.Total)
	checkDec(t, "Rating", "0", b.Rating)
}

func TestScore_Deterministic(t *testing.T) {
	cat, l := fixture(t)
	e := entryWith(t, l, "C3", map[string]int{"1301": 30, "2301": 20, "4101": 3, "4201": 3, "4501": 3})
	rules := scoring.DefaultRules()

	first := scoring.Score(e, cat, rules)
	second := scoring.Score(e, cat, rules)

	check.Equal(t, first.Total.String(), second.Total.String())
	check.Equal(t, first.Rating.String(), second.Rating.String())
	check.Equal(t, first.CombinationBonus.String(), second.CombinationBonus.String())
	check.Equal(t, len(first.Items), len(second.Items))
}

func TestMultiplier(t *testing.T) {
	cat, _ := fixture(t)
	a1, _ := cat.Zone("A1") // forest zoo, tundra continent
	a2, _ := cat.Zone("A2") // tundra zoo, tundra continent
	forest, _ := cat.Item("1101")
	tundra, _ := cat.Item("1201")
	ocean, _ := cat.Item("1301")

	maxOf := scoring.DefaultRules()
	additive := scoring.DefaultRules()
	additive.Stacking = scoring.StackAdditive

	tests := []struct {
		name  string
		rules scoring.Rules
		item  catalog.Item
		zone  catalog.Zone
		want  string
	}{
		{"zoo match", maxOf, forest, a1, "1.25"},
		{"continent match", maxOf, tundra, a1, "1.1"},
		{"no match", maxOf, ocean, a1, "1"},
		{"both match max-of", maxOf, tundra, a2, "1.25"},
		{"both match additive", additive, tundra, a2, "1.35"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkDec(t, "Multiplier", tt.want, tt.rules.Multiplier(tt.item, tt.zone))
		})
	}
}

func TestRules_Validate(t *testing.T) {
	assert.NoError(t, scoring.DefaultRules().Validate())

	r := scoring.DefaultRules()
	r.Stacking = "multiply"
	check.Error(t, r.Validate())

	r = scoring.DefaultRules()
	r.EstablishedAt = 0
	check.Error(t, r.Validate())

	r = scoring.DefaultRules()
	r.RatingEstablishedAt = 0
	check.Error(t, r.Validate())

	r = scoring.DefaultRules()
	r.PairRate = dec("-0.1")
	check.Error(t, r.Validate())
}

func TestStandings(t *testing.T) {
	cat, l := fixture(t)
	entryWith(t, l, "A1", map[string]int{"1101": 30})
	entryWith(t, l, "B1", map[string]int{"1102": 30})
	assert.NoError(t, l.Claim("A1", "alice"))

	rules := scoring.DefaultRules()
	rules.IncludeFunds = false
	got := scoring.Standings(l.Entries(), cat, rules)

	check.Equal(t, 25, len(got))
	check.Equal(t, 1, got[0].Rank)
	check.Equal(t, "A1", got[0].Breakdown.ParticipantID)
	check.Equal(t, "alice", got[0].Name)
	check.Equal(t, "B1", got[1].Breakdown.ParticipantID)
	// Every other zoo is empty and shares a rank.
	check.Equal(t, got[2].Rank, got[24].Rank)
	check.True(t, got[1].Rank < got[2].Rank)
}
