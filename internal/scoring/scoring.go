// Package scoring derives a score breakdown from a participant's portfolio.
// Everything here is a pure function of its inputs.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/ledger"
)

const precision = 2

// Stacking decides how zoo and continent biome matches combine when an item
// matches both.
type Stacking string

const (
	// StackMax applies the higher of the two multipliers.
	StackMax Stacking = "max"
	// StackAdditive adds both bonuses above the baseline.
	StackAdditive Stacking = "additive"
)

// Rules parameterise the scoring formula.
type Rules struct {
	ZooMultiplier       decimal.Decimal
	ContinentMultiplier decimal.Decimal
	BaseMultiplier      decimal.Decimal
	Stacking            Stacking
	// DiversityBonus is indexed by the number of established biomes. Counts
	// beyond the table use the last entry.
	DiversityBonus []decimal.Decimal
	// EstablishedAt is how many items of a biome count it for the diversity
	// bonus.
	EstablishedAt int
	// RatingEstablishedAt is how many items of a biome count it toward the
	// rating exponent.
	RatingEstablishedAt int
	// SetBonus is paid when a capped tier is filled to its cap.
	SetBonus map[catalog.Tier]decimal.Decimal
	// HeadlinerHome and HeadlinerAway scale a tier-1 item's own income when
	// it is kept in or away from the zoo's favoured biome.
	HeadlinerHome decimal.Decimal
	HeadlinerAway decimal.Decimal
	// PairRate compounds once per biome shared by a tier-1 and a tier-2 item
	// away from the zoo's favoured biome; HomePairRate compounds when the
	// shared biome is the favoured one. The combined rate applies to all
	// tier-1 and tier-2 adjusted income.
	PairRate     decimal.Decimal
	HomePairRate decimal.Decimal
	IncludeFunds bool
}

// DefaultRules returns the standard scoring parameters.
func DefaultRules() Rules {
	return Rules{
		ZooMultiplier:       decimal.RequireFromString("1.25"),
		ContinentMultiplier: decimal.RequireFromString("1.1"),
		BaseMultiplier:      decimal.NewFromInt(1),
		Stacking:            StackMax,
		DiversityBonus: []decimal.Decimal{
			decimal.Zero,
			decimal.Zero,
			decimal.NewFromInt(2),
			decimal.NewFromInt(5),
			decimal.NewFromInt(9),
			decimal.NewFromInt(14),
		},
		EstablishedAt:       1,
		RatingEstablishedAt: 2,
		SetBonus: map[catalog.Tier]decimal.Decimal{
			1: decimal.NewFromInt(10),
			2: decimal.NewFromInt(6),
			3: decimal.NewFromInt(4),
		},
		HeadlinerHome: decimal.RequireFromString("1.2"),
		HeadlinerAway: decimal.RequireFromString("1.4"),
		PairRate:      decimal.RequireFromString("0.1"),
		HomePairRate:  decimal.RequireFromString("0.05"),
		IncludeFunds:  true,
	}
}

// Validate reports rules that would make scores meaningless.
func (r Rules) Validate() error {
	switch r.Stacking {
	case StackMax, StackAdditive:
	default:
		return fmt.Errorf("unknown stacking policy %q", r.Stacking)
	}
	if r.EstablishedAt < 1 {
		return fmt.Errorf("established_at must be at least 1, got %d", r.EstablishedAt)
	}
	if r.RatingEstablishedAt < 1 {
		return fmt.Errorf("rating_established_at must be at least 1, got %d", r.RatingEstablishedAt)
	}
	if r.PairRate.IsNegative() || r.HomePairRate.IsNegative() {
		return fmt.Errorf("pair rates must not be negative")
	}
	if r.BaseMultiplier.IsNegative() || r.ZooMultiplier.IsNegative() || r.ContinentMultiplier.IsNegative() ||
		r.HeadlinerHome.IsNegative() || r.HeadlinerAway.IsNegative() {
		return fmt.Errorf("multipliers must not be negative")
	}
	return nil
}

// ItemScore is the contribution of one owned item.
type ItemScore struct {
	ItemID      string          `json:"item_id"`
	Income      decimal.Decimal `json:"income"`
	Maintenance decimal.Decimal `json:"maintenance"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Perk        decimal.Decimal `json:"perk"`
	Adjusted    decimal.Decimal `json:"adjusted"`
}

// Breakdown is the inspectable result of scoring one zoo.
type Breakdown struct {
	ParticipantID    string          `json:"participant_id"`
	NetValue         decimal.Decimal `json:"net_value"`
	BiomeAdjusted    decimal.Decimal `json:"biome_adjusted"`
	DiversityBonus   decimal.Decimal `json:"diversity_bonus"`
	CombinationBonus decimal.Decimal `json:"combination_bonus"`
	Funds            decimal.Decimal `json:"funds"`
	Total            decimal.Decimal `json:"total"`
	Rating           decimal.Decimal `json:"rating"`
	Biomes           int             `json:"biomes"`
	Established      int             `json:"established"`
	Items            []ItemScore     `json:"items,omitempty"`
}

// Multiplier returns the biome multiplier for an item kept in zone.
func (r Rules) Multiplier(it catalog.Item, zone catalog.Zone) decimal.Decimal {
	zooMatch := it.Biome == zone.FavoredBiome
	contMatch := it.Biome == zone.ContinentBiome

	switch {
	case zooMatch && contMatch:
		if r.Stacking == StackAdditive {
			one := decimal.NewFromInt(1)
			return r.BaseMultiplier.Add(r.ZooMultiplier.Sub(one)).Add(r.ContinentMultiplier.Sub(one))
		}
		return decimal.Max(r.ZooMultiplier, r.ContinentMultiplier)
	case zooMatch:
		return r.ZooMultiplier
	case contMatch:
		return r.ContinentMultiplier
	default:
		return r.BaseMultiplier
	}
}

// Perk returns the factor applied to an item's own income on top of the
// biome multiplier. Only tier-1 items carry one.
func (r Rules) Perk(it catalog.Item, zone catalog.Zone) decimal.Decimal {
	if it.Tier != 1 || r.HeadlinerHome.IsZero() && r.HeadlinerAway.IsZero() {
		return decimal.NewFromInt(1)
	}
	if it.Biome == zone.FavoredBiome {
		return r.HeadlinerHome
	}
	return r.HeadlinerAway
}

// PairBonusRate is the fraction of tier-1 plus tier-2 income paid for biomes
// held at both tiers: (1+PairRate)^away - 1 + (1+HomePairRate)^home - 1.
func (r Rules) PairBonusRate(away, home int) decimal.Decimal {
	one := decimal.NewFromInt(1)
	rate := decimal.Zero
	if away > 0 {
		rate = rate.Add(one.Add(r.PairRate).Pow(decimal.NewFromInt(int64(away))).Sub(one))
	}
	if home > 0 {
		rate = rate.Add(one.Add(r.HomePairRate).Pow(decimal.NewFromInt(int64(home))).Sub(one))
	}
	return rate
}

// Score computes the breakdown for one ledger entry. Items missing from the
// catalog are ignored.
func Score(e ledger.Entry, cat *catalog.Catalog, r Rules) Breakdown {
	b := Breakdown{ParticipantID: e.ParticipantID}

	income := decimal.Zero
	maintenance := decimal.Zero
	adjustedIncome := decimal.Zero
	biomeCounts := make(map[catalog.Biome]int)
	tierCounts := make(map[catalog.Tier]int)
	// biomes held at tier 1 and tier 2, for the pair bonus
	pairBiomes := map[catalog.Tier]map[catalog.Biome]bool{
		1: {},
		2: {},
	}
	pairIncome := decimal.Zero

	for _, id := range e.Items {
		it, ok := cat.Item(id)
		if !ok {
			continue
		}
		m := r.Multiplier(it, e.Zone)
		perk := r.Perk(it, e.Zone)
		adj := it.Income.Mul(m).Mul(perk)

		income = income.Add(it.Income)
		maintenance = maintenance.Add(it.Maintenance)
		adjustedIncome = adjustedIncome.Add(adj)
		biomeCounts[it.Biome]++
		tierCounts[it.Tier]++
		if held, ok := pairBiomes[it.Tier]; ok {
			held[it.Biome] = true
			pairIncome = pairIncome.Add(adj)
		}

		b.Items = append(b.Items, ItemScore{
			ItemID:      id,
			Income:      it.Income,
			Maintenance: it.Maintenance,
			Multiplier:  m,
			Perk:        perk,
			Adjusted:    adj.Sub(it.Maintenance).Round(precision),
		})
	}

	b.NetValue = income.Sub(maintenance).Round(precision)
	b.BiomeAdjusted = adjustedIncome.Sub(maintenance).Round(precision)

	for _, n := range biomeCounts {
		if n >= r.EstablishedAt {
			b.Biomes++
		}
		if n >= r.RatingEstablishedAt {
			b.Established++
		}
	}
	b.DiversityBonus = r.diversity(b.Biomes).Round(precision)

	combo := decimal.Zero
	for t, bonus := range r.SetBonus {
		if limit, capped := cat.TierCap(t); capped && limit > 0 && tierCounts[t] >= limit {
			combo = combo.Add(bonus)
		}
	}
	var away, home int
	for biome := range pairBiomes[1] {
		if !pairBiomes[2][biome] {
			continue
		}
		if biome == e.Zone.FavoredBiome {
			home++
		} else {
			away++
		}
	}
	combo = combo.Add(pairIncome.Mul(r.PairBonusRate(away, home)))
	b.CombinationBonus = combo.Round(precision)

	b.Funds = decimal.NewFromInt(int64(e.Funds))
	b.Total = b.BiomeAdjusted.Add(b.DiversityBonus).Add(b.CombinationBonus)
	if r.IncludeFunds {
		b.Total = b.Total.Add(b.Funds)
	}
	b.Total = b.Total.Round(precision)
	b.Rating = rating(b.Total, b.Established+1, e.Zone.Multiplier)

	return b
}

func (r Rules) diversity(n int) decimal.Decimal {
	if len(r.DiversityBonus) == 0 {
		return decimal.Zero
	}
	if n >= len(r.DiversityBonus) {
		return r.DiversityBonus[len(r.DiversityBonus)-1]
	}
	return r.DiversityBonus[n]
}

// rating is |log2(total)|^(n-0.5) scaled by the zoo multiplier, or zero when
// the total is not positive.
func rating(total decimal.Decimal, n int, zoneMultiplier decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	f := total.InexactFloat64()
	v := math.Pow(math.Abs(math.Log2(f)), float64(n)-0.5)
	if zoneMultiplier.IsZero() {
		zoneMultiplier = decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(v).Mul(zoneMultiplier).Round(precision)
}

// Standing is one row of a leaderboard.
type Standing struct {
	Rank      int       `json:"rank"`
	Name      string    `json:"name,omitempty"`
	Breakdown Breakdown `json:"breakdown"`
}

// Standings scores every entry and orders them by total, highest first.
// Ties are ordered by participant id and share a rank.
func Standings(entries []ledger.Entry, cat *catalog.Catalog, r Rules) []Standing {
	out := make([]Standing, 0, len(entries))
	for _, e := range entries {
		out = append(out, Standing{Name: e.Name, Breakdown: Score(e, cat, r)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Breakdown, out[j].Breakdown
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i := range out {
		if i > 0 && out[i].Breakdown.Total.Equal(out[i-1].Breakdown.Total) {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
