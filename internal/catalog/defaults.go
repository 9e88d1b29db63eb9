package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Default per-zoo caps. Tier 4 is uncapped.
var DefaultTierCaps = map[Tier]int{1: 2, 2: 2, 3: 3}

// DefaultOpeningPrices are the opening prices per tier.
var DefaultOpeningPrices = map[Tier]int{1: 30, 2: 20, 3: 7, 4: 3}

// DefaultCountPerTier is how many animals of each tier exist per biome.
var DefaultCountPerTier = map[Tier]int{1: 2, 2: 4, 3: 7, 4: 11}

var (
	defaultIncome = map[Tier]decimal.Decimal{
		1: decimal.NewFromInt(30),
		2: decimal.NewFromInt(20),
		3: decimal.NewFromInt(7),
		4: decimal.NewFromInt(5),
	}
	defaultMaintenance = map[Tier]decimal.Decimal{
		1: decimal.NewFromInt(12),
		2: decimal.NewFromInt(8),
		3: decimal.NewFromInt(3),
		4: decimal.NewFromInt(1),
	}
)

// continents maps each continent letter to its favoured biome.
var continents = []struct {
	letter string
	biome  Biome
}{
	{"A", Tundra},
	{"B", Wetland},
	{"C", Ocean},
	{"D", Forest},
	{"E", Desert},
}

// zoneMultipliers is the rating multiplier of zoo n (index n-1) per continent.
var zoneMultipliers = map[string][5]string{
	"A": {"1.1", "1.25", "1.2", "1.2", "1.1"},
	"B": {"1.2", "1.2", "1.1", "1.1", "1.25"},
	"C": {"1.1", "1.1", "1.25", "1.2", "1.2"},
	"D": {"1.25", "1.2", "1.2", "1.1", "1.1"},
	"E": {"1.2", "1.1", "1.1", "1.25", "1.2"},
}

// DefaultZones returns the 25 zoos: continents A..E, zoos 1..5 each. Zoo n
// favours the biome with index n regardless of its continent.
func DefaultZones() []Zone {
	zones := make([]Zone, 0, len(continents)*len(Biomes))
	for _, c := range continents {
		for i := 1; i <= len(Biomes); i++ {
			favored, _ := BiomeByIndex(i)
			zones = append(zones, Zone{
				ID:             fmt.Sprintf("%s%d", c.letter, i),
				Continent:      c.letter,
				Index:          i,
				FavoredBiome:   favored,
				ContinentBiome: c.biome,
				Multiplier:     decimal.RequireFromString(zoneMultipliers[c.letter][i-1]),
			})
		}
	}
	return zones
}

// DefaultItems generates the standard animal roster. Item ids have the form
// TBSS: tier digit, biome index digit, two-digit serial. names overrides the
// generated display name for matching ids and may be nil.
func DefaultItems(names map[string]string) []Item {
	var items []Item
	for bi, biome := range Biomes {
		for t := MinTier; t <= MaxTier; t++ {
			for serial := 1; serial <= DefaultCountPerTier[t]; serial++ {
				id := fmt.Sprintf("%d%d%02d", t, bi+1, serial)
				name := names[id]
				if name == "" {
					name = fmt.Sprintf("Tier %d %s Animal %d", t, titleCase(string(biome)), serial)
				}
				items = append(items, Item{
					ID:           id,
					Name:         name,
					Tier:         t,
					Biome:        biome,
					OpeningPrice: DefaultOpeningPrices[t],
					Income:       defaultIncome[t],
					Maintenance:  defaultMaintenance[t],
				})
			}
		}
	}
	return items
}

// Default builds the standard catalog.
func Default(names map[string]string) (*Catalog, error) {
	return New(DefaultItems(names), DefaultZones(), DefaultTierCaps)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
