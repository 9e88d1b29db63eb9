package catalog_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
)

func TestDefault(t *testing.T) {
	cat, err := catalog.Default(nil)
	assert.NoError(t, err)

	check.Equal(t, 120, len(cat.Items()))
	check.Equal(t, 25, len(cat.Zones()))
	check.Equal(t, 10, len(cat.ItemsInTier(1)))
	check.Equal(t, 20, len(cat.ItemsInTier(2)))
	check.Equal(t, 35, len(cat.ItemsInTier(3)))
	check.Equal(t, 55, len(cat.ItemsInTier(4)))

	it, ok := cat.Item("1101")
	assert.True(t, ok)
	check.Equal(t, catalog.Tier(1), it.Tier)
	check.Equal(t, catalog.Forest, it.Biome)
	check.Equal(t, 30, it.OpeningPrice)
	check.Equal(t, "Tier 1 Forest Animal 1", it.Name)
	check.Equal(t, "30", it.Income.String())
	check.Equal(t, "12", it.Maintenance.String())

	it, ok = cat.Item("4511")
	assert.True(t, ok)
	check.Equal(t, catalog.Tier(4), it.Tier)
	check.Equal(t, catalog.Wetland, it.Biome)
}

func TestDefaultZones(t *testing.T) {
	cat, err := catalog.Default(nil)
	assert.NoError(t, err)

	tests := []struct {
		id             string
		favored        catalog.Biome
		continentBiome catalog.Biome
		multiplier     string
	}{
		{"A1", catalog.Forest, catalog.Tundra, "1.1"},
		{"A2", catalog.Tundra, catalog.Tundra, "1.25"},
		{"C3", catalog.Ocean, catalog.Ocean, "1.25"},
		{"D5", catalog.Wetland, catalog.Forest, "1.1"},
		{"E4", catalog.Desert, catalog.Desert, "1.25"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			z, ok := cat.Zone(tt.id)
			assert.True(t, ok)
			check.Equal(t, tt.favored, z.FavoredBiome)
			check.Equal(t, tt.continentBiome, z.ContinentBiome)
			check.True(t, z.Multiplier.Equal(decimal.RequireFromString(tt.multiplier)))
		})
	}
}

func TestTierCap(t *testing.T) {
	cat, err := catalog.Default(nil)
	assert.NoError(t, err)

	for tier, want := range map[catalog.Tier]int{1: 2, 2: 2, 3: 3} {
		got, capped := cat.TierCap(tier)
		check.True(t, capped)
		check.Equal(t, want, got)
	}
	_, capped := cat.TierCap(4)
	check.False(t, capped)
}

func TestNew_Validation(t *testing.T) {
	zones := catalog.DefaultZones()
	tests := []struct {
		name    string
		items   []catalog.Item
		caps    map[catalog.Tier]int
		wantErr error
	}{
		{
			name: "duplicate item",
			items: []catalog.Item{
				{ID: "1101", Tier: 1, Biome: catalog.Forest},
				{ID: "1101", Tier: 1, Biome: catalog.Forest},
			},
			wantErr: catalog.ErrDuplicateID,
		},
		{
			name:    "invalid tier",
			items:   []catalog.Item{{ID: "x", Tier: 5, Biome: catalog.Forest}},
			wantErr: catalog.ErrInvalidTier,
		},
		{
			name:    "unknown biome",
			items:   []catalog.Item{{ID: "x", Tier: 1, Biome: "swamp"}},
			wantErr: catalog.ErrUnknownBiome,
		},
		{
			name:    "cap on invalid tier",
			caps:    map[catalog.Tier]int{0: 1},
			wantErr: catalog.ErrInvalidTier,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New(tt.items, zones, tt.caps)
			check.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestParseBiome(t *testing.T) {
	b, err := catalog.ParseBiome(" Ocean ")
	assert.NoError(t, err)
	check.Equal(t, catalog.Ocean, b)

	_, err = catalog.ParseBiome("savanna")
	check.True(t, errors.Is(err, catalog.ErrUnknownBiome))
}

func TestLoadNames(t *testing.T) {
	csv := "Animal ID, Animal Name\n1101, Siberian Tiger\n, Nameless\n2302,Sea Otter\n"
	names, err := catalog.LoadNames(strings.NewReader(csv))
	assert.NoError(t, err)
	check.Equal(t, 2, len(names))
	check.Equal(t, "Siberian Tiger", names["1101"])

	cat, err := catalog.Default(names)
	assert.NoError(t, err)
	it, _ := cat.Item("2302")
	check.Equal(t, "Sea Otter", it.Name)
	it, _ = cat.Item("1102")
	check.Equal(t, "Tier 1 Forest Animal 2", it.Name)
}

func TestLoadNames_MissingColumns(t *testing.T) {
	_, err := catalog.LoadNames(strings.NewReader("id,name\n1101,Tiger\n"))
	check.Error(t, err)
}
