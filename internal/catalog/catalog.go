// Package catalog holds the static reference data of a game: the animals
// that can be auctioned, the zoos that can own them and the per-tier
// ownership caps. A Catalog is immutable once built.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Errors returned while building or querying a catalog.
var (
	ErrUnknownBiome = errors.New("unknown biome")
	ErrInvalidTier  = errors.New("invalid tier")
	ErrDuplicateID  = errors.New("duplicate id")
)

// Biome tags items, zoos and continents.
type Biome string

const (
	Forest  Biome = "forest"
	Tundra  Biome = "tundra"
	Ocean   Biome = "ocean"
	Desert  Biome = "desert"
	Wetland Biome = "wetland"
)

// Biomes lists every biome in index order (forest is index 1).
var Biomes = []Biome{Forest, Tundra, Ocean, Desert, Wetland}

// BiomeByIndex returns the biome with the given 1-based index.
func BiomeByIndex(i int) (Biome, bool) {
	if i < 1 || i > len(Biomes) {
		return "", false
	}
	return Biomes[i-1], true
}

// ParseBiome parses a case-insensitive biome name.
func ParseBiome(s string) (Biome, error) {
	b := Biome(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Biomes, b) {
		return "", fmt.Errorf("%w: %q", ErrUnknownBiome, s)
	}
	return b, nil
}

// Tier is a price/value class of items, 1 (highest) to 4 (lowest).
type Tier int

const (
	MinTier Tier = 1
	MaxTier Tier = 4
)

// Valid reports whether t is within MinTier..MaxTier.
func (t Tier) Valid() bool { return t >= MinTier && t <= MaxTier }

// Item is one auctionable animal.
type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Tier         Tier            `json:"tier"`
	Biome        Biome           `json:"biome"`
	OpeningPrice int             `json:"opening_price"`
	Income       decimal.Decimal `json:"income"`
	Maintenance  decimal.Decimal `json:"maintenance"`
	Tags         []string        `json:"tags,omitempty"`
}

// Zone is a zoo slot: a continent plus an index on that continent.
type Zone struct {
	ID             string          `json:"id"`
	Continent      string          `json:"continent"`
	Index          int             `json:"index"`
	FavoredBiome   Biome           `json:"favored_biome"`
	ContinentBiome Biome           `json:"continent_biome"`
	Multiplier     decimal.Decimal `json:"multiplier"`
}

// Catalog is the immutable set of items, zones and tier caps.
type Catalog struct {
	items     map[string]Item
	itemOrder []string
	zones     map[string]Zone
	zoneOrder []string
	caps      map[Tier]int
}

// New validates and builds a Catalog. Tiers missing from caps are uncapped.
// Items and zones keep the order they were given in.
func New(items []Item, zones []Zone, caps map[Tier]int) (*Catalog, error) {
	c := &Catalog{
		items: make(map[string]Item, len(items)),
		zones: make(map[string]Zone, len(zones)),
		caps:  make(map[Tier]int, len(caps)),
	}

	for t, n := range caps {
		if !t.Valid() {
			return nil, fmt.Errorf("cap for %w %d", ErrInvalidTier, t)
		}
		if n < 0 {
			return nil, fmt.Errorf("cap for tier %d is negative", t)
		}
		c.caps[t] = n
	}

	for _, it := range items {
		if _, dup := c.items[it.ID]; dup {
			return nil, fmt.Errorf("item %s: %w", it.ID, ErrDuplicateID)
		}
		if !it.Tier.Valid() {
			return nil, fmt.Errorf("item %s: %w %d", it.ID, ErrInvalidTier, it.Tier)
		}
		if !slices.Contains(Biomes, it.Biome) {
			return nil, fmt.Errorf("item %s: %w %q", it.ID, ErrUnknownBiome, it.Biome)
		}
		if it.OpeningPrice < 0 {
			return nil, fmt.Errorf("item %s: negative opening price", it.ID)
		}
		it.Tags = slices.Clone(it.Tags)
		c.items[it.ID] = it
		c.itemOrder = append(c.itemOrder, it.ID)
	}

	for _, z := range zones {
		if _, dup := c.zones[z.ID]; dup {
			return nil, fmt.Errorf("zone %s: %w", z.ID, ErrDuplicateID)
		}
		if !slices.Contains(Biomes, z.FavoredBiome) || !slices.Contains(Biomes, z.ContinentBiome) {
			return nil, fmt.Errorf("zone %s: %w", z.ID, ErrUnknownBiome)
		}
		c.zones[z.ID] = z
		c.zoneOrder = append(c.zoneOrder, z.ID)
	}

	return c, nil
}

// Item returns the item with the given id.
func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Items returns every item in catalog order.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.itemOrder))
	for _, id := range c.itemOrder {
		out = append(out, c.items[id])
	}
	return out
}

// ItemsInTier returns the items of tier t in catalog order.
func (c *Catalog) ItemsInTier(t Tier) []Item {
	var out []Item
	for _, id := range c.itemOrder {
		if it := c.items[id]; it.Tier == t {
			out = append(out, it)
		}
	}
	return out
}

// Zone returns the zone with the given id.
func (c *Catalog) Zone(id string) (Zone, bool) {
	z, ok := c.zones[id]
	return z, ok
}

// Zones returns every zone in catalog order.
func (c *Catalog) Zones() []Zone {
	out := make([]Zone, 0, len(c.zoneOrder))
	for _, id := range c.zoneOrder {
		out = append(out, c.zones[id])
	}
	return out
}

// TierCap returns the per-zoo ownership cap for t. The second result is
// false when the tier is uncapped.
func (c *Catalog) TierCap(t Tier) (int, bool) {
	n, ok := c.caps[t]
	return n, ok
}
