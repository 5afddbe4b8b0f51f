package core

import (
	"fmt"
	"strings"
)

// Terrain is the movement/passability class of a tile. Values are persisted in
// the low 7 bits of a tile byte, so they must stay below 0x80.
type Terrain uint8

const (
	TerrainPlains Terrain = iota
	TerrainForest
	TerrainSwamp
	TerrainMountain
	TerrainLake
	TerrainDesert
	TerrainDesertMountain
	TerrainTundra
	TerrainTundraMountain

	terrainCount
)

var terrainNames = [...]string{
	TerrainPlains:         "plains",
	TerrainForest:         "forest",
	TerrainSwamp:          "swamp",
	TerrainMountain:       "mountain",
	TerrainLake:           "lake",
	TerrainDesert:         "desert",
	TerrainDesertMountain: "desert_mountain",
	TerrainTundra:         "tundra",
	TerrainTundraMountain: "tundra_mountain",
}

// AllTerrains lists every terrain in id order.
func AllTerrains() []Terrain {
	out := make([]Terrain, 0, terrainCount)
	for t := Terrain(0); t < terrainCount; t++ {
		out = append(out, t)
	}
	return out
}

func (t Terrain) Valid() bool { return t < terrainCount }

func (t Terrain) String() string {
	if !t.Valid() {
		return fmt.Sprintf("terrain(%d)", uint8(t))
	}
	return terrainNames[t]
}

// ParseTerrain accepts the config names ("desert_mountain"), case-insensitive.
func ParseTerrain(s string) (Terrain, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range terrainNames {
		if n == name {
			return Terrain(i), nil
		}
	}
	return 0, fmt.Errorf("unknown terrain %q", s)
}

// TerrainRules is the injected balance lookup. The core never hard-codes
// costs or bonuses; config builds a TerrainTable from the config file.
type TerrainRules interface {
	BaseCost(t Terrain) int
	DefenseBonus(t Terrain, hills bool) int
	DodgeBonus(t Terrain, hills bool) int
}

// TerrainTable is a map-backed TerrainRules.
type TerrainTable struct {
	Costs        map[Terrain]int
	Defense      map[Terrain]int
	Dodge        map[Terrain]int
	HillsDefense int
	HillsDodge   int
}

// BaseCost falls back to 1 for terrains missing from the table.
func (tt *TerrainTable) BaseCost(t Terrain) int {
	if c, ok := tt.Costs[t]; ok && c > 0 {
		return c
	}
	return 1
}

func (tt *TerrainTable) DefenseBonus(t Terrain, hills bool) int {
	bonus := tt.Defense[t]
	if hills {
		bonus += tt.HillsDefense
	}
	return bonus
}

func (tt *TerrainTable) DodgeBonus(t Terrain, hills bool) int {
	bonus := tt.Dodge[t]
	if hills {
		bonus += tt.HillsDodge
	}
	return bonus
}

// FlatTerrain costs 1 everywhere with no bonuses. Handy for tests.
func FlatTerrain() *TerrainTable {
	return &TerrainTable{}
}
