package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/registry"
)

// Attacker and Defender are the two players most tests fight with.
var (
	Attacker = core.Player{ID: 1, Name: "red", ColorName: "red"}
	Defender = core.Player{ID: 2, Name: "blue", ColorName: "blue"}
)

// CreateTestGrid returns a plains grid with flat terrain rules.
func CreateTestGrid(width, height int) *core.Grid {
	return core.NewGrid(width, height, core.FlatTerrain())
}

// CreateTestGridWithTerrain sets the given terrain on top of a plains grid.
func CreateTestGridWithTerrain(t *testing.T, width, height int, terrain map[core.Coordinate]core.Terrain) *core.Grid {
	t.Helper()
	g := CreateTestGrid(width, height)
	for c, tr := range terrain {
		require.NoError(t, g.Set(c, core.Tile{Terrain: tr}))
	}
	return g
}

// PlaceUnit stamps a unit from the default registry and puts it on the grid.
func PlaceUnit(t *testing.T, g *core.Grid, name string, owner core.PlayerID, at core.Coordinate) *core.Unit {
	t.Helper()
	u, err := registry.Default().Get(name, owner)
	require.NoError(t, err)
	require.True(t, g.SetUnit(at, u), "place %s at %s", name, at)
	return u
}

// CreateArmy builds an army from alternating type names and counts, in order.
func CreateArmy(owner core.PlayerID, entries ...any) *core.Army {
	a := core.NewArmy(owner)
	for i := 0; i+1 < len(entries); i += 2 {
		a.Add(entries[i].(string), entries[i+1].(int))
	}
	return a
}
