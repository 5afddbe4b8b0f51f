package pathfinding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

func place(t *testing.T, g *core.Grid, owner core.PlayerID, at core.Coordinate, moves int) *core.Unit {
	t.Helper()
	u := core.NewSoldier("spearman", owner, 1, moves, core.CombatStats{MaxHP: 10, Range: core.Range{Min: 1, Max: 1}})
	require.True(t, g.SetUnit(at, u))
	return u
}

func setTerrain(t *testing.T, g *core.Grid, terrain core.Terrain, at ...core.Coordinate) {
	t.Helper()
	for _, c := range at {
		require.NoError(t, g.Set(c, core.Tile{Terrain: terrain}))
	}
}

func TestShortestPath_Basic(t *testing.T) {
	g := core.NewGrid(5, 5, nil)
	u := place(t, g, 1, core.Coordinate{X: 0, Y: 0}, 3)

	path, err := ShortestPath(g, u, core.Coordinate{X: 2, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, []core.Coordinate{{X: 1, Y: 0}, {X: 2, Y: 0}}, path.Steps)
	assert.Equal(t, 2, path.Cost)
	assert.Equal(t, core.Coordinate{X: 2, Y: 0}, path.Last())
}

func TestShortestPath_TieBreakFollowsNeighborOrder(t *testing.T) {
	g := core.NewGrid(4, 4, nil)
	u := place(t, g, 1, core.Coordinate{X: 0, Y: 0}, 5)

	path, err := ShortestPath(g, u, core.Coordinate{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, []core.Coordinate{{X: 1, Y: 0}, {X: 1, Y: 1}}, path.Steps, "east is discovered before south")
}

func TestShortestPath_Deterministic(t *testing.T) {
	g := core.NewGrid(8, 8, &core.TerrainTable{Costs: map[core.Terrain]int{core.TerrainForest: 2}})
	setTerrain(t, g, core.TerrainForest, core.Coordinate{X: 3, Y: 3}, core.Coordinate{X: 4, Y: 2}, core.Coordinate{X: 2, Y: 5})
	setTerrain(t, g, core.TerrainLake, core.Coordinate{X: 5, Y: 5}, core.Coordinate{X: 5, Y: 4})
	u := place(t, g, 1, core.Coordinate{X: 1, Y: 1}, 20)

	first, err := ShortestPath(g, u, core.Coordinate{X: 7, Y: 6})
	require.NoError(t, err)
	second, err := ShortestPath(g, u, core.Coordinate{X: 7, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, core.Coordinate{X: 1, Y: 1}, u.Pos, "pathfinding must not move the unit")
}

func TestShortestPath_TerrainCosts(t *testing.T) {
	rules := &core.TerrainTable{Costs: map[core.Terrain]int{core.TerrainSwamp: 5}}
	g := core.NewGrid(3, 2, rules)
	setTerrain(t, g, core.TerrainSwamp, core.Coordinate{X: 1, Y: 0})
	require.NoError(t, g.Set(core.Coordinate{X: 1, Y: 1}, core.Tile{Terrain: core.TerrainPlains, Hills: true}))
	u := place(t, g, 1, core.Coordinate{X: 0, Y: 0}, 10)

	path, err := ShortestPath(g, u, core.Coordinate{X: 2, Y: 0})
	require.NoError(t, err)
	// swamp route costs 5+1, the hills detour 1+2+1+1
	assert.Equal(t, 5, path.Cost)
	assert.Equal(t, []core.Coordinate{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 0}}, path.Steps)
}

func TestShortestPath_Errors(t *testing.T) {
	g := core.NewGrid(4, 4, nil)
	setTerrain(t, g, core.TerrainLake, core.Coordinate{X: 2, Y: 3}, core.Coordinate{X: 3, Y: 2})
	u := place(t, g, 1, core.Coordinate{X: 0, Y: 0}, 3)

	_, err := ShortestPath(g, u, core.Coordinate{X: 3, Y: 3})
	assert.ErrorIs(t, err, core.ErrUnreachable)

	_, err = ShortestPath(g, u, core.Coordinate{X: 4, Y: 0})
	assert.ErrorIs(t, err, core.ErrOutOfBounds)

	path, err := ShortestPath(g, u, u.Pos)
	require.NoError(t, err)
	assert.Equal(t, 0, path.Cost)
	assert.Empty(t, path.Steps)
	assert.Equal(t, core.InvalidCoordinate, path.Last())

	_, err = ShortestPath(g, u, core.Coordinate{X: 2, Y: 3})
	assert.ErrorIs(t, err, core.ErrUnreachable, "impassable target")
}

func TestShortestPath_CorpseIsPassable(t *testing.T) {
	g := core.NewGrid(5, 5, nil)
	setTerrain(t, g, core.TerrainLake, core.Coordinate{X: 1, Y: 2}, core.Coordinate{X: 3, Y: 2})
	mover := place(t, g, 1, core.Coordinate{X: 2, Y: 1}, 3)
	corpse := place(t, g, 2, core.Coordinate{X: 2, Y: 2}, 3)
	corpse.TakeDamage(corpse.HP)
	require.True(t, corpse.Dead)

	path, err := ShortestPath(g, mover, core.Coordinate{X: 2, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, []core.Coordinate{{X: 2, Y: 2}, {X: 2, Y: 3}}, path.Steps)
	assert.Equal(t, 2, path.Cost)
	assert.LessOrEqual(t, path.Cost, mover.MovesLeft)

	corpse.Dead = false
	corpse.HP = 10
	path, err = ShortestPath(g, mover, core.Coordinate{X: 2, Y: 3})
	require.NoError(t, err)
	assert.NotContains(t, path.Steps, core.Coordinate{X: 2, Y: 2})
	assert.Equal(t, 6, path.Cost)
}

func TestReachableTiles(t *testing.T) {
	g := core.NewGrid(5, 5, nil)
	u := place(t, g, 1, core.Coordinate{X: 2, Y: 2}, 1)

	assert.Equal(t, []core.Coordinate{{X: 2, Y: 1}, {X: 1, Y: 2}, {X: 3, Y: 2}, {X: 2, Y: 3}}, ReachableTiles(g, u))

	u.MovesLeft = 2
	assert.Len(t, ReachableTiles(g, u), 12)

	u.MovesLeft = 0
	assert.Empty(t, ReachableTiles(g, u))
}

func TestReachableTiles_Monotonic(t *testing.T) {
	g := core.NewGrid(7, 7, &core.TerrainTable{Costs: map[core.Terrain]int{core.TerrainForest: 2}})
	setTerrain(t, g, core.TerrainForest, core.Coordinate{X: 3, Y: 2}, core.Coordinate{X: 2, Y: 3}, core.Coordinate{X: 4, Y: 4})
	setTerrain(t, g, core.TerrainMountain, core.Coordinate{X: 3, Y: 4})
	u := place(t, g, 1, core.Coordinate{X: 3, Y: 3}, 0)
	place(t, g, 1, core.Coordinate{X: 4, Y: 3}, 0)
	place(t, g, 2, core.Coordinate{X: 1, Y: 1}, 0)

	var prev []core.Coordinate
	for moves := 0; moves <= 6; moves++ {
		u.MovesLeft = moves
		cur := ReachableTiles(g, u)
		for _, c := range prev {
			assert.Contains(t, cur, c, "moves=%d lost %s", moves, c)
		}
		assert.NotContains(t, cur, core.Coordinate{X: 4, Y: 3}, "cannot stop on an ally")
		assert.NotContains(t, cur, core.Coordinate{X: 3, Y: 3})
		prev = cur
	}
}

func TestPolicy_AllyPassThrough(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		blocker core.PlayerID
		want    []core.Coordinate
	}{
		{"pass through ally", Policy{AllyPassThrough: true}, 1, []core.Coordinate{{X: 2, Y: 0}}},
		{"allies block", Policy{AllyPassThrough: false}, 1, nil},
		{"enemy blocks", Policy{AllyPassThrough: true}, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := core.NewGrid(3, 1, nil)
			u := place(t, g, 1, core.Coordinate{X: 0, Y: 0}, 2)
			place(t, g, tt.blocker, core.Coordinate{X: 1, Y: 0}, 2)

			got := New(g, tt.policy).ReachableTiles(u)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoveTowardsTarget(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, g *core.Grid)
		target core.Coordinate
		want   core.Coordinate
	}{
		{"truncated to budget", nil, core.Coordinate{X: 5, Y: 0}, core.Coordinate{X: 3, Y: 0}},
		{"within budget", nil, core.Coordinate{X: 2, Y: 0}, core.Coordinate{X: 2, Y: 0}},
		{"backs off an occupied stop", func(t *testing.T, g *core.Grid) {
			place(t, g, 1, core.Coordinate{X: 3, Y: 0}, 1)
		}, core.Coordinate{X: 5, Y: 0}, core.Coordinate{X: 2, Y: 0}},
		{"unreachable stays", func(t *testing.T, g *core.Grid) {
			setTerrain(t, g, core.TerrainLake, core.Coordinate{X: 4, Y: 0})
		}, core.Coordinate{X: 5, Y: 0}, core.Coordinate{X: 0, Y: 0}},
		{"no target stays", nil, core.InvalidCoordinate, core.Coordinate{X: 0, Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := core.NewGrid(6, 1, nil)
			if tt.setup != nil {
				tt.setup(t, g)
			}
			u := place(t, g, 1, core.Coordinate{X: 0, Y: 0}, 3)
			u.Target = tt.target
			assert.Equal(t, tt.want, MoveTowardsTarget(g, u))
		})
	}
}

func BenchmarkShortestPath(b *testing.B) {
	g := core.NewGrid(32, 32, nil)
	u := core.NewSoldier("spearman", 1, 1, 100, core.CombatStats{})
	g.SetUnit(core.Coordinate{X: 0, Y: 0}, u)
	target := core.Coordinate{X: 31, Y: 31}
	for i := 0; i < b.N; i++ {
		_, _ = ShortestPath(g, u, target)
	}
}
