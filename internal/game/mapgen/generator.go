package mapgen

import (
	"math/rand"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// MapConfig holds configuration for map generation. Ratios are "one per N
// tiles"; zero disables that feature.
type MapConfig struct {
	Width  int
	Height int

	// DeploymentRows at the top and bottom of the field stay plain so both
	// rosters can always deploy.
	DeploymentRows int

	ForestRatio   int
	SwampRatio    int
	HillsRatio    int
	MountainRatio int
	LakeRatio     int

	// DefenderBuildings are placed in the defender's half.
	DefenderBuildings []string
}

// DefaultMapConfig returns a sensible default configuration
func DefaultMapConfig(w, h int) MapConfig {
	return MapConfig{
		Width:          w,
		Height:         h,
		DeploymentRows: 1,
		ForestRatio:    8,
		SwampRatio:     20,
		HillsRatio:     10,
		MountainRatio:  16,
		LakeRatio:      24,
	}
}

// BuildingFactory stamps buildings with their raze threshold.
// *registry.Registry satisfies it.
type BuildingFactory interface {
	NewBuilding(typeID string, owner core.PlayerID, pos core.Coordinate) *core.Building
}

// Generator handles map generation with deterministic RNG
type Generator struct {
	config    MapConfig
	rng       *rand.Rand
	buildings BuildingFactory
}

// NewGenerator creates a new map generator. buildings may be nil when the
// config places none.
func NewGenerator(config MapConfig, rng *rand.Rand, buildings BuildingFactory) *Generator {
	return &Generator{
		config:    config,
		rng:       rng,
		buildings: buildings,
	}
}

// GenerateMap fills a fresh grid with terrain. Impassable tiles are only
// kept when every passable tile stays connected.
func (g *Generator) GenerateMap(rules core.TerrainRules, defender core.PlayerID) *core.Grid {
	grid := core.NewGrid(g.config.Width, g.config.Height, rules)

	g.scatter(grid, g.config.ForestRatio, core.TerrainForest, false)
	g.scatter(grid, g.config.SwampRatio, core.TerrainSwamp, false)
	g.placeHills(grid)
	g.scatter(grid, g.config.MountainRatio, core.TerrainMountain, true)
	g.scatter(grid, g.config.LakeRatio, core.TerrainLake, true)
	g.placeBuildings(grid, defender)

	return grid
}

// inDeploymentBand reports whether y is one of the rows reserved for deployment.
func (g *Generator) inDeploymentBand(y int) bool {
	rows := g.config.DeploymentRows
	return y < rows || y >= g.config.Height-rows
}

func (g *Generator) randomFreeTile(grid *core.Grid) (*core.Tile, bool) {
	x, y := g.rng.Intn(grid.W), g.rng.Intn(grid.H)
	if g.inDeploymentBand(y) {
		return nil, false
	}
	t, err := grid.Get(core.Coordinate{X: x, Y: y})
	if err != nil || t.Terrain != core.TerrainPlains || t.Building != nil {
		return nil, false
	}
	return t, true
}

func (g *Generator) scatter(grid *core.Grid, ratio int, terrain core.Terrain, blocking bool) {
	if ratio <= 0 || grid.W == 0 || grid.H == 0 {
		return
	}
	want := (grid.W * grid.H) / ratio
	placed := 0

	// Use a maximum attempt counter to avoid infinite loops
	maxAttempts := want * 10
	for attempts := 0; placed < want && attempts < maxAttempts; attempts++ {
		t, ok := g.randomFreeTile(grid)
		if !ok {
			continue
		}
		t.Terrain = terrain
		if blocking && !passableConnected(grid) {
			t.Terrain = core.TerrainPlains
			continue
		}
		placed++
	}
}

func (g *Generator) placeHills(grid *core.Grid) {
	if g.config.HillsRatio <= 0 {
		return
	}
	want := (grid.W * grid.H) / g.config.HillsRatio
	for attempts := 0; want > 0 && attempts < want*10; attempts++ {
		x, y := g.rng.Intn(grid.W), g.rng.Intn(grid.H)
		if g.inDeploymentBand(y) {
			continue
		}
		t, _ := grid.Get(core.Coordinate{X: x, Y: y})
		if t.Hills || (t.Terrain != core.TerrainPlains && t.Terrain != core.TerrainForest) {
			continue
		}
		t.Hills = true
		want--
	}
}

func (g *Generator) placeBuildings(grid *core.Grid, owner core.PlayerID) {
	if g.buildings == nil {
		return
	}
	for _, typeID := range g.config.DefenderBuildings {
		for attempts := 0; attempts < grid.W*grid.H; attempts++ {
			t, ok := g.randomFreeTile(grid)
			if !ok || t.Pos.Y < grid.H/2 {
				continue
			}
			t.Building = g.buildings.NewBuilding(typeID, owner, t.Pos)
			break
		}
	}
}

// passableConnected flood-fills from the first passable tile and reports
// whether it reached every passable tile.
func passableConnected(grid *core.Grid) bool {
	probe := core.NewBuilder("probe", 0, 0)
	total := 0
	start := -1
	grid.ForEach(func(t *core.Tile, x, y int) {
		if probe.PassableTerrain(t.Terrain) {
			if start < 0 {
				start = grid.Idx(t.Pos)
			}
			total++
		}
	})
	if start < 0 {
		return true
	}

	seen := make([]bool, grid.W*grid.H)
	seen[start] = true
	stack := []core.Coordinate{core.FromIndex(start, grid.W)}
	reached := 0
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		for _, n := range c.Neighbors() {
			t, err := grid.Get(n)
			if err != nil || seen[grid.Idx(n)] || !probe.PassableTerrain(t.Terrain) {
				continue
			}
			seen[grid.Idx(n)] = true
			stack = append(stack, n)
		}
	}
	return reached == total
}
