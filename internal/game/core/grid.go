package core

import (
	"fmt"
	"math"
	"sort"
)

// Infinity is the cost of a tile a unit cannot enter.
const Infinity = math.MaxInt32

// Grid owns the tiles of one battle and the arena of units standing on them.
type Grid struct {
	W, H  int
	tiles []Tile // row-major, len W*H

	units    map[UnitID]*Unit
	nextID   UnitID
	selected Coordinate
	rules    TerrainRules
}

// NewGrid returns a plains grid. A nil rules falls back to FlatTerrain.
func NewGrid(w, h int, rules TerrainRules) *Grid {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if rules == nil {
		rules = FlatTerrain()
	}
	g := &Grid{
		W:        w,
		H:        h,
		tiles:    make([]Tile, w*h),
		units:    make(map[UnitID]*Unit),
		selected: InvalidCoordinate,
		rules:    rules,
	}
	g.InitField()
	return g
}

func (g *Grid) Rules() TerrainRules { return g.rules }

func (g *Grid) SetRules(r TerrainRules) {
	if r != nil {
		g.rules = r
	}
}

func (g *Grid) Idx(c Coordinate) int { return c.ToIndex(g.W) }

func (g *Grid) IsInGrid(c Coordinate) bool { return c.IsValid(g.W, g.H) }

// InitField resets every tile to plains with no hills. Units on the field
// are released.
func (g *Grid) InitField() {
	for i := range g.tiles {
		g.tiles[i] = Tile{Pos: FromIndex(i, g.W), Terrain: TerrainPlains}
	}
	g.units = make(map[UnitID]*Unit)
	g.selected = InvalidCoordinate
}

// Get returns the live tile at c.
func (g *Grid) Get(c Coordinate) (*Tile, error) {
	if !g.IsInGrid(c) {
		return nil, fmt.Errorf("get %s: %w", c, ErrOutOfBounds)
	}
	return &g.tiles[g.Idx(c)], nil
}

// Set copies terrain, hills, building and overlays from t. Occupancy only
// changes through SetUnit.
func (g *Grid) Set(c Coordinate, t Tile) error {
	cur, err := g.Get(c)
	if err != nil {
		return err
	}
	if t.Occupant != NoUnit && t.Occupant != cur.Occupant {
		return fmt.Errorf("set %s: %w", c, ErrOccupiedTile)
	}
	cur.Terrain = t.Terrain
	cur.Hills = t.Hills
	cur.Building = t.Building
	if cur.Building != nil {
		cur.Building.Pos = c
	}
	cur.OverlayWalk = t.OverlayWalk
	cur.OverlayAttack = t.OverlayAttack
	cur.Arrow = t.Arrow
	return nil
}

// ForEach visits tiles row by row (y outer, x inner).
func (g *Grid) ForEach(visit func(t *Tile, x, y int)) {
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			visit(&g.tiles[y*g.W+x], x, y)
		}
	}
}

// SelectTile clears every overlay and stores c. Anything outside the grid
// stores InvalidCoordinate.
func (g *Grid) SelectTile(c Coordinate) {
	g.ClearOverlays()
	if !g.IsInGrid(c) {
		c = InvalidCoordinate
	}
	g.selected = c
}

func (g *Grid) SelectedTile() Coordinate { return g.selected }

func (g *Grid) ClearOverlays() {
	for i := range g.tiles {
		g.tiles[i].ClearOverlays()
	}
}

// UnitAt returns the unit standing on c, dead or alive.
func (g *Grid) UnitAt(c Coordinate) *Unit {
	if !g.IsInGrid(c) {
		return nil
	}
	id := g.tiles[g.Idx(c)].Occupant
	if id == NoUnit {
		return nil
	}
	return g.units[id]
}

func (g *Grid) Unit(id UnitID) *Unit { return g.units[id] }

// Units returns the arena sorted by id.
func (g *Grid) Units() []*Unit {
	out := make([]*Unit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetUnit places u on c. It is a no-op returning false when c is outside the
// grid or already hosts a unit. A nil u clears the tile and releases the
// previous occupant from the arena.
func (g *Grid) SetUnit(c Coordinate, u *Unit) bool {
	t, err := g.Get(c)
	if err != nil {
		return false
	}
	if u == nil {
		if t.Occupied() {
			g.release(t)
		}
		return true
	}
	if t.Occupied() {
		return false
	}
	if u.ID != NoUnit {
		if existing, ok := g.units[u.ID]; ok && g.IsInGrid(existing.Pos) {
			panic(&InvariantError{Op: "SetUnit", Pos: c, Unit: u.ID, Err: ErrDuplicateOccupant})
		}
	} else {
		g.nextID++
		u.ID = g.nextID
	}
	if u.ID > g.nextID {
		g.nextID = u.ID
	}
	g.units[u.ID] = u
	t.Occupant = u.ID
	u.Pos = c
	return true
}

// RemoveUnit clears u's tile and drops it from the arena in one step.
func (g *Grid) RemoveUnit(u *Unit) {
	if u == nil {
		return
	}
	if t, err := g.Get(u.Pos); err == nil && t.Occupant == u.ID {
		t.Occupant = NoUnit
	}
	delete(g.units, u.ID)
	u.Pos = InvalidCoordinate
}

func (g *Grid) release(t *Tile) {
	if u, ok := g.units[t.Occupant]; ok {
		u.Pos = InvalidCoordinate
		delete(g.units, t.Occupant)
	}
	t.Occupant = NoUnit
}

// RelocateUnit moves an arena unit to an empty tile.
func (g *Grid) RelocateUnit(u *Unit, to Coordinate) error {
	dst, err := g.Get(to)
	if err != nil {
		return err
	}
	if dst.Occupied() {
		return fmt.Errorf("relocate to %s: %w", to, ErrOccupiedTile)
	}
	src, err := g.Get(u.Pos)
	if err != nil || src.Occupant != u.ID {
		panic(&InvariantError{Op: "RelocateUnit", Pos: u.Pos, Unit: u.ID, Err: ErrDuplicateOccupant})
	}
	src.Occupant = NoUnit
	dst.Occupant = u.ID
	u.Pos = to
	return nil
}

// Passable reports whether u may enter c. A living enemy soldier or any
// enemy non-soldier blocks; a corpse does not. The terrain rule of u applies
// in every case.
func (g *Grid) Passable(c Coordinate, u *Unit) bool {
	t, err := g.Get(c)
	if err != nil {
		return false
	}
	if occ := g.UnitAt(c); occ != nil && occ.Owner != u.Owner {
		if !occ.IsSoldier() || occ.IsAlive() {
			return false
		}
	}
	return u.PassableTerrain(t.Terrain)
}

// Cost of u entering c: Infinity when impassable, 1 for flat-cost units,
// otherwise the terrain base cost plus one for hills.
func (g *Grid) Cost(c Coordinate, u *Unit) int {
	if !g.Passable(c, u) {
		return Infinity
	}
	if u.Caps.FlatCost {
		return 1
	}
	t := &g.tiles[g.Idx(c)]
	cost := g.rules.BaseCost(t.Terrain)
	if t.Hills {
		cost++
	}
	return cost
}

func (g *Grid) DefenseBonus(c Coordinate) int {
	t, err := g.Get(c)
	if err != nil {
		return 0
	}
	return g.rules.DefenseBonus(t.Terrain, t.Hills)
}

func (g *Grid) DodgeBonus(c Coordinate) int {
	t, err := g.Get(c)
	if err != nil {
		return 0
	}
	return g.rules.DodgeBonus(t.Terrain, t.Hills)
}

func (g *Grid) ClearAllTargetPositions() {
	for _, u := range g.units {
		u.Target = InvalidCoordinate
	}
}

// CheckConsistency verifies tile positions and that tiles and the arena agree
// on who stands where.
func (g *Grid) CheckConsistency() error {
	seen := make(map[UnitID]Coordinate, len(g.units))
	for i := range g.tiles {
		t := &g.tiles[i]
		want := FromIndex(i, g.W)
		if t.Pos != want {
			return &InvariantError{Op: "CheckConsistency", Pos: want, Err: ErrOutOfBounds}
		}
		if !t.Occupied() {
			continue
		}
		u, ok := g.units[t.Occupant]
		if !ok || u.Pos != t.Pos {
			return &InvariantError{Op: "CheckConsistency", Pos: t.Pos, Unit: t.Occupant, Err: ErrDuplicateOccupant}
		}
		if _, dup := seen[t.Occupant]; dup {
			return &InvariantError{Op: "CheckConsistency", Pos: t.Pos, Unit: t.Occupant, Err: ErrDuplicateOccupant}
		}
		seen[t.Occupant] = t.Pos
	}
	if len(seen) != len(g.units) {
		return &InvariantError{Op: "CheckConsistency", Pos: InvalidCoordinate, Err: ErrDuplicateOccupant}
	}
	return nil
}

// MustBeConsistent panics on a corrupted grid.
func (g *Grid) MustBeConsistent() {
	if err := g.CheckConsistency(); err != nil {
		panic(err)
	}
}
