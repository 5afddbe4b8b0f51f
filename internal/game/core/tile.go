package core

// Arrow is a path hint drawn by renderers on the tiles of the last movement.
type Arrow uint8

const (
	ArrowNone Arrow = iota
	ArrowNorth
	ArrowEast
	ArrowSouth
	ArrowWest
	ArrowEnd
)

var arrowNames = [...]string{"", "north", "east", "south", "west", "end"}

func (a Arrow) String() string {
	if int(a) < len(arrowNames) {
		return arrowNames[a]
	}
	return ""
}

// ArrowBetween returns the hint pointing from one tile to an adjacent one.
func ArrowBetween(from, to Coordinate) Arrow {
	switch d := to.Sub(from); d {
	case Coordinate{X: 0, Y: -1}:
		return ArrowNorth
	case Coordinate{X: 1, Y: 0}:
		return ArrowEast
	case Coordinate{X: 0, Y: 1}:
		return ArrowSouth
	case Coordinate{X: -1, Y: 0}:
		return ArrowWest
	}
	return ArrowNone
}

// Tile is one grid cell. Occupant is a handle into the Grid's unit arena,
// so a Tile never owns a Unit.
type Tile struct {
	Pos      Coordinate
	Terrain  Terrain
	Hills    bool
	Occupant UnitID
	Building *Building

	OverlayWalk   bool
	OverlayAttack bool
	Arrow         Arrow
}

func (t *Tile) Occupied() bool { return t.Occupant != NoUnit }

func (t *Tile) ClearOverlays() {
	t.OverlayWalk = false
	t.OverlayAttack = false
	t.Arrow = ArrowNone
}
