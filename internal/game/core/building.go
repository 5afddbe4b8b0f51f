package core

// SiegeResult reports what one turn step did to a building.
type SiegeResult int

const (
	SiegeNone SiegeResult = iota
	SiegeLifted
	SiegeAdvanced
	SiegeRazed
)

func (r SiegeResult) String() string {
	switch r {
	case SiegeLifted:
		return "lifted"
	case SiegeAdvanced:
		return "advanced"
	case SiegeRazed:
		return "razed"
	default:
		return "none"
	}
}

// Building sits on a tile and knows its own position; the tile holds the pointer.
type Building struct {
	TypeID      string
	Owner       PlayerID
	Pos         Coordinate
	TurnsSeized int
	// RazeAfter is the number of seized turns tolerated before the building is razed.
	RazeAfter int
}

func NewBuilding(typeID string, owner PlayerID, pos Coordinate, razeAfter int) *Building {
	return &Building{TypeID: typeID, Owner: owner, Pos: pos, RazeAfter: razeAfter}
}

// SiegeStep runs once per turn with the newly active player and the tile's
// occupant (nil if empty). The counter only advances on the owner's turn,
// i.e. after the besieging side has held the tile through a full round.
func (b *Building) SiegeStep(active PlayerID, occupant *Unit) SiegeResult {
	if occupant == nil || occupant.Dead || occupant.Owner == b.Owner {
		if b.TurnsSeized > 0 {
			b.TurnsSeized = 0
			return SiegeLifted
		}
		return SiegeNone
	}
	if active != b.Owner {
		return SiegeNone
	}
	if b.TurnsSeized >= b.RazeAfter {
		return SiegeRazed
	}
	b.TurnsSeized++
	return SiegeAdvanced
}
