package game

import (
	"errors"
	"fmt"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
)

// ClickOutcome reports what HandleClick did.
type ClickOutcome int

const (
	ClickIgnored ClickOutcome = iota
	ClickSelected
	ClickDeselected
	ClickMoved
	ClickAttacked
	ClickRejected
)

func (o ClickOutcome) String() string {
	switch o {
	case ClickSelected:
		return "selected"
	case ClickDeselected:
		return "deselected"
	case ClickMoved:
		return "moved"
	case ClickAttacked:
		return "attacked"
	case ClickRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// SelectTile selects pos and marks overlays when it holds a unit of the
// active player that can still act. Anything else clears the selection.
func (b *Battle) SelectTile(pos core.Coordinate) bool {
	u := b.grid.UnitAt(pos)
	if b.requireCommands() != nil || u == nil || u.Owner != b.ActivePlayer() || !u.HasAction() {
		b.grid.SelectTile(core.InvalidCoordinate)
		return false
	}

	b.grid.SelectTile(pos)
	if !u.HasMoved() && u.Caps.Movable {
		b.legalMoves.MarkWalkOverlay(b.grid, b.pathfinder.ReachableTiles(u))
	}
	if u.CanAttack() {
		b.legalMoves.MarkAttackOverlay(b.grid, u)
	}
	return true
}

// SelectedUnit returns the unit on the selected tile, if any.
func (b *Battle) SelectedUnit() *core.Unit {
	return b.grid.UnitAt(b.grid.SelectedTile())
}

// HandleClick is the move-or-attack interaction. With an own unit selected
// it first tries the truncated move towards pos and, only if the unit did
// not move, an attack on pos. At most one of the two happens. Without a
// selection the click selects.
func (b *Battle) HandleClick(pos core.Coordinate) ClickOutcome {
	if b.requireCommands() != nil {
		return ClickIgnored
	}

	sel := b.SelectedUnit()
	if sel == nil || sel.Owner != b.ActivePlayer() || sel.Dead {
		if b.SelectTile(pos) {
			return ClickSelected
		}
		return ClickIgnored
	}
	if pos == sel.Pos {
		b.grid.SelectTile(core.InvalidCoordinate)
		return ClickDeselected
	}

	// another own unit that can still act switches the selection
	if other := b.grid.UnitAt(pos); other != nil && other.Owner == sel.Owner && other.HasAction() {
		b.SelectTile(pos)
		return ClickSelected
	}

	sel.Target = pos
	if dest := b.pathfinder.MoveTowardsTarget(sel); dest != sel.Pos && b.MoveUnit(dest, sel) {
		b.grid.SelectTile(core.InvalidCoordinate)
		b.markArrows(sel)
		return ClickMoved
	}
	if sel.IsSoldier() && b.Attack(pos, sel) {
		sel.Target = core.InvalidCoordinate
		b.grid.SelectTile(core.InvalidCoordinate)
		return ClickAttacked
	}
	return ClickRejected
}

// ErrClickRejected is returned by ClickTile when a selected unit could
// neither move nor attack.
var ErrClickRejected = errors.New("click rejected")

// ClickTile is HandleClick for command batches: selections, moves and
// attacks succeed, everything else is an error.
func (b *Battle) ClickTile(pos core.Coordinate) error {
	if err := b.requireCommands(); err != nil {
		return err
	}
	switch b.HandleClick(pos) {
	case ClickIgnored:
		return core.ErrNoSelection
	case ClickRejected:
		return ErrClickRejected
	}
	return nil
}

// MoveUnit walks u to pos along the cheapest path when the whole path fits
// its remaining moves.
func (b *Battle) MoveUnit(pos core.Coordinate, u *core.Unit) bool {
	if u == nil {
		return b.reject("move", b.ActivePlayer(), pos, core.ErrUnknownUnit)
	}
	if err := b.checkActor(u); err != nil {
		return b.reject("move", u.Owner, pos, err)
	}
	if pos == u.Pos || !u.Caps.Movable || u.HasMoved() {
		return b.reject("move", u.Owner, pos, fmt.Errorf("unit %d cannot move", u.ID))
	}
	tile, err := b.grid.Get(pos)
	if err != nil {
		return b.reject("move", u.Owner, pos, err)
	}
	if tile.Occupied() {
		return b.reject("move", u.Owner, pos, core.ErrOccupiedTile)
	}
	path, err := b.pathfinder.ShortestPath(u, pos)
	if err != nil {
		return b.reject("move", u.Owner, pos, err)
	}
	if path.Cost > u.MovesLeft {
		return b.reject("move", u.Owner, pos,
			fmt.Errorf("%w: needs %d moves, %d left", core.ErrUnreachable, path.Cost, u.MovesLeft))
	}

	from := u.Pos
	if err := b.grid.RelocateUnit(u, pos); err != nil {
		return b.reject("move", u.Owner, pos, err)
	}
	u.MovesLeft -= path.Cost
	b.lastPath = append(b.lastPath[:0], from)
	b.lastPath = append(b.lastPath, path.Steps...)

	b.logger.Debug().
		Int("unit", int(u.ID)).
		Stringer("from", from).
		Stringer("to", pos).
		Int("cost", path.Cost).
		Int("moves_left", u.MovesLeft).
		Msg("Unit moved")
	b.eventBus.Publish(events.NewUnitMovedEvent(b.id, b.round, u, from, path.Steps, path.Cost))
	return true
}

// markArrows draws the last walked path for renderers. Selection clears it.
func (b *Battle) markArrows(u *core.Unit) {
	if len(b.lastPath) == 0 || b.lastPath[len(b.lastPath)-1] != u.Pos {
		return
	}
	for i := 0; i+1 < len(b.lastPath); i++ {
		if t, err := b.grid.Get(b.lastPath[i]); err == nil {
			t.Arrow = core.ArrowBetween(b.lastPath[i], b.lastPath[i+1])
		}
	}
	if t, err := b.grid.Get(u.Pos); err == nil {
		t.Arrow = core.ArrowEnd
	}
}
