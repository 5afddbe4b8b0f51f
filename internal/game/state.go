package game

import (
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// UnitView is the render-side copy of a unit.
type UnitView struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Kind        string `json:"kind"`
	Tier        int    `json:"tier"`
	Owner       int    `json:"owner"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"max_hp"`
	MovesLeft   int    `json:"moves_left"`
	MoveSpeed   int    `json:"move_speed"`
	HasAttacked bool   `json:"has_attacked"`
	Dead        bool   `json:"dead,omitempty"`
}

type BuildingView struct {
	Type        string `json:"type"`
	Owner       int    `json:"owner"`
	TurnsSeized int    `json:"turns_seized"`
	RazeAfter   int    `json:"raze_after"`
}

type TileView struct {
	X             int           `json:"x"`
	Y             int           `json:"y"`
	Terrain       string        `json:"terrain"`
	Hills         bool          `json:"hills,omitempty"`
	Unit          *UnitView     `json:"unit,omitempty"`
	Building      *BuildingView `json:"building,omitempty"`
	OverlayWalk   bool          `json:"overlay_walk,omitempty"`
	OverlayAttack bool          `json:"overlay_attack,omitempty"`
	Arrow         string        `json:"arrow,omitempty"`
}

// Snapshot is a value copy of everything a renderer needs. Mutating it
// never touches the battle.
type Snapshot struct {
	BattleID     string        `json:"battle_id"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Phase        string        `json:"phase"`
	Round        int           `json:"round"`
	ActivePlayer int           `json:"active_player"`
	Selected     *[2]int       `json:"selected,omitempty"`
	Winner       *int          `json:"winner,omitempty"`
	Players      []PlayerStats `json:"players"`
	Tiles        []TileView    `json:"tiles"`
}

func unitView(u *core.Unit) *UnitView {
	return &UnitView{
		ID:          int(u.ID),
		Type:        u.TypeID,
		Kind:        u.Kind.String(),
		Tier:        u.Tier,
		Owner:       int(u.Owner),
		HP:          u.HP,
		MaxHP:       u.Stats.MaxHP,
		MovesLeft:   u.MovesLeft,
		MoveSpeed:   u.MoveSpeed,
		HasAttacked: u.HasAttacked,
		Dead:        u.Dead,
	}
}

// Snapshot copies the current field in row-major order.
func (b *Battle) Snapshot() Snapshot {
	s := Snapshot{
		BattleID:     b.id,
		Width:        b.grid.W,
		Height:       b.grid.H,
		Phase:        b.Phase().String(),
		Round:        b.round,
		ActivePlayer: int(b.ActivePlayer()),
		Players:      b.PlayerStats(),
		Tiles:        make([]TileView, 0, b.grid.W*b.grid.H),
	}
	if sel := b.grid.SelectedTile(); !sel.IsInvalid() {
		s.Selected = &[2]int{sel.X, sel.Y}
	}
	if r, ok := b.Result(); ok {
		w := int(r.Winner)
		s.Winner = &w
	}

	b.grid.ForEach(func(t *core.Tile, x, y int) {
		tv := TileView{
			X:             x,
			Y:             y,
			Terrain:       t.Terrain.String(),
			Hills:         t.Hills,
			OverlayWalk:   t.OverlayWalk,
			OverlayAttack: t.OverlayAttack,
			Arrow:         t.Arrow.String(),
		}
		if u := b.grid.Unit(t.Occupant); u != nil {
			tv.Unit = unitView(u)
		}
		if bd := t.Building; bd != nil {
			tv.Building = &BuildingView{
				Type:        bd.TypeID,
				Owner:       int(bd.Owner),
				TurnsSeized: bd.TurnsSeized,
				RazeAfter:   bd.RazeAfter,
			}
		}
		s.Tiles = append(s.Tiles, tv)
	})
	return s
}
