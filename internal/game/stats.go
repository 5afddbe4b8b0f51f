package game

// PlayerStats summarises one side for scoreboards and the demo.
type PlayerStats struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Units      int    `json:"units"`
	TotalHP    int    `json:"total_hp"`
	ReadyUnits int    `json:"ready_units"`
	IsActive   bool   `json:"is_active"`
}

// PlayerStats counts living units per player with one pass over the arena.
func (b *Battle) PlayerStats() []PlayerStats {
	out := make([]PlayerStats, len(b.players))
	index := make(map[int]int, len(b.players))
	for i, p := range b.players {
		out[i] = PlayerStats{ID: int(p.ID), Name: p.Name, IsActive: i == b.active}
		index[int(p.ID)] = i
	}
	for _, u := range b.grid.Units() {
		i, ok := index[int(u.Owner)]
		if !ok || !u.IsAlive() {
			continue
		}
		out[i].Units++
		out[i].TotalHP += u.HP
		if u.HasAction() {
			out[i].ReadyUnits++
		}
	}
	return out
}

// HasPendingActions reports whether the active player still has a unit that
// can move or attack.
func (b *Battle) HasPendingActions() bool {
	return b.PlayerStats()[b.active].ReadyUnits > 0
}
