package core

// Player carries identity only; economy and stats live outside the battle core.
type Player struct {
	ID        PlayerID
	Name      string
	ColorName string
}

// UnitCount is one entry of an Army's ordered roster.
type UnitCount struct {
	TypeID string
	Count  int
}

// Army groups one player's units. It does not own them; the Grid arena does
// once they are placed. Type order is insertion order and drives deployment.
type Army struct {
	Owner    PlayerID
	Pos      Coordinate
	order    []string
	counts   map[string]int
	soldiers []*Unit
}

func NewArmy(owner PlayerID) *Army {
	return &Army{
		Owner:  owner,
		Pos:    InvalidCoordinate,
		counts: make(map[string]int),
	}
}

// Add records n more units of typeID without concrete instances.
func (a *Army) Add(typeID string, n int) {
	if n <= 0 {
		return
	}
	if _, ok := a.counts[typeID]; !ok {
		a.order = append(a.order, typeID)
	}
	a.counts[typeID] += n
}

// AddSoldier records a concrete unit and bumps its type count.
func (a *Army) AddSoldier(u *Unit) {
	if u == nil {
		return
	}
	a.Add(u.TypeID, 1)
	a.soldiers = append(a.soldiers, u)
}

func (a *Army) UnitsAndCounts() []UnitCount {
	out := make([]UnitCount, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, UnitCount{TypeID: id, Count: a.counts[id]})
	}
	return out
}

func (a *Army) Count(typeID string) int { return a.counts[typeID] }

func (a *Army) TotalCount() int {
	total := 0
	for _, n := range a.counts {
		total += n
	}
	return total
}

// Soldiers returns the concrete instances in the order they were added.
func (a *Army) Soldiers() []*Unit {
	out := make([]*Unit, len(a.soldiers))
	copy(out, a.soldiers)
	return out
}
