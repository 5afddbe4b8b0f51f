package core

// UnitID is a stable handle into the Grid's unit arena. Zero means "no unit".
type UnitID int

const NoUnit UnitID = 0

// PlayerID identifies a battle participant.
type PlayerID int

// Kind is the closed set of unit roles.
type Kind uint8

const (
	KindSoldier Kind = iota
	KindBuilder
)

func (k Kind) String() string {
	switch k {
	case KindSoldier:
		return "soldier"
	case KindBuilder:
		return "builder"
	default:
		return "unknown"
	}
}

// Capabilities is resolved from Kind once, at construction.
type Capabilities struct {
	Movable   bool
	Combatant bool
	// FlatCost units pay 1 per tile regardless of terrain.
	FlatCost bool
}

func (k Kind) Capabilities() Capabilities {
	switch k {
	case KindSoldier:
		return Capabilities{Movable: true, Combatant: true}
	case KindBuilder:
		return Capabilities{Movable: true, FlatCost: true}
	default:
		return Capabilities{}
	}
}

// Range is an inclusive Manhattan distance band.
type Range struct {
	Min, Max int
}

func (r Range) Contains(distance int) bool {
	return distance >= r.Min && distance <= r.Max
}

// CombatStats are the template numbers a CombatResolver works with.
type CombatStats struct {
	MaxHP   int
	Attack  int
	Defense int
	Hit     int
	Dodge   int
	Range   Range
}

type Unit struct {
	ID     UnitID
	TypeID string
	Kind   Kind
	Caps   Capabilities
	Owner  PlayerID
	Tier   int

	Pos    Coordinate
	Target Coordinate

	MovesLeft   int
	MoveSpeed   int
	HasAttacked bool

	Stats CombatStats
	HP    int
	Dead  bool
}

// NewSoldier creates a full-health soldier with a full move budget.
func NewSoldier(typeID string, owner PlayerID, tier, moveSpeed int, stats CombatStats) *Unit {
	return &Unit{
		TypeID:    typeID,
		Kind:      KindSoldier,
		Caps:      KindSoldier.Capabilities(),
		Owner:     owner,
		Tier:      tier,
		MovesLeft: moveSpeed,
		MoveSpeed: moveSpeed,
		Stats:     stats,
		HP:        stats.MaxHP,
		Pos:       InvalidCoordinate,
		Target:    InvalidCoordinate,
	}
}

func NewBuilder(typeID string, owner PlayerID, moveSpeed int) *Unit {
	return &Unit{
		TypeID:    typeID,
		Kind:      KindBuilder,
		Caps:      KindBuilder.Capabilities(),
		Owner:     owner,
		MovesLeft: moveSpeed,
		MoveSpeed: moveSpeed,
		Pos:       InvalidCoordinate,
		Target:    InvalidCoordinate,
	}
}

func (u *Unit) IsSoldier() bool { return u.Kind == KindSoldier }
func (u *Unit) IsAlive() bool   { return !u.Dead }

// HasMoved is true once the move budget is spent.
func (u *Unit) HasMoved() bool { return u.MovesLeft <= 0 }

// CanAttack reports whether the unit may still attack this turn.
func (u *Unit) CanAttack() bool {
	return u.Caps.Combatant && !u.Dead && !u.HasAttacked
}

// HasAction is true while the unit can still move or attack.
func (u *Unit) HasAction() bool {
	if u.Dead {
		return false
	}
	return !u.HasMoved() || u.CanAttack()
}

// PassableTerrain is the unit's own terrain rule, independent of occupancy.
func (u *Unit) PassableTerrain(t Terrain) bool {
	switch t {
	case TerrainMountain, TerrainLake, TerrainDesertMountain, TerrainTundraMountain:
		return false
	}
	return true
}

func (u *Unit) InRange(target Coordinate) bool {
	return u.Stats.Range.Contains(u.Pos.DistanceTo(target))
}

// TakeDamage lowers HP and marks the unit dead at zero. Returns true on death.
func (u *Unit) TakeDamage(amount int) bool {
	if amount <= 0 || u.Dead {
		return u.Dead
	}
	u.HP -= amount
	if u.HP <= 0 {
		u.HP = 0
		u.Dead = true
	}
	return u.Dead
}

// ResetForTurn restores the move budget and the attack flag.
func (u *Unit) ResetForTurn() {
	u.MovesLeft = u.MoveSpeed
	u.HasAttacked = false
}

// Copy returns an unplaced copy with a new owner, the way templates are stamped.
func (u *Unit) Copy(owner PlayerID) *Unit {
	c := *u
	c.ID = NoUnit
	c.Owner = owner
	c.Pos = InvalidCoordinate
	c.Target = InvalidCoordinate
	return &c
}
