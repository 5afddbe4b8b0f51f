package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/codec"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/mapgen"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/pathfinding"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/processor"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/registry"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/storage"
)

var (
	ErrBattleNotFound = errors.New("battle not found")
	ErrTooManyBattles = errors.New("too many battles")
	ErrBadRequest     = errors.New("bad request")
)

// ManagerConfig is everything a BattleManager needs to build battles.
type ManagerConfig struct {
	MaxBattles int
	Width      int
	Height     int
	Seed       int64

	Units  *registry.Registry
	Rules  core.TerrainRules
	Policy pathfinding.Policy
	// Map enables terrain generation for new battles.
	Map *mapgen.MapConfig

	CounterAttack bool
	HitRolls      bool

	Store storage.Store
	// Subscribers are attached to the event bus of every battle.
	Subscribers []events.Subscriber
	Logger      zerolog.Logger
}

// PlayerSpec identifies one side of a new battle.
type PlayerSpec struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (p PlayerSpec) player() core.Player {
	return core.Player{ID: core.PlayerID(p.ID), Name: p.Name, ColorName: p.Color}
}

// ArmyEntry is one roster line; Type may carry a tier ("spearman.2").
type ArmyEntry struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// CreateRequest describes a battle to start. Armies are deployed at once
// unless ResumeFrom names a saved battle, in which case the saved field is
// used and the armies are ignored.
type CreateRequest struct {
	Width        int         `json:"width,omitempty"`
	Height       int         `json:"height,omitempty"`
	Seed         *int64      `json:"seed,omitempty"`
	Attacker     PlayerSpec  `json:"attacker"`
	Defender     PlayerSpec  `json:"defender"`
	AttackerArmy []ArmyEntry `json:"attacker_army"`
	DefenderArmy []ArmyEntry `json:"defender_army"`
	ResumeFrom   string      `json:"resume_from,omitempty"`
}

// BattleSummary is the JSON shape of a saved field.
type BattleSummary struct {
	BattleID string         `json:"battle_id"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Units    map[string]int `json:"units"`
	Bytes    int            `json:"bytes"`
}

type managedBattle struct {
	mu     sync.Mutex
	battle *game.Battle
	codec  *codec.Codec
}

// BattleManager owns every live battle. Commands on one battle are
// serialised behind its own mutex; different battles run independently.
type BattleManager struct {
	mu        sync.RWMutex
	battles   map[string]*managedBattle
	config    ManagerConfig
	processor *processor.CommandProcessor
	logger    zerolog.Logger
}

func NewBattleManager(cfg ManagerConfig) *BattleManager {
	if cfg.Units == nil {
		cfg.Units = registry.Default()
	}
	if cfg.Store == nil {
		cfg.Store = storage.NullStore{}
	}
	if cfg.Width == 0 {
		cfg.Width = 8
	}
	if cfg.Height == 0 {
		cfg.Height = 8
	}
	logger := cfg.Logger.With().Str("component", "BattleManager").Logger()
	return &BattleManager{
		battles:   make(map[string]*managedBattle),
		config:    cfg,
		processor: processor.NewCommandProcessor(cfg.Logger),
		logger:    logger,
	}
}

func (m *BattleManager) army(owner core.PlayerID, entries []ArmyEntry) (*core.Army, error) {
	a := core.NewArmy(owner)
	for _, e := range entries {
		if e.Count <= 0 {
			return nil, fmt.Errorf("%w: count %d for %q", ErrBadRequest, e.Count, e.Type)
		}
		if e.Type == "" {
			return nil, fmt.Errorf("%w: empty unit type", ErrBadRequest)
		}
		// unknown names fail early instead of half-way through deployment
		if _, err := m.config.Units.Get(e.Type, owner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		a.Add(e.Type, e.Count)
	}
	return a, nil
}

// Create starts a new battle and returns its snapshot.
func (m *BattleManager) Create(ctx context.Context, req CreateRequest) (game.Snapshot, error) {
	m.mu.RLock()
	n := len(m.battles)
	rules := m.config.Rules
	m.mu.RUnlock()
	if m.config.MaxBattles > 0 && n >= m.config.MaxBattles {
		return game.Snapshot{}, fmt.Errorf("%w: limit is %d", ErrTooManyBattles, m.config.MaxBattles)
	}

	attacker, defender := req.Attacker.player(), req.Defender.player()
	players := []core.Player{attacker, defender}
	c := codec.New(m.config.Units, players)

	seed := m.config.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	rng := rand.New(rand.NewSource(seed))
	var resolverRng *rand.Rand
	if m.config.HitRolls {
		resolverRng = rng
	}

	bus := events.NewEventBus(m.config.Logger)
	for _, s := range m.config.Subscribers {
		bus.Subscribe(s)
	}

	cfg := game.BattleConfig{
		BattleID: uuid.NewString(),
		Width:    req.Width,
		Height:   req.Height,
		Attacker: attacker,
		Defender: defender,
		Units:    m.config.Units,
		Rules:    rules,
		Policy:   &m.config.Policy,
		Resolver: game.NewDefaultResolver(resolverRng, m.config.CounterAttack),
		Map:      m.config.Map,
		Rng:      rng,
		EventBus: bus,
		Logger:   m.config.Logger,
	}
	if cfg.Width == 0 {
		cfg.Width = m.config.Width
	}
	if cfg.Height == 0 {
		cfg.Height = m.config.Height
	}

	if req.ResumeFrom != "" {
		data, err := m.config.Store.Load(ctx, req.ResumeFrom)
		if err != nil {
			return game.Snapshot{}, fmt.Errorf("resume %s: %w", req.ResumeFrom, err)
		}
		grid, err := c.UnmarshalGrid(data, rules)
		if err != nil {
			return game.Snapshot{}, fmt.Errorf("%w: resume %s: %v", ErrBadRequest, req.ResumeFrom, err)
		}
		cfg.Grid = grid
	}

	b, err := game.NewBattle(ctx, cfg)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	if cfg.Grid == nil {
		atk, err := m.army(attacker.ID, req.AttackerArmy)
		if err != nil {
			return game.Snapshot{}, err
		}
		def, err := m.army(defender.ID, req.DefenderArmy)
		if err != nil {
			return game.Snapshot{}, err
		}
		if err := b.PopulateField(atk, def); err != nil {
			return game.Snapshot{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}

	m.mu.Lock()
	if m.config.MaxBattles > 0 && len(m.battles) >= m.config.MaxBattles {
		m.mu.Unlock()
		return game.Snapshot{}, fmt.Errorf("%w: limit is %d", ErrTooManyBattles, m.config.MaxBattles)
	}
	m.battles[b.ID()] = &managedBattle{battle: b, codec: c}
	m.mu.Unlock()

	m.logger.Info().
		Str("battle_id", b.ID()).
		Str("resume_from", req.ResumeFrom).
		Msg("Battle registered")
	return b.Snapshot(), nil
}

// SetRules swaps the terrain table used by battles created from now on.
// Running battles keep the table they started with.
func (m *BattleManager) SetRules(rules core.TerrainRules) {
	m.mu.Lock()
	m.config.Rules = rules
	m.mu.Unlock()
	m.logger.Info().Msg("Terrain rules updated for new battles")
}

func (m *BattleManager) get(id string) (*managedBattle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.battles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBattleNotFound, id)
	}
	return mb, nil
}

// With runs fn while holding the battle's lock.
func (m *BattleManager) With(id string, fn func(b *game.Battle) error) error {
	mb, err := m.get(id)
	if err != nil {
		return err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return fn(mb.battle)
}

func (m *BattleManager) Snapshot(id string) (game.Snapshot, error) {
	var s game.Snapshot
	err := m.With(id, func(b *game.Battle) error {
		s = b.Snapshot()
		return nil
	})
	return s, err
}

// Process runs a command batch against one battle.
func (m *BattleManager) Process(ctx context.Context, id string, cmds []processor.Command) ([]processor.Result, error) {
	var results []processor.Result
	var procErr error
	err := m.With(id, func(b *game.Battle) error {
		results, procErr = m.processor.Process(ctx, b, cmds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, procErr
}

// Click runs HandleClick for player, who must be the active player.
func (m *BattleManager) Click(id string, player core.PlayerID, pos core.Coordinate) (game.ClickOutcome, error) {
	outcome := game.ClickIgnored
	err := m.With(id, func(b *game.Battle) error {
		if player != b.ActivePlayer() {
			return core.WrapCommandError(player, "click", pos, core.ErrNotYourTurn)
		}
		outcome = b.HandleClick(pos)
		return nil
	})
	return outcome, err
}

// Reachable lists the tiles the unit on pos could stop on.
func (m *BattleManager) Reachable(id string, pos core.Coordinate) ([]core.Coordinate, error) {
	var out []core.Coordinate
	err := m.With(id, func(b *game.Battle) error {
		u := b.Grid().UnitAt(pos)
		if u == nil {
			return fmt.Errorf("%w: no unit at %s", ErrBadRequest, pos)
		}
		out = b.Pathfinder().ReachableTiles(u)
		return nil
	})
	return out, err
}

// Save writes the battle field to the store under the battle id.
func (m *BattleManager) Save(ctx context.Context, id string) (BattleSummary, error) {
	mb, err := m.get(id)
	if err != nil {
		return BattleSummary{}, err
	}
	mb.mu.Lock()
	data, err := mb.codec.MarshalGrid(mb.battle.Grid())
	mb.mu.Unlock()
	if err != nil {
		return BattleSummary{}, fmt.Errorf("encode %s: %w", id, err)
	}
	if err := m.config.Store.Save(ctx, id, data); err != nil {
		return BattleSummary{}, err
	}
	return m.summarise(mb.codec, id, data)
}

// LoadSaved decodes the stored copy of a live battle without touching it.
// Owner names in the save are resolved against the live battle's players.
func (m *BattleManager) LoadSaved(ctx context.Context, id string) (BattleSummary, error) {
	mb, err := m.get(id)
	if err != nil {
		return BattleSummary{}, err
	}
	data, err := m.config.Store.Load(ctx, id)
	if err != nil {
		return BattleSummary{}, err
	}
	return m.summarise(mb.codec, id, data)
}

func (m *BattleManager) summarise(c *codec.Codec, id string, data []byte) (BattleSummary, error) {
	grid, err := c.UnmarshalGrid(data, nil)
	if err != nil {
		return BattleSummary{}, fmt.Errorf("decode %s: %w", id, err)
	}
	units := make(map[string]int)
	for _, u := range grid.Units() {
		units[u.TypeID]++
	}
	return BattleSummary{BattleID: id, Width: grid.W, Height: grid.H, Units: units, Bytes: len(data)}, nil
}

func (m *BattleManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.battles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBattleNotFound, id)
	}
	delete(m.battles, id)
	m.logger.Info().Str("battle_id", id).Msg("Battle removed")
	return nil
}

// IDs lists live battles in sorted order.
func (m *BattleManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.battles))
	for id := range m.battles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *BattleManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.battles)
}
