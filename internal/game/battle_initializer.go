package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/mapgen"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/pathfinding"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/registry"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/rules"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/states"
)

// BattleConfig describes one battle. Zero values get defaults: a random id,
// the built-in registry, a time-seeded rng, the default resolver and a
// fresh event bus.
type BattleConfig struct {
	BattleID string
	Width    int
	Height   int
	Attacker core.Player
	Defender core.Player

	Units UnitFactory
	Rules core.TerrainRules
	// Policy overrides pathfinding.DefaultPolicy when set.
	Policy   *pathfinding.Policy
	Resolver CombatResolver
	// Map generates terrain; nil leaves the field plain.
	Map *mapgen.MapConfig
	// Grid resumes a saved field. Its units must already be placed.
	Grid *core.Grid

	Rng      *rand.Rand
	EventBus *events.EventBus
	Logger   zerolog.Logger

	OnResult ResultHandler
	OnRaze   RazeHandler
}

// BattleInitializer builds a Battle and its components from a BattleConfig.
type BattleInitializer struct {
	config BattleConfig
	logger zerolog.Logger
}

func NewBattleInitializer(cfg BattleConfig) *BattleInitializer {
	return &BattleInitializer{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "Battle").Logger(),
	}
}

// NewBattle is shorthand for NewBattleInitializer(cfg).Initialize(ctx).
func NewBattle(ctx context.Context, cfg BattleConfig) (*Battle, error) {
	return NewBattleInitializer(cfg).Initialize(ctx)
}

// Initialize validates the config and returns a battle in the Setup phase,
// or InProgress when a saved grid was supplied.
func (bi *BattleInitializer) Initialize(ctx context.Context) (*Battle, error) {
	select {
	case <-ctx.Done():
		bi.logger.Error().Err(ctx.Err()).Msg("Battle creation cancelled")
		return nil, ctx.Err()
	default:
	}

	bi.setupDefaults()
	if err := bi.validate(); err != nil {
		return nil, fmt.Errorf("invalid battle config: %w", err)
	}

	grid, err := bi.buildGrid()
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}

	b := bi.createBattle(grid)

	if bi.config.Grid != nil {
		if err := grid.CheckConsistency(); err != nil {
			return nil, fmt.Errorf("saved grid: %w", err)
		}
		if err := b.resume(); err != nil {
			return nil, err
		}
	}

	bi.logger.Info().
		Str("battle_id", b.id).
		Int("width", grid.W).
		Int("height", grid.H).
		Int("attacker", int(b.Attacker().ID)).
		Int("defender", int(b.Defender().ID)).
		Str("phase", b.Phase().String()).
		Msg("Battle created")
	return b, nil
}

func (bi *BattleInitializer) setupDefaults() {
	cfg := &bi.config
	if cfg.BattleID == "" {
		cfg.BattleID = uuid.NewString()
	}
	if cfg.Units == nil {
		cfg.Units = registry.Default()
	}
	if cfg.Rng == nil {
		bi.logger.Debug().Msg("No RNG provided, creating new seeded RNG")
		cfg.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewDefaultResolver(nil, true)
	}
	if cfg.EventBus == nil {
		cfg.EventBus = events.NewEventBus(bi.logger)
	}
	if cfg.Grid != nil {
		cfg.Width, cfg.Height = cfg.Grid.W, cfg.Grid.H
	}
}

func (bi *BattleInitializer) validate() error {
	cfg := bi.config
	if cfg.Width < 1 || cfg.Height < 1 {
		return fmt.Errorf("grid size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Attacker.ID == cfg.Defender.ID {
		return fmt.Errorf("attacker and defender are both player %d", cfg.Attacker.ID)
	}
	if cfg.Attacker.Name == "" || cfg.Defender.Name == "" {
		return errors.New("players must be named")
	}
	if cfg.Attacker.Name == cfg.Defender.Name {
		return fmt.Errorf("attacker and defender share the name %q", cfg.Attacker.Name)
	}
	return nil
}

func (bi *BattleInitializer) buildGrid() (*core.Grid, error) {
	cfg := bi.config
	if cfg.Grid != nil {
		if cfg.Rules != nil {
			cfg.Grid.SetRules(cfg.Rules)
		}
		return cfg.Grid, nil
	}
	if cfg.Map == nil {
		return core.NewGrid(cfg.Width, cfg.Height, cfg.Rules), nil
	}

	mapCfg := *cfg.Map
	mapCfg.Width, mapCfg.Height = cfg.Width, cfg.Height
	buildings, _ := cfg.Units.(mapgen.BuildingFactory)
	if buildings == nil && len(mapCfg.DefenderBuildings) > 0 {
		return nil, errors.New("unit factory cannot build defender buildings")
	}
	return mapgen.NewGenerator(mapCfg, cfg.Rng, buildings).GenerateMap(cfg.Rules, cfg.Defender.ID), nil
}

func (bi *BattleInitializer) createBattle(grid *core.Grid) *Battle {
	cfg := bi.config
	policy := pathfinding.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	logger := bi.logger.With().Str("battle_id", cfg.BattleID).Logger()
	battleCtx := states.NewBattleContext(cfg.BattleID, cfg.Attacker.ID, cfg.Defender.ID, cfg.Logger)

	b := &Battle{
		id:           cfg.BattleID,
		grid:         grid,
		units:        cfg.Units,
		logger:       logger,
		pathfinder:   pathfinding.New(grid, policy),
		resolver:     cfg.Resolver,
		legalMoves:   rules.NewLegalMoveCalculator(),
		winCondition: rules.NewWinConditionChecker(logger),
		eventBus:     cfg.EventBus,
		stateMachine: states.NewStateMachine(battleCtx, cfg.EventBus),
		players:      []core.Player{cfg.Attacker, cfg.Defender},
		onResult:     cfg.OnResult,
		onRaze:       cfg.OnRaze,
	}
	b.turnProcessor = NewTurnProcessor(b)
	return b
}
