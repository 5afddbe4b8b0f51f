package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/config"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/pathfinding"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/processor"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/registry"
)

// maxSteps bounds the command loop when random play stalls.
const maxSteps = 100000

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seed := flag.Int64("seed", 0, "RNG seed (0 uses the current time)")
	quiet := flag.Bool("quiet", false, "Only print the final field")
	verbose := flag.Bool("v", false, "Log every battle event")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	fmt.Printf("Battle seed: %d\n", *seed)
	rng := rand.New(rand.NewSource(*seed))

	if err := run(context.Background(), cfg, rng, *quiet); err != nil {
		log.Fatal().Err(err).Msg("Demo failed")
	}
}

func run(ctx context.Context, cfg *config.Config, rng *rand.Rand, quiet bool) error {
	units, err := registry.Load(cfg.Battle.UnitsFile)
	if err != nil {
		return err
	}
	terrain, err := cfg.TerrainTable()
	if err != nil {
		return err
	}

	bus := events.NewEventBus(log.Logger)
	bus.Subscribe(subscribers.NewLoggerSubscriber("demo_logger", log.Logger, zerolog.DebugLevel))

	attacker := core.Player{ID: 1, Name: "red", ColorName: "red"}
	defender := core.Player{ID: 2, Name: "blue", ColorName: "blue"}
	policy := pathfinding.Policy{AllyPassThrough: cfg.Battle.AllyPassThrough}

	b, err := game.NewBattle(ctx, game.BattleConfig{
		Width:    cfg.Battle.Width,
		Height:   cfg.Battle.Height,
		Attacker: attacker,
		Defender: defender,
		Units:    units,
		Rules:    terrain,
		Policy:   &policy,
		Resolver: game.NewDefaultResolver(hitRng(cfg, rng), cfg.Battle.Combat.CounterAttack),
		Map:      cfg.MapConfig(),
		Rng:      rng,
		EventBus: bus,
		Logger:   log.Logger,
	})
	if err != nil {
		return err
	}

	atk := core.NewArmy(attacker.ID)
	atk.Add("spearman", 3)
	atk.Add("archer", 2)
	atk.Add("horse", 1)
	def := core.NewArmy(defender.ID)
	def.Add("swordsman", 3)
	def.Add("archer", 2)
	def.Add("builder", 1)
	if err := b.PopulateField(atk, def); err != nil {
		return err
	}

	fmt.Printf("Initial field:\n%s\n", b.Render())

	proc := processor.NewCommandProcessor(log.Logger)
	maxRounds := cfg.Battle.MaxRounds
	lastRound := b.Round()
	for step := 0; step < maxSteps; step++ {
		if _, over := b.Result(); over {
			break
		}
		if maxRounds > 0 && b.Round() > maxRounds {
			break
		}
		cmds := game.GenerateRandomCommands(b, rng)
		if _, err := proc.Process(ctx, b, cmds); err != nil {
			log.Debug().Err(err).Msg("Command refused")
		}
		if !quiet && b.Round() != lastRound {
			lastRound = b.Round()
			fmt.Print(b.Render())
			for _, p := range b.PlayerStats() {
				fmt.Printf("  %s: %d units, %d hp\n", p.Name, p.Units, p.TotalHP)
			}
			fmt.Println()
		}
	}

	if r, over := b.Result(); over {
		fmt.Printf("Battle over in round %d. Player %d wins with %d survivors.\n", r.Rounds, r.Winner, r.Survivors.TotalCount())
	} else {
		fmt.Printf("Battle reached maximum rounds (%d)\n", maxRounds)
	}
	fmt.Printf("\nFinal field:\n%s", b.Render())
	return nil
}

func hitRng(cfg *config.Config, rng *rand.Rand) *rand.Rand {
	if cfg.Battle.Combat.HitRolls {
		return rng
	}
	return nil
}
