// Package main provides a headless fight simulator. It loads the same content
// as the game server, runs one encounter at a fixed frame length without a
// database, and prints the outcome.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/config"
	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/game/encounter"
	"github.com/cory-johannsen/fightloop/internal/game/fight"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
	"github.com/cory-johannsen/fightloop/internal/gameserver"
	"github.com/cory-johannsen/fightloop/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	templateID := flag.String("enemy", "ganger", "enemy template id")
	action := flag.String("action", "fight_gang_north", "originating action of the fight")
	level := flag.Int("level", 13, "sector level")
	x := flag.Int("x", 0, "sector x")
	y := flag.Int("y", 0, "sector y")
	dt := flag.Float64("dt", 0.1, "seconds simulated per frame")
	maxFrames := flag.Int("max-frames", 100000, "give up after this many frames")
	stun := flag.Float64("stun", 0, "seconds to stun the enemy at the start of the fight")
	burst := flag.Float64("burst", 0, "one-shot damage dealt to the enemy at the start of the fight")
	fleeAt := flag.Int("flee-at", 0, "request to flee on this frame (0 = never)")
	seed := flag.Uint64("seed", 0, "replay a fight from this seed (0 = crypto randomness)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, simOptions{
		templateID: *templateID,
		action:     *action,
		pos:        world.Position{Level: *level, X: *x, Y: *y},
		dt:         *dt,
		maxFrames:  *maxFrames,
		stun:       *stun,
		burst:      *burst,
		fleeAt:     *fleeAt,
		seed:       *seed,
	}, logger); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

type simOptions struct {
	templateID string
	action     string
	pos        world.Position
	dt         float64
	maxFrames  int
	stun       float64
	burst      float64
	fleeAt     int
	seed       uint64
}

func run(cfg config.Config, opts simOptions, logger *zap.Logger) error {
	if opts.dt <= 0 {
		return fmt.Errorf("dt must be > 0, got %g", opts.dt)
	}
	src := dice.NewCryptoSource()
	if opts.seed != 0 {
		src = dice.NewSeededSource(opts.seed)
	}
	roller := dice.NewLoggedRoller(src, logger)

	content, err := gameserver.LoadContent(cfg, roller, logger)
	if err != nil {
		return err
	}
	defer content.Close()

	inbox := reward.NewInbox(nil)
	updates := 0
	svc := gameserver.NewFightService(gameserver.FightServiceDeps{
		Player:    gameserver.NewPlayer("sim"),
		Templates: content.Templates,
		World:     content.World,
		Formulas:  content.Formulas,
		Loot:      content.Loot,
		Inbox:     inbox,
		Source:    src,
		Logger:    logger,
		OnUpdate:  fight.NotifierFunc(func() { updates++ }),
	})

	if _, err := svc.StartFight(opts.pos, opts.action, opts.templateID); err != nil {
		return fmt.Errorf("starting fight: %w", err)
	}
	if opts.stun > 0 {
		if err := svc.Stun(opts.stun); err != nil {
			return err
		}
	}
	if opts.burst > 0 {
		if err := svc.Burst(opts.burst); err != nil {
			return err
		}
	}

	start := time.Now()
	frames := 0
	for ; frames < opts.maxFrames; frames++ {
		if opts.fleeAt > 0 && frames == opts.fleeAt {
			if err := svc.Flee(); err != nil {
				return err
			}
		}
		if err := svc.Tick(opts.dt); err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}
		snap, err := svc.Snapshot()
		if err != nil {
			return err
		}
		if snap.Fled || snap.Finished {
			frames++
			break
		}
	}

	snap, err := svc.EndFight()
	if err != nil {
		return fmt.Errorf("ending fight after %d frames: %w", frames, err)
	}

	outcome := "fled"
	switch {
	case snap.Finished && snap.Won:
		outcome = "won"
	case snap.Finished:
		outcome = "lost"
	}
	logger.Info("simulation complete",
		zap.String("enemy", snap.EnemyName),
		zap.String("outcome", outcome),
		zap.Int("frames", frames),
		zap.Float64("simulated_seconds", float64(frames)*opts.dt),
		zap.Int("updates", updates),
		zap.Duration("elapsed", time.Since(start)),
	)

	fmt.Printf("%s vs %s at %s: %s after %.1fs\n",
		opts.action, snap.EnemyName, opts.pos, outcome, float64(frames)*opts.dt)
	for _, res := range inbox.Drain() {
		fmt.Printf("  result %s: currency=%d items=%d\n", res.ID, res.Currency, len(res.Items))
		for _, it := range res.Items {
			fmt.Printf("    %s x%d\n", it.ItemID, it.Quantity)
		}
	}
	if control, ok := content.World.Control(opts.pos); ok && snap.Won {
		resolver := encounter.NewResolver()
		ectx := encounter.Context{Action: opts.action}
		locale := resolver.LocaleID(resolver.BaseActionID(ectx), ectx, false)
		fmt.Printf("  %s wins at %s: %d\n", locale, opts.pos, control.Wins(locale))
	}
	return nil
}
