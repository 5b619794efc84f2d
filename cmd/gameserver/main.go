// Package main provides the game server binary that runs the real-time fight
// loop, persists sector wins and fight results, and serves gRPC health checks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/fightloop/internal/config"
	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
	"github.com/cory-johannsen/fightloop/internal/gameserver"
	"github.com/cory-johannsen/fightloop/internal/observability"
	"github.com/cory-johannsen/fightloop/internal/server"
	"github.com/cory-johannsen/fightloop/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	playerID := flag.String("player", "player-1", "id of the player whose fights are persisted")
	healthInterval := flag.Duration("health-interval", 10*time.Second, "database health probe interval")
	fightEnemy := flag.String("fight-enemy", "", "start a fight against this enemy template at startup")
	fightAction := flag.String("fight-action", "fight_gang_north", "originating action of the startup fight")
	fightLevel := flag.Int("fight-level", 13, "sector level of the startup fight")
	fightX := flag.Int("fight-x", 0, "sector x of the startup fight")
	fightY := flag.Int("fight-y", 0, "sector y of the startup fight")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	cryptoSrc := dice.NewCryptoSource()
	diceRoller := dice.NewLoggedRoller(cryptoSrc, logger)

	logger.Info("starting game server",
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.Duration("frame_interval", cfg.Fight.FrameInterval),
	)

	content, err := gameserver.LoadContent(cfg, diceRoller, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	defer content.Close()

	// Connect to PostgreSQL for win and result persistence
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	persister := gameserver.NewPersister(
		postgres.NewSectorWinRepository(pool.DB()),
		postgres.NewResultRepository(pool.DB()),
		*playerID,
		gameserver.DefaultPersistQueue,
		logger,
	)
	if err := persister.Restore(ctx, content.World); err != nil {
		logger.Fatal("restoring sector wins", zap.Error(err))
	}
	content.World.OnWin(persister.RecordWin)

	svc := gameserver.NewFightService(gameserver.FightServiceDeps{
		Player:    gameserver.NewPlayer(*playerID),
		Templates: content.Templates,
		World:     content.World,
		Formulas:  content.Formulas,
		Loot:      content.Loot,
		Inbox:     reward.NewInbox(persister.RecordResult),
		Source:    cryptoSrc,
		Logger:    logger,
	})
	ticker := gameserver.NewFrameTicker(cfg.Fight.FrameInterval, svc.Tick, logger)

	if *fightEnemy != "" {
		pos := world.Position{Level: *fightLevel, X: *fightX, Y: *fightY}
		snap, err := svc.StartFight(pos, *fightAction, *fightEnemy)
		if err != nil {
			logger.Fatal("starting fight", zap.String("enemy", *fightEnemy), zap.Error(err))
		}
		logger.Info("startup fight started",
			zap.String("encounter", snap.EncounterID),
			zap.String("enemy", snap.EnemyName),
			zap.Stringer("position", pos),
		)
	}

	// Create gRPC server
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("persister", persister)
	lifecycle.Add("frames", ticker)
	lifecycle.Add("fight-watch", server.RunFunc(func(ctx context.Context) error {
		return gameserver.WatchFights(ctx, svc, logger)
	}))
	lifecycle.Add("db-health", server.RunFunc(func(ctx context.Context) error {
		probe := time.NewTicker(*healthInterval)
		defer probe.Stop()
		for {
			status := healthpb.HealthCheckResponse_SERVING
			if err := pool.Health(ctx, 2*time.Second); err != nil {
				logger.Warn("database health check failed", zap.Error(err))
				status = healthpb.HealthCheckResponse_NOT_SERVING
			} else {
				acquired, total := pool.Conns()
				logger.Debug("database healthy",
					zap.Int32("acquired_conns", acquired),
					zap.Int32("total_conns", total),
				)
			}
			healthServer.SetServingStatus("", status)
			select {
			case <-ctx.Done():
				return nil
			case <-probe.C:
			}
		}
	}))
	lifecycle.Add("grpc", server.RunFunc(func(ctx context.Context) error {
		lis, err := net.Listen("tcp", cfg.GameServer.Addr())
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.GameServer.Addr(), err)
		}
		logger.Info("gRPC server listening",
			zap.String("addr", lis.Addr().String()),
		)
		go func() {
			<-ctx.Done()
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		}()
		return grpcServer.Serve(lis)
	}))

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.Int("enemy_templates", content.Templates.Len()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("game server stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("game server stopped")
}
