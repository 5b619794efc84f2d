package gameserver

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/game/fight"
)

// watchBuffer is the event buffer of WatchFights.
const watchBuffer = 64

// WatchFights logs the outcome of every fight run by svc and clears the slot
// once the fight has fled or finished, so the next StartFight is admitted.
// It returns nil when ctx is cancelled.
//
// Precondition: svc and logger must be non-nil.
func WatchFights(ctx context.Context, svc *FightService, logger *zap.Logger) error {
	if svc == nil || logger == nil {
		panic("gameserver.WatchFights: svc and logger must not be nil")
	}
	ch := make(chan FightEvent, watchBuffer)
	svc.Events().Subscribe(ch)
	defer svc.Events().Unsubscribe(ch)

	// A fight that ended before the subscription would never be cleared.
	if snap, err := svc.Snapshot(); err == nil && (snap.Fled || snap.Finished) {
		endWatched(svc, snap.EncounterID, logger)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			if ev.Kind == EventFled || ev.Kind == EventFinished {
				endWatched(svc, ev.EncounterID, logger)
			}
		}
	}
}

func endWatched(svc *FightService, encounterID string, logger *zap.Logger) {
	snap, err := svc.EndFight()
	switch {
	case errors.Is(err, fight.ErrNoEncounter):
		return
	case err != nil:
		logger.Warn("clearing fight", zap.String("encounter", encounterID), zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.String("encounter", snap.EncounterID),
		zap.String("enemy", snap.EnemyName),
		zap.Stringer("position", snap.Position),
		zap.Bool("fled", snap.Fled),
		zap.Bool("won", snap.Won),
	}
	if snap.Result != nil {
		fields = append(fields,
			zap.String("result", snap.Result.ID),
			zap.Int("currency", snap.Result.Currency),
			zap.Int("items", len(snap.Result.Items)),
		)
	}
	logger.Info("fight over", fields...)
}
