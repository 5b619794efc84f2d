package gameserver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TickFunc advances the simulation by elapsed seconds.
type TickFunc func(elapsed float64) error

// FrameTicker calls a TickFunc once per interval with the wall-clock seconds
// since the previous frame.
//
// Invariant: the callback is never invoked concurrently with itself.
type FrameTicker struct {
	interval time.Duration
	tick     TickFunc
	logger   *zap.Logger
	now      func() time.Time
}

// NewFrameTicker returns a ticker that fires every interval.
//
// Precondition: interval must be > 0; tick and logger must be non-nil.
func NewFrameTicker(interval time.Duration, tick TickFunc, logger *zap.Logger) *FrameTicker {
	if interval <= 0 {
		panic("gameserver.NewFrameTicker: interval must be > 0")
	}
	if tick == nil || logger == nil {
		panic("gameserver.NewFrameTicker: tick and logger must not be nil")
	}
	return &FrameTicker{interval: interval, tick: tick, logger: logger, now: time.Now}
}

// Run drives frames until ctx is cancelled or a frame fails. A failed frame
// is fatal: the loop stops and the error is returned.
//
// Postcondition: Returns nil after ctx is cancelled, or the first frame error.
func (f *FrameTicker) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	last := f.now()
	var frames uint64
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("frame ticker stopped", zap.Uint64("frames", frames))
			return nil
		case <-ticker.C:
			now := f.now()
			elapsed := now.Sub(last).Seconds()
			last = now
			frames++
			if err := f.tick(elapsed); err != nil {
				f.logger.Error("frame failed",
					zap.Uint64("frame", frames),
					zap.Float64("elapsed", elapsed),
					zap.Error(err),
				)
				return fmt.Errorf("frame %d: %w", frames, err)
			}
		}
	}
}
