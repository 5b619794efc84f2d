package gameserver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
	"github.com/cory-johannsen/fightloop/internal/storage/postgres"
)

// WinStore persists sector wins; *postgres.SectorWinRepository implements it.
type WinStore interface {
	AddWin(ctx context.Context, pos world.Position, localeID string) (int, error)
	All(ctx context.Context) ([]postgres.SectorWin, error)
}

// ResultStore persists fight results; *postgres.ResultRepository implements it.
type ResultStore interface {
	Insert(ctx context.Context, playerID string, r *reward.Result) error
}

// DefaultPersistQueue is the number of pending writes a Persister buffers.
const DefaultPersistQueue = 256

type persistJob struct {
	describe string
	run      func(ctx context.Context) error
}

// Persister writes sector wins and fight results to storage off the frame
// path. Hook methods only enqueue; Run performs the writes.
type Persister struct {
	wins     WinStore
	results  ResultStore
	playerID string
	timeout  time.Duration
	queue    chan persistJob
	logger   *zap.Logger
}

// NewPersister returns a Persister writing results on behalf of playerID.
//
// Precondition: wins, results and logger must be non-nil; queueSize > 0.
func NewPersister(wins WinStore, results ResultStore, playerID string, queueSize int, logger *zap.Logger) *Persister {
	if wins == nil || results == nil || logger == nil {
		panic("gameserver.NewPersister: stores and logger must not be nil")
	}
	if queueSize <= 0 {
		panic("gameserver.NewPersister: queueSize must be > 0")
	}
	return &Persister{
		wins:     wins,
		results:  results,
		playerID: playerID,
		timeout:  5 * time.Second,
		queue:    make(chan persistJob, queueSize),
		logger:   logger,
	}
}

// Restore loads every persisted win into the sector controls of m without
// triggering win hooks. Wins of unknown sectors are logged and skipped.
func (p *Persister) Restore(ctx context.Context, m *world.Manager) error {
	all, err := p.wins.All(ctx)
	if err != nil {
		return fmt.Errorf("restoring sector wins: %w", err)
	}
	restored := 0
	for _, w := range all {
		control, ok := m.Control(w.Position)
		if !ok {
			p.logger.Warn("persisted win for unknown sector",
				zap.Stringer("position", w.Position),
				zap.String("locale", w.LocaleID),
			)
			continue
		}
		control.Restore(w.LocaleID, w.Wins)
		restored++
	}
	p.logger.Info("sector wins restored", zap.Int("count", restored))
	return nil
}

// RecordWin is a world.WinHook that queues a sector win.
func (p *Persister) RecordWin(pos world.Position, localeID string, _ int) {
	p.enqueue(persistJob{
		describe: fmt.Sprintf("win %s at %s", localeID, pos),
		run: func(ctx context.Context) error {
			_, err := p.wins.AddWin(ctx, pos, localeID)
			return err
		},
	})
}

// RecordResult is a reward.Inbox delivery hook that queues a fight result.
func (p *Persister) RecordResult(r *reward.Result) {
	p.enqueue(persistJob{
		describe: "result " + r.ID,
		run: func(ctx context.Context) error {
			return p.results.Insert(ctx, p.playerID, r)
		},
	})
}

func (p *Persister) enqueue(job persistJob) {
	select {
	case p.queue <- job:
	default:
		p.logger.Error("persist queue full, dropping write", zap.String("write", job.describe))
	}
}

// Run performs queued writes until ctx is cancelled, then flushes whatever
// is still queued.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case job := <-p.queue:
			p.write(context.Background(), job)
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *Persister) flush() {
	for {
		select {
		case job := <-p.queue:
			p.write(context.Background(), job)
		default:
			return
		}
	}
}

func (p *Persister) write(parent context.Context, job persistJob) {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()
	start := time.Now()
	if err := job.run(ctx); err != nil {
		p.logger.Error("persist failed", zap.String("write", job.describe), zap.Error(err))
		return
	}
	p.logger.Debug("persisted",
		zap.String("write", job.describe),
		zap.Duration("elapsed", time.Since(start)),
	)
}
