package gameserver_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
	"github.com/cory-johannsen/fightloop/internal/gameserver"
	"github.com/cory-johannsen/fightloop/internal/storage/postgres"
)

type memStore struct {
	mu      sync.Mutex
	wins    map[world.Position]map[string]int
	results map[string][]*reward.Result
	fail    error
}

func newMemStore() *memStore {
	return &memStore{wins: make(map[world.Position]map[string]int), results: make(map[string][]*reward.Result)}
}

func (s *memStore) AddWin(_ context.Context, pos world.Position, localeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	if s.wins[pos] == nil {
		s.wins[pos] = make(map[string]int)
	}
	s.wins[pos][localeID]++
	return s.wins[pos][localeID], nil
}

func (s *memStore) All(context.Context) ([]postgres.SectorWin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []postgres.SectorWin
	for pos, locales := range s.wins {
		for locale, n := range locales {
			out = append(out, postgres.SectorWin{Position: pos, LocaleID: locale, Wins: n})
		}
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, playerID string, r *reward.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.results[playerID] = append(s.results[playerID], r)
	return nil
}

func runPersister(t *testing.T, p *gameserver.Persister) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestPersister_WritesQueuedWinsAndResults(t *testing.T) {
	store := newMemStore()
	p := gameserver.NewPersister(store, store, "p1", gameserver.DefaultPersistQueue, zap.NewNop())

	p.RecordWin(home, "gang_north", 1)
	p.RecordWin(home, "gang_north", 2)
	p.RecordResult(&reward.Result{ID: "r1", Won: true})

	stop := runPersister(t, p)
	stop()

	assert.Equal(t, 2, store.wins[home]["gang_north"])
	require.Len(t, store.results["p1"], 1)
	assert.Equal(t, "r1", store.results["p1"][0].ID)
}

func TestPersister_HooksIntoWorldAndInbox(t *testing.T) {
	store := newMemStore()
	p := gameserver.NewPersister(store, store, "p1", gameserver.DefaultPersistQueue, zap.NewNop())

	m, err := world.NewManager([]*world.Level{{Number: 13, Name: "Old Town", Sectors: []*world.Sector{{Position: home}}}})
	require.NoError(t, err)
	m.OnWin(p.RecordWin)
	inbox := reward.NewInbox(p.RecordResult)

	control, _ := m.Control(home)
	control.AddWin("workshop")
	inbox.Deliver(&reward.Result{ID: "r2"})

	stop := runPersister(t, p)
	stop()

	assert.Equal(t, 1, store.wins[home]["workshop"])
	assert.Len(t, store.results["p1"], 1)
}

func TestPersister_FullQueueDropsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := newMemStore()
	p := gameserver.NewPersister(store, store, "p1", 1, zap.New(core))

	p.RecordWin(home, "a", 1)
	p.RecordWin(home, "b", 1)
	assert.Equal(t, 1, logs.FilterMessage("persist queue full, dropping write").Len())
}

func TestPersister_StoreErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := newMemStore()
	store.fail = errors.New("db down")
	p := gameserver.NewPersister(store, store, "p1", 4, zap.New(core))

	p.RecordResult(&reward.Result{ID: "r3"})
	stop := runPersister(t, p)
	stop()
	assert.Equal(t, 1, logs.FilterMessage("persist failed").Len())
}

func TestPersister_RestoreSkipsUnknownSectors(t *testing.T) {
	store := newMemStore()
	store.wins[home] = map[string]int{"workshop": 4}
	store.wins[world.Position{Level: 99}] = map[string]int{"workshop": 1}

	m, err := world.NewManager([]*world.Level{{Number: 13, Name: "Old Town", Sectors: []*world.Sector{{Position: home}}}})
	require.NoError(t, err)
	var hooked int
	m.OnWin(func(world.Position, string, int) { hooked++ })

	p := gameserver.NewPersister(store, store, "p1", 4, zap.NewNop())
	require.NoError(t, p.Restore(context.Background(), m))

	control, _ := m.Control(home)
	assert.Equal(t, 4, control.Wins("workshop"))
	assert.Zero(t, hooked, "restoring must not re-persist")
}
