package gameserver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/fightloop/internal/game/fight"
	"github.com/cory-johannsen/fightloop/internal/game/npc"
	"github.com/cory-johannsen/fightloop/internal/game/reward"
	"github.com/cory-johannsen/fightloop/internal/game/world"
	"github.com/cory-johannsen/fightloop/internal/gameserver"
)

// quietFormulas never deals damage and attacks every 10 seconds.
type quietFormulas struct{}

func (quietFormulas) EnemyAttackInterval(*fight.Enemy) float64               { return 10 }
func (quietFormulas) PlayerAttackInterval(*fight.Player) float64             { return 10 }
func (quietFormulas) PlayerDamage(*fight.Enemy, *fight.Player) float64       { return 0 }
func (quietFormulas) PlayerRandomDamage(*fight.Enemy, *fight.Player) float64 { return 0 }
func (quietFormulas) EnemyDamage(*fight.Enemy, *fight.Player) float64        { return 0 }

// lowSource always returns the lowest value.
type lowSource struct{}

func (lowSource) Intn(int) int     { return 0 }
func (lowSource) Float64() float64 { return 0.5 }

var (
	home  = world.Position{Level: 13, X: 0, Y: 0}
	north = world.Position{Level: 13, X: 0, Y: -1}
)

type fixture struct {
	svc    *gameserver.FightService
	world  *world.Manager
	inbox  *reward.Inbox
	events chan gameserver.FightEvent
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	return newFixtureWith(t, logger, nil)
}

func newFixtureWith(t *testing.T, logger *zap.Logger, onUpdate fight.Notifier) *fixture {
	t.Helper()
	level := &world.Level{Number: 13, Name: "Old Town", Sectors: []*world.Sector{
		{Position: home, Name: "Square"},
		{Position: north, Name: "Market"},
	}}
	m, err := world.NewManager([]*world.Level{level})
	require.NoError(t, err)

	reg, err := npc.NewRegistry([]*npc.Template{
		{ID: "ganger", Name: "Ganger", Kind: "human", Level: 1, Attack: 5, Speed: 1,
			Loot: &reward.LootTable{Currency: &reward.CurrencyDrop{Min: 7, Max: 7}}},
		{ID: "rat", Name: "Rat", Level: 1},
	})
	require.NoError(t, err)

	f := &fixture{world: m, inbox: reward.NewInbox(nil), events: make(chan gameserver.FightEvent, 32)}
	f.svc = gameserver.NewFightService(gameserver.FightServiceDeps{
		Player:    &fight.Player{ID: "p1", HP: fight.FullHP},
		Templates: reg,
		World:     m,
		Formulas:  quietFormulas{},
		Loot:      reward.LootTable{Currency: &reward.CurrencyDrop{Min: 1, Max: 1}},
		Inbox:     f.inbox,
		Source:    lowSource{},
		Logger:    logger,
		OnUpdate:  onUpdate,
	})
	f.svc.Events().Subscribe(f.events)
	return f
}

func (f *fixture) drainKinds() []gameserver.EventKind {
	var kinds []gameserver.EventKind
	for {
		select {
		case ev := <-f.events:
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestFightService_StartFightValidation(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t))

	_, err := f.svc.StartFight(world.Position{Level: 99}, "clear_workshop", "rat")
	assert.ErrorIs(t, err, gameserver.ErrUnknownSector)

	_, err = f.svc.StartFight(home, "clear_workshop", "dragon")
	assert.ErrorIs(t, err, gameserver.ErrUnknownTemplate)

	snap, err := f.svc.StartFight(home, "clear_workshop", "rat")
	require.NoError(t, err)
	assert.Equal(t, "Rat", snap.EnemyName)
	assert.Equal(t, fight.FullHP, snap.EnemyHP)

	_, err = f.svc.StartFight(home, "clear_workshop", "rat")
	assert.ErrorIs(t, err, fight.ErrEncounterActive)
}

func TestFightService_NoEncounter(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	assert.ErrorIs(t, f.svc.Flee(), fight.ErrNoEncounter)
	assert.ErrorIs(t, f.svc.Burst(1), fight.ErrNoEncounter)
	_, err := f.svc.Snapshot()
	assert.ErrorIs(t, err, fight.ErrNoEncounter)
	_, err = f.svc.EndFight()
	assert.ErrorIs(t, err, fight.ErrNoEncounter)
	assert.NoError(t, f.svc.Tick(0.1))
}

func TestFightService_RejectsNonPositiveEffects(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	_, err := f.svc.StartFight(home, "clear_workshop", "rat")
	require.NoError(t, err)
	assert.Error(t, f.svc.Stun(0))
	assert.Error(t, f.svc.Burst(-3))
}

func TestFightService_WinRecordsSectorsAndUsesTemplateLoot(t *testing.T) {
	f := newFixture(t, zaptest.NewLogger(t))
	_, err := f.svc.StartFight(home, "fight_gang_north", "ganger")
	require.NoError(t, err)

	require.NoError(t, f.svc.Tick(0))
	snap, err := f.svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 5.0, snap.NextTurnEnemy)

	require.NoError(t, f.svc.Burst(150))
	require.NoError(t, f.svc.Tick(0.1))
	snap, _ = f.svc.Snapshot()
	assert.Equal(t, -50.0, snap.EnemyHP)
	assert.False(t, snap.Finished)

	_, err = f.svc.EndFight()
	assert.ErrorIs(t, err, gameserver.ErrFightInProgress)

	require.NoError(t, f.svc.Tick(0.1))
	snap, _ = f.svc.Snapshot()
	require.True(t, snap.Finished)
	assert.True(t, snap.Won)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 7, snap.Result.Currency)
	assert.Equal(t, 1, f.inbox.Pending())

	here, _ := f.world.Control(home)
	there, _ := f.world.Control(north)
	assert.Equal(t, 1, here.Wins("gang_north"))
	assert.Equal(t, 1, there.Wins("gang_south"))

	assert.ErrorIs(t, f.svc.Burst(5), gameserver.ErrFightOver)

	ended, err := f.svc.EndFight()
	require.NoError(t, err)
	assert.True(t, ended.Won)
	_, err = f.svc.Snapshot()
	assert.ErrorIs(t, err, fight.ErrNoEncounter)

	assert.Equal(t, []gameserver.EventKind{
		gameserver.EventStarted, gameserver.EventUpdated, gameserver.EventFinished, gameserver.EventEnded,
	}, f.drainKinds())
}

func TestFightService_OnUpdateSeesEveryFrame(t *testing.T) {
	updates := 0
	f := newFixtureWith(t, zaptest.NewLogger(t), fight.NotifierFunc(func() { updates++ }))
	full := make(chan gameserver.FightEvent, 1)
	f.svc.Events().Subscribe(full)

	_, err := f.svc.StartFight(home, "fight_gang_north", "rat")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.Burst(10))
		require.NoError(t, f.svc.Tick(0.1))
	}

	assert.Equal(t, 5, updates)
	require.Len(t, full, 1)
	assert.Equal(t, gameserver.EventStarted, (<-full).Kind, "later events were dropped for the full subscriber")

	var kinds []gameserver.EventKind
	for _, k := range f.drainKinds() {
		if k == gameserver.EventUpdated {
			kinds = append(kinds, k)
		}
	}
	assert.Len(t, kinds, 5)
}

func TestFightService_DefaultLootForTemplatesWithoutTable(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	_, err := f.svc.StartFight(home, "clear_workshop", "rat")
	require.NoError(t, err)
	require.NoError(t, f.svc.Burst(200))
	require.NoError(t, f.svc.Tick(0.1))
	require.NoError(t, f.svc.Tick(0.1))
	snap, _ := f.svc.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, 1, snap.Result.Currency)
}

func TestFightService_FleeThenStart(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	_, err := f.svc.StartFight(home, "clear_workshop", "rat")
	require.NoError(t, err)
	require.NoError(t, f.svc.Stun(3))
	require.NoError(t, f.svc.Flee())
	require.NoError(t, f.svc.Tick(0.5))

	snap, _ := f.svc.Snapshot()
	assert.True(t, snap.Fled)
	assert.False(t, snap.Finished)
	assert.Nil(t, snap.Result)
	assert.Equal(t, 2.5, snap.EnemyStunnedSeconds)
	assert.ErrorIs(t, f.svc.Flee(), gameserver.ErrFightOver)

	_, err = f.svc.EndFight()
	require.NoError(t, err)
	_, err = f.svc.StartFight(home, "clear_workshop", "ganger")
	assert.NoError(t, err)

	assert.Contains(t, f.drainKinds(), gameserver.EventFled)
}

func TestFightService_WinAtUnknownRelatedSectorIsFatal(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	_, err := f.svc.StartFight(home, "fight_gang_east", "rat")
	require.NoError(t, err)
	require.NoError(t, f.svc.Burst(200))
	require.NoError(t, f.svc.Tick(0.1))
	assert.ErrorIs(t, f.svc.Tick(0.1), fight.ErrSectorNotFound)
}
