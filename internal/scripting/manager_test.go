package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/fightloop/internal/game/dice"
	"github.com/cory-johannsen/fightloop/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	mgr := scripting.NewManager(roller, logger)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadKind_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadKind("ganger", dir, 0))
	ret, err := mgr.CallHook("ganger", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
	assert.True(t, mgr.HasHook("ganger", "test_hook"))
	assert.False(t, mgr.HasHook("ganger", "other_hook"))
}

func TestManager_LoadKind_EmptyKindRejected(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadKind("", t.TempDir(), 0))
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadKind("ganger", dir, 0))
	ret, err := mgr.CallHook("ganger", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownKind_ReturnsNil(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret, err := mgr.CallHook("no_such_kind", "some_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterMessage("scripting: no VM for kind").Len())
}

func TestManager_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.LoadKind("ganger", dir, 0))
	ret, err := mgr.CallHook("ganger", "bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_CallHook_RunawayHookIsStopped(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "loop.lua", `
		function spin() while true do end end
		function ok() return 1 end
	`)
	require.NoError(t, mgr.LoadKind("ganger", dir, 50))

	ret, err := mgr.CallHook("ganger", "spin")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())

	ret, err = mgr.CallHook("ganger", "ok")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(1), ret, "a fresh budget applies to the next call")
}

func TestManager_LoadGlobal_CallHookFallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "global.lua", `
		function global_hook()
			return 42
		end
	`)
	require.NoError(t, mgr.LoadGlobal(dir, 0))
	ret, err := mgr.CallHook("unknownkind", "global_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), ret)
}

func TestManager_LoadTree_KindOverridesGlobal(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "global.lua", `function value() return 1 end`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "mutant"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mutant", "mutant.lua"),
		[]byte(`function value() return 2 end`), 0644))

	require.NoError(t, mgr.LoadTree(dir, 0))

	ret, _ := mgr.CallHook("mutant", "value")
	assert.Equal(t, lua.LNumber(2), ret)
	ret, _ = mgr.CallHook("ganger", "value")
	assert.Equal(t, lua.LNumber(1), ret)
}

func TestManager_LoadKind_EmptyDir_NoError(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadKind("empty", t.TempDir(), 0))
	ret, err := mgr.CallHook("empty", "anything")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_LoadKind_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.LoadKind("bad", dir, 0))
}

func TestManager_LoadKind_MissingDir_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadKind("ganger", filepath.Join(t.TempDir(), "nope"), 0))
}

func TestManager_LoadKind_ReloadReplacesVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadKind("ganger", writeTempLua(t, "a.lua", `function v() return 1 end`), 0))
	require.NoError(t, mgr.LoadKind("ganger", writeTempLua(t, "a.lua", `function v() return 2 end`), 0))
	ret, _ := mgr.CallHook("ganger", "v")
	assert.Equal(t, lua.LNumber(2), ret)
}

func TestProperty_CallHookMissingKindNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		kind := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "kind")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		for i := 0; i < count; i++ {
			mgr.CallHook(kind, hook) //nolint:errcheck
		}
	})
}

func TestProperty_CallHookConcurrentSameKind_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function concurrent_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadKind("ganger", dir, 0))

	const goroutines = 10
	const callsEach = 5
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, err := mgr.CallHook("ganger", "concurrent_hook", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
			}
		}()
	}
	wg.Wait()
}

func TestManager_LoadKind_MultipleFiles_OrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function get_val() return base_val end
	`), 0644))
	require.NoError(t, mgr.LoadKind("ordered", dir, 0))
	ret, err := mgr.CallHook("ordered", "get_val")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(10), ret)
}

func TestNewManager_PanicsOnNilRoller(t *testing.T) {
	assert.Panics(t, func() {
		scripting.NewManager(nil, zap.NewNop())
	})
}

func TestNewManager_PanicsOnNilLogger(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), zap.NewNop())
	assert.Panics(t, func() {
		scripting.NewManager(roller, nil)
	})
}

func TestManager_Close_ReleasesVMs(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "init.lua", `function get_x() return 1 end`)
	require.NoError(t, mgr.LoadKind("closing", dir, 0))
	mgr.Close()
	ret, err := mgr.CallHook("closing", "get_x")
	assert.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallNumberHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "f.lua", `
		function enemy_damage(enemy, player, base)
			return base + enemy.defence * 2 - player.attack
		end
		function wrong_type(enemy, player, base)
			return "nope"
		end
	`)
	require.NoError(t, mgr.LoadKind("ganger", dir, 0))

	got, ok := mgr.CallNumberHook("ganger", "enemy_damage", 10,
		scripting.Fields{"defence": 3}, scripting.Fields{"attack": 1})
	require.True(t, ok)
	assert.Equal(t, 15.0, got)

	got, ok = mgr.CallNumberHook("ganger", "wrong_type", 10, scripting.Fields{}, scripting.Fields{})
	assert.False(t, ok)
	assert.Equal(t, 10.0, got)

	got, ok = mgr.CallNumberHook("ganger", "missing", 7)
	assert.False(t, ok)
	assert.Equal(t, 7.0, got)
}

func TestManager_CallNumberHook_NonFiniteFallsBack(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "f.lua", `
		function nan_hook(base) return 0/0 end
		function inf_hook(base) return 1/0 end
		function neg_inf_hook(base) return -1/0 end
	`)
	require.NoError(t, mgr.LoadKind("mutant", dir, 0))

	for _, hook := range []string{"nan_hook", "inf_hook", "neg_inf_hook"} {
		got, ok := mgr.CallNumberHook("mutant", hook, 4)
		assert.False(t, ok, hook)
		assert.Equal(t, 4.0, got, hook)
	}
	assert.Equal(t, 3, logs.FilterMessage("scripting: hook returned a non-finite number").Len())
}
