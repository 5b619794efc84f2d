package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fightloop/internal/game/dice"
)

// globalKey is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no kind VM is found.
const globalKey = "__global__"

// vm is one sandboxed LState and the settings it runs with.
// An LState is single-threaded; mu serializes every run on it.
type vm struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
}

// Manager owns one sandboxed LState per enemy kind plus an optional global
// LState, and exposes hook dispatch.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadKind creates a sandboxed VM for the enemy kind, registers the engine.*
// modules, then executes every *.lua file in scriptDir in lexicographic order.
// Loading a kind twice replaces its VM.
//
// Precondition: kind must be non-empty; scriptDir must be a readable directory.
// Postcondition: The kind's VM is registered; returns error on Lua load failure.
func (m *Manager) LoadKind(kind, scriptDir string, instLimit int) error {
	if kind == "" {
		return fmt.Errorf("scripting: kind must not be empty")
	}
	return m.loadInto(kind, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM that CallHook falls back to for kinds
// without their own scripts.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalKey, scriptDir, instLimit)
}

// LoadTree loads scriptDir as the global VM and every immediate subdirectory
// of it as the VM of the kind it is named after.
//
// Precondition: scriptDir must be a readable directory.
func (m *Manager) LoadTree(scriptDir string, instLimit int) error {
	if err := m.LoadGlobal(scriptDir, instLimit); err != nil {
		return err
	}
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadKind(e.Name(), filepath.Join(scriptDir, e.Name()), instLimit); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState()
	m.RegisterModules(L)
	for _, path := range luaFiles {
		release := Limit(L, instLimit)
		err := L.DoFile(path)
		release()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = &vm{L: L, instLimit: instLimit}
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripts loaded",
		zap.String("key", key),
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// HasHook reports whether the VM serving kind defines the named global function.
func (m *Manager) HasHook(kind, hook string) bool {
	v := m.lookup(kind)
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L == nil {
		return false
	}
	_, ok := v.L.GetGlobal(hook).(*lua.LFunction)
	return ok
}

func (m *Manager) lookup(kind string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vms[kind]; ok {
		return v
	}
	return m.vms[globalKey]
}

// CallHook calls the named Lua global function in kind's VM. If the kind has
// no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the
// hook is not defined or no VM exists. Lua runtime errors, including an
// exhausted instruction budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(kind, hook string, args ...lua.LValue) (lua.LValue, error) {
	return m.call(kind, hook, func(*lua.LState) []lua.LValue { return args }), nil
}

// Fields is the content of a Lua table passed to a hook.
type Fields map[string]float64

// CallNumberHook calls hook with one table per entry of tables followed by
// base. It returns the hook's result when the hook exists and returns a number.
//
// Postcondition: Returns (base, false) when the hook is missing, fails, or
// returns a non-number, NaN or an infinity.
func (m *Manager) CallNumberHook(kind, hook string, base float64, tables ...Fields) (float64, bool) {
	ret := m.call(kind, hook, func(L *lua.LState) []lua.LValue {
		args := make([]lua.LValue, 0, len(tables)+1)
		for _, fields := range tables {
			t := L.NewTable()
			for k, v := range fields {
				L.SetField(t, k, lua.LNumber(v))
			}
			args = append(args, t)
		}
		return append(args, lua.LNumber(base))
	})
	n, ok := ret.(lua.LNumber)
	if !ok {
		return base, false
	}
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		m.logger.Warn("scripting: hook returned a non-finite number",
			zap.String("kind", kind),
			zap.String("hook", hook),
			zap.Float64("value", v),
		)
		return base, false
	}
	return v, true
}

// call runs hook in the VM serving kind with the arguments built by args.
// args runs under the VM lock so it may allocate on L.
func (m *Manager) call(kind, hook string, args func(L *lua.LState) []lua.LValue) lua.LValue {
	v := m.lookup(kind)
	if v == nil {
		m.logger.Debug("scripting: no VM for kind",
			zap.String("kind", kind),
			zap.String("hook", hook),
		)
		return lua.LNil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L == nil {
		return lua.LNil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil
	}

	release := Limit(v.L, v.instLimit)
	err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args(v.L)...)
	release()
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("kind", kind),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret
}

// Close releases every VM. CallHook returns LNil afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()

	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.L = nil
		v.mu.Unlock()
	}
}
