// Package scripting runs formula override scripts in sandboxed GopherLua
// states. It has no dependency on the fight engine; hooks receive plain Lua
// tables and return plain Lua values.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget of one run when none is configured.
const DefaultInstructionLimit = 100_000

// safeLibs are the only standard libraries opened in a sandboxed state.
var safeLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// strippedGlobals are base functions that reach the filesystem, load code at
// run time, or write outside the logger.
var strippedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "collectgarbage", "print",
}

// opBudget is a context that cancels itself once Done has been called more
// times than its budget. GopherLua calls Done once per opcode while a context
// is set, so the budget is an opcode count.
type opBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left.Add(-1) < 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// NewSandboxedState returns a state with only the safe libraries open and
// the stripped globals removed. It carries no opcode budget; bound every run
// with Limit.
//
// Postcondition: The caller owns the state and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range safeLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Limit gives L a fresh budget of limit opcodes. The returned release
// function removes it and must be called when the run is over.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
func Limit(L *lua.LState, limit int) (release func()) {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &opBudget{Context: ctx, cancel: cancel}
	b.left.Store(int64(limit))
	L.SetContext(b)
	return func() {
		cancel()
		L.RemoveContext()
	}
}
