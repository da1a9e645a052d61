package grove

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// foundTestScript reports whether the compiled scripts define their own
// Application with a main state. Such a script takes the place of the
// built-in Application; the runtime is then in test mode.
func foundTestScript(vm *VM) bool {
	return vm.pool.Exists(ApplicationProgram, "state:"+MainState)
}

// defineApplication defines the built-in Application. Its constructor
// spawns each startup program in order as a child. A script Application
// without a main state is extended instead: it gains the constructor and
// an idle main state and keeps everything else it defines.
func defineApplication(vm *VM, startup []string) error {
	programs := append([]string(nil), startup...)
	start := func(vm *VM, self Handle) error {
		for _, name := range programs {
			if _, err := vm.Spawn(self, name); err != nil {
				return err
			}
		}
		vm.log.Debug("application started", zap.Strings("startup", programs))
		return nil
	}
	if p, ok := vm.pool.Get(ApplicationProgram); ok {
		vm.extendApplication(p, start)
		return nil
	}
	return vm.DefineNative(NativeProgram{
		Name:   ApplicationProgram,
		Init:   start,
		States: idleStates(),
	})
}

// extendApplication merges the built-in constructor and main state into a
// script Application. The startup programs are spawned before the script's
// own init runs.
func (vm *VM) extendApplication(p *Program, start func(vm *VM, self Handle) error) {
	L := vm.L
	scriptInit := p.init
	p.init = L.NewFunction(func(L *lua.LState) int {
		self := L.Get(1)
		if err := start(vm, vm.checkSelf(L, 1)); err != nil {
			vm.raise(L, err)
		}
		if scriptInit != nil {
			L.Push(scriptInit)
			L.Push(self)
			L.Call(1, 0)
		}
		return 0
	})
	if p.states == nil {
		p.states = make(map[string]*lua.LFunction, 1)
	}
	for name, fn := range idleStates() {
		if _, ok := p.states[name]; !ok {
			p.states[name] = L.NewFunction(fn)
		}
	}
	p.computeCaps()
	vm.log.Debug("application extended", zap.String("path", p.Path))
}
