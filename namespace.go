package grove

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Namespace is one built-in registrar. Register runs against a fresh VM on
// every initialization and reload, before scripts compile.
type Namespace struct {
	Name     string
	Register func(vm *VM) error
}

// registerNamespaces runs each registrar in order.
func registerNamespaces(vm *VM, namespaces []Namespace) error {
	for _, ns := range namespaces {
		if ns.Register == nil {
			panic(fmt.Sprintf("grove: namespace %q has no registrar", ns.Name))
		}
		if err := ns.Register(vm); err != nil {
			return fmt.Errorf("register namespace %s: %w", ns.Name, err)
		}
	}
	return nil
}

// idleStates gives native programs a do-nothing main state.
func idleStates() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{MainState: func(*lua.LState) int { return 0 }}
}

// DefineEngine defines the Engine plugin and registers it to be spawned
// under the root. Its constructor spawns every component registered with
// AddComponent and exposes each one as a field of the Engine table, so
// scripts can write Engine.Camera:position().
func (vm *VM) DefineEngine(methods map[string]lua.LGFunction) error {
	err := vm.DefineNative(NativeProgram{
		Name:    EngineProgram,
		Methods: methods,
		States:  idleStates(),
		Init: func(vm *VM, self Handle) error {
			obj, err := vm.objects.get(self)
			if err != nil {
				return err
			}
			for _, name := range vm.components {
				c, err := vm.Spawn(self, name)
				if err != nil {
					return err
				}
				child, err := vm.objects.get(c)
				if err != nil {
					return err
				}
				obj.self.RawSetString(name, child.self)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	vm.AddPlugin(EngineProgram)
	for _, name := range vm.components {
		vm.addComponentAccessor(name)
	}
	return nil
}

// DefineComponent defines a native program and registers it as an Engine
// component.
func (vm *VM) DefineComponent(name string, methods map[string]lua.LGFunction) error {
	if err := vm.DefineNative(NativeProgram{Name: name, Methods: methods, States: idleStates()}); err != nil {
		return err
	}
	vm.AddComponent(name)
	return nil
}

// AddComponent registers program name to be spawned under the Engine
// plugin, reachable through the accessor get_<name>.
func (vm *VM) AddComponent(name string) {
	for _, c := range vm.components {
		if c == name {
			return
		}
	}
	vm.components = append(vm.components, name)
	vm.addComponentAccessor(name)
}

// addComponentAccessor installs get_<name> on the Engine program, if it is
// already defined.
func (vm *VM) addComponentAccessor(name string) {
	engine, ok := vm.pool.Get(EngineProgram)
	if !ok {
		return
	}
	engine.methods.RawSetString("get_"+name, vm.L.NewFunction(func(L *lua.LState) int {
		c, err := vm.Child(vm.checkSelf(L, 1), name)
		vm.check(L, err)
		vm.pushObject(L, c)
		return 1
	}))
}

// Components returns the registered Engine component names.
func (vm *VM) Components() []string { return vm.components }
