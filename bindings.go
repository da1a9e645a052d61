package grove

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// builtinMethods are available on every object, after the methods of its
// own program.
func (vm *VM) builtinMethods() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"name":               vm.luaName,
		"parent":             vm.luaParent,
		"parent_name":        vm.luaParentName,
		"child":              vm.luaChild,
		"children":           vm.luaChildren,
		"spawn":              vm.luaSpawn,
		"destroy":            vm.luaDestroy,
		"state":              vm.luaState,
		"set_state":          vm.luaSetState,
		"has_tag":            vm.luaHasTag,
		"set_tag":            vm.luaSetTag,
		"position":           vm.luaPosition,
		"set_position":       vm.luaSetPosition,
		"world_position":     vm.luaWorldPosition,
		"set_world_position": vm.luaSetWorldPosition,
		"angle":              vm.luaAngle,
		"set_angle":          vm.luaSetAngle,
		"world_angle":        vm.luaWorldAngle,
		"set_world_angle":    vm.luaSetWorldAngle,
		"move":               vm.luaMove,
		"rotate":             vm.luaRotate,
		"require_component":  vm.luaRequireComponent,
		"component":          vm.luaComponent,
		"zindex":             vm.luaZIndex,
		"camera":             vm.luaCamera,
		"inside_screen":      vm.luaInsideScreen,
		"error":              vm.luaError,
	}
}

// AddObjectMethod makes fn callable on every object as name. Program
// methods of the same name take precedence.
func (vm *VM) AddObjectMethod(name string, fn lua.LGFunction) {
	vm.objectMethods.RawSetString(name, vm.L.NewFunction(fn))
}

// --- Argument helpers ---

// checkSelf returns the object whose table is argument n.
func (vm *VM) checkSelf(L *lua.LState, n int) Handle {
	t := L.CheckTable(n)
	h, ok := vm.selves[t]
	if !ok {
		L.ArgError(n, "object expected")
		return NullHandle
	}
	return h
}

// pushObject pushes the table of h, or nil for a stale or null handle.
func (vm *VM) pushObject(L *lua.LState, h Handle) {
	obj, err := vm.objects.get(h)
	if err != nil {
		L.Push(lua.LNil)
		return
	}
	L.Push(obj.self)
}

// check raises err in the calling script when it is non-nil.
func (vm *VM) check(L *lua.LState, err error) {
	if err != nil {
		vm.raise(L, err)
	}
}

// --- Globals ---

func (vm *VM) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.Get(i).String()
	}
	vm.log.Info(strings.Join(parts, "\t"), zap.String("source", "script"))
	return 0
}

// --- Hierarchy ---

func (vm *VM) luaName(L *lua.LState) int {
	name, err := vm.Name(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LString(name))
	return 1
}

func (vm *VM) luaParent(L *lua.LState) int {
	p, err := vm.Parent(vm.checkSelf(L, 1))
	vm.check(L, err)
	vm.pushObject(L, p)
	return 1
}

func (vm *VM) luaParentName(L *lua.LState) int {
	name, err := vm.ParentName(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LString(name))
	return 1
}

func (vm *VM) luaChild(L *lua.LState) int {
	c, err := vm.Child(vm.checkSelf(L, 1), L.CheckString(2))
	vm.check(L, err)
	vm.pushObject(L, c)
	return 1
}

func (vm *VM) luaChildren(L *lua.LState) int {
	children, err := vm.Children(vm.checkSelf(L, 1))
	vm.check(L, err)
	tbl := L.NewTable()
	for _, c := range children {
		if obj, err := vm.objects.get(c); err == nil && !obj.killed {
			tbl.Append(obj.self)
		}
	}
	L.Push(tbl)
	return 1
}

func (vm *VM) luaSpawn(L *lua.LState) int {
	h, err := vm.Spawn(vm.checkSelf(L, 1), L.CheckString(2))
	vm.check(L, err)
	vm.pushObject(L, h)
	return 1
}

func (vm *VM) luaDestroy(L *lua.LState) int {
	vm.check(L, vm.DestroyObject(vm.checkSelf(L, 1)))
	return 0
}

// --- State and tags ---

func (vm *VM) luaState(L *lua.LState) int {
	s, err := vm.State(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LString(s))
	return 1
}

func (vm *VM) luaSetState(L *lua.LState) int {
	vm.check(L, vm.SetState(vm.checkSelf(L, 1), L.CheckString(2)))
	return 0
}

func (vm *VM) luaHasTag(L *lua.LState) int {
	ok, err := vm.HasTag(vm.checkSelf(L, 1), L.CheckString(2))
	vm.check(L, err)
	L.Push(lua.LBool(ok))
	return 1
}

func (vm *VM) luaSetTag(L *lua.LState) int {
	vm.check(L, vm.SetTag(vm.checkSelf(L, 1), L.CheckString(2), L.OptBool(3, true)))
	return 0
}

// --- Transform ---

func (vm *VM) luaPosition(L *lua.LState) int {
	p, err := vm.LocalPosition(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LNumber(p.X))
	L.Push(lua.LNumber(p.Y))
	return 2
}

func (vm *VM) luaSetPosition(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	p := Vec2{float64(L.CheckNumber(2)), float64(L.CheckNumber(3))}
	vm.check(L, vm.SetLocalPosition(h, p))
	return 0
}

func (vm *VM) luaWorldPosition(L *lua.LState) int {
	p, err := vm.WorldPosition(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LNumber(p.X))
	L.Push(lua.LNumber(p.Y))
	return 2
}

func (vm *VM) luaSetWorldPosition(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	p := Vec2{float64(L.CheckNumber(2)), float64(L.CheckNumber(3))}
	vm.check(L, vm.SetWorldPosition(h, p))
	return 0
}

func (vm *VM) luaAngle(L *lua.LState) int {
	a, err := vm.LocalAngle(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LNumber(a))
	return 1
}

func (vm *VM) luaSetAngle(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	vm.check(L, vm.SetLocalAngle(h, float64(L.CheckNumber(2))))
	return 0
}

func (vm *VM) luaWorldAngle(L *lua.LState) int {
	a, err := vm.WorldAngle(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LNumber(a))
	return 1
}

func (vm *VM) luaSetWorldAngle(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	vm.check(L, vm.SetWorldAngle(h, float64(L.CheckNumber(2))))
	return 0
}

func (vm *VM) luaMove(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	d := Vec2{float64(L.CheckNumber(2)), float64(L.CheckNumber(3))}
	vm.check(L, vm.Translate(h, d))
	return 0
}

func (vm *VM) luaRotate(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	vm.check(L, vm.Rotate(h, float64(L.CheckNumber(2))))
	return 0
}

// --- Accessors ---

func (vm *VM) luaRequireComponent(L *lua.LState) int {
	c, err := vm.RequireComponent(vm.checkSelf(L, 1), L.CheckString(2))
	vm.check(L, err)
	vm.pushObject(L, c)
	return 1
}

func (vm *VM) luaComponent(L *lua.LState) int {
	c, err := vm.GetComponent(vm.checkSelf(L, 1), L.CheckString(2))
	vm.check(L, err)
	vm.pushObject(L, c)
	return 1
}

func (vm *VM) luaZIndex(L *lua.LState) int {
	z, err := vm.ObjectZIndex(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LNumber(z))
	return 1
}

func (vm *VM) luaCamera(L *lua.LState) int {
	p, err := vm.ObjectCamera(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LNumber(p.X))
	L.Push(lua.LNumber(p.Y))
	return 2
}

func (vm *VM) luaInsideScreen(L *lua.LState) int {
	in, err := vm.IsObjectInsideScreen(vm.checkSelf(L, 1))
	vm.check(L, err)
	L.Push(lua.LBool(in))
	return 1
}

func (vm *VM) luaError(L *lua.LState) int {
	h := vm.checkSelf(L, 1)
	vm.report(L, vm.ScriptError(h, "%s", L.CheckString(2)))
	return 0
}
