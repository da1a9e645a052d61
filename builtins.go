package grove

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/phanxgames/grove/version"
)

// DefaultNamespaces returns the built-in registrars followed by the ones
// from Config.Namespaces. The Engine plugin comes first so later
// components attach to it.
func (r *Runtime) DefaultNamespaces() []Namespace {
	ns := []Namespace{
		{Name: "Engine", Register: r.registerEngine},
		{Name: "Camera", Register: r.registerCamera},
		{Name: "Input", Register: r.registerInput},
		{Name: "Time", Register: registerTime},
		{Name: "Screen", Register: r.registerScreen},
		{Name: "Lang", Register: r.registerLang},
		{Name: "Tween", Register: registerTween},
		{Name: "Console", Register: registerConsole},
	}
	return append(ns, r.cfg.Namespaces...)
}

func (r *Runtime) registerEngine(vm *VM) error {
	return vm.DefineEngine(map[string]lua.LGFunction{
		"reload": func(L *lua.LState) int {
			vm.RequestReload()
			return 0
		},
		"quit": func(L *lua.LState) int {
			vm.RequestQuit()
			return 0
		},
		"version": func(L *lua.LState) int {
			L.Push(lua.LString(version.Engine))
			L.Push(lua.LString(r.cfg.RuntimeVersion))
			return 2
		},
		"test_mode": func(L *lua.LState) int {
			L.Push(lua.LBool(r.testMode))
			return 1
		},
		"args": func(L *lua.LState) int {
			tbl := L.NewTable()
			for _, a := range r.args {
				tbl.Append(lua.LString(a))
			}
			L.Push(tbl)
			return 1
		},
	})
}

func (r *Runtime) registerCamera(vm *VM) error {
	cam := r.camera
	return vm.DefineComponent("Camera", map[string]lua.LGFunction{
		"position": func(L *lua.LState) int {
			L.Push(lua.LNumber(cam.X))
			L.Push(lua.LNumber(cam.Y))
			return 2
		},
		"set_position": func(L *lua.LState) int {
			cam.X = float64(L.CheckNumber(2))
			cam.Y = float64(L.CheckNumber(3))
			cam.ClampToBounds()
			return 0
		},
		"follow": func(L *lua.LState) int {
			target := vm.checkSelf(L, 2)
			cam.Follow(target, float64(L.OptNumber(4, 0)), float64(L.OptNumber(5, 0)), float64(L.OptNumber(3, 1)))
			return 0
		},
		"unfollow": func(L *lua.LState) int {
			cam.Unfollow()
			return 0
		},
		"scroll_to": func(L *lua.LState) int {
			fn, _ := EaseByName(L.OptString(5, "linear"))
			cam.ScrollTo(float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), float32(L.CheckNumber(4)), fn)
			return 0
		},
		"scrolling": func(L *lua.LState) int {
			L.Push(lua.LBool(cam.Scrolling()))
			return 1
		},
		"zoom": func(L *lua.LState) int {
			L.Push(lua.LNumber(cam.Zoom))
			return 1
		},
		"set_zoom": func(L *lua.LState) int {
			z := float64(L.CheckNumber(2))
			if z <= 0 {
				L.ArgError(2, "zoom must be positive")
				return 0
			}
			cam.Zoom = z
			return 0
		},
		"set_bounds": func(L *lua.LState) int {
			cam.SetBounds(Rect{
				X:      float64(L.CheckNumber(2)),
				Y:      float64(L.CheckNumber(3)),
				Width:  float64(L.CheckNumber(4)),
				Height: float64(L.CheckNumber(5)),
			})
			return 0
		},
		"clear_bounds": func(L *lua.LState) int {
			cam.ClearBounds()
			return 0
		},
		"to_screen": func(L *lua.LState) int {
			x, y := cam.WorldToScreen(float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
			L.Push(lua.LNumber(x))
			L.Push(lua.LNumber(y))
			return 2
		},
		"to_world": func(L *lua.LState) int {
			x, y := cam.ScreenToWorld(float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
			L.Push(lua.LNumber(x))
			L.Push(lua.LNumber(y))
			return 2
		},
	})
}

func (r *Runtime) registerInput(vm *VM) error {
	in := r.input
	query := func(fn func(string) bool) lua.LGFunction {
		return func(L *lua.LState) int {
			L.Push(lua.LBool(fn(L.CheckString(2))))
			return 1
		}
	}
	return vm.DefineComponent("Input", map[string]lua.LGFunction{
		"pressed":  query(in.Pressed),
		"held":     query(in.Held),
		"released": query(in.Released),
		"cursor": func(L *lua.LState) int {
			x, y := in.Cursor()
			L.Push(lua.LNumber(x))
			L.Push(lua.LNumber(y))
			return 2
		},
	})
}

func registerTime(vm *VM) error {
	return vm.DefineComponent("Time", map[string]lua.LGFunction{
		"time": func(L *lua.LState) int {
			L.Push(lua.LNumber(vm.clock.elapsed))
			return 1
		},
		"delta": func(L *lua.LState) int {
			L.Push(lua.LNumber(vm.clock.delta))
			return 1
		},
		"ticks": func(L *lua.LState) int {
			L.Push(lua.LNumber(vm.clock.ticks))
			return 1
		},
	})
}

func (r *Runtime) registerScreen(vm *VM) error {
	return vm.DefineComponent("Screen", map[string]lua.LGFunction{
		"width": func(L *lua.LState) int {
			L.Push(lua.LNumber(r.cfg.Width))
			return 1
		},
		"height": func(L *lua.LState) int {
			L.Push(lua.LNumber(r.cfg.Height))
			return 1
		},
		"title": func(L *lua.LState) int {
			L.Push(lua.LString(r.cfg.Title))
			return 1
		},
	})
}

func (r *Runtime) registerLang(vm *VM) error {
	return vm.DefineComponent("Lang", map[string]lua.LGFunction{
		"get": func(L *lua.LState) int {
			L.Push(lua.LString(r.lang.Get(L.CheckString(2))))
			return 1
		},
		"has": func(L *lua.LState) int {
			L.Push(lua.LBool(r.lang.Has(L.CheckString(2))))
			return 1
		},
	})
}

// registerTween adds tween_position and tween_angle to every object:
//
//	self:tween_position(x, y, seconds[, easing])
//	self:tween_angle(degrees, seconds[, easing])
func registerTween(vm *VM) error {
	vm.AddObjectMethod("tween_position", func(L *lua.LState) int {
		h := vm.checkSelf(L, 1)
		fn, _ := EaseByName(L.OptString(5, "linear"))
		_, err := vm.TweenPosition(h, float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), float32(L.CheckNumber(4)), fn)
		vm.check(L, err)
		return 0
	})
	vm.AddObjectMethod("tween_angle", func(L *lua.LState) int {
		h := vm.checkSelf(L, 1)
		fn, _ := EaseByName(L.OptString(4, "linear"))
		_, err := vm.TweenAngle(h, float64(L.CheckNumber(2)), float32(L.CheckNumber(3)), fn)
		vm.check(L, err)
		return 0
	})
	return nil
}

func registerConsole(vm *VM) error {
	log := vm.log.Named("console")
	line := func(write func(string, ...zap.Field)) lua.LGFunction {
		return func(L *lua.LState) int {
			write(L.CheckString(2), zap.Int("generation", vm.generation))
			return 0
		}
	}
	return vm.DefineComponent("Console", map[string]lua.LGFunction{
		"print": line(log.Info),
		"warn":  line(log.Warn),
		"error": line(log.Error),
	})
}
