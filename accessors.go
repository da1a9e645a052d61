package grove

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// RequireComponent returns the sibling of h spawned from program name,
// spawning it under the parent of h on first use. Repeated calls return
// the same object.
func (vm *VM) RequireComponent(h Handle, name string) (Handle, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return NullHandle, err
	}
	c, err := vm.Child(obj.parent, name)
	if err != nil {
		return NullHandle, err
	}
	if c != NullHandle {
		return c, nil
	}
	return vm.Spawn(obj.parent, name)
}

// ObjectCamera returns the point h is rendered relative to: the camera
// focus, or the centre of the screen for detached objects.
func (vm *VM) ObjectCamera(h Handle) (Vec2, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return Vec2{}, err
	}
	if obj.hasTag(TagDetached) || vm.camera == nil {
		return Vec2{vm.screen.X / 2, vm.screen.Y / 2}, nil
	}
	return Vec2{vm.camera.X, vm.camera.Y}, nil
}

// ObjectZIndex returns the draw order of h: the result of its get_zindex
// accessor, or DefaultZIndex when its program defines none.
func (vm *VM) ObjectZIndex(h Handle) (float64, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return 0, err
	}
	if !obj.caps.Has(CapZIndex) {
		return DefaultZIndex, nil
	}
	fn, _ := obj.program.method("get_zindex")
	ret, err := vm.call(obj, fn, 1)
	if err != nil {
		return 0, err
	}
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, vm.ScriptError(h, "get_zindex must return a number, got %s", ret.Type())
	}
	return float64(n), nil
}

// GetComponent calls the accessor get_<name> of h and returns the object
// it yields.
func (vm *VM) GetComponent(h Handle, name string) (Handle, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return NullHandle, err
	}
	accessor := "get_" + name
	fn, ok := obj.program.method(accessor)
	if !ok {
		return NullHandle, fmt.Errorf("%q.%s: %w", obj.name, accessor, ErrNoAccessor)
	}
	ret, err := vm.call(obj, fn, 1)
	if err != nil {
		return NullHandle, err
	}
	c, ok := vm.HandleOf(ret)
	if !ok {
		return NullHandle, vm.ScriptError(h, "%s must return an object, got %s", accessor, ret.Type())
	}
	return c, nil
}

// EngineObject returns the Engine plugin object of the current generation.
func (vm *VM) EngineObject() (Handle, error) {
	if vm.Alive(vm.engine) {
		return vm.engine, nil
	}
	if vm.root == NullHandle {
		return NullHandle, ErrNotLaunched
	}
	h, err := vm.Child(vm.root, EngineProgram)
	if err != nil {
		return NullHandle, err
	}
	if h == NullHandle {
		return NullHandle, fmt.Errorf("engine plugin: %w", ErrStaleHandle)
	}
	vm.engine = h
	return h, nil
}

// EngineComponent returns component name of the Engine plugin.
func (vm *VM) EngineComponent(name string) (Handle, error) {
	e, err := vm.EngineObject()
	if err != nil {
		return NullHandle, err
	}
	return vm.GetComponent(e, name)
}

// ParentName returns the program name of the parent of h. The root is its
// own parent.
func (vm *VM) ParentName(h Handle) (string, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return "", err
	}
	return vm.Name(obj.parent)
}

// IsObjectInsideScreen reports whether the world position of h falls in
// the area the camera shows.
func (vm *VM) IsObjectInsideScreen(h Handle) (bool, error) {
	p, err := vm.WorldPosition(h)
	if err != nil {
		return false, err
	}
	view := Rect{Width: vm.screen.X, Height: vm.screen.Y}
	if vm.camera != nil {
		view = vm.camera.VisibleBounds()
	}
	return view.Contains(p.X, p.Y), nil
}

// ScriptError builds an error attributed to h. Returned from a tick or a
// constructor, it reaches the runtime's fatal handler.
func (vm *VM) ScriptError(h Handle, format string, args ...any) error {
	name := "?"
	if obj, err := vm.objects.get(h); err == nil {
		name = obj.name
	}
	return &ScriptError{Object: name, Message: fmt.Sprintf(format, args...)}
}
