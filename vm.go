package grove

import (
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// VMOptions configures a VM.
type VMOptions struct {
	Logger  *zap.Logger
	Events  EventSink
	Metrics *Metrics
	// CacheSize bounds the compiled chunk cache. Zero uses DefaultCacheSize;
	// a negative value disables caching.
	CacheSize int
	// Debug enables tree shape warnings and per-tick stats.
	Debug bool
	// Camera and Screen place objects on the display. Both outlive resets.
	Camera *Camera
	Screen Vec2
}

// clock tracks script-visible time.
type clock struct {
	elapsed float64
	delta   float64
	ticks   uint64
}

func (c *clock) advance(dt float64) {
	c.delta = dt
	c.elapsed += dt
	c.ticks++
}

// VM owns a script state, its program pool, and the object tree spawned
// from it. A VM is not safe for concurrent use.
type VM struct {
	log     *zap.Logger
	events  EventSink
	metrics *Metrics
	debug   bool
	cache   *protoCache
	camera  *Camera
	screen  Vec2

	L             *lua.LState
	pool          *ProgramPool
	objects       objectTable
	selves        map[*lua.LTable]Handle
	objectMethods *lua.LTable
	objectMeta    *lua.LTable

	root   Handle
	app    Handle
	engine Handle

	plugins    []string
	components []string
	args       []string
	clock      clock
	tweens     []*TweenGroup
	graveyard  []Handle
	generation int

	// unit collects definitions while a file is being compiled.
	unit *compileUnit

	pendingErr      error
	// failure is the first error a script reported through self:error.
	// It is sticky: catching it with pcall does not clear it, only a
	// reset does.
	failure         *ScriptError
	ticking         bool
	launched        bool
	destroyed       bool
	reloadRequested bool
	quitRequested   bool

	lastStats debugStats
}

// NewVM creates a VM with an empty program pool and no objects.
func NewVM(opts VMOptions) *VM {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	vm := &VM{
		log:     log,
		events:  opts.Events,
		metrics: opts.Metrics,
		debug:   opts.Debug,
		cache:   newProtoCache(size),
		camera:  opts.Camera,
		screen:  opts.Screen,
	}
	vm.boot()
	return vm
}

// boot builds a fresh script state and empties every per-generation table.
func (vm *VM) boot() {
	vm.L = vm.newState()
	vm.pool = newProgramPool()
	vm.objects.clear()
	vm.selves = make(map[*lua.LTable]Handle)
	vm.root = NullHandle
	vm.app = NullHandle
	vm.engine = NullHandle
	vm.plugins = nil
	vm.components = nil
	vm.tweens = nil
	vm.graveyard = nil
	vm.clock = clock{}
	vm.unit = nil
	vm.pendingErr = nil
	vm.failure = nil
	vm.launched = false
	vm.reloadRequested = false
	vm.quitRequested = false
}

// newState creates a sandboxed script state: only the base, table, string,
// and math libraries, with file and module loading removed.
func (vm *VM) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetTop(0)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(vm.luaPrint))
	L.SetGlobal("object", L.NewFunction(vm.luaObject))

	vm.objectMethods = L.NewTable()
	L.SetFuncs(vm.objectMethods, vm.builtinMethods())
	vm.objectMeta = L.NewTable()
	vm.objectMeta.RawSetString("__index", vm.objectMethods)
	return L
}

// usable returns ErrVMDestroyed once the VM is gone.
func (vm *VM) usable() error {
	if vm.destroyed {
		return ErrVMDestroyed
	}
	return nil
}

// --- Lifecycle ---

// Reset discards every program and object and starts a new generation
// with a fresh script state. Handles from earlier generations stop
// resolving. Reset fails, leaving the VM untouched, while a tick is in
// progress or after Destroy.
func (vm *VM) Reset() error {
	if vm.destroyed {
		return fmt.Errorf("%w: %w", ErrResetFailed, ErrVMDestroyed)
	}
	if vm.ticking {
		return fmt.Errorf("%w: reset requested during a tick", ErrResetFailed)
	}
	if vm.unit != nil {
		return fmt.Errorf("%w: reset requested during compilation", ErrResetFailed)
	}
	vm.L.Close()
	vm.generation++
	vm.boot()
	vm.emit(EventReset, nil)
	vm.metrics.reset()
	vm.log.Debug("vm reset", zap.Int("generation", vm.generation))
	return nil
}

// Destroy releases the script state. The VM cannot be used afterwards.
func (vm *VM) Destroy() {
	if vm.destroyed {
		return
	}
	vm.L.Close()
	vm.objects.clear()
	vm.selves = nil
	vm.pool = newProgramPool()
	vm.root = NullHandle
	vm.app = NullHandle
	vm.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (vm *VM) Destroyed() bool { return vm.destroyed }

// Generation counts resets since the VM was created.
func (vm *VM) Generation() int { return vm.generation }

// Launch spawns the root object, every registered plugin, and the
// Application. It fails with ErrNoApplication when no Application
// program is defined.
func (vm *VM) Launch(args []string) error {
	if err := vm.usable(); err != nil {
		return err
	}
	if vm.launched {
		return errors.New("grove: vm already launched")
	}
	if !vm.pool.Exists(ApplicationProgram, "") {
		return ErrNoApplication
	}
	if !vm.pool.Exists(SystemProgram, "") {
		if err := vm.defineSystem(); err != nil {
			return err
		}
	}
	vm.setArgs(args)
	if _, err := vm.Spawn(NullHandle, SystemProgram); err != nil {
		return err
	}
	vm.launched = true
	vm.log.Debug("vm launched",
		zap.Int("programs", vm.pool.Len()),
		zap.Int("objects", vm.objects.len()))
	return nil
}

// Launched reports whether Launch succeeded in this generation.
func (vm *VM) Launched() bool { return vm.launched }

// defineSystem defines the root program. Its constructor spawns the
// plugins, then the Application.
func (vm *VM) defineSystem() error {
	return vm.DefineNative(NativeProgram{
		Name: SystemProgram,
		Init: func(vm *VM, self Handle) error {
			for _, name := range vm.plugins {
				h, err := vm.Spawn(self, name)
				if err != nil {
					return err
				}
				if name == EngineProgram {
					vm.engine = h
					obj, _ := vm.objects.get(h)
					vm.L.SetGlobal(EngineProgram, obj.self)
				}
			}
			app, err := vm.Spawn(self, ApplicationProgram)
			vm.app = app
			return err
		},
		States: map[string]lua.LGFunction{
			MainState: func(*lua.LState) int { return 0 },
		},
	})
}

// setArgs exposes the launch arguments to scripts as the global table arg,
// with arg[0] the program name.
func (vm *VM) setArgs(args []string) {
	vm.args = args
	tbl := vm.L.NewTable()
	for i, a := range args {
		tbl.RawSetInt(i, lua.LString(a))
	}
	vm.L.SetGlobal("arg", tbl)
}

// AddPlugin registers a program to be spawned as a child of the root at
// launch, before the Application.
func (vm *VM) AddPlugin(name string) {
	for _, p := range vm.plugins {
		if p == name {
			return
		}
	}
	vm.plugins = append(vm.plugins, name)
}

// Plugins returns the registered plugin names in spawn order.
func (vm *VM) Plugins() []string { return vm.plugins }

// RequestReload asks for a reload once the current tick is over.
func (vm *VM) RequestReload() { vm.reloadRequested = true }

// RequestQuit asks the host loop to stop.
func (vm *VM) RequestQuit() { vm.quitRequested = true }

// --- Objects ---

// Spawn creates an instance of program name as the last child of parent
// and runs its constructor. A null parent creates the root, which is
// allowed once per generation. When the constructor fails the object
// remains in the tree and the error is returned with its handle.
func (vm *VM) Spawn(parent Handle, name string) (Handle, error) {
	if err := vm.usable(); err != nil {
		return NullHandle, err
	}
	prog, ok := vm.pool.Get(name)
	if !ok {
		return NullHandle, fmt.Errorf("spawn %q: %w", name, ErrUnknownProgram)
	}
	var p *object
	if parent == NullHandle {
		if vm.root != NullHandle {
			return NullHandle, fmt.Errorf("spawn %q without a parent: root already exists: %w", name, ErrRootObject)
		}
	} else {
		var err error
		if p, err = vm.objects.get(parent); err != nil {
			return NullHandle, fmt.Errorf("spawn %q: parent: %w", name, err)
		}
	}

	obj := vm.objects.alloc()
	obj.name = name
	obj.program = prog
	obj.caps = prog.caps
	obj.state = MainState
	obj.tags = append([]string(nil), prog.Tags...)
	obj.self = vm.newSelf(prog)
	vm.selves[obj.self] = obj.handle

	if p == nil {
		obj.parent = obj.handle
		vm.root = obj.handle
	} else {
		obj.parent = parent
		p.children = append(p.children, obj.handle)
		if vm.debug {
			vm.debugCheckTreeDepth(obj)
			vm.debugCheckChildCount(p)
		}
	}
	vm.emit(EventSpawned, obj)
	vm.metrics.objectSpawned(vm.objects.len())

	if obj.caps.Has(CapInit) {
		if _, err := vm.call(obj, prog.init, 0); err != nil {
			return obj.handle, err
		}
	}
	return obj.handle, nil
}

// newSelf builds the script-side table of a new instance, seeded with a
// copy of the program's default fields.
func (vm *VM) newSelf(prog *Program) *lua.LTable {
	self := vm.L.NewTable()
	for k, v := range prog.fields {
		if t, ok := v.(*lua.LTable); ok {
			v = copyTable(vm.L, t)
		}
		self.RawSetString(k, v)
	}
	vm.L.SetMetatable(self, prog.meta)
	return self
}

// copyTable returns a shallow copy of t.
func copyTable(L *lua.LState, t *lua.LTable) *lua.LTable {
	c := L.NewTable()
	t.ForEach(func(k, v lua.LValue) { c.RawSet(k, v) })
	return c
}

// DestroyObject removes h and its subtree. Destroyed objects stop ticking
// at once but stay resolvable until the current tick ends.
func (vm *VM) DestroyObject(h Handle) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	if h == vm.root {
		return fmt.Errorf("destroy %q: %w", obj.name, ErrRootObject)
	}
	if obj.killed {
		return nil
	}
	vm.kill(obj)
	vm.graveyard = append(vm.graveyard, h)
	if !vm.ticking {
		vm.reap()
	}
	return nil
}

func (vm *VM) kill(obj *object) {
	obj.killed = true
	for _, c := range obj.children {
		if child, err := vm.objects.get(c); err == nil {
			vm.kill(child)
		}
	}
}

// reap frees objects destroyed during the last tick.
func (vm *VM) reap() {
	for _, h := range vm.graveyard {
		obj, err := vm.objects.get(h)
		if err != nil {
			continue
		}
		if parent, err := vm.objects.get(obj.parent); err == nil {
			parent.removeChild(h)
		}
		vm.release(obj)
	}
	vm.graveyard = vm.graveyard[:0]
}

func (vm *VM) release(obj *object) {
	for _, c := range obj.children {
		if child, err := vm.objects.get(c); err == nil {
			vm.release(child)
		}
	}
	delete(vm.selves, obj.self)
	vm.objects.release(obj)
	vm.emit(EventDestroyed, obj)
	vm.metrics.objectDestroyed(vm.objects.len())
}

// Alive reports whether h resolves to an object that has not been
// destroyed.
func (vm *VM) Alive(h Handle) bool {
	obj, err := vm.objects.get(h)
	return err == nil && !obj.killed
}

// Root returns the root object, or NullHandle before launch.
func (vm *VM) Root() Handle { return vm.root }

// Application returns the Application object, or NullHandle before launch.
func (vm *VM) Application() Handle { return vm.app }

// Pool returns the program pool.
func (vm *VM) Pool() *ProgramPool { return vm.pool }

// ObjectCount returns the number of live objects.
func (vm *VM) ObjectCount() int { return vm.objects.len() }

// Name returns the program name of h.
func (vm *VM) Name(h Handle) (string, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return "", err
	}
	return obj.name, nil
}

// Parent returns the parent of h. The root is its own parent.
func (vm *VM) Parent(h Handle) (Handle, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return NullHandle, err
	}
	return obj.parent, nil
}

// Children returns a copy of the children of h.
func (vm *VM) Children(h Handle) ([]Handle, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return nil, err
	}
	return append([]Handle(nil), obj.children...), nil
}

// Child returns the first live child of h spawned from program name, or
// NullHandle.
func (vm *VM) Child(h Handle, name string) (Handle, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return NullHandle, err
	}
	for _, c := range obj.children {
		if child, err := vm.objects.get(c); err == nil && !child.killed && child.name == name {
			return c, nil
		}
	}
	return NullHandle, nil
}

// Find returns the first live object spawned from program name in
// breadth-first order, or NullHandle.
func (vm *VM) Find(name string) Handle {
	if vm.root == NullHandle {
		return NullHandle
	}
	queue := []Handle{vm.root}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		obj, err := vm.objects.get(h)
		if err != nil || obj.killed {
			continue
		}
		if obj.name == name {
			return h
		}
		queue = append(queue, obj.children...)
	}
	return NullHandle
}

// State returns the current state name of h.
func (vm *VM) State(h Handle) (string, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return "", err
	}
	return obj.state, nil
}

// SetState switches h to state name, which its program must define.
func (vm *VM) SetState(h Handle, name string) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	if !obj.program.HasState(name) {
		return fmt.Errorf("object %q has no state %q", obj.name, name)
	}
	obj.state = name
	return nil
}

// HasTag reports whether h carries tag.
func (vm *VM) HasTag(h Handle, tag string) (bool, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return false, err
	}
	return obj.hasTag(tag), nil
}

// SetTag adds or removes tag on h.
func (vm *VM) SetTag(h Handle, tag string, on bool) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	has := obj.hasTag(tag)
	switch {
	case on && !has:
		obj.tags = append(obj.tags, tag)
	case !on && has:
		for i, t := range obj.tags {
			if t == tag {
				obj.tags = append(obj.tags[:i], obj.tags[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Self returns the script table of h.
func (vm *VM) Self(h Handle) (*lua.LTable, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return nil, err
	}
	return obj.self, nil
}

// HandleOf returns the object whose script table is v.
func (vm *VM) HandleOf(v lua.LValue) (Handle, bool) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return NullHandle, false
	}
	h, ok := vm.selves[t]
	return h, ok
}

// Call invokes method fn of h with args and returns its first result.
func (vm *VM) Call(h Handle, fn string, args ...lua.LValue) (lua.LValue, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return lua.LNil, err
	}
	f, ok := obj.program.method(fn)
	if !ok {
		if b, isFn := vm.objectMethods.RawGetString(fn).(*lua.LFunction); isFn {
			f = b
		} else {
			return lua.LNil, fmt.Errorf("%q.%s: %w", obj.name, fn, ErrNoAccessor)
		}
	}
	return vm.call(obj, f, 1, args...)
}

// --- Ticking ---

// Update advances the tree by dt seconds: running tweens, then the current
// state of every live object in pre-order. Objects destroyed during the
// tick are freed after the walk. The first script error stops the walk and
// is returned.
func (vm *VM) Update(dt float64) error {
	if err := vm.usable(); err != nil {
		return err
	}
	if !vm.launched {
		return ErrNotLaunched
	}
	if vm.failure != nil {
		return vm.failure
	}
	start := time.Now()
	vm.ticking = true
	vm.clock.advance(dt)
	vm.updateTweens(dt)
	stats := debugStats{}
	err := vm.tick(vm.root, dt, &stats)
	vm.ticking = false
	vm.reap()

	stats.tickTime = time.Since(start)
	stats.objects = vm.objects.len()
	vm.lastStats = stats
	vm.metrics.observeTick(stats.tickTime)
	if vm.debug {
		vm.debugLog(stats)
	}
	return err
}

func (vm *VM) tick(h Handle, dt float64, stats *debugStats) error {
	obj, err := vm.objects.get(h)
	if err != nil || obj.killed {
		return nil
	}
	if fn, ok := obj.program.states[obj.state]; ok {
		stats.ticked++
		if _, err := vm.protect(obj.name, fn, 0, obj.self, lua.LNumber(dt)); err != nil {
			return err
		}
	}
	// Children spawned during the walk are appended and ticked this frame.
	for i := 0; i < len(obj.children); i++ {
		if err := vm.tick(obj.children[i], dt, stats); err != nil {
			return err
		}
	}
	return nil
}

// Ticking reports whether Update is running.
func (vm *VM) Ticking() bool { return vm.ticking }

// Elapsed returns the script time in seconds.
func (vm *VM) Elapsed() float64 { return vm.clock.elapsed }

// --- Script calls ---

// call runs fn with obj's self table as the first argument.
func (vm *VM) call(obj *object, fn *lua.LFunction, nret int, args ...lua.LValue) (lua.LValue, error) {
	if vm.failure != nil {
		return lua.LNil, vm.failure
	}
	params := make([]lua.LValue, 0, len(args)+1)
	params = append(params, obj.self)
	params = append(params, args...)
	return vm.protect(obj.name, fn, nret, params...)
}

// protect calls fn in protected mode and returns its first result. A
// reported script error fails the call even when the script caught it.
func (vm *VM) protect(name string, fn *lua.LFunction, nret int, args ...lua.LValue) (lua.LValue, error) {
	err := vm.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...)
	ret := lua.LValue(lua.LNil)
	if err == nil && nret > 0 {
		ret = vm.L.Get(-nret)
		vm.L.Pop(nret)
	}
	if vm.failure != nil {
		vm.pendingErr = nil
		return lua.LNil, vm.failure
	}
	if err != nil {
		return lua.LNil, vm.scriptError(name, err)
	}
	// An error raised and caught inside the script is not ours to report.
	vm.pendingErr = nil
	return ret, nil
}

// report records err as the VM's failure unless one is already recorded,
// then raises it in the calling script.
func (vm *VM) report(L *lua.LState, err error) {
	var se *ScriptError
	if vm.failure == nil && errors.As(err, &se) {
		vm.failure = se
	}
	vm.raise(L, err)
}

// Failure returns the script error that failed the VM, or nil.
func (vm *VM) Failure() error {
	if vm.failure == nil {
		return nil
	}
	return vm.failure
}

// raise aborts the running Go function with err. The original error is
// kept so the caller of the script sees it unwrapped.
func (vm *VM) raise(L *lua.LState, err error) {
	vm.pendingErr = err
	L.RaiseError("%s", err.Error())
}

// scriptError converts a failed protected call into a *ScriptError.
func (vm *VM) scriptError(name string, err error) error {
	msg := err.Error()
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		msg = apiErr.Object.String()
	}
	pending := vm.pendingErr
	vm.pendingErr = nil
	if pending != nil && strings.Contains(msg, pending.Error()) {
		var se *ScriptError
		if errors.As(pending, &se) {
			return pending
		}
		return &ScriptError{Object: name, Message: msg, Err: pending}
	}
	return &ScriptError{Object: name, Message: msg, Err: err}
}

// --- Events ---

func (vm *VM) emit(typ ObjectEventType, obj *object) {
	if vm.events == nil {
		return
	}
	ev := ObjectEvent{Type: typ, Generation: vm.generation}
	if obj != nil {
		ev.Handle = obj.handle
		ev.Name = obj.name
		ev.Parent = obj.parent
	}
	vm.events.EmitEvent(ev)
}
