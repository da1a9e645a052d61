package grove

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ProgramOrigin records where a program definition came from.
type ProgramOrigin uint8

const (
	OriginPrimary  ProgramOrigin = iota // base engine scripts
	OriginOverride                      // user or mod scripts
	OriginNative                        // defined in Go
)

func (o ProgramOrigin) String() string {
	switch o {
	case OriginOverride:
		return "override"
	case OriginNative:
		return "native"
	default:
		return "primary"
	}
}

// CompileFlags control how a definition enters the program pool.
type CompileFlags uint8

const (
	// CompileDefaults rejects a program whose name is already defined.
	CompileDefaults CompileFlags = 0

	// CompileSkipDuplicates lets a definition replace an existing program of
	// the same name.
	CompileSkipDuplicates CompileFlags = 1 << iota
)

// Program is a named object definition. Objects are spawned from programs.
type Program struct {
	Name   string
	Origin ProgramOrigin
	// Path is the script file that defined the program, empty for natives.
	Path string
	Tags []string

	init    *lua.LFunction
	states  map[string]*lua.LFunction
	methods *lua.LTable
	// fields seed the self table of every new instance.
	fields map[string]lua.LValue
	// meta is the metatable of instance self tables.
	meta *lua.LTable
	caps Capability
}

// Caps returns the program's capability mask.
func (p *Program) Caps() Capability { return p.caps }

// HasState reports whether the program defines state name.
func (p *Program) HasState(name string) bool {
	_, ok := p.states[name]
	return ok
}

// HasFunction reports whether the program defines a method called name.
func (p *Program) HasFunction(name string) bool {
	if p.methods == nil {
		return false
	}
	_, ok := p.methods.RawGetString(name).(*lua.LFunction)
	return ok
}

// method returns the program's own method called name.
func (p *Program) method(name string) (*lua.LFunction, bool) {
	if p.methods == nil {
		return nil, false
	}
	fn, ok := p.methods.RawGetString(name).(*lua.LFunction)
	return fn, ok
}

// computeCaps derives the capability mask from what the program defines.
func (p *Program) computeCaps() {
	p.caps = 0
	if p.init != nil {
		p.caps |= CapInit
	}
	if p.HasState(MainState) {
		p.caps |= CapMainState
	}
	if fn, ok := p.method("get_zindex"); ok && (fn.Proto == nil || fn.Proto.NumParameters <= 1) {
		p.caps |= CapZIndex
	}
	if p.HasFunction("on_exit") {
		p.caps |= CapExitHook
	}
}

// --- Program pool ---

// ProgramPool holds every program the VM knows, by name.
type ProgramPool struct {
	programs map[string]*Program
}

func newProgramPool() *ProgramPool {
	return &ProgramPool{programs: make(map[string]*Program)}
}

// define adds p to the pool. Under CompileDefaults a name clash is
// ErrDuplicateProgram; under CompileSkipDuplicates p replaces the existing
// program.
func (pp *ProgramPool) define(p *Program, flags CompileFlags) (replaced *Program, err error) {
	if p.Name == "" {
		return nil, fmt.Errorf("grove: program name must not be empty")
	}
	old, exists := pp.programs[p.Name]
	if exists && flags&CompileSkipDuplicates == 0 {
		where := old.Path
		if where == "" {
			where = old.Origin.String()
		}
		return nil, fmt.Errorf("%q already defined in %s: %w", p.Name, where, ErrDuplicateProgram)
	}
	pp.programs[p.Name] = p
	return old, nil
}

// Get returns the program called name.
func (pp *ProgramPool) Get(name string) (*Program, bool) {
	p, ok := pp.programs[name]
	return p, ok
}

// Exists reports whether program name defines fn. An empty fn asks whether
// the program exists at all. fn "state:<s>" asks for state s; "init" asks
// for the constructor; anything else names a method.
func (pp *ProgramPool) Exists(name, fn string) bool {
	p, ok := pp.programs[name]
	if !ok {
		return false
	}
	switch {
	case fn == "":
		return true
	case fn == "init":
		return p.init != nil
	case strings.HasPrefix(fn, "state:"):
		return p.HasState(strings.TrimPrefix(fn, "state:"))
	default:
		return p.HasFunction(fn)
	}
}

// Len returns the number of programs.
func (pp *ProgramPool) Len() int { return len(pp.programs) }

// Names returns all program names, sorted.
func (pp *ProgramPool) Names() []string {
	names := make([]string, 0, len(pp.programs))
	for n := range pp.programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// --- Native programs ---

// NativeProgram describes a program implemented in Go. Functions follow the
// script calling convention: argument 1 is the self table.
type NativeProgram struct {
	Name string
	Tags []string
	// Init runs when an instance is spawned.
	Init func(vm *VM, self Handle) error
	// States are the program's states. "main" is the initial state.
	States  map[string]lua.LGFunction
	Methods map[string]lua.LGFunction
}

// DefineNative adds a Go-implemented program to the pool. Defining a name
// twice is ErrDuplicateProgram.
func (vm *VM) DefineNative(np NativeProgram) error {
	if err := vm.usable(); err != nil {
		return err
	}
	L := vm.L
	p := &Program{
		Name:    np.Name,
		Origin:  OriginNative,
		Tags:    append([]string(nil), np.Tags...),
		states:  make(map[string]*lua.LFunction, len(np.States)),
		methods: L.NewTable(),
		fields:  map[string]lua.LValue{},
	}
	if np.Init != nil {
		initFn := np.Init
		p.init = L.NewFunction(func(L *lua.LState) int {
			h := vm.checkSelf(L, 1)
			if err := initFn(vm, h); err != nil {
				vm.raise(L, err)
			}
			return 0
		})
	}
	for name, fn := range np.States {
		p.states[name] = L.NewFunction(fn)
	}
	for name, fn := range np.Methods {
		p.methods.RawSetString(name, L.NewFunction(fn))
	}
	return vm.install(p, CompileDefaults)
}

// install finishes a program and places it in the pool.
func (vm *VM) install(p *Program, flags CompileFlags) error {
	p.computeCaps()
	vm.L.SetMetatable(p.methods, vm.objectMeta)
	p.meta = vm.L.NewTable()
	p.meta.RawSetString("__index", p.methods)
	replaced, err := vm.pool.define(p, flags)
	if err != nil {
		return err
	}
	if replaced != nil {
		vm.log.Debug("program replaced",
			zap.String("program", p.Name),
			zap.String("path", p.Path),
			zap.String("previous", replaced.Path))
	}
	vm.metrics.programDefined(p.Origin)
	return nil
}
