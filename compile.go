package grove

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/phanxgames/grove/assetfs"
)

// Script defaults.
const (
	DefaultScriptsDir = "scripts"
	DefaultScriptExt  = ".lua"
)

// compileUnit collects the object definitions of one file.
type compileUnit struct {
	path string
	defs []definition
}

type definition struct {
	name  string
	table *lua.LTable
}

// luaObject implements the global "object". Both forms are accepted:
//
//	object "Name" { ... }
//	object("Name", { ... })
func (vm *VM) luaObject(L *lua.LState) int {
	name := L.CheckString(1)
	if vm.unit == nil {
		L.RaiseError("object %q must be defined at the top level of a script file", name)
		return 0
	}
	if def, ok := L.Get(2).(*lua.LTable); ok {
		vm.unit.defs = append(vm.unit.defs, definition{name: name, table: def})
		return 0
	}
	L.Push(L.NewFunction(func(L *lua.LState) int {
		if vm.unit == nil {
			L.RaiseError("object %q must be defined at the top level of a script file", name)
			return 0
		}
		vm.unit.defs = append(vm.unit.defs, definition{name: name, table: L.CheckTable(1)})
		return 0
	}))
	return 1
}

// CompileSource compiles one script file and defines every object it
// declares. Under CompileDefaults a name that is already defined fails
// with ErrDuplicateProgram; under CompileSkipDuplicates the new definition
// replaces the old one. Failures are returned as *CompileError.
func (vm *VM) CompileSource(path string, src []byte, origin ProgramOrigin, flags CompileFlags) error {
	if err := vm.usable(); err != nil {
		return err
	}
	fail := func(err error) error { return &CompileError{Path: path, Err: err} }

	proto, err := vm.cache.compile(path, src)
	if err != nil {
		return fail(err)
	}

	vm.unit = &compileUnit{path: path}
	defer func() { vm.unit = nil }()

	vm.L.Push(vm.L.NewFunctionFromProto(proto))
	err = vm.L.PCall(0, 0, nil)
	vm.pendingErr = nil
	if err != nil {
		return fail(err)
	}

	for _, d := range vm.unit.defs {
		prog, err := vm.newScriptProgram(d.name, d.table, path, origin)
		if err != nil {
			return fail(err)
		}
		if err := vm.install(prog, flags); err != nil {
			return fail(err)
		}
	}
	vm.metrics.fileCompiled()
	return nil
}

// newScriptProgram turns a definition table into a program. Function
// fields become methods, "init" the constructor, "states" the state
// table, "tags" the tag list; every other field is an instance default.
func (vm *VM) newScriptProgram(name string, def *lua.LTable, path string, origin ProgramOrigin) (*Program, error) {
	p := &Program{
		Name:    name,
		Origin:  origin,
		Path:    path,
		states:  make(map[string]*lua.LFunction),
		methods: vm.L.NewTable(),
		fields:  make(map[string]lua.LValue),
	}
	var bad error
	def.ForEach(func(k, v lua.LValue) {
		if bad != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			bad = fmt.Errorf("object %q: field keys must be strings, got %s", name, k.Type())
			return
		}
		switch string(key) {
		case "init":
			fn, ok := v.(*lua.LFunction)
			if !ok {
				bad = fmt.Errorf("object %q: init must be a function", name)
				return
			}
			p.init = fn
		case "states":
			states, ok := v.(*lua.LTable)
			if !ok {
				bad = fmt.Errorf("object %q: states must be a table", name)
				return
			}
			states.ForEach(func(sk, sv lua.LValue) {
				sname, ok1 := sk.(lua.LString)
				fn, ok2 := sv.(*lua.LFunction)
				if !ok1 || !ok2 {
					bad = fmt.Errorf("object %q: states must map names to functions", name)
					return
				}
				p.states[string(sname)] = fn
			})
		case "tags":
			tags, ok := v.(*lua.LTable)
			if !ok {
				bad = fmt.Errorf("object %q: tags must be a list", name)
				return
			}
			for i := 1; i <= tags.Len(); i++ {
				s, ok := tags.RawGetInt(i).(lua.LString)
				if !ok {
					bad = fmt.Errorf("object %q: tags must be strings", name)
					return
				}
				p.Tags = append(p.Tags, string(s))
			}
		default:
			if fn, ok := v.(*lua.LFunction); ok {
				p.methods.RawSetString(string(key), fn)
			} else {
				p.fields[string(key)] = v
			}
		}
	})
	if bad != nil {
		return nil, bad
	}
	return p, nil
}

// CompileScripts compiles every file under dir ending in ext. Primary
// files compile first with CompileDefaults, so two primary definitions of
// one name are an error. Override files compile next with
// CompileSkipDuplicates, so they replace primary definitions. Each group
// compiles in lexical path order. It returns the number of files compiled.
func (vm *VM) CompileScripts(store *assetfs.Store, dir, ext string) (int, error) {
	start := time.Now()
	files, err := store.List(dir, ext, true)
	if err != nil {
		return 0, fmt.Errorf("list scripts: %w", err)
	}

	var primary, override []assetfs.File
	for _, f := range files {
		if f.Origin == assetfs.Primary {
			primary = append(primary, f)
		} else {
			override = append(override, f)
		}
	}

	n := 0
	compile := func(group []assetfs.File, origin ProgramOrigin, flags CompileFlags) error {
		for _, f := range group {
			src, err := store.ReadFile(f.Path)
			if err != nil {
				return &CompileError{Path: store.FullPath(f.Path), Err: err}
			}
			vm.log.Debug("compiling script", zap.String("path", f.Path), zap.Stringer("origin", origin))
			if err := vm.CompileSource(f.Path, src, origin, flags); err != nil {
				if ce, ok := err.(*CompileError); ok {
					ce.Path = store.FullPath(f.Path)
				}
				return err
			}
			n++
		}
		return nil
	}
	if err := compile(primary, OriginPrimary, CompileDefaults); err != nil {
		return n, err
	}
	if err := compile(override, OriginOverride, CompileSkipDuplicates); err != nil {
		return n, err
	}

	hits, misses := vm.cache.stats()
	vm.log.Info("scripts compiled",
		zap.Int("files", n),
		zap.Int("overrides", len(override)),
		zap.Int("programs", vm.pool.Len()),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses),
		zap.Duration("elapsed", time.Since(start)))
	return n, nil
}
