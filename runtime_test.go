package grove

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"

	"github.com/phanxgames/grove/lang"
	"github.com/phanxgames/grove/version"
)

const titleScript = `
object "Title" {
	init = function(self) self.frames = 0 end,
	states = { main = function(self, dt) self.frames = self.frames + 1 end },
}
`

const testApplication = `
object "Application" {
	init = function(self) self:spawn("Probe") end,
	states = { main = function(self, dt) end },
	on_exit = function(self) exited = true end,
}
object "Probe" {}
`

func TestInitializeBuiltinApplication(t *testing.T) {
	rt, _ := newTestRuntime(t, newTestStore(t, map[string]string{"scripts/title.lua": titleScript}, nil))
	rt.cfg.Startup = []string{"Title"}
	require.NoError(t, rt.Initialize([]string{"grove", "-x"}))

	assert.False(t, rt.IsTestMode())
	vm := rt.VM()
	require.NotNil(t, vm)
	assert.True(t, vm.Launched())

	p, ok := vm.Pool().Get(ApplicationProgram)
	require.True(t, ok)
	assert.Equal(t, OriginNative, p.Origin)

	title := vm.Find("Title")
	require.NotEqual(t, NullHandle, title)
	parent, _ := vm.ParentName(title)
	assert.Equal(t, ApplicationProgram, parent)

	plugins := vm.Plugins()
	require.NotEmpty(t, plugins)
	assert.Equal(t, EngineProgram, plugins[0])
	assert.Equal(t, []string{"Camera", "Input", "Time", "Screen", "Lang", "Console"}, vm.Components())
}

func TestInitializeTestMode(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": testApplication}, nil)
	assert.True(t, rt.IsTestMode())

	p, _ := rt.VM().Pool().Get(ApplicationProgram)
	assert.Equal(t, OriginPrimary, p.Origin, "the script Application is kept")
	assert.NotEqual(t, NullHandle, rt.VM().Find("Probe"))
}

func TestInitializeApplicationWithoutMainIsNotTestMode(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"scripts/title.lua": titleScript,
		"scripts/app.lua": `
object "Application" {
	init = function(self) self.title = self:child("Title") end,
	on_exit = function(self) end,
}
`,
	}, nil)
	rt, _ := newTestRuntime(t, store)
	rt.cfg.Startup = []string{"Title"}
	require.NoError(t, rt.Initialize(nil))
	assert.False(t, rt.IsTestMode())

	vm := rt.VM()
	assert.True(t, vm.Launched())
	p, ok := vm.Pool().Get(ApplicationProgram)
	require.True(t, ok)
	assert.Equal(t, OriginPrimary, p.Origin)
	assert.True(t, p.HasState(MainState))
	assert.True(t, p.HasFunction("on_exit"), "script methods are kept")
	assert.NotZero(t, p.Caps()&CapExitHook)

	title := vm.Find("Title")
	require.NotEqual(t, NullHandle, title)
	parent, _ := vm.ParentName(title)
	assert.Equal(t, ApplicationProgram, parent)

	self, err := vm.Self(vm.Application())
	require.NoError(t, err)
	got, ok := vm.HandleOf(self.RawGetString("title"))
	require.True(t, ok, "the script init runs after the startup programs")
	assert.Equal(t, title, got)
	require.NoError(t, vm.Update(0.1))
}

func TestInitializeTwicePanics(t *testing.T) {
	rt := startRuntime(t, nil, nil)
	assert.Panics(t, func() { _ = rt.Initialize(nil) })
}

func TestInitializeCopiesArgs(t *testing.T) {
	args := []string{"grove", "--level", "3"}
	rt, _ := newTestRuntime(t, newTestStore(t, nil, nil))
	require.NoError(t, rt.Initialize(args))
	args[2] = "changed"

	assert.Equal(t, []string{"grove", "--level", "3"}, rt.Args())
	arg := rt.VM().L.GetGlobal("arg").(*lua.LTable)
	assert.Equal(t, "3", arg.RawGetInt(2).String())
}

func TestVersionGateRunsBeforeVM(t *testing.T) {
	rt, rec := newTestRuntime(t, newTestStore(t, nil, nil))
	rt.cfg.RuntimeVersion = "0.5.3"
	rt.cfg.MinRuntimeVersion = "0.5.4"

	err := rt.Initialize(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, version.ErrIncompatible)
	assert.Nil(t, rt.VM(), "no VM is created when the gate fails")

	rt.Fail(err)
	require.Len(t, rec.errs, 1)
	assert.Same(t, err, rec.errs[0])
}

func TestVersionGateAcceptsEqual(t *testing.T) {
	rt, _ := newTestRuntime(t, newTestStore(t, nil, nil))
	rt.cfg.RuntimeVersion = "0.5.4-1"
	rt.cfg.MinRuntimeVersion = "0.5.4"
	require.NoError(t, rt.Initialize(nil))
}

func TestInitializeMissingLanguage(t *testing.T) {
	store := newTestStore(t, nil, nil)
	rt, _ := newTestRuntime(t, store)
	rt.cfg.Language = "languages/klingon.toml"
	require.NoError(t, rt.Initialize(nil), "a missing language falls back to the default")
	assert.Equal(t, lang.DefaultFile, rt.Lang().Path())
}

func TestInitializeCompileErrorIsReported(t *testing.T) {
	store := newTestStore(t, map[string]string{"scripts/broken.lua": `object "X" {`}, nil)
	rt, _ := newTestRuntime(t, store)
	err := rt.Initialize(nil)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Path, "broken.lua")
}

func TestOverrideReplacesPrimaryAtStartup(t *testing.T) {
	rt := startRuntime(t,
		map[string]string{"scripts/title.lua": titleScript + `object "Greeting" { text = "base" }`},
		map[string]string{"scripts/zz_mod.lua": `object "Greeting" { text = "mod" }`})
	p, ok := rt.VM().Pool().Get("Greeting")
	require.True(t, ok)
	assert.Equal(t, OriginOverride, p.Origin)
}

func TestUpdateTicksObjects(t *testing.T) {
	rt, _ := newTestRuntime(t, newTestStore(t, map[string]string{"scripts/title.lua": titleScript}, nil))
	rt.cfg.Startup = []string{"Title"}
	require.NoError(t, rt.Initialize(nil))

	for i := 0; i < 3; i++ {
		require.NoError(t, rt.Update(1.0/60))
	}
	self, _ := rt.VM().Self(rt.VM().Find("Title"))
	assert.Equal(t, lua.LNumber(3), self.RawGetString("frames"))
}

func TestReloadKeepsVMIdentity(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": testApplication}, nil)
	vm := rt.VM()
	probe := vm.Find("Probe")

	require.NoError(t, rt.Reload())
	assert.Same(t, vm, rt.VM())
	assert.Equal(t, 1, vm.Generation())
	assert.True(t, rt.IsTestMode())
	assert.True(t, vm.Launched())

	_, err := vm.Name(probe)
	assert.ErrorIs(t, err, ErrStaleHandle, "handles do not survive a reload")
	assert.NotEqual(t, NullHandle, vm.Find("Probe"))
}

func TestReloadRequestedByScript(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": `
object "Application" {
	states = { main = function(self, dt) Engine:reload() end },
}
`}, nil)
	require.NoError(t, rt.Update(0.1))
	assert.Equal(t, 1, rt.VM().Generation(), "the reload runs after the tick")
	assert.True(t, rt.VM().Launched())
}

func TestReloadRefusedDuringTick(t *testing.T) {
	var reloadErr error
	rt, _ := newTestRuntime(t, newTestStore(t, map[string]string{"scripts/app.lua": `
object "Application" {
	states = { main = function(self, dt) host_reload() end },
}
`}, nil))
	rt.cfg.Namespaces = []Namespace{{
		Name: "HostReload",
		Register: func(vm *VM) error {
			vm.L.SetGlobal("host_reload", vm.L.NewFunction(func(L *lua.LState) int {
				reloadErr = rt.Reload()
				return 0
			}))
			return nil
		},
	}}
	require.NoError(t, rt.Initialize(nil))

	require.NoError(t, rt.Update(0.1))
	assert.ErrorIs(t, reloadErr, ErrResetFailed)
	assert.Zero(t, rt.VM().Generation())
}

func TestReloadFailureCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := newTestStore(t, nil, nil)
	rt, _ := newTestRuntime(t, store)
	rt.cfg.Metrics = reg
	require.NoError(t, rt.Initialize(nil))

	rt.VM().ticking = true
	err := rt.Reload()
	rt.VM().ticking = false
	require.ErrorIs(t, err, ErrResetFailed)
	assert.Equal(t, 1.0, metricValue(t, rt.metrics.reloadFailures))
}

func TestReloadBeforeInitialize(t *testing.T) {
	rt, _ := newTestRuntime(t, newTestStore(t, nil, nil))
	assert.ErrorIs(t, rt.Reload(), ErrResetFailed)
	assert.ErrorIs(t, rt.Update(0.1), ErrNotLaunched)
}

func TestShutdownRunsExitHook(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": testApplication}, nil)
	vm := rt.VM()
	globals := vm.L.G.Global

	rt.Shutdown()
	assert.Equal(t, lua.LTrue, globals.RawGetString("exited"))
	assert.True(t, vm.Destroyed())
	assert.Nil(t, rt.Args())

	rt.Shutdown()
	assert.ErrorIs(t, rt.Update(0.1), ErrNotLaunched)
}

func TestEngineNamespaceFromScripts(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": `
object "Application" {
	init = function(self)
		engine_version, runtime_version = Engine:version()
		test_mode = Engine:test_mode()
		hello = Engine.Lang:get("HELLO")
		unknown = Engine.Lang:get("NOPE")
		width = Engine.Screen:width()
	end,
	states = { main = function(self, dt)
		ticks = Engine.Time:ticks()
		if Engine.Input:pressed("fire1") then fired = true end
	end },
}
`}, nil)
	vm := rt.VM()
	assert.Equal(t, version.Engine, global(vm, "engine_version"))
	assert.Equal(t, version.Runtime, global(vm, "runtime_version"))
	assert.Equal(t, "true", global(vm, "test_mode"))
	assert.Equal(t, "Hello", global(vm, "hello"))
	assert.Equal(t, "null", global(vm, "unknown"))
	assert.Equal(t, "426", global(vm, "width"))

	rt.Input().InjectTap("fire1")
	require.NoError(t, rt.Update(0.1))
	assert.Equal(t, "1", global(vm, "ticks"))
	assert.Equal(t, "true", global(vm, "fired"))
}

func TestQuitFromScript(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": `
object "Application" {
	states = { main = function(self, dt) Engine:quit() end },
}
`}, nil)
	assert.False(t, rt.QuitRequested())
	require.NoError(t, rt.Update(0.1))
	assert.True(t, rt.QuitRequested())
}

func TestCameraFollowFromScript(t *testing.T) {
	rt := startRuntime(t, map[string]string{"scripts/app.lua": `
object "Application" {
	init = function(self)
		self.hero = self:spawn("Hero")
		Engine.Camera:follow(self.hero)
	end,
	states = { main = function(self, dt) end },
}
object "Hero" {
	init = function(self) self:set_position(30, 40) end,
}
`}, nil)
	require.NoError(t, rt.Update(0.1))
	assert.Equal(t, Vec2{30, 40}, rt.Camera().Position())

	require.NoError(t, rt.Reload())
	require.NoError(t, rt.Update(0.1))
	assert.NotEqual(t, NullHandle, rt.Camera().Following(), "the new generation follows its own hero")
}

func TestCustomNamespaceRegisteredOnReload(t *testing.T) {
	calls := 0
	rt, _ := newTestRuntime(t, newTestStore(t, nil, nil))
	rt.cfg.Namespaces = []Namespace{{Name: "Counter", Register: func(vm *VM) error {
		calls++
		return nil
	}}}
	require.NoError(t, rt.Initialize(nil))
	require.NoError(t, rt.Reload())
	assert.Equal(t, 2, calls)
}

func TestNamespaceWithoutRegistrarPanics(t *testing.T) {
	vm := NewVM(VMOptions{Logger: zaptest.NewLogger(t)})
	defer vm.Destroy()
	assert.Panics(t, func() { _ = registerNamespaces(vm, []Namespace{{Name: "Empty"}}) })
}
