package grove

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

// recordingSink collects object events.
type recordingSink struct {
	events []ObjectEvent
}

func (s *recordingSink) EmitEvent(ev ObjectEvent) { s.events = append(s.events, ev) }

func (s *recordingSink) count(typ ObjectEventType) int {
	n := 0
	for _, ev := range s.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// launchVM compiles src, defines an Application spawning startup, and
// launches.
func launchVM(t *testing.T, vm *VM, src string, startup ...string) {
	t.Helper()
	if src != "" {
		compile(t, vm, "test.lua", src)
	}
	if !vm.Pool().Exists(ApplicationProgram, "") {
		require.NoError(t, defineApplication(vm, startup))
	}
	require.NoError(t, vm.Launch([]string{"grove", "--level", "2"}))
}

// --- Spawning ---

func TestSpawnUnknownProgram(t *testing.T) {
	vm := newTestVM(t)
	_, err := vm.Spawn(NullHandle, "Nope")
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestSpawnSecondRootFails(t *testing.T) {
	vm := newTestVM(t)
	chain(t, vm, 0)
	_, err := vm.Spawn(NullHandle, "Node")
	assert.ErrorIs(t, err, ErrRootObject)
}

func TestSpawnCopiesDefaultFields(t *testing.T) {
	vm := newTestVM(t)
	compile(t, vm, "bag.lua", `object "Bag" { items = {}, label = "bag" }`)
	root := chain(t, vm, 0)[0]

	a, err := vm.Spawn(root, "Bag")
	require.NoError(t, err)
	b, err := vm.Spawn(root, "Bag")
	require.NoError(t, err)

	sa, _ := vm.Self(a)
	sb, _ := vm.Self(b)
	assert.NotSame(t, sa.RawGetString("items"), sb.RawGetString("items"), "tables are copied per instance")
	assert.Equal(t, "bag", sb.RawGetString("label").String())
}

func TestSpawnRunsInit(t *testing.T) {
	vm := newTestVM(t)
	compile(t, vm, "c.lua", `
object "Counter" {
	init = function(self)
		self.count = 10
		self:set_position(3, 4)
	end,
	states = { main = function(self, dt) self.count = self.count + 1 end },
}
`)
	root := chain(t, vm, 0)[0]
	h, err := vm.Spawn(root, "Counter")
	require.NoError(t, err)

	self, _ := vm.Self(h)
	assert.Equal(t, lua.LNumber(10), self.RawGetString("count"))
	p, _ := vm.LocalPosition(h)
	assert.Equal(t, Vec2{3, 4}, p)
}

func TestSpawnInitErrorKeepsObject(t *testing.T) {
	vm := newTestVM(t)
	compile(t, vm, "e.lua", `object "Bad" { init = function(self) error("nope") end }`)
	root := chain(t, vm, 0)[0]

	h, err := vm.Spawn(root, "Bad")
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Bad", se.Object)
	assert.Contains(t, se.Message, "nope")
	assert.True(t, vm.Alive(h))
}

// --- Launch ---

func TestLaunchRequiresApplication(t *testing.T) {
	vm := newTestVM(t)
	assert.ErrorIs(t, vm.Launch(nil), ErrNoApplication)
	assert.False(t, vm.Launched())
	assert.ErrorIs(t, vm.Update(0.1), ErrNotLaunched)
}

func TestLaunchBuildsTree(t *testing.T) {
	vm := newTestVM(t)
	vm.AddPlugin("Node")
	launchVM(t, vm, `object "Title" {}`, "Title")

	root := vm.Root()
	name, _ := vm.Name(root)
	assert.Equal(t, SystemProgram, name)

	children, _ := vm.Children(root)
	require.Len(t, children, 2)
	first, _ := vm.Name(children[0])
	assert.Equal(t, "Node", first, "plugins spawn before the Application")
	assert.Equal(t, children[1], vm.Application())

	title := vm.Find("Title")
	require.NotEqual(t, NullHandle, title)
	parent, _ := vm.ParentName(title)
	assert.Equal(t, ApplicationProgram, parent)

	assert.Error(t, vm.Launch(nil), "second launch")
}

func TestLaunchExposesArgs(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, "")
	arg, ok := vm.L.GetGlobal("arg").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, "grove", arg.RawGetInt(0).String())
	assert.Equal(t, "--level", arg.RawGetInt(1).String())
	assert.Equal(t, "2", arg.RawGetInt(2).String())
}

// --- Ticking ---

func TestUpdateTicksPreOrder(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
order = ""
object "Parent" {
	init = function(self) self:spawn("Kid") end,
	states = { main = function(self, dt) order = order .. "P" end },
}
object "Kid" {
	states = { main = function(self, dt) order = order .. "K" end },
}
`, "Parent", "Kid")

	require.NoError(t, vm.Update(1.0/60))
	assert.Equal(t, "PKK", global(vm, "order"))
	assert.InDelta(t, 1.0/60, vm.Elapsed(), 1e-12)
}

func TestUpdateTicksChildrenSpawnedThisFrame(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
ticks = 0
object "Spawner" {
	states = { main = function(self, dt)
		if not self.done then
			self.done = true
			self:spawn("Ticker")
		end
	end },
}
object "Ticker" {
	states = { main = function(self, dt) ticks = ticks + 1 end },
}
`, "Spawner")

	require.NoError(t, vm.Update(0.1))
	assert.Equal(t, "1", global(vm, "ticks"))
}

func TestUpdateStateSwitch(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
object "Door" {
	states = {
		main = function(self, dt) self:set_state("open") end,
		open = function(self, dt) self.opened = true end,
	},
}
`, "Door")
	door := vm.Find("Door")
	require.NoError(t, vm.Update(0.1))
	state, _ := vm.State(door)
	assert.Equal(t, "open", state)

	require.NoError(t, vm.Update(0.1))
	self, _ := vm.Self(door)
	assert.Equal(t, lua.LTrue, self.RawGetString("opened"))

	assert.Error(t, vm.SetState(door, "missing"))
}

func TestUpdateScriptErrorStopsWalk(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
reached = false
object "Crash" { states = { main = function(self, dt) self:error("bad state " .. 7) end } }
object "After" { states = { main = function(self, dt) reached = true end } }
`, "Crash", "After")

	err := vm.Update(0.1)
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Crash", se.Object)
	assert.Equal(t, "bad state 7", se.Message)
	assert.Equal(t, "false", global(vm, "reached"))
	assert.False(t, vm.Ticking())
}

func TestCaughtScriptErrorStillFailsUpdate(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
caught = false
object "Guarded" { states = { main = function(self, dt)
	caught = not pcall(function() self:error("boom") end)
end } }
`, "Guarded")

	err := vm.Update(0.1)
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Guarded", se.Object)
	assert.Equal(t, "boom", se.Message)
	assert.Equal(t, "true", global(vm, "caught"))
	assert.False(t, vm.Ticking())

	// The failure sticks until the VM is reset.
	again := vm.Update(0.1)
	assert.Same(t, se, again)
	assert.Same(t, se, vm.Failure())

	_, err = vm.Call(vm.Find("Guarded"), "name")
	assert.Same(t, se, err)

	require.NoError(t, vm.Reset())
	assert.NoError(t, vm.Failure())
	launchVM(t, vm, `object "Calm" { states = { main = function(self, dt) end } }`, "Calm")
	assert.NoError(t, vm.Update(0.1))
}

func TestCaughtScriptErrorFailsHostCall(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
object "Quiet" {
	check = function(self)
		local ok = pcall(self.error, self, "swallowed")
		return ok
	end,
	states = { main = function(self, dt) end },
}
`, "Quiet")

	_, err := vm.Call(vm.Find("Quiet"), "check")
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Quiet", se.Object)
	assert.Equal(t, "swallowed", se.Message)
	assert.Same(t, se, vm.Update(0.1))
}

func TestCaughtPlainErrorIsNotAFailure(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
object "Tolerant" { states = { main = function(self, dt)
	pcall(error, "ignored")
end } }
`, "Tolerant")

	require.NoError(t, vm.Update(0.1))
	assert.NoError(t, vm.Failure())
}

func TestReapedObjectTableIsRejected(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
object "Holder" {
	init = function(self) self.kid = self:spawn("Node") end,
	states = { main = function(self, dt)
		self.kid:destroy()
		self.kid:destroy()
	end },
}
`, "Holder")
	holder := vm.Find("Holder")
	kid, _ := vm.Child(holder, "Node")
	require.NotEqual(t, NullHandle, kid)

	// The second destroy runs on a killed but not yet reaped object, which
	// is a no-op.
	require.NoError(t, vm.Update(0.1))
	assert.False(t, vm.Alive(kid))

	// The table outlives the object but no longer names one.
	err := vm.Update(0.1)
	require.Error(t, err)
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Holder", se.Object)
}

// --- Destruction ---

func TestDestroyDeferredDuringTick(t *testing.T) {
	vm := newTestVM(t)
	launchVM(t, vm, `
object "Victim" {}
object "Killer" {
	states = { main = function(self, dt)
		local v = self:parent():child("Victim")
		if v then
			v:destroy()
			seen_after_destroy = v:name()
		end
	end },
}
`, "Victim", "Killer")
	victim := vm.Find("Victim")

	require.NoError(t, vm.Update(0.1))
	assert.Equal(t, "Victim", global(vm, "seen_after_destroy"), "destroyed objects resolve until the tick ends")
	_, err := vm.Name(victim)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.Equal(t, NullHandle, vm.Find("Victim"))
}

func TestDestroySubtree(t *testing.T) {
	vm := newTestVM(t)
	hs := chain(t, vm, 3)
	before := vm.ObjectCount()

	require.NoError(t, vm.DestroyObject(hs[1]))
	assert.Equal(t, before-3, vm.ObjectCount())
	for _, h := range hs[1:] {
		assert.False(t, vm.Alive(h))
	}
	children, _ := vm.Children(hs[0])
	assert.Empty(t, children)
}

func TestDestroyRootFails(t *testing.T) {
	vm := newTestVM(t)
	hs := chain(t, vm, 0)
	assert.ErrorIs(t, vm.DestroyObject(hs[0]), ErrRootObject)
}

func TestHandlesAreNotReused(t *testing.T) {
	vm := newTestVM(t)
	root := chain(t, vm, 0)[0]
	a, _ := vm.Spawn(root, "Node")
	require.NoError(t, vm.DestroyObject(a))
	b, _ := vm.Spawn(root, "Node")
	assert.Equal(t, a.slot(), b.slot(), "slot is recycled")
	assert.NotEqual(t, a, b)
	assert.False(t, vm.Alive(a))
}

// --- Reset ---

func TestResetInvalidatesHandles(t *testing.T) {
	sink := &recordingSink{}
	vm := newTestVM(t)
	vm.events = sink
	launchVM(t, vm, `object "Thing" {}`, "Thing")
	thing := vm.Find("Thing")
	oldL := vm.L

	require.NoError(t, vm.Reset())
	assert.Equal(t, 1, vm.Generation())
	assert.NotSame(t, oldL, vm.L)
	assert.Zero(t, vm.Pool().Len())
	assert.Zero(t, vm.ObjectCount())
	assert.False(t, vm.Launched())
	assert.Equal(t, NullHandle, vm.Root())

	_, err := vm.Name(thing)
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.Equal(t, 1, sink.count(EventReset))

	// A new generation never hands out an old handle.
	require.NoError(t, vm.DefineNative(NativeProgram{Name: "Node"}))
	fresh := chain(t, vm, 3)
	for _, h := range fresh {
		assert.NotEqual(t, thing, h)
	}
}

func TestResetRefusedDuringTick(t *testing.T) {
	vm := newTestVM(t)
	var resetErr error
	require.NoError(t, vm.DefineNative(NativeProgram{
		Name: "Resetter",
		States: map[string]lua.LGFunction{
			MainState: func(L *lua.LState) int {
				resetErr = vm.Reset()
				return 0
			},
		},
	}))
	launchVM(t, vm, "", "Resetter")
	gen := vm.Generation()

	require.NoError(t, vm.Update(0.1))
	assert.ErrorIs(t, resetErr, ErrResetFailed)
	assert.Equal(t, gen, vm.Generation())
	assert.True(t, vm.Alive(vm.Find("Resetter")), "the VM is left as it was")
}

func TestDestroyedVM(t *testing.T) {
	vm := newTestVM(t)
	vm.Destroy()
	vm.Destroy()
	assert.True(t, vm.Destroyed())
	assert.ErrorIs(t, vm.Reset(), ErrResetFailed)
	assert.ErrorIs(t, vm.Reset(), ErrVMDestroyed)
	_, err := vm.Spawn(NullHandle, "Node")
	assert.ErrorIs(t, err, ErrVMDestroyed)
	assert.ErrorIs(t, vm.Update(0.1), ErrVMDestroyed)
}

// --- Queries ---

func TestTags(t *testing.T) {
	vm := newTestVM(t)
	compile(t, vm, "t.lua", `object "Tagged" { tags = { "enemy" } }`)
	root := chain(t, vm, 0)[0]
	h, err := vm.Spawn(root, "Tagged")
	require.NoError(t, err)

	has, _ := vm.HasTag(h, "enemy")
	assert.True(t, has)
	require.NoError(t, vm.SetTag(h, "boss", true))
	require.NoError(t, vm.SetTag(h, "enemy", false))
	has, _ = vm.HasTag(h, "enemy")
	assert.False(t, has)
	has, _ = vm.HasTag(h, "boss")
	assert.True(t, has)

	p, _ := vm.Pool().Get("Tagged")
	assert.Equal(t, []string{"enemy"}, p.Tags, "instance tags are a copy")
}

func TestCall(t *testing.T) {
	vm := newTestVM(t)
	compile(t, vm, "m.lua", `object "Math" { add = function(self, a, b) return a + b end }`)
	root := chain(t, vm, 0)[0]
	h, _ := vm.Spawn(root, "Math")

	v, err := vm.Call(h, "add", lua.LNumber(2), lua.LNumber(3))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(5), v)

	v, err = vm.Call(h, "name")
	require.NoError(t, err)
	assert.Equal(t, "Math", v.String(), "built-in methods are callable")

	_, err = vm.Call(h, "missing")
	assert.ErrorIs(t, err, ErrNoAccessor)
}

func TestHandleOf(t *testing.T) {
	vm := newTestVM(t)
	hs := chain(t, vm, 1)
	self, _ := vm.Self(hs[1])
	h, ok := vm.HandleOf(self)
	assert.True(t, ok)
	assert.Equal(t, hs[1], h)

	_, ok = vm.HandleOf(vm.L.NewTable())
	assert.False(t, ok)
	_, ok = vm.HandleOf(lua.LString("x"))
	assert.False(t, ok)
}

func TestEventsEmitted(t *testing.T) {
	sink := &recordingSink{}
	vm := newTestVM(t)
	vm.events = sink
	hs := chain(t, vm, 2)
	require.NoError(t, vm.DestroyObject(hs[1]))

	assert.Equal(t, 3, sink.count(EventSpawned))
	assert.Equal(t, 2, sink.count(EventDestroyed))
	assert.Equal(t, "spawned", sink.events[0].Type.String())
	assert.Equal(t, hs[0], sink.events[0].Parent, "the root is its own parent")
}

func TestScriptPrint(t *testing.T) {
	vm := newTestVM(t)
	require.NoError(t, vm.L.DoString(`print("hello", 1, true)`))
}
