package grove

import (
	"math"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/phanxgames/grove/assetfs"
)

const epsilon = 1e-9

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertVecNear(t *testing.T, name string, got, want Vec2) {
	t.Helper()
	assertNear(t, name+".X", got.X, want.X)
	assertNear(t, name+".Y", got.Y, want.Y)
}

// newTestVM returns a VM with a test logger and a do-nothing "Node"
// program.
func newTestVM(t *testing.T) *VM {
	t.Helper()
	vm := NewVM(VMOptions{Logger: zaptest.NewLogger(t), Screen: Vec2{400, 300}})
	t.Cleanup(vm.Destroy)
	require.NoError(t, vm.DefineNative(NativeProgram{Name: "Node", States: idleStates()}))
	return vm
}

// chain spawns a root followed by depth nested Node objects and returns
// them root first.
func chain(t *testing.T, vm *VM, depth int) []Handle {
	t.Helper()
	root, err := vm.Spawn(NullHandle, "Node")
	require.NoError(t, err)
	hs := []Handle{root}
	for i := 0; i < depth; i++ {
		h, err := vm.Spawn(hs[len(hs)-1], "Node")
		require.NoError(t, err)
		hs = append(hs, h)
	}
	return hs
}

// compile compiles src as a primary script.
func compile(t *testing.T, vm *VM, path, src string) {
	t.Helper()
	require.NoError(t, vm.CompileSource(path, []byte(src), OriginPrimary, CompileDefaults))
}

// newTestStore builds an in-memory asset store. Both maps go from path to
// file contents; the default language file is always present in primary.
func newTestStore(t *testing.T, primary, override map[string]string) *assetfs.Store {
	t.Helper()
	p, o := afero.NewMemMapFs(), afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(p, "languages/english.toml", []byte("LANG_COMPATIBILITY = \"0.6.0\"\nHELLO = \"Hello\"\n"), 0o644))
	for name, body := range primary {
		require.NoError(t, afero.WriteFile(p, name, []byte(body), 0o644))
	}
	for name, body := range override {
		require.NoError(t, afero.WriteFile(o, name, []byte(body), 0o644))
	}
	return assetfs.New(p, o)
}

// fatalRecorder collects errors passed to Runtime.Fail.
type fatalRecorder struct {
	errs []error
}

func (f *fatalRecorder) fatal(err error) { f.errs = append(f.errs, err) }

// newTestRuntime builds an uninitialized runtime over an in-memory store.
func newTestRuntime(t *testing.T, store *assetfs.Store) (*Runtime, *fatalRecorder) {
	t.Helper()
	rec := &fatalRecorder{}
	rt := NewRuntime(Config{
		Logger: zaptest.NewLogger(t),
		Store:  store,
		Fatal:  rec.fatal,
	})
	t.Cleanup(rt.Shutdown)
	return rt, rec
}

// startRuntime builds and initializes a runtime over the given scripts.
func startRuntime(t *testing.T, primary, override map[string]string) *Runtime {
	t.Helper()
	rt, _ := newTestRuntime(t, newTestStore(t, primary, override))
	require.NoError(t, rt.Initialize([]string{"grove"}))
	return rt
}

// global reads a Lua global as a string.
func global(vm *VM, name string) string {
	return vm.L.GetGlobal(name).String()
}
