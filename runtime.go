package grove

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/phanxgames/grove/lang"
	"github.com/phanxgames/grove/version"
)

type runtimeState uint8

const (
	stateUninitialized runtimeState = iota
	stateRunning
	stateDestroyed
)

// Runtime drives the scripting VM for the engine: it checks runtime
// compatibility, registers the built-in namespaces, compiles the scripts,
// decides whether a user-supplied Application takes over, launches the
// object tree, and ticks it once per frame.
type Runtime struct {
	cfg     Config
	log     *zap.Logger
	vm      *VM
	args    []string
	camera  *Camera
	input   *Input
	lang    *lang.Table
	metrics *Metrics

	testMode bool
	state    runtimeState
}

// NewRuntime creates a runtime. No VM exists until Initialize.
func NewRuntime(cfg Config) *Runtime {
	cfg = cfg.withDefaults()
	return &Runtime{
		cfg:    cfg,
		log:    cfg.Logger,
		camera: NewCamera(Rect{Width: float64(cfg.Width), Height: float64(cfg.Height)}),
		input:  NewInput(cfg.Input),
	}
}

// Initialize checks that the linked object runtime is recent enough,
// creates the VM, keeps a private copy of args, and boots the scripts.
// Calling it twice panics. A version mismatch returns an error wrapping
// version.ErrIncompatible before any VM exists.
func (r *Runtime) Initialize(args []string) error {
	if r.state != stateUninitialized {
		panic("grove: runtime already initialized")
	}
	r.log.Info("initializing scripting runtime",
		zap.String("engine", version.Engine),
		zap.String("runtime", r.cfg.RuntimeVersion))

	if err := version.Require(r.cfg.MinRuntimeVersion, r.cfg.RuntimeVersion); err != nil {
		return fmt.Errorf("this build requires at least object runtime %s (using %s): %w",
			r.cfg.MinRuntimeVersion, r.cfg.RuntimeVersion, err)
	}

	loader := &lang.Loader{Store: r.cfg.Store, Engine: version.MustParse(version.Engine), Log: r.log}
	tbl, err := loader.Load(r.cfg.Language)
	if err != nil {
		return fmt.Errorf("load language: %w", err)
	}
	r.lang = tbl

	if r.cfg.Metrics != nil {
		if r.metrics, err = NewMetrics(r.cfg.Metrics); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	r.vm = NewVM(VMOptions{
		Logger:    r.log.Named("vm"),
		Events:    r.cfg.Events,
		Metrics:   r.metrics,
		CacheSize: r.cfg.CacheSize,
		Debug:     r.cfg.Debug,
		Camera:    r.camera,
		Screen:    Vec2{float64(r.cfg.Width), float64(r.cfg.Height)},
	})
	r.args = make([]string, len(args))
	for i, a := range args {
		r.args[i] = strings.Clone(a)
	}
	r.state = stateRunning
	return r.boot()
}

// boot registers namespaces, compiles scripts, detects test mode, and
// launches. It runs on a fresh or freshly reset VM.
func (r *Runtime) boot() error {
	if err := registerNamespaces(r.vm, r.DefaultNamespaces()); err != nil {
		return err
	}
	if _, err := r.vm.CompileScripts(r.cfg.Store, r.cfg.ScriptsDir, r.cfg.ScriptExt); err != nil {
		return err
	}
	r.testMode = foundTestScript(r.vm)
	if r.testMode {
		r.log.Info("got a test script")
	} else if err := defineApplication(r.vm, r.cfg.Startup); err != nil {
		return err
	}
	return r.vm.Launch(r.args)
}

// Reload resets the VM and boots the scripts again with the stored
// arguments. A refused reset is logged and returned wrapping
// ErrResetFailed; the VM is left as it was and the failure is not fatal.
// Errors after a successful reset (compilation, launch) are fatal.
func (r *Runtime) Reload() error {
	if r.vm == nil {
		err := fmt.Errorf("%w: runtime not initialized", ErrResetFailed)
		r.log.Error("failed to reload the scripts", zap.Error(err))
		return err
	}
	r.log.Info("reloading the scripts")
	if err := r.vm.Reset(); err != nil {
		r.log.Error("failed to reload the scripts", zap.Error(err))
		r.metrics.reloadFailed()
		return err
	}
	if err := r.boot(); err != nil {
		return err
	}
	r.log.Info("scripts reloaded", zap.Int("generation", r.vm.Generation()))
	return nil
}

// Update advances one frame: input, the object tree, then the camera. A
// reload requested by a script during the tick runs afterwards. Returned
// errors are fatal.
func (r *Runtime) Update(dt float64) error {
	if r.state != stateRunning {
		return ErrNotLaunched
	}
	r.input.update()
	if err := r.vm.Update(dt); err != nil {
		return err
	}
	r.camera.update(float32(dt), r.vm)

	if r.vm.reloadRequested {
		r.vm.reloadRequested = false
		if err := r.Reload(); err != nil && !errors.Is(err, ErrResetFailed) {
			return err
		}
	}
	return nil
}

// Shutdown calls the Application's on_exit hook when it has one, drops the
// argument copy, and destroys the VM. It is a no-op unless the runtime is
// running.
func (r *Runtime) Shutdown() {
	if r.state != stateRunning {
		return
	}
	if obj, err := r.vm.objects.get(r.vm.Application()); err == nil && obj.caps.Has(CapExitHook) {
		fn, _ := obj.program.method("on_exit")
		if _, err := r.vm.call(obj, fn, 0); err != nil {
			r.log.Debug("exit hook failed", zap.Error(err))
		}
	}
	r.args = nil
	r.vm.Destroy()
	r.state = stateDestroyed
	r.log.Info("scripting runtime shut down")
}

// Fail logs err and hands it to the configured fatal handler.
func (r *Runtime) Fail(err error) {
	r.log.Error("fatal error", zap.Error(err))
	_ = r.log.Sync()
	r.cfg.Fatal(err)
}

// IsTestMode reports whether the scripts supply their own Application.
func (r *Runtime) IsTestMode() bool { return r.testMode }

// VM returns the VM, or nil before Initialize.
func (r *Runtime) VM() *VM { return r.vm }

// Camera returns the camera.
func (r *Runtime) Camera() *Camera { return r.camera }

// Input returns the input state.
func (r *Runtime) Input() *Input { return r.input }

// Lang returns the loaded language table.
func (r *Runtime) Lang() *lang.Table { return r.lang }

// Args returns the stored launch arguments.
func (r *Runtime) Args() []string { return r.args }

// Config returns the effective configuration.
func (r *Runtime) Config() Config { return r.cfg }

// QuitRequested reports whether a script asked the engine to quit.
func (r *Runtime) QuitRequested() bool {
	return r.vm != nil && r.vm.quitRequested
}
