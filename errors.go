package grove

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrStaleHandle is returned when a handle does not belong to the
	// current object tree: it was destroyed, or it predates a reset.
	ErrStaleHandle = errors.New("object handle is not a member of the current tree")

	// ErrUnknownProgram is returned when spawning a name no program defines.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrDuplicateProgram is returned when a program is defined twice under
	// default compile flags.
	ErrDuplicateProgram = errors.New("duplicate program definition")

	// ErrResetFailed is returned by Reset and Reload. It is recoverable: the
	// VM is left as it was.
	ErrResetFailed = errors.New("vm reset failed")

	// ErrVMDestroyed is returned by operations on a destroyed VM.
	ErrVMDestroyed = errors.New("vm destroyed")

	// ErrNotLaunched is returned when ticking a VM that has not been launched.
	ErrNotLaunched = errors.New("vm not launched")

	// ErrNoApplication is returned by Launch when no Application program is
	// defined.
	ErrNoApplication = errors.New("no Application program defined")

	// ErrNoAccessor is returned when an object lacks a conventional accessor.
	ErrNoAccessor = errors.New("accessor not defined")

	// ErrRootObject is returned for operations not allowed on the root.
	ErrRootObject = errors.New("operation not allowed on the root object")
)

// CompileError reports a script file that failed to compile.
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ScriptError is a failure raised by, or on behalf of, a script object.
type ScriptError struct {
	// Object is the name of the offending object.
	Object  string
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("a scripting error was triggered in %q: %s", e.Object, e.Message)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// FatalFunc terminates the process after a fatal error has been logged.
type FatalFunc func(err error)

// exitFatal is the default FatalFunc.
func exitFatal(error) {
	os.Exit(1)
}
