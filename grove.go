package grove

import "math"

// Vec2 is a 2D vector used for positions and offsets throughout the API.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Center returns the geometric center of the rectangle.
func (r Rect) Center() Vec2 {
	return Vec2{r.X + r.Width/2, r.Y + r.Height/2}
}

// Handle identifies an object within one VM generation. The zero value is the
// null handle. Handles are never reused: once an object is destroyed, or the
// VM is reset, its handle stops resolving.
type Handle uint64

// NullHandle refers to no object.
const NullHandle Handle = 0

// slot returns the object table index encoded in h.
func (h Handle) slot() uint32 { return uint32(h) }

// Capability is a bitmask of optional functions a program defines. It is
// computed once when a program is defined and copied into every object
// spawned from it, so hot-path queries never consult the program pool.
type Capability uint32

const (
	CapInit      Capability = 1 << iota // constructor "init"
	CapMainState                        // state "main"
	CapZIndex                           // zero-argument accessor "get_zindex"
	CapExitHook                         // exit hook "on_exit"
)

// Has reports whether all bits of f are set.
func (c Capability) Has(f Capability) bool { return c&f == f }

// Well-known names.
const (
	// TagDetached marks objects that ignore the camera and are placed relative
	// to the screen instead.
	TagDetached = "detached"

	// DefaultZIndex is used for objects without a get_zindex accessor.
	DefaultZIndex = 0.5

	// ApplicationProgram is the root application object.
	ApplicationProgram = "Application"

	// SystemProgram is the root of every object tree.
	SystemProgram = "System"

	// EngineProgram is the plugin object exposing engine components.
	EngineProgram = "Engine"

	// MainState is the state every object starts in.
	MainState = "main"
)

const deg2rad = math.Pi / 180

// normalizeAngle maps degrees into [0, 360).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a -= 360
	}
	return a
}
