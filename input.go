package grove

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Actions are the logical buttons scripts query.
var Actions = []string{"up", "down", "left", "right", "fire1", "fire2", "fire3", "fire4", "pause"}

// InputSource reports the physical state of logical actions.
type InputSource interface {
	// Pressed reports whether action is held down.
	Pressed(action string) bool
	// Cursor returns the pointer position in screen coordinates.
	Cursor() (x, y float64)
}

// Input tracks per-frame action state. It merges a physical source with a
// queue of synthetic events; the queue is drained one event per frame.
type Input struct {
	source InputSource

	cur      map[string]bool
	prev     map[string]bool
	injected map[string]bool

	cursorX, cursorY float64

	injectQueue []syntheticInputEvent
}

// NewInput creates input state reading from source, which may be nil.
func NewInput(source InputSource) *Input {
	return &Input{
		source:   source,
		cur:      make(map[string]bool, len(Actions)),
		prev:     make(map[string]bool, len(Actions)),
		injected: make(map[string]bool),
	}
}

// update samples the source and applies at most one injected event.
func (in *Input) update() {
	in.cur, in.prev = in.prev, in.cur
	clear(in.cur)
	in.processInjectedInput()
	for _, a := range Actions {
		held := in.injected[a]
		if !held && in.source != nil {
			held = in.source.Pressed(a)
		}
		in.cur[a] = held
	}
	for a, held := range in.injected {
		if held {
			in.cur[a] = true
		}
	}
	if in.source != nil {
		in.cursorX, in.cursorY = in.source.Cursor()
	}
}

// Held reports whether action is down this frame.
func (in *Input) Held(action string) bool { return in.cur[action] }

// Pressed reports whether action went down this frame.
func (in *Input) Pressed(action string) bool { return in.cur[action] && !in.prev[action] }

// Released reports whether action went up this frame.
func (in *Input) Released(action string) bool { return !in.cur[action] && in.prev[action] }

// Cursor returns the pointer position in screen coordinates.
func (in *Input) Cursor() (x, y float64) { return in.cursorX, in.cursorY }

// --- Keyboard source ---

// KeyboardSource reads actions from the Ebitengine keyboard and mouse.
type KeyboardSource struct {
	Bindings map[string][]ebiten.Key
}

// DefaultKeyBindings returns the standard keyboard layout.
func DefaultKeyBindings() map[string][]ebiten.Key {
	return map[string][]ebiten.Key{
		"up":    {ebiten.KeyArrowUp, ebiten.KeyW},
		"down":  {ebiten.KeyArrowDown, ebiten.KeyS},
		"left":  {ebiten.KeyArrowLeft, ebiten.KeyA},
		"right": {ebiten.KeyArrowRight, ebiten.KeyD},
		"fire1": {ebiten.KeySpace},
		"fire2": {ebiten.KeyControlLeft, ebiten.KeyControlRight},
		"fire3": {ebiten.KeyShiftLeft, ebiten.KeyShiftRight},
		"fire4": {ebiten.KeyEnter},
		"pause": {ebiten.KeyEscape, ebiten.KeyP},
	}
}

// NewKeyboardSource returns a source using DefaultKeyBindings.
func NewKeyboardSource() *KeyboardSource {
	return &KeyboardSource{Bindings: DefaultKeyBindings()}
}

// Pressed implements InputSource.
func (k *KeyboardSource) Pressed(action string) bool {
	for _, key := range k.Bindings[action] {
		if ebiten.IsKeyPressed(key) {
			return true
		}
	}
	return false
}

// Cursor implements InputSource.
func (k *KeyboardSource) Cursor() (x, y float64) {
	cx, cy := ebiten.CursorPosition()
	return float64(cx), float64(cy)
}
