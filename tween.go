package grove

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// tweenField selects what a TweenGroup writes.
type tweenField uint8

const (
	tweenPosition tweenField = iota
	tweenAngle
)

// TweenGroup animates the local transform of one object. Create one with
// TweenPosition or TweenAngle; the VM advances every group it owns before
// ticking objects. If the target object is destroyed, or the VM is reset,
// the group stops immediately.
type TweenGroup struct {
	tweens [2]*gween.Tween
	count  int
	field  tweenField
	target Handle
	vm     *VM
	Done   bool
}

// Update advances all tweens by dt seconds and writes the values to the
// target. If the target is gone, Done is set and no writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if !g.vm.Alive(g.target) {
		g.Done = true
		return
	}

	var vals [2]float32
	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		vals[i] = val
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone

	var err error
	switch g.field {
	case tweenPosition:
		err = g.vm.SetLocalPosition(g.target, Vec2{float64(vals[0]), float64(vals[1])})
	case tweenAngle:
		err = g.vm.SetLocalAngle(g.target, float64(vals[0]))
	}
	if err != nil {
		g.Done = true
	}
}

// Target returns the animated object.
func (g *TweenGroup) Target() Handle { return g.target }

// TweenPosition creates a group that moves h to (toX, toY) in its parent's
// space over duration seconds. The group is owned and advanced by the VM.
func (vm *VM) TweenPosition(h Handle, toX, toY float64, duration float32, fn ease.TweenFunc) (*TweenGroup, error) {
	p, err := vm.LocalPosition(h)
	if err != nil {
		return nil, err
	}
	g := &TweenGroup{count: 2, field: tweenPosition, target: h, vm: vm}
	g.tweens[0] = gween.New(float32(p.X), float32(toX), duration, fn)
	g.tweens[1] = gween.New(float32(p.Y), float32(toY), duration, fn)
	vm.tweens = append(vm.tweens, g)
	return g, nil
}

// TweenAngle creates a group that turns h to angle to, in degrees, over
// duration seconds. The group is owned and advanced by the VM.
func (vm *VM) TweenAngle(h Handle, to float64, duration float32, fn ease.TweenFunc) (*TweenGroup, error) {
	a, err := vm.LocalAngle(h)
	if err != nil {
		return nil, err
	}
	g := &TweenGroup{count: 1, field: tweenAngle, target: h, vm: vm}
	g.tweens[0] = gween.New(float32(a), float32(to), duration, fn)
	vm.tweens = append(vm.tweens, g)
	return g, nil
}

// updateTweens advances every active group and drops finished ones.
func (vm *VM) updateTweens(dt float64) {
	live := vm.tweens[:0]
	for _, g := range vm.tweens {
		g.Update(float32(dt))
		if !g.Done {
			live = append(live, g)
		}
	}
	for i := len(live); i < len(vm.tweens); i++ {
		vm.tweens[i] = nil
	}
	vm.tweens = live
}

// ActiveTweens returns the number of running groups.
func (vm *VM) ActiveTweens() int { return len(vm.tweens) }

// easings maps script-facing names to easing functions.
var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in_quad":      ease.InQuad,
	"out_quad":     ease.OutQuad,
	"in_out_quad":  ease.InOutQuad,
	"in_cubic":     ease.InCubic,
	"out_cubic":    ease.OutCubic,
	"in_out_cubic": ease.InOutCubic,
	"in_sine":      ease.InSine,
	"out_sine":     ease.OutSine,
	"in_out_sine":  ease.InOutSine,
	"out_back":     ease.OutBack,
	"out_bounce":   ease.OutBounce,
	"out_elastic":  ease.OutElastic,
}

// EaseByName returns the easing function called name. Unknown names yield
// ease.Linear and false.
func EaseByName(name string) (ease.TweenFunc, bool) {
	if fn, ok := easings[name]; ok {
		return fn, true
	}
	return ease.Linear, false
}
