package grove

import (
	"time"

	"go.uber.org/zap"
)

// debugStats holds per-tick timing and counts.
// Only logged when the VM runs in debug mode.
type debugStats struct {
	tickTime time.Duration
	ticked   int
	objects  int
}

// debugLog logs tick stats at debug level.
func (vm *VM) debugLog(stats debugStats) {
	vm.log.Debug("tick",
		zap.Duration("elapsed", stats.tickTime),
		zap.Int("ticked", stats.ticked),
		zap.Int("objects", stats.objects),
		zap.Int("tweens", len(vm.tweens)))
}

// LastTickStats returns the number of objects ticked and the duration of
// the most recent Update.
func (vm *VM) LastTickStats() (ticked int, elapsed time.Duration) {
	return vm.lastStats.ticked, vm.lastStats.tickTime
}

// debugCheckTreeDepth warns if tree depth exceeds the threshold.
const debugMaxTreeDepth = 32

func (vm *VM) debugCheckTreeDepth(obj *object) {
	depth := vm.depth(obj)
	if depth > debugMaxTreeDepth {
		vm.log.Warn("object tree too deep",
			zap.Int("depth", depth),
			zap.Int("threshold", debugMaxTreeDepth),
			zap.String("object", obj.name))
	}
}

// depth counts obj and its ancestors up to the root.
func (vm *VM) depth(obj *object) int {
	depth := 1
	for obj.handle != vm.root {
		parent, err := vm.objects.get(obj.parent)
		if err != nil {
			break
		}
		obj = parent
		depth++
	}
	return depth
}

// debugCheckChildCount warns if an object has more than 1000 children.
const debugMaxChildCount = 1000

func (vm *VM) debugCheckChildCount(obj *object) {
	if len(obj.children) > debugMaxChildCount {
		vm.log.Warn("object has too many children",
			zap.String("object", obj.name),
			zap.Int("children", len(obj.children)),
			zap.Int("threshold", debugMaxChildCount))
	}
}
