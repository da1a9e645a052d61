package grove

import "math"

// Transform is an object's local placement relative to its parent: a
// translation and a rotation in degrees.
type Transform struct {
	X, Y  float64
	Angle float64
}

// apply maps a point from the object's local space to its parent's space:
// rotate by Angle, then translate.
func (t *Transform) apply(x, y float64) (float64, float64) {
	sin, cos := math.Sincos(t.Angle * deg2rad)
	return cos*x - sin*y + t.X, sin*x + cos*y + t.Y
}

// applyInverse maps a point from the parent's space into the object's
// local space: translate back, then rotate by -Angle.
func (t *Transform) applyInverse(x, y float64) (float64, float64) {
	x -= t.X
	y -= t.Y
	sin, cos := math.Sincos(-t.Angle * deg2rad)
	return cos*x - sin*y, sin*x + cos*y
}

// --- World-space queries ---

// WorldPosition returns the position of h in world space. Ancestors whose
// transform was never written are skipped. The walk does not allocate.
func (vm *VM) WorldPosition(h Handle) (Vec2, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return Vec2{}, err
	}
	x, y := obj.transform.X, obj.transform.Y
	for obj.handle != vm.root {
		if obj, err = vm.objects.get(obj.parent); err != nil {
			return Vec2{}, err
		}
		if obj.transformChanged {
			x, y = obj.transform.apply(x, y)
		}
	}
	return Vec2{x, y}, nil
}

// WorldAngle returns the sum of the local angles of h and all of its
// ancestors, the root included. The result is not normalized.
func (vm *VM) WorldAngle(h Handle) (float64, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return 0, err
	}
	angle := obj.transform.Angle
	for obj.handle != vm.root {
		if obj, err = vm.objects.get(obj.parent); err != nil {
			return 0, err
		}
		angle += obj.transform.Angle
	}
	return angle, nil
}

// LocalPosition returns the position of h relative to its parent.
func (vm *VM) LocalPosition(h Handle) (Vec2, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return Vec2{}, err
	}
	return Vec2{obj.transform.X, obj.transform.Y}, nil
}

// LocalAngle returns the angle of h relative to its parent, in [0, 360).
func (vm *VM) LocalAngle(h Handle) (float64, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return 0, err
	}
	return obj.transform.Angle, nil
}

// --- World-space writes ---

// SetWorldPosition moves h so that its world position becomes p. The
// target is pulled through the inverse transforms of every ancestor, root
// first, and stored as the local position. The root stores p unchanged.
func (vm *VM) SetWorldPosition(h Handle, p Vec2) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	if h != vm.root {
		if err := vm.worldToLocal(obj.parent, &p, nil); err != nil {
			return err
		}
	}
	obj.transform.X, obj.transform.Y = p.X, p.Y
	obj.transformChanged = true
	return nil
}

// SetWorldAngle rotates h so that its world angle becomes angle degrees.
// The stored local angle is normalized to [0, 360).
func (vm *VM) SetWorldAngle(h Handle, angle float64) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	if h != vm.root {
		if err := vm.worldToLocal(obj.parent, nil, &angle); err != nil {
			return err
		}
	}
	obj.transform.Angle = normalizeAngle(angle)
	obj.transformChanged = true
	return nil
}

// worldToLocal carries a world-space position and angle into the local
// space of h. It recurses to the root and unwinds root-first. Unlike the
// forward walk, every ancestor is applied regardless of its changed flag.
func (vm *VM) worldToLocal(h Handle, pos *Vec2, angle *float64) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	if h != vm.root {
		if err := vm.worldToLocal(obj.parent, pos, angle); err != nil {
			return err
		}
	}
	if pos != nil {
		pos.X, pos.Y = obj.transform.applyInverse(pos.X, pos.Y)
	}
	if angle != nil {
		*angle -= obj.transform.Angle
	}
	return nil
}

// --- Local-space writes ---

// SetLocalPosition sets the position of h relative to its parent.
func (vm *VM) SetLocalPosition(h Handle, p Vec2) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	obj.transform.X, obj.transform.Y = p.X, p.Y
	obj.transformChanged = true
	return nil
}

// SetLocalAngle sets the angle of h relative to its parent. The stored
// value is normalized to [0, 360).
func (vm *VM) SetLocalAngle(h Handle, angle float64) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	obj.transform.Angle = normalizeAngle(angle)
	obj.transformChanged = true
	return nil
}

// Translate moves h by d in its parent's space.
func (vm *VM) Translate(h Handle, d Vec2) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	obj.transform.X += d.X
	obj.transform.Y += d.Y
	obj.transformChanged = true
	return nil
}

// Rotate turns h by delta degrees.
func (vm *VM) Rotate(h Handle, delta float64) error {
	obj, err := vm.objects.get(h)
	if err != nil {
		return err
	}
	obj.transform.Angle = normalizeAngle(obj.transform.Angle + delta)
	obj.transformChanged = true
	return nil
}

// TransformChanged reports whether the transform of h was ever written.
func (vm *VM) TransformChanged(h Handle) (bool, error) {
	obj, err := vm.objects.get(h)
	if err != nil {
		return false, err
	}
	return obj.transformChanged, nil
}
