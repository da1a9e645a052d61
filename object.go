package grove

import (
	lua "github.com/yuin/gopher-lua"
)

// --- Object ---

// object is one instance in the VM's tree. A single flat struct is used for
// native and scripted objects alike so that the hot path never dispatches
// through an interface.
type object struct {
	// Identity
	handle  Handle
	name    string
	program *Program

	// Hierarchy
	parent   Handle
	children []Handle

	// Local transform, relative to the parent.
	transform Transform
	// transformChanged is sticky: set on the first write, never cleared.
	transformChanged bool

	// State machine
	state string
	caps  Capability
	tags  []string

	// Script side
	self *lua.LTable

	killed bool
}

// hasTag reports whether the object carries tag.
func (o *object) hasTag(tag string) bool {
	for _, t := range o.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// removeChild removes h from o.children, preserving order.
// Uses copy+zero to avoid retaining the stale handle in the backing array.
func (o *object) removeChild(h Handle) {
	for i, c := range o.children {
		if c == h {
			copy(o.children[i:], o.children[i+1:])
			o.children[len(o.children)-1] = NullHandle
			o.children = o.children[:len(o.children)-1]
			return
		}
	}
}

// --- Object table ---

// objectTable maps handles to live objects. The upper 32 bits of a handle
// are an allocation stamp, the lower 32 bits a slot index. The stamp counter
// is never rewound, not even by clear, so a handle from an earlier
// generation can never resolve to a newer object.
type objectTable struct {
	slots []*object
	free  []uint32
	stamp uint32
	live  int
}

// alloc reserves a slot and returns a fresh object bound to a new handle.
func (t *objectTable) alloc() *object {
	t.stamp++
	if t.stamp == 0 {
		t.stamp = 1
	}
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, nil)
	}
	obj := &object{handle: Handle(uint64(t.stamp)<<32 | uint64(idx))}
	t.slots[idx] = obj
	t.live++
	return obj
}

// get resolves h. It returns ErrStaleHandle for null, destroyed, or
// foreign handles and never allocates.
func (t *objectTable) get(h Handle) (*object, error) {
	idx := h.slot()
	if h == NullHandle || int(idx) >= len(t.slots) {
		return nil, ErrStaleHandle
	}
	obj := t.slots[idx]
	if obj == nil || obj.handle != h {
		return nil, ErrStaleHandle
	}
	return obj, nil
}

// release frees the slot held by obj.
func (t *objectTable) release(obj *object) {
	idx := obj.handle.slot()
	if int(idx) < len(t.slots) && t.slots[idx] == obj {
		t.slots[idx] = nil
		t.free = append(t.free, idx)
		t.live--
	}
}

// clear drops every object but keeps the stamp counter.
func (t *objectTable) clear() {
	for i := range t.slots {
		t.slots[i] = nil
	}
	t.slots = t.slots[:0]
	t.free = t.free[:0]
	t.live = 0
}

// len returns the number of live objects.
func (t *objectTable) len() int { return t.live }
