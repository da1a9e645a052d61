package grove

// syntheticInputEvent represents a single injected action change.
type syntheticInputEvent struct {
	action  string
	pressed bool
}

// InjectPress queues an action press. The event is consumed on the next
// frame's update.
func (in *Input) InjectPress(action string) {
	in.injectQueue = append(in.injectQueue, syntheticInputEvent{action: action, pressed: true})
}

// InjectRelease queues an action release.
func (in *Input) InjectRelease(action string) {
	in.injectQueue = append(in.injectQueue, syntheticInputEvent{action: action, pressed: false})
}

// InjectTap is a convenience that queues a press followed by a release.
// Consumes two frames.
func (in *Input) InjectTap(action string) {
	in.InjectPress(action)
	in.InjectRelease(action)
}

// InjectHold queues a press, frames-2 idle frames, and a release. The
// sequence consumes frames frames. Minimum frames is 2.
func (in *Input) InjectHold(action string, frames int) {
	if frames < 2 {
		frames = 2
	}
	in.InjectPress(action)
	for i := 0; i < frames-2; i++ {
		in.InjectPress(action)
	}
	in.InjectRelease(action)
}

// Pending returns the number of queued synthetic events.
func (in *Input) Pending() int { return len(in.injectQueue) }

// processInjectedInput pops one event from the inject queue and applies it.
// Returns true if an event was consumed.
func (in *Input) processInjectedInput() bool {
	if len(in.injectQueue) == 0 {
		return false
	}
	evt := in.injectQueue[0]
	copy(in.injectQueue, in.injectQueue[1:])
	in.injectQueue = in.injectQueue[:len(in.injectQueue)-1]

	in.injected[evt.action] = evt.pressed
	return true
}
