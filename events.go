package grove

// EventSink is the interface for optional ECS integration.
// When set, object lifecycle events are forwarded to it.
type EventSink interface {
	EmitEvent(event ObjectEvent)
}

// ObjectEventType identifies the kind of lifecycle event.
type ObjectEventType uint8

const (
	EventSpawned   ObjectEventType = iota // an object entered the tree
	EventDestroyed                        // an object left the tree
	EventReset                            // the VM was reset; every handle is stale
)

func (t ObjectEventType) String() string {
	switch t {
	case EventSpawned:
		return "spawned"
	case EventDestroyed:
		return "destroyed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ObjectEvent carries lifecycle data for the ECS bridge. Handle, Name, and
// Parent are zero for EventReset.
type ObjectEvent struct {
	Type       ObjectEventType
	Handle     Handle
	Name       string
	Parent     Handle
	Generation int
}
