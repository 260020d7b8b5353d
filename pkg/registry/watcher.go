// Kunhua Huang 2026

package registry

import "fmt"

type EventType int

const (
	EventAdd EventType = iota
	EventUpdate
	EventDelete
)

func (et EventType) String() string {
	switch et {
	case EventAdd:
		return "ADD"
	case EventUpdate:
		return "UPDATE"
	case EventDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

type Event struct {
	Type     EventType
	Instance *RoleInstance
}

func (e *Event) String() string {
	if e.Instance == nil {
		return e.Type.String()
	}
	return fmt.Sprintf("%s %s %s", e.Type, e.Instance.ID, e.Instance.State)
}

// Watcher yields events of one run in the order the registry applied them.
// Next blocks; after Stop it returns ErrWatcherStopped.
type Watcher interface {
	Next() (*Event, error)
	Stop()
}
