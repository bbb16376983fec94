package watcher

import (
	"time"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

type FileEvent struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// merge folds a newer event for the same path into an older one. A file
// created inside the window stays a create until it is removed again.
func merge(older, newer FileEvent) FileEvent {
	if older.Type == EventCreate && newer.Type == EventModify {
		newer.Type = EventCreate
	}
	return newer
}

// Gone reports whether the file no longer exists at Path.
func (e FileEvent) Gone() bool {
	return e.Type == EventDelete || e.Type == EventRename
}
