package port

import (
	"time"
)

// EventKind classifies a settled filesystem change
type EventKind int

const (
	FileAdded EventKind = iota
	FileRemoved
	DirAdded
	DirRemoved
	Changed
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case FileAdded:
		return "file-added"
	case FileRemoved:
		return "file-removed"
	case DirAdded:
		return "dir-added"
	case DirRemoved:
		return "dir-removed"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// WatchEvent is a single change reported by a subscription
type WatchEvent struct {
	Kind EventKind
	Path string
}

// WatchOptions configures a subscription
type WatchOptions struct {
	Recursive    bool
	IgnoreHidden bool
	SettleDelay  time.Duration
}

// Subscription delivers events for one watched directory
type Subscription interface {
	// Events returns the event channel. It is closed after Close.
	Events() <-chan WatchEvent

	// Close stops watching. Safe to call more than once.
	Close() error
}

// WatchService opens directory subscriptions
type WatchService interface {
	Subscribe(path string, opts WatchOptions) (Subscription, error)
}
