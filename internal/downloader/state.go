package downloader

// State is the lifecycle state of a tracked download.
type State string

const (
	StateIdle        State = "idle"
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StatePaused      State = "paused"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

func (s State) Valid() bool {
	switch s {
	case StateIdle, StatePending, StateDownloading, StateCompleted, StatePaused, StateFailed, StateCancelled:
		return true
	}

	return false
}

// Active reports whether the download is queued or in flight.
func (s State) Active() bool {
	return s == StatePending || s == StateDownloading
}

// CanTransition reports whether moving from one state to another is legal.
// Deleting a download resets any state to idle and is allowed unconditionally,
// so it is not part of this table.
func CanTransition(from, to State) bool {
	switch to {
	case StatePending:
		// enqueue on first download, resume from paused/failed, demotion on recovery
		return from == StateIdle || from == StatePaused || from == StateFailed ||
			from == StateCancelled || from == StateDownloading
	case StateDownloading:
		return from == StatePending
	case StateCompleted, StateFailed:
		return from == StateDownloading
	case StatePaused:
		return from == StatePending || from == StateDownloading
	case StateCancelled:
		return from == StatePending || from == StateDownloading || from == StatePaused
	}

	return false
}
