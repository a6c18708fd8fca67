package pipeline

// 🚦 State is the position of a run in the pipeline
type State int

const (
	// StateIdle means the run has not started.
	StateIdle State = iota
	// StateConnected means the remote session is up.
	StateConnected
	// StateDownloaded means every matched input is staged locally.
	StateDownloaded
	// StateConverted means the transform produced its artifacts.
	StateConverted
	// StateArchivedSource means consumed inputs moved to history.
	StateArchivedSource
	// StateReconciledDest means stale destination outputs were archived.
	StateReconciledDest
	// StateUploaded means every artifact reached the destination.
	StateUploaded
	// StateDisconnected means the session closed cleanly.
	StateDisconnected
	// StateDone means the run finished.
	StateDone
	// StateError means the run aborted. Teardown still happened.
	StateError
)

// String returns a string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateDownloaded:
		return "downloaded"
	case StateConverted:
		return "converted"
	case StateArchivedSource:
		return "archived_source"
	case StateReconciledDest:
		return "reconciled_dest"
	case StateUploaded:
		return "uploaded"
	case StateDisconnected:
		return "disconnected"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
