package connection

// State is the lifecycle position of a Connection or Session. Transitions
// only ever move forward.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
