package live

import "fmt"

// State is the push channel's connection state.
type State int

// State constants.
const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// validTransitions lists the edges of the connection state machine.
var validTransitions = map[State][]State{ //nolint:gochecknoglobals // fixed table
	StateClosed:     {StateConnecting},
	StateConnecting: {StateOpen, StateClosed},
	StateOpen:       {StateClosed},
}

// canTransition reports whether from -> to is an edge of the state machine.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
