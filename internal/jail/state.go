package jail

import "fmt"

// Lifecycle stage of a jail session.
//
// A session moves through the states strictly in declaration order. Failure
// at any stage ends the session, which then releases its mounts and jumps
// to [StateDone].
type State int

const (
	StateCreated         State = iota // Nothing done yet.
	StateCloned                       // Running inside the new namespaces.
	StateJailEstablished              // Root changed and hostname set.
	StateProcMounted                  // /proc mounted and recorded.
	StateCommandResolved              // Launch plan resolved.
	StateSpawned                      // Target process started.
	StateExited                       // Target process reaped.
	StateUnmounted                    // Recorded mounts released.
	StateDone                         // Session closed.
)

var stateNames = [...]string{
	StateCreated:         "created",
	StateCloned:          "cloned",
	StateJailEstablished: "jail-established",
	StateProcMounted:     "proc-mounted",
	StateCommandResolved: "command-resolved",
	StateSpawned:         "spawned",
	StateExited:          "exited",
	StateUnmounted:       "unmounted",
	StateDone:            "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Returns the state that follows s, or an error if next is not it.
func (s State) advance(next State) (State, error) {
	if s == StateDone || next != s+1 {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}
