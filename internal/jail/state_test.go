package jail

import (
	"errors"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateProcMounted, "proc-mounted"},
		{StateDone, "done"},
		{State(42), "state(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestStateAdvanceInOrder(t *testing.T) {
	s := StateCreated
	for next := StateCloned; next <= StateDone; next++ {
		got, err := s.advance(next)
		if err != nil {
			t.Fatalf("%s -> %s: %v", s, next, err)
		}
		s = got
	}
	if s != StateDone {
		t.Fatalf("final state = %s, want done", s)
	}
}

func TestStateAdvanceOutOfOrder(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"skip", StateCloned, StateProcMounted},
		{"backwards", StateSpawned, StateCommandResolved},
		{"repeat", StateExited, StateExited},
		{"past done", StateDone, State(int(StateDone) + 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.advance(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("advance error = %v, want ErrInvalidTransition", err)
			}
			if got != tt.from {
				t.Fatalf("state changed to %s on failed transition", got)
			}
		})
	}
}
