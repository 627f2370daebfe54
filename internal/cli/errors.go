package cli

import (
	"errors"
	"fmt"
)

var ErrRootFSBusy = errors.New("root filesystem is in use by another cradle process")

// Carries the exit code cradle should terminate with.
//
// Err, when set, is the failure that produced the code. A nil Err means the
// jailed process itself exited with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
