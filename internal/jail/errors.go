package jail

import "errors"

var (
	ErrNamespaceSetup    = errors.New("namespace setup failed")
	ErrCommandResolution = errors.New("command resolution failed")
	ErrProcessSpawn      = errors.New("process spawn failed")
	ErrWait              = errors.New("process wait failed")
	ErrInvalidTransition = errors.New("invalid session state transition")
)
