package supervisor

import "errors"

var (
	ErrAlreadyRunning = errors.New("supervisor is already running")
	ErrListen         = errors.New("could not bind listener")
)
