package mlfq

import "errors"

// ErrAlreadyStarted is returned by a second call to StartManager.
var ErrAlreadyStarted = errors.New("mlfq: scheduler manager already started")
