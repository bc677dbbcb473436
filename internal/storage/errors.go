package storage

import "errors"

var (
	ErrRunNotFound     = errors.New("storage: run not found")
	ErrMalformedEnergy = errors.New("storage: malformed free energy log")
	ErrRunClosed       = errors.New("storage: run already closed")
)
