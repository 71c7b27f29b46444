package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrInvalidAction = errors.New("invalid action record")
	ErrUnknownDriver = errors.New("unknown store driver")
)
