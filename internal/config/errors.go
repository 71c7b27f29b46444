package config

import "errors"

// ErrInvalidConfig reports a value that fails validation; ErrLoadConfig a
// file or environment source that could not be read.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
