package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrMetricsNotInitialized = errors.New("metrics manager not initialized")
)
