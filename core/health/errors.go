package health

import "errors"

// ErrNotReady wraps every failed readiness check.
var ErrNotReady = errors.New("dependency not ready")
