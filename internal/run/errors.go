package run

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by Start while a run is still running.
var ErrRunInProgress = errors.New("a run is already in progress")

// ConfigError reports a profile that cannot run at all: no target URL or no
// extractors.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// EngineFailure reports a terminal run failure, either from the engine's
// failure event or from a dispatch that never reached the engine.
type EngineFailure struct {
	RunID  string
	Reason string
	Err    error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("run %s failed: %s", e.RunID, e.Reason)
}

func (e *EngineFailure) Unwrap() error { return e.Err }
