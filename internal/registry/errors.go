package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized matches every *NotInitializedError.
	ErrNotInitialized = errors.New("registry: subsystem is not initialized")
	// ErrAlreadyInitialized is returned by a second Init call.
	ErrAlreadyInitialized = errors.New("registry: init already ran")
)

// NotInitializedError reports a role lookup for a name nobody registered.
type NotInitializedError struct {
	Role string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("%s plugin is not initialized", e.Role)
}

func (e *NotInitializedError) Is(target error) bool { return target == ErrNotInitialized }

// Phase names a lifecycle hook.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseCrossWire Phase = "crosswire"
	PhaseRemove    Phase = "remove"
)

// LifecycleError wraps a failing (or panicking) hook.
type LifecycleError struct {
	Subsystem string
	Phase     Phase
	Err       error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("registry: %s %s: %v", e.Subsystem, e.Phase, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }
