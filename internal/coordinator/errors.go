package coordinator

import (
	"errors"
	"fmt"
)

// ErrNoActiveWorkers is returned when every worker is gone before the run was
// shut down
var ErrNoActiveWorkers = errors.New("unexpectedly no active workers available")

// InterruptedError ends a run that was asked to stop: too many failures, too
// many crashed workers, an interrupt or a worker-requested stop.
type InterruptedError struct {
	Reason string
}

func (e *InterruptedError) Error() string {
	return "interrupted: " + e.Reason
}

// InternalError is raised when a worker reports a bug it cannot recover from
type InternalError struct {
	Worker  string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error on %s: %s", e.Worker, e.Message)
}
