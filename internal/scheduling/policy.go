// Package scheduling holds the policies that decide which worker runs which
// work item. Policies are not safe for concurrent use: the coordinator owns
// them and calls them from its event loop only.
package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"

	"ptd/internal/worker"
)

var (
	// ErrWorkerExists is returned when a worker is registered twice
	ErrWorkerExists = errors.New("worker already registered")
	// ErrUnknownWorker is returned for operations on a worker the policy does not know
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrNotSupported is returned by policies that never redistribute in-flight work
	ErrNotSupported = errors.New("operation not supported by scheduling policy")
)

// Policy maps collected work items to workers
type Policy interface {
	// Workers returns the registered workers in registration order
	Workers() []worker.Handle
	AddWorker(w worker.Handle) error
	// AddCollection records the items a worker collected
	AddCollection(w worker.Handle, items []string) error
	CollectionComplete() bool
	// Finished reports whether all work has been handed out and every worker
	// is down to its last item
	Finished() bool
	// HasPending reports whether any item is waiting or in flight
	HasPending() bool
	// Settled reports whether every worker holds at most one in-flight item
	Settled() bool
	Schedule()
	CheckSchedule(w worker.Handle, duration time.Duration, fromLoop bool)
	MarkComplete(w worker.Handle, index int, duration time.Duration) error
	RemovePendingFromWorker(w worker.Handle, indices []int) error
	// RemoveWorker drops a worker. When it still held items, the first one is
	// returned as the crash item and the others are scheduled again.
	RemoveWorker(w worker.Handle) (crashItem string, err error)
	Collection() []string
}

// Mode selects a Policy implementation
type Mode int

const (
	ModeGroup Mode = iota
	ModeLoad
)

func (m Mode) String() string {
	switch m {
	case ModeGroup:
		return "group"
	case ModeLoad:
		return "load"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a --dist value to a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "group", "customgroup":
		return ModeGroup, nil
	case "load":
		return ModeLoad, nil
	}
	return 0, fmt.Errorf("unknown distribution mode %q (expected group or load)", s)
}

// Options configure a Policy
type Options struct {
	// NumWorkers is the number of workers that must report a collection
	// before scheduling starts
	NumWorkers int
	// MaxSchedChunk caps how many items the load policy sends at once, 0 means no cap
	MaxSchedChunk int
	Logger        log.Logger
	Metrics       *Metrics
	// OnCollectionError receives the diff when a worker collected different items
	OnCollectionError func(workerID, message string)
}

// New creates the Policy for mode
func New(mode Mode, opts Options) (Policy, error) {
	if opts.NumWorkers <= 0 {
		return nil, fmt.Errorf("number of workers must be positive, got %d", opts.NumWorkers)
	}
	switch mode {
	case ModeGroup:
		return NewGroupScheduler(opts), nil
	case ModeLoad:
		return NewLoadScheduler(opts), nil
	}
	return nil, fmt.Errorf("unsupported distribution mode %s", mode)
}
