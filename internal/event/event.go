// Package event defines the messages workers post to the coordinator.
package event

import (
	"time"

	"ptd/internal/domain"
	"ptd/internal/worker"
)

// Kind tags the payload carried by an Event
type Kind int

const (
	KindReady Kind = iota + 1
	KindCollectionFinished
	KindCollectReport
	KindItemReport
	KindItemComplete
	KindUnscheduled
	KindCrashed
	KindFinished
	KindInternalError
)

var kindNames = map[Kind]string{
	KindReady:              "ready",
	KindCollectionFinished: "collection_finished",
	KindCollectReport:      "collect_report",
	KindItemReport:         "item_report",
	KindItemComplete:       "item_complete",
	KindUnscheduled:        "unscheduled",
	KindCrashed:            "crashed",
	KindFinished:           "finished",
	KindInternalError:      "internal_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a tagged union; which fields are set depends on Kind.
type Event struct {
	Kind   Kind
	Worker worker.Handle

	Items    []string           // KindCollectionFinished
	Index    int                // KindItemComplete
	Duration time.Duration      // KindItemComplete
	Result   *domain.TestResult // KindItemReport
	Indices  []int              // KindUnscheduled
	Message  string             // KindCollectReport, KindInternalError
	Err      error              // KindCrashed
}

// Ready is posted once a worker has started
func Ready(w worker.Handle) Event {
	return Event{Kind: KindReady, Worker: w}
}

// CollectionFinished carries the identifiers a worker collected
func CollectionFinished(w worker.Handle, items []string) Event {
	return Event{Kind: KindCollectionFinished, Worker: w, Items: items}
}

// CollectReport is a collection problem found by a worker (e.g. an unreadable file)
func CollectReport(w worker.Handle, message string) Event {
	return Event{Kind: KindCollectReport, Worker: w, Message: message}
}

// ItemReport carries the full result of one executed item
func ItemReport(w worker.Handle, result domain.TestResult) Event {
	return Event{Kind: KindItemReport, Worker: w, Result: &result}
}

// ItemComplete tells the scheduler an item left the worker's queue
func ItemComplete(w worker.Handle, index int, duration time.Duration) Event {
	return Event{Kind: KindItemComplete, Worker: w, Index: index, Duration: duration}
}

// Unscheduled returns items a worker dropped from its queue without running them
func Unscheduled(w worker.Handle, indices []int) Event {
	return Event{Kind: KindUnscheduled, Worker: w, Indices: indices}
}

// Crashed is posted when a worker died unexpectedly
func Crashed(w worker.Handle, err error) Event {
	return Event{Kind: KindCrashed, Worker: w, Err: err}
}

// Finished is posted when a worker shut down on its own terms
func Finished(w worker.Handle) Event {
	return Event{Kind: KindFinished, Worker: w}
}

// InternalError is posted when a worker hit a bug it cannot recover from
func InternalError(w worker.Handle, message string) Event {
	return Event{Kind: KindInternalError, Worker: w, Message: message}
}
