package coordinator

import (
	"ptd/internal/domain"
	"ptd/internal/worker"
)

// Reporter receives everything the user should see about a run
type Reporter interface {
	WorkerReady(w worker.Handle)
	// WorkerDown is called once per worker; err is nil for a graceful finish
	WorkerDown(w worker.Handle, err error)
	CollectionFinished(w worker.Handle, count int)
	// CollectionComplete is called when every worker has collected and no
	// work has been handed out yet
	CollectionComplete(count int)
	CollectionError(workerID, message string)
	ItemReport(result domain.TestResult)
	// Line prints an informational message, e.g. a worker being replaced
	Line(message string)
	// Summary is printed once at the end of a run that was cut short
	Summary(message string)
	InternalError(workerID, message string)
}

// NopReporter discards every report
type NopReporter struct{}

func (NopReporter) WorkerReady(worker.Handle)             {}
func (NopReporter) WorkerDown(worker.Handle, error)       {}
func (NopReporter) CollectionFinished(worker.Handle, int) {}
func (NopReporter) CollectionComplete(int)                {}
func (NopReporter) CollectionError(string, string)        {}
func (NopReporter) ItemReport(domain.TestResult)          {}
func (NopReporter) Line(string)                           {}
func (NopReporter) Summary(string)                        {}
func (NopReporter) InternalError(string, string)          {}
