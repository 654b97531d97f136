package execution

import (
	"context"

	"ptd/internal/discovery"
	"ptd/internal/domain"
)

// Job is one test case to run on a worker
type Job struct {
	Case   domain.TestCase
	Worker string
	Slot   int
	Token  string
	Env    map[string]string
}

// Executor runs a single job. A non-nil error means the test could not be
// run at all; a failing test is reported through the result.
type Executor interface {
	Run(ctx context.Context, job Job) (domain.TestResult, error)
}

// Collector discovers the test cases a worker offers
type Collector interface {
	Collect() (discovery.Collection, error)
}
