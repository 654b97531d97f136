// Package worker defines the controller's view of a remote worker process.
package worker

// ExitCodeInterrupted is reported by a worker that received an interrupt
const ExitCodeInterrupted = 2

// Spec describes how to launch a worker. Clones reuse the spec with a fresh ID.
type Spec struct {
	ID      string            // Identity, e.g. "gw3". Empty means the spawner allocates one.
	Slot    int               // Resource slot (1-based), selects the per-worker database
	MaxFail int               // Worker-local failure limit, 0 disables
	Env     map[string]string // Extra environment for every item the worker runs
}

// Clone returns a copy of the spec without its identity
func (s Spec) Clone() Spec {
	c := s
	c.ID = ""
	if s.Env != nil {
		c.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			c.Env[k] = v
		}
	}
	return c
}

// ExitInfo is what a worker reports when it finishes gracefully
type ExitInfo struct {
	ExitCode   int
	StopReason string
	FailReason string
}

// Interrupted reports whether the worker was stopped by an interrupt
func (e ExitInfo) Interrupted() bool {
	return e.ExitCode == ExitCodeInterrupted
}

// Handle is one worker as seen by the coordinator and the scheduling policies.
// Send and Shutdown must not block: they queue a command for the worker.
type Handle interface {
	ID() string
	Spec() Spec
	Send(indices []int)
	Shutdown()
	ShuttingDown() bool
	ExitInfo() ExitInfo
}
