package domain

import "time"

// TestResult represents the outcome of executing one work item on a worker
type TestResult struct {
	ItemID   string        // Collection identifier of the executed item
	TestPath string        // Path to the test file that was executed
	Worker   string        // Identity of the worker that ran the item
	Success  bool          // Whether the test passed
	Skipped  bool          // Whether PHPUnit reported the test as skipped or incomplete
	Crashed  bool          // Synthetic result for an item whose worker died while running it
	Output   string        // Raw output from PHPUnit
	Error    error         // Error if execution failed
	Duration time.Duration // Time taken to execute
}

// RunMeta contains metadata about a run
type RunMeta struct {
	RunID           string  `json:"run_id"`
	Dist            string  `json:"dist"`
	TotalItems      int     `json:"total_items"`
	PassedItems     int     `json:"passed_items"`
	FailedItems     int     `json:"failed_items"`
	SkippedItems    int     `json:"skipped_items"`
	CrashedItems    int     `json:"crashed_items"`
	FailedTestCases int     `json:"failed_test_cases"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Workers         int     `json:"workers"`
	CrashedWorkers  int     `json:"crashed_workers"`
	Summary         string  `json:"summary,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

// RunOutput is the complete structure persisted after a run
type RunOutput struct {
	Meta    RunMeta       `json:"meta"`
	Details []TestFailure `json:"details"`
}
