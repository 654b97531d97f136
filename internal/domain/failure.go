package domain

// TestFailure represents a failed test case
type TestFailure struct {
	ItemID       string   `json:"item_id"`
	TestName     string   `json:"test_name"`
	FilePath     string   `json:"file_path"`
	Worker       string   `json:"worker,omitempty"`
	ErrorDetails string   `json:"error_details"`
	StackTrace   []string `json:"stack_trace"`
	File         string   `json:"file"`
	Line         int      `json:"line"`
	Message      string   `json:"message"`
	Crashed      bool     `json:"crashed,omitempty"`
	Resolved     bool     `json:"resolved,omitempty"` // Marked as resolved in the failures viewer
}
