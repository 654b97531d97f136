package domain

// SetupResult represents the result of preparing one worker slot
type SetupResult struct {
	Slot    int
	Success bool
	Output  string
	Error   error
}
