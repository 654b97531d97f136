package domain

// TestCase represents a single test method discovered in a test file
type TestCase struct {
	Name     string // Test method name
	FilePath string // Path to the test file, relative to the project
	Group    string // Scheduling group tag (e.g. "slow_2"), empty for the default group
}

// ID returns the collection identifier of the test case: "<path>::<method>[@<group>]"
func (tc TestCase) ID() string {
	id := tc.FilePath + "::" + tc.Name
	if tc.Group != "" {
		id += "@" + tc.Group
	}
	return id
}
