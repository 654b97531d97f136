// Package parser reads PHPUnit output.
package parser

import "ptd/internal/domain"

// Parser parses test results and extracts failures
type Parser interface {
	ParseOutcome(output string) Outcome
	ParseFailure(result domain.TestResult) []domain.TestFailure
}

// Outcome counts the test cases PHPUnit reported for one run
type Outcome struct {
	Tests    int
	Failures int // failures and errors
	Skipped  int // skipped and incomplete
}

// Passed returns the number of cases that neither failed nor were skipped
func (o Outcome) Passed() int {
	return max(o.Tests-o.Failures-o.Skipped, 0)
}

// Empty reports whether no summary was found
func (o Outcome) Empty() bool {
	return o.Tests == 0 && o.Failures == 0 && o.Skipped == 0
}
