package parser

import (
	"regexp"
	"strconv"
	"strings"

	"ptd/internal/domain"
)

var (
	okSummary   = regexp.MustCompile(`OK\s*\(\s*(\d+)\s+tests?`)
	testsCount  = regexp.MustCompile(`Tests:\s*(\d+)`)
	failCount   = regexp.MustCompile(`Failures:\s*(\d+)`)
	errorCount  = regexp.MustCompile(`Errors:\s*(\d+)`)
	skipCount   = regexp.MustCompile(`Skipped:\s*(\d+)`)
	incompCount = regexp.MustCompile(`Incomplete:\s*(\d+)`)

	// "1) Tests\Unit\UserTest::testCreate" or "1) Tests\Unit\UserTest::testCreate with data set #0"
	failureHeader = regexp.MustCompile(`^\d+\)\s+(\S+)::(\w+)`)
	traceLine     = regexp.MustCompile(`^(\S+\.php):(\d+)$`)
)

// PHPUnitParser parses PHPUnit test output
type PHPUnitParser struct{}

// NewPHPUnitParser creates a new PHPUnitParser
func NewPHPUnitParser() *PHPUnitParser {
	return &PHPUnitParser{}
}

// ParseOutcome extracts the case counts from the summary PHPUnit prints last
func (p *PHPUnitParser) ParseOutcome(output string) Outcome {
	// OK (N tests, ...) - all passed
	if m := okSummary.FindStringSubmatch(output); m != nil {
		return Outcome{Tests: atoi(m[1])}
	}

	// FAILURES! / ERRORS! / OK, but ... - Tests: N, Assertions: A, Failures: F, Errors: E, Skipped: S
	var o Outcome
	o.Tests = lastCount(testsCount, output)
	o.Failures = lastCount(failCount, output) + lastCount(errorCount, output)
	o.Skipped = lastCount(skipCount, output) + lastCount(incompCount, output)
	return o
}

// ParseFailure extracts one TestFailure per failed case in the output. A
// result without a recognizable failure block (a crash, a fatal PHP error)
// becomes a single failure carrying the raw output.
func (p *PHPUnitParser) ParseFailure(result domain.TestResult) []domain.TestFailure {
	lines := strings.Split(result.Output, "\n")

	var failures []domain.TestFailure
	for i, line := range lines {
		if failureHeader.MatchString(line) {
			failures = append(failures, p.parseFailureBlock(result, lines, i))
		}
	}
	if len(failures) > 0 || result.Success || result.Skipped {
		return failures
	}

	message := strings.TrimSpace(result.Output)
	if message == "" && result.Error != nil {
		message = result.Error.Error()
	}
	return []domain.TestFailure{{
		ItemID:   result.ItemID,
		TestName: testName(result.ItemID),
		FilePath: result.TestPath,
		Worker:   result.Worker,
		Message:  message,
		Crashed:  result.Crashed,
	}}
}

// parseFailureBlock reads the message, the optional JSON details and the
// stack trace that follow the header at lines[start]
func (p *PHPUnitParser) parseFailureBlock(result domain.TestResult, lines []string, start int) domain.TestFailure {
	m := failureHeader.FindStringSubmatch(lines[start])
	failure := domain.TestFailure{
		ItemID:     result.ItemID,
		TestName:   m[2],
		FilePath:   classToPath(m[1]),
		Worker:     result.Worker,
		StackTrace: []string{},
		Crashed:    result.Crashed,
	}

	var message, details []string
	depth := 0
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if failureHeader.MatchString(line) || isSummaryLine(trimmed) {
			break
		}

		// JSON payload dumped by assertJson and friends
		if depth > 0 || (trimmed == "{" && len(failure.StackTrace) == 0) {
			details = append(details, line)
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			continue
		}

		if tm := traceLine.FindStringSubmatch(trimmed); tm != nil {
			failure.StackTrace = append(failure.StackTrace, trimmed)
			if failure.File == "" && !strings.Contains(tm[1], "/vendor/") {
				failure.File = tm[1]
				failure.Line = atoi(tm[2])
			}
			continue
		}
		if len(failure.StackTrace) > 0 {
			continue
		}
		if len(message) == 0 && trimmed == "" {
			continue
		}
		message = append(message, line)
	}

	for len(message) > 0 && strings.TrimSpace(message[len(message)-1]) == "" {
		message = message[:len(message)-1]
	}
	failure.Message = strings.Join(message, "\n")
	failure.ErrorDetails = strings.Join(details, "\n")
	return failure
}

func isSummaryLine(line string) bool {
	return line == "FAILURES!" || line == "ERRORS!" ||
		strings.HasPrefix(line, "Tests: ") || strings.HasPrefix(line, "There w")
}

// classToPath turns "Tests\Unit\UserTest" into "Tests/Unit/UserTest"
func classToPath(class string) string {
	return strings.ReplaceAll(class, "\\", "/")
}

// testName returns the method of an item identifier "<path>::<method>[@group]"
func testName(itemID string) string {
	_, name, found := strings.Cut(itemID, "::")
	if !found {
		return itemID
	}
	name, _, _ = strings.Cut(name, "@")
	return name
}

func lastCount(re *regexp.Regexp, output string) int {
	all := re.FindAllStringSubmatch(output, -1)
	if len(all) == 0 {
		return 0
	}
	return atoi(all[len(all)-1][1])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
