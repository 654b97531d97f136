package discovery

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"ptd/internal/domain"
)

var (
	// Matches:
	// - public function testCreateUser()
	// - function test_user_login()
	// - protected static function testSomething()
	// - final public function testSomething()
	functionPattern = regexp.MustCompile(`^\s*(?:(?:public|protected|private|static|final|abstract)\s+)*function\s+(\w+)\s*\(`)
	classPattern    = regexp.MustCompile(`^\s*(?:(?:abstract|final|readonly)\s+)*class\s+\w+`)

	// @group slow_2 in a docblock, #[Group('slow_2')] as an attribute
	groupAnnotation = regexp.MustCompile(`@group\s+([^\s*]+)`)
	groupAttribute  = regexp.MustCompile(`#\[\s*(?:\\?PHPUnit\\Framework\\Attributes\\)?Group\(\s*['"]([^'"]+)['"]\s*\)`)
	testAnnotation  = regexp.MustCompile(`@test\b`)
	testAttribute   = regexp.MustCompile(`#\[\s*(?:\\?PHPUnit\\Framework\\Attributes\\)?Test\s*[\](]`)

	// A group that names a worker cap, e.g. "highpriority_1"
	schedulingGroup = regexp.MustCompile(`^[A-Za-z0-9_-]+_\d+$`)
)

// Parser parses test files to extract test cases
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// FindTestCases finds all test cases in a test file. A method is a test when
// its name starts with "test" or it carries @test / #[Test]. Its scheduling
// group is the first group of the method matching "<name>_<workers>", else the
// first such group of the class.
func (p *Parser) FindTestCases(filePath string) ([]domain.TestCase, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", filePath, err)
	}

	var (
		pendingGroups []string
		pendingTest   bool
		classGroup    string
		seen          = make(map[string]bool)
		testCases     []domain.TestCase
	)

	for _, line := range strings.Split(string(content), "\n") {
		for _, m := range groupAnnotation.FindAllStringSubmatch(line, -1) {
			pendingGroups = append(pendingGroups, m[1])
		}
		for _, m := range groupAttribute.FindAllStringSubmatch(line, -1) {
			pendingGroups = append(pendingGroups, m[1])
		}
		if testAnnotation.MatchString(line) || testAttribute.MatchString(line) {
			pendingTest = true
		}

		if classPattern.MatchString(line) {
			classGroup = firstSchedulingGroup(pendingGroups)
			pendingGroups, pendingTest = nil, false
			continue
		}

		m := functionPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if (strings.HasPrefix(name, "test") || pendingTest) && !seen[name] {
			group := firstSchedulingGroup(pendingGroups)
			if group == "" {
				group = classGroup
			}
			seen[name] = true
			testCases = append(testCases, domain.TestCase{Name: name, FilePath: filePath, Group: group})
		}
		pendingGroups, pendingTest = nil, false
	}

	// Sort for consistent output
	sort.Slice(testCases, func(i, j int) bool {
		return testCases[i].Name < testCases[j].Name
	})

	return testCases, nil
}

// IsSchedulingGroup reports whether a PHPUnit group name carries a worker cap
func IsSchedulingGroup(name string) bool {
	return schedulingGroup.MatchString(name)
}

func firstSchedulingGroup(groups []string) string {
	for _, g := range groups {
		if IsSchedulingGroup(g) {
			return g
		}
	}
	return ""
}
