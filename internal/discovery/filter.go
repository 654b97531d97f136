package discovery

import (
	"path/filepath"
	"strings"
)

// Filter filters test files by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName keeps the files whose base name matches pattern. A pattern
// may list several alternatives separated by commas. Each alternative is a
// glob ("*UserTest.php"), a set of fragments that must all appear
// ("*Payment*Service*"), or a plain substring ("Payment").
func (f *Filter) FilterByName(tests []string, pattern string) []string {
	if strings.TrimSpace(pattern) == "" {
		return tests
	}

	var alternatives []string
	for _, alt := range strings.Split(pattern, ",") {
		if alt = strings.TrimSpace(alt); alt != "" {
			alternatives = append(alternatives, alt)
		}
	}

	var filtered []string
	for _, test := range tests {
		name := filepath.Base(test)
		for _, alt := range alternatives {
			if matchName(name, alt) {
				filtered = append(filtered, test)
				break
			}
		}
	}
	return filtered
}

func matchName(name, pattern string) bool {
	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(name, pattern)
	}
	if strings.Contains(pattern, "?") {
		return false
	}

	// every fragment between wildcards must appear, in order
	found := false
	rest := name
	for _, part := range strings.Split(pattern, "*") {
		if part == "" {
			continue
		}
		pos := strings.Index(rest, part)
		if pos < 0 {
			return false
		}
		rest = rest[pos+len(part):]
		found = true
	}
	return found
}
