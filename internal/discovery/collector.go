package discovery

import (
	"fmt"
	"path/filepath"
	"sort"

	"ptd/internal/config"
	"ptd/internal/domain"
)

// Collection is what one worker discovered
type Collection struct {
	Cases []domain.TestCase
	// Errors describes files that could not be parsed; they are left out of Cases
	Errors []string
}

// IDs returns the item identifiers of the collection, in order
func (c Collection) IDs() []string {
	ids := make([]string, len(c.Cases))
	for i, tc := range c.Cases {
		ids[i] = tc.ID()
	}
	return ids
}

// Collector discovers the test cases of a project the same way on every worker
type Collector struct {
	cfg     *config.Config
	scanner *Scanner
	filter  *Filter
	parser  *Parser
}

// NewCollector creates a Collector for the configured test path
func NewCollector(cfg *config.Config) *Collector {
	return &Collector{
		cfg:     cfg,
		scanner: NewScanner(cfg.PathsToIgnore),
		filter:  NewFilter(),
		parser:  NewParser(),
	}
}

// Files returns the test files after name filtering, sorted
func (c *Collector) Files() ([]string, error) {
	files, err := c.scanner.Scan(c.cfg.GetTestPath())
	if err != nil {
		return nil, fmt.Errorf("failed to scan tests: %w", err)
	}
	files = c.filter.FilterByName(files, c.cfg.Flags.NameFilter)
	sort.Strings(files)
	return files, nil
}

// Collect returns every test case ordered by file path then method name.
// File paths are made relative to the project.
func (c *Collector) Collect() (Collection, error) {
	files, err := c.Files()
	if err != nil {
		return Collection{}, err
	}

	var out Collection
	for _, file := range files {
		cases, err := c.parser.FindTestCases(file)
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		rel := c.relative(file)
		for _, tc := range cases {
			tc.FilePath = rel
			out.Cases = append(out.Cases, tc)
		}
	}
	return out, nil
}

func (c *Collector) relative(path string) string {
	rel, err := filepath.Rel(c.cfg.ProjectPath, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
