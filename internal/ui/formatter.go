package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/scheduling"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	out    io.Writer
}

// NewFormatter creates a new Formatter writing to out (stdout when nil)
func NewFormatter(cfg *config.Config, out io.Writer) *Formatter {
	if out == nil {
		out = os.Stdout
	}
	return &Formatter{config: cfg, out: out}
}

const (
	tableTop    = "┌─────────────────────────────────┬─────────────────────────────┐"
	tableSep    = "├─────────────────────────────────┼─────────────────────────────┤"
	tableBottom = "└─────────────────────────────────┴─────────────────────────────┘"
)

// PrintMetaStats displays the statistics of a run and the tree of failed tests
func (f *Formatter) PrintMetaStats(output *domain.RunOutput) {
	meta := output.Meta

	fmt.Fprint(f.out, "\n")
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                    Test Execution Statistics                  ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")

	rows := []struct {
		label string
		value string
		c     *color.Color
	}{
		{"Total Items", fmt.Sprint(meta.TotalItems), white},
		{"Passed Items", fmt.Sprint(meta.PassedItems), green},
		{"Failed Items", fmt.Sprint(meta.FailedItems), red},
		{"Skipped Items", fmt.Sprint(meta.SkippedItems), yellow},
		{"Crashed Items", fmt.Sprint(meta.CrashedItems), red},
		{"Failed Test Cases", fmt.Sprint(meta.FailedTestCases), red},
		{"Distribution", meta.Dist, white},
		{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds), white},
		{"Workers", fmt.Sprint(meta.Workers), white},
		{"Crashed Workers", fmt.Sprint(meta.CrashedWorkers), white},
		{"Timestamp", meta.Timestamp, white},
	}

	fmt.Fprintln(f.out, tableTop)
	for i, row := range rows {
		fmt.Fprintf(f.out, "│ %-31s │ ", row.label)
		row.c.Fprintf(f.out, "%-27s", row.value)
		fmt.Fprintln(f.out, " │")
		if i < len(rows)-1 {
			fmt.Fprintln(f.out, tableSep)
		}
	}
	fmt.Fprintln(f.out, tableBottom)

	fmt.Fprintln(f.out)
	if meta.Summary != "" {
		red.Fprintln(f.out, meta.Summary)
	}
	if meta.FailedItems == 0 {
		green.Fprintln(f.out, "✓ All tests passed!")
		return
	}
	red.Fprintf(f.out, "✗ %d item(s) failed with %d test case failure(s)\n\n", meta.FailedItems, meta.FailedTestCases)
	f.printFailedTestsTree(output.Details)
}

// TreeNode represents a node in the file tree structure
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.TestFailure
	IsFile   bool
}

// printFailedTestsTree prints failures grouped by directory and file
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	root := &TreeNode{Children: make(map[string]*TreeNode)}
	for _, failure := range failures {
		parts := strings.Split(strings.TrimPrefix(failure.FilePath, "./"), "/")
		current := root
		for i, part := range parts {
			if part == "" {
				continue
			}
			child, ok := current.Children[part]
			if !ok {
				child = &TreeNode{Name: part, Children: make(map[string]*TreeNode), IsFile: i == len(parts)-1}
				current.Children[part] = child
			}
			current = child
		}
		current.Failures = append(current.Failures, failure)
	}
	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	keys := make([]string, 0, len(node.Children))
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		last := i == len(keys)-1
		connector, next := "├── ", "│   "
		if last {
			connector, next = "└── ", "    "
		}

		if child.IsFile {
			yellow.Fprintf(f.out, "%s%s%s\n", prefix, connector, child.Name)
		} else {
			cyan.Fprintf(f.out, "%s%s%s\n", prefix, connector, child.Name)
		}
		for j, failure := range child.Failures {
			caseConnector := "├── "
			if j == len(child.Failures)-1 && len(child.Children) == 0 {
				caseConnector = "└── "
			}
			red.Fprintf(f.out, "%s%s%s%s\n", prefix+next, caseConnector, failure.TestName, failureSuffix(failure))
		}
		f.printTreeNode(child, prefix+next)
	}
}

func failureSuffix(failure domain.TestFailure) string {
	var parts []string
	if failure.Worker != "" {
		parts = append(parts, failure.Worker)
	}
	if failure.Crashed {
		parts = append(parts, "crashed")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// normalizedPathForKey returns a path key for matching a test file against
// the failures of the last run
func normalizedPathForKey(projectPath, path string) string {
	p := path
	if projectPath != "" && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(projectPath, path); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	p = filepath.ToSlash(p)
	p = strings.TrimSuffix(p, ".php")
	return strings.ToLower(p)
}

// FailedPaths returns the keys of the files that failed in output, for PrintTestList
func FailedPaths(projectPath string, output *domain.RunOutput) map[string]struct{} {
	paths := make(map[string]struct{})
	if output == nil {
		return paths
	}
	for _, failure := range output.Details {
		if failure.Resolved {
			continue
		}
		path, _, _ := strings.Cut(failure.ItemID, "::")
		if path == "" {
			path = failure.FilePath
		}
		paths[normalizedPathForKey(projectPath, path)] = struct{}{}
	}
	return paths
}

// PrintTestList prints test files, optionally with their test cases keyed by
// file. Files in failedPaths are marked with [F].
func (f *Formatter) PrintTestList(files []string, cases map[string][]domain.TestCase, failedPaths map[string]struct{}) {
	if cases != nil {
		green.Fprintf(f.out, "Found %d test file(s) with test cases:\n\n", len(files))
	} else {
		green.Fprintf(f.out, "Found %d test file(s):\n\n", len(files))
	}

	for i, file := range files {
		relPath := file
		if rel, err := filepath.Rel(f.config.ProjectPath, file); err == nil {
			relPath = filepath.ToSlash(rel)
		}
		marker := ""
		if _, ok := failedPaths[normalizedPathForKey(f.config.ProjectPath, file)]; ok {
			marker = " " + color.RedString("[F]")
		}

		lastFile := i == len(files)-1
		connector, next := "├── ", "│   "
		if lastFile {
			connector, next = "└── ", "    "
		}
		cyan.Fprintf(f.out, "%s%s%s\n", connector, relPath, marker)

		if cases == nil {
			continue
		}
		fileCases := cases[file]
		if len(fileCases) == 0 {
			fmt.Fprintf(f.out, "%s└── %s\n", next, color.RedString("(no test cases found)"))
		}
		for j, tc := range fileCases {
			caseConnector := "├── "
			if j == len(fileCases)-1 {
				caseConnector = "└── "
			}
			label := color.YellowString(tc.Name)
			if tc.Group != "" {
				label += " " + color.CyanString("@"+tc.Group)
			}
			fmt.Fprintf(f.out, "%s%s%s\n", next, caseConnector, label)
		}
		if !lastFile {
			fmt.Fprintln(f.out)
		}
	}
}

// PrintGroups prints the scheduling groups of a collection in dispatch
// order, with the number of workers each may use
func (f *Formatter) PrintGroups(cases []domain.TestCase, workers int) {
	type groupInfo struct {
		name    string
		workers int
		items   int
		warning string
	}
	var order []*groupInfo
	byName := make(map[string]*groupInfo)
	for _, tc := range cases {
		name, n, err := scheduling.ParseGroup(tc.ID(), workers)
		g, ok := byName[name]
		if !ok {
			g = &groupInfo{name: name, workers: n}
			if err != nil {
				g.warning = err.Error()
			}
			byName[name] = g
			order = append(order, g)
		}
		g.items++
	}

	green.Fprintf(f.out, "%d item(s) in %d group(s) for %d worker(s):\n\n", len(cases), len(order), workers)
	for i, g := range order {
		connector := "├── "
		if i == len(order)-1 {
			connector = "└── "
		}
		fmt.Fprintf(f.out, "%s%s %s\n", connector, cyan.Sprint(g.name), white.Sprintf("[%d item(s) on %d worker(s)]", g.items, g.workers))
		if g.warning != "" {
			yellow.Fprintf(f.out, "    %s\n", g.warning)
		}
	}
}
