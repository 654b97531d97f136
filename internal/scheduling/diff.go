package scheduling

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// CollectionDiff describes how two collections differ. It returns an empty
// string when they are identical.
func CollectionDiff(from, to []string, fromID, toID string) string {
	if equalCollections(from, to) {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(from),
		B:        withNewlines(to),
		FromFile: fromID,
		ToFile:   toID,
		Context:  3,
	})
	if err != nil {
		diff = err.Error()
	}
	msg := fmt.Sprintf("Different tests were collected between %s and %s. The difference is:\n%s\n"+
		"Workers must discover the same test cases in the same order.", fromID, toID, diff)

	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func equalCollections(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func withNewlines(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item + "\n"
	}
	return out
}
