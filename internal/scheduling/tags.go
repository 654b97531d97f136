package scheduling

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultGroup holds every item without a group tag
	DefaultGroup = "default"
	// TagSeparator separates an item's base identifier from its group
	TagSeparator = "@"
)

// ParseGroup extracts the scheduling group of an item identifier of the form
// "<base>@<name>_<workers>". Untagged items belong to DefaultGroup and may use
// every available worker. The worker count is clamped to [1, available]. If the
// count is not a number the group still exists but uses every available
// worker, and an error describes the problem.
func ParseGroup(id string, available int) (string, int, error) {
	pos := strings.LastIndex(id, TagSeparator)
	if pos < 0 {
		return DefaultGroup, available, nil
	}
	name := id[pos+len(TagSeparator):]
	count := name[strings.LastIndex(name, "_")+1:]
	workers, err := strconv.Atoi(count)
	if err != nil {
		return name, available, fmt.Errorf("group %q of %q has no worker count: %w", name, id, err)
	}
	return name, clampWorkers(workers, available), nil
}

func clampWorkers(n, available int) int {
	if n > available {
		n = available
	}
	if n < 1 {
		n = 1
	}
	return n
}
