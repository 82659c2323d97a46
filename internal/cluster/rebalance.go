package cluster

import (
	"fmt"
	"sort"
)

// rebalanceGroups moves already-provisioned nodes between kinds until every
// kind holds at least its minimum, or reports that no redistribution can.
// It is a single-pass greedy reallocation, not an optimal assignment.
//
// Kinds are visited in sorted name order, both when looking for
// unsatisfied kinds and when scanning donors, so the outcome is
// deterministic across runs. A donor gives up its most recently appended
// node first. When the total minimum exceeds the total population the
// groups are left untouched.
func rebalanceGroups(clusterName string, groups map[string][]*Node, minimums map[string]int) error {
	total := 0
	for _, nodes := range groups {
		total += len(nodes)
	}
	required := 0
	for _, m := range minimums {
		required += m
	}
	if total < required {
		return &SizingError{
			Cluster: clusterName,
			Reason: fmt.Sprintf("%d nodes running but the configuration requires at least %d; "+
				"the nodes are still running but will not be set up", total, required),
		}
	}

	kinds := make([]string, 0, len(groups))
	for kind := range groups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, ukind := range kinds {
		missing := minimums[ukind] - len(groups[ukind])
		if missing <= 0 {
			continue
		}
		for _, donor := range kinds {
			if donor == ukind {
				continue
			}
			spare := len(groups[donor]) - minimums[donor]
			for spare > 0 && missing > 0 {
				last := len(groups[donor]) - 1
				moved := groups[donor][last]
				groups[donor] = groups[donor][:last]
				moved.Kind = ukind
				groups[ukind] = append(groups[ukind], moved)
				spare--
				missing--
			}
			if missing == 0 {
				break
			}
		}
		if missing > 0 {
			return &SizingError{
				Cluster: clusterName,
				Reason: fmt.Sprintf("could not redistribute the started nodes to give kind %q its minimum of %d; "+
					"the nodes are still running but will not be set up", ukind, minimums[ukind]),
			}
		}
	}
	return nil
}
