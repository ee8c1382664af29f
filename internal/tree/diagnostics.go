package tree

// Report lists the structural problems found in a flat category list. None
// of them stop a tree from being built; they explain why records are missing
// from it.
type Report struct {
	DanglingParents []string `json:"danglingParents,omitempty"`
	DuplicateIDs    []string `json:"duplicateIds,omitempty"`
	CycleMembers    []string `json:"cycleMembers,omitempty"`
	Unreachable     []string `json:"unreachable,omitempty"`
}

// Empty reports whether no problems were found.
func (r Report) Empty() bool {
	return len(r.DanglingParents) == 0 &&
		len(r.DuplicateIDs) == 0 &&
		len(r.CycleMembers) == 0 &&
		len(r.Unreachable) == 0
}

// Diagnose inspects categories for dangling parent ids, duplicate ids, parent
// cycles and records that BuildCategoryTree would leave out. Ids are reported
// in input order, each at most once per list.
func Diagnose(categories []Category) Report {
	var r Report
	byID := index(categories)

	seen := make(map[string]int, len(categories))
	for _, c := range categories {
		seen[c.ID]++
		if seen[c.ID] == 2 {
			r.DuplicateIDs = append(r.DuplicateIDs, c.ID)
		}
	}

	dangling := make(map[string]bool)
	for _, c := range categories {
		if c.IsRoot() {
			continue
		}
		if _, ok := byID[c.parent()]; !ok && !dangling[c.ID] {
			dangling[c.ID] = true
			r.DanglingParents = append(r.DanglingParents, c.ID)
		}
	}

	inCycle := make(map[string]bool)
	for _, c := range categories {
		if inCycle[c.ID] {
			continue
		}
		path := []string{c.ID}
		onPath := map[string]int{c.ID: 0}
		current := c
		for !current.IsRoot() {
			next, ok := byID[current.parent()]
			if !ok {
				break
			}
			if at, looped := onPath[next.ID]; looped {
				for _, id := range path[at:] {
					inCycle[id] = true
				}
				break
			}
			onPath[next.ID] = len(path)
			path = append(path, next.ID)
			current = next
		}
	}
	for _, c := range categories {
		if inCycle[c.ID] {
			r.CycleMembers = appendOnce(r.CycleMembers, c.ID)
		}
	}

	reached := make(map[string]bool)
	Walk(BuildCategoryTree(categories), func(n *Node, _ int) bool {
		reached[n.ID] = true
		return true
	})
	for _, c := range categories {
		if !reached[c.ID] {
			r.Unreachable = appendOnce(r.Unreachable, c.ID)
		}
	}
	return r
}

func appendOnce(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
