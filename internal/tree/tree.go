// Package tree builds nested category trees from flat category lists and
// prunes branches that contain no products.
//
// Parent links are plain id lookups into the flat list, never pointers, so a
// malformed list (dangling parents, duplicates, cycles) degrades to a smaller
// tree instead of a panic or an endless walk.
package tree

// Category is a flat category record as fetched from storage.
type Category struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ParentID     *string `json:"parentId,omitempty"`
	ProductCount int     `json:"productCount"`
	ImageURL     *string `json:"imageUrl,omitempty"`
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

func (c Category) parent() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

func (c Category) count() int {
	if c.ProductCount < 0 {
		return 0
	}
	return c.ProductCount
}

// Node is a category together with its direct children.
type Node struct {
	Category
	Children          []*Node `json:"children"`
	TotalProductCount int     `json:"totalProductCount"`
}

// BuildCategoryTree nests categories under their parents, keeping input order
// among siblings, and returns the top-level nodes.
//
// Each input record is placed at most once. Records whose parent is not in
// the list, or which are only reachable through a cycle, are left out.
func BuildCategoryTree(categories []Category) []*Node {
	childrenOf := make(map[string][]int, len(categories))
	for i, c := range categories {
		if c.IsRoot() {
			continue
		}
		childrenOf[c.parent()] = append(childrenOf[c.parent()], i)
	}

	placed := make([]bool, len(categories))
	var build func(i int) *Node
	build = func(i int) *Node {
		placed[i] = true
		n := &Node{Category: categories[i], Children: []*Node{}}
		total := n.count()
		for _, j := range childrenOf[categories[i].ID] {
			if placed[j] {
				continue
			}
			child := build(j)
			total += child.TotalProductCount
			n.Children = append(n.Children, child)
		}
		n.TotalProductCount = total
		return n
	}

	roots := make([]*Node, 0)
	for i, c := range categories {
		if c.IsRoot() && !placed[i] {
			roots = append(roots, build(i))
		}
	}
	return roots
}

// FilterTreeWithProducts returns a copy of nodes with every subtree whose
// rolled-up product count is zero removed. A zero-count node survives only if
// some descendant has products. The input is not modified.
func FilterTreeWithProducts(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		children := FilterTreeWithProducts(n.Children)
		total := n.count()
		for _, child := range children {
			total += child.TotalProductCount
		}
		if total == 0 {
			continue
		}
		out = append(out, &Node{
			Category:          n.Category,
			Children:          children,
			TotalProductCount: total,
		})
	}
	return out
}

// GetParentChain returns the ancestor ids of categoryID, nearest parent first.
// The walk stops at a top-level category, at a parent id missing from the
// list, or when an id repeats.
func GetParentChain(categoryID string, categories []Category) []string {
	byID := index(categories)
	chain := make([]string, 0)

	current, ok := byID[categoryID]
	if !ok {
		return chain
	}
	seen := map[string]bool{categoryID: true}
	for !current.IsRoot() {
		parentID := current.parent()
		if seen[parentID] {
			break
		}
		parent, ok := byID[parentID]
		if !ok {
			break
		}
		seen[parentID] = true
		chain = append(chain, parentID)
		current = parent
	}
	return chain
}

// GetDirectChildren returns the categories whose parent is categoryID, in
// input order.
func GetDirectChildren(categoryID string, categories []Category) []Category {
	out := make([]Category, 0)
	for _, c := range categories {
		if !c.IsRoot() && c.parent() == categoryID {
			out = append(out, c)
		}
	}
	return out
}

// CountNodes returns the number of nodes in the forest, nested ones included.
func CountNodes(nodes []*Node) int {
	total := 0
	Walk(nodes, func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's
// children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if fn(n, depth) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
}

// Find returns the first node with the given id, or nil.
func Find(nodes []*Node, id string) *Node {
	var found *Node
	Walk(nodes, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// index maps ids to records; the first occurrence of a duplicate id wins.
func index(categories []Category) map[string]Category {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		if _, exists := byID[c.ID]; !exists {
			byID[c.ID] = c
		}
	}
	return byID
}
