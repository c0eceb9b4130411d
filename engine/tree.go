package engine

import (
	"sort"

	"github.com/ftahirops/xrewind/model"
)

// Node is one process in the forest. Nodes reference each other by id, never
// by pointer, so breaking a bad parent link cannot leave anything dangling.
type Node struct {
	ID       string
	ParentID string   // claimed parent id; may be bogus
	Children []string // sorted child ids
	Flagged  bool     // demoted to root because of a cycle
}

// Tree is a forest over the process records. Parent ids are untrusted input:
// a node whose parent is unknown or whose parent chain loops is demoted to a
// root instead of ever causing an unbounded traversal.
type Tree struct {
	Nodes     map[string]*Node
	Roots     []string // sorted root ids
	Anomalies int      // cycles broken during the build
}

// BuildTree derives the forest from the given process records. Each call is
// a full rebuild; the previous tree is simply discarded by the caller.
func BuildTree(procs []*model.Record) *Tree {
	t := &Tree{Nodes: make(map[string]*Node, len(procs))}

	for _, rec := range procs {
		t.Nodes[rec.ID] = &Node{ID: rec.ID, ParentID: rec.Str("ppuid")}
	}

	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Link children; unknown or self parents become roots immediately.
	rootSet := make(map[string]bool)
	for _, id := range ids {
		node := t.Nodes[id]
		parent, known := t.Nodes[node.ParentID]
		switch {
		case node.ParentID == "" || !known:
			rootSet[id] = true
		case node.ParentID == id:
			rootSet[id] = true
			node.Flagged = true
			t.Anomalies++
		default:
			parent.Children = append(parent.Children, id)
		}
	}

	// Walk parent chains to break multi-node cycles. done marks nodes whose
	// chain is known to reach a root, bounding the whole pass to O(n).
	done := make(map[string]bool, len(t.Nodes))
	for _, id := range ids {
		if done[id] {
			continue
		}
		path := []string{}
		onPath := make(map[string]bool)
		cur := id
		for {
			if rootSet[cur] || done[cur] {
				break
			}
			onPath[cur] = true
			path = append(path, cur)
			next := t.Nodes[cur].ParentID
			if onPath[next] {
				// cur's parent link closes the loop; demote cur.
				node := t.Nodes[cur]
				t.removeChild(next, cur)
				node.Flagged = true
				rootSet[cur] = true
				t.Anomalies++
				break
			}
			cur = next
		}
		for _, p := range path {
			done[p] = true
		}
	}

	t.Roots = make([]string, 0, len(rootSet))
	for id := range rootSet {
		t.Roots = append(t.Roots, id)
	}
	sort.Strings(t.Roots)
	return t
}

func (t *Tree) removeChild(parentID, childID string) {
	parent, ok := t.Nodes[parentID]
	if !ok {
		return
	}
	for i, c := range parent.Children {
		if c == childID {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
}

// Len returns the number of nodes in the forest.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}
