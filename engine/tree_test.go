package engine

import (
	"testing"

	"github.com/ftahirops/xrewind/model"
)

func proc(id, parent string) *model.Record {
	return &model.Record{
		Schema:      "model_process:1.1.0",
		ShortSchema: model.SchemaProcess,
		ID:          id,
		Time:        100,
		Fields:      map[string]any{"id": id, "ppuid": parent},
	}
}

func TestBuildTreeSelfCycleDemotedToRoot(t *testing.T) {
	tree := BuildTree([]*model.Record{
		proc("1", "0"), // parent unknown: root, not an anomaly
		proc("2", "1"),
		proc("3", "3"), // self-cycle: root, one anomaly
	})

	if len(tree.Roots) != 2 || tree.Roots[0] != "1" || tree.Roots[1] != "3" {
		t.Fatalf("expected roots [1 3], got %v", tree.Roots)
	}
	n1 := tree.Nodes["1"]
	if len(n1.Children) != 1 || n1.Children[0] != "2" {
		t.Fatalf("expected 2 as child of 1, got %v", n1.Children)
	}
	if tree.Anomalies != 1 {
		t.Fatalf("expected 1 anomaly, got %d", tree.Anomalies)
	}
	if !tree.Nodes["3"].Flagged {
		t.Fatal("self-cycle node should be flagged")
	}
	if tree.Nodes["1"].Flagged {
		t.Fatal("missing-parent root should not be flagged")
	}
}

func TestBuildTreeTransitiveCycle(t *testing.T) {
	// a → b → c → a plus a straight chain hanging off the cycle.
	tree := BuildTree([]*model.Record{
		proc("a", "c"),
		proc("b", "a"),
		proc("c", "b"),
		proc("d", "c"),
	})

	if len(tree.Roots) != 1 {
		t.Fatalf("expected exactly one demoted root, got %v", tree.Roots)
	}
	if tree.Anomalies != 1 {
		t.Fatalf("expected 1 anomaly, got %d", tree.Anomalies)
	}

	// Every node must be reachable from the roots without revisits.
	seen := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			t.Fatalf("node %s reached twice: not a forest", id)
		}
		seen[id] = true
		for _, c := range tree.Nodes[id].Children {
			walk(c)
		}
	}
	for _, r := range tree.Roots {
		walk(r)
	}
	if len(seen) != 4 {
		t.Fatalf("forest covers %d of 4 nodes", len(seen))
	}
}

func TestBuildTreeEmptyAndRebuild(t *testing.T) {
	tree := BuildTree(nil)
	if tree.Len() != 0 || len(tree.Roots) != 0 {
		t.Fatalf("empty build should yield empty forest: %v", tree)
	}

	// Each call is a full rebuild; results do not accumulate.
	tree = BuildTree([]*model.Record{proc("1", "")})
	tree = BuildTree([]*model.Record{proc("2", "")})
	if tree.Len() != 1 || tree.Roots[0] != "2" {
		t.Fatalf("rebuild retained stale nodes: %v", tree.Roots)
	}
}
