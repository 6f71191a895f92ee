package categorytree

import (
	"errors"
	"sort"
	"testing"

	"github.com/avasiliev/chatshop-system/internal/model"
)

func ptr(v int64) *int64 { return &v }

// courses(1) -> ai(2), programming(3); ai -> ml(4); docs(5)
func sampleTree() []model.Category {
	return []model.Category{
		{ID: 1, Name: "Courses"},
		{ID: 2, Name: "AI", ParentID: ptr(1)},
		{ID: 3, Name: "Programming", ParentID: ptr(1)},
		{ID: 4, Name: "ML", ParentID: ptr(2)},
		{ID: 5, Name: "Docs"},
	}
}

func TestChildrenReturnsOnlyDirect(t *testing.T) {
	nodes := sampleTree()

	roots := Children(nodes, nil)
	if len(roots) != 2 {
		t.Fatalf("root children = %d, want 2", len(roots))
	}
	if roots[0].Name != "Courses" || roots[1].Name != "Docs" {
		t.Fatalf("root children must be ordered by name, got %v, %v", roots[0].Name, roots[1].Name)
	}

	sub := Children(nodes, ptr(1))
	if len(sub) != 2 {
		t.Fatalf("children of 1 = %d, want 2", len(sub))
	}
	for _, c := range sub {
		if c.ID == 4 {
			t.Fatalf("grandchild must not be returned as a direct child")
		}
	}
}

func TestRepeatedDescentVisitsEveryNodeOnce(t *testing.T) {
	nodes := sampleTree()

	var visited []int64
	var walk func(parent *int64)
	walk = func(parent *int64) {
		for _, c := range Children(nodes, parent) {
			visited = append(visited, c.ID)
			id := c.ID
			walk(&id)
		}
	}
	walk(nil)

	if len(visited) != len(nodes) {
		t.Fatalf("visited %d nodes, want %d", len(visited), len(nodes))
	}
	seen := map[int64]bool{}
	for _, id := range visited {
		if seen[id] {
			t.Fatalf("node %d visited twice", id)
		}
		seen[id] = true
	}
}

func TestDescendantsCollectsExactSubtree(t *testing.T) {
	nodes := sampleTree()

	got, err := Descendants(nodes, 1)
	if err != nil {
		t.Fatalf("Descendants error: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []int64{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Descendants(1) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Descendants(1) = %v, want %v", got, want)
		}
	}
}

func TestDescendantsLeaf(t *testing.T) {
	got, err := Descendants(sampleTree(), 5)
	if err != nil {
		t.Fatalf("Descendants error: %v", err)
	}
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("Descendants(5) = %v, want [5]", got)
	}
}

func TestDescendantsUnknownRoot(t *testing.T) {
	_, err := Descendants(sampleTree(), 99)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestDescendantsDeepTreeIterative(t *testing.T) {
	// Цепочка из 100000 узлов не должна приводить к переполнению стека.
	const depth = 100000
	nodes := make([]model.Category, 0, depth)
	nodes = append(nodes, model.Category{ID: 1, Name: "n1"})
	for i := int64(2); i <= depth; i++ {
		parent := i - 1
		nodes = append(nodes, model.Category{ID: i, Name: "n", ParentID: &parent})
	}

	got, err := Descendants(nodes, 1)
	if err != nil {
		t.Fatalf("Descendants error: %v", err)
	}
	if len(got) != depth {
		t.Fatalf("collected %d nodes, want %d", len(got), depth)
	}
}

func TestPathToRoot(t *testing.T) {
	nodes := sampleTree()

	path, err := PathToRoot(nodes, 4)
	if err != nil {
		t.Fatalf("PathToRoot error: %v", err)
	}
	if len(path) != 3 || path[0].ID != 4 || path[2].ID != 1 {
		t.Fatalf("unexpected path: %+v", path)
	}

	rootOnly, err := PathToRoot(nodes, 5)
	if err != nil {
		t.Fatalf("PathToRoot error: %v", err)
	}
	if len(rootOnly) != 1 || rootOnly[0].Name != "Docs" {
		t.Fatalf("unexpected path for root node: %+v", rootOnly)
	}
}

func TestPathToRootCycleGuard(t *testing.T) {
	nodes := []model.Category{
		{ID: 1, Name: "a", ParentID: ptr(2)},
		{ID: 2, Name: "b", ParentID: ptr(1)},
	}
	_, err := PathToRoot(nodes, 1)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}
