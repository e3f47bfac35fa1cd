package engine

import (
	"errors"
	"testing"
)

func pkg(name string, requires ...string) *Resource {
	return NewResource(KindPackage, name, DesiredState{Ensure: EnsurePresent}, requires...)
}

func TestResourceGraph_Add_Duplicate(t *testing.T) {
	g := NewResourceGraph()
	if err := g.Add(pkg("git")); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	err := g.Add(pkg("git"))
	if err == nil {
		t.Fatal("expected duplicate identity error")
	}
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if engErr.Code != CodeDuplicateResource {
		t.Errorf("expected code %s, got %s", CodeDuplicateResource, engErr.Code)
	}
	if engErr.Resource != "pkg:git" {
		t.Errorf("expected resource pkg:git, got %s", engErr.Resource)
	}
}

func TestResourceGraph_SameNameDifferentKind(t *testing.T) {
	g := NewResourceGraph()
	if err := g.Add(pkg("docker")); err != nil {
		t.Fatalf("add pkg failed: %v", err)
	}
	svc := NewResource(KindService, "docker", DesiredState{Ensure: EnsureEnabled})
	if err := g.Add(svc); err != nil {
		t.Fatalf("same name under a different kind must not collide: %v", err)
	}
}

func TestResourceGraph_Finalize_DanglingDependency(t *testing.T) {
	g := NewResourceGraph()
	if err := g.Add(pkg("code", "apt.repo:vscode")); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	err := g.Finalize()
	if err == nil {
		t.Fatal("expected dangling dependency error")
	}
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if engErr.Code != CodeDanglingDependency {
		t.Errorf("expected code %s, got %s", CodeDanglingDependency, engErr.Code)
	}
	if g.Finalized() {
		t.Error("graph must not be finalized after a failed Finalize")
	}
}

func TestResourceGraph_Finalize_Cycle(t *testing.T) {
	g := NewResourceGraph()
	for _, r := range []*Resource{
		pkg("a", "pkg:b"),
		pkg("b", "pkg:c"),
		pkg("c", "pkg:a"),
	} {
		if err := g.Add(r); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	err := g.Finalize()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if engErr.Code != CodeDependencyCycle {
		t.Errorf("expected code %s, got %s", CodeDependencyCycle, engErr.Code)
	}
}

func TestResourceGraph_Finalize_SelfCycle(t *testing.T) {
	g := NewResourceGraph()
	if err := g.Add(pkg("a", "pkg:a")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := g.Finalize(); err == nil {
		t.Fatal("expected self-dependency to be rejected as a cycle")
	}
}

func TestResourceGraph_ForwardReferences(t *testing.T) {
	// The dependent is added before its dependency; resolution happens
	// at Finalize, so insertion order must not matter.
	g := NewResourceGraph()
	if err := g.Add(pkg("code", "pkg:base")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := g.Add(pkg("base")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := g.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	order := g.TopoOrder()
	if len(order) != 2 {
		t.Fatalf("expected 2 resources in order, got %d", len(order))
	}
	if order[0] != "pkg:base" || order[1] != "pkg:code" {
		t.Errorf("expected [pkg:base pkg:code], got %v", order)
	}
}

func TestResourceGraph_Levels(t *testing.T) {
	// base <- mid1, mid2 <- top. Expect three levels with the two mids
	// sharing the middle one.
	g := NewResourceGraph()
	for _, r := range []*Resource{
		pkg("base"),
		pkg("mid1", "pkg:base"),
		pkg("mid2", "pkg:base"),
		pkg("top", "pkg:mid1", "pkg:mid2"),
	} {
		if err := g.Add(r); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if err := g.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	levels := g.Levels()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 1 || levels[0][0] != "pkg:base" {
		t.Errorf("level 0 should be [pkg:base], got %v", levels[0])
	}
	if len(levels[1]) != 2 {
		t.Errorf("level 1 should hold both mids, got %v", levels[1])
	}
	if levels[1][0] != "pkg:mid1" || levels[1][1] != "pkg:mid2" {
		t.Errorf("level 1 should keep insertion order, got %v", levels[1])
	}
	if len(levels[2]) != 1 || levels[2][0] != "pkg:top" {
		t.Errorf("level 2 should be [pkg:top], got %v", levels[2])
	}
}

func TestResourceGraph_TopoOrder_RespectsEdges(t *testing.T) {
	g := NewResourceGraph()
	for _, r := range []*Resource{
		pkg("top", "pkg:mid"),
		pkg("mid", "pkg:base"),
		pkg("base"),
	} {
		if err := g.Add(r); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if err := g.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	pos := make(map[string]int)
	for i, id := range g.TopoOrder() {
		pos[id] = i
	}
	for _, r := range g.Resources() {
		for _, dep := range r.Requires {
			if pos[dep] >= pos[r.ID] {
				t.Errorf("dependency %s must precede %s in topo order", dep, r.ID)
			}
		}
	}
}

func TestResourceGraph_Add_InvalidResource(t *testing.T) {
	g := NewResourceGraph()
	bad := NewResource(KindManagedFile, "motd", DesiredState{Ensure: EnsurePresent})
	// file kinds require a path
	if err := g.Add(bad); err == nil {
		t.Fatal("expected validation error for file resource without path")
	}
}
