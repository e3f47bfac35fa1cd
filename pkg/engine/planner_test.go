package engine

import (
	"context"
	"strings"
	"testing"
)

func TestBuildPlan_EveryResourceAppearsOnce(t *testing.T) {
	host := newFakeHost()
	host.packages.installed["git"] = true

	g := NewResourceGraph()
	for _, r := range []*Resource{pkg("git"), pkg("zsh"), pkg("fzf", "pkg:zsh")} {
		if err := g.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}

	observations := NewProber(host.backends()).ProbeAll(context.Background(), g)
	plan, err := BuildPlan(g, observations)
	if err != nil {
		t.Fatalf("build plan failed: %v", err)
	}

	if len(plan.Actions) != 3 {
		t.Fatalf("plan must include satisfied resources too, got %d actions", len(plan.Actions))
	}

	seen := make(map[string]int)
	for _, a := range plan.Actions {
		seen[a.ResourceID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("%s appears %d times in the plan", id, n)
		}
	}

	// git is already installed, so its action is the NoOp record.
	for _, a := range plan.Actions {
		if a.ResourceID == "pkg:git" && a.Op != OpNoOp {
			t.Errorf("satisfied resource should plan a noop, got %s", a.Op)
		}
	}
	if plan.ID == "" {
		t.Error("plan must carry an ID")
	}
}

func TestBuildPlan_LevelsMatchGraph(t *testing.T) {
	host := newFakeHost()
	g := NewResourceGraph()
	for _, r := range []*Resource{pkg("base"), pkg("top", "pkg:base")} {
		if err := g.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}

	observations := NewProber(host.backends()).ProbeAll(context.Background(), g)
	plan, err := BuildPlan(g, observations)
	if err != nil {
		t.Fatal(err)
	}

	if len(plan.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(plan.Levels))
	}
	if plan.Actions[plan.Levels[0][0]].ResourceID != "pkg:base" {
		t.Error("level 0 should hold the dependency")
	}
	if plan.Actions[plan.Levels[1][0]].ResourceID != "pkg:top" {
		t.Error("level 1 should hold the dependent")
	}
}

func TestBuildPlan_RejectsUnfinalizedGraph(t *testing.T) {
	g := NewResourceGraph()
	if err := g.Add(pkg("git")); err != nil {
		t.Fatal(err)
	}
	if _, err := BuildPlan(g, map[string]Observation{}); err == nil {
		t.Fatal("expected error for unfinalized graph")
	}
}

func TestPlan_ToDOT(t *testing.T) {
	host := newFakeHost()
	g := NewResourceGraph()
	for _, r := range []*Resource{pkg("base"), pkg("top", "pkg:base")} {
		if err := g.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Finalize(); err != nil {
		t.Fatal(err)
	}
	observations := NewProber(host.backends()).ProbeAll(context.Background(), g)
	plan, err := BuildPlan(g, observations)
	if err != nil {
		t.Fatal(err)
	}

	dot := plan.ToDOT(g)
	if !strings.HasPrefix(dot, "digraph plan {") {
		t.Errorf("DOT output should open a digraph, got %q", dot[:20])
	}
	if !strings.Contains(dot, `"pkg:base" -> "pkg:top"`) {
		t.Errorf("DOT output should contain the dependency edge:\n%s", dot)
	}
}
