package engine

import (
	"context"
	"testing"
)

func TestProber_Package(t *testing.T) {
	host := newFakeHost()
	host.packages.installed["git"] = true
	prober := NewProber(host.backends())

	installed := prober.Probe(context.Background(), pkg("git"))
	if !installed.Exists {
		t.Error("installed package should observe Exists=true")
	}

	missing := prober.Probe(context.Background(), pkg("zsh"))
	if missing.Exists {
		t.Error("missing package should observe Exists=false")
	}
	if missing.Error != nil {
		t.Errorf("a missing package is a valid observation, not an error: %v", missing.Error)
	}
}

func TestProber_File(t *testing.T) {
	host := newFakeHost()
	content := []byte("managed content\n")
	host.files.files["/etc/motd"] = content
	prober := NewProber(host.backends())

	r := NewResource(KindManagedFile, "motd", DesiredState{Ensure: EnsurePresent, Content: "managed content\n"})
	r.Path = "/etc/motd"

	obs := prober.Probe(context.Background(), r)
	if !obs.Exists {
		t.Fatal("existing file should observe Exists=true")
	}
	if obs.ContentHash != ContentHash(content) {
		t.Errorf("content hash mismatch: %s", obs.ContentHash)
	}

	r2 := NewResource(KindManagedFile, "absent", DesiredState{Ensure: EnsurePresent})
	r2.Path = "/no/such/file"
	obs2 := prober.Probe(context.Background(), r2)
	if obs2.Exists {
		t.Error("missing file should observe Exists=false")
	}
	if obs2.Error != nil {
		t.Errorf("missing file is a valid observation, not an error: %v", obs2.Error)
	}
}

func TestProber_FileLine(t *testing.T) {
	host := newFakeHost()
	host.files.files["/root/.zshrc"] = []byte("export EDITOR=vim\nalias ll='ls -la'\n")
	prober := NewProber(host.backends())

	r := NewResource(KindFileLine, "alias", DesiredState{Ensure: EnsurePresent, Line: "alias ll='ls -la'"})
	r.Path = "/root/.zshrc"
	obs := prober.Probe(context.Background(), r)
	if !obs.LineFound {
		t.Error("line present in file should observe LineFound=true")
	}

	r2 := NewResource(KindFileLine, "other", DesiredState{Ensure: EnsurePresent, Line: "alias gs='git status'"})
	r2.Path = "/root/.zshrc"
	obs2 := prober.Probe(context.Background(), r2)
	if obs2.LineFound {
		t.Error("absent line should observe LineFound=false")
	}
}

func TestProber_ErrorIsScopedToResource(t *testing.T) {
	host := newFakeHost()
	host.packages.queryErr["git"] = errBoom
	host.packages.installed["zsh"] = true
	prober := NewProber(host.backends())

	g := NewResourceGraph()
	if err := g.Add(pkg("git")); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(pkg("zsh")); err != nil {
		t.Fatal(err)
	}

	observations := prober.ProbeAll(context.Background(), g)
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}

	if observations["pkg:git"].Error == nil {
		t.Error("failed probe should carry its error")
	}
	if !IsProbe(observations["pkg:git"].Error) {
		t.Error("probe failure should classify as a probe error")
	}
	if observations["pkg:zsh"].Error != nil {
		t.Errorf("one failed probe must not poison the others: %v", observations["pkg:zsh"].Error)
	}
	if !observations["pkg:zsh"].Exists {
		t.Error("unaffected probe should still observe real state")
	}
}

func TestContainsLine(t *testing.T) {
	data := []byte("first\n  second  \nthird")
	tests := []struct {
		line string
		want bool
	}{
		{"first", true},
		{"second", true}, // whitespace-trimmed match
		{"third", true},  // no trailing newline
		{"fourth", false},
		{"fir", false}, // whole-line match only
	}
	for _, tt := range tests {
		if got := ContainsLine(data, tt.line); got != tt.want {
			t.Errorf("ContainsLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
