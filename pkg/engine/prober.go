package engine

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Prober queries actual system state for resources through the backend
// collaborators. Probing never mutates anything.
type Prober struct {
	backends Backends
}

// NewProber creates a prober over the given backends.
func NewProber(b Backends) *Prober {
	return &Prober{backends: b}
}

// ProbeAll probes every resource in the graph concurrently. Probing is
// read-only, so there is no ordering requirement between resources. A
// failed probe is captured inside that resource's Observation; it never
// aborts probing of the others.
func (p *Prober) ProbeAll(ctx context.Context, g *ResourceGraph) map[string]Observation {
	resources := g.Resources()
	observations := make(map[string]Observation, len(resources))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, r := range resources {
		wg.Add(1)
		go func(r *Resource) {
			defer wg.Done()
			obs := p.Probe(ctx, r)
			mu.Lock()
			observations[r.ID] = obs
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	return observations
}

// Probe queries the actual state of a single resource.
func (p *Prober) Probe(ctx context.Context, r *Resource) Observation {
	obs := Observation{ResourceID: r.ID, ProbedAt: time.Now()}

	var err error
	switch r.Kind {
	case KindPackage:
		obs.Exists, err = p.backends.Packages.QueryInstalled(ctx, r.Name)

	case KindAptRepository, KindManagedFile:
		err = p.probeFile(ctx, r.Path, &obs)

	case KindFileLine:
		err = p.probeLine(ctx, r.Path, r.Desired.Line, &obs)

	case KindService:
		var status ServiceStatus
		status, err = p.backends.Services.Status(ctx, r.Name)
		obs.Exists = true
		obs.Enabled = status.Enabled
		obs.Running = status.Running

	default:
		err = fmt.Errorf("unknown resource kind: %s", r.Kind)
	}

	if err != nil {
		obs.Error = NewProbeError(r.Kind, err).WithResource(r.ID)
		log.Debug().Str("resource_id", r.ID).Err(err).Msg("probe failed")
	}
	return obs
}

// probeFile reads the target file and records existence and content
// hash. A missing file is a valid observation.
func (p *Prober) probeFile(ctx context.Context, path string, obs *Observation) error {
	data, err := p.backends.Files.ReadFile(ctx, path)
	if errors.Is(err, ErrFileNotFound) {
		obs.Exists = false
		return nil
	}
	if err != nil {
		return err
	}
	obs.Exists = true
	obs.ContentHash = ContentHash(data)
	return nil
}

// probeLine reads the target file and records whether the desired line
// is already present. Comparison is on the whole trimmed line.
func (p *Prober) probeLine(ctx context.Context, path, line string, obs *Observation) error {
	data, err := p.backends.Files.ReadFile(ctx, path)
	if errors.Is(err, ErrFileNotFound) {
		obs.Exists = false
		obs.LineFound = false
		return nil
	}
	if err != nil {
		return err
	}
	obs.Exists = true
	obs.LineFound = ContainsLine(data, line)
	return nil
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// ContainsLine reports whether data contains line as a whole line,
// ignoring surrounding whitespace.
func ContainsLine(data []byte, line string) bool {
	want := strings.TrimSpace(line)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == want {
			return true
		}
	}
	return false
}
