package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/settlekit/settle/pkg/engine"
)

// FileLoader implements engine.Loader over a manifest file on disk. The
// file is re-read on every Load, so a long-lived controller always
// converges against the current manifest.
type FileLoader struct {
	path     string
	validate *validator.Validate
}

// NewFileLoader creates a loader for the manifest at path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{
		path:     path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load reads, parses and compiles the manifest into a resource graph.
// The graph is returned unfinalized; the controller finalizes it.
func (l *FileLoader) Load(ctx context.Context) (*engine.ResourceGraph, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, engine.NewLoadError(fmt.Sprintf("failed to read manifest %s", l.path), err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := l.validate.Struct(m); err != nil {
		return nil, engine.NewLoadError("manifest failed validation", err)
	}

	return Compile(m)
}

// Parse decodes a manifest document. Unknown fields are rejected so a
// typo in a manifest fails loudly instead of silently dropping state.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, engine.NewLoadError("failed to parse manifest YAML", err)
	}
	return &m, nil
}

// Compile translates manifest resource specs into engine resources and
// builds the graph. Structural errors (bad state for a kind, bad mode,
// duplicate identity) surface here before anything is probed.
func Compile(m *Manifest) (*engine.ResourceGraph, error) {
	g := engine.NewResourceGraph()

	for i, spec := range m.Resources {
		r, err := compileResource(spec)
		if err != nil {
			return nil, engine.NewLoadError(fmt.Sprintf("resource %d (%s:%s) is invalid", i, spec.Kind, spec.Name), err)
		}
		if err := g.Add(r); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func compileResource(spec ResourceSpec) (*engine.Resource, error) {
	kind := engine.ResourceKind(spec.Kind)

	ensure, err := compileState(kind, spec.State)
	if err != nil {
		return nil, err
	}

	desired := engine.DesiredState{
		Ensure:  ensure,
		Content: spec.Content,
		Line:    spec.Line,
	}

	if spec.Mode != "" {
		mode, err := strconv.ParseUint(spec.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid file mode %q: %w", spec.Mode, err)
		}
		desired.Mode = fs.FileMode(mode)
	}

	if kind == engine.KindFileLine && ensure == engine.EnsurePresent && spec.Line == "" {
		return nil, fmt.Errorf("file.line resource requires a line")
	}

	r := engine.NewResource(kind, spec.Name, desired, spec.Requires...)
	r.Path = spec.Path
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// compileState maps the manifest state string onto the kind's ensure
// vocabulary. Only packages can be absent, only services enabled.
func compileState(kind engine.ResourceKind, state string) (engine.Ensure, error) {
	switch state {
	case "":
		return engine.EnsureUnmanaged, nil
	case "present":
		if kind == engine.KindService {
			return "", fmt.Errorf("service resources use state enabled, not present")
		}
		return engine.EnsurePresent, nil
	case "absent":
		if kind != engine.KindPackage {
			return "", fmt.Errorf("state absent is only supported for pkg resources")
		}
		return engine.EnsureAbsent, nil
	case "enabled":
		if kind != engine.KindService {
			return "", fmt.Errorf("state enabled is only supported for service resources")
		}
		return engine.EnsureEnabled, nil
	default:
		return "", fmt.Errorf("unknown state %q", state)
	}
}
