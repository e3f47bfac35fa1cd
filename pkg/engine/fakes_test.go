package engine

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
)

// fakePackages is an in-memory package manager for tests.
type fakePackages struct {
	mu        sync.Mutex
	installed map[string]bool

	queryErr   map[string]error
	installErr map[string]error
	refreshErr error

	installCalls []string
	removeCalls  []string

	// calls records install, remove, and refresh-index events in the
	// order the fake saw them.
	calls []string
}

func newFakePackages(installed ...string) *fakePackages {
	p := &fakePackages{
		installed:  make(map[string]bool),
		queryErr:   make(map[string]error),
		installErr: make(map[string]error),
	}
	for _, name := range installed {
		p.installed[name] = true
	}
	return p
}

func (p *fakePackages) QueryInstalled(ctx context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.queryErr[name]; err != nil {
		return false, err
	}
	return p.installed[name], nil
}

func (p *fakePackages) Install(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installCalls = append(p.installCalls, name)
	p.calls = append(p.calls, "install "+name)
	if err := p.installErr[name]; err != nil {
		return err
	}
	p.installed[name] = true
	return nil
}

func (p *fakePackages) Remove(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeCalls = append(p.removeCalls, name)
	p.calls = append(p.calls, "remove "+name)
	delete(p.installed, name)
	return nil
}

func (p *fakePackages) RefreshIndex(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "refresh-index")
	return p.refreshErr
}

// fakeFiles is an in-memory filesystem for tests.
type fakeFiles struct {
	mu    sync.Mutex
	files map[string][]byte
	modes map[string]fs.FileMode

	readErr  map[string]error
	writeErr map[string]error

	writeCalls  []string
	appendCalls []string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		files:    make(map[string][]byte),
		modes:    make(map[string]fs.FileMode),
		readErr:  make(map[string]error),
		writeErr: make(map[string]error),
	}
}

func (f *fakeFiles) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[path]; err != nil {
		return nil, err
	}
	data, ok := f.files[path]
	if !ok {
		return nil, ErrFileNotFound
	}
	return data, nil
}

func (f *fakeFiles) WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls = append(f.writeCalls, path)
	if err := f.writeErr[path]; err != nil {
		return err
	}
	f.files[path] = append([]byte(nil), data...)
	f.modes[path] = mode
	return nil
}

func (f *fakeFiles) AppendLine(ctx context.Context, path string, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls = append(f.appendCalls, path)
	data := f.files[path]
	if ContainsLine(data, line) {
		return nil
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	f.files[path] = append(data, []byte(line+"\n")...)
	return nil
}

// fakeServices is an in-memory service manager for tests.
type fakeServices struct {
	mu    sync.Mutex
	units map[string]ServiceStatus

	statusErr map[string]error
	enableErr map[string]error

	enableCalls []string
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		units:     make(map[string]ServiceStatus),
		statusErr: make(map[string]error),
		enableErr: make(map[string]error),
	}
}

func (s *fakeServices) Status(ctx context.Context, name string) (ServiceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.statusErr[name]; err != nil {
		return ServiceStatus{}, err
	}
	return s.units[name], nil
}

func (s *fakeServices) EnableAndStart(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableCalls = append(s.enableCalls, name)
	if err := s.enableErr[name]; err != nil {
		return err
	}
	s.units[name] = ServiceStatus{Enabled: true, Running: true}
	return nil
}

// fakeHost bundles the three fakes into a Backends value.
type fakeHost struct {
	packages *fakePackages
	files    *fakeFiles
	services *fakeServices
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		packages: newFakePackages(),
		files:    newFakeFiles(),
		services: newFakeServices(),
	}
}

func (h *fakeHost) backends() Backends {
	return Backends{
		Packages: h.packages,
		Files:    h.files,
		Services: h.services,
	}
}

// graphLoader is a Loader over a fixed resource list.
type graphLoader struct {
	resources []*Resource
	err       error
}

func (l *graphLoader) Load(ctx context.Context) (*ResourceGraph, error) {
	if l.err != nil {
		return nil, l.err
	}
	g := NewResourceGraph()
	for _, r := range l.resources {
		if err := g.Add(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// recorderFunc adapts a function to the Recorder interface.
type recorderFunc func(ctx context.Context, report *Report) error

func (f recorderFunc) RecordRun(ctx context.Context, report *Report) error {
	return f(ctx, report)
}

var errBoom = fmt.Errorf("boom")
