package engine

import (
	"context"
	"errors"
	"io/fs"
)

// ErrFileNotFound is returned by Filesystem.ReadFile when the target
// path does not exist. A missing file is a normal observation, not a
// probe failure.
var ErrFileNotFound = errors.New("file not found")

// PackageManager is the package backend collaborator. Implementations
// must themselves be idempotent: installing an already-installed
// package is a no-op at that layer too.
type PackageManager interface {
	// QueryInstalled reports whether the named package is installed.
	QueryInstalled(ctx context.Context, name string) (bool, error)

	// Install installs the named package.
	Install(ctx context.Context, name string) error

	// Remove removes the named package.
	Remove(ctx context.Context, name string) error
}

// IndexRefresher is implemented by package managers whose index must be
// refreshed after repository sources change. The executor refreshes the
// index after a level applies an apt repository resource, before any
// dependent install runs.
type IndexRefresher interface {
	RefreshIndex(ctx context.Context) error
}

// Filesystem is the file backend collaborator.
type Filesystem interface {
	// ReadFile returns the file contents, or ErrFileNotFound when the
	// path does not exist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the file contents with data.
	WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error

	// AppendLine appends line to the file unless an identical line is
	// already present. The pre-check lives in the backend so the call
	// is idempotent on its own.
	AppendLine(ctx context.Context, path string, line string) error
}

// ServiceStatus is the observed status of a service unit.
type ServiceStatus struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

// ServiceManager is the service backend collaborator.
type ServiceManager interface {
	// Status returns the enabled/running state of the named unit.
	Status(ctx context.Context, name string) (ServiceStatus, error)

	// EnableAndStart enables the unit and starts it.
	EnableAndStart(ctx context.Context, name string) error
}

// Backends bundles the three collaborators the engine mutates host
// state through. The actual machine is never touched directly, which
// keeps the whole convergence logic testable with fakes.
type Backends struct {
	Packages PackageManager
	Files    Filesystem
	Services ServiceManager
}

// Loader produces the desired-state resource graph for one run.
type Loader interface {
	// Load builds the graph from the desired-state input. The returned
	// graph need not be finalized; the controller finalizes it.
	Load(ctx context.Context) (*ResourceGraph, error)
}

// Recorder persists run reports for later inspection. Recording is
// observability only; convergence itself stays stateless between runs.
type Recorder interface {
	RecordRun(ctx context.Context, report *Report) error
}
