// Package manifest loads declarative desired-state manifests from YAML
// and compiles them into a resource graph for the engine.
package manifest

// Manifest is the top-level desired-state document.
type Manifest struct {
	// Version is the manifest schema version. Only version 1 exists.
	Version int `yaml:"version" validate:"required,eq=1"`

	// Resources is the flat list of declared resources. Order does not
	// matter; ordering comes from the requires edges.
	Resources []ResourceSpec `yaml:"resources" validate:"required,min=1,dive"`
}

// ResourceSpec is one declared resource as written in the manifest.
type ResourceSpec struct {
	// Kind selects the resource variant.
	Kind string `yaml:"kind" validate:"required,oneof=pkg apt.repo file file.line service"`

	// Name is the package name, service unit name, or a symbolic name
	// for file-backed kinds.
	Name string `yaml:"name" validate:"required"`

	// Path is the target file path. Required for apt.repo, file and
	// file.line kinds.
	Path string `yaml:"path,omitempty"`

	// State declares the desired presence: present, absent or enabled.
	// An empty state leaves the resource unmanaged.
	State string `yaml:"state,omitempty" validate:"omitempty,oneof=present absent enabled"`

	// Content is the full desired file body for file and apt.repo kinds.
	Content string `yaml:"content,omitempty"`

	// Line is the line that must be present for file.line kinds.
	Line string `yaml:"line,omitempty"`

	// Mode is the octal file mode applied on write, e.g. "0644".
	Mode string `yaml:"mode,omitempty"`

	// Requires lists resource IDs ("<kind>:<name>") that must converge
	// before this one. Forward references are fine; resolution happens
	// at graph finalization.
	Requires []string `yaml:"requires,omitempty"`
}
