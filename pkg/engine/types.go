package engine

import (
	"fmt"
	"io/fs"
	"time"
)

// ResourceKind identifies the variant of a managed resource.
type ResourceKind string

const (
	// KindPackage is an apt/dpkg managed package.
	KindPackage ResourceKind = "pkg"

	// KindAptRepository is an apt source list entry rendered to a file
	// under /etc/apt/sources.list.d.
	KindAptRepository ResourceKind = "apt.repo"

	// KindManagedFile is a file whose full content is managed.
	KindManagedFile ResourceKind = "file"

	// KindFileLine is a single line that must be present in a file.
	KindFileLine ResourceKind = "file.line"

	// KindService is a systemd unit that must be enabled and running.
	KindService ResourceKind = "service"
)

// Validate checks that the resource kind is one of the known variants.
func (k ResourceKind) Validate() error {
	switch k {
	case KindPackage, KindAptRepository, KindManagedFile, KindFileLine, KindService:
		return nil
	default:
		return fmt.Errorf("invalid resource kind: %s", k)
	}
}

// Ensure expresses the desired presence of a resource.
type Ensure string

const (
	// EnsureUnmanaged means no desired state was declared for the
	// resource. Diffing an unmanaged resource always yields NoOp:
	// omission is never treated as a removal request.
	EnsureUnmanaged Ensure = ""

	// EnsurePresent means the resource must exist (package installed,
	// file/repo content in place, line present).
	EnsurePresent Ensure = "present"

	// EnsureAbsent means the resource must not exist. Only packages
	// support removal.
	EnsureAbsent Ensure = "absent"

	// EnsureEnabled means the service must be enabled and running.
	EnsureEnabled Ensure = "enabled"
)

// DesiredState is the declared target state for one resource.
type DesiredState struct {
	// Ensure is the presence policy for the resource.
	Ensure Ensure `json:"ensure"`

	// Content is the full desired file body for file and apt.repo kinds.
	Content string `json:"content,omitempty"`

	// Line is the line that must be present for file.line kinds.
	Line string `json:"line,omitempty"`

	// Mode is the file mode applied on write for file kinds.
	Mode fs.FileMode `json:"mode,omitempty"`
}

// Resource is a single declaratively managed unit of host state.
type Resource struct {
	// ID is the stable identity key, formed as "<kind>:<name>".
	ID string `json:"id"`

	// Kind is the resource variant.
	Kind ResourceKind `json:"kind"`

	// Name is the package name, service unit name, or a symbolic name
	// for file-backed kinds.
	Name string `json:"name"`

	// Path is the target file path for file, file.line and apt.repo kinds.
	Path string `json:"path,omitempty"`

	// Desired is the declared target state.
	Desired DesiredState `json:"desired"`

	// Requires lists resource IDs that must converge before this one.
	Requires []string `json:"requires,omitempty"`
}

// ResourceID builds the stable identity key for a kind and name.
func ResourceID(kind ResourceKind, name string) string {
	return string(kind) + ":" + name
}

// NewResource constructs a resource with its identity derived from kind
// and name.
func NewResource(kind ResourceKind, name string, desired DesiredState, requires ...string) *Resource {
	return &Resource{
		ID:       ResourceID(kind, name),
		Kind:     kind,
		Name:     name,
		Desired:  desired,
		Requires: requires,
	}
}

// Validate checks the structural validity of a single resource.
func (r *Resource) Validate() error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if r.Name == "" {
		return fmt.Errorf("resource of kind %s has empty name", r.Kind)
	}
	if r.ID == "" {
		return fmt.Errorf("resource %s has empty ID", r.Name)
	}
	switch r.Kind {
	case KindAptRepository, KindManagedFile, KindFileLine:
		if r.Path == "" {
			return fmt.Errorf("resource %s requires a path", r.ID)
		}
	}
	return nil
}

// Observation is the actual-state snapshot for one resource identity at
// probe time. Observations are ephemeral and never persisted.
type Observation struct {
	// ResourceID is the identity of the probed resource.
	ResourceID string `json:"resource_id"`

	// ProbedAt is when the observation was taken.
	ProbedAt time.Time `json:"probed_at"`

	// Exists reports whether the package is installed or the target
	// file exists.
	Exists bool `json:"exists"`

	// ContentHash is the SHA-256 of the target file, when it exists.
	ContentHash string `json:"content_hash,omitempty"`

	// LineFound reports whether the desired line is already in the file.
	LineFound bool `json:"line_found,omitempty"`

	// Enabled and Running report systemd unit status.
	Enabled bool `json:"enabled,omitempty"`
	Running bool `json:"running,omitempty"`

	// Error records a probe failure for this resource. When set, the
	// other fields are meaningless and the resource's action resolves
	// to Failed at execution time.
	Error *Error `json:"error,omitempty"`
}

// ActionOp is the kind of step computed by the diff engine.
type ActionOp string

const (
	OpInstall       ActionOp = "install"
	OpRemove        ActionOp = "remove"
	OpWriteFile     ActionOp = "write-file"
	OpAppendLine    ActionOp = "append-line"
	OpEnableService ActionOp = "enable-service"
	OpNoOp          ActionOp = "noop"
)

// Mutates reports whether the op performs a backend call.
func (op ActionOp) Mutates() bool {
	return op != OpNoOp
}

// Action is a computed convergence step bound to one resource. It
// carries the observation it was derived from for auditability.
type Action struct {
	// ResourceID is the identity of the resource this action targets.
	ResourceID string `json:"resource_id"`

	// Op is the computed step.
	Op ActionOp `json:"op"`

	// Reason explains why the op was chosen.
	Reason string `json:"reason,omitempty"`

	// Resource is the desired-state input of the diff.
	Resource *Resource `json:"resource"`

	// Observation is the actual-state input of the diff.
	Observation Observation `json:"observation"`
}

// Plan is an ordered, ready-to-execute sequence of actions. The order
// respects the dependency DAG and every resource in the graph appears
// exactly once, NoOps included.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// Actions is the full action sequence in topological order.
	Actions []Action `json:"actions"`

	// Levels groups indexes into Actions by execution level. Actions
	// within a level have no dependency relationship and may run in
	// parallel.
	Levels [][]int `json:"levels"`
}

// PlanSummary counts planned actions by op.
type PlanSummary struct {
	Total     int `json:"total"`
	ToInstall int `json:"to_install"`
	ToRemove  int `json:"to_remove"`
	ToWrite   int `json:"to_write"`
	ToAppend  int `json:"to_append"`
	ToEnable  int `json:"to_enable"`
	NoChange  int `json:"no_change"`
}

// Summary computes action counts for the plan.
func (p *Plan) Summary() PlanSummary {
	s := PlanSummary{Total: len(p.Actions)}
	for _, a := range p.Actions {
		switch a.Op {
		case OpInstall:
			s.ToInstall++
		case OpRemove:
			s.ToRemove++
		case OpWriteFile:
			s.ToWrite++
		case OpAppendLine:
			s.ToAppend++
		case OpEnableService:
			s.ToEnable++
		case OpNoOp:
			s.NoChange++
		}
	}
	return s
}

// Changes reports whether the plan contains any mutating action.
func (p *Plan) Changes() bool {
	for _, a := range p.Actions {
		if a.Op.Mutates() {
			return true
		}
	}
	return false
}

// OutcomeStatus is the terminal result of executing one action.
type OutcomeStatus string

const (
	// OutcomeApplied means the backend call was made and succeeded.
	OutcomeApplied OutcomeStatus = "applied"

	// OutcomeAlreadySatisfied means no backend call was needed.
	OutcomeAlreadySatisfied OutcomeStatus = "already-satisfied"

	// OutcomeFailed means the action failed or was short-circuited by
	// a failed dependency.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the result of executing one action.
type Outcome struct {
	// ResourceID is the identity of the resource the action targeted.
	ResourceID string `json:"resource_id"`

	// Op is the action op that was executed or short-circuited.
	Op ActionOp `json:"op"`

	// Status is the terminal result.
	Status OutcomeStatus `json:"status"`

	// Reason carries the failure cause for OutcomeFailed.
	Reason string `json:"reason,omitempty"`

	// Duration is the wall time the action took.
	Duration time.Duration `json:"duration"`
}

// Failure pairs a failed resource identity with its cause.
type Failure struct {
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}

// Report is the final summary of one convergence run.
type Report struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// ManifestPath is the desired-state input the run converged.
	ManifestPath string `json:"manifest_path,omitempty"`

	// StartedAt and CompletedAt delimit the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Outcomes lists per-action results in plan order.
	Outcomes []Outcome `json:"outcomes"`

	// Applied, AlreadySatisfied and Failed count outcomes by status.
	Applied          int `json:"applied"`
	AlreadySatisfied int `json:"already_satisfied"`
	Failed           int `json:"failed"`

	// Failures lists every failed resource identity with its cause.
	// A run never fails silently.
	Failures []Failure `json:"failures,omitempty"`
}

// OK reports whether the run converged with zero failures.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Duration is the total run wall time.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// summarize fills the aggregate counters from the outcome list.
func (r *Report) summarize() {
	r.Applied, r.AlreadySatisfied, r.Failed = 0, 0, 0
	r.Failures = r.Failures[:0]
	for _, o := range r.Outcomes {
		switch o.Status {
		case OutcomeApplied:
			r.Applied++
		case OutcomeAlreadySatisfied:
			r.AlreadySatisfied++
		case OutcomeFailed:
			r.Failed++
			r.Failures = append(r.Failures, Failure{ResourceID: o.ResourceID, Reason: o.Reason})
		}
	}
}
