package engine

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultFileMode is applied to managed files whose manifest declares
// no explicit mode.
const defaultFileMode fs.FileMode = 0o644

// Executor runs a plan level by level. Actions within a level run in
// parallel up to the configured width; actions in later levels only
// start after every action in earlier levels has finished, so an action
// never runs before its dependencies have resolved.
type Executor struct {
	backends    Backends
	parallelism int

	// pkgMu serializes package manager mutations. apt and dpkg hold a
	// system-wide lock, so concurrent installs would fail spuriously.
	pkgMu sync.Mutex
}

// NewExecutor creates an executor over the given backends. A
// parallelism below 1 is clamped to 1.
func NewExecutor(b Backends, parallelism int) *Executor {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Executor{backends: b, parallelism: parallelism}
}

// Execute applies every action in the plan and returns one outcome per
// action, in plan order. A failed action never aborts the run: its
// dependents fail with a dependency-failed reason and every independent
// action still runs. Cancelling the context stops scheduling new
// actions; actions already in flight finish and their outcomes are
// recorded.
func (e *Executor) Execute(ctx context.Context, plan *Plan) []Outcome {
	outcomes := make([]Outcome, len(plan.Actions))

	// status tracks terminal results for dependency checks. Accesses
	// during a level are guarded by that level's mutex; across levels
	// the wg.Wait barrier orders them.
	status := make(map[string]OutcomeStatus, len(plan.Actions))

	for _, level := range plan.Levels {
		var wg sync.WaitGroup
		sem := make(chan struct{}, e.parallelism)
		var mu sync.Mutex

		for _, idx := range level {
			act := plan.Actions[idx]

			// Dependency and cancellation checks happen before the
			// action is scheduled, so a short-circuited action never
			// consumes a worker slot. The mutex also covers in-flight
			// workers of this level writing their own statuses.
			mu.Lock()
			failedDep := e.failedDependency(act, status)
			cancelled := failedDep == "" && ctx.Err() != nil
			if failedDep != "" || cancelled {
				reason := fmt.Sprintf("dependency failed: %s", failedDep)
				if cancelled {
					reason = "run cancelled before action started"
				}
				outcomes[idx] = Outcome{
					ResourceID: act.ResourceID,
					Op:         act.Op,
					Status:     OutcomeFailed,
					Reason:     reason,
				}
				status[act.ResourceID] = OutcomeFailed
				mu.Unlock()
				continue
			}
			mu.Unlock()

			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, act Action) {
				defer wg.Done()
				defer func() { <-sem }()

				outcome := e.executeAction(ctx, act)

				mu.Lock()
				outcomes[idx] = outcome
				status[act.ResourceID] = outcome.Status
				mu.Unlock()
			}(idx, act)
		}
		wg.Wait()
		e.refreshIndexIfNeeded(ctx, plan, level, outcomes)
	}

	return outcomes
}

// refreshIndexIfNeeded refreshes the package index once after a level
// applies an apt repository change, so installs in later levels resolve
// packages from the new source. A failed refresh is logged and the
// dependent installs report their own backend errors.
func (e *Executor) refreshIndexIfNeeded(ctx context.Context, plan *Plan, level []int, outcomes []Outcome) {
	refresher, ok := e.backends.Packages.(IndexRefresher)
	if !ok || ctx.Err() != nil {
		return
	}

	changed := false
	for _, idx := range level {
		act := plan.Actions[idx]
		if act.Resource != nil && act.Resource.Kind == KindAptRepository && outcomes[idx].Status == OutcomeApplied {
			changed = true
			break
		}
	}
	if !changed {
		return
	}

	e.pkgMu.Lock()
	defer e.pkgMu.Unlock()
	if err := refresher.RefreshIndex(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("package index refresh failed")
	}
}

// failedDependency returns the ID of the first direct dependency that
// failed, or empty when all dependencies succeeded. Transitive failure
// propagates level by level because a failed dependency marks this
// resource Failed, which in turn fails its own dependents.
func (e *Executor) failedDependency(act Action, status map[string]OutcomeStatus) string {
	if act.Resource == nil {
		return ""
	}
	for _, dep := range act.Resource.Requires {
		if status[dep] == OutcomeFailed {
			return dep
		}
	}
	return ""
}

// executeAction applies one action through the backends and converts
// the result into an outcome.
func (e *Executor) executeAction(ctx context.Context, act Action) Outcome {
	start := time.Now()
	outcome := Outcome{ResourceID: act.ResourceID, Op: act.Op}

	// A NoOp either means the resource is already satisfied or that its
	// probe failed. Neither touches a backend.
	if act.Op == OpNoOp {
		if act.Observation.Error != nil {
			outcome.Status = OutcomeFailed
			outcome.Reason = act.Observation.Error.Error()
		} else {
			outcome.Status = OutcomeAlreadySatisfied
			outcome.Reason = act.Reason
		}
		outcome.Duration = time.Since(start)
		return outcome
	}

	log.Debug().
		Str("resource_id", act.ResourceID).
		Str("op", string(act.Op)).
		Str("reason", act.Reason).
		Msg("applying action")

	if err := e.apply(ctx, act); err != nil {
		outcome.Status = OutcomeFailed
		outcome.Reason = NewBackendError(act.Op, err).WithResource(act.ResourceID).Error()
		outcome.Duration = time.Since(start)
		log.Warn().
			Str("resource_id", act.ResourceID).
			Str("op", string(act.Op)).
			Err(err).
			Msg("action failed")
		return outcome
	}

	outcome.Status = OutcomeApplied
	outcome.Reason = act.Reason
	outcome.Duration = time.Since(start)
	return outcome
}

// apply dispatches one mutating op to its backend. The backend call
// runs on a context detached from run cancellation: cancellation only
// stops scheduling, and killing apt-get mid-install would leave the
// package database in an undefined state.
func (e *Executor) apply(ctx context.Context, act Action) error {
	ctx = context.WithoutCancel(ctx)
	r := act.Resource
	switch act.Op {
	case OpInstall:
		e.pkgMu.Lock()
		defer e.pkgMu.Unlock()
		return e.backends.Packages.Install(ctx, r.Name)

	case OpRemove:
		e.pkgMu.Lock()
		defer e.pkgMu.Unlock()
		return e.backends.Packages.Remove(ctx, r.Name)

	case OpWriteFile:
		mode := r.Desired.Mode
		if mode == 0 {
			mode = defaultFileMode
		}
		return e.backends.Files.WriteFile(ctx, r.Path, []byte(r.Desired.Content), mode)

	case OpAppendLine:
		return e.backends.Files.AppendLine(ctx, r.Path, r.Desired.Line)

	case OpEnableService:
		return e.backends.Services.EnableAndStart(ctx, r.Name)

	default:
		return fmt.Errorf("unknown action op: %s", act.Op)
	}
}
