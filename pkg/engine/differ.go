package engine

// Diff compares one resource's desired state against its observation
// and computes the action that converges it. Diff is a pure function:
// it performs no backend calls and has no side effects.
//
// Two rules apply before any kind-specific policy:
//
//   - An unmanaged resource (no declared desired state) always diffs to
//     NoOp. Omission is not a removal request.
//   - A resource whose probe failed diffs to NoOp carrying the probe
//     error; the executor resolves it to a Failed outcome without a
//     backend call.
func Diff(r *Resource, obs Observation) Action {
	act := Action{
		ResourceID:  r.ID,
		Resource:    r,
		Observation: obs,
		Op:          OpNoOp,
	}

	if r.Desired.Ensure == EnsureUnmanaged {
		act.Reason = "no managed state declared"
		return act
	}
	if obs.Error != nil {
		act.Reason = "probe failed, not evaluated"
		return act
	}

	switch r.Kind {
	case KindPackage:
		switch {
		case r.Desired.Ensure == EnsurePresent && !obs.Exists:
			act.Op = OpInstall
			act.Reason = "package not installed"
		case r.Desired.Ensure == EnsureAbsent && obs.Exists:
			act.Op = OpRemove
			act.Reason = "package installed but declared absent"
		default:
			act.Reason = "package already in desired state"
		}

	case KindAptRepository, KindManagedFile:
		desiredHash := ContentHash([]byte(r.Desired.Content))
		switch {
		case r.Desired.Ensure != EnsurePresent:
			act.Reason = "file kinds only manage presence"
		case !obs.Exists:
			act.Op = OpWriteFile
			act.Reason = "file missing"
		case obs.ContentHash != desiredHash:
			act.Op = OpWriteFile
			act.Reason = "content hash mismatch"
		default:
			act.Reason = "content already matches"
		}

	case KindFileLine:
		if r.Desired.Ensure == EnsurePresent && !obs.LineFound {
			act.Op = OpAppendLine
			act.Reason = "line not present"
		} else {
			act.Reason = "line already present"
		}

	case KindService:
		if r.Desired.Ensure == EnsureEnabled && !(obs.Enabled && obs.Running) {
			act.Op = OpEnableService
			act.Reason = "service not enabled and running"
		} else {
			act.Reason = "service already enabled and running"
		}
	}

	return act
}
