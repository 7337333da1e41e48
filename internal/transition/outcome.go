package transition

// Outcome is the result of one call to Manager.Transition.
type Outcome string

const (
	// Success means the guarded UPDATE committed and the row advanced.
	Success Outcome = "success"

	// RejectedStale means the guarded UPDATE affected zero rows: some
	// other writer already advanced the row past the expected (state,
	// version) pair.
	RejectedStale Outcome = "rejected_stale"

	// RejectedGuard means the current state does not permit the
	// requested event.
	RejectedGuard Outcome = "rejected_guard"

	// FailedPrecommit means an error occurred before the UPDATE
	// committed; the row's state is unchanged.
	FailedPrecommit Outcome = "failed_precommit"

	// FailedPostcommit means the UPDATE committed but a subsequent
	// post-commit side effect raised; the row's state HAS advanced.
	FailedPostcommit Outcome = "failed_postcommit"
)
