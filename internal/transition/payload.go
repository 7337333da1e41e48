package transition

import "context"

// StartUploadPayload carries no event-specific data; start_upload only
// needs the file path and expected version already present on
// TransitionContext.
type StartUploadPayload struct{}

// UploadCompletePayload is supplied when the adapter's poll operation
// reports the upload half of the pipeline finished.
type UploadCompletePayload struct {
	OperationHandle string
}

// ProcessingCompletePayload is supplied when the adapter's poll
// operation reports the file is fully indexed. ExternalFileID must be
// non-empty: a row in state `indexed` always carries a non-null
// `external_file_id`.
type ProcessingCompletePayload struct {
	ExternalFileID  string
	ExternalStoreID string
}

// FailurePayload is supplied for both fail_upload and fail_processing.
// Error and Stage must both be non-empty: a row in state `failed`
// always carries non-null `last_error` and `failure_stage`.
type FailurePayload struct {
	Error string
	Stage string
}

// AfterCommitHook is an optional payload capability: if a payload value
// implements it, Manager invokes AfterCommit once the guarded UPDATE has
// committed but before Transition returns. An error here produces
// FailedPostcommit — the row has already advanced, so the caller must
// drive it to failed on a later tick rather than assume it is still at
// its prior state.
//
// Production code has no operational use for this hook today; it exists
// to let the adversarial harness (internal/transition/manager_test.go)
// inject a post-commit failure deterministically without reaching into
// Manager internals.
type AfterCommitHook interface {
	AfterCommit(ctx context.Context) error
}
