package indexadapter

import "context"

// PollPhase is the external operation's reported lifecycle phase. The
// pipeline polls the same operation handle across both the uploading
// and processing states; PollUploadComplete marks the first milestone,
// PollReady the second.
type PollPhase string

const (
	PollPending        PollPhase = "pending"
	PollUploadComplete PollPhase = "upload_complete"
	PollReady          PollPhase = "ready"
	PollFailed         PollPhase = "failed"
)

// PollResult is the outcome of one poll(operation_handle) call.
type PollResult struct {
	Phase PollPhase

	// ExternalFileID and ExternalStoreID are populated when Phase is
	// PollReady.
	ExternalFileID  string
	ExternalStoreID string

	// Reason is populated when Phase is PollFailed.
	Reason string
}

// GroundingChunk is one retrieved passage, as returned by Query.
type GroundingChunk struct {
	FileID       string
	PassageID    string
	PassageText  string
	MetadataJSON string
}

// QueryFilters narrows a Query call by file-path-derived metadata.
type QueryFilters struct {
	Course string
	Series string
}

// Adapter is the three-operation facade the core depends on. Concrete
// transport bindings are out of scope for this interface; callers only
// need upload/poll/query semantics and the failure classes in errors.go
// to be preserved.
type Adapter interface {
	// Upload submits localPath for indexing and returns immediately
	// with an operation handle; the remote operation may complete
	// asynchronously. metadataJSON is passed through to the remote
	// service unmodified.
	Upload(ctx context.Context, localPath, contentHash, metadataJSON string) (operationHandle string, err error)

	// Poll reports the current phase of a previously submitted
	// operation.
	Poll(ctx context.Context, operationHandle string) (PollResult, error)

	// Query retrieves up to topK grounding chunks matching queryText,
	// scoped to storeIDs and optionally narrowed by filters.
	Query(ctx context.Context, storeIDs []string, queryText string, filters QueryFilters, topK int) ([]GroundingChunk, error)
}
