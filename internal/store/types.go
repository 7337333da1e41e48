package store

import "time"

// FileState is the closed enum of lifecycle states a file record can be
// in. The check constraint on files.state in schema.sql must stay in
// sync with this list.
type FileState string

const (
	StateUntracked  FileState = "untracked"
	StateUploading  FileState = "uploading"
	StateProcessing FileState = "processing"
	StateIndexed    FileState = "indexed"
	StateFailed     FileState = "failed"
)

// IsTerminal reports whether no automated transition leaves this state.
func (s FileState) IsTerminal() bool {
	return s == StateIndexed || s == StateFailed
}

// FileRecord is one row of the files table: the durable lifecycle state
// for a single discovered path.
type FileRecord struct {
	Path             string
	ContentHash      string
	Mtime            time.Time
	MetadataJSON     string // scanner-derived: category, course, series, episode, ...
	EnrichmentJSON   string // enricher-derived, optional, opaque to the core
	State            FileState
	Version          int64
	UpdatedAt        time.Time
	LastError        string
	FailureStage     string
	ExternalFileID   string
	ExternalStoreID  string
	Stale            bool
}

// PassageRecord is one row of the passages table: a unique (file,
// content-hash-of-text) passage used for stable search citations.
type PassageRecord struct {
	PassageID   string
	FileID      string
	ContentHash string
	PassageText string
	Stale       bool
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// EventType is the closed enum of session event kinds.
type EventType string

const (
	EventSearch     EventType = "search"
	EventView       EventType = "view"
	EventSynthesize EventType = "synthesize"
	EventNote       EventType = "note"
	EventError      EventType = "error"
)

// Session is one row of the sessions table.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionEvent is one append-only row of the session_events table.
type SessionEvent struct {
	ID          int64
	SessionID   string
	EventType   EventType
	PayloadJSON string
	CreatedAt   time.Time
}

// ErrStaleTransition reports that a guarded UPDATE affected zero rows
// (GuardedUpdate returned a rowcount of 0): some other writer already
// advanced the row past the expected (state, version) pair. The
// transition manager returns it; GuardedUpdate itself does not.
type ErrStaleTransition struct {
	Path            string
	ExpectedState   FileState
	ExpectedVersion int64
}

func (e *ErrStaleTransition) Error() string {
	return "stale transition: " + e.Path + " not at " + string(e.ExpectedState)
}
