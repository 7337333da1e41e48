package workerpool

import (
	"context"
	"encoding/json"
	"os"
	"time"
)

// Checkpointer persists enough state to resume a paused pool later.
// FileCheckpointer is the only implementation; tests can substitute a
// no-op.
type Checkpointer interface {
	Save(ctx context.Context, reason string) error
}

// checkpointDoc is the on-disk representation written by
// FileCheckpointer.
type checkpointDoc struct {
	Reason    string    `json:"reason"`
	PausedAt  time.Time `json:"paused_at"`
}

// FileCheckpointer writes a small JSON marker to Path recording why the
// pool paused and when. Nothing reads the marker back;
// `ingest upload --resume` removes it with ClearCheckpoint before the
// pool restarts.
type FileCheckpointer struct {
	Path string
}

func (c FileCheckpointer) Save(ctx context.Context, reason string) error {
	doc := checkpointDoc{Reason: reason, PausedAt: time.Now()}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path, b, 0o644)
}

// ClearCheckpoint removes the checkpoint file at path, if present.
// `ingest upload --resume` calls this before restarting the pool.
func ClearCheckpoint(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
