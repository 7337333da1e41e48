package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// passageNamespace is the fixed UUID namespace used to derive
// deterministic passage identifiers. Using a UUIDv5-style name-based
// derivation means identical passage text from an identical file
// produces an identical identifier across runs and re-indexing.
var passageNamespace = uuid.MustParse("6f2c9d1e-6b8a-4b8e-9b7a-9a6f2a7d9b10")

// PassageID computes the deterministic identifier for a grounding chunk
// from its owning file identifier and the SHA-256 of its text.
func PassageID(fileID, passageText string) string {
	sum := sha256.Sum256([]byte(passageText))
	name := fileID + ":" + hex.EncodeToString(sum[:])
	return uuid.NewSHA1(passageNamespace, []byte(name)).String()
}

// UpsertPassage inserts a passage record, or refreshes last_seen_at and
// clears stale if one already exists for this identifier. Passage
// records are never deleted; a content-hash change on the same file
// produces a new PassageID and the old record is left in place, marked
// stale by MarkPassagesStaleExcept.
func (s *Store) UpsertPassage(ctx context.Context, p PassageRecord) error {
	now := time.Now().Unix()
	return withBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO passages (passage_id, file_id, content_hash, passage_text, stale, created_at, last_seen_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT(passage_id) DO UPDATE SET
				last_seen_at = excluded.last_seen_at,
				stale = 0
		`, p.PassageID, p.FileID, p.ContentHash, p.PassageText, now, now)
		if err != nil {
			return fmt.Errorf("upsert passage %s: %w", p.PassageID, err)
		}
		return nil
	})
}

// ReadPassage returns a passage record by id.
func (s *Store) ReadPassage(ctx context.Context, passageID string) (PassageRecord, error) {
	var p PassageRecord
	var createdAt, lastSeenAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT passage_id, file_id, content_hash, passage_text, stale, created_at, last_seen_at
		FROM passages WHERE passage_id = ?
	`, passageID).Scan(&p.PassageID, &p.FileID, &p.ContentHash, &p.PassageText, &p.Stale, &createdAt, &lastSeenAt)
	if err != nil {
		return PassageRecord{}, fmt.Errorf("read passage %s: %w", passageID, err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.LastSeenAt = time.Unix(lastSeenAt, 0).UTC()
	return p, nil
}

// MarkPassagesStaleExcept marks every non-stale passage for fileID whose
// id is not in keepIDs as stale. Used after a re-index so superseded
// passage text is flagged without being deleted, preserving session
// replay stability.
func (s *Store) MarkPassagesStaleExcept(ctx context.Context, fileID string, keepIDs []string) error {
	if len(keepIDs) == 0 {
		_, err := s.db.ExecContext(ctx, `UPDATE passages SET stale = 1 WHERE file_id = ?`, fileID)
		if err != nil {
			return fmt.Errorf("mark passages stale for %s: %w", fileID, err)
		}
		return nil
	}

	placeholders := make([]byte, 0, len(keepIDs)*2-1)
	args := make([]any, 0, len(keepIDs)+1)
	args = append(args, fileID)
	for i, id := range keepIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE passages SET stale = 1
		WHERE file_id = ? AND passage_id NOT IN (%s)
	`, string(placeholders))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark passages stale for %s: %w", fileID, err)
	}
	return nil
}
