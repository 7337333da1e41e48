package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DiscoverOrUpdate upserts a scanned path into the files table as
// untracked. It is idempotent: calling it twice with the same path and
// content hash is a no-op beyond refreshing mtime and metadata_json.
//
// If an existing row has a different content hash, this call changes
// nothing; the scanner's content-change path is MarkStaleAndSupersede.
// The files table holds exactly one row per path.
func (s *Store) DiscoverOrUpdate(ctx context.Context, path, contentHash string, mtime time.Time, metadataJSON string) error {
	return withBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO files (path, content_hash, mtime, metadata_json, state, version, updated_at, stale)
			VALUES (?, ?, ?, ?, ?, 0, ?, 0)
			ON CONFLICT(path) DO UPDATE SET
				mtime = excluded.mtime,
				metadata_json = excluded.metadata_json
			WHERE files.content_hash = excluded.content_hash
		`,
			path, contentHash, mtime.Unix(), metadataJSON, string(StateUntracked), time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("discover or update %s: %w", path, err)
		}
		return nil
	})
}

// MarkStaleAndSupersede is the scanner's content-change path. Because
// files is keyed by path, the superseding row overwrites the old one in
// place, in a single transaction: content_hash, mtime and metadata_json
// take the new values, state returns to untracked, version restarts at
// 0, and stale ends cleared. No stale copy of the old row is kept;
// last_error, failure_stage and the external ids keep their old values.
func (s *Store) MarkStaleAndSupersede(ctx context.Context, path, newContentHash string, mtime time.Time, metadataJSON string) error {
	return withBusyRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("supersede %s: begin tx: %w", path, err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `UPDATE files SET stale = 1 WHERE path = ?`, path); err != nil {
			return fmt.Errorf("supersede %s: mark stale: %w", path, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, content_hash, mtime, metadata_json, state, version, updated_at, stale)
			VALUES (?, ?, ?, ?, ?, 0, ?, 0)
			ON CONFLICT(path) DO UPDATE SET
				content_hash = excluded.content_hash,
				mtime = excluded.mtime,
				metadata_json = excluded.metadata_json,
				state = excluded.state,
				version = 0,
				stale = 0
		`, path, newContentHash, mtime.Unix(), metadataJSON, string(StateUntracked), time.Now().Unix()); err != nil {
			return fmt.Errorf("supersede %s: insert replacement: %w", path, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("supersede %s: commit: %w", path, err)
		}
		return nil
	})
}

// ReadState returns the current state and version for path, read fresh
// from the store (never cached), as the transition manager requires.
func (s *Store) ReadState(ctx context.Context, path string) (FileState, int64, error) {
	var state string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT state, version FROM files WHERE path = ?`, path).Scan(&state, &version)
	if err != nil {
		return "", 0, fmt.Errorf("read state %s: %w", path, err)
	}
	return FileState(state), version, nil
}

// ReadFile returns the full file record for path.
func (s *Store) ReadFile(ctx context.Context, path string) (FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, content_hash, mtime, metadata_json, enrichment_json, state, version,
		       updated_at, COALESCE(last_error, ''), COALESCE(failure_stage, ''),
		       COALESCE(external_file_id, ''), COALESCE(external_store_id, ''), stale
		FROM files WHERE path = ?
	`, path)
	return scanFileRow(row)
}

// GuardedUpdateFields carries the new field values applied by a
// successful guarded transition. Zero-value fields (empty string) leave
// the corresponding column untouched.
type GuardedUpdateFields struct {
	LastError       string
	FailureStage    string
	ExternalFileID  string
	ExternalStoreID string
}

// GuardedUpdate performs the single OCC-guarded UPDATE backing every
// transition: `SET state=?, version=version+1, updated_at=? [,...]
// WHERE path=? AND state=? AND version=?`. It returns the number of rows
// affected — 0 means some other writer already advanced the row past
// (expectedState, expectedVersion), and the caller must treat this as a
// stale-transition rejection rather than retry.
//
// Callers are responsible for wrapping this in their own
// immediate-transaction boundary when it must be atomic with other
// writes (the transition manager does this explicitly — see
// internal/transition).
func (s *Store) GuardedUpdate(ctx context.Context, tx *sql.Tx, path string, expectedState FileState, expectedVersion int64, newState FileState, fields GuardedUpdateFields) (int64, error) {
	exec := s.db.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}

	result, err := exec(ctx, `
		UPDATE files SET
			state = ?,
			version = version + 1,
			updated_at = ?,
			last_error = CASE WHEN ? != '' THEN ? ELSE last_error END,
			failure_stage = CASE WHEN ? != '' THEN ? ELSE failure_stage END,
			external_file_id = CASE WHEN ? != '' THEN ? ELSE external_file_id END,
			external_store_id = CASE WHEN ? != '' THEN ? ELSE external_store_id END
		WHERE path = ? AND state = ? AND version = ?
	`,
		string(newState), time.Now().Unix(),
		fields.LastError, fields.LastError,
		fields.FailureStage, fields.FailureStage,
		fields.ExternalFileID, fields.ExternalFileID,
		fields.ExternalStoreID, fields.ExternalStoreID,
		path, string(expectedState), expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("guarded update %s: %w", path, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("guarded update %s: rows affected: %w", path, err)
	}
	return rows, nil
}

// BeginImmediate starts a write-reserving transaction. For every path
// other than ":memory:", the DSN opened in Open carries _txlock=immediate,
// so every BeginTx call already issues a "BEGIN IMMEDIATE" rather than
// sqlite3's default deferred BEGIN; an in-memory store keeps the default
// deferred BEGIN. This
// wrapper exists so call sites read as "begin an immediate transaction"
// rather than a bare BeginTx.
func (s *Store) BeginImmediate(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin immediate: %w", err)
	}
	return tx, nil
}

// ListEligible returns up to limit rows whose state matches, ordered by
// updated_at ascending (oldest first) so the worker pool makes forward
// progress across the whole corpus rather than starving older rows.
func (s *Store) ListEligible(ctx context.Context, state FileState, limit int) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, content_hash, mtime, metadata_json, enrichment_json, state, version,
		       updated_at, COALESCE(last_error, ''), COALESCE(failure_stage, ''),
		       COALESCE(external_file_id, ''), COALESCE(external_store_id, ''), stale
		FROM files
		WHERE state = ? AND stale = 0
		ORDER BY updated_at ASC
		LIMIT ?
	`, string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible %s: %w", state, err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible %s: %w", state, err)
	}
	return out, nil
}

// ListEligibleStates returns up to limit rows whose state is any of
// states, ordered oldest-first. Used by the worker pool to claim a
// mixed batch across {untracked, uploading, processing} in one query.
func (s *Store) ListEligibleStates(ctx context.Context, states []FileState, limit int) ([]FileRecord, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(states)*2-1)
	args := make([]any, 0, len(states)+1)
	for i, st := range states {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, string(st))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT path, content_hash, mtime, metadata_json, enrichment_json, state, version,
		       updated_at, COALESCE(last_error, ''), COALESCE(failure_stage, ''),
		       COALESCE(external_file_id, ''), COALESCE(external_store_id, ''), stale
		FROM files
		WHERE state IN (%s) AND stale = 0
		ORDER BY updated_at ASC
		LIMIT ?
	`, string(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list eligible states: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		rec, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible states: %w", err)
	}
	return out, nil
}

func scanFileRow(row *sql.Row) (FileRecord, error) {
	var rec FileRecord
	var mtime, updatedAt int64
	var state string
	if err := row.Scan(
		&rec.Path, &rec.ContentHash, &mtime, &rec.MetadataJSON, &rec.EnrichmentJSON,
		&state, &rec.Version, &updatedAt, &rec.LastError, &rec.FailureStage,
		&rec.ExternalFileID, &rec.ExternalStoreID, &rec.Stale,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileRecord{}, err
		}
		return FileRecord{}, fmt.Errorf("scan file row: %w", err)
	}
	rec.State = FileState(state)
	rec.Mtime = time.Unix(mtime, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

func scanFileRows(rows *sql.Rows) (FileRecord, error) {
	var rec FileRecord
	var mtime, updatedAt int64
	var state string
	if err := rows.Scan(
		&rec.Path, &rec.ContentHash, &mtime, &rec.MetadataJSON, &rec.EnrichmentJSON,
		&state, &rec.Version, &updatedAt, &rec.LastError, &rec.FailureStage,
		&rec.ExternalFileID, &rec.ExternalStoreID, &rec.Stale,
	); err != nil {
		return FileRecord{}, fmt.Errorf("scan file row: %w", err)
	}
	rec.State = FileState(state)
	rec.Mtime = time.Unix(mtime, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}
