package conflict

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/localsync/syncd/internal/storage/sqlite"
)

// Store wraps the conflict_log table.
type Store struct {
	store *sqlite.Store
}

// NewStore returns a Store backed by store.
func NewStore(store *sqlite.Store) *Store {
	return &Store{store: store}
}

// Record inserts a new conflict row in pending state and returns its id.
func (s *Store) Record(ctx context.Context, resourceID, resourceType string, localRequestID *int64, localData, serverData, serverVersion string, conflictType Type) (int64, error) {
	res, err := s.store.DB().ExecContext(ctx, `
		INSERT INTO conflict_log (resource_id, resource_type, local_request_id, local_data, server_data, server_version, conflict_type, resolution_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, resourceID, resourceType, localRequestID, localData, serverData, serverVersion, string(conflictType), string(ResolutionPending))
	if err != nil {
		return 0, fmt.Errorf("record conflict: %w", err)
	}
	return res.LastInsertId()
}

// ListPending returns up to limit conflicts with resolution_status=pending,
// oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, resource_id, resource_type, local_request_id, local_data, server_data,
		       server_version, conflict_type, resolution_status, resolved_at, created_at
		FROM conflict_log WHERE resolution_status = ? ORDER BY created_at ASC LIMIT ?
	`, string(ResolutionPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list_pending: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list_pending: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ByID returns the conflict row with the given id.
func (s *Store) ByID(ctx context.Context, id int64) (*Record, error) {
	row := s.store.DB().QueryRowContext(ctx, `
		SELECT id, resource_id, resource_type, local_request_id, local_data, server_data,
		       server_version, conflict_type, resolution_status, resolved_at, created_at
		FROM conflict_log WHERE id = ?
	`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("by_id: %w", err)
	}
	return r, nil
}

// Resolve sets resolution_status and resolved_at on a conflict row. Once a
// row has left resolution_status=pending, Resolve is a no-op regardless of
// the value passed: resolved_at never changes twice.
func (s *Store) Resolve(ctx context.Context, id int64, resolution ResolutionStatus, resolvedAt time.Time) error {
	existing, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.ResolutionStatus != ResolutionPending {
		return nil
	}

	_, err = s.store.DB().ExecContext(ctx, `
		UPDATE conflict_log SET resolution_status = ?, resolved_at = ?
		WHERE id = ? AND resolution_status = ?
	`, string(resolution), resolvedAt, id, string(ResolutionPending))
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var r Record
	var localRequestID *int64
	var localData, serverData, serverVersion sql.NullString
	var conflictType, resolutionStatus string
	var resolvedAt sql.NullTime

	if err := s.Scan(&r.ID, &r.ResourceID, &r.ResourceType, &localRequestID, &localData,
		&serverData, &serverVersion, &conflictType, &resolutionStatus, &resolvedAt, &r.CreatedAt); err != nil {
		return nil, err
	}

	r.LocalRequestID = localRequestID
	r.LocalData = localData.String
	r.ServerData = serverData.String
	r.ServerVersion = serverVersion.String
	r.ConflictType = Type(conflictType)
	r.ResolutionStatus = ResolutionStatus(resolutionStatus)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return &r, nil
}
