package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ─── Nullable Helpers ────────────────────────────────────────────────────────

// NullString converts an optional string into a value for storage.
func NullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// NullTime converts an optional time into a UTC value for storage.
func NullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

// StringPtr returns nil for NULL columns.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// TimePtr returns nil for NULL columns.
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// ─── Query Helpers ───────────────────────────────────────────────────────────

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// exists checks if a query returns a row.
func (s *Store) exists(ctx context.Context, q queryer, query string, args ...interface{}) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, s.rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
