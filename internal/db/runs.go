package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/textual/internal/errors"
)

// Run kinds.
const (
	KindText         = "text"
	KindCSV          = "csv"
	KindConversation = "conversation"
	KindMarkdown     = "markdown"
	KindTranscript   = "transcript"
	KindUnredact     = "unredact"
)

// Run is one journaled redaction call. It records shape and counts only,
// never the text that was sent or returned.
type Run struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Source       *string        `json:"source,omitempty"`
	Fragments    int            `json:"fragments"`
	Groups       int            `json:"groups"`
	Replacements int            `json:"replacements"`
	Usage        int            `json:"usage"`
	Labels       map[string]int `json:"labels,omitempty"`
	CreatedAt    int64          `json:"created_at"`
}

// ErrUniqueConstraint is returned when an insert reuses a run id.
var ErrUniqueConstraint = &errors.TextualError{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

const runColumns = `id, kind, source, fragments, group_count, replacements, usage, labels_json, created_at`

// InsertRun stores a new run.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	var labelsJSON sql.NullString
	if len(r.Labels) > 0 {
		data, err := json.Marshal(r.Labels)
		if err != nil {
			return errors.NewInternal(err)
		}
		labelsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Kind, toNullString(r.Source),
		r.Fragments, r.Groups, r.Replacements, r.Usage,
		labelsJSON, r.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both UNIQUE and PRIMARY KEY collisions this way
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetRun retrieves a run by its ULID.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns runs newest first. An empty kind lists every kind.
func ListRuns(ctx context.Context, db *sql.DB, kind string, limit, offset int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	// id breaks ties inside the same second; ULIDs sort by time
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// CountRuns counts runs of a kind. An empty kind counts every kind.
func CountRuns(ctx context.Context, db *sql.DB, kind string) (int, error) {
	query := `SELECT COUNT(*) FROM runs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// PurgeRuns deletes runs created before the given unix time and returns how
// many were removed.
func PurgeRuns(ctx context.Context, db *sql.DB, before int64) (int, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run.
func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		source     sql.NullString
		labelsJSON sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.Kind, &source,
		&r.Fragments, &r.Groups, &r.Replacements, &r.Usage,
		&labelsJSON, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Source = fromNullString(source)
	if labelsJSON.Valid && labelsJSON.String != "" {
		if err := json.Unmarshal([]byte(labelsJSON.String), &r.Labels); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
