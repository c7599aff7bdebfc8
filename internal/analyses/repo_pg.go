package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-ats/internal/scoring"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, status, source, file_name, storage_key, resume_text, job_description,
       result, error_code, error_message, created_at, updated_at, started_at, completed_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, status, source, file_name, storage_key, resume_text, job_description, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.Status,
		a.Source,
		nullString(a.FileName),
		nullString(a.StorageKey),
		a.ResumeText,
		a.JobDescription,
		a.CreatedAt,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", a.ID, err)
	}
	return nil
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("get analysis %s: %w", analysisID, err)
	}
	return a, nil
}

func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, error_code = NULL, error_message = NULL, completed_at = NULL, started_at = $3, updated_at = $3
WHERE id = $1`
	return r.exec(ctx, analysisID, query, analysisID, StatusProcessing, startedAt)
}

func (r *PGRepo) Complete(ctx context.Context, analysisID string, result scoring.AnalysisResult, completedAt time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	const query = `
UPDATE analyses
SET status = $2, result = $3, error_code = NULL, error_message = NULL, completed_at = $4, updated_at = $4
WHERE id = $1`
	return r.exec(ctx, analysisID, query, analysisID, StatusCompleted, payload, completedAt)
}

func (r *PGRepo) Fail(ctx context.Context, analysisID, code, message string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, error_code = $3, error_message = $4, completed_at = $5, updated_at = $5
WHERE id = $1`
	return r.exec(ctx, analysisID, query, analysisID, StatusFailed, code, message, completedAt)
}

func (r *PGRepo) exec(ctx context.Context, analysisID, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update analysis %s: %w", analysisID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update analysis %s: %w", analysisID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if offset < 0 {
		offset = 0
	}
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limitArg, offset)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (Analysis, error) {
	var (
		a            Analysis
		fileName     sql.NullString
		storageKey   sql.NullString
		result       []byte
		errorCode    sql.NullString
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Status,
		&a.Source,
		&fileName,
		&storageKey,
		&a.ResumeText,
		&a.JobDescription,
		&result,
		&errorCode,
		&errorMessage,
		&a.CreatedAt,
		&a.UpdatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.FileName = fileName.String
	a.StorageKey = storageKey.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		a.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if len(result) > 0 {
		var res scoring.AnalysisResult
		if err := json.Unmarshal(result, &res); err != nil {
			return Analysis{}, fmt.Errorf("decode result: %w", err)
		}
		a.Result = &res
	}
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
