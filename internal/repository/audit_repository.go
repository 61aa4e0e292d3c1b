package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// AuditRepository stores append-only audit entries.
type AuditRepository interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
	ListBySubmission(ctx context.Context, submissionID string, limit, offset int) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	const query = `
        INSERT INTO submission_audit (submission_id, changed_by_type, changed_by_id, action, old_value, new_value, note)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		record.SubmissionID,
		record.ChangedByType,
		record.ChangedByID,
		record.Action,
		record.OldValue,
		record.NewValue,
		record.Note,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *auditRepository) ListBySubmission(ctx context.Context, submissionID string, limit, offset int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, submission_id, changed_by_type, changed_by_id, action, old_value, new_value, note, created_at
        FROM submission_audit WHERE submission_id=$1
        ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, submissionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.SubmissionID,
			&record.ChangedByType,
			&record.ChangedByID,
			&record.Action,
			&record.OldValue,
			&record.NewValue,
			&record.Note,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
