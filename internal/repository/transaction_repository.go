package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// TransactionRepository stores append-only loan sub-events.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	ListBySubmission(ctx context.Context, submissionID string) ([]domain.Transaction, error)
	FirstOfKind(ctx context.Context, submissionID string, kind domain.TransactionKind) (*domain.Transaction, error)
}

type transactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository builds repository.
func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &transactionRepository{pool: pool}
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	const query = `
        INSERT INTO submission_transactions (submission_id, kind, processed_by_staff_id, note, processed_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		tx.SubmissionID,
		tx.Kind,
		tx.ProcessedBy,
		tx.Note,
		tx.ProcessedAt,
	).Scan(&tx.ID)
}

func (r *transactionRepository) ListBySubmission(ctx context.Context, submissionID string) ([]domain.Transaction, error) {
	const query = `
        SELECT id, submission_id, kind, processed_by_staff_id, note, processed_at
        FROM submission_transactions WHERE submission_id=$1 ORDER BY processed_at ASC`
	rows, err := r.pool.Query(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.SubmissionID,
			&tx.Kind,
			&tx.ProcessedBy,
			&tx.Note,
			&tx.ProcessedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// FirstOfKind fetches the earliest transaction of one kind via the
// (submission_id, kind, processed_at) index instead of folding in memory.
func (r *transactionRepository) FirstOfKind(ctx context.Context, submissionID string, kind domain.TransactionKind) (*domain.Transaction, error) {
	const query = `
        SELECT id, submission_id, kind, processed_by_staff_id, note, processed_at
        FROM submission_transactions
        WHERE submission_id=$1 AND kind=$2
        ORDER BY processed_at ASC LIMIT 1`
	var tx domain.Transaction
	err := r.pool.QueryRow(ctx, query, submissionID, kind).Scan(
		&tx.ID,
		&tx.SubmissionID,
		&tx.Kind,
		&tx.ProcessedBy,
		&tx.Note,
		&tx.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}
