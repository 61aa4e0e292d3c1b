package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// CategoryRepository reads category SLA configuration.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	ListActive(ctx context.Context) ([]domain.Category, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

const categoryColumns = `id, name, sla_response_hours, sla_resolution_hours, escalation_recipient, is_active, created_at, updated_at`

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id=$1`
	var category domain.Category
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.SLAResponseHours,
		&category.SLAResolutionHours,
		&category.EscalationRecipient,
		&category.Active,
		&category.CreatedAt,
		&category.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListActive(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE is_active=TRUE ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCategories(rows)
}

func scanCategories(rows pgx.Rows) ([]domain.Category, error) {
	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.SLAResponseHours,
			&category.SLAResolutionHours,
			&category.EscalationRecipient,
			&category.Active,
			&category.CreatedAt,
			&category.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
