package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-desk/internal/domain"
)

// ErrVersionConflict is returned when a compare-and-swap update observed a
// stale version. Callers re-read and retry once before surfacing it.
var ErrVersionConflict = errors.New("submission version conflict")

// SubmissionFilter captures listing parameters.
type SubmissionFilter struct {
	RequesterID *string
	Kind        *domain.SubmissionKind
	Statuses    []domain.SubmissionStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SubmissionPatch describes a compare-and-swap mutation. Nil fields are
// left untouched; the set-once timestamps use COALESCE so an already
// recorded value is never overwritten.
type SubmissionPatch struct {
	Status          *domain.SubmissionStatus
	ApproverID      *string
	ApprovedAt      *time.Time
	RespondedAt     *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	UpdatedAt       time.Time
}

// EscalationCandidate joins a due submission with its category's
// escalation contact.
type EscalationCandidate struct {
	Submission domain.Submission
	Recipient  string
	DueAt      time.Time
}

// SubmissionRepository encapsulates submission persistence.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	ListWithFilter(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error)
	Update(ctx context.Context, id string, expectedVersion int, patch SubmissionPatch) (*domain.Submission, error)
	MarkEscalated(ctx context.Context, id string, expectedVersion int, kind domain.DeadlineKind, at time.Time) error
	EscalationCandidates(ctx context.Context, kind domain.DeadlineKind, dueBefore time.Time, limit int) ([]EscalationCandidate, error)
	ResolvedBetween(ctx context.Context, from, to time.Time) ([]domain.Submission, error)
}

type submissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository instantiates repository.
func NewSubmissionRepository(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepository{pool: pool}
}

const submissionColumns = `id, external_key, kind, requester_user_id, category_id, title, description,
       status, version, sla_response_due_at, sla_resolution_due_at,
       responded_at, resolved_at, approved_at, closed_at,
       escalated_response, escalated_resolution, approver_staff_id, created_at, updated_at`

func (r *submissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	const query = `
        INSERT INTO submissions (external_key, kind, requester_user_id, category_id, title, description,
            status, sla_response_due_at, sla_resolution_due_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        RETURNING id, version`
	return r.pool.QueryRow(ctx, query,
		sub.ExternalKey,
		sub.Kind,
		sub.RequesterID,
		sub.CategoryID,
		sub.Title,
		sub.Description,
		sub.Status,
		sub.SLAResponseDueAt,
		sub.SLAResolutionDueAt,
		sub.CreatedAt,
	).Scan(&sub.ID, &sub.Version)
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id=$1`
	var sub domain.Submission
	if err := r.pool.QueryRow(ctx, query, id).Scan(scanTargets(&sub)...); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) ListWithFilter(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error) {
	base := `SELECT ` + submissionColumns + ` FROM submissions`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_user_id=$%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// Update applies a compare-and-swap mutation keyed on the version column.
// Zero rows affected means either a missing row or a stale version; the
// follow-up existence check distinguishes the two.
func (r *submissionRepository) Update(ctx context.Context, id string, expectedVersion int, patch SubmissionPatch) (*domain.Submission, error) {
	sets := []string{"version=version+1"}
	args := []any{}

	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.ApproverID != nil {
		args = append(args, *patch.ApproverID)
		sets = append(sets, fmt.Sprintf("approver_staff_id=$%d", len(args)))
	}
	if patch.ApprovedAt != nil {
		args = append(args, *patch.ApprovedAt)
		sets = append(sets, fmt.Sprintf("approved_at=COALESCE(approved_at, $%d)", len(args)))
	}
	if patch.RespondedAt != nil {
		args = append(args, *patch.RespondedAt)
		sets = append(sets, fmt.Sprintf("responded_at=COALESCE(responded_at, $%d)", len(args)))
	}
	if patch.ResolvedAt != nil {
		args = append(args, *patch.ResolvedAt)
		sets = append(sets, fmt.Sprintf("resolved_at=COALESCE(resolved_at, $%d)", len(args)))
	}
	if patch.ClosedAt != nil {
		args = append(args, *patch.ClosedAt)
		sets = append(sets, fmt.Sprintf("closed_at=COALESCE(closed_at, $%d)", len(args)))
	}
	if patch.ResponseDueAt != nil {
		args = append(args, *patch.ResponseDueAt)
		sets = append(sets, fmt.Sprintf("sla_response_due_at=COALESCE(sla_response_due_at, $%d)", len(args)))
	}
	if patch.ResolutionDueAt != nil {
		args = append(args, *patch.ResolutionDueAt)
		sets = append(sets, fmt.Sprintf("sla_resolution_due_at=COALESCE(sla_resolution_due_at, $%d)", len(args)))
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	args = append(args, updatedAt)
	sets = append(sets, fmt.Sprintf("updated_at=$%d", len(args)))

	args = append(args, id)
	idPlaceholder := len(args)
	args = append(args, expectedVersion)
	versionPlaceholder := len(args)

	query := fmt.Sprintf(`UPDATE submissions SET %s WHERE id=$%d AND version=$%d RETURNING `+submissionColumns,
		strings.Join(sets, ", "), idPlaceholder, versionPlaceholder)

	var sub domain.Submission
	if err := r.pool.QueryRow(ctx, query, args...).Scan(scanTargets(&sub)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, err
	}
	return &sub, nil
}

// MarkEscalated flips one escalation flag under the same version
// discipline. Flags only go false to true.
func (r *submissionRepository) MarkEscalated(ctx context.Context, id string, expectedVersion int, kind domain.DeadlineKind, at time.Time) error {
	column := "escalated_resolution"
	if kind == domain.DeadlineResponse {
		column = "escalated_response"
	}
	query := fmt.Sprintf(`
        UPDATE submissions SET %s=TRUE, version=version+1, updated_at=$1
        WHERE id=$2 AND version=$3`, column)
	cmd, err := r.pool.Exec(ctx, query, at, id, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// EscalationCandidates returns open submissions whose deadline of the given
// kind falls at or before dueBefore and whose flag is still unset, joined
// with the category escalation contact and ordered by due date.
func (r *submissionRepository) EscalationCandidates(ctx context.Context, kind domain.DeadlineKind, dueBefore time.Time, limit int) ([]EscalationCandidate, error) {
	dueColumn, flagColumn := "sla_resolution_due_at", "escalated_resolution"
	if kind == domain.DeadlineResponse {
		dueColumn, flagColumn = "sla_response_due_at", "escalated_response"
	}
	if limit <= 0 {
		limit = 200
	}

	query := fmt.Sprintf(`
        SELECT %s, c.escalation_recipient, s.%s
        FROM submissions s
        JOIN categories c ON c.id = s.category_id
        WHERE s.status = ANY($1)
          AND s.%s IS NOT NULL
          AND s.%s <= $2
          AND s.%s = FALSE
        ORDER BY s.%s ASC
        LIMIT $3`, prefixedSubmissionColumns("s"), dueColumn, dueColumn, dueColumn, flagColumn, dueColumn)

	statuses := make([]string, 0)
	for _, status := range domain.OpenStatuses() {
		statuses = append(statuses, string(status))
	}

	rows, err := r.pool.Query(ctx, query, statuses, dueBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EscalationCandidate
	for rows.Next() {
		var candidate EscalationCandidate
		targets := scanTargets(&candidate.Submission)
		targets = append(targets, &candidate.Recipient, &candidate.DueAt)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	return result, rows.Err()
}

func (r *submissionRepository) ResolvedBetween(ctx context.Context, from, to time.Time) ([]domain.Submission, error) {
	query := `SELECT ` + submissionColumns + `
        FROM submissions
        WHERE resolved_at IS NOT NULL AND resolved_at >= $1 AND resolved_at <= $2
        ORDER BY resolved_at ASC`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func (r *submissionRepository) classifyMiss(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM submissions WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrVersionConflict
	}
	return pgx.ErrNoRows
}

func prefixedSubmissionColumns(alias string) string {
	cols := strings.Split(submissionColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanTargets(sub *domain.Submission) []any {
	return []any{
		&sub.ID,
		&sub.ExternalKey,
		&sub.Kind,
		&sub.RequesterID,
		&sub.CategoryID,
		&sub.Title,
		&sub.Description,
		&sub.Status,
		&sub.Version,
		&sub.SLAResponseDueAt,
		&sub.SLAResolutionDueAt,
		&sub.RespondedAt,
		&sub.ResolvedAt,
		&sub.ApprovedAt,
		&sub.ClosedAt,
		&sub.EscalatedResponse,
		&sub.EscalatedResolution,
		&sub.ApproverID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	}
}

func scanSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	var result []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(scanTargets(&sub)...); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}
