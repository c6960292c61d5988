package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vita-ops/internal/domain"
)

// IssueRepository define el contrato de persistencia para issues.
type IssueRepository interface {
	Create(ctx context.Context, issue domain.Issue) error
	GetByID(ctx context.Context, issueID string) (*domain.Issue, error)
	// ListRecent devuelve issues (abiertos y resueltos) ordenados por su
	// ultimo toque: max(resolved_at, opened_at) descendente.
	ListRecent(ctx context.Context, limit int) ([]domain.Issue, error)
	// ListOpen devuelve issues abiertos, el mas recientemente abierto primero.
	ListOpen(ctx context.Context, limit int) ([]domain.Issue, error)
	// FindLatestOpen devuelve el issue abierto mas reciente o nil si no hay.
	FindLatestOpen(ctx context.Context) (*domain.Issue, error)
	// MarkResolved cierra el issue con su resumen. Update condicional simple;
	// resoluciones concurrentes del mismo issue no se serializan.
	MarkResolved(ctx context.Context, issueID string, resolvedAt int64, summary string) error
}

type PgIssueRepository struct {
	pool *pgxpool.Pool
}

func NewPgIssueRepository(pool *pgxpool.Pool) *PgIssueRepository {
	return &PgIssueRepository{pool: pool}
}

const issueColumns = `issue_id, title, source, category, severity, status, opened_at, resolved_at, resolution_summary`

func (r *PgIssueRepository) Create(ctx context.Context, issue domain.Issue) error {
	const query = `
		INSERT INTO issues (issue_id, title, source, category, severity, status, opened_at, resolved_at, resolution_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		issue.IssueID,
		issue.Title,
		issue.Source,
		issue.Category,
		issue.Severity,
		issue.Status,
		issue.OpenedAt,
		issue.ResolvedAt,
		issue.ResolutionSummary,
	)
	return err
}

func (r *PgIssueRepository) GetByID(ctx context.Context, issueID string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE issue_id = $1`

	row := r.pool.QueryRow(ctx, query, issueID)
	issue, err := scanIssue(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *PgIssueRepository) ListRecent(ctx context.Context, limit int) ([]domain.Issue, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
		SELECT ` + issueColumns + `
		FROM issues
		ORDER BY GREATEST(resolved_at, opened_at) DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIssues(rows)
}

func (r *PgIssueRepository) ListOpen(ctx context.Context, limit int) ([]domain.Issue, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + issueColumns + `
		FROM issues
		WHERE status = $1
		ORDER BY opened_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, domain.IssueStatusOpen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIssues(rows)
}

func (r *PgIssueRepository) FindLatestOpen(ctx context.Context) (*domain.Issue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM issues
		WHERE status = $1
		ORDER BY opened_at DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, domain.IssueStatusOpen)
	issue, err := scanIssue(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *PgIssueRepository) MarkResolved(ctx context.Context, issueID string, resolvedAt int64, summary string) error {
	const query = `
		UPDATE issues
		SET status = $2, resolved_at = $3, resolution_summary = $4
		WHERE issue_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, issueID, domain.IssueStatusResolved, resolvedAt, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("issue %s not found", issueID)
	}
	return nil
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var i domain.Issue
	err := row.Scan(
		&i.IssueID,
		&i.Title,
		&i.Source,
		&i.Category,
		&i.Severity,
		&i.Status,
		&i.OpenedAt,
		&i.ResolvedAt,
		&i.ResolutionSummary,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var issues []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return issues, nil
}
