package store

import (
	"context"
	"errors"
	"fmt"

	"equity_valuation/pkg/core/pipeline"

	"github.com/jackc/pgx/v5"
)

// Schema assumption (cases are inputs only; results are never written back):
// CREATE TABLE IF NOT EXISTS valuation_cases (
//   name       TEXT PRIMARY KEY,
//   case_json  JSONB NOT NULL,
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );

// Queryer is the subset of *pgxpool.Pool the repository needs.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CaseRepo reads named valuation cases from Postgres.
type CaseRepo struct {
	db Queryer
}

// NewCaseRepo creates a repository on db (usually GetPool()).
func NewCaseRepo(db Queryer) *CaseRepo {
	return &CaseRepo{db: db}
}

// LoadCase implements pipeline.CaseSource.
func (r *CaseRepo) LoadCase(ctx context.Context, name string) (*pipeline.Case, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT case_json FROM valuation_cases WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrCaseNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", name, err)
	}

	c, err := pipeline.ParseCase(raw, "json")
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", name, err)
	}
	return c, nil
}

// ListCases returns the stored case names in alphabetical order.
func (r *CaseRepo) ListCases(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	rows, err := r.db.Query(ctx, `SELECT name FROM valuation_cases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan case names: %w", err)
	}
	return names, nil
}
