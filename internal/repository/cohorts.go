package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/htsget-drs-server/internal/domain"
)

// ListCohorts returns all cohort ids.
func (r *Repository) ListCohorts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM cohorts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing cohorts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning cohort: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCohort returns a cohort by id.
func (r *Repository) GetCohort(ctx context.Context, id string) (*domain.Cohort, error) {
	var cohort domain.Cohort
	err := r.db.QueryRowContext(ctx, `SELECT id FROM cohorts WHERE id = ?`, id).Scan(&cohort.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cohort %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting cohort: %w", err)
	}
	return &cohort, nil
}

// CreateCohort inserts a cohort; creating an existing cohort is a no-op.
func (r *Repository) CreateCohort(ctx context.Context, id string) (*domain.Cohort, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO cohorts (id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("creating cohort: %w", err)
	}
	return &domain.Cohort{ID: id}, nil
}

// DeleteCohort removes a cohort and, via cascade, every DRS object in it.
func (r *Repository) DeleteCohort(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cohorts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting cohort: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("cohort %s: %w", id, domain.ErrNotFound)
	}
	r.log.WithField("cohort", id).Info("Cohort deleted")
	return nil
}
