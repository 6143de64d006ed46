// Package status persists the terminal processing status of content items.
// The content row itself is owned by the content service; this repo only flips
// the status column, which makes the update safe to repeat on redelivery.
package status

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	SetStatus(ctx context.Context, contentID, status string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) SetStatus(ctx context.Context, contentID, status string) error {
	query := `UPDATE contents SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, status, contentID)
	if err != nil {
		return fmt.Errorf("set status %s for content %s: %w", status, contentID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set status for content %s: no such content", contentID)
	}
	return nil
}
