// Package postgres implements rbd.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/rbd"
)

// PGStore implements rbd.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

var _ rbd.Store = (*PGStore)(nil)

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Connect opens a pool for databaseURL and checks that the server answers.
// maxConns of zero keeps the pgx default.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("rbd: parse database url: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("rbd: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rbd: database unreachable: %w", err)
	}
	return pool, nil
}

// edit loads the diagram inside a transaction, holding a row lock on it,
// and commits only if fn succeeds. fn validates the change against the
// loaded diagram before writing it through tx.
func (s *PGStore) edit(ctx context.Context, diagramID string, fn func(tx pgx.Tx, d *rbd.Diagram) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("rbd: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM rbd_diagrams WHERE id = $1 FOR UPDATE`, diagramID,
	).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %q", rbd.ErrDiagramNotFound, diagramID)
		}
		return fmt.Errorf("rbd: lock diagram: %w", err)
	}

	d, err := loadDiagram(ctx, tx, diagramID)
	if err != nil {
		return err
	}
	if err := fn(tx, d); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("rbd: commit: %w", err)
	}
	return nil
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
