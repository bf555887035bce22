package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/rbd"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SaveDiagram validates a full diagram and stores it in one transaction,
// replacing any diagram with the same ID. A diagram without an ID gets a
// UUID, and so does every connection without one.
// Returns the diagram as stored.
func (s *PGStore) SaveDiagram(ctx context.Context, d *rbd.Diagram) (*rbd.Diagram, error) {
	d, err := d.Normalized()
	if err != nil {
		return nil, fmt.Errorf("rbd: save diagram: %w", err)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbd: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace semantics: the cascade clears nodes, components and connections.
	if _, err := tx.Exec(ctx, `DELETE FROM rbd_diagrams WHERE id = $1`, d.ID); err != nil {
		return nil, fmt.Errorf("rbd: delete diagram: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO rbd_diagrams (id) VALUES ($1)`, d.ID); err != nil {
		return nil, fmt.Errorf("rbd: insert diagram: %w", err)
	}

	for _, n := range d.Nodes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbd_nodes (diagram_id, name) VALUES ($1, $2)`,
			d.ID, n.Name,
		); err != nil {
			return nil, fmt.Errorf("rbd: insert node %s: %w", n.Name, err)
		}
	}

	for _, c := range d.Components {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbd_components (diagram_id, name, failure_probability) VALUES ($1, $2, $3)`,
			d.ID, c.Name, c.FailureProbability,
		); err != nil {
			return nil, fmt.Errorf("rbd: insert component %s: %w", c.Name, err)
		}
	}

	for _, c := range d.Connections {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbd_connections (diagram_id, id, from_node, to_node, component) VALUES ($1, $2, $3, $4, $5)`,
			d.ID, c.ID, c.From, c.To, c.Component,
		); err != nil {
			return nil, fmt.Errorf("rbd: insert connection %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rbd: commit: %w", err)
	}

	return d, nil
}

// GetDiagram retrieves a full diagram by its ID.
// Returns nil, nil if the diagram doesn't exist.
func (s *PGStore) GetDiagram(ctx context.Context, diagramID string) (*rbd.Diagram, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM rbd_diagrams WHERE id = $1`, diagramID,
	).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbd: get diagram: %w", err)
	}

	return loadDiagram(ctx, s.db, id)
}

// DeleteDiagram removes a diagram with everything it contains.
// Returns ErrDiagramNotFound if the diagram doesn't exist.
func (s *PGStore) DeleteDiagram(ctx context.Context, diagramID string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM rbd_diagrams WHERE id = $1`, diagramID)
	if err != nil {
		return fmt.Errorf("rbd: delete diagram: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", rbd.ErrDiagramNotFound, diagramID)
	}
	return nil
}

// ListDiagrams returns every diagram ID in ascending order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListDiagrams(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM rbd_diagrams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rbd: list diagrams: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbd: scan diagram: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// loadDiagram reads the nodes, components and connections of an existing
// diagram in insertion order.
func loadDiagram(ctx context.Context, q querier, diagramID string) (*rbd.Diagram, error) {
	d := &rbd.Diagram{ID: diagramID}

	rows, err := q.Query(ctx,
		`SELECT name FROM rbd_nodes WHERE diagram_id = $1 ORDER BY seq`, diagramID)
	if err != nil {
		return nil, fmt.Errorf("rbd: query nodes: %w", err)
	}
	d.Nodes, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (rbd.Node, error) {
		var n rbd.Node
		err := row.Scan(&n.Name)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("rbd: scan node: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT name, failure_probability FROM rbd_components WHERE diagram_id = $1 ORDER BY seq`, diagramID)
	if err != nil {
		return nil, fmt.Errorf("rbd: query components: %w", err)
	}
	d.Components, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (rbd.Component, error) {
		var c rbd.Component
		err := row.Scan(&c.Name, &c.FailureProbability)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("rbd: scan component: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT id, from_node, to_node, component FROM rbd_connections WHERE diagram_id = $1 ORDER BY seq`, diagramID)
	if err != nil {
		return nil, fmt.Errorf("rbd: query connections: %w", err)
	}
	d.Connections, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (rbd.Connection, error) {
		var c rbd.Connection
		err := row.Scan(&c.ID, &c.From, &c.To, &c.Component)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("rbd: scan connection: %w", err)
	}

	return d, nil
}
