package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/rbd"
)

// AddNode inserts a junction node into a diagram.
func (s *PGStore) AddNode(ctx context.Context, diagramID string, node *rbd.Node) error {
	return s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		if err := d.AddNode(node.Name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbd_nodes (diagram_id, name) VALUES ($1, $2)`,
			diagramID, node.Name,
		); err != nil {
			return fmt.Errorf("rbd: insert node: %w", err)
		}
		return nil
	})
}

// DeleteNode deletes a node by name. Connections touching it are
// cascade-deleted by the DB. Source and sink are refused.
func (s *PGStore) DeleteNode(ctx context.Context, diagramID, name string) error {
	return s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		if err := d.RemoveNode(name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM rbd_nodes WHERE diagram_id = $1 AND name = $2`,
			diagramID, name,
		); err != nil {
			return fmt.Errorf("rbd: delete node: %w", err)
		}
		return nil
	})
}
