package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/rbd"
)

// AddConnection inserts a single connection into a diagram.
// If conn.ID is empty, a UUID is auto-generated.
// Returns the connection ID (generated or provided).
func (s *PGStore) AddConnection(ctx context.Context, diagramID string, conn *rbd.Connection) (string, error) {
	var id string
	err := s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		var err error
		id, err = d.AddConnection(*conn)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbd_connections (diagram_id, id, from_node, to_node, component) VALUES ($1, $2, $3, $4, $5)`,
			diagramID, id, conn.From, conn.To, conn.Component,
		); err != nil {
			return fmt.Errorf("rbd: insert connection: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteConnection deletes a connection by its ID.
// Returns ErrConnectionNotFound if the connection doesn't exist.
func (s *PGStore) DeleteConnection(ctx context.Context, diagramID, connectionID string) error {
	return s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		if err := d.Disconnect(connectionID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM rbd_connections WHERE diagram_id = $1 AND id = $2`,
			diagramID, connectionID,
		); err != nil {
			return fmt.Errorf("rbd: delete connection: %w", err)
		}
		return nil
	})
}
