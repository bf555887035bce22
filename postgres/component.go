package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/rbd"
)

// AddComponent inserts a component with its failure probability.
func (s *PGStore) AddComponent(ctx context.Context, diagramID string, c *rbd.Component) error {
	return s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		if err := d.AddComponent(c.Name, c.FailureProbability); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbd_components (diagram_id, name, failure_probability) VALUES ($1, $2, $3)`,
			diagramID, c.Name, c.FailureProbability,
		); err != nil {
			return fmt.Errorf("rbd: insert component: %w", err)
		}
		return nil
	})
}

// UpdateComponent changes the failure probability of an existing component.
// Returns ErrComponentNotFound if the component doesn't exist.
func (s *PGStore) UpdateComponent(ctx context.Context, diagramID string, c *rbd.Component) error {
	return s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		if err := d.SetFailureProbability(c.Name, c.FailureProbability); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			`UPDATE rbd_components SET failure_probability = $1 WHERE diagram_id = $2 AND name = $3`,
			c.FailureProbability, diagramID, c.Name,
		)
		if err != nil {
			return fmt.Errorf("rbd: update component: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%w: %q", rbd.ErrComponentNotFound, c.Name)
		}
		return nil
	})
}

// DeleteComponent deletes a component no connection uses.
func (s *PGStore) DeleteComponent(ctx context.Context, diagramID, name string) error {
	return s.edit(ctx, diagramID, func(tx pgx.Tx, d *rbd.Diagram) error {
		if err := d.RemoveComponent(name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM rbd_components WHERE diagram_id = $1 AND name = $2`,
			diagramID, name,
		); err != nil {
			return fmt.Errorf("rbd: delete component: %w", err)
		}
		return nil
	})
}
