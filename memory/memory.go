// Package memory implements rbd.Store in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/meikuraledutech/rbd"
)

// Store keeps diagrams in a map guarded by a RWMutex. Every read returns a
// copy, so callers may edit what they get back.
type Store struct {
	mu       sync.RWMutex
	diagrams map[string]*rbd.Diagram
}

var _ rbd.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{diagrams: make(map[string]*rbd.Diagram)}
}

// CreateSchema is a no-op; the store has no schema.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema removes every diagram.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagrams = make(map[string]*rbd.Diagram)
	return nil
}

// SaveDiagram validates d and replaces any stored diagram with the same ID.
// An empty ID is replaced by a generated one.
func (s *Store) SaveDiagram(ctx context.Context, d *rbd.Diagram) (*rbd.Diagram, error) {
	normalized, err := d.Normalized()
	if err != nil {
		return nil, fmt.Errorf("rbd: save diagram: %w", err)
	}
	if normalized.ID == "" {
		normalized.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagrams[normalized.ID] = normalized
	return normalized.Clone(), nil
}

// GetDiagram returns nil, nil when the diagram does not exist.
func (s *Store) GetDiagram(ctx context.Context, diagramID string) (*rbd.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.diagrams[diagramID]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (s *Store) DeleteDiagram(ctx context.Context, diagramID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.diagrams[diagramID]; !ok {
		return fmt.Errorf("%w: %q", rbd.ErrDiagramNotFound, diagramID)
	}
	delete(s.diagrams, diagramID)
	return nil
}

// ListDiagrams returns the stored IDs in ascending order.
func (s *Store) ListDiagrams(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.diagrams))
	for id := range s.diagrams {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) AddNode(ctx context.Context, diagramID string, node *rbd.Node) error {
	return s.edit(diagramID, func(d *rbd.Diagram) error {
		return d.AddNode(node.Name)
	})
}

func (s *Store) DeleteNode(ctx context.Context, diagramID, name string) error {
	return s.edit(diagramID, func(d *rbd.Diagram) error {
		return d.RemoveNode(name)
	})
}

func (s *Store) AddComponent(ctx context.Context, diagramID string, c *rbd.Component) error {
	return s.edit(diagramID, func(d *rbd.Diagram) error {
		return d.AddComponent(c.Name, c.FailureProbability)
	})
}

func (s *Store) UpdateComponent(ctx context.Context, diagramID string, c *rbd.Component) error {
	return s.edit(diagramID, func(d *rbd.Diagram) error {
		return d.SetFailureProbability(c.Name, c.FailureProbability)
	})
}

func (s *Store) DeleteComponent(ctx context.Context, diagramID, name string) error {
	return s.edit(diagramID, func(d *rbd.Diagram) error {
		return d.RemoveComponent(name)
	})
}

// AddConnection stores conn and returns its ID, generating one if conn.ID
// is empty.
func (s *Store) AddConnection(ctx context.Context, diagramID string, conn *rbd.Connection) (string, error) {
	var id string
	err := s.edit(diagramID, func(d *rbd.Diagram) error {
		var err error
		id, err = d.AddConnection(*conn)
		return err
	})
	return id, err
}

func (s *Store) DeleteConnection(ctx context.Context, diagramID, connectionID string) error {
	return s.edit(diagramID, func(d *rbd.Diagram) error {
		return d.Disconnect(connectionID)
	})
}

// edit applies fn to a copy of the diagram and stores the copy only if fn
// succeeds.
func (s *Store) edit(diagramID string, fn func(*rbd.Diagram) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.diagrams[diagramID]
	if !ok {
		return fmt.Errorf("%w: %q", rbd.ErrDiagramNotFound, diagramID)
	}
	updated := d.Clone()
	if err := fn(updated); err != nil {
		return err
	}
	s.diagrams[diagramID] = updated
	return nil
}
