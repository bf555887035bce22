package rbd

import (
	"context"
	"errors"
)

var (
	ErrDiagramNotFound    = errors.New("rbd: diagram not found")
	ErrNodeNotFound       = errors.New("rbd: node not found")
	ErrComponentNotFound  = errors.New("rbd: component not found")
	ErrConnectionNotFound = errors.New("rbd: connection not found")
	ErrDuplicateNode      = errors.New("rbd: node already exists")
	ErrDuplicateComponent = errors.New("rbd: component already exists")
	ErrProtectedNode      = errors.New("rbd: source and sink nodes cannot be removed")
	ErrComponentInUse     = errors.New("rbd: component is used by a connection")
	ErrSelfLoop           = errors.New("rbd: cannot connect a node to itself")
	ErrConnectionExists   = errors.New("rbd: connection already exists")
)

// Store defines the contract for persisting and editing diagrams.
// Mutations enforce the same integrity rules as the Diagram editing methods,
// so a diagram read back from a Store is always safe to analyse.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Diagram (bulk operations)
	SaveDiagram(ctx context.Context, d *Diagram) (*Diagram, error)
	GetDiagram(ctx context.Context, diagramID string) (*Diagram, error)
	DeleteDiagram(ctx context.Context, diagramID string) error
	ListDiagrams(ctx context.Context) ([]string, error)

	// Nodes
	AddNode(ctx context.Context, diagramID string, node *Node) error
	DeleteNode(ctx context.Context, diagramID, name string) error

	// Components
	AddComponent(ctx context.Context, diagramID string, c *Component) error
	UpdateComponent(ctx context.Context, diagramID string, c *Component) error
	DeleteComponent(ctx context.Context, diagramID, name string) error

	// Connections
	AddConnection(ctx context.Context, diagramID string, conn *Connection) (string, error)
	DeleteConnection(ctx context.Context, diagramID, connectionID string) error
}
