package rbd

import (
	"errors"
	"fmt"
)

// Error kinds returned by the analysis stages. Check with errors.Is; the
// typed errors below carry the offending identifier and unwrap to these.
var (
	ErrMissingTerminalNode = errors.New("rbd: terminal node missing")
	ErrNoPathFound         = errors.New("rbd: no path from source to sink")
	ErrUnknownComponent    = errors.New("rbd: unknown component")
	ErrInvalidProbability  = errors.New("rbd: failure probability must be within [0, 1]")
	ErrSystemTooLarge      = errors.New("rbd: too many components for exact analysis")
	ErrUnknownMode         = errors.New("rbd: unknown analysis mode")
	ErrInvalidDiagram      = errors.New("rbd: invalid diagram")
)

// TerminalNodeError reports a source or sink node absent from the diagram.
type TerminalNodeError struct {
	Node string
}

func (e *TerminalNodeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingTerminalNode.Error(), e.Node)
}

func (e *TerminalNodeError) Unwrap() error { return ErrMissingTerminalNode }

// NoPathError reports a well-formed diagram with no route between the
// terminals.
type NoPathError struct {
	Source string
	Sink   string
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("%s: %q -> %q", ErrNoPathFound.Error(), e.Source, e.Sink)
}

func (e *NoPathError) Unwrap() error { return ErrNoPathFound }

// UnknownComponentError reports a component name with no entry in the
// component table.
type UnknownComponentError struct {
	Component string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownComponent.Error(), e.Component)
}

func (e *UnknownComponentError) Unwrap() error { return ErrUnknownComponent }
