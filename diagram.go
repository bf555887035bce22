package rbd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// NewDiagram returns an empty diagram holding only the source and sink nodes.
func NewDiagram(id string) *Diagram {
	return &Diagram{
		ID:    id,
		Nodes: []Node{{Name: Source}, {Name: Sink}},
	}
}

// HasNode reports whether a node with the given name exists.
func (d *Diagram) HasNode(name string) bool {
	return slices.ContainsFunc(d.Nodes, func(n Node) bool { return n.Name == name })
}

// Component looks up a component by name.
func (d *Diagram) Component(name string) (Component, bool) {
	i := d.componentIndex(name)
	if i < 0 {
		return Component{}, false
	}
	return d.Components[i], true
}

func (d *Diagram) componentIndex(name string) int {
	return slices.IndexFunc(d.Components, func(c Component) bool { return c.Name == name })
}

// AddNode appends a junction node.
func (d *Diagram) AddNode(name string) error {
	if err := validate.Struct(Node{Name: name}); err != nil {
		return fmt.Errorf("%w: node: %w", ErrInvalidDiagram, err)
	}
	if d.HasNode(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	d.Nodes = append(d.Nodes, Node{Name: name})
	return nil
}

// RemoveNode deletes a node and every connection touching it.
// The source and sink nodes are never removed.
func (d *Diagram) RemoveNode(name string) error {
	if name == Source || name == Sink {
		return fmt.Errorf("%w: %q", ErrProtectedNode, name)
	}
	i := slices.IndexFunc(d.Nodes, func(n Node) bool { return n.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	d.Nodes = slices.Delete(d.Nodes, i, i+1)
	d.Connections = slices.DeleteFunc(d.Connections, func(c Connection) bool {
		return c.From == name || c.To == name
	})
	return nil
}

// AddComponent registers a component with its failure probability.
func (d *Diagram) AddComponent(name string, failureProbability float64) error {
	c := Component{Name: name, FailureProbability: failureProbability}
	if err := validateComponent(c); err != nil {
		return err
	}
	if d.componentIndex(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateComponent, name)
	}
	d.Components = append(d.Components, c)
	return nil
}

// SetFailureProbability changes a component's failure probability. Every
// connection labelled with the component sees the new value.
func (d *Diagram) SetFailureProbability(name string, failureProbability float64) error {
	i := d.componentIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrComponentNotFound, name)
	}
	c := Component{Name: name, FailureProbability: failureProbability}
	if err := validateComponent(c); err != nil {
		return err
	}
	d.Components[i] = c
	return nil
}

// RemoveComponent deletes a component that no connection references.
func (d *Diagram) RemoveComponent(name string) error {
	i := d.componentIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrComponentNotFound, name)
	}
	if slices.ContainsFunc(d.Connections, func(c Connection) bool { return c.Component == name }) {
		return fmt.Errorf("%w: %q", ErrComponentInUse, name)
	}
	d.Components = slices.Delete(d.Components, i, i+1)
	return nil
}

// Connect adds a connection from -> to labelled with component and returns
// its generated ID.
func (d *Diagram) Connect(from, to, component string) (string, error) {
	return d.AddConnection(Connection{From: from, To: to, Component: component})
}

// AddConnection adds c, keeping c.ID when set and generating a UUID otherwise.
func (d *Diagram) AddConnection(c Connection) (string, error) {
	if err := d.checkConnection(c); err != nil {
		return "", err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if slices.ContainsFunc(d.Connections, func(e Connection) bool { return e.ID == c.ID }) {
		return "", fmt.Errorf("%w: id %q", ErrConnectionExists, c.ID)
	}
	d.Connections = append(d.Connections, c)
	return c.ID, nil
}

func (d *Diagram) checkConnection(c Connection) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: connection: %w", ErrInvalidDiagram, err)
	}
	for _, name := range []string{c.From, c.To} {
		if !d.HasNode(name) {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, name)
		}
	}
	if d.componentIndex(c.Component) < 0 {
		return &UnknownComponentError{Component: c.Component}
	}
	if c.From == c.To {
		return fmt.Errorf("%w: %q", ErrSelfLoop, c.From)
	}
	if slices.ContainsFunc(d.Connections, func(e Connection) bool { return e.From == c.From && e.To == c.To }) {
		return fmt.Errorf("%w: %q -> %q", ErrConnectionExists, c.From, c.To)
	}
	return nil
}

// Disconnect removes the connection with the given ID.
func (d *Diagram) Disconnect(id string) error {
	i := slices.IndexFunc(d.Connections, func(c Connection) bool { return c.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrConnectionNotFound, id)
	}
	d.Connections = slices.Delete(d.Connections, i, i+1)
	return nil
}

// Probabilities returns the current failure probability of every component,
// keyed by name.
func (d *Diagram) Probabilities() map[string]float64 {
	probs := make(map[string]float64, len(d.Components))
	for _, c := range d.Components {
		probs[c.Name] = c.FailureProbability
	}
	return probs
}

// Clone returns a deep copy of d.
func (d *Diagram) Clone() *Diagram {
	return &Diagram{
		ID:          d.ID,
		Nodes:       slices.Clone(d.Nodes),
		Components:  slices.Clone(d.Components),
		Connections: slices.Clone(d.Connections),
	}
}

// Validate checks the whole diagram against the rules the editing methods
// enforce one step at a time. Diagrams coming from files, request bodies or
// a database go through it before analysis.
func (d *Diagram) Validate() error {
	_, err := d.Normalized()
	return err
}

// Normalized replays d through the editing methods and returns the rebuilt
// copy, with generated IDs for connections that had none.
func (d *Diagram) Normalized() (*Diagram, error) {
	rebuilt := &Diagram{ID: d.ID}
	for _, n := range d.Nodes {
		if err := rebuilt.AddNode(n.Name); err != nil {
			return nil, err
		}
	}
	for _, terminal := range []string{Source, Sink} {
		if !rebuilt.HasNode(terminal) {
			return nil, &TerminalNodeError{Node: terminal}
		}
	}
	for _, c := range d.Components {
		if err := rebuilt.AddComponent(c.Name, c.FailureProbability); err != nil {
			return nil, err
		}
	}
	for _, c := range d.Connections {
		if _, err := rebuilt.AddConnection(c); err != nil {
			return nil, err
		}
	}
	return rebuilt, nil
}

func validateComponent(c Component) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "FailureProbability" {
				return fmt.Errorf("%w: component %q has %v", ErrInvalidProbability, c.Name, c.FailureProbability)
			}
		}
	}
	return fmt.Errorf("%w: component %q: %w", ErrInvalidDiagram, c.Name, err)
}
