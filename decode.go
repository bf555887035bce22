package rbd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// diagramFile is the on-disk layout. Source and sink are implicit, so
// listing them under nodes is accepted and ignored.
type diagramFile struct {
	ID          string       `yaml:"id"`
	Nodes       []nodeEntry  `yaml:"nodes"`
	Components  []Component  `yaml:"components"`
	Connections []Connection `yaml:"connections"`
}

// nodeEntry is a node written either as a bare name or as {name: ...},
// the shape Diagram marshals to.
type nodeEntry string

func (n *nodeEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*n = nodeEntry(value.Value)
		return nil
	case yaml.MappingNode:
		var name string
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			if key.Value != "name" {
				return fmt.Errorf("line %d: field %s not found in type rbd.Node", key.Line, key.Value)
			}
			if err := val.Decode(&name); err != nil {
				return err
			}
		}
		*n = nodeEntry(name)
		return nil
	default:
		return fmt.Errorf("line %d: node must be a name or a mapping with a name", value.Line)
	}
}

// DecodeDiagram reads a diagram document in YAML or JSON and builds it
// through the editing methods, so a decoded diagram obeys every integrity
// rule. Nodes may be bare names or {name: ...} objects, so the JSON form of
// a Diagram decodes back to the same diagram. Unknown fields are rejected.
func DecodeDiagram(r io.Reader) (*Diagram, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f diagramFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rbd: decode diagram: empty document")
		}
		return nil, fmt.Errorf("rbd: decode diagram: %w", err)
	}

	d := NewDiagram(f.ID)
	for _, entry := range f.Nodes {
		name := string(entry)
		if name == Source || name == Sink {
			continue
		}
		if err := d.AddNode(name); err != nil {
			return nil, fmt.Errorf("rbd: decode diagram: %w", err)
		}
	}
	for _, c := range f.Components {
		if err := d.AddComponent(c.Name, c.FailureProbability); err != nil {
			return nil, fmt.Errorf("rbd: decode diagram: %w", err)
		}
	}
	for _, c := range f.Connections {
		if _, err := d.AddConnection(c); err != nil {
			return nil, fmt.Errorf("rbd: decode diagram: %w", err)
		}
	}
	return d, nil
}

// LoadDiagram opens path and decodes it with DecodeDiagram. A diagram
// without an id takes none; callers that store it get a generated one.
func LoadDiagram(path string) (*Diagram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rbd: load diagram: %w", err)
	}
	defer f.Close()
	return DecodeDiagram(f)
}
