// Package rbd computes exact reliability of directed reliability block
// diagrams.
//
// A diagram is a directed graph whose edges (connections) are labelled with
// components that fail independently with a fixed probability. The system
// works while at least one route of working components leads from the
// source node to the sink node.
//
// Analysis runs in three pure stages:
//
//   - EnumeratePaths lists every simple source-to-sink route as a sequence
//     of component names.
//   - FindMinimalCutSets enumerates component subsets by ascending size,
//     keeps those that break every path, and reduces them to the minimal
//     ones.
//   - Analyze sums the inclusion-exclusion series over the minimal cut sets
//     to get exact system unreliability.
//
// Analyzer chains the stages for a whole Diagram and adds logging, tracing
// and metrics around them.
package rbd

// Terminal node names present in every diagram built by NewDiagram.
const (
	Source = "source"
	Sink   = "sink"
)

// Diagram is a reliability block diagram: named nodes, a component table and
// component-labelled connections. Slices keep insertion order, which fixes the
// order paths are discovered in.
type Diagram struct {
	ID          string       `json:"id" yaml:"id"`
	Nodes       []Node       `json:"nodes" yaml:"nodes"`
	Components  []Component  `json:"components" yaml:"components"`
	Connections []Connection `json:"connections" yaml:"connections"`
}

// Node is a junction in the diagram. It carries no attributes beyond its name.
type Node struct {
	Name string `json:"name" yaml:"name" validate:"required"`
}

// Component is a part that can fail. Its reliability is always derived from
// FailureProbability and never stored.
type Component struct {
	Name               string  `json:"name" yaml:"name" validate:"required"`
	FailureProbability float64 `json:"failure_probability" yaml:"failure_probability" validate:"gte=0,lte=1"`
}

// Reliability returns 1 - FailureProbability.
func (c Component) Reliability() float64 {
	return 1 - c.FailureProbability
}

// Connection is a directed edge From -> To labelled with a component name.
// The failure probability is looked up in the diagram's component table on
// every analysis, so editing a component affects every connection using it.
type Connection struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	From      string `json:"from" yaml:"from" validate:"required"`
	To        string `json:"to" yaml:"to" validate:"required"`
	Component string `json:"component" yaml:"component" validate:"required"`
}
