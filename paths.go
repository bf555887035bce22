package rbd

import "slices"

// Path is the ordered sequence of component names along one simple route
// from source to sink.
type Path []string

// EnumeratePaths returns every simple directed path from source to sink as
// component-label sequences. A node is never revisited within a path, so
// cyclic diagrams terminate. Outgoing connections are followed in insertion
// order, which makes the result order reproducible.
//
// A diagram without any route yields an empty slice and no error; callers
// decide whether that is a failure.
func EnumeratePaths(d *Diagram, source, sink string) ([]Path, error) {
	for _, terminal := range []string{source, sink} {
		if !d.HasNode(terminal) {
			return nil, &TerminalNodeError{Node: terminal}
		}
	}

	adj := make(map[string][]Connection)
	for _, c := range d.Connections {
		if d.componentIndex(c.Component) < 0 {
			return nil, &UnknownComponentError{Component: c.Component}
		}
		adj[c.From] = append(adj[c.From], c)
	}

	paths := []Path{}
	if source == sink {
		return paths, nil
	}

	onPath := make(map[string]bool)
	var route []string

	var dfs func(node string)
	dfs = func(node string) {
		if node == sink {
			paths = append(paths, slices.Clone(route))
			return
		}
		onPath[node] = true
		for _, c := range adj[node] {
			if onPath[c.To] {
				continue
			}
			route = append(route, c.Component)
			dfs(c.To)
			route = route[:len(route)-1]
		}
		onPath[node] = false
	}
	dfs(source)

	return paths, nil
}
