// Package hierarchy builds the nested dependency view of a set of templates, used for display and diagnostics.
package hierarchy

import (
	"fmt"

	"go.arcalot.io/dgraph"
	"go.solutions.arcgis.dev/engine/internal/template"
)

// Node mirrors one template with its dependencies expanded recursively. A dependency shared by two items appears
// under both of them.
type Node struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	// Layers lists the layers of this item referenced by the parent, if the parent is a feature service.
	Layers       []string `json:"layers,omitempty" yaml:"layers,omitempty"`
	Dependencies []*Node  `json:"dependencies" yaml:"dependencies"`
}

// Build returns one node for every template in the input, in input order. Dependencies not found among the
// templates are left out. An item already on the path from the top node is not expanded a second time, so cyclic
// input terminates.
//
// The tree is denormalized: every top-level node expands its complete subtree, and a dependency reachable along
// several paths is copied once per path. Stacked diamonds therefore grow the output exponentially with their depth.
// Use Graph for a view with one vertex per item.
func Build(templates []*template.Template) []*Node {
	result := make([]*Node, 0, len(templates))
	for _, t := range templates {
		result = append(result, expand(templates, t, nil, map[string]struct{}{}))
	}
	return result
}

// Roots returns the nodes of the templates that no other template depends on.
func Roots(templates []*template.Template) []*Node {
	dependedOn := map[string]struct{}{}
	for _, t := range templates {
		for _, dependencyID := range t.Dependencies {
			base := template.BaseID(dependencyID)
			if base == template.BaseID(t.ItemID) {
				continue
			}
			dependedOn[base] = struct{}{}
		}
	}
	result := make([]*Node, 0, len(templates))
	for _, t := range templates {
		if _, ok := dependedOn[template.BaseID(t.ItemID)]; ok {
			continue
		}
		result = append(result, expand(templates, t, nil, map[string]struct{}{}))
	}
	return result
}

func expand(
	templates []*template.Template,
	current *template.Template,
	layers []string,
	path map[string]struct{},
) *Node {
	base := template.BaseID(current.ItemID)
	node := &Node{
		ID:           current.ItemID,
		Type:         current.Type,
		Layers:       layers,
		Dependencies: []*Node{},
	}
	path[base] = struct{}{}
	defer delete(path, base)

	for _, edge := range groupDependencies(current) {
		if _, onPath := path[edge.base]; onPath {
			continue
		}
		dependency := template.FindByID(templates, edge.base)
		if dependency == nil {
			continue
		}
		node.Dependencies = append(node.Dependencies, expand(templates, dependency, edge.layers, path))
	}
	return node
}

type dependencyEdge struct {
	base   string
	layers []string
}

// groupDependencies merges the dependency IDs by base ID, keeping the first-seen order. Layer suffixes are only kept
// for feature services, since only they reference individual layers of another service.
func groupDependencies(t *template.Template) []*dependencyEdge {
	edges := make([]*dependencyEdge, 0, len(t.Dependencies))
	byBase := map[string]*dependencyEdge{}
	for _, dependencyID := range t.Dependencies {
		base := template.BaseID(dependencyID)
		edge, ok := byBase[base]
		if !ok {
			edge = &dependencyEdge{base: base}
			byBase[base] = edge
			edges = append(edges, edge)
		}
		if t.Type != template.TypeFeatureService {
			continue
		}
		if layer, hasLayer := template.SubID(dependencyID); hasLayer {
			edge.layers = append(edge.layers, layer)
		}
	}
	return edges
}

// Graph converts the templates into a directed graph with a connection from every dependency to its dependent.
// Dangling dependencies, self references and duplicate base IDs are skipped.
func Graph(templates []*template.Template) (dgraph.DirectedGraph[*template.Template], error) {
	dag := dgraph.New[*template.Template]()
	for _, t := range templates {
		base := template.BaseID(t.ItemID)
		if _, err := dag.GetNodeByID(base); err == nil {
			continue
		}
		if _, err := dag.AddNode(base, t); err != nil {
			return nil, fmt.Errorf("failed to add item %s to the dependency graph (%w)", t.ItemID, err)
		}
	}
	for _, t := range templates {
		base := template.BaseID(t.ItemID)
		current, err := dag.GetNodeByID(base)
		if err != nil {
			return nil, fmt.Errorf("bug: item %s is not in the dependency graph (%w)", base, err)
		}
		if current.Item() != t {
			// Later duplicates of the same item carry no edges of their own.
			continue
		}
		connected := map[string]struct{}{}
		for _, dependencyID := range t.Dependencies {
			dependencyBase := template.BaseID(dependencyID)
			if dependencyBase == base {
				continue
			}
			if _, ok := connected[dependencyBase]; ok {
				continue
			}
			dependencyNode, err := dag.GetNodeByID(dependencyBase)
			if err != nil {
				continue
			}
			if err := dependencyNode.Connect(base); err != nil {
				return nil, fmt.Errorf(
					"failed to connect %s to %s in the dependency graph (%w)",
					dependencyBase,
					base,
					err,
				)
			}
			connected[dependencyBase] = struct{}{}
		}
	}
	return dag, nil
}
