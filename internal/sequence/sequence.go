// Package sequence computes the order in which templates must be deployed so that every item is created after the
// items it depends on.
package sequence

import (
	"go.solutions.arcgis.dev/engine/internal/template"
)

// TopologicallySort returns the item IDs of the templates in build order. Dependencies that are not part of the
// passed templates are ignored. When a base ID occurs more than once, only the first occurrence is scheduled, so the
// result is shorter than the input; see DuplicateIDs. If the dependencies contain a cycle, including an item that
// depends on itself, an ErrCyclicDependency is returned.
//
// Among items that become ready at the same time, the one that appears first in the input is scheduled first.
func TopologicallySort(templates []*template.Template) ([]string, error) {
	vertices := make(map[string]int, len(templates))
	ids := make([]string, 0, len(templates))
	sources := make([]*template.Template, 0, len(templates))
	for _, t := range templates {
		base := template.BaseID(t.ItemID)
		if _, ok := vertices[base]; ok {
			continue
		}
		vertices[base] = len(ids)
		ids = append(ids, t.ItemID)
		sources = append(sources, t)
	}

	// unresolved[v] counts the dependencies of v not yet placed in the output, dependents[u] lists the vertices
	// waiting on u.
	unresolved := make([]int, len(ids))
	dependents := make([][]int, len(ids))
	for v, t := range sources {
		seen := map[int]struct{}{}
		for _, dependencyID := range t.Dependencies {
			u, ok := vertices[template.BaseID(dependencyID)]
			if !ok {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			unresolved[v]++
			dependents[u] = append(dependents[u], v)
		}
	}

	queue := make([]int, 0, len(ids))
	for v := range ids {
		if unresolved[v] == 0 {
			queue = append(queue, v)
		}
	}

	result := make([]string, 0, len(ids))
	scheduled := make([]bool, len(ids))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		result = append(result, ids[u])
		scheduled[u] = true
		for _, v := range dependents[u] {
			unresolved[v]--
			if unresolved[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if len(result) < len(ids) {
		return nil, newCyclicDependencyError(ids, scheduled, dependents)
	}
	return result, nil
}

// newCyclicDependencyError separates the items on a cycle from those that only depend on one, or sit between two
// cycles. The strongly connected components of the unscheduled vertices are computed with Tarjan's algorithm; a
// vertex lies on a cycle if its component has more than one member or it depends on itself.
func newCyclicDependencyError(ids []string, scheduled []bool, dependents [][]int) ErrCyclicDependency {
	unsorted := make([]string, 0)
	for v := range ids {
		if !scheduled[v] {
			unsorted = append(unsorted, ids[v])
		}
	}

	s := &sccState{
		dependents: dependents,
		scheduled:  scheduled,
		index:      make([]int, len(ids)),
		lowLink:    make([]int, len(ids)),
		onStack:    make([]bool, len(ids)),
		component:  make([]int, len(ids)),
	}
	for v := range ids {
		s.index[v] = -1
	}
	for v := range ids {
		if !scheduled[v] && s.index[v] == -1 {
			s.connect(v)
		}
	}

	sizes := make([]int, s.components)
	for v := range ids {
		if !scheduled[v] {
			sizes[s.component[v]]++
		}
	}
	cycle := make([]string, 0, len(unsorted))
	for v := range ids {
		if scheduled[v] {
			continue
		}
		if sizes[s.component[v]] > 1 || dependsOnItself(v, dependents) {
			cycle = append(cycle, ids[v])
		}
	}
	return ErrCyclicDependency{
		IDs:      cycle,
		Unsorted: unsorted,
	}
}

type sccState struct {
	dependents [][]int
	scheduled  []bool
	index      []int
	lowLink    []int
	onStack    []bool
	component  []int
	stack      []int
	next       int
	components int
}

func (s *sccState) connect(v int) {
	s.index[v] = s.next
	s.lowLink[v] = s.next
	s.next++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	for _, w := range s.dependents[v] {
		if s.scheduled[w] {
			continue
		}
		if s.index[w] == -1 {
			s.connect(w)
			s.lowLink[v] = min(s.lowLink[v], s.lowLink[w])
		} else if s.onStack[w] {
			s.lowLink[v] = min(s.lowLink[v], s.index[w])
		}
	}

	if s.lowLink[v] != s.index[v] {
		return
	}
	for {
		w := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.onStack[w] = false
		s.component[w] = s.components
		if w == v {
			break
		}
	}
	s.components++
}

func dependsOnItself(v int, dependents [][]int) bool {
	for _, w := range dependents[v] {
		if w == v {
			return true
		}
	}
	return false
}

// DuplicateIDs returns the base IDs that occur more than once, in the order they were first seen.
func DuplicateIDs(templates []*template.Template) []string {
	counts := make(map[string]int, len(templates))
	var result []string
	for _, t := range templates {
		base := template.BaseID(t.ItemID)
		counts[base]++
		if counts[base] == 2 {
			result = append(result, base)
		}
	}
	return result
}
