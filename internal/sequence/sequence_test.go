package sequence_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"go.arcalot.io/assert"
	"go.solutions.arcgis.dev/engine/internal/sequence"
	"go.solutions.arcgis.dev/engine/internal/template"
)

func item(id string, dependencies ...string) *template.Template {
	return &template.Template{
		ItemID:       id,
		Type:         template.TypeWebMap,
		Dependencies: dependencies,
	}
}

var sortTestData = map[string]struct {
	input    []*template.Template
	expected []string
}{
	"empty": {
		input:    nil,
		expected: []string{},
	},
	"chain": {
		input: []*template.Template{
			item("A", "B"),
			item("B", "C"),
			item("C"),
		},
		expected: []string{"C", "B", "A"},
	},
	"dangling": {
		input: []*template.Template{
			item("A", "X"),
		},
		expected: []string{"A"},
	},
	"diamond": {
		input: []*template.Template{
			item("A", "B", "C"),
			item("B", "D"),
			item("C", "D"),
			item("D"),
		},
		expected: []string{"D", "B", "C", "A"},
	},
	"independent-keeps-input-order": {
		input: []*template.Template{
			item("Z"),
			item("Y"),
			item("X"),
		},
		expected: []string{"Z", "Y", "X"},
	},
	"layer-suffix": {
		input: []*template.Template{
			item("view", "source_0", "source_2"),
			item("source"),
		},
		expected: []string{"source", "view"},
	},
	"repeated-dependency": {
		input: []*template.Template{
			item("A", "B", "B"),
			item("B"),
		},
		expected: []string{"B", "A"},
	},
}

func TestTopologicallySort(t *testing.T) {
	for name, tc := range sortTestData {
		testCase := tc
		t.Run(name, func(t *testing.T) {
			result, err := sequence.TopologicallySort(testCase.input)
			assert.NoError(t, err)
			assert.Equals(t, result, testCase.expected)
		})
	}
}

func TestTopologicallySort_Cycle(t *testing.T) {
	_, err := sequence.TopologicallySort([]*template.Template{
		item("A", "B"),
		item("B", "A"),
	})
	assert.Error(t, err)
	var cycleErr sequence.ErrCyclicDependency
	assert.Equals(t, errors.As(err, &cycleErr), true)
	assert.Equals(t, cycleErr.IDs, []string{"A", "B"})
	assert.Contains(t, err.Error(), "A")
	assert.Contains(t, err.Error(), "B")
}

func TestTopologicallySort_CycleWithDependents(t *testing.T) {
	_, err := sequence.TopologicallySort([]*template.Template{
		item("root"),
		item("C", "A"),
		item("A", "B", "root"),
		item("B", "A"),
		item("D", "C"),
	})
	var cycleErr sequence.ErrCyclicDependency
	assert.Equals(t, errors.As(err, &cycleErr), true)
	assert.Equals(t, cycleErr.IDs, []string{"A", "B"})
	assert.Equals(t, cycleErr.Unsorted, []string{"C", "A", "B", "D"})
}

func TestTopologicallySort_ItemBetweenCycles(t *testing.T) {
	_, err := sequence.TopologicallySort([]*template.Template{
		item("A", "B"),
		item("B", "A"),
		item("X", "A"),
		item("C", "D", "X"),
		item("D", "C"),
	})
	var cycleErr sequence.ErrCyclicDependency
	assert.Equals(t, errors.As(err, &cycleErr), true)
	assert.Equals(t, cycleErr.IDs, []string{"A", "B", "C", "D"})
	assert.Equals(t, cycleErr.Unsorted, []string{"A", "B", "X", "C", "D"})
}

func TestTopologicallySort_SelfDependencyBehindCycle(t *testing.T) {
	_, err := sequence.TopologicallySort([]*template.Template{
		item("A", "B"),
		item("B", "A"),
		item("S", "S", "A"),
		item("E", "S"),
	})
	var cycleErr sequence.ErrCyclicDependency
	assert.Equals(t, errors.As(err, &cycleErr), true)
	assert.Equals(t, cycleErr.IDs, []string{"A", "B", "S"})
	assert.Equals(t, cycleErr.Unsorted, []string{"A", "B", "S", "E"})
}

func TestTopologicallySort_SelfDependency(t *testing.T) {
	_, err := sequence.TopologicallySort([]*template.Template{
		item("A", "A"),
		item("B"),
	})
	var cycleErr sequence.ErrCyclicDependency
	assert.Equals(t, errors.As(err, &cycleErr), true)
	assert.Equals(t, cycleErr.IDs, []string{"A"})
}

func TestTopologicallySort_Duplicates(t *testing.T) {
	input := []*template.Template{
		item("A", "B"),
		item("A"),
		item("B"),
	}
	result, err := sequence.TopologicallySort(input)
	assert.NoError(t, err)
	assert.Equals(t, result, []string{"B", "A"})
	assert.Equals(t, len(result) < len(input), true)
	assert.Equals(t, sequence.DuplicateIDs(input), []string{"A"})
}

func TestDuplicateIDs_None(t *testing.T) {
	assert.Equals(t, len(sequence.DuplicateIDs([]*template.Template{item("A"), item("B")})), 0)
}

// TestTopologicallySort_RandomDAG checks the ordering and totality properties on generated acyclic graphs.
func TestTopologicallySort_RandomDAG(t *testing.T) {
	rnd := rand.New(rand.NewSource(42)) //nolint:gosec
	for round := 0; round < 50; round++ {
		count := 1 + rnd.Intn(30)
		templates := make([]*template.Template, count)
		for i := 0; i < count; i++ {
			var deps []string
			// Only depend on lower indexes, which keeps the graph acyclic.
			for j := 0; j < i; j++ {
				if rnd.Intn(4) == 0 {
					deps = append(deps, fmt.Sprintf("item%d", j))
				}
			}
			if rnd.Intn(5) == 0 {
				deps = append(deps, "missing")
			}
			templates[i] = item(fmt.Sprintf("item%d", i), deps...)
		}
		rnd.Shuffle(len(templates), func(i, j int) {
			templates[i], templates[j] = templates[j], templates[i]
		})

		result, err := sequence.TopologicallySort(templates)
		assert.NoError(t, err)
		assert.Equals(t, len(result), count)
		position := make(map[string]int, len(result))
		for i, id := range result {
			position[id] = i
		}
		assert.Equals(t, len(position), count)
		for _, tpl := range templates {
			for _, dep := range tpl.Dependencies {
				depPosition, ok := position[dep]
				if !ok {
					continue
				}
				if depPosition >= position[tpl.ItemID] {
					t.Fatalf("%s is scheduled before its dependency %s", tpl.ItemID, dep)
				}
			}
		}
	}
}
