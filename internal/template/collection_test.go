package template_test

import (
	"sync"
	"testing"

	"go.arcalot.io/assert"
	"go.solutions.arcgis.dev/engine/internal/template"
)

func TestCollection_ReserveOnce(t *testing.T) {
	c := template.NewCollection()
	i, ok := c.Reserve("a1")
	assert.Equals(t, ok, true)
	assert.Equals(t, i, 0)

	i2, ok := c.Reserve("a1")
	assert.Equals(t, ok, false)
	assert.Equals(t, i2, 0)

	// Layer suffixes share the reservation of their service.
	i3, ok := c.Reserve("a1_3")
	assert.Equals(t, ok, false)
	assert.Equals(t, i3, 0)

	assert.Equals(t, c.Len(), 1)
	entry, found := c.FindByID("a1")
	assert.Equals(t, found, true)
	assert.Equals(t, entry.IsPlaceholder(), true)
}

func TestCollection_ReplaceInPlace(t *testing.T) {
	c := template.NewCollection()
	i, _ := c.Reserve("a1")
	j, _ := c.Reserve("b2")
	assert.NoError(t, c.Replace(i, template.New("a1", template.TypeWebMap)))

	list := c.List()
	assert.Equals(t, len(list), 2)
	assert.Equals(t, list[0].Type, template.TypeWebMap)
	assert.Equals(t, list[1].IsPlaceholder(), true)

	resolved := c.Resolved()
	assert.Equals(t, template.IDs(resolved), []string{"a1"})

	assert.Error(t, c.Replace(5, template.New("a1", template.TypeWebMap)))
	assert.Error(t, c.Replace(j, template.New("a1", template.TypeWebMap)))
}

func TestCollection_Seeded(t *testing.T) {
	c := template.NewCollection(
		template.New("a1", template.TypeWebMap),
		template.New("a1", template.TypeDashboard),
		template.New("b2", template.TypeGroup),
	)
	assert.Equals(t, c.Len(), 2)
	entry, ok := c.FindByID("a1")
	assert.Equals(t, ok, true)
	assert.Equals(t, entry.Type, template.TypeWebMap)
	_, reserved := c.Reserve("b2")
	assert.Equals(t, reserved, false)
}

func TestCollection_ConcurrentReserve(t *testing.T) {
	c := template.NewCollection()
	wg := &sync.WaitGroup{}
	winners := make(chan int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Reserve("shared"); ok {
				winners <- 1
			}
		}()
	}
	wg.Wait()
	close(winners)
	count := 0
	for range winners {
		count++
	}
	assert.Equals(t, count, 1)
	assert.Equals(t, c.Len(), 1)
}

func TestTemplate_AddDependency(t *testing.T) {
	tpl := template.New("a1", template.TypeWebMap)
	tpl.AddDependency("b2")
	tpl.AddDependency("b2")
	tpl.AddDependency("a1")
	tpl.AddDependency("a1_0")
	tpl.AddDependency("")
	tpl.AddDependency("c3_1")
	assert.Equals(t, tpl.Dependencies, []string{"b2", "c3_1"})
}

func TestBaseID(t *testing.T) {
	assert.Equals(t, template.BaseID("abc"), "abc")
	assert.Equals(t, template.BaseID("abc_2"), "abc")
	sub, ok := template.SubID("abc_2")
	assert.Equals(t, ok, true)
	assert.Equals(t, sub, "2")
	_, ok = template.SubID("abc")
	assert.Equals(t, ok, false)
}
