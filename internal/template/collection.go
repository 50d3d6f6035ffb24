package template

import (
	"fmt"
	"sync"
)

// Collection is the working set of templates shared by concurrent builders. Every base ID that has been seen has
// exactly one entry, either a placeholder or the resolved template.
type Collection struct {
	lock      *sync.Mutex
	templates []*Template
	index     map[string]int
}

// NewCollection creates a collection seeded with already known templates. When the same base ID is passed twice only
// the first occurrence is kept.
func NewCollection(templates ...*Template) *Collection {
	c := &Collection{
		lock:      &sync.Mutex{},
		templates: make([]*Template, 0, len(templates)),
		index:     make(map[string]int, len(templates)),
	}
	for _, t := range templates {
		base := BaseID(t.ItemID)
		if _, ok := c.index[base]; ok {
			continue
		}
		c.index[base] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c
}

// Reserve inserts a placeholder for the ID if its base ID has not been seen before. It returns the index of the entry
// and true if this call created the reservation. A caller receiving false must not process the ID.
func (c *Collection) Reserve(id string) (int, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	base := BaseID(id)
	if i, ok := c.index[base]; ok {
		return i, false
	}
	i := len(c.templates)
	c.index[base] = i
	c.templates = append(c.templates, NewPlaceholder(base))
	return i, true
}

// Replace overwrites the entry at the index in place.
func (c *Collection) Replace(index int, t *Template) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if index < 0 || index >= len(c.templates) {
		return fmt.Errorf("bug: template index %d out of range (%d templates)", index, len(c.templates))
	}
	if BaseID(c.templates[index].ItemID) != BaseID(t.ItemID) {
		return fmt.Errorf(
			"bug: template %s cannot replace entry %d reserved for %s",
			t.ItemID,
			index,
			c.templates[index].ItemID,
		)
	}
	c.templates[index] = t
	return nil
}

// FindByID looks up the entry for the base ID of the passed ID.
func (c *Collection) FindByID(id string) (*Template, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	i, ok := c.index[BaseID(id)]
	if !ok {
		return nil, false
	}
	return c.templates[i], true
}

// Len returns the number of entries including placeholders.
func (c *Collection) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.templates)
}

// List returns a copy of all entries including placeholders.
func (c *Collection) List() []*Template {
	c.lock.Lock()
	defer c.lock.Unlock()
	result := make([]*Template, len(c.templates))
	copy(result, c.templates)
	return result
}

// Resolved returns the entries that resolved to a real item type, in insertion order.
func (c *Collection) Resolved() []*Template {
	c.lock.Lock()
	defer c.lock.Unlock()
	result := make([]*Template, 0, len(c.templates))
	for _, t := range c.templates {
		if !t.IsPlaceholder() {
			result = append(result, t)
		}
	}
	return result
}
