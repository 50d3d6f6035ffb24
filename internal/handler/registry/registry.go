// Package registry provides the handler registry, joining the item type handlers together.
package registry

import (
	"sort"

	"go.solutions.arcgis.dev/engine/internal/handler"
)

// New creates a new handler registry from the specified handlers.
func New(handlers ...handler.Handler) (handler.Registry, error) {
	h := make(map[string]handler.Handler, len(handlers))
	for _, hnd := range handlers {
		for _, itemType := range hnd.ItemTypes() {
			if _, ok := h[itemType]; ok {
				return nil, &ErrDuplicateItemType{
					itemType,
				}
			}
			h[itemType] = hnd
		}
	}
	types := make([]string, 0, len(h))
	for itemType := range h {
		types = append(types, itemType)
	}
	sort.Strings(types)
	return &handlerRegistry{
		h,
		types,
	}, nil
}

type handlerRegistry struct {
	handlers map[string]handler.Handler
	types    []string
}

func (r handlerRegistry) GetByType(itemType string) (handler.Handler, error) {
	hnd, ok := r.handlers[itemType]
	if !ok {
		return nil, &handler.ErrHandlerNotFound{
			Type:       itemType,
			ValidTypes: r.Types(),
		}
	}
	return hnd, nil
}

func (r handlerRegistry) Types() []string {
	result := make([]string, len(r.types))
	copy(result, r.types)
	return result
}

func (r handlerRegistry) List() map[string]handler.Handler {
	return r.handlers
}
