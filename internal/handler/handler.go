// Package handler describes the per-item-type capability that converts portal items into templates and creates
// items from templates.
package handler

import (
	"context"

	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

// Handler converts and deploys the items of one or more item types.
type Handler interface {
	// ItemTypes returns the item types this handler is responsible for.
	ItemTypes() []string

	// ConvertItemToTemplate fetches everything needed to describe the item and returns its template. The returned
	// template lists the IDs of the items it depends on. An error returned here aborts the whole build.
	ConvertItemToTemplate(ctx context.Context, item *portal.Item) (*template.Template, error)

	// CreateItemFromTemplate creates the item in the destination portal. The dictionary holds every item created so
	// far and must not be modified.
	CreateItemFromTemplate(
		ctx context.Context,
		tmpl *template.Template,
		dict templatize.Dictionary,
	) (*Created, error)

	// PostProcess runs after every item of the deployment has been created, with the complete dictionary.
	PostProcess(ctx context.Context, tmpl *template.Template, created *Created, dict templatize.Dictionary) error
}

// Registry selects the handler for an item type.
type Registry interface {
	// GetByType returns the handler for the item type, or an ErrHandlerNotFound.
	GetByType(itemType string) (Handler, error)
	// Types returns the supported item types, sorted.
	Types() []string
	// List returns the handlers mapped by item type.
	List() map[string]Handler
}

// Created describes an item created from a template.
type Created struct {
	ItemID string                           `json:"itemId" yaml:"itemId"`
	Type   string                           `json:"type" yaml:"type"`
	URL    string                           `json:"url,omitempty" yaml:"url,omitempty"`
	Layers map[string]templatize.LayerEntry `json:"layers,omitempty" yaml:"layers,omitempty"`
	// Unresolved lists the placeholders that could not be resolved when the item was created.
	Unresolved []string `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}

// Entry returns the dictionary entry for the created item.
func (c Created) Entry() templatize.Entry {
	return templatize.Entry{
		ItemID: c.ItemID,
		URL:    c.URL,
		Layers: c.Layers,
	}
}
