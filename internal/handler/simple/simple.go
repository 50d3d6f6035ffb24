// Package simple provides the handler for item types whose references to other items are plain IDs in the item
// data, such as dashboards, web applications and forms.
package simple

import (
	"context"
	"fmt"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

// DefaultItemTypes are the item types the simple handler is registered for unless others are passed.
var DefaultItemTypes = []string{
	template.TypeDashboard,
	template.TypeWebMappingApplication,
	template.TypeForm,
	template.TypeWorkforceProject,
	template.TypeNotebook,
	template.TypeStoryMap,
	template.TypeWebExperience,
	template.TypeQuickCaptureProject,
	template.TypeHubPage,
}

// New creates a handler for the item types. If no types are passed, DefaultItemTypes is used.
func New(logger log.Logger, client portal.Client, itemTypes ...string) handler.Handler {
	if len(itemTypes) == 0 {
		itemTypes = DefaultItemTypes
	}
	return &simpleHandler{
		logger:    logger.WithLabel("source", "handler-simple"),
		client:    client,
		itemTypes: itemTypes,
	}
}

type simpleHandler struct {
	logger    log.Logger
	client    portal.Client
	itemTypes []string
}

func (s simpleHandler) ItemTypes() []string {
	return s.itemTypes
}

func (s simpleHandler) ConvertItemToTemplate(ctx context.Context, item *portal.Item) (*template.Template, error) {
	tmpl := handler.NewTemplate(item)
	data, err := s.client.GetItemData(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data of %s item %s (%w)", item.Type, item.ID, err)
	}
	dependencies := templatize.ReferencedIDs(data, item.ID)
	for _, id := range dependencies {
		data = templatize.Templatize(data, id)
		tmpl.AddDependency(id)
	}
	tmpl.Data = templatize.Templatize(data, item.ID)
	s.logger.Debugf("Converted %s item %s with %d dependencies.", item.Type, item.ID, len(dependencies))
	return tmpl, nil
}

func (s simpleHandler) CreateItemFromTemplate(
	ctx context.Context,
	tmpl *template.Template,
	dict templatize.Dictionary,
) (*handler.Created, error) {
	request, unresolved := handler.AddItemRequest(tmpl, dict)
	id, err := s.client.AddItem(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s item from template %s (%w)", tmpl.Type, tmpl.ItemID, err)
	}
	return &handler.Created{
		ItemID:     id,
		Type:       tmpl.Type,
		URL:        request.URL,
		Unresolved: unresolved,
	}, nil
}

func (s simpleHandler) PostProcess(
	ctx context.Context,
	tmpl *template.Template,
	created *handler.Created,
	dict templatize.Dictionary,
) error {
	return handler.UpdateUnresolved(ctx, s.logger, s.client, tmpl, created, dict)
}
