// Package webmap provides the handler for web maps. A web map depends on the items behind its operational layers and
// tables.
package webmap

import (
	"context"
	"fmt"
	"regexp"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

var layerURLRe = regexp.MustCompile(`^(.*/(?:FeatureServer|MapServer))/(\d+)/?$`)

// New creates the web map handler.
func New(logger log.Logger, client portal.Client) handler.Handler {
	return &webMapHandler{
		logger: logger.WithLabel("source", "handler-webmap"),
		client: client,
	}
}

type webMapHandler struct {
	logger log.Logger
	client portal.Client
}

func (w webMapHandler) ItemTypes() []string {
	return []string{template.TypeWebMap}
}

func (w webMapHandler) ConvertItemToTemplate(ctx context.Context, item *portal.Item) (*template.Template, error) {
	tmpl := handler.NewTemplate(item)
	rawData, err := w.client.GetItemData(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data of web map %s (%w)", item.ID, err)
	}
	data, ok := rawData.(map[string]any)
	if !ok {
		if rawData != nil {
			return nil, fmt.Errorf("the data of web map %s is not an object (%T)", item.ID, rawData)
		}
		data = map[string]any{}
	}

	var result any = data
	for _, layer := range layers(data) {
		itemID, _ := layer["itemId"].(string)
		if itemID == "" {
			continue
		}
		tmpl.AddDependency(itemID)
		if url, _ := layer["url"].(string); url != "" {
			if match := layerURLRe.FindStringSubmatch(url); match != nil {
				result = templatize.TemplatizeURL(result, match[1], itemID)
			}
		}
	}
	for _, id := range tmpl.Dependencies {
		result = templatize.Templatize(result, id)
	}
	tmpl.Data = templatize.Templatize(result, item.ID)
	w.logger.Debugf("Converted web map %s with %d layer items.", item.ID, len(tmpl.Dependencies))
	return tmpl, nil
}

func (w webMapHandler) CreateItemFromTemplate(
	ctx context.Context,
	tmpl *template.Template,
	dict templatize.Dictionary,
) (*handler.Created, error) {
	request, unresolved := handler.AddItemRequest(tmpl, dict)
	if len(unresolved) > 0 {
		w.logger.Debugf("Web map %s has unresolved references at creation: %v", tmpl.ItemID, unresolved)
	}
	id, err := w.client.AddItem(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create web map from template %s (%w)", tmpl.ItemID, err)
	}
	return &handler.Created{
		ItemID:     id,
		Type:       tmpl.Type,
		URL:        request.URL,
		Unresolved: unresolved,
	}, nil
}

func (w webMapHandler) PostProcess(
	ctx context.Context,
	tmpl *template.Template,
	created *handler.Created,
	dict templatize.Dictionary,
) error {
	return handler.UpdateUnresolved(ctx, w.logger, w.client, tmpl, created, dict)
}

// layers returns the operational layers and tables of the web map data, including the layers of group layers.
func layers(data map[string]any) []map[string]any {
	var result []map[string]any
	var collect func(list any)
	collect = func(list any) {
		entries, _ := list.([]any)
		for _, entry := range entries {
			layer, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			result = append(result, layer)
			collect(layer["layers"])
		}
	}
	collect(data["operationalLayers"])
	collect(data["tables"])
	return result
}
