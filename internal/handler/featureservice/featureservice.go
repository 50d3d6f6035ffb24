// Package featureservice provides the handler for hosted feature services. The template carries the service
// definition and the definition of every layer and table, and deployment recreates them in a new hosted service.
package featureservice

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

const (
	propertyService = "service"
	propertyLayers  = "layers"
	propertyTables  = "tables"
)

// serviceOnlyFields are part of a service definition but describe the existing service rather than how to create one.
var serviceOnlyFields = []string{"layers", "tables", "serviceItemId", "currentVersion"}

// layerOnlyFields are part of a layer definition but are assigned by the destination service.
var layerOnlyFields = []string{"serviceItemId", "currentVersion", "adminLayerInfo"}

var invalidNameCharsRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// New creates the feature service handler.
func New(logger log.Logger, client portal.Client) handler.Handler {
	return &featureServiceHandler{
		logger: logger.WithLabel("source", "handler-featureservice"),
		client: client,
	}
}

type featureServiceHandler struct {
	logger log.Logger
	client portal.Client
}

func (f featureServiceHandler) ItemTypes() []string {
	return []string{template.TypeFeatureService}
}

func (f featureServiceHandler) ConvertItemToTemplate(
	ctx context.Context,
	item *portal.Item,
) (*template.Template, error) {
	if item.URL == "" {
		return nil, fmt.Errorf("feature service %s has no service URL", item.ID)
	}
	tmpl := handler.NewTemplate(item)
	tmpl.EstimatedDeploymentCostFactor = 3
	service, err := f.client.GetService(ctx, item.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the definition of feature service %s (%w)", item.ID, err)
	}

	layers, err := f.fetchLayers(ctx, item, service.Layers, tmpl)
	if err != nil {
		return nil, err
	}
	tables, err := f.fetchLayers(ctx, item, service.Tables, tmpl)
	if err != nil {
		return nil, err
	}
	var properties any = map[string]any{
		propertyService: without(service.Raw, serviceOnlyFields),
		propertyLayers:  layers,
		propertyTables:  tables,
	}
	properties = templatize.TemplatizeURL(properties, item.URL, item.ID)
	for _, id := range tmpl.Dependencies {
		properties = templatize.Templatize(properties, template.BaseID(id))
	}
	tmpl.Properties = templatize.Templatize(properties, item.ID).(map[string]any)
	tmpl.Item["url"] = templatize.URLPlaceholder(item.ID)
	f.logger.Debugf(
		"Converted feature service %s with %d layers and %d tables.",
		item.ID,
		len(layers),
		len(tables),
	)
	return tmpl, nil
}

// fetchLayers fetches the definitions of the referenced layers. Views list the layers they are built from as
// dependencies of the form <sourceServiceItemId>_<sourceLayerId>.
func (f featureServiceHandler) fetchLayers(
	ctx context.Context,
	item *portal.Item,
	refs []portal.ServiceLayerRef,
	tmpl *template.Template,
) ([]any, error) {
	result := make([]any, 0, len(refs))
	for _, ref := range refs {
		layer, err := f.client.GetLayer(ctx, item.URL, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch layer %d of feature service %s (%w)", ref.ID, item.ID, err)
		}
		if source := viewSource(layer); source != "" {
			tmpl.AddDependency(source)
		}
		result = append(result, without(layer, layerOnlyFields))
	}
	return result, nil
}

func (f featureServiceHandler) CreateItemFromTemplate(
	ctx context.Context,
	tmpl *template.Template,
	dict templatize.Dictionary,
) (*handler.Created, error) {
	item, _ := templatize.Replace(tmpl.Item, dict).(map[string]any)
	properties, _ := templatize.Replace(tmpl.Properties, dict).(map[string]any)
	serviceParameters, _ := properties[propertyService].(map[string]any)
	title, _ := item["title"].(string)
	request := portal.CreateServiceRequest{
		Name:              serviceName(title, tmpl.Key),
		ServiceParameters: serviceParameters,
		Tags:              handler.StringSlice(item["tags"]),
	}
	service, err := f.client.CreateService(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature service from template %s (%w)", tmpl.ItemID, err)
	}

	// Placeholders pointing to the new service itself can only be resolved now.
	self := templatize.Dictionary{
		tmpl.ItemID: {ItemID: service.ItemID, URL: service.ServiceURL},
	}
	properties, _ = templatize.Replace(properties, self).(map[string]any)
	layers, _ := properties[propertyLayers].([]any)
	tables, _ := properties[propertyTables].([]any)
	if len(layers) > 0 || len(tables) > 0 {
		if err := f.client.AddToDefinition(ctx, service.ServiceURL, map[string]any{
			propertyLayers: layers,
			propertyTables: tables,
		}); err != nil {
			return nil, fmt.Errorf("failed to add layers to feature service %s (%w)", service.ItemID, err)
		}
	}

	created := &handler.Created{
		ItemID:     service.ItemID,
		Type:       tmpl.Type,
		URL:        service.ServiceURL,
		Layers:     map[string]templatize.LayerEntry{},
		Unresolved: templatize.Unresolved(properties),
	}
	for _, layer := range append(append([]any{}, layers...), tables...) {
		id, ok := layerID(layer)
		if !ok {
			continue
		}
		created.Layers[id] = templatize.LayerEntry{
			ItemID: service.ItemID,
			URL:    strings.TrimSuffix(service.ServiceURL, "/") + "/" + id,
		}
	}
	return created, nil
}

func (f featureServiceHandler) PostProcess(
	_ context.Context,
	tmpl *template.Template,
	created *handler.Created,
	_ templatize.Dictionary,
) error {
	if len(created.Unresolved) > 0 {
		f.logger.Warningf(
			"Feature service %s (%s) was created with unresolved references: %v",
			created.ItemID,
			tmpl.ItemID,
			created.Unresolved,
		)
	}
	return nil
}

// viewSource returns the composite ID of the layer a view layer is built from, or an empty string.
func viewSource(layer map[string]any) string {
	adminInfo, _ := layer["adminLayerInfo"].(map[string]any)
	definition, _ := adminInfo["viewLayerDefinition"].(map[string]any)
	sourceID, _ := definition["sourceServiceItemId"].(string)
	if sourceID == "" {
		return ""
	}
	if sourceLayer, ok := definition["sourceLayerId"].(float64); ok {
		return sourceID + template.IDSeparator + strconv.Itoa(int(sourceLayer))
	}
	return sourceID
}

func layerID(layer any) (string, bool) {
	definition, ok := layer.(map[string]any)
	if !ok {
		return "", false
	}
	switch id := definition["id"].(type) {
	case float64:
		return strconv.Itoa(int(id)), true
	case int:
		return strconv.Itoa(id), true
	default:
		return "", false
	}
}

func serviceName(title string, key string) string {
	name := strings.Trim(invalidNameCharsRe.ReplaceAllString(title, "_"), "_")
	if name == "" {
		name = "service"
	}
	return name + "_" + key
}

func without(source map[string]any, fields []string) map[string]any {
	result := make(map[string]any, len(source))
	for k, v := range source {
		result[k] = v
	}
	for _, field := range fields {
		delete(result, field)
	}
	return result
}
