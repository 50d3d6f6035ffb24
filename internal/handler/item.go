package handler

import (
	"context"
	"fmt"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

// NewTemplate creates a template from the portable properties of an item. References to the item itself in its URL
// are templatized.
func NewTemplate(item *portal.Item) *template.Template {
	tmpl := template.New(item.ID, item.Type)
	tmpl.Item = map[string]any{
		"title":        item.Title,
		"type":         item.Type,
		"typeKeywords": stringsOrEmpty(item.TypeKeywords),
		"description":  item.Description,
		"snippet":      item.Snippet,
		"tags":         stringsOrEmpty(item.Tags),
		"url":          templatize.Templatize(item.URL, item.ID),
		"extent":       item.Extent,
		"properties":   item.Properties,
	}
	return tmpl
}

// AddItemRequest builds the request creating the item of a template, with every placeholder the dictionary knows
// resolved. It also returns the placeholders that remain.
func AddItemRequest(tmpl *template.Template, dict templatize.Dictionary) (portal.AddItemRequest, []string) {
	item, _ := templatize.Replace(tmpl.Item, dict).(map[string]any)
	data := templatize.Replace(tmpl.Data, dict)
	request := portal.AddItemRequest{
		Title:        stringField(item, "title"),
		Type:         tmpl.Type,
		TypeKeywords: StringSlice(item["typeKeywords"]),
		Tags:         StringSlice(item["tags"]),
		Snippet:      stringField(item, "snippet"),
		Description:  stringField(item, "description"),
		Extent:       item["extent"],
		Data:         data,
	}
	if properties, ok := item["properties"].(map[string]any); ok {
		request.Properties = properties
	}
	unresolved := templatize.Unresolved([]any{item, data})
	if url := stringField(item, "url"); len(templatize.Unresolved(url)) == 0 {
		// A URL pointing to the item itself is set by UpdateUnresolved once the ID is known.
		request.URL = url
	}
	return request, unresolved
}

// UpdateUnresolved resolves the placeholders that were left over when the item was created and updates the item.
// Placeholders that still cannot be resolved are logged.
func UpdateUnresolved(
	ctx context.Context,
	logger log.Logger,
	client portal.Client,
	tmpl *template.Template,
	created *Created,
	dict templatize.Dictionary,
) error {
	if len(created.Unresolved) == 0 {
		return nil
	}
	item, _ := templatize.Replace(tmpl.Item, dict).(map[string]any)
	data := templatize.Replace(tmpl.Data, dict)
	if remaining := templatize.Unresolved([]any{item, data}); len(remaining) > 0 {
		logger.Warningf(
			"Item %s (%s) still references items that are not part of the deployment: %v",
			created.ItemID,
			tmpl.ItemID,
			remaining,
		)
	}
	url := stringField(item, "url")
	if err := client.UpdateItem(ctx, created.ItemID, portal.UpdateItemRequest{
		URL:  url,
		Data: data,
	}); err != nil {
		return fmt.Errorf("failed to update item %s created from %s (%w)", created.ItemID, tmpl.ItemID, err)
	}
	created.URL = url
	created.Unresolved = templatize.Unresolved([]any{item, data})
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// StringSlice converts a decoded JSON list to a string slice, skipping entries that are not strings.
func StringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
