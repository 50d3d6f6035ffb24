// Package group provides the handler for groups. A group depends on the items shared to it, and the deployed items
// are shared to the deployed group once everything has been created.
package group

import (
	"context"
	"fmt"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

// New creates the group handler.
func New(logger log.Logger, client portal.Client) handler.Handler {
	return &groupHandler{
		logger: logger.WithLabel("source", "handler-group"),
		client: client,
	}
}

// FromGroup describes a group as an item so it can pass through the template builder.
func FromGroup(group *portal.Group) *portal.Item {
	return &portal.Item{
		ID:          group.ID,
		Owner:       group.Owner,
		Title:       group.Title,
		Type:        template.TypeGroup,
		Description: group.Description,
		Snippet:     group.Snippet,
		Tags:        group.Tags,
		Access:      group.Access,
	}
}

type groupHandler struct {
	logger log.Logger
	client portal.Client
}

func (g groupHandler) ItemTypes() []string {
	return []string{template.TypeGroup}
}

func (g groupHandler) ConvertItemToTemplate(ctx context.Context, item *portal.Item) (*template.Template, error) {
	tmpl := handler.NewTemplate(item)
	tmpl.EstimatedDeploymentCostFactor = 1
	contents, err := g.client.GetGroupContents(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list the contents of group %s (%w)", item.ID, err)
	}
	for _, content := range contents {
		tmpl.AddDependency(content.ID)
	}
	g.logger.Debugf("Converted group %s with %d items.", item.ID, len(tmpl.Dependencies))
	return tmpl, nil
}

func (g groupHandler) CreateItemFromTemplate(
	ctx context.Context,
	tmpl *template.Template,
	dict templatize.Dictionary,
) (*handler.Created, error) {
	item, _ := templatize.Replace(tmpl.Item, dict).(map[string]any)
	title, _ := item["title"].(string)
	description, _ := item["description"].(string)
	snippet, _ := item["snippet"].(string)
	request := portal.CreateGroupRequest{
		Title:       title,
		Description: description,
		Snippet:     snippet,
		Tags:        handler.StringSlice(item["tags"]),
	}
	id, err := g.client.CreateGroup(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create group from template %s (%w)", tmpl.ItemID, err)
	}
	return &handler.Created{
		ItemID: id,
		Type:   tmpl.Type,
	}, nil
}

// PostProcess shares every deployed item the source group contained with the new group.
func (g groupHandler) PostProcess(
	ctx context.Context,
	tmpl *template.Template,
	created *handler.Created,
	dict templatize.Dictionary,
) error {
	for _, dependency := range tmpl.Dependencies {
		entry, ok := dict.Lookup(template.BaseID(dependency))
		if !ok {
			g.logger.Debugf("Item %s of group %s was not deployed, not sharing it.", dependency, tmpl.ItemID)
			continue
		}
		if err := g.client.ShareItem(ctx, entry.ItemID, []string{created.ItemID}); err != nil {
			return fmt.Errorf("failed to share item %s with group %s (%w)", entry.ItemID, created.ItemID, err)
		}
	}
	return nil
}
