package group_test

import (
	"context"
	"testing"

	"go.arcalot.io/assert"
	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/config"
	"go.solutions.arcgis.dev/engine/internal/handler/group"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/portal/portaltest"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

func TestGroup(t *testing.T) {
	server := portaltest.New(t)
	logger := log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
	client, err := portal.New(logger, config.Portal{URL: server.URL})
	assert.NoError(t, err)

	first := portaltest.NewID()
	second := portaltest.NewID()
	server.AddItem(first, map[string]any{"title": "Map", "type": template.TypeWebMap}, nil)
	server.AddItem(second, map[string]any{"title": "App", "type": template.TypeWebMappingApplication}, nil)
	groupID := portaltest.NewID()
	server.AddGroup(groupID, "Field crew", first, second)

	source, err := client.GetGroup(context.Background(), groupID)
	assert.NoError(t, err)
	item := group.FromGroup(source)
	assert.Equals(t, item.Type, template.TypeGroup)

	h := group.New(logger, client)
	tmpl, err := h.ConvertItemToTemplate(context.Background(), item)
	assert.NoError(t, err)
	assert.Equals(t, tmpl.Type, template.TypeGroup)
	assert.Equals(t, tmpl.Dependencies, []string{first, second})

	// Only the first item was deployed.
	deployedFirst := portaltest.NewID()
	server.AddItem(deployedFirst, map[string]any{"title": "Map", "type": template.TypeWebMap}, nil)
	dict := templatize.NewDictionary()
	dict.Add(first, templatize.Entry{ItemID: deployedFirst})

	created, err := h.CreateItemFromTemplate(context.Background(), tmpl, dict)
	assert.NoError(t, err)
	createdGroup, ok := server.Group(created.ItemID)
	assert.Equals(t, ok, true)
	assert.Equals(t, createdGroup["title"], any("Field crew"))

	assert.NoError(t, h.PostProcess(context.Background(), tmpl, created, dict))
	assert.Equals(t, server.SharedWith(deployedFirst), []string{created.ItemID})
}

func TestGroupNotFound(t *testing.T) {
	server := portaltest.New(t)
	logger := log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
	client, err := portal.New(logger, config.Portal{URL: server.URL})
	assert.NoError(t, err)

	_, err = group.New(logger, client).ConvertItemToTemplate(context.Background(), &portal.Item{
		ID:   portaltest.NewID(),
		Type: template.TypeGroup,
	})
	assert.Error(t, err)
	assert.Equals(t, portal.IsNotFound(err), true)
}
