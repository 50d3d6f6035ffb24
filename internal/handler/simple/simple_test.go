package simple_test

import (
	"context"
	"testing"

	"go.arcalot.io/assert"
	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/config"
	"go.solutions.arcgis.dev/engine/internal/handler/simple"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/portal/portaltest"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

func TestConvertAndCreate(t *testing.T) {
	server := portaltest.New(t)
	logger := log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
	client, err := portal.New(logger, config.Portal{URL: server.URL})
	assert.NoError(t, err)

	dashboardID := portaltest.NewID()
	mapID := portaltest.NewID()
	server.AddItem(dashboardID, map[string]any{
		"title": "Operations",
		"type":  template.TypeDashboard,
		"url":   "https://example.com/dashboards/" + dashboardID,
		"tags":  []string{"ops"},
	}, map[string]any{
		"widgets": []any{
			map[string]any{"type": "mapWidget", "itemId": mapID},
		},
	})

	h := simple.New(logger, client)
	item, err := client.GetItem(context.Background(), dashboardID)
	assert.NoError(t, err)
	tmpl, err := h.ConvertItemToTemplate(context.Background(), item)
	assert.NoError(t, err)
	assert.Equals(t, tmpl.ItemID, dashboardID)
	assert.Equals(t, tmpl.Type, template.TypeDashboard)
	assert.Equals(t, tmpl.Dependencies, []string{mapID})
	assert.Equals(t, tmpl.Item["url"], any("https://example.com/dashboards/{{"+dashboardID+".itemId}}"))
	assert.Equals(t, templatize.Unresolved(tmpl.Data), []string{"{{" + mapID + ".itemId}}"})

	newMapID := portaltest.NewID()
	dict := templatize.NewDictionary()
	dict.Add(mapID, templatize.Entry{ItemID: newMapID})
	created, err := h.CreateItemFromTemplate(context.Background(), tmpl, dict)
	assert.NoError(t, err)
	assert.Equals(t, created.Unresolved, []string{"{{" + dashboardID + ".itemId}}"})
	assert.Equals(t, server.Data(created.ItemID), any(map[string]any{
		"widgets": []any{
			map[string]any{"type": "mapWidget", "itemId": newMapID},
		},
	}))
	stored, _ := server.Item(created.ItemID)
	assert.Equals(t, stored["url"], any(""))

	dict.Add(dashboardID, created.Entry())
	assert.NoError(t, h.PostProcess(context.Background(), tmpl, created, dict))
	stored, _ = server.Item(created.ItemID)
	assert.Equals(t, stored["url"], any("https://example.com/dashboards/"+created.ItemID))
	assert.Equals(t, len(created.Unresolved), 0)
}

func TestPostProcessWithoutUnresolved(t *testing.T) {
	server := portaltest.New(t)
	logger := log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
	client, err := portal.New(logger, config.Portal{URL: server.URL})
	assert.NoError(t, err)
	h := simple.New(logger, client)

	tmpl := template.New(portaltest.NewID(), template.TypeForm)
	tmpl.Item["title"] = "Survey"
	created, err := h.CreateItemFromTemplate(context.Background(), tmpl, templatize.NewDictionary())
	assert.NoError(t, err)
	assert.NoError(t, h.PostProcess(context.Background(), tmpl, created, templatize.NewDictionary()))
	assert.Equals(t, server.Requests("/sharing/rest/content/users/"+portaltest.Username+"/items/"+created.ItemID+"/update"), 0)
}
