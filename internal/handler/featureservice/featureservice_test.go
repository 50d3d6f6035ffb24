package featureservice_test

import (
	"context"
	"strings"
	"testing"

	"go.arcalot.io/assert"
	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/config"
	"go.solutions.arcgis.dev/engine/internal/handler/featureservice"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/portal/portaltest"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

func TestFeatureService(t *testing.T) {
	server := portaltest.New(t)
	logger := log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
	client, err := portal.New(logger, config.Portal{URL: server.URL})
	assert.NoError(t, err)

	serviceID := portaltest.NewID()
	sourceID := portaltest.NewID()
	serviceURL := server.AddService(
		"/rest/services/Inspections/FeatureServer",
		map[string]any{
			"serviceItemId":  serviceID,
			"capabilities":   "Query,Editing",
			"currentVersion": 11.1,
			"layers":         []any{map[string]any{"id": 0, "name": "Points"}},
			"tables":         []any{map[string]any{"id": 1, "name": "Visits"}},
		},
		map[int]map[string]any{
			0: {
				"id":            0,
				"name":          "Points",
				"serviceItemId": serviceID,
				"adminLayerInfo": map[string]any{
					"viewLayerDefinition": map[string]any{
						"sourceServiceItemId": sourceID,
						"sourceLayerId":       2,
					},
				},
			},
			1: {
				"id":                1,
				"name":              "Visits",
				"relationshipsHelp": "see " + server.URL + "/rest/services/Inspections/FeatureServer/0",
			},
		},
	)
	server.AddItem(serviceID, map[string]any{
		"title": "Inspections",
		"type":  template.TypeFeatureService,
		"url":   serviceURL,
		"tags":  []string{"inspections"},
	}, nil)

	h := featureservice.New(logger, client)
	item, err := client.GetItem(context.Background(), serviceID)
	assert.NoError(t, err)
	tmpl, err := h.ConvertItemToTemplate(context.Background(), item)
	assert.NoError(t, err)
	assert.Equals(t, tmpl.Dependencies, []string{sourceID + "_2"})
	assert.Equals(t, tmpl.Item["url"], any("{{"+serviceID+".url}}"))

	service := tmpl.Properties["service"].(map[string]any)
	assert.Equals(t, service["capabilities"], any("Query,Editing"))
	_, hasLayers := service["layers"]
	assert.Equals(t, hasLayers, false)
	layers := tmpl.Properties["layers"].([]any)
	assert.Equals(t, len(layers), 1)
	_, hasAdminInfo := layers[0].(map[string]any)["adminLayerInfo"]
	assert.Equals(t, hasAdminInfo, false)
	tables := tmpl.Properties["tables"].([]any)
	assert.Equals(
		t,
		tables[0].(map[string]any)["relationshipsHelp"],
		any("see {{"+serviceID+".layer0.url}}"),
	)

	created, err := h.CreateItemFromTemplate(context.Background(), tmpl, templatize.NewDictionary())
	assert.NoError(t, err)
	assert.Equals(t, created.Type, template.TypeFeatureService)
	assert.Equals(t, strings.HasPrefix(created.URL, server.URL+"/rest/services/Inspections_"+tmpl.Key), true)
	assert.Equals(t, created.Layers["0"].URL, created.URL+"/0")
	assert.Equals(t, created.Layers["1"].URL, created.URL+"/1")
	assert.Equals(t, created.Layers["1"].ItemID, created.ItemID)
	assert.Equals(t, len(created.Unresolved), 0)

	newService, err := client.GetService(context.Background(), created.URL)
	assert.NoError(t, err)
	assert.Equals(t, newService.Layers, []portal.ServiceLayerRef{{ID: 0, Name: "Points"}})
	assert.Equals(t, newService.Tables, []portal.ServiceLayerRef{{ID: 1, Name: "Visits"}})
	visits, err := client.GetLayer(context.Background(), created.URL, 1)
	assert.NoError(t, err)
	assert.Equals(t, visits["relationshipsHelp"], any("see "+created.URL+"/0"))

	assert.NoError(t, h.PostProcess(context.Background(), tmpl, created, templatize.NewDictionary()))
}

func TestFeatureServiceWithoutURL(t *testing.T) {
	logger := log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
	client, err := portal.New(logger, config.Portal{URL: "https://example.com"})
	assert.NoError(t, err)
	_, err = featureservice.New(logger, client).ConvertItemToTemplate(context.Background(), &portal.Item{
		ID:   portaltest.NewID(),
		Type: template.TypeFeatureService,
	})
	assert.Error(t, err)
}
