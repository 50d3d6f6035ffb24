package templatize_test

import (
	"testing"

	"go.arcalot.io/assert"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

const (
	mapID     = "0123456789abcdef0123456789abcdef"
	serviceID = "fedcba9876543210fedcba9876543210"
)

func TestTemplatize(t *testing.T) {
	input := map[string]any{
		"itemId": mapID,
		"url":    "https://example.com/apps/view?webmap=" + mapID,
		"nested": []any{mapID, 42, true, nil},
		mapID:    "keys are not rewritten",
	}
	result := templatize.Templatize(input, mapID)
	placeholder := "{{" + mapID + ".itemId}}"
	assert.Equals(t, result, any(map[string]any{
		"itemId": placeholder,
		"url":    "https://example.com/apps/view?webmap=" + placeholder,
		"nested": []any{placeholder, 42, true, nil},
		mapID:    "keys are not rewritten",
	}))
	// The input is not modified.
	assert.Equals(t, input["itemId"], any(mapID))
}

func TestTemplatizeIdempotent(t *testing.T) {
	once := templatize.Templatize(map[string]any{"id": mapID}, mapID)
	twice := templatize.Templatize(once, mapID)
	assert.Equals(t, twice, once)
}

func TestTemplatizeURL(t *testing.T) {
	serviceURL := "https://services.example.com/arcgis/rest/services/Inspections/FeatureServer"
	input := []any{
		serviceURL,
		serviceURL + "/0",
		serviceURL + "/12/query?where=1=1",
		"https://other.example.com/FeatureServer/0",
	}
	result := templatize.TemplatizeURL(input, serviceURL+"/", serviceID)
	assert.Equals(t, result, any([]any{
		"{{" + serviceID + ".url}}",
		"{{" + serviceID + ".layer0.url}}",
		"{{" + serviceID + ".layer12.url}}/query?where=1=1",
		"https://other.example.com/FeatureServer/0",
	}))
}

var replaceData = map[string]struct {
	input    string
	expected string
}{
	"item-id": {
		input:    "{{" + mapID + ".itemId}}",
		expected: "11111111111111111111111111111111",
	},
	"url": {
		input:    "{{" + serviceID + ".url}}/query",
		expected: "https://new.example.com/FeatureServer/query",
	},
	"layer-url": {
		input:    "{{" + serviceID + ".layer0.url}}",
		expected: "https://new.example.com/FeatureServer/0",
	},
	"layer-item-id": {
		input:    "{{" + serviceID + ".layer0.itemId}}",
		expected: "22222222222222222222222222222222",
	},
	"layer-url-fallback": {
		input:    "{{" + serviceID + ".layer3.url}}",
		expected: "https://new.example.com/FeatureServer/3",
	},
	"unknown-item": {
		input:    "{{unknown.itemId}}",
		expected: "{{unknown.itemId}}",
	},
	"unknown-layer-item-id": {
		input:    "{{" + serviceID + ".layer3.itemId}}",
		expected: "{{" + serviceID + ".layer3.itemId}}",
	},
	"mixed": {
		input:    "webmap={{" + mapID + ".itemId}}&other={{unknown.url}}",
		expected: "webmap=11111111111111111111111111111111&other={{unknown.url}}",
	},
}

func TestReplace(t *testing.T) {
	dict := templatize.NewDictionary()
	dict.Add(mapID, templatize.Entry{ItemID: "11111111111111111111111111111111"})
	dict.Add(serviceID, templatize.Entry{
		ItemID: "22222222222222222222222222222222",
		URL:    "https://new.example.com/FeatureServer",
		Layers: map[string]templatize.LayerEntry{
			"0": {
				ItemID: "22222222222222222222222222222222",
				URL:    "https://new.example.com/FeatureServer/0",
			},
		},
	})
	for name, tc := range replaceData {
		testCase := tc
		t.Run(name, func(t *testing.T) {
			assert.Equals(t, templatize.ReplaceString(testCase.input, dict), testCase.expected)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	original := map[string]any{
		"map": mapID,
		"layers": []any{
			map[string]any{"url": "https://old.example.com/FeatureServer/1", "itemId": serviceID},
		},
	}
	templated := templatize.TemplatizeURL(
		templatize.Templatize(templatize.Templatize(original, mapID), serviceID),
		"https://old.example.com/FeatureServer",
		serviceID,
	)
	assert.Equals(t, templatize.Unresolved(templated), []string{
		"{{" + mapID + ".itemId}}",
		"{{" + serviceID + ".itemId}}",
		"{{" + serviceID + ".layer1.url}}",
	})

	dict := templatize.NewDictionary()
	dict.Add(mapID, templatize.Entry{ItemID: "new-map"})
	dict.Add(serviceID, templatize.Entry{ItemID: "new-service", URL: "https://new.example.com/FeatureServer"})
	resolved := templatize.Replace(templated, dict)
	assert.Equals(t, resolved, any(map[string]any{
		"map": "new-map",
		"layers": []any{
			map[string]any{"url": "https://new.example.com/FeatureServer/1", "itemId": "new-service"},
		},
	}))
	assert.Equals(t, len(templatize.Unresolved(resolved)), 0)
}

func TestReferencedIDs(t *testing.T) {
	input := map[string]any{
		"a": "https://example.com/apps?id=" + mapID + "&x=" + serviceID + "_0",
		"b": []any{serviceID, "ABCDEF0123456789ABCDEF0123456789", "too short abcdef", mapID + "0"},
		"c": "self " + "99999999999999999999999999999999",
	}
	ids := templatize.ReferencedIDs(input, "99999999999999999999999999999999")
	assert.Equals(t, ids, []string{mapID, serviceID, "abcdef0123456789abcdef0123456789"})
}
