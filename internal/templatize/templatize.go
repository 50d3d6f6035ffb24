// Package templatize rewrites references between items. Before a template is stored, item IDs and service URLs are
// replaced with placeholders of the form {{<id>.itemId}}, {{<id>.url}} and {{<id>.layer<n>.url}}. At deployment the
// placeholders are resolved against a Dictionary holding the items created so far.
package templatize

import (
	"regexp"
	"sort"
	"strings"
)

// LayerEntry is the deployed counterpart of one layer or table of a feature service.
type LayerEntry struct {
	ItemID string `json:"itemId" yaml:"itemId"`
	URL    string `json:"url" yaml:"url"`
}

// Entry is the deployed counterpart of a source item.
type Entry struct {
	ItemID string                `json:"itemId" yaml:"itemId"`
	URL    string                `json:"url,omitempty" yaml:"url,omitempty"`
	Layers map[string]LayerEntry `json:"layers,omitempty" yaml:"layers,omitempty"`
}

// Dictionary maps source item IDs to their deployed counterparts. It is created and updated by the deployer and passed
// explicitly to every handler.
type Dictionary map[string]Entry

// NewDictionary creates an empty dictionary.
func NewDictionary() Dictionary {
	return Dictionary{}
}

// Add records the deployed counterpart of a source item.
func (d Dictionary) Add(sourceID string, entry Entry) {
	d[sourceID] = entry
}

// Lookup returns the deployed counterpart of a source item.
func (d Dictionary) Lookup(sourceID string) (Entry, bool) {
	entry, ok := d[sourceID]
	return entry, ok
}

var placeholderRe = regexp.MustCompile(`\{\{([^{}.\s]+)\.(itemId|url|layer(\d+)\.(url|itemId))\}\}`)
var anyPlaceholderRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)
var hexRunRe = regexp.MustCompile(`[0-9a-fA-F]+`)

// itemIDLength is the length of a portal item ID.
const itemIDLength = 32

// ItemIDPlaceholder returns the placeholder for the ID of the deployed item.
func ItemIDPlaceholder(sourceID string) string {
	return "{{" + sourceID + ".itemId}}"
}

// URLPlaceholder returns the placeholder for the URL of the deployed item.
func URLPlaceholder(sourceID string) string {
	return "{{" + sourceID + ".url}}"
}

// LayerURLPlaceholder returns the placeholder for the URL of a layer of a deployed feature service.
func LayerURLPlaceholder(sourceID string, layerID string) string {
	return "{{" + sourceID + ".layer" + layerID + ".url}}"
}

// Templatize returns a copy of the value in which every occurrence of the source ID inside a string is replaced with
// its item ID placeholder. Text already inside a placeholder is not touched, so the call is idempotent.
func Templatize(value any, sourceID string) any {
	if sourceID == "" {
		return value
	}
	placeholder := ItemIDPlaceholder(sourceID)
	return transform(value, func(s string) string {
		return replaceOutsidePlaceholders(s, func(segment string) string {
			return strings.ReplaceAll(segment, sourceID, placeholder)
		})
	})
}

// TemplatizeURL returns a copy of the value in which the service URL is replaced with the URL placeholder of the
// source item and <url>/<n> is replaced with the placeholder of layer n.
func TemplatizeURL(value any, serviceURL string, sourceID string) any {
	serviceURL = strings.TrimSuffix(serviceURL, "/")
	if serviceURL == "" || sourceID == "" {
		return value
	}
	urlRe := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(serviceURL) + `(?:/(\d+))?`)
	return transform(value, func(s string) string {
		return replaceOutsidePlaceholders(s, func(segment string) string {
			return urlRe.ReplaceAllStringFunc(segment, func(match string) string {
				groups := urlRe.FindStringSubmatch(match)
				if groups[1] != "" {
					return LayerURLPlaceholder(sourceID, groups[1])
				}
				return URLPlaceholder(sourceID)
			})
		})
	})
}

// Replace returns a copy of the value in which every placeholder present in the dictionary is resolved. Placeholders
// for unknown items or layers are left untouched.
func Replace(value any, dict Dictionary) any {
	return transform(value, func(s string) string {
		return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
			resolved, ok := resolve(placeholderRe.FindStringSubmatch(match), dict)
			if !ok {
				return match
			}
			return resolved
		})
	})
}

// ReplaceString resolves the placeholders of a single string.
func ReplaceString(s string, dict Dictionary) string {
	return Replace(s, dict).(string)
}

// Unresolved lists the distinct placeholders still present in the value, sorted.
func Unresolved(value any) []string {
	seen := map[string]struct{}{}
	visit(value, func(s string) {
		for _, match := range placeholderRe.FindAllString(s, -1) {
			seen[match] = struct{}{}
		}
	})
	result := make([]string, 0, len(seen))
	for match := range seen {
		result = append(result, match)
	}
	sort.Strings(result)
	return result
}

// ReferencedIDs scans the strings of the value for portal item IDs and returns them in the order they were found,
// without duplicates. IDs passed in ignore are left out.
func ReferencedIDs(value any, ignore ...string) []string {
	skip := make(map[string]struct{}, len(ignore))
	for _, id := range ignore {
		skip[strings.ToLower(id)] = struct{}{}
	}
	var result []string
	visit(value, func(s string) {
		for _, run := range hexRunRe.FindAllString(s, -1) {
			if len(run) != itemIDLength {
				continue
			}
			id := strings.ToLower(run)
			if _, ok := skip[id]; ok {
				continue
			}
			skip[id] = struct{}{}
			result = append(result, id)
		}
	})
	return result
}

func resolve(groups []string, dict Dictionary) (string, bool) {
	entry, ok := dict[groups[1]]
	if !ok {
		return "", false
	}
	if groups[3] == "" {
		switch groups[2] {
		case "itemId":
			return entry.ItemID, entry.ItemID != ""
		default:
			return entry.URL, entry.URL != ""
		}
	}
	layer, ok := entry.Layers[groups[3]]
	if !ok {
		if groups[4] == "url" && entry.URL != "" {
			return strings.TrimSuffix(entry.URL, "/") + "/" + groups[3], true
		}
		return "", false
	}
	if groups[4] == "itemId" {
		return layer.ItemID, layer.ItemID != ""
	}
	return layer.URL, layer.URL != ""
}

// replaceOutsidePlaceholders applies fn to the parts of s that are not already a placeholder.
func replaceOutsidePlaceholders(s string, fn func(string) string) string {
	spans := anyPlaceholderRe.FindAllStringIndex(s, -1)
	if len(spans) == 0 {
		return fn(s)
	}
	var builder strings.Builder
	last := 0
	for _, span := range spans {
		builder.WriteString(fn(s[last:span[0]]))
		builder.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	builder.WriteString(fn(s[last:]))
	return builder.String()
}
