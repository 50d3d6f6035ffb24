// Package template holds the portable item template and the shared working collection the template builder fills.
package template

import (
	"strings"

	"github.com/google/uuid"
)

// IDSeparator separates the base item ID from a sub-resource suffix, such as a layer of a feature service.
const IDSeparator = "_"

// Item types the bundled handlers know about. The set is open-ended, any string may appear in a template.
const (
	TypeFeatureService        = "Feature Service"
	TypeWebMap                = "Web Map"
	TypeGroup                 = "Group"
	TypeDashboard             = "Dashboard"
	TypeWebMappingApplication = "Web Mapping Application"
	TypeForm                  = "Form"
	TypeWorkforceProject      = "Workforce Project"
	TypeNotebook              = "Notebook"
	TypeStoryMap              = "StoryMap"
	TypeWebExperience         = "Web Experience"
	TypeQuickCaptureProject   = "QuickCapture Project"
	TypeHubPage               = "Hub Page"
	TypeSolution              = "Solution"
)

const defaultDeploymentCostFactor = 2

// Template is the portable representation of one item. A Template without a Type is a placeholder.
type Template struct {
	ItemID                        string         `json:"itemId" yaml:"itemId"`
	Type                          string         `json:"type" yaml:"type"`
	Key                           string         `json:"key" yaml:"key"`
	Item                          map[string]any `json:"item" yaml:"item"`
	Data                          any            `json:"data" yaml:"data"`
	Resources                     []string       `json:"resources" yaml:"resources"`
	Dependencies                  []string       `json:"dependencies" yaml:"dependencies"`
	Groups                        []string       `json:"groups" yaml:"groups"`
	Properties                    map[string]any `json:"properties" yaml:"properties"`
	EstimatedDeploymentCostFactor int            `json:"estimatedDeploymentCostFactor" yaml:"estimatedDeploymentCostFactor"`
}

// New creates an empty template for the given item with a fresh key.
func New(itemID string, itemType string) *Template {
	return &Template{
		ItemID:                        itemID,
		Type:                          itemType,
		Key:                           newKey(),
		Item:                          map[string]any{},
		Resources:                     []string{},
		Dependencies:                  []string{},
		Groups:                        []string{},
		Properties:                    map[string]any{},
		EstimatedDeploymentCostFactor: defaultDeploymentCostFactor,
	}
}

// NewPlaceholder creates the reservation record standing in for an item that is still being converted.
func NewPlaceholder(itemID string) *Template {
	return &Template{
		ItemID:       itemID,
		Dependencies: []string{},
	}
}

// IsPlaceholder returns true if the template never resolved to a real item type.
func (t *Template) IsPlaceholder() bool {
	return t.Type == ""
}

// AddDependency appends the ID to the dependency list unless it is already present or refers to the template itself.
func (t *Template) AddDependency(id string) {
	if id == "" || BaseID(id) == BaseID(t.ItemID) {
		return
	}
	for _, existing := range t.Dependencies {
		if existing == id {
			return
		}
	}
	t.Dependencies = append(t.Dependencies, id)
}

// BaseID returns the portion of the ID that takes part in dependency resolution.
func BaseID(id string) string {
	base, _, _ := strings.Cut(id, IDSeparator)
	return base
}

// SubID returns the sub-resource suffix of a composite ID and whether there was one.
func SubID(id string) (string, bool) {
	_, sub, found := strings.Cut(id, IDSeparator)
	return sub, found
}

// FindByID returns the first template whose base ID matches the base of the passed ID, or nil.
func FindByID(templates []*Template, id string) *Template {
	base := BaseID(id)
	for _, t := range templates {
		if BaseID(t.ItemID) == base {
			return t
		}
	}
	return nil
}

// IDs lists the item IDs of the templates in order.
func IDs(templates []*Template) []string {
	result := make([]string, len(templates))
	for i, t := range templates {
		result[i] = t.ItemID
	}
	return result
}

func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
