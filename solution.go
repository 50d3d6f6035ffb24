package engine

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/template"
)

// Type keywords marking solution items.
const (
	KeywordSolution = "Solution"
	KeywordTemplate = "Template"
	KeywordDeployed = "Deployed"
)

// Solution is the content of the data section of a solution item.
type Solution struct {
	Metadata  map[string]any       `json:"metadata" yaml:"metadata"`
	Templates []*template.Template `json:"templates" yaml:"templates"`
}

// loadSolution fetches a solution item and decodes its templates.
func loadSolution(ctx context.Context, client portal.Client, id string) (*portal.Item, *Solution, error) {
	item, err := client.GetItem(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch solution %s (%w)", id, err)
	}
	if item.Type != template.TypeSolution {
		return nil, nil, ErrNotASolution{ID: id, Type: item.Type}
	}
	data, err := client.GetItemData(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch the data of solution %s (%w)", id, err)
	}
	if data == nil {
		return nil, nil, ErrInvalidSolutionData{ID: id, Cause: fmt.Errorf("the solution has no data")}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, nil, ErrInvalidSolutionData{ID: id, Cause: err}
	}
	solution := &Solution{}
	if err := json.Unmarshal(encoded, solution); err != nil {
		return nil, nil, ErrInvalidSolutionData{ID: id, Cause: err}
	}
	for i, t := range solution.Templates {
		if t == nil || t.ItemID == "" {
			return nil, nil, ErrInvalidSolutionData{ID: id, Cause: fmt.Errorf("template %d has no item ID", i)}
		}
	}
	return item, solution, nil
}

// storeSolution creates a solution item holding the templates.
func storeSolution(
	ctx context.Context,
	client portal.Client,
	title string,
	tags []string,
	keywords []string,
	solution *Solution,
) (string, error) {
	if solution.Metadata == nil {
		solution.Metadata = map[string]any{}
	}
	id, err := client.AddItem(ctx, portal.AddItemRequest{
		Title:        title,
		Type:         template.TypeSolution,
		TypeKeywords: keywords,
		Tags:         tags,
		Data:         solution,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store solution %s (%w)", title, err)
	}
	return id, nil
}
