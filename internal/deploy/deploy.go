// Package deploy creates the items described by a set of templates in dependency order, resolving the references
// between them as they are created.
package deploy

import (
	"context"
	"fmt"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/sequence"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

// Sharer shares items with groups.
type Sharer interface {
	ShareItem(ctx context.Context, id string, groupIDs []string) error
}

// Result describes a completed deployment.
type Result struct {
	// BuildOrder lists the source item IDs in the order they were created.
	BuildOrder []string `json:"buildOrder" yaml:"buildOrder"`
	// Created maps the base ID of each source item to the item created from it.
	Created map[string]*handler.Created `json:"created" yaml:"created"`
	// Dictionary holds the final mapping of source items to deployed items.
	Dictionary templatize.Dictionary `json:"dictionary" yaml:"dictionary"`
}

// Deployer creates items from templates.
type Deployer interface {
	// Deploy creates an item for every template, dependencies first. Templates sharing a base ID are deployed once. A
	// dependency cycle or an unsupported item type fails the deployment before anything is created.
	Deploy(ctx context.Context, templates []*template.Template) (*Result, error)
}

// New creates a deployer.
func New(logger log.Logger, handlers handler.Registry, sharer Sharer) Deployer {
	return &deployer{
		logger:   logger.WithLabel("source", "deploy"),
		handlers: handlers,
		sharer:   sharer,
	}
}

type deployer struct {
	logger   log.Logger
	handlers handler.Registry
	sharer   Sharer
}

func (d deployer) Deploy(ctx context.Context, templates []*template.Template) (*Result, error) {
	if duplicates := sequence.DuplicateIDs(templates); len(duplicates) > 0 {
		d.logger.Warningf(
			"The following items occur more than once, only the first occurrence is deployed: %v",
			duplicates,
		)
	}
	buildOrder, err := sequence.TopologicallySort(templates)
	if err != nil {
		return nil, fmt.Errorf("cannot determine the build order (%w)", err)
	}

	byID := make(map[string]*template.Template, len(templates))
	handlers := make(map[string]handler.Handler, len(templates))
	totalCost := 0
	for _, tmpl := range templates {
		baseID := template.BaseID(tmpl.ItemID)
		if _, ok := byID[baseID]; ok {
			continue
		}
		hnd, err := d.handlers.GetByType(tmpl.Type)
		if err != nil {
			return nil, fmt.Errorf("cannot deploy template %s (%w)", tmpl.ItemID, err)
		}
		byID[baseID] = tmpl
		handlers[baseID] = hnd
		totalCost += costOf(tmpl)
	}

	result := &Result{
		BuildOrder: buildOrder,
		Created:    make(map[string]*handler.Created, len(buildOrder)),
		Dictionary: templatize.NewDictionary(),
	}
	d.logger.Infof("Deploying %d items...", len(buildOrder))
	doneCost := 0
	for _, id := range buildOrder {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("deployment cancelled after %d items (%w)", len(result.Created), err)
		}
		baseID := template.BaseID(id)
		tmpl := byID[baseID]
		created, err := handlers[baseID].CreateItemFromTemplate(ctx, tmpl, result.Dictionary)
		if err != nil {
			return result, fmt.Errorf("failed to deploy %s item %s (%w)", tmpl.Type, id, err)
		}
		if created == nil || created.ItemID == "" {
			return result, fmt.Errorf("bug: the handler for %s created no item for %s", tmpl.Type, id)
		}
		result.Dictionary.Add(baseID, created.Entry())
		result.Created[baseID] = created
		doneCost += costOf(tmpl)
		d.logger.Infof(
			"Created %s %s from %s (%d%%).",
			tmpl.Type,
			created.ItemID,
			id,
			doneCost*100/totalCost,
		)
	}

	for _, id := range buildOrder {
		baseID := template.BaseID(id)
		if err := d.share(ctx, byID[baseID], result.Created[baseID], result.Dictionary); err != nil {
			return result, err
		}
	}

	for _, id := range buildOrder {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("deployment cancelled during post-processing (%w)", err)
		}
		baseID := template.BaseID(id)
		created := result.Created[baseID]
		if err := handlers[baseID].PostProcess(ctx, byID[baseID], created, result.Dictionary); err != nil {
			return result, fmt.Errorf("failed to post-process item %s created from %s (%w)", created.ItemID, id, err)
		}
		// PostProcess may resolve the item's own URL.
		result.Dictionary.Add(baseID, created.Entry())
	}
	d.logger.Infof("Deployed %d items.", len(buildOrder))
	return result, nil
}

// share shares the created item with the deployed counterparts of the groups the template lists. Groups that are not
// part of the deployment are skipped.
func (d deployer) share(
	ctx context.Context,
	tmpl *template.Template,
	created *handler.Created,
	dict templatize.Dictionary,
) error {
	var groupIDs []string
	for _, groupID := range tmpl.Groups {
		entry, ok := dict.Lookup(template.BaseID(groupID))
		if !ok {
			d.logger.Debugf("Group %s of item %s was not deployed, not sharing with it.", groupID, tmpl.ItemID)
			continue
		}
		groupIDs = append(groupIDs, entry.ItemID)
	}
	if len(groupIDs) == 0 {
		return nil
	}
	if err := d.sharer.ShareItem(ctx, created.ItemID, groupIDs); err != nil {
		return fmt.Errorf("failed to share item %s with groups %v (%w)", created.ItemID, groupIDs, err)
	}
	return nil
}

func costOf(tmpl *template.Template) int {
	if tmpl.EstimatedDeploymentCostFactor < 1 {
		return 1
	}
	return tmpl.EstimatedDeploymentCostFactor
}
