package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/builder"
	"go.solutions.arcgis.dev/engine/internal/deploy"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/hierarchy"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/sequence"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

// Engine creates solutions from portal items and deploys them.
type Engine interface {
	// CreateSolution converts the requested items and everything they depend on into templates and stores them in a
	// new solution item.
	CreateSolution(ctx context.Context, request CreateRequest) (*CreateResult, error)
	// DeploySolution creates the items of a solution in dependency order and records them in a new deployed solution
	// item. If the deployment fails after the build order is known, the returned result lists the items created so
	// far next to the error and has no SolutionID.
	DeploySolution(ctx context.Context, solutionID string) (*DeployResult, error)
	// Hierarchy returns the dependency tree of a solution, with a node for every template.
	Hierarchy(ctx context.Context, solutionID string) ([]*hierarchy.Node, error)
}

// CreateRequest describes a solution to create.
type CreateRequest struct {
	Title   string
	Tags    []string
	ItemIDs []string
}

// CreateResult describes a created solution.
type CreateResult struct {
	SolutionID string               `json:"solutionId" yaml:"solutionId"`
	Templates  []*template.Template `json:"templates" yaml:"templates"`
	// Cyclic is set when the templates depend on each other in a cycle. Such a solution is stored but cannot be
	// deployed.
	Cyclic bool `json:"cyclic" yaml:"cyclic"`
}

// DeployResult describes a deployed solution.
type DeployResult struct {
	SolutionID string                      `json:"solutionId" yaml:"solutionId"`
	BuildOrder []string                    `json:"buildOrder" yaml:"buildOrder"`
	Created    map[string]*handler.Created `json:"created" yaml:"created"`
	Dictionary templatize.Dictionary       `json:"dictionary" yaml:"dictionary"`
}

type solutionEngine struct {
	logger   log.Logger
	client   portal.Client
	builder  builder.Builder
	deployer deploy.Deployer
}

func (s solutionEngine) CreateSolution(ctx context.Context, request CreateRequest) (*CreateResult, error) {
	if len(request.ItemIDs) == 0 {
		return nil, ErrNoItems
	}
	logger := s.logger.WithLabel("run", uuid.NewString())
	title := request.Title
	if title == "" {
		title = "Solution"
	}
	logger.Infof("Creating solution %s from %d items...", title, len(request.ItemIDs))

	templates, err := s.builder.Build(ctx, request.ItemIDs, template.NewCollection())
	if err != nil {
		return nil, fmt.Errorf("failed to build templates (%w)", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("none of the items %v could be converted", request.ItemIDs)
	}

	result := &CreateResult{
		Templates: templates,
	}
	if _, err := sequence.TopologicallySort(templates); err != nil {
		var cycleErr sequence.ErrCyclicDependency
		if !errors.As(err, &cycleErr) {
			return nil, err
		}
		logger.Warningf("The solution cannot be deployed as it is: %s", err.Error())
		result.Cyclic = true
	}
	if graph, err := hierarchy.Graph(templates); err == nil {
		logger.Debugf("Dependency graph Mermaid:\n%s", graph.Mermaid())
	} else {
		logger.Debugf("Cannot render the dependency graph (%v)", err)
	}

	result.SolutionID, err = storeSolution(
		ctx,
		s.client,
		title,
		request.Tags,
		[]string{KeywordSolution, KeywordTemplate},
		&Solution{
			Metadata: map[string]any{
				"sourceItemIds": request.ItemIDs,
			},
			Templates: templates,
		},
	)
	if err != nil {
		return nil, err
	}
	logger.Infof("Created solution %s with %d templates.", result.SolutionID, len(templates))
	return result, nil
}

func (s solutionEngine) DeploySolution(ctx context.Context, solutionID string) (*DeployResult, error) {
	logger := s.logger.WithLabel("run", uuid.NewString())
	item, solution, err := loadSolution(ctx, s.client, solutionID)
	if err != nil {
		return nil, err
	}
	logger.Infof("Deploying solution %s (%s) with %d templates...", solutionID, item.Title, len(solution.Templates))
	deployResult, err := s.deployer.Deploy(ctx, solution.Templates)
	if err != nil {
		err = fmt.Errorf("failed to deploy solution %s (%w)", solutionID, err)
		if deployResult == nil {
			return nil, err
		}
		if len(deployResult.Created) > 0 {
			logger.Errorf(
				"Deployment failed after creating %d items: %v",
				len(deployResult.Created),
				createdIDs(deployResult),
			)
		}
		return &DeployResult{
			BuildOrder: deployResult.BuildOrder,
			Created:    deployResult.Created,
			Dictionary: deployResult.Dictionary,
		}, err
	}

	deployed := &Solution{
		Metadata: map[string]any{
			"sourceId": solutionID,
		},
		Templates: deployedTemplates(solution.Templates, deployResult),
	}
	deployedID, err := storeSolution(
		ctx,
		s.client,
		item.Title,
		item.Tags,
		[]string{KeywordSolution, KeywordDeployed},
		deployed,
	)
	if err != nil {
		return nil, err
	}
	logger.Infof("Deployed solution %s as %s.", solutionID, deployedID)
	return &DeployResult{
		SolutionID: deployedID,
		BuildOrder: deployResult.BuildOrder,
		Created:    deployResult.Created,
		Dictionary: deployResult.Dictionary,
	}, nil
}

func (s solutionEngine) Hierarchy(ctx context.Context, solutionID string) ([]*hierarchy.Node, error) {
	_, solution, err := loadSolution(ctx, s.client, solutionID)
	if err != nil {
		return nil, err
	}
	return hierarchy.Build(solution.Templates), nil
}

// deployedTemplates describes the created items in build order, with IDs and dependencies pointing to the created
// items.
func deployedTemplates(templates []*template.Template, result *deploy.Result) []*template.Template {
	byID := make(map[string]*template.Template, len(templates))
	for _, t := range templates {
		if _, ok := byID[template.BaseID(t.ItemID)]; !ok {
			byID[template.BaseID(t.ItemID)] = t
		}
	}
	deployed := make([]*template.Template, 0, len(result.BuildOrder))
	for _, id := range result.BuildOrder {
		source := byID[template.BaseID(id)]
		created := result.Created[template.BaseID(id)]
		t := template.New(created.ItemID, source.Type)
		t.Key = source.Key
		t.Item, _ = templatize.Replace(source.Item, result.Dictionary).(map[string]any)
		t.Item["url"] = created.URL
		t.Groups = deployedIDs(source.Groups, result.Dictionary)
		t.Dependencies = deployedIDs(source.Dependencies, result.Dictionary)
		deployed = append(deployed, t)
	}
	return deployed
}

// createdIDs lists the created item IDs in build order.
func createdIDs(result *deploy.Result) []string {
	ids := make([]string, 0, len(result.Created))
	for _, id := range result.BuildOrder {
		if created, ok := result.Created[template.BaseID(id)]; ok {
			ids = append(ids, created.ItemID)
		}
	}
	return ids
}

func deployedIDs(ids []string, dict templatize.Dictionary) []string {
	seen := map[string]struct{}{}
	result := []string{}
	for _, id := range ids {
		entry, ok := dict.Lookup(template.BaseID(id))
		if !ok {
			continue
		}
		if _, ok := seen[entry.ItemID]; ok {
			continue
		}
		seen[entry.ItemID] = struct{}{}
		result = append(result, entry.ItemID)
	}
	return result
}
