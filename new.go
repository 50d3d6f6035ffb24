package engine

import (
	"fmt"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/config"
	"go.solutions.arcgis.dev/engine/internal/builder"
	"go.solutions.arcgis.dev/engine/internal/deploy"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/portal"
)

// New creates a new solution engine with the provided configuration. The passed client is used for every portal
// request, and handlerRegistry provides the conversion for each supported item type. If handlerRegistry is nil, the
// default handlers are used.
func New(
	config *config.Config,
	client portal.Client,
	handlerRegistry handler.Registry,
) (Engine, error) {
	if config == nil || client == nil {
		return nil, fmt.Errorf("bug: no configuration or client passed to engine.New")
	}
	logger := log.New(config.Log)
	if handlerRegistry == nil {
		var err error
		handlerRegistry, err = NewDefaultHandlerRegistry(logger, client)
		if err != nil {
			return nil, err
		}
	}
	templateBuilder, err := builder.New(logger, client, handlerRegistry, config.Builder.MaxConcurrentFetches)
	if err != nil {
		return nil, fmt.Errorf("failed to create template builder (%w)", err)
	}
	return &solutionEngine{
		logger:   logger.WithLabel("source", "engine"),
		client:   client,
		builder:  templateBuilder,
		deployer: deploy.New(logger, handlerRegistry, client),
	}, nil
}
