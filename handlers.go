package engine

import (
	"fmt"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/handler/featureservice"
	"go.solutions.arcgis.dev/engine/internal/handler/group"
	"go.solutions.arcgis.dev/engine/internal/handler/registry"
	"go.solutions.arcgis.dev/engine/internal/handler/simple"
	"go.solutions.arcgis.dev/engine/internal/handler/webmap"
	"go.solutions.arcgis.dev/engine/internal/portal"
)

// NewDefaultHandlerRegistry creates a registry with the handlers for the default item types applied.
func NewDefaultHandlerRegistry(
	logger log.Logger,
	client portal.Client,
) (handler.Registry, error) {
	handlerR, err := registry.New(
		featureservice.New(logger, client),
		webmap.New(logger, client),
		group.New(logger, client),
		simple.New(logger, client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler registry (%w)", err)
	}
	return handlerR, nil
}
