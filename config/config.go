package config

import (
	"time"

	"go.arcalot.io/log/v2"
)

// Config is the main configuration structure for creating and deploying solutions.
type Config struct {
	// Portal describes the organization items are read from and deployed to.
	Portal Portal `json:"portal" yaml:"portal"`
	// Builder tunes the template builder.
	Builder Builder `json:"builder" yaml:"builder"`
	// Log configures logging.
	Log log.Config `json:"log" yaml:"log"`
}

// Portal holds the connection information for an ArcGIS portal.
type Portal struct {
	// URL is the base URL of the portal, without the /sharing/rest suffix.
	URL string `json:"url" yaml:"url"`
	// Username owns the items created during deployment. When empty, it is looked up from the token.
	Username string `json:"username" yaml:"username"`
	// Token authenticates the requests. Public items can be read without one.
	Token string `json:"token" yaml:"token"`
	// Timeout is the maximum duration of a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Builder configures the template builder.
type Builder struct {
	// MaxConcurrentFetches limits the number of item fetches in flight at the same time.
	MaxConcurrentFetches int64 `json:"max_concurrent_fetches" yaml:"max_concurrent_fetches"`
}
