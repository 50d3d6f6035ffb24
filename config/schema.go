package config

import (
	"regexp"
	"time"

	log "go.arcalot.io/log/v2"
	"go.flow.arcalot.io/pluginsdk/schema"
	"go.solutions.arcgis.dev/engine/internal/util"
)

// DefaultPortalURL is the portal used when no URL is configured.
const DefaultPortalURL = "https://www.arcgis.com"

func getConfigSchema() *schema.TypedScopeSchema[*Config] {
	return schema.NewTypedScopeSchema[*Config](
		schema.NewStructMappedObjectSchema[*Config](
			"Config",
			map[string]*schema.PropertySchema{
				"portal": schema.NewPropertySchema(
					schema.NewRefSchema("Portal", nil),
					schema.NewDisplayValue(
						schema.PointerTo("Portal"),
						schema.PointerTo("Connection to the ArcGIS portal."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo("{}"),
					nil,
				),
				"builder": schema.NewPropertySchema(
					schema.NewRefSchema("Builder", nil),
					schema.NewDisplayValue(
						schema.PointerTo("Builder"),
						schema.PointerTo("Template builder settings."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo("{}"),
					nil,
				),
				"log": schema.NewPropertySchema(
					schema.NewRefSchema("LogConfig", nil),
					schema.NewDisplayValue(
						schema.PointerTo("Logging"),
						schema.PointerTo("Logging configuration"),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo("{}"),
					nil,
				),
			},
		),
		schema.NewStructMappedObjectSchema[Portal](
			"Portal",
			map[string]*schema.PropertySchema{
				"url": schema.NewPropertySchema(
					schema.NewStringSchema(schema.IntPointer(1), nil, regexp.MustCompile("^https?://[^ ]+$")),
					schema.NewDisplayValue(
						schema.PointerTo("URL"),
						schema.PointerTo("Base URL of the portal, for example https://www.arcgis.com."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo(util.JSONEncode(DefaultPortalURL)),
					nil,
				),
				"username": schema.NewPropertySchema(
					schema.NewStringSchema(nil, schema.IntPointer(255), nil),
					schema.NewDisplayValue(
						schema.PointerTo("Username"),
						schema.PointerTo("Owner of the items created during deployment. Looked up from the token if empty."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					nil,
					nil,
				),
				"token": schema.NewPropertySchema(
					schema.NewStringSchema(nil, nil, nil),
					schema.NewDisplayValue(
						schema.PointerTo("Token"),
						schema.PointerTo("Access token sent with every request."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					nil,
					nil,
				),
				"timeout": schema.NewPropertySchema(
					schema.NewIntSchema(schema.PointerTo(int64(time.Second)), nil, schema.UnitDurationNanoseconds),
					schema.NewDisplayValue(
						schema.PointerTo("Timeout"),
						schema.PointerTo("Maximum duration of a single request."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo(util.JSONEncode("30s")),
					nil,
				),
			},
		),
		schema.NewStructMappedObjectSchema[Builder](
			"Builder",
			map[string]*schema.PropertySchema{
				"max_concurrent_fetches": schema.NewPropertySchema(
					schema.NewIntSchema(schema.PointerTo(int64(1)), schema.PointerTo(int64(64)), nil),
					schema.NewDisplayValue(
						schema.PointerTo("Maximum concurrent fetches"),
						schema.PointerTo("Number of item fetches that may be in flight at the same time."),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo(util.JSONEncode(8)),
					nil,
				),
			},
		),
		schema.NewStructMappedObjectSchema[log.Config](
			"LogConfig",
			map[string]*schema.PropertySchema{
				"level": schema.NewPropertySchema(
					schema.NewStringEnumSchema(map[string]*schema.DisplayValue{
						string(log.LevelDebug):   {NameValue: schema.PointerTo("Debug")},
						string(log.LevelInfo):    {NameValue: schema.PointerTo("Informational")},
						string(log.LevelWarning): {NameValue: schema.PointerTo("Warnings")},
						string(log.LevelError):   {NameValue: schema.PointerTo("Errors")},
					}),
					schema.NewDisplayValue(
						schema.PointerTo("Log level"),
						schema.PointerTo(
							"Minimum level of log messages to write.",
						),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo(util.JSONEncode(log.LevelInfo)),
					nil,
				),
				"destination": schema.NewPropertySchema(
					schema.NewStringEnumSchema(map[string]*schema.DisplayValue{
						string(log.DestinationStdout): {NameValue: schema.PointerTo("Standard output")},
					}),
					schema.NewDisplayValue(
						schema.PointerTo("Log destination"),
						schema.PointerTo(
							"Where the logs should be written to.",
						),
						nil,
					),
					false,
					nil,
					nil,
					nil,
					schema.PointerTo(util.JSONEncode(log.DestinationStdout)),
					nil,
				),
			},
		),
	)
}
