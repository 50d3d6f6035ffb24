// Package main provides the command line entrypoint for creating and deploying solutions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine"
	"go.solutions.arcgis.dev/engine/config"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/tableprinter"
	"gopkg.in/yaml.v3"
)

// These variables are filled using ldflags during the build process with Goreleaser.
// See https://goreleaser.com/cookbooks/using-main.version/
var (
	version = "development"
	commit  = "unknown"
	date    = "unknown"
)

// ExitCodeOK signals that the program terminated normally.
const ExitCodeOK = 0

// ExitCodeInvalidData signals that the program was called with invalid options or configuration.
const ExitCodeInvalidData = 1

// ExitCodeFailed indicates that creating or deploying the solution failed.
const ExitCodeFailed = 3

// OutputYAML and OutputTable are the supported output formats.
const (
	OutputYAML  = "yaml"
	OutputTable = "table"
)

type options struct {
	configFile string
	portalURL  string
	token      string
	create     string
	title      string
	tags       string
	deploy     string
	hierarchy  string
	output     string
}

func main() {
	tempLogger := log.New(log.Config{
		Level:       log.LevelInfo,
		Destination: log.DestinationStdout,
		Stdout:      os.Stderr,
	})

	opts := options{output: OutputYAML}
	printVersion := false

	flag.BoolVar(&printVersion, "version", printVersion, "Print the solution engine version and exit.")
	flag.StringVar(&opts.configFile, "config", opts.configFile, "The configuration file to load, if any.")
	flag.StringVar(&opts.portalURL, "portal", opts.portalURL, "The portal URL. Overrides the configuration file.")
	flag.StringVar(&opts.token, "token", opts.token, "The access token. Overrides the configuration file.")
	flag.StringVar(&opts.create, "create", opts.create, "Comma-separated item IDs to create a solution from.")
	flag.StringVar(&opts.title, "title", opts.title, "The title of the created solution.")
	flag.StringVar(&opts.tags, "tags", opts.tags, "Comma-separated tags of the created solution.")
	flag.StringVar(&opts.deploy, "deploy", opts.deploy, "The ID of a solution item to deploy.")
	flag.StringVar(&opts.hierarchy, "hierarchy", opts.hierarchy, "The ID of a solution item to print the hierarchy of.")
	flag.StringVar(&opts.output, "output", opts.output, "The output format, yaml or table.")
	flag.Usage = func() {
		_, _ = os.Stderr.Write([]byte(`Usage: solution [OPTIONS]

Creates solution templates from ArcGIS items and deploys them. Exactly one of
-create, -deploy or -hierarchy must be passed.

Options:

  -version            Print the solution engine version and exit.

  -config FILENAME    The configuration file to load, if any.

  -portal URL         The portal URL. Overrides the configuration file.

  -token TOKEN        The access token. Overrides the configuration file.

  -create IDS         Comma-separated item IDs to create a solution from.

  -title TITLE        The title of the created solution.

  -tags TAGS          Comma-separated tags of the created solution.

  -deploy ID          The ID of a solution item to deploy.

  -hierarchy ID       The ID of a solution item to print the hierarchy of.

  -output FORMAT      The output format, yaml or table. Defaults to yaml.
`))
	}
	flag.Parse()

	if printVersion {
		fmt.Printf(
			"Solution Engine\n"+
				"===============\n"+
				"Version: %s\n"+
				"Commit: %s\n"+
				"Date: %s\n",
			version, commit, date,
		)
		return
	}

	if err := opts.validate(); err != nil {
		tempLogger.Errorf("Invalid options (%v)", err)
		flag.Usage()
		os.Exit(ExitCodeInvalidData)
	}

	var configData any = map[string]any{}
	if opts.configFile != "" {
		var err error
		configData, err = loadYamlFile(opts.configFile)
		if err != nil {
			tempLogger.Errorf("Failed to load configuration file %s (%v)", opts.configFile, err)
			flag.Usage()
			os.Exit(ExitCodeInvalidData)
		}
	}
	cfg, err := config.Load(configData)
	if err != nil {
		tempLogger.Errorf("Failed to load configuration file %s (%v)", opts.configFile, err)
		flag.Usage()
		os.Exit(ExitCodeInvalidData)
	}
	if opts.portalURL != "" {
		cfg.Portal.URL = opts.portalURL
	}
	if opts.token != "" {
		cfg.Portal.Token = opts.token
	}

	// now we are ready to instantiate our main logger
	cfg.Log.Stdout = os.Stderr
	logger := log.New(cfg.Log).WithLabel("source", "main")

	client, err := portal.New(logger, cfg.Portal)
	if err != nil {
		logger.Errorf("Failed to create portal client (%v)", err)
		os.Exit(ExitCodeInvalidData)
	}
	solutionEngine, err := engine.New(cfg, client, nil)
	if err != nil {
		logger.Errorf("Failed to initialize engine (%v)", err)
		os.Exit(ExitCodeInvalidData)
	}

	os.Exit(run(solutionEngine, opts, logger, os.Stdout))
}

func (o options) validate() error {
	actions := 0
	for _, value := range []string{o.create, o.deploy, o.hierarchy} {
		if value != "" {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("exactly one of -create, -deploy or -hierarchy is required")
	}
	if o.output != OutputYAML && o.output != OutputTable {
		return fmt.Errorf("unsupported output format: %s", o.output)
	}
	return nil
}

func run(solutionEngine engine.Engine, opts options, logger log.Logger, output io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	ctrlC := make(chan os.Signal, 3) // We expect up to two ctrl-C inputs. Plus one extra to buffer in case.
	signal.Notify(ctrlC, os.Interrupt)

	go handleOSInterrupt(ctrlC, cancel, logger)
	defer func() {
		signal.Stop(ctrlC)
		close(ctrlC) // Ensure that the goroutine exits
		cancel()
	}()

	var result any
	switch {
	case opts.create != "":
		created, err := solutionEngine.CreateSolution(ctx, engine.CreateRequest{
			Title:   opts.title,
			Tags:    splitList(opts.tags),
			ItemIDs: splitList(opts.create),
		})
		if err != nil {
			logger.Errorf("Creating the solution failed (%v)", err)
			return ExitCodeFailed
		}
		if opts.output == OutputTable {
			tableprinter.PrintTemplates(output, created.Templates)
			_, _ = fmt.Fprintf(output, "\nSolution: %s\n", created.SolutionID)
			return ExitCodeOK
		}
		result = created
	case opts.deploy != "":
		deployed, err := solutionEngine.DeploySolution(ctx, opts.deploy)
		if err != nil {
			logger.Errorf("Deploying the solution failed (%v)", err)
			return ExitCodeFailed
		}
		if opts.output == OutputTable {
			tableprinter.PrintBuildOrder(output, deployed.BuildOrder, deployed.Created)
			_, _ = fmt.Fprintf(output, "\nDeployed solution: %s\n", deployed.SolutionID)
			return ExitCodeOK
		}
		result = deployed
	default:
		nodes, err := solutionEngine.Hierarchy(ctx, opts.hierarchy)
		if err != nil {
			logger.Errorf("Reading the solution hierarchy failed (%v)", err)
			return ExitCodeFailed
		}
		result = nodes
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		logger.Errorf("Failed to marshal output (%v)", err)
		return ExitCodeInvalidData
	}
	_, _ = output.Write(data)
	return ExitCodeOK
}

func handleOSInterrupt(ctrlC chan os.Signal, cancel context.CancelFunc, logger log.Logger) {
	_, ok := <-ctrlC
	if !ok {
		return
	}
	logger.Infof("Requesting graceful shutdown.")
	cancel()

	_, ok = <-ctrlC
	if !ok {
		return
	}
	logger.Warningf("Force exiting. Items created so far are left in the portal.")
	os.Exit(1)
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func loadYamlFile(configFile string) (any, error) {
	fileContents, err := os.ReadFile(configFile) //nolint:gosec
	if err != nil {
		return nil, err
	}
	var data any
	if err := yaml.Unmarshal(fileContents, &data); err != nil {
		return nil, err
	}
	return data, nil
}
