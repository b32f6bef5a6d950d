package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/scfdata/internal/cli/config"
	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/internal/scf/worker"
	"github.com/leapstack-labs/scfdata/internal/state"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// newBackend builds the solver backend of a command. Tests replace it.
var newBackend = (*CommandContext).workerBackend

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when none
// was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		DataDir:      config.DefaultDataDir,
		ResourcesDir: config.DefaultResourcesDir,
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
	}
}

func (c *CommandContext) workerBackend() (scf.Backend, error) {
	if err := c.Cfg.ValidateSolver(); err != nil {
		return nil, err
	}
	return worker.New(worker.Config{
		Command: c.Cfg.Solver.Argv(),
		Env:     c.Cfg.Solver.Environ(),
		Dir:     c.Cfg.Solver.Workdir,
		Logger:  c.Logger,
	})
}

// OpenStore opens the build journal and applies migrations.
// The returned cleanup closes it.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, func(), error) {
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			c.Logger.Warn("failed to close journal", "error", err)
		}
	}
	return store, cleanup, nil
}

// datasetOptions controls how OpenDataset wires a Dataset.
type datasetOptions struct {
	// Overrides replace the configured datasets.<name> section.
	Overrides *config.DatasetConfig
	// Solver attaches the worker backend.
	Solver  bool
	Journal core.Store
}

// OpenDataset opens the registered dataset name with the configured
// overrides applied.
func (c *CommandContext) OpenDataset(name string, opts datasetOptions) (*dataset.Dataset, error) {
	entry, err := dataset.Lookup(name)
	if err != nil {
		return nil, err
	}

	dc := c.Cfg.Dataset(name)
	if opts.Overrides != nil {
		dc = *opts.Overrides
	}
	policy, err := dc.Policy(entry.Split)
	if err != nil {
		return nil, err
	}

	cfg := dataset.Config{
		DataDir:       c.Cfg.DataDir,
		ResourcesDir:  c.Cfg.ResourcesDir,
		GeometryDir:   dc.GeometryDir,
		Basis:         dc.Basis,
		Size:          dc.Size,
		Split:         policy,
		Elements:      dc.Elements,
		Functional:    dc.Functional,
		Schemes:       dc.Schemes,
		RemainderSeed: dc.RemainderSeed,
		Journal:       opts.Journal,
		Logger:        c.Logger,
	}
	if opts.Solver {
		backend, err := newBackend(c)
		if err != nil {
			return nil, err
		}
		cfg.Backend = backend
	}
	return dataset.Open(name, cfg)
}

// completeDatasets offers registered dataset names for the first argument.
func completeDatasets(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return dataset.Names(), cobra.ShellCompDirectiveNoFileComp
}
