package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
)

// Validate checks the configuration. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.ResourcesDir == "" {
		errs = append(errs, errors.New("resources_dir is required"))
	}
	if !output.Valid(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of auto, text, markdown, json; got %q", c.OutputFormat))
	}
	for name, ds := range c.Datasets {
		if err := ds.validate(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d DatasetConfig) validate(name string) error {
	entry, err := dataset.Lookup(name)
	if err != nil {
		return fmt.Errorf("datasets.%s: %w", name, err)
	}
	if d.Size < 0 {
		return fmt.Errorf("datasets.%s: size must not be negative, got %d", name, d.Size)
	}
	p, err := d.Policy(entry.Split)
	if err != nil {
		return fmt.Errorf("datasets.%s: %w", name, err)
	}
	size := d.Size
	if size == 0 {
		size = entry.Size
	}
	if _, err := p.Sizes(size); err != nil {
		return fmt.Errorf("datasets.%s: %w", name, err)
	}
	for _, el := range d.Elements {
		if strings.TrimSpace(el) == "" {
			return fmt.Errorf("datasets.%s: empty element symbol", name)
		}
	}
	return nil
}

// ValidateSolver checks that a worker command is configured.
// Only commands that compute samples need it.
func (c *Config) ValidateSolver() error {
	if len(c.Solver.Argv()) == 0 {
		return fmt.Errorf("no solver configured\nHint: set solver.command in scfdata.yaml or %sSOLVER__COMMAND", EnvPrefix)
	}
	return nil
}
