// Package config loads the scfdata CLI configuration.
//
// Values are layered with koanf: defaults, then scfdata.yaml, then
// SCFDATA_ environment variables, then flags that were set explicitly.
package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/scfdata/internal/split"
)

// Default configuration values.
const (
	DefaultDataDir      = "data"
	DefaultResourcesDir = "resources"
	DefaultStateFile    = ".scfdata/state.db"
	DefaultOutput       = "auto" // TTY=text, otherwise markdown
	EnvPrefix           = "SCFDATA_"
)

// ConfigFileNames are searched in this order.
var ConfigFileNames = []string{"scfdata.yaml", "scfdata.yml"}

// Config holds all CLI configuration options.
type Config struct {
	DataDir      string                   `koanf:"data_dir"`
	ResourcesDir string                   `koanf:"resources_dir"`
	StatePath    string                   `koanf:"state_path"`
	Verbose      bool                     `koanf:"verbose"`
	OutputFormat string                   `koanf:"output"`
	Solver       SolverConfig             `koanf:"solver"`
	Datasets     map[string]DatasetConfig `koanf:"datasets"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// SolverConfig describes the external SCF worker.
type SolverConfig struct {
	// Command is split on whitespace; Args are appended verbatim.
	Command string            `koanf:"command"`
	Args    []string          `koanf:"args"`
	Env     map[string]string `koanf:"env"`
	Workdir string            `koanf:"workdir"`
}

// Argv returns the worker command line.
func (s SolverConfig) Argv() []string {
	argv := strings.Fields(s.Command)
	return append(argv, s.Args...)
}

// Environ returns Env as sorted KEY=VALUE pairs.
func (s SolverConfig) Environ() []string {
	keys := slices.Sorted(maps.Keys(s.Env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+s.Env[k])
	}
	return out
}

// DatasetConfig overrides the registered defaults of one dataset.
// Nil pointers and empty values mean "use the default".
type DatasetConfig struct {
	Size          int      `koanf:"size"`
	Val           *float64 `koanf:"val"`
	Test          *float64 `koanf:"test"`
	SplitRatio    *float64 `koanf:"split_ratio"`
	Basis         string   `koanf:"basis"`
	GeometryDir   string   `koanf:"geometry_dir"`
	Elements      []string `koanf:"elements"`
	Functional    string   `koanf:"functional"`
	Schemes       []string `koanf:"schemes"`
	RemainderSeed *uint64  `koanf:"remainder_seed"`
}

// Dataset returns the overrides for name, or a zero value.
func (c *Config) Dataset(name string) DatasetConfig {
	if c == nil || c.Datasets == nil {
		return DatasetConfig{}
	}
	return c.Datasets[name]
}

// Policy returns the split policy these overrides select, starting from
// def. split_ratio selects a Ratio split; val or test select a
// Proportional split whose other fraction comes from def when def is
// proportional, else 0.1.
func (d DatasetConfig) Policy(def split.Policy) (split.Policy, error) {
	fractions := d.Val != nil || d.Test != nil
	if d.SplitRatio != nil && fractions {
		return nil, fmt.Errorf("%w: split_ratio cannot be combined with val or test", split.ErrInvalidSplit)
	}
	if d.SplitRatio != nil {
		return split.Ratio{Train: *d.SplitRatio}, nil
	}
	if !fractions {
		return def, nil
	}

	p := split.Proportional{Val: 0.1, Test: 0.1}
	if base, ok := def.(split.Proportional); ok {
		p = base
	}
	if d.Val != nil {
		p.Val = *d.Val
	}
	if d.Test != nil {
		p.Test = *d.Test
	}
	return p, nil
}
