package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/scfdata/internal/cli/config"
	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Size       int
	Val        float64
	Test       float64
	SplitRatio float64
	NoJournal  bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <dataset>",
		Short: "Compute every sample of a dataset",
		Long: `Compute the reference solution and one solution per guess scheme for
every molecule of a dataset, in permutation order, until the configured size
is reached. Molecules the solver cannot handle are skipped and their
directory removed.

The dataset directory must not exist yet; build never overwrites data.
Runs and per-molecule attempts are recorded in the journal.`,
		Example: `  # Build the registered defaults
  scfdata build qm9_isomeres

  # A small proportional build
  scfdata build qm9 --size 50 --val 0.2 --test 0.2

  # Ratio split, JSON report
  scfdata build qm9_isomeres --split-ratio 0.9 -o json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDatasets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Size, "size", 0, "Number of molecules to build (default: registered size)")
	cmd.Flags().Float64Var(&opts.Val, "val", 0, "Validation fraction")
	cmd.Flags().Float64Var(&opts.Test, "test", 0, "Test fraction")
	cmd.Flags().Float64Var(&opts.SplitRatio, "split-ratio", 0, "Train fraction of a train/validation split")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "Do not record the run in the journal")
	cmd.MarkFlagsMutuallyExclusive("split-ratio", "val")
	cmd.MarkFlagsMutuallyExclusive("split-ratio", "test")

	return cmd
}

// overrides applies the flags that were set on top of the configured
// dataset section.
func (o *BuildOptions) overrides(cmd *cobra.Command, cc *CommandContext, name string) config.DatasetConfig {
	dc := cc.Cfg.Dataset(name)
	flags := cmd.Flags()
	if flags.Changed("size") {
		dc.Size = o.Size
	}
	if flags.Changed("split-ratio") {
		dc.Val, dc.Test = nil, nil
		dc.SplitRatio = &o.SplitRatio
	}
	if flags.Changed("val") {
		dc.SplitRatio = nil
		dc.Val = &o.Val
	}
	if flags.Changed("test") {
		dc.SplitRatio = nil
		dc.Test = &o.Test
	}
	return dc
}

func runBuild(cmd *cobra.Command, name string, opts *BuildOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	dsOpts := datasetOptions{Solver: true}
	dc := opts.overrides(cmd, cc, name)
	dsOpts.Overrides = &dc

	if !opts.NoJournal {
		store, cleanup, err := cc.OpenStore()
		if err != nil {
			// the journal is advisory
			cc.Logger.Warn("building without journal", "error", err)
		} else {
			defer cleanup()
			dsOpts.Journal = store
		}
	}

	ds, err := cc.OpenDataset(name, dsOpts)
	if err != nil {
		return err
	}

	report, buildErr := ds.Build(cmd.Context())
	if report == nil {
		return buildErr
	}

	summary := newBuildSummary(ds, report)
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(summary); err != nil {
			return err
		}
	default:
		renderBuildSummary(r, summary)
	}
	return buildErr
}

type buildFailure struct {
	Key   int    `json:"key"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type buildSummary struct {
	Dataset   string         `json:"dataset"`
	RunID     string         `json:"run_id,omitempty"`
	Dir       string         `json:"dir"`
	Size      int            `json:"size"`
	Split     string         `json:"split"`
	Accepted  int            `json:"accepted"`
	Failures  []buildFailure `json:"failures"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

func newBuildSummary(ds *dataset.Dataset, report *dataset.Report) buildSummary {
	s := buildSummary{
		Dataset:   ds.Name(),
		RunID:     report.RunID,
		Dir:       ds.Dir(),
		Size:      ds.Size(),
		Split:     ds.Policy().String(),
		Accepted:  len(report.Keys),
		Failures:  make([]buildFailure, 0, len(report.Failures)),
		ElapsedMS: report.Elapsed.Milliseconds(),
	}
	for _, f := range report.Failures {
		s.Failures = append(s.Failures, failureOf(f))
	}
	return s
}

func failureOf(o core.Outcome) buildFailure {
	f := buildFailure{Key: o.Key, Name: o.Name}
	if o.Err != nil {
		f.Error = o.Err.Error()
	}
	return f
}

func renderBuildSummary(r *output.Renderer, s buildSummary) {
	r.Header(1, "Build "+s.Dataset)
	r.Println(output.FormatKeyValue("dir", s.Dir))
	if s.RunID != "" {
		r.Println(output.FormatKeyValue("run", s.RunID))
	}
	r.Println(output.FormatKeyValue("split", s.Split))
	r.Println(output.FormatKeyValue("accepted", fmt.Sprintf("%d/%d", s.Accepted, s.Size)))
	r.Println(output.FormatKeyValue("elapsed", (time.Duration(s.ElapsedMS) * time.Millisecond).String()))

	if len(s.Failures) > 0 {
		r.Println("")
		r.Header(2, fmt.Sprintf("Skipped (%d)", len(s.Failures)))
		for _, f := range s.Failures {
			r.StatusLine(strconv.Itoa(f.Key)+" "+f.Name, "failed", f.Error)
		}
	}
	r.Println("")
	if s.Accepted >= s.Size {
		r.Success(fmt.Sprintf("built %d samples", s.Accepted))
	}
}
