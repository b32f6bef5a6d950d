package commands

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "verify <dataset>",
		Short: "Load every stored sample of a built dataset",
		Long: `Load the four matrices and the status of the reference sample and of every
guess sample for each accepted key, and check that the matrices are square
and of equal dimension. Samples are loaded in parallel; nothing is written.`,
		Example: `  scfdata verify qm9
  scfdata verify qm9 --jobs 16 -o json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDatasets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], jobs)
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Samples loaded in parallel")
	return cmd
}

type verifyProblem struct {
	Key    int    `json:"key"`
	Sample string `json:"sample"`
	Error  string `json:"error"`
}

type verifyReport struct {
	Dataset  string          `json:"dataset"`
	Keys     int             `json:"keys"`
	Samples  int             `json:"samples"`
	Problems []verifyProblem `json:"problems"`
}

// checkSample loads every artifact under path.
func checkSample(path string) error {
	s := sample.Open(path)
	if _, err := s.Status(); err != nil {
		return err
	}
	loaders := []struct {
		name string
		load func() (*mat.Dense, error)
	}{
		{sample.OverlapFile, s.Overlap},
		{sample.HCoreFile, s.HCore},
		{sample.DensityFile, s.Density},
		{sample.FockFile, s.Fock},
	}
	dim := -1
	for _, l := range loaders {
		m, err := l.load()
		if err != nil {
			return err
		}
		r, c := m.Dims()
		if r != c {
			return fmt.Errorf("%s is %dx%d, not square", l.name, r, c)
		}
		if dim >= 0 && r != dim {
			return fmt.Errorf("%s has dimension %d, expected %d", l.name, r, dim)
		}
		dim = r
	}
	return nil
}

func verifyDataset(ctx context.Context, ds *dataset.Dataset, jobs int) (*verifyReport, error) {
	keys, err := ds.Keys()
	if err != nil {
		return nil, err
	}

	report := &verifyReport{Dataset: ds.Name(), Keys: len(keys), Problems: []verifyProblem{}}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))

	labels := append([]string{"reference"}, ds.Schemes()...)
	for _, key := range keys {
		for _, label := range labels {
			path := ds.KeyDir(key)
			if label != "reference" {
				path = ds.GuessDir(key, label)
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				err := checkSample(path)

				mu.Lock()
				defer mu.Unlock()
				report.Samples++
				if err != nil {
					report.Problems = append(report.Problems, verifyProblem{Key: key, Sample: label, Error: err.Error()})
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Problems, func(i, j int) bool {
		a, b := report.Problems[i], report.Problems[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Sample < b.Sample
	})
	return report, nil
}

func runVerify(cmd *cobra.Command, name string, jobs int) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	ds, err := cc.OpenDataset(name, datasetOptions{})
	if err != nil {
		return err
	}
	report, err := verifyDataset(cmd.Context(), ds, jobs)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(report); err != nil {
			return err
		}
	} else {
		r.Header(1, "Verify "+report.Dataset)
		r.Println(output.FormatKeyValue("keys", strconv.Itoa(report.Keys)))
		r.Println(output.FormatKeyValue("samples", strconv.Itoa(report.Samples)))
		r.Println("")
		for _, p := range report.Problems {
			r.StatusLine(fmt.Sprintf("%d/%s", p.Key, p.Sample), "failed", p.Error)
		}
		if len(report.Problems) == 0 {
			r.Success(fmt.Sprintf("all %d samples load", report.Samples))
		}
	}

	if n := len(report.Problems); n > 0 {
		return fmt.Errorf("%d of %d samples are broken", n, report.Samples)
	}
	return nil
}
