package commands

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dataset> <key>",
		Short: "Show the stored samples of one molecule",
		Long: `Show the reference sample and every guess sample stored for one key,
with convergence status, iteration count and basis dimension.`,
		Example: `  scfdata show qm9 42
  scfdata show qm9_isomeres 7 -o json`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeDatasets,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[1], err)
			}
			return runShow(cmd, args[0], key)
		},
	}
}

type sampleView struct {
	Sample     string `json:"sample"`
	Path       string `json:"path"`
	Converged  bool   `json:"converged"`
	Iterations *int   `json:"iterations"`
	Dim        int    `json:"dim"`
}

type showView struct {
	Dataset  string       `json:"dataset"`
	Key      int          `json:"key"`
	Molecule string       `json:"molecule"`
	Accepted bool         `json:"accepted"`
	Samples  []sampleView `json:"samples"`
}

func describeSample(label string, s *sample.Sample) (sampleView, error) {
	status, err := s.Status()
	if err != nil {
		return sampleView{}, err
	}
	overlap, err := s.Overlap()
	if err != nil {
		return sampleView{}, err
	}
	dim, _ := overlap.Dims()
	return sampleView{
		Sample:     label,
		Path:       s.Path(),
		Converged:  status.Converged,
		Iterations: status.Iterations,
		Dim:        dim,
	}, nil
}

func loadShow(ds *dataset.Dataset, key int) (showView, error) {
	name, err := ds.MoleculeName(key)
	if err != nil {
		return showView{}, err
	}
	keys, err := ds.Keys()
	if err != nil {
		return showView{}, err
	}

	v := showView{Dataset: ds.Name(), Key: key, Molecule: name, Accepted: slices.Contains(keys, key)}
	ref, err := describeSample("reference", ds.Solution(key))
	if err != nil {
		return showView{}, err
	}
	v.Samples = append(v.Samples, ref)

	guesses := ds.Guesses(key)
	for _, scheme := range ds.Schemes() {
		sv, err := describeSample(scheme, guesses[scheme])
		if err != nil {
			return showView{}, err
		}
		v.Samples = append(v.Samples, sv)
	}
	return v, nil
}

func runShow(cmd *cobra.Command, name string, key int) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	ds, err := cc.OpenDataset(name, datasetOptions{})
	if err != nil {
		return err
	}
	v, err := loadShow(ds, key)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(v)
	}

	r.Header(1, fmt.Sprintf("%s key %d", v.Dataset, v.Key))
	r.Println(output.FormatKeyValue("molecule", v.Molecule))
	r.Println(output.FormatKeyValue("accepted", strconv.FormatBool(v.Accepted)))
	r.Println("")

	rows := make([][]any, 0, len(v.Samples))
	for _, s := range v.Samples {
		rows = append(rows, []any{s.Sample, s.Converged, iterationsString(s.Iterations), s.Dim})
	}
	r.Table([]string{"sample", "converged", "iterations", "dim"}, rows)
	return nil
}

func iterationsString(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
