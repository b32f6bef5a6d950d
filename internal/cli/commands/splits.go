package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
	"github.com/spf13/cobra"
)

// NewSplitsCommand creates the splits command.
func NewSplitsCommand() *cobra.Command {
	var showKeys bool

	cmd := &cobra.Command{
		Use:   "splits <dataset>",
		Short: "Show the train, validation and test subsets of a built dataset",
		Long: `Show the subsets of a built dataset. Subsets are contiguous slices of the
accepted keys in keys.pkl: train first, then validation, then test.`,
		Example: `  scfdata splits qm9
  scfdata splits qm9_isomeres --keys -o json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDatasets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplits(cmd, args[0], showKeys)
		},
	}

	cmd.Flags().BoolVar(&showKeys, "keys", false, "List the keys of every subset")
	return cmd
}

type subsetView struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Keys  []int  `json:"keys,omitempty"`
}

type splitsView struct {
	Dataset string       `json:"dataset"`
	Size    int          `json:"size"`
	Split   string       `json:"split"`
	Subsets []subsetView `json:"subsets"`
}

func loadSplits(ds *dataset.Dataset, withKeys bool) (splitsView, error) {
	v := splitsView{Dataset: ds.Name(), Size: ds.Size(), Split: ds.Policy().String()}
	subsets := []struct {
		name string
		keys func() ([]int, error)
	}{
		{"train", ds.TrainKeys},
		{"val", ds.ValKeys},
		{"test", ds.TestKeys},
	}
	for _, s := range subsets {
		keys, err := s.keys()
		if err != nil {
			return splitsView{}, err
		}
		sv := subsetView{Name: s.name, Count: len(keys)}
		if withKeys {
			sv.Keys = keys
		}
		v.Subsets = append(v.Subsets, sv)
	}
	return v, nil
}

func runSplits(cmd *cobra.Command, name string, showKeys bool) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	ds, err := cc.OpenDataset(name, datasetOptions{})
	if err != nil {
		return err
	}
	v, err := loadSplits(ds, showKeys)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(v)
	}

	r.Header(1, fmt.Sprintf("Splits of %s", v.Dataset))
	r.Println(output.FormatKeyValue("size", strconv.Itoa(v.Size)))
	r.Println(output.FormatKeyValue("split", v.Split))
	r.Println("")

	rows := make([][]any, 0, len(v.Subsets))
	for _, s := range v.Subsets {
		rows = append(rows, []any{s.Name, s.Count})
	}
	r.Table([]string{"subset", "count"}, rows)

	if showKeys {
		for _, s := range v.Subsets {
			r.Println("")
			r.Header(2, s.Name)
			r.Println(joinInts(s.Keys))
		}
	}
	return nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}
