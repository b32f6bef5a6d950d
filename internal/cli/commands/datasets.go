package commands

import (
	"strings"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/dataset"
	"github.com/spf13/cobra"
)

// NewDatasetsCommand creates the datasets command.
func NewDatasetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets and their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDatasets(cmd)
		},
	}
}

type datasetView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Size        int      `json:"size"`
	Split       string   `json:"split"`
	Stratified  bool     `json:"stratified"`
	Elements    []string `json:"elements"`
	Functional  string   `json:"functional"`
	Schemes     []string `json:"schemes"`
}

func runDatasets(cmd *cobra.Command) error {
	r := NewCommandContext(cmd).Renderer

	entries := dataset.Registered()
	views := make([]datasetView, 0, len(entries))
	for _, e := range entries {
		views = append(views, datasetView{
			Name:        e.Variant.Name(),
			Description: e.Description,
			Size:        e.Size,
			Split:       e.Split.String(),
			Stratified:  dataset.IsStratified(e.Variant),
			Elements:    e.Variant.Elements(),
			Functional:  e.Variant.Functional(),
			Schemes:     e.Variant.Schemes(),
		})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(views)
	}

	r.Header(1, "Datasets")
	rows := make([][]any, 0, len(views))
	for _, v := range views {
		rows = append(rows, []any{
			v.Name, v.Size, v.Split, v.Stratified,
			strings.Join(v.Elements, " "), strings.Join(v.Schemes, " "),
		})
	}
	r.Table([]string{"name", "size", "split", "stratified", "elements", "schemes"}, rows)
	return nil
}
